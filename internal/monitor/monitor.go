// Package monitor validates inbound gateway requests against a JSON schema
// contract before they reach the processor.
package monitor

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/yourorg/payment-gateway/internal/adapter"
)

//go:embed schemas/request.json
var requestSchema []byte

// requiredFields lists the top-level properties each operation needs.
var requiredFields = map[adapter.Operation][]string{
	adapter.OpAuthorize: {"amount", "currency", "payment_method"},
	adapter.OpPurchase:  {"amount", "currency", "payment_method"},
	adapter.OpCapture:   {"amount", "authorization"},
	adapter.OpRefund:    {"amount", "authorization"},
	adapter.OpVoid:      {"authorization"},
	adapter.OpStore:     {"payment_method"},
	adapter.OpVerify:    {"payment_method"},
}

// ContractMonitor holds one compiled schema per canonical operation. It is
// read-only after construction.
type ContractMonitor struct {
	schemas map[adapter.Operation]*gojsonschema.Schema
}

// NewContractMonitor compiles the built-in request contract.
func NewContractMonitor() (*ContractMonitor, error) {
	return NewContractMonitorFromSchema(requestSchema)
}

// NewContractMonitorFromSchema compiles raw, a draft-07 schema describing the
// request body, once per operation with that operation's required fields.
func NewContractMonitorFromSchema(raw []byte) (*ContractMonitor, error) {
	cm := &ContractMonitor{schemas: make(map[adapter.Operation]*gojsonschema.Schema, len(requiredFields))}
	for op, required := range requiredFields {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("monitor: error parsing schema: %w", err)
		}
		req := make([]any, len(required))
		for i, name := range required {
			req[i] = name
		}
		doc["required"] = req

		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
		if err != nil {
			return nil, fmt.Errorf("monitor: error compiling schema for %s: %w", op, err)
		}
		cm.schemas[op] = schema
	}
	return cm, nil
}

// Validate checks requestBody against the contract of op. It returns true if
// valid, or false and the list of violations.
func (cm *ContractMonitor) Validate(op adapter.Operation, requestBody []byte) (bool, []string, error) {
	schema, ok := cm.schemas[op]
	if !ok {
		return false, nil, fmt.Errorf("monitor: no contract for operation %q", op)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(requestBody))
	if err != nil {
		return false, nil, fmt.Errorf("monitor: error during validation: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, desc.String())
	}
	return false, errors, nil
}

// FormatErrors formats a slice of validation error strings into a single string.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(validationErrors, "; ")
}
