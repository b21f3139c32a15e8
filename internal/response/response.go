// Package response defines the canonical outcome every gateway operation returns,
// together with the static tables that normalize processor-specific address,
// card-verification and decline vocabularies into canonical values.
package response

import (
	"errors"

	"github.com/yourorg/payment-gateway/internal/token"
	"github.com/yourorg/payment-gateway/internal/transport"
)

// Response is the outcome of a single gateway operation (or of a composed one).
// Values are treated as immutable once built.
type Response struct {
	Success       bool           // Whether the processor accepted the operation
	Message       string         // Human-readable status or decline reason
	Params        map[string]any // Parsed processor response, kept for diagnostics only
	Authorization string         // Encoded token for later operations; empty when absent
	AVSResult     *AVSResult     // nil when the processor sent no address signal
	CVVResult     *CVVResult     // nil when the processor sent no card-verification signal
	ErrorCode     StandardError  // Set if and only if Success is false
	Test          bool           // Whether the processor ran the transaction in test mode
	FraudReview   bool           // Processor held the transaction for manual review
}

// HasAuthorization reports whether the response carries a token.
func (r Response) HasAuthorization() bool {
	return r.Authorization != ""
}

// Param returns a raw response parameter as a string, or "" if it is missing
// or not a string.
func (r Response) Param(key string) string {
	if r.Params == nil {
		return ""
	}
	s, _ := r.Params[key].(string)
	return s
}

// Normalized enforces the success/error invariant on a response an adapter
// assembled by hand: failures always carry a code, successes never do.
func (r Response) Normalized() Response {
	if r.Success {
		r.ErrorCode = ""
	} else if r.ErrorCode == "" {
		r.ErrorCode = ProcessingError
	}
	if r.Params == nil {
		r.Params = make(map[string]any)
	}
	return r
}

// Failure synthesizes a failing response that did not come from a processor.
func Failure(message string, code StandardError, params map[string]any) Response {
	if code == "" {
		code = ProcessingError
	}
	if params == nil {
		params = make(map[string]any)
	}
	return Response{
		Success:   false,
		Message:   message,
		Params:    params,
		ErrorCode: code,
	}
}

// FromError turns an error surfaced by an adapter into a failing response.
// Token decode failures map to invalid_authorization, everything else
// (transport faults included) to processing_error.
func FromError(err error) Response {
	if err == nil {
		return Failure("unknown error", ProcessingError, nil)
	}
	params := map[string]any{"error": err.Error()}

	var decodeErr *token.DecodeError
	if errors.As(err, &decodeErr) {
		params["schema"] = decodeErr.Schema
		return Failure("Invalid authorization: "+decodeErr.Reason, InvalidAuthorization, params)
	}
	var fault *transport.Fault
	if errors.As(err, &fault) {
		params["transport_op"] = fault.Op
		return Failure(fault.Error(), ProcessingError, params)
	}
	return Failure(err.Error(), ProcessingError, params)
}
