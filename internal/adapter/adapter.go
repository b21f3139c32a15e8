// Package adapter defines the capability set every processor adapter
// implements and the domain inputs those operations take.
// Adapters build protocol-specific requests, perform the round trip through
// internal/transport and translate the reply into a response.Response.
// They never retry and never keep state between calls: whatever a later
// operation needs travels in the Authorization token.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/payment-gateway/internal/response"
)

// Operation names one canonical operation.
type Operation string

const (
	OpAuthorize Operation = "authorize"
	OpPurchase  Operation = "purchase"
	OpCapture   Operation = "capture"
	OpRefund    Operation = "refund"
	OpVoid      Operation = "void"
	OpStore     Operation = "store"
	OpVerify    Operation = "verify"
)

// Operations lists every canonical operation.
var Operations = []Operation{OpAuthorize, OpPurchase, OpCapture, OpRefund, OpVoid, OpStore, OpVerify}

// Money is an amount in minor units.
type Money struct {
	Cents    int64
	Currency string // ISO 4217, e.g. "USD"
}

// Address is a billing or shipping address.
type Address struct {
	Name     string
	Address1 string
	Address2 string
	City     string
	State    string
	Zip      string
	Country  string
	Phone    string
}

// Options carries the optional per-call inputs shared by most processors.
type Options struct {
	OrderID        string
	Description    string
	Email          string
	IP             string
	CustomerID     string
	BillingAddress *Address
	Metadata       map[string]string
}

// Config is the immutable construction-time configuration of one adapter
// instance. Nothing in it changes after the adapter is built.
type Config struct {
	Name     string        // Registry name, e.g. "stripe"
	Login    string        // API login, key id or merchant name
	Password string        // API secret or transaction key
	Test     bool          // Use the processor's sandbox endpoint
	Endpoint string        // Overrides the live/test endpoint when set
	Timeout  time.Duration // Per-request timeout used by the transport
}

// URL returns the endpoint override or the live/test default.
func (c Config) URL(live, test string) string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.Test {
		return test
	}
	return live
}

// Gateway is implemented by each processor adapter. Each method returns
// exactly one response. A non-nil error is either a *token.DecodeError (the
// caller passed a malformed or foreign authorization) or a *transport.Fault;
// callers that need a response in every case use processor.Processor.
type Gateway interface {
	Name() string
	Authorize(ctx context.Context, money Money, pm PaymentMethod, opts Options) (response.Response, error)
	Purchase(ctx context.Context, money Money, pm PaymentMethod, opts Options) (response.Response, error)
	Capture(ctx context.Context, money Money, authorization string, opts Options) (response.Response, error)
	Refund(ctx context.Context, money Money, authorization string, opts Options) (response.Response, error)
	Void(ctx context.Context, authorization string, opts Options) (response.Response, error)
	Store(ctx context.Context, pm PaymentMethod, opts Options) (response.Response, error)
	Verify(ctx context.Context, pm PaymentMethod, opts Options) (response.Response, error)
}

// Unsupported is the response for an operation or payment method an adapter
// does not implement.
func Unsupported(gateway string, what string) response.Response {
	return response.Failure(gateway+" does not support "+what, response.UnsupportedFeature,
		map[string]any{"gateway": gateway})
}

// InvalidCard is the response for a card that fails Validate. It never reaches
// the processor.
func InvalidCard(gateway string, err error) response.Response {
	code := response.InvalidNumber
	if errors.Is(err, ErrInvalidExpiry) {
		code = response.InvalidExpiryDate
	}
	return response.Failure(err.Error(), code, map[string]any{"gateway": gateway})
}
