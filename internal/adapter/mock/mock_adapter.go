package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/response"
)

// MockAdapter is a Gateway test double. Each operation calls its Func field if
// set, otherwise it succeeds with a fresh authorization. Calls are counted per
// operation.
type MockAdapter struct {
	GatewayName string

	AuthorizeFunc func(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error)
	PurchaseFunc  func(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error)
	CaptureFunc   func(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error)
	RefundFunc    func(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error)
	VoidFunc      func(ctx context.Context, authorization string, opts adapter.Options) (response.Response, error)
	StoreFunc     func(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error)
	VerifyFunc    func(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error)

	mu    sync.Mutex
	calls map[adapter.Operation]int
	auths []string
}

var _ adapter.Gateway = (*MockAdapter)(nil)

// NewMockAdapter creates a new MockAdapter.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{GatewayName: name, calls: make(map[adapter.Operation]int)}
}

// Name implements adapter.Gateway.
func (m *MockAdapter) Name() string {
	return m.GatewayName
}

// Calls returns how many times op was invoked.
func (m *MockAdapter) Calls(op adapter.Operation) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Authorizations returns the authorization arguments received by capture,
// refund and void, in call order.
func (m *MockAdapter) Authorizations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.auths))
	copy(out, m.auths)
	return out
}

func (m *MockAdapter) record(op adapter.Operation, authorization string, withAuth bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[adapter.Operation]int)
	}
	m.calls[op]++
	if withAuth {
		m.auths = append(m.auths, authorization)
	}
}

func (m *MockAdapter) success(op adapter.Operation) response.Response {
	return response.Response{
		Success:       true,
		Message:       "Mock " + string(op) + " approved",
		Params:        map[string]any{"mock_processed": "true", "gateway": m.GatewayName},
		Authorization: uuid.NewString(),
		Test:          true,
	}
}

func (m *MockAdapter) Authorize(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	m.record(adapter.OpAuthorize, "", false)
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, money, pm, opts)
	}
	return m.success(adapter.OpAuthorize), nil
}

func (m *MockAdapter) Purchase(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	m.record(adapter.OpPurchase, "", false)
	if m.PurchaseFunc != nil {
		return m.PurchaseFunc(ctx, money, pm, opts)
	}
	return m.success(adapter.OpPurchase), nil
}

func (m *MockAdapter) Capture(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	m.record(adapter.OpCapture, authorization, true)
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, money, authorization, opts)
	}
	return m.success(adapter.OpCapture), nil
}

func (m *MockAdapter) Refund(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
	m.record(adapter.OpRefund, authorization, true)
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, money, authorization, opts)
	}
	return m.success(adapter.OpRefund), nil
}

func (m *MockAdapter) Void(ctx context.Context, authorization string, opts adapter.Options) (response.Response, error) {
	m.record(adapter.OpVoid, authorization, true)
	if m.VoidFunc != nil {
		return m.VoidFunc(ctx, authorization, opts)
	}
	return m.success(adapter.OpVoid), nil
}

func (m *MockAdapter) Store(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	m.record(adapter.OpStore, "", false)
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, pm, opts)
	}
	return m.success(adapter.OpStore), nil
}

func (m *MockAdapter) Verify(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
	m.record(adapter.OpVerify, "", false)
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, pm, opts)
	}
	return m.success(adapter.OpVerify), nil
}
