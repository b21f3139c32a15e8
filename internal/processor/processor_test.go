package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yourorg/payment-gateway/internal/adapter"
	adaptermock "github.com/yourorg/payment-gateway/internal/adapter/mock"
	"github.com/yourorg/payment-gateway/internal/processor"
	"github.com/yourorg/payment-gateway/internal/reporting"
	"github.com/yourorg/payment-gateway/internal/response"
	"github.com/yourorg/payment-gateway/internal/token"
	"github.com/yourorg/payment-gateway/internal/transport"
)

var card = &adapter.CreditCard{Number: "4111111111111111", Month: 1, Year: 2031}

// uniqueGateway avoids collisions with the globally registered metrics.
func uniqueGateway(t *testing.T) *adaptermock.MockAdapter {
	t.Helper()
	return adaptermock.NewMockAdapter("mock-" + uuid.NewString()[:8])
}

func TestNewProcessor_RejectsDuplicates(t *testing.T) {
	_, err := processor.NewProcessor(nil, nil, adaptermock.NewMockAdapter("a"), adaptermock.NewMockAdapter("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")

	_, err = processor.NewProcessor(nil, nil, nil)
	require.Error(t, err)

	proc, err := processor.NewProcessor(nil, nil, adaptermock.NewMockAdapter("b"), adaptermock.NewMockAdapter("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, proc.Gateways())
	_, ok := proc.Gateway("a")
	assert.True(t, ok)
}

func TestProcessor_Execute(t *testing.T) {
	t.Run("Successful purchase", func(t *testing.T) {
		gw := uniqueGateway(t)
		journal := reporting.NewJournal(10)
		proc, err := processor.NewProcessor(zaptest.NewLogger(t), journal, gw)
		require.NoError(t, err)

		res := proc.Execute(context.Background(), gw.Name(), adapter.OpPurchase, processor.Request{
			Money:         adapter.Money{Cents: 1000, Currency: "USD"},
			PaymentMethod: card,
		})

		assert.True(t, res.Success)
		assert.Empty(t, res.ErrorCode)
		assert.Equal(t, 1, gw.Calls(adapter.OpPurchase))

		entries := journal.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, "purchase", entries[0].Operation)
		assert.Equal(t, int64(1000), entries[0].Amount)
		assert.NotEmpty(t, entries[0].RequestID)
	})

	t.Run("Decode error becomes invalid_authorization", func(t *testing.T) {
		gw := uniqueGateway(t)
		gw.VoidFunc = func(ctx context.Context, authorization string, opts adapter.Options) (response.Response, error) {
			schema := token.MustSchema("mock", "|", token.Required("id"), token.Required("kind"), token.Optional("amount"))
			_, err := schema.Decode(authorization)
			return response.Response{}, err
		}
		proc, err := processor.NewProcessor(nil, nil, gw)
		require.NoError(t, err)

		res := proc.Execute(context.Background(), gw.Name(), adapter.OpVoid, processor.Request{Authorization: "not-a-valid-token"})
		assert.False(t, res.Success)
		assert.Equal(t, response.InvalidAuthorization, res.ErrorCode)
		assert.Equal(t, []string{"not-a-valid-token"}, gw.Authorizations())
	})

	t.Run("Transport fault becomes processing_error", func(t *testing.T) {
		gw := uniqueGateway(t)
		gw.CaptureFunc = func(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
			return response.Response{}, &transport.Fault{Op: "POST", URL: "https://gateway.test", Err: errors.New("timeout")}
		}
		proc, err := processor.NewProcessor(nil, nil, gw)
		require.NoError(t, err)

		res := proc.Execute(context.Background(), gw.Name(), adapter.OpCapture, processor.Request{Authorization: "x"})
		assert.Equal(t, response.ProcessingError, res.ErrorCode)
		assert.Equal(t, "POST", res.Params["transport_op"])
	})

	t.Run("Panic is contained", func(t *testing.T) {
		gw := uniqueGateway(t)
		gw.RefundFunc = func(ctx context.Context, money adapter.Money, authorization string, opts adapter.Options) (response.Response, error) {
			panic("adapter bug")
		}
		proc, err := processor.NewProcessor(nil, nil, gw)
		require.NoError(t, err)

		res := proc.Execute(context.Background(), gw.Name(), adapter.OpRefund, processor.Request{Authorization: "x"})
		assert.False(t, res.Success)
		assert.Equal(t, response.ProcessingError, res.ErrorCode)
	})

	t.Run("Hand-built failure gets a code", func(t *testing.T) {
		gw := uniqueGateway(t)
		gw.StoreFunc = func(ctx context.Context, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
			return response.Response{Success: false, Message: "no"}, nil
		}
		proc, err := processor.NewProcessor(nil, nil, gw)
		require.NoError(t, err)

		res := proc.Execute(context.Background(), gw.Name(), adapter.OpStore, processor.Request{PaymentMethod: card})
		assert.Equal(t, response.ProcessingError, res.ErrorCode)
	})

	t.Run("Unknown gateway and operation", func(t *testing.T) {
		gw := uniqueGateway(t)
		proc, err := processor.NewProcessor(nil, nil, gw)
		require.NoError(t, err)

		res := proc.Execute(context.Background(), "nope", adapter.OpPurchase, processor.Request{PaymentMethod: card})
		assert.Equal(t, response.ConfigError, res.ErrorCode)

		res = proc.Execute(context.Background(), gw.Name(), adapter.Operation("credit"), processor.Request{})
		assert.Equal(t, response.UnsupportedFeature, res.ErrorCode)

		res = proc.Execute(context.Background(), gw.Name(), adapter.OpAuthorize, processor.Request{})
		assert.False(t, res.Success)
		assert.Equal(t, 0, gw.Calls(adapter.OpAuthorize))
	})
}

func TestProcessor_Metrics(t *testing.T) {
	gw := uniqueGateway(t)
	gw.PurchaseFunc = func(ctx context.Context, money adapter.Money, pm adapter.PaymentMethod, opts adapter.Options) (response.Response, error) {
		if money.Cents > 5000 {
			return response.Failure("Insufficient funds", response.InsufficientFunds, nil), nil
		}
		return response.Response{Success: true, Authorization: "ok"}, nil
	}
	proc, err := processor.NewProcessor(nil, nil, gw)
	require.NoError(t, err)
	ctx := context.Background()

	proc.Execute(ctx, gw.Name(), adapter.OpPurchase, processor.Request{Money: adapter.Money{Cents: 100}, PaymentMethod: card})
	proc.Execute(ctx, gw.Name(), adapter.OpPurchase, processor.Request{Money: adapter.Money{Cents: 100}, PaymentMethod: card})
	proc.Execute(ctx, gw.Name(), adapter.OpPurchase, processor.Request{Money: adapter.Money{Cents: 9000}, PaymentMethod: card})

	assert.Equal(t, 2.0, testutil.ToFloat64(processor.GetOperationsTotal().WithLabelValues(gw.Name(), "purchase", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(processor.GetOperationsTotal().WithLabelValues(gw.Name(), "purchase", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(processor.GetStandardErrorsTotal().WithLabelValues(gw.Name(), "insufficient_funds")))

	observer := processor.GetOperationDurationSeconds().WithLabelValues(gw.Name(), "purchase")
	metric, ok := observer.(prometheus.Metric)
	require.True(t, ok)
	var m dto.Metric
	require.NoError(t, metric.Write(&m))
	assert.Equal(t, uint64(3), m.GetHistogram().GetSampleCount())
}
