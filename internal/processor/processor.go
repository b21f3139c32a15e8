// Package processor is the boundary callers use: it resolves a gateway by
// name, dispatches one canonical operation and always hands back a
// response.Response, converting adapter errors into failing responses.
package processor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/reporting"
	"github.com/yourorg/payment-gateway/internal/response"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_operations_total",
		Help: "Gateway operations processed, by gateway, operation and outcome.",
	}, []string{"gateway", "operation", "outcome"})

	operationDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_operation_duration_seconds",
		Help:    "Wall time of gateway operations, including composed steps.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation"})

	standardErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_standard_errors_total",
		Help: "Failed operations by canonical error code.",
	}, []string{"gateway", "error_code"})
)

// GetOperationsTotal exposes the operations counter for tests.
func GetOperationsTotal() *prometheus.CounterVec { return operationsTotal }

// GetOperationDurationSeconds exposes the duration histogram for tests.
func GetOperationDurationSeconds() *prometheus.HistogramVec { return operationDurationSeconds }

// GetStandardErrorsTotal exposes the canonical error counter for tests.
func GetStandardErrorsTotal() *prometheus.CounterVec { return standardErrorsTotal }

// Request carries the inputs of any canonical operation; each operation reads
// only the fields it needs.
type Request struct {
	RequestID     string
	Money         adapter.Money
	PaymentMethod adapter.PaymentMethod
	Authorization string
	Options       adapter.Options
}

// Processor dispatches operations to registered gateways. The registry is
// fixed at construction and safe for concurrent use.
type Processor struct {
	adapterRegistry map[string]adapter.Gateway
	journal         *reporting.Journal
	logger          *zap.Logger
	tracer          trace.Tracer
}

// NewProcessor creates a Processor over gateways. A nil journal disables
// activity recording.
func NewProcessor(logger *zap.Logger, journal *reporting.Journal, gateways ...adapter.Gateway) (*Processor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := make(map[string]adapter.Gateway, len(gateways))
	for _, gw := range gateways {
		if gw == nil {
			return nil, fmt.Errorf("processor: nil gateway")
		}
		if _, dup := registry[gw.Name()]; dup {
			return nil, fmt.Errorf("processor: gateway %q registered twice", gw.Name())
		}
		registry[gw.Name()] = gw
	}
	return &Processor{
		adapterRegistry: registry,
		journal:         journal,
		logger:          logger,
		tracer:          otel.Tracer("processor"),
	}, nil
}

// Gateways lists the registered gateway names in order.
func (p *Processor) Gateways() []string {
	names := make([]string, 0, len(p.adapterRegistry))
	for name := range p.adapterRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Gateway returns a registered gateway.
func (p *Processor) Gateway(name string) (adapter.Gateway, bool) {
	gw, ok := p.adapterRegistry[name]
	return gw, ok
}

// Execute runs op on the named gateway. It never returns an error: unknown
// gateways, unknown operations, adapter errors and panics all become failing
// responses.
func (p *Processor) Execute(ctx context.Context, gateway string, op adapter.Operation, req Request) (res response.Response) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	ctx, span := p.tracer.Start(ctx, "Processor.Execute", trace.WithAttributes(
		attribute.String("gateway", gateway),
		attribute.String("operation", string(op)),
		attribute.String("request_id", req.RequestID),
	))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("gateway panicked", zap.String("gateway", gateway), zap.String("operation", string(op)), zap.Any("panic", rec))
			res = response.Failure(fmt.Sprintf("%s %s failed: %v", gateway, op, rec), response.ProcessingError,
				map[string]any{"panic": fmt.Sprint(rec)})
		}
		p.observe(gateway, op, req, res, start)
		span.SetAttributes(
			attribute.Bool("success", res.Success),
			attribute.String("error_code", string(res.ErrorCode)),
		)
		span.End()
	}()

	gw, ok := p.adapterRegistry[gateway]
	if !ok {
		return response.Failure(fmt.Sprintf("No gateway registered as %q", gateway), response.ConfigError,
			map[string]any{"gateway": gateway})
	}

	r, err := dispatch(ctx, gw, op, req)
	if err != nil {
		span.RecordError(err)
		p.logger.Warn("gateway returned error",
			zap.String("gateway", gateway),
			zap.String("operation", string(op)),
			zap.String("request_id", req.RequestID),
			zap.Error(err))
		return response.FromError(err)
	}
	return r.Normalized()
}

func dispatch(ctx context.Context, gw adapter.Gateway, op adapter.Operation, req Request) (response.Response, error) {
	if req.PaymentMethod == nil {
		switch op {
		case adapter.OpAuthorize, adapter.OpPurchase, adapter.OpStore, adapter.OpVerify:
			return response.Failure(fmt.Sprintf("%s requires a payment method", op), response.ProcessingError, nil), nil
		}
	}
	switch op {
	case adapter.OpAuthorize:
		return gw.Authorize(ctx, req.Money, req.PaymentMethod, req.Options)
	case adapter.OpPurchase:
		return gw.Purchase(ctx, req.Money, req.PaymentMethod, req.Options)
	case adapter.OpCapture:
		return gw.Capture(ctx, req.Money, req.Authorization, req.Options)
	case adapter.OpRefund:
		return gw.Refund(ctx, req.Money, req.Authorization, req.Options)
	case adapter.OpVoid:
		return gw.Void(ctx, req.Authorization, req.Options)
	case adapter.OpStore:
		return gw.Store(ctx, req.PaymentMethod, req.Options)
	case adapter.OpVerify:
		return gw.Verify(ctx, req.PaymentMethod, req.Options)
	default:
		return adapter.Unsupported(gw.Name(), "operation "+string(op)), nil
	}
}

func (p *Processor) observe(gateway string, op adapter.Operation, req Request, res response.Response, start time.Time) {
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		standardErrorsTotal.WithLabelValues(gateway, string(res.ErrorCode)).Inc()
	}
	operationsTotal.WithLabelValues(gateway, string(op), outcome).Inc()
	operationDurationSeconds.WithLabelValues(gateway, string(op)).Observe(time.Since(start).Seconds())

	p.logger.Info("operation processed",
		zap.String("request_id", req.RequestID),
		zap.String("gateway", gateway),
		zap.String("operation", string(op)),
		zap.Bool("success", res.Success),
		zap.String("error_code", string(res.ErrorCode)),
		zap.Bool("test", res.Test),
		zap.Duration("elapsed", time.Since(start)))

	if p.journal != nil {
		p.journal.Record(reporting.NewLogEntry(start, req.RequestID, gateway, string(op),
			req.Money.Cents, req.Money.Currency, res))
	}
}
