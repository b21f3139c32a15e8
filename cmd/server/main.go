package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/adapter/authorizenet"
	"github.com/yourorg/payment-gateway/internal/adapter/bogus"
	"github.com/yourorg/payment-gateway/internal/adapter/nmi"
	"github.com/yourorg/payment-gateway/internal/adapter/stripe"
	"github.com/yourorg/payment-gateway/internal/config"
	"github.com/yourorg/payment-gateway/internal/logger"
	"github.com/yourorg/payment-gateway/internal/monitor"
	"github.com/yourorg/payment-gateway/internal/policy"
	"github.com/yourorg/payment-gateway/internal/processor"
	"github.com/yourorg/payment-gateway/internal/reporting"
	"github.com/yourorg/payment-gateway/internal/transport"
	"github.com/yourorg/payment-gateway/internal/transport/circuitbreaker"
)

// server bundles the long-lived dependencies the HTTP handlers share.
type server struct {
	proc     *processor.Processor
	contract *monitor.ContractMonitor
	journal  *reporting.Journal
	reporter *reporting.RetrospectiveReporter
	logger   *zap.Logger
}

// buildGateways constructs one adapter per configured gateway. All adapters
// share one circuit breaker and the default decline classifier.
func buildGateways(cfg *config.Config, logger *zap.Logger) ([]adapter.Gateway, error) {
	breaker := circuitbreaker.NewCircuitBreaker(cfg.Breaker)
	classifier := policy.NewDefaultClassifier(logger.Named("policy"))

	names := make([]string, 0, len(cfg.Gateways))
	for name := range cfg.Gateways {
		names = append(names, name)
	}
	sort.Strings(names)

	gateways := make([]adapter.Gateway, 0, len(names))
	for _, name := range names {
		gc := cfg.Gateways[name]
		gwLogger := logger.Named(name)
		client := transport.NewClient(&http.Client{Timeout: gc.Timeout}, breaker, gwLogger)

		switch name {
		case "bogus":
			gateways = append(gateways, bogus.NewAdapter(gc, classifier, gwLogger))
		case "stripe":
			gateways = append(gateways, stripe.NewStripeAdapter(gc, client, classifier, gwLogger))
		case "nmi":
			gateways = append(gateways, nmi.NewAdapter(gc, client, classifier, gwLogger))
		case "authorizenet", "authorize_net", "authorize-net":
			gateways = append(gateways, authorizenet.NewAdapter(gc, client, classifier, gwLogger))
		default:
			return nil, fmt.Errorf("unknown gateway %q", name)
		}
	}
	return gateways, nil
}

// initTracer installs a stdout exporter. The returned func flushes it.
func initTracer(cfg config.OpenTelemetryConfig) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

func setupRouter(s *server, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(serviceName), requestLogger(s.logger))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.GET("/gateways", s.listGatewaysHandler)
	v1.POST("/gateways/:gateway/:operation", s.operationHandler)
	v1.GET("/report", s.reportHandler)
	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	zl := logger.Must(cfg.Environment)
	defer func() { _ = zl.Sync() }()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracer, err := initTracer(cfg.OpenTelemetry)
	if err != nil {
		zl.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	gateways, err := buildGateways(cfg, zl)
	if err != nil {
		zl.Fatal("Failed to build gateways", zap.Error(err))
	}
	journal := reporting.NewJournal(cfg.JournalCapacity)
	proc, err := processor.NewProcessor(zl.Named("processor"), journal, gateways...)
	if err != nil {
		zl.Fatal("Failed to create processor", zap.Error(err))
	}
	contract, err := monitor.NewContractMonitor()
	if err != nil {
		zl.Fatal("Failed to load request contract", zap.Error(err))
	}

	s := &server{
		proc:     proc,
		contract: contract,
		journal:  journal,
		reporter: reporting.NewRetrospectiveReporter(),
		logger:   zl,
	}
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      setupRouter(s, cfg.OpenTelemetry.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		zl.Info("Starting server", zap.String("addr", httpServer.Addr), zap.Strings("gateways", proc.Gateways()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		zl.Error("Tracer shutdown failed", zap.Error(err))
	}
}
