package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/adapter/bogus"
	"github.com/yourorg/payment-gateway/internal/config"
	"github.com/yourorg/payment-gateway/internal/monitor"
	"github.com/yourorg/payment-gateway/internal/policy"
	"github.com/yourorg/payment-gateway/internal/processor"
	"github.com/yourorg/payment-gateway/internal/reporting"
	"github.com/yourorg/payment-gateway/internal/transport/circuitbreaker"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	gw := bogus.NewAdapter(adapter.Config{}, policy.NewDefaultClassifier(logger), logger)
	journal := reporting.NewJournal(100)
	proc, err := processor.NewProcessor(logger, journal, gw)
	require.NoError(t, err)
	contract, err := monitor.NewContractMonitor()
	require.NoError(t, err)

	return setupRouter(&server{
		proc:     proc,
		contract: contract,
		journal:  journal,
		reporter: reporting.NewRetrospectiveReporter(),
		logger:   logger,
	}, "payment-gateway-test")
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	switch p := payload.(type) {
	case nil:
		body = &bytes.Buffer{}
	case string:
		body = bytes.NewBufferString(p)
	default:
		raw, err := json.Marshal(p)
		require.NoError(t, err, "Failed to marshal payload")
		body = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err, "Failed to create request")
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func cardPayload(number string, amount int64) map[string]any {
	return map[string]any{
		"amount":   amount,
		"currency": "usd",
		"payment_method": map[string]any{
			"type":               "card",
			"number":             number,
			"month":              12,
			"year":               2030,
			"verification_value": "123",
		},
		"options": map[string]any{"order_id": "order-1"},
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) responseBody {
	t.Helper()
	var body responseBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "Failed to unmarshal response body")
	return body
}

func TestOperation_AuthorizeThenCapture(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/gateways/bogus/authorize", cardPayload("4111111111111111", 1000))
	require.Equal(t, http.StatusOK, w.Code)
	auth := decodeResponse(t, w)
	assert.True(t, auth.Success)
	assert.NotEmpty(t, auth.RequestID)
	assert.True(t, auth.Test)
	require.NotEmpty(t, auth.Authorization)
	require.NotNil(t, auth.AVSResult)
	assert.Equal(t, "Y", auth.AVSResult.Code)
	require.NotNil(t, auth.CVVResult)
	assert.Equal(t, "M", auth.CVVResult.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/gateways/bogus/capture", map[string]any{
		"request_id":    "req-capture",
		"amount":        1000,
		"authorization": auth.Authorization,
	})
	require.Equal(t, http.StatusOK, w.Code)
	capture := decodeResponse(t, w)
	assert.True(t, capture.Success)
	assert.Equal(t, "req-capture", capture.RequestID)
	assert.Equal(t, "capture", capture.Operation)
}

func TestOperation_Decline(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/gateways/bogus/purchase", cardPayload("4111111111111112", 1000))
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w)
	assert.False(t, res.Success)
	assert.Equal(t, "card_declined", res.ErrorCode)
}

func TestOperation_ForeignAuthorization(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/gateways/bogus/void", map[string]any{"authorization": "ch_123"})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w)
	assert.False(t, res.Success)
	assert.Equal(t, "invalid_authorization", res.ErrorCode)
}

func TestOperation_RequestErrors(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		name       string
		path       string
		payload    any
		wantStatus int
		wantError  string
	}{
		{"BindingError", "/v1/gateways/bogus/purchase", "this is not json", http.StatusBadRequest, "Invalid request format"},
		{"ContractViolation", "/v1/gateways/bogus/purchase", map[string]any{"amount": 10}, http.StatusBadRequest, "Validation errors"},
		{"UnknownGateway", "/v1/gateways/acme/purchase", cardPayload("4111111111111111", 10), http.StatusNotFound, "Unknown gateway"},
		{"UnknownOperation", "/v1/gateways/bogus/credit", cardPayload("4111111111111111", 10), http.StatusNotFound, "Unknown operation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, tt.path, tt.payload)
			assert.Equal(t, tt.wantStatus, w.Code)

			var errorResponse gin.H
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errorResponse))
			assert.Contains(t, errorResponse["error"], tt.wantError)
		})
	}
}

func TestReportAndGateways(t *testing.T) {
	router := setupTestRouter(t)

	doJSON(t, router, http.MethodPost, "/v1/gateways/bogus/purchase", cardPayload("4111111111111111", 1500))
	doJSON(t, router, http.MethodPost, "/v1/gateways/bogus/purchase", cardPayload("4111111111111112", 700))

	w := doJSON(t, router, http.MethodGet, "/v1/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report reporting.RetrospectiveReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.TotalOperations)
	assert.Equal(t, 1, report.SuccessfulOperations)
	assert.Equal(t, int64(1500), report.TotalAmountProcessed)
	assert.Equal(t, int64(1500), report.AmountByCurrency["USD"])
	assert.Equal(t, 1, report.ErrorBreakdown["card_declined"])

	w = doJSON(t, router, http.MethodGet, "/v1/gateways", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"gateways": ["bogus"]}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	doJSON(t, router, http.MethodPost, "/v1/gateways/bogus/purchase", cardPayload("4111111111111111", 100))

	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "gateway_operations_total"))
}

func TestBuildGateways(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := &config.Config{
		Breaker: circuitbreaker.Config{FailureThreshold: 3, ResetTimeout: time.Second, HalfOpenSuccessThreshold: 1},
		Gateways: map[string]adapter.Config{
			"bogus":        {Name: "bogus", Test: true},
			"stripe":       {Name: "stripe", Password: "sk_test"},
			"nmi":          {Name: "nmi", Login: "demo", Password: "password", Test: true},
			"authorizenet": {Name: "authorizenet", Login: "login", Password: "key", Test: true},
		},
	}

	gateways, err := buildGateways(cfg, logger)
	require.NoError(t, err)
	names := make([]string, 0, len(gateways))
	for _, gw := range gateways {
		names = append(names, gw.Name())
	}
	assert.Equal(t, []string{"authorizenet", "bogus", "nmi", "stripe"}, names)

	cfg.Gateways["acme"] = adapter.Config{Name: "acme"}
	_, err = buildGateways(cfg, logger)
	assert.Error(t, err)
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := initTracer(config.OpenTelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
