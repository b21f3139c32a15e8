// Package transport performs the blocking HTTPS round trips adapters need.
// It reports network-level problems as *Fault and hands every HTTP reply,
// whatever its status, back to the adapter for protocol-specific parsing.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/transport/circuitbreaker"
)

const defaultTimeout = 30 * time.Second

// ErrCircuitOpen is wrapped by faults raised without contacting the endpoint.
var ErrCircuitOpen = errors.New("circuit open")

// Fault is a transport-level failure: no usable HTTP reply was obtained.
type Fault struct {
	Op  string // e.g. "POST"
	URL string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", f.Op, f.URL, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Reply is a complete HTTP response with its body already read.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is shared read-only by adapters after construction.
type Client struct {
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient wraps httpClient with otel instrumentation. Nil arguments get
// defaults: a 30s client, a default breaker and a no-op logger.
func NewClient(httpClient *http.Client, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	instrumented := *httpClient
	instrumented.Transport = otelhttp.NewTransport(base)

	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: &instrumented, breaker: breaker, logger: logger}
}

// Post sends body to rawURL with the given headers.
func (c *Client) Post(ctx context.Context, rawURL string, headers map[string]string, body []byte) (*Reply, error) {
	return c.Do(ctx, http.MethodPost, rawURL, headers, body)
}

// Do performs one request. It never retries.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) (*Reply, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Fault{Op: method, URL: rawURL, Err: err}
	}
	endpoint := u.Host

	if !c.breaker.AllowRequest(endpoint) {
		c.logger.Warn("circuit open, request not sent", zap.String("endpoint", endpoint))
		return nil, &Fault{Op: method, URL: rawURL, Err: ErrCircuitOpen}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Fault{Op: method, URL: rawURL, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure(endpoint)
		c.logger.Warn("transport fault", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, &Fault{Op: method, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure(endpoint)
		return nil, &Fault{Op: method, URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.RecordFailure(endpoint)
	} else {
		c.breaker.RecordSuccess(endpoint)
	}
	c.logger.Debug("round trip",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	return &Reply{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
