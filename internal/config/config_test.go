package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GATEWAYS", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 1000, cfg.JournalCapacity)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	require.Contains(t, cfg.Gateways, "bogus")
	assert.True(t, cfg.Gateways["bogus"].Test)
}

func TestLoad_Gateways(t *testing.T) {
	t.Setenv("GATEWAYS", "Stripe, authorize-net ,")
	t.Setenv("GATEWAY_STRIPE_PASSWORD", "sk_test_123")
	t.Setenv("GATEWAY_STRIPE_TEST", "false")
	t.Setenv("GATEWAY_STRIPE_TIMEOUT", "5")
	t.Setenv("GATEWAY_AUTHORIZE_NET_LOGIN", "login")
	t.Setenv("GATEWAY_AUTHORIZE_NET_ENDPOINT", "https://example.test/xml")
	t.Setenv("GATEWAY_AUTHORIZE_NET_TIMEOUT", "1500ms")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Gateways, 2)

	stripe := cfg.Gateways["stripe"]
	assert.Equal(t, "stripe", stripe.Name)
	assert.Equal(t, "sk_test_123", stripe.Password)
	assert.False(t, stripe.Test)
	assert.Equal(t, 5*time.Second, stripe.Timeout)

	anet := cfg.Gateways["authorize-net"]
	assert.Equal(t, "login", anet.Login)
	assert.Equal(t, "https://example.test/xml", anet.URL("live", "test"))
	assert.Equal(t, 1500*time.Millisecond, anet.Timeout)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("GATEWAYS", "bogus")
	t.Setenv("SERVER_PORT", "70000")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "ten")
	t.Setenv("CFG_TEST_BOOL", "maybe")
	t.Setenv("CFG_TEST_DUR", "soon")
	assert.Equal(t, 10, getEnvAsInt("CFG_TEST_INT", 10))
	assert.True(t, getEnvAsBool("CFG_TEST_BOOL", true))
	assert.Equal(t, time.Minute, getEnvAsDuration("CFG_TEST_DUR", time.Minute))
}
