// Package config loads the server and per-gateway settings from the
// environment. A .env file is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/transport/circuitbreaker"
)

// Config is the full server configuration. It is built once at startup and
// never mutated afterwards.
type Config struct {
	Environment     string
	Server          ServerConfig
	OpenTelemetry   OpenTelemetryConfig
	Breaker         circuitbreaker.Config
	JournalCapacity int
	Gateways        map[string]adapter.Config
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// OpenTelemetryConfig controls the stdout trace exporter.
type OpenTelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
}

// Load reads the environment. GATEWAYS is a comma separated list of gateway
// names; each one reads GATEWAY_<NAME>_LOGIN, _PASSWORD, _TEST, _ENDPOINT and
// _TIMEOUT.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		OpenTelemetry: OpenTelemetryConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "payment-gateway"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		},
		Breaker: circuitbreaker.Config{
			FailureThreshold:         getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
			ResetTimeout:             getEnvAsDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
			HalfOpenSuccessThreshold: getEnvAsInt("BREAKER_HALF_OPEN_SUCCESSES", 1),
		},
		JournalCapacity: getEnvAsInt("JOURNAL_CAPACITY", 1000),
		Gateways:        make(map[string]adapter.Config),
	}

	for _, name := range splitList(getEnv("GATEWAYS", "bogus")) {
		cfg.Gateways[name] = GatewayConfig(name)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// GatewayConfig reads the settings of one gateway. Test mode is on unless
// GATEWAY_<NAME>_TEST is explicitly false.
func GatewayConfig(name string) adapter.Config {
	prefix := "GATEWAY_" + envName(name) + "_"
	return adapter.Config{
		Name:     name,
		Login:    getEnv(prefix+"LOGIN", ""),
		Password: getEnv(prefix+"PASSWORD", ""),
		Test:     getEnvAsBool(prefix+"TEST", true),
		Endpoint: getEnv(prefix+"ENDPOINT", ""),
		Timeout:  getEnvAsDuration(prefix+"TIMEOUT", 30*time.Second),
	}
}

// IsProduction reports whether the server runs with production logging.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if len(c.Gateways) == 0 {
		return fmt.Errorf("GATEWAYS must name at least one gateway")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be positive")
	}
	return nil
}

func envName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration syntax ("15s") or a bare number of
// seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
