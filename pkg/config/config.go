package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lumenhq/entitlements/pkg/observability"
)

// Grant store backends.
const (
	GrantsBackendMemory    = "memory"
	GrantsBackendPostgres  = "postgres"
	GrantsBackendFirestore = "firestore"
)

// Billing provider strategies.
const (
	BillingProviderNull = "null"
	BillingProviderREST = "rest"
)

// Override store backends.
const (
	OverrideBackendMemory = "memory"
	OverrideBackendFile   = "file"
	OverrideBackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Grant store configuration
	Grants GrantsConfig

	// Billing provider configuration
	Billing BillingConfig

	// Override store configuration
	Override OverrideConfig

	// Session manager configuration
	Sessions SessionsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// GrantsConfig selects and configures the welcome-grant store.
type GrantsConfig struct {
	Backend string

	// Postgres backend
	PostgresURL      string
	PostgresMaxConns int

	// Firestore backend
	FirestoreProject string
}

// BillingConfig selects and configures the billing provider.
type BillingConfig struct {
	Provider      string
	BaseURL       string
	APIKey        string
	EntitlementID string
}

// OverrideConfig selects and configures the QA override store.
type OverrideConfig struct {
	Backend string

	// File backend
	FilePath string

	// Redis backend
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// EnableEndpoints registers the override HTTP surface.
	EnableEndpoints bool
}

// SessionsConfig bounds the session manager.
type SessionsConfig struct {
	MaxSessions int
	SessionTTL  time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Grants:        loadGrantsConfig(),
		Billing:       loadBillingConfig(),
		Override:      loadOverrideConfig(),
		Sessions:      loadSessionsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ENTITLEMENTS_HOST", "0.0.0.0"),
		Port:            getEnv("ENTITLEMENTS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ENTITLEMENTS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ENTITLEMENTS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ENTITLEMENTS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ENTITLEMENTS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ENTITLEMENTS_HEALTH_PORT", "9090"),
	}
}

// loadGrantsConfig loads grant store configuration from environment
func loadGrantsConfig() GrantsConfig {
	return GrantsConfig{
		Backend:          getEnv("ENTITLEMENTS_GRANTS_BACKEND", GrantsBackendMemory),
		PostgresURL:      getEnv("ENTITLEMENTS_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("ENTITLEMENTS_POSTGRES_MAX_CONNS", 20),
		FirestoreProject: getEnv("ENTITLEMENTS_FIRESTORE_PROJECT", ""),
	}
}

// loadBillingConfig loads billing provider configuration from environment
func loadBillingConfig() BillingConfig {
	return BillingConfig{
		Provider:      getEnv("ENTITLEMENTS_BILLING_PROVIDER", BillingProviderNull),
		BaseURL:       getEnv("ENTITLEMENTS_BILLING_BASE_URL", ""),
		APIKey:        getEnv("ENTITLEMENTS_BILLING_API_KEY", ""),
		EntitlementID: getEnv("ENTITLEMENTS_ENTITLEMENT_ID", "premium"),
	}
}

// loadOverrideConfig loads override store configuration from environment
func loadOverrideConfig() OverrideConfig {
	return OverrideConfig{
		Backend:         getEnv("ENTITLEMENTS_OVERRIDE_BACKEND", OverrideBackendMemory),
		FilePath:        getEnv("ENTITLEMENTS_OVERRIDE_FILE", ""),
		RedisURL:        getEnv("ENTITLEMENTS_REDIS_URL", ""),
		RedisPassword:   getEnv("ENTITLEMENTS_REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("ENTITLEMENTS_REDIS_DB", 0),
		EnableEndpoints: getEnvBool("ENTITLEMENTS_OVERRIDE_ENDPOINTS", false),
	}
}

// loadSessionsConfig loads session manager configuration from environment
func loadSessionsConfig() SessionsConfig {
	return SessionsConfig{
		MaxSessions: getEnvInt("ENTITLEMENTS_MAX_SESSIONS", 10000),
		SessionTTL:  getEnvDuration("ENTITLEMENTS_SESSION_TTL", 30*time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("ENTITLEMENTS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("ENTITLEMENTS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("ENTITLEMENTS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ENTITLEMENTS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ENTITLEMENTS_OTEL_SERVICE_NAME", "entitlements"),
		OTelServiceVersion: getEnv("ENTITLEMENTS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ENTITLEMENTS_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate grant store config based on backend
	switch c.Grants.Backend {
	case GrantsBackendMemory:
	case GrantsBackendPostgres:
		if c.Grants.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres grant store")
		}
	case GrantsBackendFirestore:
		if c.Grants.FirestoreProject == "" {
			return fmt.Errorf("firestore project is required for firestore grant store")
		}
	default:
		return fmt.Errorf("invalid grants backend: %s (must be memory, postgres, or firestore)", c.Grants.Backend)
	}

	// Validate billing provider config
	switch c.Billing.Provider {
	case BillingProviderNull:
	case BillingProviderREST:
		if c.Billing.BaseURL == "" {
			return fmt.Errorf("billing base URL is required for rest provider")
		}
		if c.Billing.APIKey == "" {
			return fmt.Errorf("billing API key is required for rest provider")
		}
	default:
		return fmt.Errorf("invalid billing provider: %s (must be null or rest)", c.Billing.Provider)
	}
	if c.Billing.EntitlementID == "" {
		return fmt.Errorf("entitlement ID is required")
	}

	// Validate override store config
	switch c.Override.Backend {
	case OverrideBackendMemory:
	case OverrideBackendFile:
		if c.Override.FilePath == "" {
			return fmt.Errorf("override file path is required for file override store")
		}
	case OverrideBackendRedis:
		if c.Override.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis override store")
		}
	default:
		return fmt.Errorf("invalid override backend: %s (must be memory, file, or redis)", c.Override.Backend)
	}

	if c.Sessions.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}


// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
