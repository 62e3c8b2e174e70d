// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	ENTITLEMENTS_HOST="0.0.0.0"
//	ENTITLEMENTS_PORT="8080"
//	ENTITLEMENTS_HEALTH_PORT="9090"
//	ENTITLEMENTS_READ_TIMEOUT="15s"
//	ENTITLEMENTS_WRITE_TIMEOUT="15s"
//
// Grant store settings:
//
//	ENTITLEMENTS_GRANTS_BACKEND="postgres"  # memory, postgres, firestore
//	ENTITLEMENTS_POSTGRES_URL="postgres://localhost/entitlements"
//	ENTITLEMENTS_FIRESTORE_PROJECT="my-project"
//
// Billing provider settings:
//
//	ENTITLEMENTS_BILLING_PROVIDER="rest"  # null, rest
//	ENTITLEMENTS_BILLING_BASE_URL="https://api.billing.example"
//	ENTITLEMENTS_BILLING_API_KEY="sk_live_..."
//	ENTITLEMENTS_ENTITLEMENT_ID="premium"
//
// Override store settings (QA builds only):
//
//	ENTITLEMENTS_OVERRIDE_BACKEND="file"  # memory, file, redis
//	ENTITLEMENTS_OVERRIDE_FILE="/var/lib/entitlements/overrides.json"
//	ENTITLEMENTS_REDIS_URL="redis://localhost:6379"
//	ENTITLEMENTS_OVERRIDE_ENDPOINTS="false"
//
// Session settings:
//
//	ENTITLEMENTS_MAX_SESSIONS="10000"
//
// Observability settings:
//
//	ENTITLEMENTS_LOG_LEVEL="info"  # debug, info, warn, error
//	ENTITLEMENTS_METRICS_ENABLED="true"
//	ENTITLEMENTS_OTEL_ENABLED="true"
//	ENTITLEMENTS_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Grants: %s\n", cfg.Grants.Backend)
//
// # Related Packages
//
//   - pkg/grants: Uses grant store configuration
//   - pkg/subscription: Uses billing provider configuration
//   - pkg/observability: Uses observability configuration
package config
