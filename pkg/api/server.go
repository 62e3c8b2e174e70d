package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lumenhq/entitlements/pkg/grants"
	"github.com/lumenhq/entitlements/pkg/observability"
	"github.com/lumenhq/entitlements/pkg/override"
	"github.com/lumenhq/entitlements/pkg/resolver"
	"github.com/lumenhq/entitlements/pkg/subscription"
)

// Server is the HTTP surface of the entitlement engine.
type Server struct {
	router    *mux.Router
	manager   *resolver.Manager
	grants    grants.Store
	overrides override.Store
	hub       *subscription.Hub
	logger    *observability.Logger
	metrics   *observability.Metrics

	// overridesEnabled gates the QA override endpoints.
	overridesEnabled bool
}

// Option configures optional server behavior.
type Option func(*Server)

// WithOverrideEndpoints registers the QA override toggle routes. Never
// enable this in production.
func WithOverrideEndpoints() Option {
	return func(s *Server) {
		s.overridesEnabled = true
	}
}

// NewServer creates the API server and registers its routes.
func NewServer(manager *resolver.Manager, grantStore grants.Store, overrideStore override.Store, hub *subscription.Hub, logger *observability.Logger, metrics *observability.Metrics, opts ...Option) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		manager:   manager,
		grants:    grantStore,
		overrides: overrideStore,
		hub:       hub,
		logger:    logger.WithComponent("api"),
		metrics:   metrics,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Access resolution routes
	s.router.HandleFunc("/v1/users/{userID}/access", s.getAccess).Methods("GET")
	s.router.HandleFunc("/v1/users/{userID}/session", s.endSession).Methods("DELETE")

	// Grant issuance, the engine's only write entry point
	s.router.HandleFunc("/v1/users/{userID}/welcome-grant", s.issueWelcomeGrant).Methods("POST")
	s.router.HandleFunc("/v1/users/{userID}/welcome-grant", s.getWelcomeGrant).Methods("GET")

	// Billing provider webhooks
	s.router.HandleFunc("/v1/webhooks/billing", s.handleBillingWebhook).Methods("POST")

	// QA-only override toggles
	if s.overridesEnabled {
		s.router.HandleFunc("/v1/users/{userID}/override", s.setOverride).Methods("PUT")
		s.router.HandleFunc("/v1/users/{userID}/override", s.getOverride).Methods("GET")
	}
}

// Router returns the configured handler for mounting middleware and serving.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP makes the server mountable directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
