// Package api exposes the entitlement engine over HTTP.
//
// # Overview
//
// The API is built on gorilla/mux and covers three surfaces:
//
//   - Access reads: GET the resolved AccessStatus for a user session.
//   - Grant issuance: the single write entry point collaborators call when
//     a qualifying onboarding milestone completes.
//   - Billing webhooks: the provider's push deliveries, fanned out to the
//     per-session subscription listeners.
//
// A QA-only override surface is registered when the server is configured
// with overrides enabled; production deployments leave it off.
//
// # Key Types
//
// Server wires the session manager, the grant store, and the webhook hub
// behind the router:
//
//	server := api.NewServer(manager, grantStore, overrideStore, hub, logger, metrics)
//	http.ListenAndServe(":8080", server.Router())
package api
