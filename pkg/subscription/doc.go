// Package subscription wraps the remote billing backend behind a small
// client that owns availability probing, one-time initialization, identity
// binding, and the entitlement query/push surface.
//
// # Overview
//
// The package exposes three layers:
//
//   - Backend: the raw billing-provider API (configure, log in/out, fetch
//     customer info, register for push updates). RESTBackend talks to a
//     hosted provider over HTTP; NullBackend is the strategy used when no
//     billing integration is configured.
//   - Client: a per-session state machine layered over a Backend. It
//     initializes the backend at most once, degrades to an "unavailable"
//     mode on configuration failure, and converts raw customer info into
//     Entitlement snapshots.
//   - Hub: a process-wide fan-out that routes billing webhook events to the
//     listeners registered for the affected user.
//
// # States
//
// A Client moves through uninitialized -> initializing -> ready on the
// success path. A missing integration short-circuits to unavailable, and a
// configuration error lands in failed; both behave identically afterwards
// (queries return nil, subscriptions are no-ops).
//
// # Usage Example
//
//	backend := subscription.NewRESTBackend("https://api.billing.example", hub)
//	client := subscription.NewClient(backend, subscription.Config{
//		APIKey:        apiKey,
//		EntitlementID: "premium",
//	}, logger)
//
//	if err := client.Initialize(ctx); err != nil {
//		// Initialization failure is non-fatal; the client degrades.
//	}
//	ent := client.CurrentEntitlement(ctx) // nil when inactive or unavailable
package subscription
