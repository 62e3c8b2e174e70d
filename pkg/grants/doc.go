// Package grants owns the time-boxed welcome unlock: a one-time 24-hour
// promotional access window recorded on the user's profile document.
//
// # Overview
//
// The grant lives as a sub-record on the per-user profile document. Issuance
// is idempotent (a second issue against an already-granted user is a no-op)
// and requires the profile document to exist; it never creates it. Once
// written, the expiry is immutable — there is no extension or revocation
// path.
//
// # Backends
//
// Three Store implementations are provided:
//
//   - FirestoreStore: the primary backend; the grant is the "welcomeUnlock"
//     map field on users/{uid}, updated atomically and watchable through
//     document snapshots.
//   - PostgresStore: a relational alternative keyed on user_profiles.
//   - MemoryStore: in-process, for tests and local development.
//
// # Usage Example
//
//	grant, err := store.GetGrant(ctx, userID)
//	if err == nil && grant.ActiveAt(time.Now()) {
//		fmt.Println(grants.FormatRemaining(grant.RemainingAt(time.Now())))
//	}
package grants
