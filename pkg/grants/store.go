package grants

import "context"

// Store defines the read/write contract for the welcome grant sub-record.
type Store interface {
	// GetGrant returns the current grant for a user. An absent sub-record is
	// not an error: it returns a zero-valued grant with Granted=false.
	GetGrant(ctx context.Context, userID string) (*WelcomeGrant, error)

	// IssueGrant issues the one-time welcome grant. It is idempotent: if a
	// grant was already issued the call returns nil without modifying the
	// record. It returns ErrProfileMissing when the user's profile document
	// does not exist, and propagates write failures to the caller.
	IssueGrant(ctx context.Context, userID string) error
}

// Watcher is implemented by stores that can push grant changes. Stores
// without change notification (e.g. Postgres) simply don't implement it and
// callers fall back to explicit refresh.
type Watcher interface {
	// WatchGrant streams the grant value each time the underlying record
	// changes, starting with its current value. The returned stop function
	// is idempotent and releases the watch.
	WatchGrant(ctx context.Context, userID string) (<-chan WelcomeGrant, func(), error)
}
