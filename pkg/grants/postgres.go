package grants

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore keeps the welcome grant on the user_profiles table. It has
// no change notification; callers refresh explicitly after writes.
type PostgresStore struct {
	db    *sql.DB
	nowFn func() time.Time
}

// NewPostgresStore creates a Postgres-backed grant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		nowFn: time.Now,
	}
}

// GetGrant reads the grant columns for a user. A missing profile row yields
// a zero grant, not an error.
func (s *PostgresStore) GetGrant(ctx context.Context, userID string) (*WelcomeGrant, error) {
	query := `
		SELECT welcome_granted, welcome_started_at, welcome_expires_at, welcome_version
		FROM user_profiles
		WHERE user_id = $1
	`

	var (
		granted   bool
		startedAt sql.NullTime
		expiresAt sql.NullTime
		version   sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, query, userID).Scan(&granted, &startedAt, &expiresAt, &version)
	if err == sql.ErrNoRows {
		return &WelcomeGrant{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read grant for %s: %w", userID, err)
	}

	grant := &WelcomeGrant{Granted: granted}
	if startedAt.Valid {
		grant.StartedAt = startedAt.Time
	}
	if expiresAt.Valid {
		grant.ExpiresAt = expiresAt.Time
	}
	if version.Valid {
		grant.Version = int(version.Int64)
	}

	return grant, nil
}

// IssueGrant issues the grant once. The guarded UPDATE only fires when the
// row exists and the grant was never issued before, so repeat calls leave
// the original startedAt/expiresAt/version untouched.
func (s *PostgresStore) IssueGrant(ctx context.Context, userID string) error {
	var granted bool

	err := s.db.QueryRowContext(ctx,
		`SELECT welcome_granted FROM user_profiles WHERE user_id = $1`, userID,
	).Scan(&granted)
	if err == sql.ErrNoRows {
		return ErrProfileMissing
	}
	if err != nil {
		return fmt.Errorf("failed to check grant for %s: %w", userID, err)
	}

	if granted {
		return nil
	}

	startedAt := s.nowFn()

	query := `
		UPDATE user_profiles
		SET welcome_granted = TRUE,
		    welcome_started_at = $2,
		    welcome_expires_at = $3,
		    welcome_version = $4
		WHERE user_id = $1 AND welcome_granted = FALSE
	`

	if _, err := s.db.ExecContext(ctx, query, userID, startedAt, startedAt.Add(Duration), Version); err != nil {
		return fmt.Errorf("failed to issue welcome grant for %s: %w", userID, err)
	}

	return nil
}
