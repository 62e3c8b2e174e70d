package grants

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection = "users"
	grantField      = "welcomeUnlock"
)

// FirestoreStore keeps the welcome grant as a map field on the per-user
// profile document users/{uid}. Only the grant field is ever written.
type FirestoreStore struct {
	client *firestore.Client
	nowFn  func() time.Time
}

// NewFirestoreStore creates a Firestore-backed grant store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client: client,
		nowFn:  time.Now,
	}
}

func (s *FirestoreStore) userRef(userID string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(userID)
}

// GetGrant reads the grant sub-record. A missing document or missing grant
// field yields a zero grant, not an error.
func (s *FirestoreStore) GetGrant(ctx context.Context, userID string) (*WelcomeGrant, error) {
	snap, err := s.userRef(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &WelcomeGrant{}, nil
		}
		return nil, fmt.Errorf("failed to read profile %s: %w", userID, err)
	}

	return grantFromData(snap.Data()), nil
}

// IssueGrant writes {granted, startedAt, expiresAt, version} as a single
// update of the grant field, inside a transaction so a concurrent second
// issuance observes the first. Re-issuing against a granted user is a no-op.
func (s *FirestoreStore) IssueGrant(ctx context.Context, userID string) error {
	ref := s.userRef(userID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrProfileMissing
			}
			return err
		}

		if grantFromData(snap.Data()).Granted {
			return nil
		}

		startedAt := s.nowFn()

		return tx.Update(ref, []firestore.Update{{
			FieldPath: []string{grantField},
			Value: map[string]interface{}{
				"granted":   true,
				"startedAt": startedAt,
				"expiresAt": startedAt.Add(Duration),
				"version":   Version,
			},
		}})
	})
	if err != nil {
		if errors.Is(err, ErrProfileMissing) {
			return ErrProfileMissing
		}
		return fmt.Errorf("failed to issue welcome grant for %s: %w", userID, err)
	}

	return nil
}

// WatchGrant streams the grant each time the profile document changes. The
// stream ends when the context is cancelled or stop is called.
func (s *FirestoreStore) WatchGrant(ctx context.Context, userID string) (<-chan WelcomeGrant, func(), error) {
	watchCtx, cancel := context.WithCancel(ctx)
	iter := s.userRef(userID).Snapshots(watchCtx)

	ch := make(chan WelcomeGrant, 1)

	go func() {
		defer close(ch)
		for {
			snap, err := iter.Next()
			if err != nil {
				// Cancelled stop or a terminal stream error; either way the
				// watch is over.
				return
			}
			if !snap.Exists() {
				continue
			}
			select {
			case ch <- *grantFromData(snap.Data()):
			case <-watchCtx.Done():
				return
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			iter.Stop()
		})
	}

	return ch, stop, nil
}

// grantFromData extracts the grant field from raw document data. Unknown or
// malformed fields degrade to the zero value.
func grantFromData(data map[string]interface{}) *WelcomeGrant {
	grant := &WelcomeGrant{}

	raw, ok := data[grantField].(map[string]interface{})
	if !ok {
		return grant
	}

	if v, ok := raw["granted"].(bool); ok {
		grant.Granted = v
	}
	if v, ok := raw["startedAt"].(time.Time); ok {
		grant.StartedAt = v
	}
	if v, ok := raw["expiresAt"].(time.Time); ok {
		grant.ExpiresAt = v
	}
	if v, ok := raw["version"].(int64); ok {
		grant.Version = int(v)
	}

	return grant
}
