package grants

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process grant store with channel-based watches, used
// in tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]*WelcomeGrant
	watchers map[string][]chan WelcomeGrant
	nowFn    func() time.Time
}

// NewMemoryStore creates an empty in-memory grant store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*WelcomeGrant),
		watchers: make(map[string][]chan WelcomeGrant),
		nowFn:    time.Now,
	}
}

// SetNow overrides the store's clock. Test hook.
func (s *MemoryStore) SetNow(nowFn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = nowFn
}

// CreateProfile registers a user profile with no grant, satisfying the
// issuance precondition.
func (s *MemoryStore) CreateProfile(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; !ok {
		s.profiles[userID] = &WelcomeGrant{}
	}
}

// GetGrant returns the user's grant, or a zero grant when no profile exists.
func (s *MemoryStore) GetGrant(ctx context.Context, userID string) (*WelcomeGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.profiles[userID]
	if !ok {
		return &WelcomeGrant{}, nil
	}
	copied := *grant
	return &copied, nil
}

// IssueGrant issues the one-time grant and notifies watchers.
func (s *MemoryStore) IssueGrant(ctx context.Context, userID string) error {
	s.mu.Lock()

	grant, ok := s.profiles[userID]
	if !ok {
		s.mu.Unlock()
		return ErrProfileMissing
	}
	if grant.Granted {
		s.mu.Unlock()
		return nil
	}

	startedAt := s.nowFn()
	*grant = WelcomeGrant{
		Granted:   true,
		StartedAt: startedAt,
		ExpiresAt: startedAt.Add(Duration),
		Version:   Version,
	}

	notify := *grant
	watchers := append([]chan WelcomeGrant(nil), s.watchers[userID]...)
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- notify:
		default:
		}
	}

	return nil
}

// WatchGrant streams grant changes for a user, starting with the current
// value.
func (s *MemoryStore) WatchGrant(ctx context.Context, userID string) (<-chan WelcomeGrant, func(), error) {
	ch := make(chan WelcomeGrant, 4)

	s.mu.Lock()
	s.watchers[userID] = append(s.watchers[userID], ch)
	if grant, ok := s.profiles[userID]; ok {
		ch <- *grant
	} else {
		ch <- WelcomeGrant{}
	}
	s.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			channels := s.watchers[userID]
			for i, c := range channels {
				if c == ch {
					s.watchers[userID] = append(channels[:i], channels[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}

	return ch, stop, nil
}
