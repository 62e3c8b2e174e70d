package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"

	"github.com/lumenhq/entitlements/pkg/observability"
)

const (
	// DefaultMaxSessions bounds the number of concurrently live resolvers.
	DefaultMaxSessions = 10000
	// DefaultSessionTTL is how long an untouched session survives before
	// the janitor closes it.
	DefaultSessionTTL = 30 * time.Minute

	janitorSchedule = "@every 5m"
)

// Factory builds an unstarted resolver for a user. The manager starts it.
type Factory func(userID string) *Resolver

// Manager keeps one live resolver per active session in an LRU cache.
// Evicted, ended, and idle-expired sessions are closed so their tickers and
// listeners are released.
type Manager struct {
	factory Factory
	logger  *observability.Logger
	metrics *observability.Metrics

	sessionTTL time.Duration
	nowFn      func() time.Time

	mu           sync.Mutex
	cache        *lru.Cache[string, *Resolver]
	lastAccess   map[string]time.Time
	pendingClose []*Resolver

	cron *cron.Cron
}

// NewManager creates a session manager. maxSessions <= 0 selects
// DefaultMaxSessions.
func NewManager(factory Factory, maxSessions int, logger *observability.Logger, metrics *observability.Metrics) (*Manager, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	m := &Manager{
		factory:    factory,
		logger:     logger.WithComponent("session_manager"),
		metrics:    metrics,
		sessionTTL: DefaultSessionTTL,
		nowFn:      time.Now,
		lastAccess: make(map[string]time.Time),
	}

	cache, err := lru.NewWithEvict[string, *Resolver](maxSessions, m.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	m.cache = cache

	m.cron = cron.New()
	if _, err := m.cron.AddFunc(janitorSchedule, m.sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule session janitor: %w", err)
	}
	m.cron.Start()

	return m, nil
}

// SetSessionTTL overrides the idle expiry used by the sweep.
func (m *Manager) SetSessionTTL(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionTTL = ttl
}

// onEvict runs inside cache operations, with m.mu held. Closing here would
// hold the lock across the resolver's network teardown, so the close is
// deferred until the caller has released it.
func (m *Manager) onEvict(userID string, r *Resolver) {
	m.pendingClose = append(m.pendingClose, r)
	delete(m.lastAccess, userID)
	m.logger.WithField("user_id", userID).Debug("session resolver evicted")
}

// takePendingLocked hands the evicted resolvers to the caller, which must
// close them after releasing m.mu.
func (m *Manager) takePendingLocked() []*Resolver {
	pending := m.pendingClose
	m.pendingClose = nil
	return pending
}

func closeResolvers(rs []*Resolver) {
	for _, r := range rs {
		r.Close()
	}
}

// Resolver returns the live resolver for the user, starting a new session
// if none exists.
func (m *Manager) Resolver(ctx context.Context, userID string) *Resolver {
	m.mu.Lock()

	if r, ok := m.cache.Get(userID); ok {
		m.lastAccess[userID] = m.nowFn()
		m.mu.Unlock()
		return r
	}

	r := m.factory(userID)
	m.cache.Add(userID, r)
	m.lastAccess[userID] = m.nowFn()
	m.updateGaugeLocked()
	pending := m.takePendingLocked()
	m.mu.Unlock()

	closeResolvers(pending)
	r.Start(ctx)
	return r
}

// Peek returns the resolver without starting a session.
func (m *Manager) Peek(userID string) (*Resolver, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Peek(userID)
}

// EndSession closes and removes the user's resolver, if any.
func (m *Manager) EndSession(userID string) {
	m.mu.Lock()
	m.cache.Remove(userID)
	m.updateGaugeLocked()
	pending := m.takePendingLocked()
	m.mu.Unlock()

	closeResolvers(pending)
}

// ActiveSessions returns the number of live resolvers.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// sweep closes sessions idle longer than the TTL.
func (m *Manager) sweep() {
	m.mu.Lock()

	cutoff := m.nowFn().Add(-m.sessionTTL)
	for _, userID := range m.cache.Keys() {
		if last, ok := m.lastAccess[userID]; ok && last.Before(cutoff) {
			m.cache.Remove(userID)
		}
	}
	m.updateGaugeLocked()
	pending := m.takePendingLocked()
	m.mu.Unlock()

	closeResolvers(pending)
}

func (m *Manager) updateGaugeLocked() {
	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(m.cache.Len()))
	}
}

// Close stops the janitor and closes every live resolver.
func (m *Manager) Close() {
	m.cron.Stop()

	m.mu.Lock()
	m.cache.Purge()
	m.updateGaugeLocked()
	pending := m.takePendingLocked()
	m.mu.Unlock()

	closeResolvers(pending)
}
