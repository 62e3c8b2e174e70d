package resolver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/entitlements/pkg/grants"
	"github.com/lumenhq/entitlements/pkg/override"
	"github.com/lumenhq/entitlements/pkg/subscription"
)

func newTestManager(t *testing.T, maxSessions int) *Manager {
	t.Helper()

	grantStore := grants.NewMemoryStore()
	overrideStore := override.NewMemoryStore()

	factory := func(userID string) *Resolver {
		grantStore.CreateProfile(userID)
		client := subscription.NewClient(subscription.NewNullBackend(), subscription.Config{
			EntitlementID: "premium",
		}, testLogger())
		client.Initialize(context.Background())

		return NewResolver(userID, Sources{
			Grants:       grantStore,
			Subscription: client,
			Overrides:    overrideStore,
		}, testLogger(), nil)
	}

	m, err := NewManager(factory, maxSessions, testLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	return m
}

func TestManagerResolver_StartsAndReusesSession(t *testing.T) {
	m := newTestManager(t, 10)
	ctx := context.Background()

	r1 := m.Resolver(ctx, "user-1")
	require.NotNil(t, r1)
	assert.Equal(t, TierFree, r1.Status().Tier)
	assert.False(t, r1.Status().IsLoading)

	r2 := m.Resolver(ctx, "user-1")
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, m.ActiveSessions())
}

func TestManagerResolver_IndependentSessions(t *testing.T) {
	m := newTestManager(t, 10)
	ctx := context.Background()

	r1 := m.Resolver(ctx, "user-1")
	r2 := m.Resolver(ctx, "user-2")

	assert.NotSame(t, r1, r2)
	assert.Equal(t, 2, m.ActiveSessions())
}

func TestManagerEndSession_RemovesResolver(t *testing.T) {
	m := newTestManager(t, 10)

	m.Resolver(context.Background(), "user-1")
	require.Equal(t, 1, m.ActiveSessions())

	m.EndSession("user-1")
	assert.Equal(t, 0, m.ActiveSessions())

	_, ok := m.Peek("user-1")
	assert.False(t, ok)
}

func TestManager_EvictionClosesOldestSession(t *testing.T) {
	m := newTestManager(t, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.Resolver(ctx, fmt.Sprintf("user-%d", i))
	}

	assert.Equal(t, 2, m.ActiveSessions())
	_, ok := m.Peek("user-0")
	assert.False(t, ok, "oldest session should have been evicted")
}

func TestManagerSweep_ClosesIdleSessions(t *testing.T) {
	m := newTestManager(t, 10)
	m.SetSessionTTL(10 * time.Millisecond)

	m.Resolver(context.Background(), "user-1")
	time.Sleep(20 * time.Millisecond)

	m.sweep()
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestManagerSweep_KeepsFreshSessions(t *testing.T) {
	m := newTestManager(t, 10)
	m.SetSessionTTL(time.Hour)

	m.Resolver(context.Background(), "user-1")
	m.sweep()

	assert.Equal(t, 1, m.ActiveSessions())
}

// gatedGrantStore parks the first GetGrant until released, holding Start
// mid-flight so concurrent lookups can observe the session while it loads.
type gatedGrantStore struct {
	*grants.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedGrantStore) GetGrant(ctx context.Context, userID string) (*grants.WelcomeGrant, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.MemoryStore.GetGrant(ctx, userID)
}

func TestManagerResolver_ConcurrentLookupSeesLoadingSnapshot(t *testing.T) {
	store := &gatedGrantStore{
		MemoryStore: grants.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	overrideStore := override.NewMemoryStore()

	factory := func(userID string) *Resolver {
		store.CreateProfile(userID)
		client := subscription.NewClient(subscription.NewNullBackend(), subscription.Config{
			EntitlementID: "premium",
		}, testLogger())
		client.Initialize(context.Background())

		return NewResolver(userID, Sources{
			Grants:       store,
			Subscription: client,
			Overrides:    overrideStore,
		}, testLogger(), nil)
	}

	m, err := NewManager(factory, 10, testLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(store.release) }) }
	t.Cleanup(unblock)

	ctx := context.Background()
	go m.Resolver(ctx, "user-1")
	<-store.entered

	// The session is cached but Start is still reading sources. A second
	// lookup must get a coherent loading snapshot, never a zero status.
	r := m.Resolver(ctx, "user-1")
	status := r.Status()
	assert.True(t, status.IsLoading)
	assert.Equal(t, TierFree, status.Tier)
	assert.True(t, status.IsFree)

	unblock()
	require.Eventually(t, func() bool {
		return !r.Status().IsLoading
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, TierFree, r.Status().Tier)
}

// blockingLogoutBackend stalls LogOut until released, imitating a slow
// billing backend during session teardown.
type blockingLogoutBackend struct {
	pushBackend
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingLogoutBackend) LogOut(ctx context.Context) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return nil
}

func TestManagerEndSession_SlowTeardownDoesNotStallSessions(t *testing.T) {
	grantStore := grants.NewMemoryStore()
	overrideStore := override.NewMemoryStore()
	backend := &blockingLogoutBackend{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	factory := func(userID string) *Resolver {
		grantStore.CreateProfile(userID)
		return NewResolver(userID, Sources{
			Grants:       grantStore,
			Subscription: readyClient(t, backend),
			Overrides:    overrideStore,
		}, testLogger(), nil)
	}

	m, err := NewManager(factory, 10, testLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)

	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(backend.release) }) }
	t.Cleanup(unblock)

	ctx := context.Background()
	m.Resolver(ctx, "user-1")

	ended := make(chan struct{})
	go func() {
		m.EndSession("user-1")
		close(ended)
	}()
	<-backend.entered

	// Teardown is parked in the billing logout. Other sessions must not
	// queue behind it.
	opened := make(chan *Resolver, 1)
	go func() { opened <- m.Resolver(ctx, "user-2") }()

	select {
	case r := <-opened:
		require.NotNil(t, r)
	case <-time.After(2 * time.Second):
		t.Fatal("session lookup stalled behind a slow teardown")
	}
	assert.Equal(t, 1, m.ActiveSessions())

	unblock()
	<-ended
}
