package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenhq/entitlements/pkg/grants"
	"github.com/lumenhq/entitlements/pkg/observability"
	"github.com/lumenhq/entitlements/pkg/override"
	"github.com/lumenhq/entitlements/pkg/subscription"
)

// DefaultTickInterval is the welcome-countdown re-evaluation period.
const DefaultTickInterval = 60 * time.Second

// Recomputation triggers, used as the metric label.
const (
	triggerInitial          = "initial"
	triggerSubscriptionPush = "subscription_push"
	triggerGrantChange      = "grant_change"
	triggerGrantRefresh     = "grant_refresh"
	triggerTick             = "tick"
)

// Sources are the three inputs a resolver merges. Grants and Overrides are
// required; Subscription may wrap a NullBackend when no billing integration
// exists.
type Sources struct {
	Grants       grants.Store
	Subscription *subscription.Client
	Overrides    override.Store
}

// Resolver owns access resolution for a single user session. It caches the
// last snapshot of each source, recomputes the full AccessStatus on every
// event, and manages the welcome-countdown ticker. Construct with
// NewResolver, call Start once, and Close on session end.
type Resolver struct {
	userID  string
	sources Sources
	logger  *observability.Logger
	metrics *observability.Metrics

	nowFn        func() time.Time
	tickInterval time.Duration

	mu          sync.Mutex
	status      AccessStatus
	grant       grants.WelcomeGrant
	entitlement *subscription.Entitlement
	override    bool
	loaded      bool
	subscribers map[string]func(AccessStatus)
	tickerStop  chan struct{}
	closed      bool

	runCtx    context.Context
	runCancel context.CancelFunc
	cleanup   []func()
	closeOnce sync.Once
}

// NewResolver creates a resolver for one user. It does nothing until Start.
func NewResolver(userID string, sources Sources, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	r := &Resolver{
		userID:       userID,
		sources:      sources,
		logger:       logger.WithComponent("resolver").WithField("user_id", userID),
		metrics:      metrics,
		nowFn:        time.Now,
		tickInterval: DefaultTickInterval,
		subscribers:  make(map[string]func(AccessStatus)),
	}
	// Status must be coherent before Start has run: free tier, loading,
	// no entitlement. Callers can observe the resolver between
	// construction and the first resolution.
	r.status = computeStatus(false, nil, grants.WelcomeGrant{}, false, r.nowFn())
	return r
}

// SetNow overrides the resolver's clock. Test hook; call before Start.
func (r *Resolver) SetNow(nowFn func() time.Time) {
	r.nowFn = nowFn
}

// SetTickInterval overrides the countdown period. Test hook; call before
// Start.
func (r *Resolver) SetTickInterval(interval time.Duration) {
	r.tickInterval = interval
}

// Start reads the override flag, primes the grant snapshot, wires the
// subscription push listener, performs the initial entitlement query, and
// produces the first AccessStatus. Source failures degrade to "absent";
// Start itself never fails. The first subscription resolution, error
// included, flips IsLoading to false permanently.
func (r *Resolver) Start(ctx context.Context) {
	r.runCtx, r.runCancel = context.WithCancel(context.Background())

	// The override is a local test toggle, read once per session.
	enabled, err := r.sources.Overrides.Enabled(ctx, r.userID)
	if err != nil {
		r.logger.WithError(err).Warn("override read failed, treating as disabled")
		enabled = false
	}

	grant, err := r.sources.Grants.GetGrant(ctx, r.userID)
	if err != nil {
		r.logger.WithError(err).Warn("grant read failed, treating as absent")
		grant = &grants.WelcomeGrant{}
	}

	r.mu.Lock()
	r.override = enabled
	r.grant = *grant
	r.mu.Unlock()

	if watcher, ok := r.sources.Grants.(grants.Watcher); ok {
		r.watchGrant(watcher)
	}

	unsubscribe := r.sources.Subscription.Subscribe(func(ent *subscription.Entitlement) {
		r.mu.Lock()
		r.entitlement = ent
		r.mu.Unlock()
		r.recompute(triggerSubscriptionPush)
	})
	r.addCleanup(unsubscribe)

	// CurrentEntitlement degrades to nil on every failure mode, so this
	// always counts as the first resolution.
	ent := r.sources.Subscription.CurrentEntitlement(ctx)
	if r.metrics != nil {
		outcome := "ok"
		if ent == nil {
			outcome = "none"
		}
		r.metrics.SubscriptionQueriesTotal.WithLabelValues(outcome).Inc()
	}

	r.mu.Lock()
	r.entitlement = ent
	r.loaded = true
	r.mu.Unlock()

	r.recompute(triggerInitial)
}

// addCleanup registers a teardown function for Close. If the session was
// already closed while Start was still wiring sources, the function runs
// immediately instead of leaking.
func (r *Resolver) addCleanup(fn func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		fn()
		return
	}
	r.cleanup = append(r.cleanup, fn)
	r.mu.Unlock()
}

func (r *Resolver) watchGrant(watcher grants.Watcher) {
	ch, stop, err := watcher.WatchGrant(r.runCtx, r.userID)
	if err != nil {
		r.logger.WithError(err).Warn("grant watch unavailable, relying on explicit refresh")
		return
	}
	r.addCleanup(stop)

	go func() {
		for {
			select {
			case <-r.runCtx.Done():
				return
			case grant, ok := <-ch:
				if !ok {
					return
				}
				r.mu.Lock()
				r.grant = grant
				r.mu.Unlock()
				r.recompute(triggerGrantChange)
			}
		}
	}()
}

// RefreshGrant re-reads the grant record on demand, for stores without
// change notification. Read failures leave the last snapshot in place.
func (r *Resolver) RefreshGrant(ctx context.Context) {
	grant, err := r.sources.Grants.GetGrant(ctx, r.userID)
	if err != nil {
		r.logger.WithError(err).Warn("grant refresh failed, keeping last snapshot")
		return
	}

	r.mu.Lock()
	r.grant = *grant
	r.mu.Unlock()
	r.recompute(triggerGrantRefresh)
}

// recompute rebuilds the AccessStatus from current source snapshots,
// reconciles the countdown ticker against the new tier, and notifies
// subscribers outside the lock.
func (r *Resolver) recompute(trigger string) {
	start := time.Now()
	r.mu.Lock()
	status := computeStatus(r.override, r.entitlement, r.grant, r.loaded, r.nowFn())
	r.status = status

	callbacks := make([]func(AccessStatus), 0, len(r.subscribers))
	for _, cb := range r.subscribers {
		callbacks = append(callbacks, cb)
	}

	r.reconcileTickerLocked(status)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ResolutionsTotal.WithLabelValues(trigger, string(status.Tier)).Inc()
		r.metrics.ResolutionDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	}

	for _, cb := range callbacks {
		r.notify(cb, status)
	}
}

// notify invokes a subscriber callback. A panicking subscriber must not
// take down the resolver or starve the remaining subscribers.
func (r *Resolver) notify(cb func(AccessStatus), status AccessStatus) {
	defer observability.RecoverPanic(r.logger, "access status subscriber")
	cb(status)
}

// reconcileTickerLocked starts the countdown ticker when the welcome window
// is live and stops it the moment the tier moves away from welcome, not
// only at expiry. Caller holds r.mu.
func (r *Resolver) reconcileTickerLocked(status AccessStatus) {
	want := status.Tier == TierWelcome && status.WelcomeRemainingMs > 0

	switch {
	case want && r.tickerStop == nil:
		stop := make(chan struct{})
		r.tickerStop = stop

		go func() {
			ticker := time.NewTicker(r.tickInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-r.runCtx.Done():
					return
				case <-ticker.C:
					r.recompute(triggerTick)
				}
			}
		}()

	case !want && r.tickerStop != nil:
		close(r.tickerStop)
		r.tickerStop = nil
	}
}

// Status returns the latest snapshot.
func (r *Resolver) Status() AccessStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Subscribe registers a callback invoked with every fresh snapshot. The
// returned unsubscribe is idempotent.
func (r *Resolver) Subscribe(callback func(AccessStatus)) func() {
	id := uuid.New().String()

	r.mu.Lock()
	r.subscribers[id] = callback
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers, id)
			r.mu.Unlock()
		})
	}
}

// UserID returns the user this resolver serves.
func (r *Resolver) UserID() string {
	return r.userID
}

// Close releases the ticker, the grant watch, and the subscription
// listener. Safe to call multiple times.
func (r *Resolver) Close() {
	r.closeOnce.Do(func() {
		if r.runCancel != nil {
			r.runCancel()
		}

		r.mu.Lock()
		r.closed = true
		if r.tickerStop != nil {
			close(r.tickerStop)
			r.tickerStop = nil
		}
		cleanup := r.cleanup
		r.cleanup = nil
		r.mu.Unlock()

		for _, fn := range cleanup {
			fn()
		}

		// Unbind the billing identity; skipped internally when the
		// backend never initialized.
		if r.sources.Subscription != nil {
			if err := r.sources.Subscription.Forget(context.Background()); err != nil {
				r.logger.WithError(err).Debug("billing forget failed on session close")
			}
		}
	})
}
