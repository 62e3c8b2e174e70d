package grants

import (
	"context"
	"errors"
	"time"

	"github.com/lumenhq/entitlements/pkg/observability"
)

// instrumentedStore decorates a Store with Prometheus counters and timings.
// The backend label distinguishes postgres from firestore in dashboards.
type instrumentedStore struct {
	next    Store
	backend string
	metrics *observability.Metrics
}

// instrumentedWatchStore additionally forwards WatchGrant, so wrapping a
// watch-capable store does not hide the capability from callers that type
// assert for Watcher.
type instrumentedWatchStore struct {
	instrumentedStore
	watcher Watcher
}

// NewInstrumentedStore wraps store so every read and issuance is counted and
// timed under the given backend label. If store implements Watcher the
// returned Store does too.
func NewInstrumentedStore(store Store, backend string, metrics *observability.Metrics) Store {
	base := instrumentedStore{next: store, backend: backend, metrics: metrics}
	if w, ok := store.(Watcher); ok {
		return &instrumentedWatchStore{instrumentedStore: base, watcher: w}
	}
	return &base
}

func (s *instrumentedStore) GetGrant(ctx context.Context, userID string) (*WelcomeGrant, error) {
	start := time.Now()
	grant, err := s.next.GetGrant(ctx, userID)
	s.observe("get_grant", start, err)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.GrantReadsTotal.WithLabelValues(s.backend, outcome).Inc()
	return grant, err
}

func (s *instrumentedStore) IssueGrant(ctx context.Context, userID string) error {
	start := time.Now()
	err := s.next.IssueGrant(ctx, userID)
	s.observe("issue_grant", start, err)
	return err
}

func (s *instrumentedStore) observe(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		s.metrics.StoreErrorsTotal.WithLabelValues(operation, s.backend, errorType(err)).Inc()
	}
	s.metrics.StoreOperationsTotal.WithLabelValues(operation, s.backend, outcome).Inc()
	s.metrics.StoreOperationDuration.WithLabelValues(operation, s.backend).Observe(time.Since(start).Seconds())
}

// errorType collapses store failures into a small label set to keep
// cardinality bounded.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrProfileMissing):
		return "profile_missing"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "backend"
	}
}

func (s *instrumentedWatchStore) WatchGrant(ctx context.Context, userID string) (<-chan WelcomeGrant, func(), error) {
	return s.watcher.WatchGrant(ctx, userID)
}
