package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/qmuntal/stateless"
	"golang.org/x/sync/singleflight"

	"github.com/lumenhq/entitlements/pkg/observability"
)

// Lifecycle states of a Client.
const (
	StateUninitialized = "uninitialized"
	StateInitializing  = "initializing"
	StateReady         = "ready"
	StateUnavailable   = "unavailable"
	StateFailed        = "failed"
)

const (
	triggerInitialize  = "initialize"
	triggerConfigured  = "configured"
	triggerUnavailable = "mark_unavailable"
	triggerFail        = "fail"
)

// Config holds the provider credentials and the entitlement this client
// resolves.
type Config struct {
	// APIKey authenticates against the billing provider.
	APIKey string
	// EntitlementID names the entitlement looked up in the provider's
	// active-entitlements map, e.g. "premium".
	EntitlementID string
}

// Client layers lifecycle management over a Backend: at-most-once
// initialization, identity binding, and the entitlement pull/push surface.
// All query failures degrade to a nil entitlement; the only error Initialize
// surfaces is a configuration failure, and even that leaves the client in a
// usable degraded mode.
type Client struct {
	backend Backend
	config  Config
	logger  *observability.Logger

	mu      sync.Mutex
	machine *stateless.StateMachine
	sf      singleflight.Group
	initErr error
}

// NewClient creates a client over the given backend. The client starts
// uninitialized; call Initialize before querying.
func NewClient(backend Backend, config Config, logger *observability.Logger) *Client {
	machine := stateless.NewStateMachine(StateUninitialized)

	machine.Configure(StateUninitialized).
		Permit(triggerInitialize, StateInitializing)

	machine.Configure(StateInitializing).
		Permit(triggerConfigured, StateReady).
		Permit(triggerUnavailable, StateUnavailable).
		Permit(triggerFail, StateFailed)

	machine.Configure(StateReady)
	machine.Configure(StateUnavailable)
	machine.Configure(StateFailed)

	return &Client{
		backend: backend,
		config:  config,
		logger:  logger.WithComponent("subscription_client"),
		machine: machine,
	}
}

// State returns the client's current lifecycle state.
func (c *Client) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.MustState().(string)
}

// Ready reports whether the backend was configured successfully.
func (c *Client) Ready() bool {
	return c.State() == StateReady
}

func (c *Client) fire(trigger string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.machine.Fire(trigger); err != nil {
		// A rejected trigger means a lifecycle bug, not a runtime
		// condition; log it rather than panic.
		c.logger.WithError(err).Errorf("invalid lifecycle transition %q", trigger)
	}
}

// Initialize configures the backend exactly once. Concurrent callers share a
// single configuration attempt; later callers observe the recorded outcome.
// An unavailable integration is not an error. A configuration failure is
// returned once and leaves the client permanently degraded.
func (c *Client) Initialize(ctx context.Context) error {
	_, err, _ := c.sf.Do("initialize", func() (interface{}, error) {
		if c.State() != StateUninitialized {
			return nil, c.initErr
		}

		c.fire(triggerInitialize)

		err := c.backend.Configure(ctx, c.config.APIKey)
		switch {
		case errors.Is(err, ErrBackendUnavailable):
			c.logger.Info("billing backend unavailable, degrading to free-only resolution")
			c.fire(triggerUnavailable)
			return nil, nil
		case err != nil:
			c.initErr = fmt.Errorf("failed to configure billing backend: %w", err)
			c.logger.WithError(err).Error("billing backend configuration failed")
			c.fire(triggerFail)
			return nil, c.initErr
		default:
			c.fire(triggerConfigured)
			return nil, nil
		}
	})
	return err
}

// Identify binds the backend to the given user. Skipped with a debug log
// when the backend never became ready.
func (c *Client) Identify(ctx context.Context, userID string) error {
	if !c.Ready() {
		c.logger.WithField("user_id", userID).Debug("skipping identify, backend not ready")
		return nil
	}

	if err := c.backend.LogIn(ctx, userID); err != nil {
		return fmt.Errorf("failed to identify user %s: %w", userID, err)
	}

	return nil
}

// Forget unbinds the current user. It is deliberately skipped when the
// backend was never configured, so logout never touches an unconfigured
// integration.
func (c *Client) Forget(ctx context.Context) error {
	if !c.Ready() {
		c.logger.Debug("skipping forget, backend not ready")
		return nil
	}

	if err := c.backend.LogOut(ctx); err != nil {
		return fmt.Errorf("failed to forget user: %w", err)
	}

	return nil
}

// CurrentEntitlement fetches the user's entitlement. It returns nil, never
// an error: unavailable backends and failed queries both read as "no
// entitlement" for this resolution cycle.
func (c *Client) CurrentEntitlement(ctx context.Context) *Entitlement {
	if !c.Ready() {
		return nil
	}

	info, err := c.backend.GetCustomerInfo(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("entitlement query failed, treating as absent")
		return nil
	}

	return info.EntitlementFor(c.config.EntitlementID)
}

// Subscribe registers for pushed entitlement changes. The callback receives
// nil when a push shows the entitlement gone. The returned unsubscribe is
// idempotent and always safe to call, including when the backend is
// unavailable or the listener handle is nil.
func (c *Client) Subscribe(callback func(*Entitlement)) func() {
	if !c.Ready() {
		return func() {}
	}

	handle := c.backend.AddCustomerInfoUpdateListener(func(info *CustomerInfo) {
		callback(info.EntitlementFor(c.config.EntitlementID))
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			if handle != nil {
				handle.Remove()
			}
		})
	}
}
