package subscription

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable is returned by Configure when no billing integration
// exists for this deployment. The client treats it as a benign degradation,
// not a failure.
var ErrBackendUnavailable = errors.New("subscription: billing backend unavailable")

// CustomerEntitlement is one entry of the provider's active-entitlements map.
type CustomerEntitlement struct {
	PeriodType        string     `json:"period_type"`
	ExpirationDate    *time.Time `json:"expires_date"`
	WillRenew         bool       `json:"will_renew"`
	ProductIdentifier string     `json:"product_identifier"`
}

// CustomerInfo is the provider's view of a subscriber, reduced to the
// entitlement surface this engine consumes.
type CustomerInfo struct {
	UserID       string `json:"user_id"`
	Entitlements struct {
		Active map[string]CustomerEntitlement `json:"active"`
	} `json:"entitlements"`
}

// EntitlementFor extracts the named entitlement as a snapshot, or nil when
// the user does not hold it.
func (c *CustomerInfo) EntitlementFor(entitlementID string) *Entitlement {
	if c == nil {
		return nil
	}

	raw, ok := c.Entitlements.Active[entitlementID]
	if !ok {
		return nil
	}

	return &Entitlement{
		Active:            true,
		PeriodType:        ParsePeriodType(raw.PeriodType),
		ExpirationDate:    raw.ExpirationDate,
		WillRenew:         raw.WillRenew,
		ProductIdentifier: raw.ProductIdentifier,
	}
}

// ListenerHandle detaches a previously registered customer-info listener.
type ListenerHandle interface {
	Remove()
}

// Backend is the raw billing-provider surface. Implementations must be safe
// for concurrent use once Configure has returned.
type Backend interface {
	// Configure prepares the backend with provider credentials. It is
	// called at most once per backend instance. ErrBackendUnavailable
	// signals that no integration exists rather than a transient failure.
	Configure(ctx context.Context, apiKey string) error

	// LogIn binds the backend to a user identity.
	LogIn(ctx context.Context, userID string) error

	// LogOut clears the bound identity.
	LogOut(ctx context.Context) error

	// GetCustomerInfo fetches the current subscriber record for the bound
	// user.
	GetCustomerInfo(ctx context.Context) (*CustomerInfo, error)

	// AddCustomerInfoUpdateListener registers a callback invoked on every
	// pushed customer-info change for the bound user. The returned handle
	// may be nil when the backend cannot deliver pushes.
	AddCustomerInfoUpdateListener(callback func(*CustomerInfo)) ListenerHandle
}
