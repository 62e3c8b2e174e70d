package resolver

import (
	"time"

	"github.com/lumenhq/entitlements/pkg/grants"
	"github.com/lumenhq/entitlements/pkg/subscription"
)

// Tier is the three-valued access classification that governs feature
// gating.
type Tier string

const (
	// TierFree grants no gated functionality.
	TierFree Tier = "free"
	// TierWelcome is the time-boxed promotional window.
	TierWelcome Tier = "welcome"
	// TierPremium is full paid (or overridden) access.
	TierPremium Tier = "premium"
)

// AccessStatus is the resolver's sole output: a complete snapshot rebuilt
// on every triggering event and never mutated in place. All boolean
// projections are derived from Tier together, so a snapshot can never
// contradict itself.
type AccessStatus struct {
	Tier          Tier `json:"tier"`
	HasFullAccess bool `json:"has_full_access"`
	IsPremium     bool `json:"is_premium"`
	IsWelcome     bool `json:"is_welcome"`
	IsFree        bool `json:"is_free"`

	WelcomeRemainingMs int64      `json:"welcome_remaining_ms"`
	WelcomeExpiresAt   *time.Time `json:"welcome_expires_at,omitempty"`

	IsTrialActive         bool       `json:"is_trial_active"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`

	// IsLoading is true until the first subscription resolution (success,
	// unavailable, or error) has happened; it flips to false exactly once
	// for the life of the session.
	IsLoading bool `json:"is_loading"`
}

// WelcomeRemainingLabel renders the countdown for display, e.g. "1h 30m".
func (s AccessStatus) WelcomeRemainingLabel() string {
	return grants.FormatRemaining(time.Duration(s.WelcomeRemainingMs) * time.Millisecond)
}

// computeStatus merges the three sources under the strict priority order.
// It is a pure function of its inputs; out-of-order or repeated events are
// harmless because every call rebuilds the snapshot from current state.
func computeStatus(override bool, ent *subscription.Entitlement, grant grants.WelcomeGrant, loaded bool, now time.Time) AccessStatus {
	status := AccessStatus{
		Tier:      TierFree,
		IsLoading: !loaded,
	}

	switch {
	case override:
		status.Tier = TierPremium

	case ent != nil && ent.Active:
		status.Tier = TierPremium
		status.IsTrialActive = ent.IsTrial()
		status.SubscriptionExpiresAt = ent.ExpirationDate

	case grant.ActiveAt(now):
		status.Tier = TierWelcome
		status.WelcomeRemainingMs = grant.RemainingAt(now).Milliseconds()
		expiresAt := grant.ExpiresAt
		status.WelcomeExpiresAt = &expiresAt
	}

	status.IsPremium = status.Tier == TierPremium
	status.IsWelcome = status.Tier == TierWelcome
	status.IsFree = status.Tier == TierFree
	status.HasFullAccess = status.IsPremium || status.IsWelcome

	return status
}
