package grants

import (
	"fmt"
	"time"
)

const (
	// Duration is the length of the welcome unlock window, fixed at issuance.
	Duration = 24 * time.Hour

	// Version tags the grant policy in effect when the grant was issued.
	Version = 1
)

// WelcomeGrant is the grant sub-record stored on the user's profile document.
// A zero value means no grant has ever been issued.
type WelcomeGrant struct {
	Granted   bool      `firestore:"granted" json:"granted"`
	StartedAt time.Time `firestore:"startedAt" json:"started_at"`
	ExpiresAt time.Time `firestore:"expiresAt" json:"expires_at"`
	Version   int       `firestore:"version" json:"version"`
}

// ActiveAt reports whether the grant confers access at the given instant.
func (g WelcomeGrant) ActiveAt(now time.Time) bool {
	return g.Granted && now.Before(g.ExpiresAt)
}

// RemainingAt returns the time left on the grant at the given instant,
// clamped at zero.
func (g WelcomeGrant) RemainingAt(now time.Time) time.Duration {
	if !g.Granted {
		return 0
	}
	remaining := g.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormatRemaining renders a remaining duration for display.
// Zero (or negative) yields "Expired"; at least an hour yields "{h}h {m}m";
// at least a minute yields "{m}m"; anything shorter yields "Less than 1m".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}

	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case hours >= 1:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes >= 1:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "Less than 1m"
	}
}
