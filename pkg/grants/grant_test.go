package grants

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActiveAt_GrantedAndUnexpired(t *testing.T) {
	now := time.Now()
	grant := WelcomeGrant{
		Granted:   true,
		StartedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(23 * time.Hour),
		Version:   Version,
	}

	assert.True(t, grant.ActiveAt(now))
}

func TestActiveAt_GrantedButExpired(t *testing.T) {
	now := time.Now()
	grant := WelcomeGrant{
		Granted:   true,
		StartedAt: now.Add(-25 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
		Version:   Version,
	}

	assert.False(t, grant.ActiveAt(now))
}

func TestActiveAt_NeverGranted(t *testing.T) {
	var grant WelcomeGrant
	assert.False(t, grant.ActiveAt(time.Now()))
}

func TestActiveAt_ExactExpiryBoundary(t *testing.T) {
	now := time.Now()
	grant := WelcomeGrant{Granted: true, ExpiresAt: now}

	// now < expiresAt is strict; at the boundary the grant is over.
	assert.False(t, grant.ActiveAt(now))
	assert.True(t, grant.ActiveAt(now.Add(-time.Nanosecond)))
}

func TestRemainingAt_TracksExpiry(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	grant := WelcomeGrant{
		Granted:   true,
		StartedAt: start,
		ExpiresAt: start.Add(Duration),
		Version:   Version,
	}

	// One minute before expiry.
	assert.Equal(t, time.Minute, grant.RemainingAt(start.Add(23*time.Hour+59*time.Minute)))

	// One second past expiry clamps at zero.
	assert.Equal(t, time.Duration(0), grant.RemainingAt(start.Add(Duration+time.Second)))
}

func TestRemainingAt_NeverGranted(t *testing.T) {
	var grant WelcomeGrant
	assert.Equal(t, time.Duration(0), grant.RemainingAt(time.Now()))
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"zero is expired", 0, "Expired"},
		{"negative is expired", -time.Minute, "Expired"},
		{"ninety minutes", 90 * time.Minute, "1h 30m"},
		{"exactly one hour", time.Hour, "1h 0m"},
		{"forty five minutes", 45 * time.Minute, "45m"},
		{"exactly one minute", time.Minute, "1m"},
		{"thirty seconds", 30 * time.Second, "Less than 1m"},
		{"full window", Duration, "24h 0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatRemaining(tt.d))
		})
	}
}
