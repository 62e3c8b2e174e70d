package subscription

import "context"

// NullBackend is the strategy for deployments without a billing integration.
// Configure reports the integration unavailable, which moves the owning
// Client into its degraded mode; nothing else is ever called.
type NullBackend struct{}

// NewNullBackend creates the no-integration backend.
func NewNullBackend() *NullBackend {
	return &NullBackend{}
}

// Configure always reports the integration absent.
func (b *NullBackend) Configure(ctx context.Context, apiKey string) error {
	return ErrBackendUnavailable
}

// LogIn is a no-op.
func (b *NullBackend) LogIn(ctx context.Context, userID string) error { return nil }

// LogOut is a no-op.
func (b *NullBackend) LogOut(ctx context.Context) error { return nil }

// GetCustomerInfo reports no entitlements.
func (b *NullBackend) GetCustomerInfo(ctx context.Context) (*CustomerInfo, error) {
	return &CustomerInfo{}, nil
}

// AddCustomerInfoUpdateListener never delivers updates.
func (b *NullBackend) AddCustomerInfoUpdateListener(callback func(*CustomerInfo)) ListenerHandle {
	return nil
}
