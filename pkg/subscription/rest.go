package subscription

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Hub fans pushed customer-info updates out to the listeners registered for
// the affected user. One Hub serves the whole process; billing webhook
// deliveries feed it, per-session backends subscribe to it.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]map[string]func(*CustomerInfo)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[string]map[string]func(*CustomerInfo)),
	}
}

// Register adds a listener for one user and returns its removal token.
func (h *Hub) Register(userID string, callback func(*CustomerInfo)) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	if h.listeners[userID] == nil {
		h.listeners[userID] = make(map[string]func(*CustomerInfo))
	}
	h.listeners[userID][id] = callback

	return id
}

// Unregister removes a listener by its token. Unknown tokens are ignored.
func (h *Hub) Unregister(userID, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if callbacks, ok := h.listeners[userID]; ok {
		delete(callbacks, id)
		if len(callbacks) == 0 {
			delete(h.listeners, userID)
		}
	}
}

// Dispatch delivers a customer-info update to every listener registered for
// the user.
func (h *Hub) Dispatch(userID string, info *CustomerInfo) {
	h.mu.RLock()
	callbacks := make([]func(*CustomerInfo), 0, len(h.listeners[userID]))
	for _, cb := range h.listeners[userID] {
		callbacks = append(callbacks, cb)
	}
	h.mu.RUnlock()

	for _, cb := range callbacks {
		cb(info)
	}
}

// ListenerCount returns the number of listeners registered for a user.
func (h *Hub) ListenerCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[userID])
}

// RESTBackend talks to a hosted billing provider over its subscriber HTTP
// API. Push delivery comes from the provider's webhooks via the shared Hub
// rather than a persistent connection.
type RESTBackend struct {
	client *resty.Client
	hub    *Hub

	mu     sync.Mutex
	userID string
}

// NewRESTBackend creates a backend against the provider base URL. A nil hub
// disables push delivery; queries still work.
func NewRESTBackend(baseURL string, hub *Hub) *RESTBackend {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &RESTBackend{
		client: client,
		hub:    hub,
	}
}

// Configure installs the provider API key. An empty key means this
// deployment has no billing integration.
func (b *RESTBackend) Configure(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return ErrBackendUnavailable
	}

	b.client.SetAuthToken(apiKey)
	return nil
}

// LogIn binds the backend to a user and verifies the subscriber exists on
// the provider side.
func (b *RESTBackend) LogIn(ctx context.Context, userID string) error {
	b.mu.Lock()
	b.userID = userID
	b.mu.Unlock()

	resp, err := b.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/v1/subscribers/%s", userID))
	if err != nil {
		return fmt.Errorf("failed to log in subscriber %s: %w", userID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to log in subscriber %s: status %d", userID, resp.StatusCode())
	}

	return nil
}

// LogOut clears the bound user.
func (b *RESTBackend) LogOut(ctx context.Context) error {
	b.mu.Lock()
	b.userID = ""
	b.mu.Unlock()
	return nil
}

func (b *RESTBackend) currentUser() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userID
}

// GetCustomerInfo fetches the bound user's subscriber record.
func (b *RESTBackend) GetCustomerInfo(ctx context.Context) (*CustomerInfo, error) {
	userID := b.currentUser()
	if userID == "" {
		return nil, fmt.Errorf("no user identified")
	}

	var info CustomerInfo
	resp, err := b.client.R().
		SetContext(ctx).
		SetResult(&info).
		Get(fmt.Sprintf("/v1/subscribers/%s", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer info for %s: %w", userID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		// Unknown subscribers hold no entitlements.
		return &CustomerInfo{UserID: userID}, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch customer info for %s: status %d", userID, resp.StatusCode())
	}

	return &info, nil
}

type hubListenerHandle struct {
	hub    *Hub
	userID string
	id     string
}

func (h *hubListenerHandle) Remove() {
	h.hub.Unregister(h.userID, h.id)
}

// AddCustomerInfoUpdateListener registers the callback for webhook pushes
// about the bound user. Without a hub or a bound user there is nothing to
// listen to, so the handle is nil.
func (b *RESTBackend) AddCustomerInfoUpdateListener(callback func(*CustomerInfo)) ListenerHandle {
	userID := b.currentUser()
	if b.hub == nil || userID == "" {
		return nil
	}

	id := b.hub.Register(userID, callback)
	return &hubListenerHandle{hub: b.hub, userID: userID, id: id}
}
