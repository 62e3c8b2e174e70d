package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenhq/entitlements/pkg/grants"
	"github.com/lumenhq/entitlements/pkg/observability"
	"github.com/lumenhq/entitlements/pkg/override"
	"github.com/lumenhq/entitlements/pkg/resolver"
	"github.com/lumenhq/entitlements/pkg/subscription"
)

type apiFixture struct {
	server    *Server
	grants    *grants.MemoryStore
	overrides *override.MemoryStore
	manager   *resolver.Manager
	hub       *subscription.Hub
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newAPIFixture(t *testing.T, opts ...Option) *apiFixture {
	t.Helper()

	grantStore := grants.NewMemoryStore()
	overrideStore := override.NewMemoryStore()
	hub := subscription.NewHub()
	logger := testLogger()

	factory := func(userID string) *resolver.Resolver {
		client := subscription.NewClient(subscription.NewNullBackend(), subscription.Config{
			EntitlementID: "premium",
		}, logger)
		client.Initialize(context.Background())

		return resolver.NewResolver(userID, resolver.Sources{
			Grants:       grantStore,
			Subscription: client,
			Overrides:    overrideStore,
		}, logger, nil)
	}

	manager, err := resolver.NewManager(factory, 100, logger, nil)
	require.NoError(t, err)
	t.Cleanup(manager.Close)

	return &apiFixture{
		server:    NewServer(manager, grantStore, overrideStore, hub, logger, nil, opts...),
		grants:    grantStore,
		overrides: overrideStore,
		manager:   manager,
		hub:       hub,
	}
}

func (f *apiFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestGetAccess_FreeUser(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/v1/users/user-1/access", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status resolver.AccessStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, resolver.TierFree, status.Tier)
	assert.False(t, status.HasFullAccess)
	assert.False(t, status.IsLoading)
}

func TestGetAccess_WelcomeAfterIssuance(t *testing.T) {
	f := newAPIFixture(t)
	f.grants.CreateProfile("user-1")

	rec := f.do(http.MethodPost, "/v1/users/user-1/welcome-grant", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/users/user-1/access", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status resolver.AccessStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, resolver.TierWelcome, status.Tier)
	assert.True(t, status.HasFullAccess)
	assert.Positive(t, status.WelcomeRemainingMs)
}

func TestIssueWelcomeGrant_ProfileMissing(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/v1/users/nobody/welcome-grant", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueWelcomeGrant_Idempotent(t *testing.T) {
	f := newAPIFixture(t)
	f.grants.CreateProfile("user-1")

	first := f.do(http.MethodPost, "/v1/users/user-1/welcome-grant", nil)
	require.Equal(t, http.StatusOK, first.Code)

	var firstGrant grants.WelcomeGrant
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstGrant))

	second := f.do(http.MethodPost, "/v1/users/user-1/welcome-grant", nil)
	require.Equal(t, http.StatusOK, second.Code)

	var secondGrant grants.WelcomeGrant
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondGrant))
	assert.Equal(t, firstGrant.StartedAt, secondGrant.StartedAt)
	assert.Equal(t, firstGrant.ExpiresAt, secondGrant.ExpiresAt)
}

type failingGrantStore struct {
	*grants.MemoryStore
	issueErr error
}

func (s *failingGrantStore) IssueGrant(ctx context.Context, userID string) error {
	return s.issueErr
}

func TestIssueWelcomeGrant_WriteFailureSurfaces(t *testing.T) {
	f := newAPIFixture(t)
	f.server.grants = &failingGrantStore{
		MemoryStore: f.grants,
		issueErr:    errors.New("write failed"),
	}

	rec := f.do(http.MethodPost, "/v1/users/user-1/welcome-grant", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetWelcomeGrant_AbsentReadsAsZero(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/v1/users/user-1/welcome-grant", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var grant grants.WelcomeGrant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grant))
	assert.False(t, grant.Granted)
}

func TestBillingWebhook_DispatchesToHub(t *testing.T) {
	f := newAPIFixture(t)

	var got *subscription.CustomerInfo
	f.hub.Register("user-1", func(info *subscription.CustomerInfo) { got = info })

	rec := f.do(http.MethodPost, "/v1/webhooks/billing", map[string]interface{}{
		"event_type": "INITIAL_PURCHASE",
		"customer": map[string]interface{}{
			"user_id": "user-1",
			"entitlements": map[string]interface{}{
				"active": map[string]interface{}{
					"premium": map[string]interface{}{"period_type": "normal"},
				},
			},
		},
	})

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	assert.NotNil(t, got.EntitlementFor("premium"))
}

func TestBillingWebhook_MissingUserID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/v1/webhooks/billing", map[string]interface{}{
		"event_type": "INITIAL_PURCHASE",
		"customer":   map[string]interface{}{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingWebhook_InvalidJSON(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/billing", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndSession_RemovesResolver(t *testing.T) {
	f := newAPIFixture(t)

	f.do(http.MethodGet, "/v1/users/user-1/access", nil)
	require.Equal(t, 1, f.manager.ActiveSessions())

	rec := f.do(http.MethodDelete, "/v1/users/user-1/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, f.manager.ActiveSessions())
}

func TestOverrideEndpoints_DisabledByDefault(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPut, "/v1/users/user-1/override", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverrideEndpoints_ForcePremium(t *testing.T) {
	f := newAPIFixture(t, WithOverrideEndpoints())

	rec := f.do(http.MethodPut, "/v1/users/user-1/override", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/users/user-1/override", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": true}`, rec.Body.String())

	// The flag is read at session start, so the fresh session resolves
	// premium immediately.
	rec = f.do(http.MethodGet, "/v1/users/user-1/access", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status resolver.AccessStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, resolver.TierPremium, status.Tier)
}
