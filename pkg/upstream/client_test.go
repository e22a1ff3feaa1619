package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolgate/pkg/config"
	"toolgate/pkg/credentials"
	"toolgate/pkg/fault"
	"toolgate/pkg/identity"
	"toolgate/pkg/oauth"
)

type testAdapter struct {
	base string
}

func (a testAdapter) Provider() string { return "quickbooks" }

func (a testAdapter) BaseURL(rec *credentials.Record) (string, error) {
	if rec.AccountID == "" {
		return "", fault.ErrNotConnected
	}
	return a.base + "/company/" + rec.AccountID, nil
}

func (a testAdapter) Query() url.Values { return url.Values{"minorversion": {"70"}} }

func (a testAdapter) IsAuthFailure(status int, body []byte) bool {
	return status == http.StatusUnauthorized
}

type fixture struct {
	client        *Client
	store         credentials.Store
	upstreamCalls *int32
	refreshCalls  *int32
}

// newFixture wires a fake provider API that accepts only "Bearer good" and
// a fake token endpoint that always hands out "good".
func newFixture(t *testing.T, upstreamHandler http.HandlerFunc) *fixture {
	t.Helper()
	var upstreamCalls, refreshCalls int32

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&upstreamCalls, 1)
		upstreamHandler(w, r)
	}))
	t.Cleanup(api.Close)

	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "good", "expires_in": 3600})
	}))
	t.Cleanup(tokens.Close)

	log := zap.NewNop().Sugar()
	store := credentials.NewMemoryStore(log)
	refresher := oauth.NewClient("quickbooks", config.ProviderOAuth{
		ClientID: "id", ClientSecret: "secret", TokenURL: tokens.URL,
	}, store, log)
	return &fixture{
		client:        New(testAdapter{base: api.URL}, store, refresher, log),
		store:         store,
		upstreamCalls: &upstreamCalls,
		refreshCalls:  &refreshCalls,
	}
}

func bearerOnly(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer good" {
		http.Error(w, `{"fault":"auth"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"Invoice": map[string]any{"Id": "1"}})
}

func boundCtx(tenant string) context.Context {
	return identity.Bind(context.Background(), identity.Identity{TenantID: tenant})
}

func seed(t *testing.T, f *fixture, rec credentials.Record) {
	t.Helper()
	require.NoError(t, f.store.Upsert(context.Background(), rec))
}

func TestCallSucceedsWithoutRefresh(t *testing.T) {
	f := newFixture(t, bearerOnly)
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "good", RefreshToken: "r1", AccountID: "realm-9"})

	out, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/invoice/1", nil, nil)
	require.NoError(t, err)
	require.Contains(t, out.(map[string]any), "Invoice")
	require.EqualValues(t, 1, atomic.LoadInt32(f.upstreamCalls))
	require.EqualValues(t, 0, atomic.LoadInt32(f.refreshCalls))
}

func TestStaleTokenRefreshedOnceAndRetried(t *testing.T) {
	f := newFixture(t, bearerOnly)
	past := time.Now().Add(-time.Hour)
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "stale", RefreshToken: "r1", AccountID: "realm-9", ExpiresAt: &past})

	out, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/invoice/1", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.EqualValues(t, 2, atomic.LoadInt32(f.upstreamCalls), "initial call + exactly one retry")
	require.EqualValues(t, 1, atomic.LoadInt32(f.refreshCalls), "exactly one refresh")

	stored, err := f.store.Get(context.Background(), "u1", "quickbooks")
	require.NoError(t, err)
	require.Equal(t, "good", stored.AccessToken)
	require.Equal(t, "realm-9", stored.AccountID, "account handle survives refresh")
}

func TestSecondAuthFailureIsTerminal(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"fault":"auth"}`, http.StatusUnauthorized)
	})
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "stale", RefreshToken: "r1", AccountID: "realm-9"})

	_, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/invoice/1", nil, nil)
	var ua *fault.UnauthorizedError
	require.True(t, errors.As(err, &ua), "want UnauthorizedError, got %v", err)
	require.EqualValues(t, 2, atomic.LoadInt32(f.upstreamCalls), "no third attempt")
	require.EqualValues(t, 1, atomic.LoadInt32(f.refreshCalls))

	// Credential left as-is for an explicit reconnect to repair.
	stored, err := f.store.Get(context.Background(), "u1", "quickbooks")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestAuthFailureWithoutRefreshToken(t *testing.T) {
	f := newFixture(t, bearerOnly)
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "stale", AccountID: "realm-9"})

	_, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/invoice/1", nil, nil)
	var ua *fault.UnauthorizedError
	require.True(t, errors.As(err, &ua))
	require.EqualValues(t, 1, atomic.LoadInt32(f.upstreamCalls))
	require.EqualValues(t, 0, atomic.LoadInt32(f.refreshCalls))
}

func TestOtherUpstreamErrorsAreNotRetried(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"fault":"rate_limited"}`, http.StatusTooManyRequests)
	})
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "good", RefreshToken: "r1", AccountID: "realm-9"})

	_, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/invoice/1", nil, nil)
	var ue *fault.UpstreamError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, http.StatusTooManyRequests, ue.Status)
	require.Contains(t, ue.Body, "rate_limited")
	require.EqualValues(t, 1, atomic.LoadInt32(f.upstreamCalls))
	require.EqualValues(t, 0, atomic.LoadInt32(f.refreshCalls))
}

func TestNotConnected(t *testing.T) {
	f := newFixture(t, bearerOnly)

	_, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/invoice/1", nil, nil)
	require.ErrorIs(t, err, fault.ErrNotConnected)
	require.EqualValues(t, 0, atomic.LoadInt32(f.upstreamCalls))
}

func TestMissingAccountHandleIsNotConnected(t *testing.T) {
	f := newFixture(t, bearerOnly)
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "good"})

	_, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/invoice/1", nil, nil)
	require.ErrorIs(t, err, fault.ErrNotConnected)
}

func TestUnboundContextFails(t *testing.T) {
	f := newFixture(t, bearerOnly)
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "good", AccountID: "realm-9"})

	_, err := f.client.Call(context.Background(), http.MethodGet, "/invoice/1", nil, nil)
	require.ErrorIs(t, err, fault.ErrMissingIdentity)
	require.EqualValues(t, 0, atomic.LoadInt32(f.upstreamCalls))
}

func TestTenantsResolveTheirOwnCredentials(t *testing.T) {
	var seenTokens []string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		seenTokens = append(seenTokens, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "token-u1", AccountID: "realm-1"})
	seed(t, f, credentials.Record{TenantID: "u2", Provider: "quickbooks", AccessToken: "token-u2", AccountID: "realm-2"})

	_, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/invoice/1", nil, nil)
	require.NoError(t, err)
	_, err = f.client.Call(boundCtx("u2"), http.MethodGet, "/invoice/1", nil, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"Bearer token-u1", "Bearer token-u2"}, seenTokens)
}

func TestQueryMergeDoesNotClobberCaller(t *testing.T) {
	var gotQuery url.Values
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})
	seed(t, f, credentials.Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "good", AccountID: "realm-9"})

	_, err := f.client.Call(boundCtx("u1"), http.MethodGet, "/query", url.Values{
		"query":        {"select * from Invoice"},
		"minorversion": {"65"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "select * from Invoice", gotQuery.Get("query"))
	require.Equal(t, "65", gotQuery.Get("minorversion"), "caller value wins over adapter default")
}
