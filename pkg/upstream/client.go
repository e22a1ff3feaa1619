// pkg/upstream/client.go
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"toolgate/pkg/credentials"
	"toolgate/pkg/fault"
	"toolgate/pkg/identity"
	"toolgate/pkg/oauth"
)

var upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "toolgate_upstream_requests_total",
	Help: "HTTP requests issued to upstream providers.",
}, []string{"provider", "code"})

// Adapter supplies the provider-specific pieces of a call: where the API
// lives for a given credential, which query parameters every call needs,
// and what an authorization failure looks like on the wire.
type Adapter interface {
	Provider() string
	// BaseURL builds the API root for this credential. Returns
	// fault.ErrNotConnected when the record lacks the account handle the
	// URL needs.
	BaseURL(rec *credentials.Record) (string, error)
	// Query returns parameters merged into every call. Caller-supplied
	// values win on conflict.
	Query() url.Values
	// IsAuthFailure reports whether a response means the access token was
	// rejected (usually 401; one provider signals via 400 plus error code).
	IsAuthFailure(status int, body []byte) bool
}

// Client issues authenticated calls to one provider on behalf of whatever
// tenant is bound to the calling context. On an authorization failure it
// refreshes the credential once and retries once; a second rejection is
// terminal. There is deliberately no loop here.
type Client struct {
	adapter   Adapter
	store     credentials.Store
	refresher *oauth.Client
	http      *http.Client
	log       *zap.SugaredLogger
}

func New(adapter Adapter, store credentials.Store, refresher *oauth.Client, log *zap.SugaredLogger) *Client {
	return &Client{
		adapter:   adapter,
		store:     store,
		refresher: refresher,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

// Call performs one upstream request. endpoint is joined to the adapter's
// base URL; body (if non-nil) is sent as JSON. The parsed JSON response is
// returned, or the raw text when the provider does not answer with JSON.
func (c *Client) Call(ctx context.Context, method, endpoint string, query url.Values, body any) (any, error) {
	id, err := identity.From(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := c.store.Get(ctx, id.TenantID, c.adapter.Provider())
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.AccessToken == "" {
		return nil, fault.ErrNotConnected
	}
	full, err := c.buildURL(rec, endpoint, query)
	if err != nil {
		return nil, err
	}
	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	status, respBody, err := c.do(ctx, method, full, rec.AccessToken, payload)
	if err != nil {
		return nil, err
	}
	if c.adapter.IsAuthFailure(status, respBody) {
		if rec.RefreshToken == "" {
			return nil, &fault.UnauthorizedError{Provider: c.adapter.Provider()}
		}
		refreshed, rerr := c.refresher.Refresh(ctx, rec)
		if rerr != nil {
			return nil, rerr
		}
		status, respBody, err = c.do(ctx, method, full, refreshed.AccessToken, payload)
		if err != nil {
			return nil, err
		}
		if c.adapter.IsAuthFailure(status, respBody) {
			return nil, &fault.UnauthorizedError{Provider: c.adapter.Provider()}
		}
	}
	if status/100 != 2 {
		return nil, &fault.UpstreamError{Provider: c.adapter.Provider(), Status: status, Body: string(respBody)}
	}
	return parseBody(respBody), nil
}

func (c *Client) buildURL(rec *credentials.Record, endpoint string, query url.Values) (string, error) {
	base, err := c.adapter.BaseURL(rec)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range c.adapter.Query() {
		if _, taken := q[k]; taken {
			continue
		}
		q[k] = vs
	}
	for k, vs := range query {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, full, accessToken string, payload []byte) (int, []byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, full, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	upstreamRequests.WithLabelValues(c.adapter.Provider(), strconv.Itoa(resp.StatusCode)).Inc()
	return resp.StatusCode, body, nil
}

func parseBody(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return string(body)
}
