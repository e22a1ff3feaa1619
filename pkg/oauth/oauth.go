// pkg/oauth/oauth.go
package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"toolgate/pkg/config"
	"toolgate/pkg/credentials"
	"toolgate/pkg/fault"
)

var refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "toolgate_token_refreshes_total",
	Help: "Refresh-token grants attempted against provider token endpoints.",
}, []string{"provider", "outcome"})

// tokenResponse is the common shape of provider token-endpoint replies.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Client talks to one provider's OAuth token endpoint and keeps the
// credential store current.
type Client struct {
	provider string
	app      config.ProviderOAuth
	store    credentials.Store
	http     *http.Client
	log      *zap.SugaredLogger
}

func NewClient(provider string, app config.ProviderOAuth, store credentials.Store, log *zap.SugaredLogger) *Client {
	return &Client{
		provider: provider,
		app:      app,
		store:    store,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// Refresh exchanges the stored refresh token for a fresh access token and
// upserts the result. The provider may rotate the refresh token; when it
// does not, the old one is kept. No retry happens here: a non-2xx is fatal
// for the in-flight request.
//
// Two concurrent calls for the same tenant may both refresh; there is no
// per-(tenant,provider) lock and the last upsert wins. Accepted race.
func (c *Client) Refresh(ctx context.Context, rec *credentials.Record) (*credentials.Record, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {rec.RefreshToken},
	}
	tr, err := c.postToken(ctx, form)
	if err != nil {
		refreshes.WithLabelValues(c.provider, "error").Inc()
		return nil, err
	}
	refreshes.WithLabelValues(c.provider, "ok").Inc()

	next := *rec
	next.AccessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		next.RefreshToken = tr.RefreshToken
	}
	next.ExpiresAt = expiry(tr.ExpiresIn)
	if err := c.store.Upsert(ctx, next); err != nil {
		return nil, err
	}
	c.log.Infow("token refreshed", "provider", c.provider, "tenant", rec.TenantID)
	return &next, nil
}

// Exchange redeems an authorization code and stores the initial credential
// for the tenant. accountID is the provider-side account handle delivered
// alongside the code (e.g. the realmId query parameter).
func (c *Client) Exchange(ctx context.Context, tenantID, code, redirectURI, accountID string) (*credentials.Record, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	tr, err := c.postToken(ctx, form)
	if err != nil {
		return nil, err
	}
	rec := credentials.Record{
		TenantID:     tenantID,
		Provider:     c.provider,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		AccountID:    accountID,
		ExpiresAt:    expiry(tr.ExpiresIn),
	}
	if err := c.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	c.log.Infow("provider connected", "provider", c.provider, "tenant", tenantID)
	return &rec, nil
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.app.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.app.ClientID, c.app.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode/100 != 2 {
		return nil, &fault.RefreshError{Provider: c.provider, Status: resp.StatusCode, Body: string(body)}
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &fault.RefreshError{Provider: c.provider, Status: resp.StatusCode, Body: "unparseable token response"}
	}
	return &tr, nil
}

func expiry(expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := time.Now().Add(time.Duration(expiresIn) * time.Second)
	return &t
}
