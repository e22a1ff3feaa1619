// pkg/credentials/credentials.go
package credentials

import (
	"context"
	"time"
)

// Record is the stored OAuth credential set for one (tenant, provider)
// pair. At most one live record exists per pair; Upsert is last-write-wins
// on that key.
type Record struct {
	TenantID     string     `json:"tenant_id"`
	Provider     string     `json:"provider"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"` // empty: cannot be silently renewed
	AccountID    string     `json:"account_id,omitempty"`    // provider-side account handle (realm id, grant id)
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`    // nil: unknown, assume valid until a 401 proves otherwise
}

// Stale reports whether the access token is known-expired. A nil ExpiresAt
// is never stale; the upstream 401 is the authority then.
func (r *Record) Stale(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Store persists one credential row per (tenant, provider). Get returns
// (nil, nil) on a missing row. No locking beyond the backing store's
// per-row atomicity; concurrent refreshes may race, last upsert wins.
type Store interface {
	Get(ctx context.Context, tenantID, provider string) (*Record, error)
	Upsert(ctx context.Context, rec Record) error
	Delete(ctx context.Context, tenantID, provider string) error
}
