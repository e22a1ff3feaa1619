// pkg/identity/identity.go
package identity

import (
	"context"

	"toolgate/pkg/fault"
)

// Identity is the verified principal bound to one open stream. It carries
// only what downstream calls need to resolve credentials.
type Identity struct {
	TenantID string
}

type ctxIdentityKey struct{}

// Bind attaches id to ctx. Called exactly once per stream, at open time,
// after the session token has been verified. Everything dispatched for that
// stream derives its context from the returned one, so concurrent streams
// never observe each other's identity.
func Bind(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// From resolves the bound identity. A fault.ErrMissingIdentity here means a
// call path reached provider code without going through the transport.
func From(ctx context.Context) (Identity, error) {
	if v := ctx.Value(ctxIdentityKey{}); v != nil {
		if id, ok := v.(Identity); ok && id.TenantID != "" {
			return id, nil
		}
	}
	return Identity{}, fault.ErrMissingIdentity
}
