// pkg/fault/fault.go
package fault

import (
	"errors"
	"fmt"
)

// Sentinel conditions. Handlers match these with errors.Is and map them to
// slugs via Slug.
var (
	// ErrMissingIdentity means no tenant identity was bound to the calling
	// context. This is a wiring defect, never a user condition.
	ErrMissingIdentity = errors.New("identity not bound to context")

	// ErrNotConnected means no credential is on file for the tenant/provider.
	ErrNotConnected = errors.New("provider not connected")

	// ErrNoActiveTransport means a message referenced a session id with no
	// open event stream.
	ErrNoActiveTransport = errors.New("no active transport for session")
)

// VerificationError is a session-token rejection (bad signature, wrong
// audience or issuer, expired, malformed, missing tenant claim).
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session verification failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session verification failed (%s)", e.Reason)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// RefreshError is a non-2xx from a provider's token endpoint. Fatal for the
// in-flight call; never retried here.
type RefreshError struct {
	Provider string
	Status   int
	Body     string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s token refresh failed: status %d: %s", e.Provider, e.Status, e.Body)
}

// UnauthorizedError means the stored credential was rejected twice (once
// before and once after a refresh). The credential is left in place so an
// explicit reconnect can repair it.
type UnauthorizedError struct {
	Provider string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("%s rejected credential after refresh", e.Provider)
}

// UpstreamError is any other non-2xx provider response. Carries enough for
// callers to distinguish rate limits from validation failures; never retried.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: status %d: %s", e.Provider, e.Status, e.Body)
}

// Slug maps an error to its stable wire identifier, used in tool-result
// error payloads and HTTP error bodies.
func Slug(err error) string {
	var ve *VerificationError
	var re *RefreshError
	var ua *UnauthorizedError
	var ue *UpstreamError
	switch {
	case errors.Is(err, ErrMissingIdentity):
		return "missing_context"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrNoActiveTransport):
		return "no_active_transport"
	case errors.As(err, &ve):
		return "auth_verification_failed"
	case errors.As(err, &re):
		return "refresh_failed"
	case errors.As(err, &ua):
		return "unauthorized"
	case errors.As(err, &ue):
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// Payload renders an error as a structured tool-result error object.
func Payload(err error) map[string]any {
	out := map[string]any{"code": Slug(err), "detail": err.Error()}
	var re *RefreshError
	var ue *UpstreamError
	if errors.As(err, &ue) {
		out["status"] = ue.Status
		out["body"] = ue.Body
	} else if errors.As(err, &re) {
		out["status"] = re.Status
		out["body"] = re.Body
	}
	return out
}
