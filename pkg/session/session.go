// pkg/session/session.go
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"toolgate/pkg/fault"
)

// AltHeader is the secondary header accepted alongside Authorization.
const AltHeader = "X-Session-Token"

// Issuer mints short-lived session tokens scoped to a single tool server
// via the audience claim.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Mint produces a signed token carrying the tenant id in the tid claim.
func (i *Issuer) Mint(tenantID, audience string) (string, error) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(i.issuer).
		Audience([]string{audience}).
		IssuedAt(now).
		Expiration(now.Add(i.ttl)).
		Claim("tid", tenantID).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verifier validates tokens for exactly one audience. A token minted for a
// different tool server must fail here; that is the tenant-isolation
// boundary between servers.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewVerifier(secret, issuer, audience string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, audience: audience}
}

// Verify checks signature, issuer, audience and expiry, and extracts the
// tenant id. Every failure mode collapses into a single VerificationError
// so the caller rejects exactly once, before any side effect.
func (v *Verifier) Verify(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &fault.VerificationError{Reason: "missing_token"}
	}
	jt, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, v.secret),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", &fault.VerificationError{Reason: "invalid_token", Err: err}
	}
	tid, ok := jt.Get("tid")
	if !ok {
		return "", &fault.VerificationError{Reason: "tid_missing"}
	}
	s, _ := tid.(string)
	if s == "" {
		return "", &fault.VerificationError{Reason: "tid_missing"}
	}
	return s, nil
}

// TokenFromRequest extracts the raw session token from Authorization
// (bearer) or the alternate header; first non-empty wins, so verification
// happens once no matter how many headers are present.
func TokenFromRequest(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		if tok := strings.TrimSpace(authz[len("Bearer "):]); tok != "" {
			return tok
		}
	}
	return strings.TrimSpace(r.Header.Get(AltHeader))
}
