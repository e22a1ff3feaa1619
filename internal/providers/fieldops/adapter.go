// internal/providers/fieldops/adapter.go
package fieldops

import (
	"bytes"
	"net/http"
	"net/url"

	"toolgate/pkg/credentials"
)

// DefaultBase is the production field-service API root.
const DefaultBase = "https://api.getjobber.com/api"

// Adapter supplies the Jobber-specific call shape. Unlike the accounting
// provider, URLs here do not embed an account handle.
type Adapter struct {
	Base string
}

func NewAdapter(base string) Adapter {
	if base == "" {
		base = DefaultBase
	}
	return Adapter{Base: base}
}

func (Adapter) Provider() string { return "jobber" }

func (a Adapter) BaseURL(rec *credentials.Record) (string, error) {
	return a.Base, nil
}

func (Adapter) Query() url.Values { return nil }

// IsAuthFailure covers the provider's two rejection shapes: a plain 401,
// and a 400 whose body carries the invalid_token error code.
func (Adapter) IsAuthFailure(status int, body []byte) bool {
	if status == http.StatusUnauthorized {
		return true
	}
	return status == http.StatusBadRequest && bytes.Contains(body, []byte(`"error":"invalid_token"`))
}
