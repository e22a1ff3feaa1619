// internal/providers/books/adapter.go
package books

import (
	"net/http"
	"net/url"

	"toolgate/pkg/credentials"
	"toolgate/pkg/fault"
)

// DefaultBase is the production accounting API root. The company realm id
// from the credential record is appended per call.
const DefaultBase = "https://quickbooks.api.intuit.com/v3/company"

// Adapter supplies the QuickBooks-specific call shape.
type Adapter struct {
	Base string
}

func NewAdapter(base string) Adapter {
	if base == "" {
		base = DefaultBase
	}
	return Adapter{Base: base}
}

func (Adapter) Provider() string { return "quickbooks" }

func (a Adapter) BaseURL(rec *credentials.Record) (string, error) {
	if rec.AccountID == "" {
		// Connected without a realm id; URLs cannot be built.
		return "", fault.ErrNotConnected
	}
	return a.Base + "/" + rec.AccountID, nil
}

func (Adapter) Query() url.Values {
	return url.Values{"minorversion": {"70"}}
}

func (Adapter) IsAuthFailure(status int, body []byte) bool {
	return status == http.StatusUnauthorized
}
