// internal/providers/comms/adapters.go
package comms

import (
	"net/http"
	"net/url"

	"toolgate/pkg/credentials"
	"toolgate/pkg/fault"
)

// The comms server fronts two providers: email (Nylas grants API) and SMS
// (Telnyx). Each gets its own adapter and scoped client; the credential
// store keys them apart by provider name.

const (
	DefaultEmailBase = "https://api.us.nylas.com/v3/grants"
	DefaultSMSBase   = "https://api.telnyx.com/v2"
)

type EmailAdapter struct {
	Base string
}

func NewEmailAdapter(base string) EmailAdapter {
	if base == "" {
		base = DefaultEmailBase
	}
	return EmailAdapter{Base: base}
}

func (EmailAdapter) Provider() string { return "nylas" }

func (a EmailAdapter) BaseURL(rec *credentials.Record) (string, error) {
	if rec.AccountID == "" {
		// The grant id doubles as the URL path segment.
		return "", fault.ErrNotConnected
	}
	return a.Base + "/" + rec.AccountID, nil
}

func (EmailAdapter) Query() url.Values { return nil }

func (EmailAdapter) IsAuthFailure(status int, body []byte) bool {
	return status == http.StatusUnauthorized
}

type SMSAdapter struct {
	Base string
}

func NewSMSAdapter(base string) SMSAdapter {
	if base == "" {
		base = DefaultSMSBase
	}
	return SMSAdapter{Base: base}
}

func (SMSAdapter) Provider() string { return "telnyx" }

func (a SMSAdapter) BaseURL(rec *credentials.Record) (string, error) {
	return a.Base, nil
}

func (SMSAdapter) Query() url.Values { return nil }

func (SMSAdapter) IsAuthFailure(status int, body []byte) bool {
	return status == http.StatusUnauthorized
}
