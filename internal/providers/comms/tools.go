// internal/providers/comms/tools.go
package comms

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"toolgate/pkg/tools"
	"toolgate/pkg/upstream"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Register wires email tools onto the email client and SMS tools onto the
// SMS client. One stream can invoke both; the bound tenant resolves each
// provider's credential independently.
func Register(reg *tools.Registry, email, sms *upstream.Client) error {
	cat, err := tools.ParseCatalog(catalogYAML)
	if err != nil {
		return err
	}
	byName := map[string]tools.Descriptor{}
	for _, d := range cat.Tools {
		byName[d.Name] = d
	}

	reg.Register(byName["comms.email_send"], func(ctx context.Context, args map[string]any) (any, error) {
		to, _ := args["to"].(string)
		subject, _ := args["subject"].(string)
		bodyText, _ := args["body"].(string)
		if to == "" || subject == "" {
			return nil, fmt.Errorf("to and subject required")
		}
		body := map[string]any{
			"to":      []map[string]any{{"email": to}},
			"subject": subject,
			"body":    bodyText,
		}
		out, err := email.Call(ctx, http.MethodPost, "/messages/send", nil, body)
		if err != nil {
			return nil, err
		}
		return tools.Reshape("data.{id: id, thread: thread_id}", out), nil
	})

	reg.Register(byName["comms.email_list"], func(ctx context.Context, args map[string]any) (any, error) {
		q := url.Values{}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			q.Set("limit", strconv.Itoa(int(limit)))
		}
		if from, _ := args["from"].(string); from != "" {
			q.Set("from", from)
		}
		out, err := email.Call(ctx, http.MethodGet, "/messages", q, nil)
		if err != nil {
			return nil, err
		}
		return tools.Reshape("data[].{id: id, from: from[0].email, subject: subject, date: date}", out), nil
	})

	reg.Register(byName["comms.sms_send"], func(ctx context.Context, args map[string]any) (any, error) {
		from, _ := args["from"].(string)
		to, _ := args["to"].(string)
		text, _ := args["text"].(string)
		if from == "" || to == "" || text == "" {
			return nil, fmt.Errorf("from, to and text required")
		}
		out, err := sms.Call(ctx, http.MethodPost, "/messages", nil, map[string]any{
			"from": from, "to": to, "text": text,
		})
		if err != nil {
			return nil, err
		}
		return tools.Reshape("data.{id: id, status: to[0].status}", out), nil
	})
	return nil
}
