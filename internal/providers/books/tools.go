// internal/providers/books/tools.go
package books

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"net/url"

	"toolgate/pkg/tools"
	"toolgate/pkg/upstream"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Register wires the accounting tools onto the registry. Every handler
// reads the tenant from its context via the upstream client; none of them
// take an identity argument.
func Register(reg *tools.Registry, client *upstream.Client) error {
	cat, err := tools.ParseCatalog(catalogYAML)
	if err != nil {
		return err
	}
	byName := map[string]tools.Descriptor{}
	for _, d := range cat.Tools {
		byName[d.Name] = d
	}

	reg.Register(byName["books.query"], func(ctx context.Context, args map[string]any) (any, error) {
		q, _ := args["query"].(string)
		if q == "" {
			return nil, fmt.Errorf("query required")
		}
		out, err := client.Call(ctx, http.MethodGet, "/query", url.Values{"query": {q}}, nil)
		if err != nil {
			return nil, err
		}
		return tools.Reshape("QueryResponse", out), nil
	})

	reg.Register(byName["books.invoice_get"], func(ctx context.Context, args map[string]any) (any, error) {
		id, _ := args["invoice_id"].(string)
		if id == "" {
			return nil, fmt.Errorf("invoice_id required")
		}
		out, err := client.Call(ctx, http.MethodGet, "/invoice/"+url.PathEscape(id), nil, nil)
		if err != nil {
			return nil, err
		}
		return tools.Reshape("Invoice.{id: Id, total: TotalAmt, balance: Balance, customer: CustomerRef.name, due: DueDate}", out), nil
	})

	reg.Register(byName["books.customer_create"], func(ctx context.Context, args map[string]any) (any, error) {
		name, _ := args["display_name"].(string)
		if name == "" {
			return nil, fmt.Errorf("display_name required")
		}
		body := map[string]any{"DisplayName": name}
		if email, _ := args["email"].(string); email != "" {
			body["PrimaryEmailAddr"] = map[string]any{"Address": email}
		}
		out, err := client.Call(ctx, http.MethodPost, "/customer", nil, body)
		if err != nil {
			return nil, err
		}
		return tools.Reshape("Customer.{id: Id, name: DisplayName}", out), nil
	})
	return nil
}
