// internal/providers/fieldops/tools.go
package fieldops

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

func Register(reg *tools.Registry, client *upstream.Client) error {
	cat, err := tools.ParseCatalog(catalogYAML)
	if err != nil {
		return err
	}
	byName := map[string]tools.Descriptor{}
	for _, d := range cat.Tools {
		byName[d.Name] = d
	}

	reg.Register(byName["fieldops.jobs_list"], func(ctx context.Context, args map[string]any) (any, error) {
		q := url.Values{}
		if status, _ := args["status"].(string); status != "" {
			q.Set("status", status)
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			q.Set("limit", strconv.Itoa(int(limit)))
		}
		out, err := client.Call(ctx, http.MethodGet, "/jobs", q, nil)
		if err != nil {
			return nil, err
		}
		return tools.Reshape("jobs[].{id: id, title: title, status: status, client: client.name, scheduled_at: start_at}", out), nil
	})

	reg.Register(byName["fieldops.job_create"], func(ctx context.Context, args map[string]any) (any, error) {
		title, _ := args["title"].(string)
		clientID, _ := args["client_id"].(string)
		if title == "" || clientID == "" {
			return nil, fmt.Errorf("title and client_id required")
		}
		body := map[string]any{"title": title, "client_id": clientID}
		if notes, _ := args["notes"].(string); notes != "" {
			body["notes"] = notes
		}
		out, err := client.Call(ctx, http.MethodPost, "/jobs", nil, body)
		if err != nil {
			return nil, err
		}
		return tools.Reshape("job.{id: id, title: title, status: status}", out), nil
	})

	reg.Register(byName["fieldops.visit_schedule"], func(ctx context.Context, args map[string]any) (any, error) {
		jobID, _ := args["job_id"].(string)
		startAt, _ := args["start_at"].(string)
		if jobID == "" || startAt == "" {
			return nil, fmt.Errorf("job_id and start_at required")
		}
		out, err := client.Call(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/visits", nil, map[string]any{"start_at": startAt})
		if err != nil {
			return nil, err
		}
		return tools.Reshape("visit.{id: id, start_at: start_at}", out), nil
	})
	return nil
}
