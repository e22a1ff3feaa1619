package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGate struct {
	allow   bool
	reasons []string
	err     error
	calls   int
}

func (g *fakeGate) Allow(ctx context.Context, tenantID, tool string, args map[string]any) (bool, []string, error) {
	g.calls++
	return g.allow, g.reasons, g.err
}

func echo(ctx context.Context, args map[string]any) (any, error) {
	return args, nil
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop().Sugar())
	_, err := r.Invoke(context.Background(), "u1", "nope", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown tool")
}

func TestInvokeNilGateAllows(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop().Sugar())
	r.Register(Descriptor{Name: "echo"}, echo)

	out, err := r.Invoke(context.Background(), "u1", "echo", map[string]any{"k": "v"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"k": "v"}, out)
}

func TestInvokeGateBlocks(t *testing.T) {
	g := &fakeGate{allow: false, reasons: []string{"blocked_by_policy"}}
	r := NewRegistry(g, zap.NewNop().Sugar())
	r.Register(Descriptor{Name: "echo"}, echo)

	_, err := r.Invoke(context.Background(), "u1", "echo", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked by policy")
	require.Equal(t, 1, g.calls)
}

func TestInvokeGateError(t *testing.T) {
	g := &fakeGate{err: errors.New("store down")}
	r := NewRegistry(g, zap.NewNop().Sugar())
	r.Register(Descriptor{Name: "echo"}, echo)

	_, err := r.Invoke(context.Background(), "u1", "echo", nil)
	require.ErrorContains(t, err, "store down")
}

func TestDescriptorsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop().Sugar())
	r.Register(Descriptor{Name: "b.second"}, echo)
	r.Register(Descriptor{Name: "a.first"}, echo)

	descs := r.Descriptors()
	require.Len(t, descs, 2)
	require.Equal(t, "b.second", descs[0].Name)
	require.Equal(t, "a.first", descs[1].Name)
}

func TestDuplicateRegistrationKeepsLastFunc(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop().Sugar())
	r.Register(Descriptor{Name: "echo"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "first", nil
	})
	r.Register(Descriptor{Name: "echo"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "second", nil
	})

	require.Len(t, r.Descriptors(), 1)
	out, err := r.Invoke(context.Background(), "u1", "echo", nil)
	require.NoError(t, err)
	require.Equal(t, "second", out)
}

func TestParseCatalog(t *testing.T) {
	raw := []byte(`
server: books
tools:
  - name: books.query
    summary: Run a query
    scopes: [books:read]
    params:
      - name: query
        type: string
        required: true
`)
	cat, err := ParseCatalog(raw)
	require.NoError(t, err)
	require.Equal(t, "books", cat.Server)
	require.Len(t, cat.Tools, 1)
	require.Equal(t, "books.query", cat.Tools[0].Name)
	require.Equal(t, []string{"books:read"}, cat.Tools[0].Scopes)
	require.True(t, cat.Tools[0].Params[0].Required)
}

func TestParseCatalogRejectsBadYAML(t *testing.T) {
	_, err := ParseCatalog([]byte("server: [unterminated"))
	require.Error(t, err)
}

func TestReshape(t *testing.T) {
	doc := map[string]any{
		"QueryResponse": map[string]any{"Invoice": []any{map[string]any{"Id": "1"}}},
		"time":          "2026-08-26T00:00:00Z",
	}

	out := Reshape("QueryResponse", doc)
	require.Equal(t, doc["QueryResponse"], out)

	// Empty expression and misses fall back to the full document.
	require.Equal(t, doc, Reshape("", doc))
	require.Equal(t, doc, Reshape("NoSuchKey", doc))
	require.Equal(t, doc, Reshape("not a valid [expr", doc))
}
