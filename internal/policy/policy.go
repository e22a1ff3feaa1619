// internal/policy/policy.go
package policy

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"
)

// Gate evaluates the latest published rego policy for a (tenant, tool) pair
// before the tool runs. No policy on file means allow; a policy evaluation
// error blocks, never crashes the stream.
type Gate struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

func New(pool *pgxpool.Pool, log *zap.SugaredLogger) *Gate {
	return &Gate{pool: pool, log: log}
}

// EnsureSchema creates the policy table if missing. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tool_policies (
  tenant_id text NOT NULL,
  tool text NOT NULL,
  version int NOT NULL,
  status text NOT NULL DEFAULT 'draft',
  compiled_rego text,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (tenant_id, tool, version)
);
`)
	return err
}

// Allow evaluates the tenant's published module with {tenant, tool, args}
// as input.
func (g *Gate) Allow(ctx context.Context, tenantID, tool string, args map[string]any) (bool, []string, error) {
	var mod string
	if g.pool != nil {
		row := g.pool.QueryRow(ctx, `SELECT COALESCE(compiled_rego,'') FROM tool_policies
			WHERE tenant_id=$1 AND tool=$2 AND status='published' ORDER BY version DESC LIMIT 1`, tenantID, tool)
		_ = row.Scan(&mod)
	}
	if mod == "" {
		return true, nil, nil
	}
	allowed, reasons := Evaluate(ctx, mod, map[string]any{"tenant": tenantID, "tool": tool, "args": args})
	if !allowed {
		g.log.Infow("tool blocked", "tool", tool, "tenant", tenantID, "reasons", reasons)
	}
	return allowed, reasons, nil
}

// Evaluate runs `data.policy.allow` from mod against input. Evaluation
// failures block rather than crash the invoking stream.
func Evaluate(ctx context.Context, mod string, input map[string]any) (bool, []string) {
	r := rego.New(
		rego.Query("data.policy.allow"),
		rego.Module("policy.rego", mod),
		rego.Input(input),
	)
	rs, err := r.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, []string{"policy_error"}
	}
	if allowed, ok := rs[0].Expressions[0].Value.(bool); ok && allowed {
		return true, nil
	}
	return false, []string{"blocked_by_policy"}
}
