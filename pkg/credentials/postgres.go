// pkg/credentials/postgres.go
package credentials

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed credential store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the credential table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS provider_credentials (
  tenant_id text NOT NULL,
  provider text NOT NULL,
  access_token text NOT NULL,
  refresh_token text,
  account_id text,
  expires_at timestamptz,
  updated_at timestamptz NOT NULL DEFAULT NOW(),
  PRIMARY KEY (tenant_id, provider)
);
`)
	return err
}

func (s *pgStore) Get(ctx context.Context, tenantID, provider string) (*Record, error) {
	row := s.dbPool.QueryRow(ctx, `SELECT tenant_id, provider, access_token, COALESCE(refresh_token,''), COALESCE(account_id,''), expires_at
		FROM provider_credentials WHERE tenant_id=$1 AND provider=$2`, tenantID, provider)
	var rec Record
	if err := row.Scan(&rec.TenantID, &rec.Provider, &rec.AccessToken, &rec.RefreshToken, &rec.AccountID, &rec.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *pgStore) Upsert(ctx context.Context, rec Record) error {
	_, err := s.dbPool.Exec(ctx, `INSERT INTO provider_credentials(tenant_id, provider, access_token, refresh_token, account_id, expires_at, updated_at)
		VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,NOW())
		ON CONFLICT (tenant_id, provider) DO UPDATE SET
		  access_token=EXCLUDED.access_token,
		  refresh_token=EXCLUDED.refresh_token,
		  account_id=EXCLUDED.account_id,
		  expires_at=EXCLUDED.expires_at,
		  updated_at=NOW()`,
		rec.TenantID, rec.Provider, rec.AccessToken, rec.RefreshToken, rec.AccountID, rec.ExpiresAt)
	return err
}

func (s *pgStore) Delete(ctx context.Context, tenantID, provider string) error {
	_, err := s.dbPool.Exec(ctx, `DELETE FROM provider_credentials WHERE tenant_id=$1 AND provider=$2`, tenantID, provider)
	return err
}
