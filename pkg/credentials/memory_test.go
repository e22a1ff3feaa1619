package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testStore() Store {
	return NewMemoryStore(zap.NewNop().Sugar())
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := testStore()
	rec, err := s.Get(context.Background(), "tenant-1", "quickbooks")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestUpsertIsLastWriteWins(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Record{TenantID: "tenant-1", Provider: "quickbooks", AccessToken: "first", AccountID: "realm-9"}))
	require.NoError(t, s.Upsert(ctx, Record{TenantID: "tenant-1", Provider: "quickbooks", AccessToken: "second", AccountID: "realm-9"}))

	rec, err := s.Get(ctx, "tenant-1", "quickbooks")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "second", rec.AccessToken)
	require.Equal(t, "realm-9", rec.AccountID)
}

func TestRecordsKeyedByTenantAndProvider(t *testing.T) {
	s := testStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "a"}))
	require.NoError(t, s.Upsert(ctx, Record{TenantID: "u2", Provider: "quickbooks", AccessToken: "b"}))
	require.NoError(t, s.Upsert(ctx, Record{TenantID: "u1", Provider: "jobber", AccessToken: "c"}))

	rec, err := s.Get(ctx, "u1", "quickbooks")
	require.NoError(t, err)
	require.Equal(t, "a", rec.AccessToken)
	rec, err = s.Get(ctx, "u2", "quickbooks")
	require.NoError(t, err)
	require.Equal(t, "b", rec.AccessToken)
	rec, err = s.Get(ctx, "u1", "jobber")
	require.NoError(t, err)
	require.Equal(t, "c", rec.AccessToken)
}

func TestDelete(t *testing.T) {
	s := testStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "a"}))
	require.NoError(t, s.Delete(ctx, "u1", "quickbooks"))
	rec, err := s.Get(ctx, "u1", "quickbooks")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestGetReturnsCopy(t *testing.T) {
	s := testStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, Record{TenantID: "u1", Provider: "quickbooks", AccessToken: "a"}))

	rec, err := s.Get(ctx, "u1", "quickbooks")
	require.NoError(t, err)
	rec.AccessToken = "mutated"

	again, err := s.Get(ctx, "u1", "quickbooks")
	require.NoError(t, err)
	require.Equal(t, "a", again.AccessToken)
}

func TestStale(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	require.False(t, (&Record{}).Stale(now), "nil expiry is never stale")
	require.True(t, (&Record{ExpiresAt: &past}).Stale(now))
	require.False(t, (&Record{ExpiresAt: &future}).Stale(now))
}
