// pkg/credentials/memory.go
package credentials

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type memStore struct {
	log   *zap.SugaredLogger
	mu    sync.RWMutex
	byKey map[string]Record // key: tenantID+":"+provider
}

// NewMemoryStore returns an in-process store for dev and tests.
func NewMemoryStore(log *zap.SugaredLogger) Store {
	return &memStore{log: log, byKey: map[string]Record{}}
}

func key(tenantID, provider string) string { return tenantID + ":" + provider }

func (m *memStore) Get(ctx context.Context, tenantID, provider string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.byKey[key(tenantID, provider)]; ok {
		cp := rec
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) Upsert(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[key(rec.TenantID, rec.Provider)] = rec
	return nil
}

func (m *memStore) Delete(ctx context.Context, tenantID, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byKey, key(tenantID, provider))
	return nil
}
