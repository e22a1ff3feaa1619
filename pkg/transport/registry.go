// pkg/transport/registry.go
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event is one server-to-client SSE frame.
type Event struct {
	Name string
	Data any
}

// Stream is one open event channel bound to exactly one verified tenant for
// its whole lifetime. Results for this stream's tool calls are only ever
// delivered here.
type Stream struct {
	id       string
	tenantID string
	ctx      context.Context
	cancel   context.CancelFunc
	events   chan Event
	closed   sync.Once
}

func newStream(id, tenantID string, ctx context.Context, cancel context.CancelFunc) *Stream {
	return &Stream{
		id:       id,
		tenantID: tenantID,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, 16),
	}
}

func (s *Stream) ID() string       { return s.id }
func (s *Stream) TenantID() string { return s.tenantID }

// Context carries the bound identity and is cancelled when the stream
// closes; in-flight calls notice via ctx and their results are discarded.
func (s *Stream) Context() context.Context { return s.ctx }

// Send queues an event for delivery, dropping it if the stream has closed.
func (s *Stream) Send(ev Event) error {
	select {
	case <-s.ctx.Done():
		return errors.New("stream closed")
	case s.events <- ev:
		return nil
	}
}

func (s *Stream) close() {
	s.closed.Do(s.cancel)
}

// Registry tracks open streams by session id. Injected rather than a global
// map so tests run without process state and a multi-process deployment can
// swap the index.
type Registry interface {
	Register(st *Stream)
	Lookup(id string) (*Stream, bool)
	Deregister(id string)
}

type memRegistry struct {
	mu   sync.RWMutex
	byID map[string]*Stream
}

func NewMemoryRegistry() Registry {
	return &memRegistry{byID: map[string]*Stream{}}
}

func (r *memRegistry) Register(st *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[st.id] = st
}

func (r *memRegistry) Lookup(id string) (*Stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.byID[id]
	return st, ok
}

func (r *memRegistry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// redisRegistry keeps the process-local map authoritative (streams cannot
// cross processes) and mirrors liveness into redis so other processes can
// route message-posts to the right instance.
type redisRegistry struct {
	Registry
	rdb *redis.Client
	ttl time.Duration
	log *zap.SugaredLogger
}

func WithRedisIndex(inner Registry, rdb *redis.Client, log *zap.SugaredLogger) Registry {
	if rdb == nil {
		return inner
	}
	return &redisRegistry{Registry: inner, rdb: rdb, ttl: 2 * time.Hour, log: log}
}

func (r *redisRegistry) Register(st *Stream) {
	r.Registry.Register(st)
	if err := r.rdb.SetNX(context.Background(), "toolgate:stream:"+st.id, st.tenantID, r.ttl).Err(); err != nil {
		r.log.Warnw("stream index set", "err", err)
	}
}

func (r *redisRegistry) Deregister(id string) {
	r.Registry.Deregister(id)
	if err := r.rdb.Del(context.Background(), "toolgate:stream:"+id).Err(); err != nil {
		r.log.Warnw("stream index del", "err", err)
	}
}
