package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"
)

// MemTransport connects Routers living in one process. It serves replica
// operations directly on the registered router, which makes it useful for
// tests, benchmarks and examples. Peers can be marked down to simulate
// unreachable nodes.
type MemTransport struct {
	mu      sync.RWMutex
	routers map[string]*Router
	down    map[string]bool
}

// NewMemTransport returns an empty in-process transport.
func NewMemTransport() *MemTransport {
	return &MemTransport{routers: map[string]*Router{}, down: map[string]bool{}}
}

// Register makes r reachable under id.
func (m *MemTransport) Register(id string, r *Router) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routers[id] = r
}

// SetDown marks id unreachable (or reachable again).
func (m *MemTransport) SetDown(id string, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down[id] = down
}

func (m *MemTransport) peer(ctx context.Context, id string) (*Router, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routers[id]
	if !ok || m.down[id] {
		return nil, errors.WithContext(errors.New(errors.CodeNetwork, "peer unreachable"), "peer", id)
	}
	return r, nil
}

func (m *MemTransport) Put(ctx context.Context, peer, key, value string, ttl time.Duration) error {
	r, err := m.peer(ctx, peer)
	if err != nil {
		return err
	}
	r.ReplicaPut(key, value, ttl)
	return nil
}

func (m *MemTransport) Get(ctx context.Context, peer, key string) (string, bool, error) {
	r, err := m.peer(ctx, peer)
	if err != nil {
		return "", false, err
	}
	v, ok := r.ReplicaGet(key)
	return v, ok, nil
}

func (m *MemTransport) Delete(ctx context.Context, peer, key string) (bool, error) {
	r, err := m.peer(ctx, peer)
	if err != nil {
		return false, err
	}
	return r.ReplicaDelete(key), nil
}

var _ Transport = (*MemTransport)(nil)
