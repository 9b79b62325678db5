// Package lru implements the least-recently-used eviction policy.
package lru

import "github.com/IvanBrykalov/ringcache/policy"

// Name is the configuration name of this policy.
const Name = "lru"

// lru is the classic move-to-front policy. It never proposes an eviction
// itself: the shard trims the LRU tail whenever it is over capacity.
type lru[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type factory[K comparable, V any] struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New[K comparable, V any]() policy.Policy[K, V] { return factory[K, V]{} }

func (factory[K, V]) Name() string { return Name }

// New binds the shard hooks.
func (factory[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lru[K, V]{h: h}
}

// OnAdd admits the entry at MRU.
func (p *lru[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	p.h.PushFront(n)
	return nil
}

// OnGet promotes the entry to MRU.
func (p *lru[K, V]) OnGet(n policy.Node[K, V]) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry to MRU; an overwrite counts as a use.
func (p *lru[K, V]) OnUpdate(n policy.Node[K, V]) { p.h.MoveToFront(n) }

func (p *lru[K, V]) OnRemove(_ policy.Node[K, V]) {}
