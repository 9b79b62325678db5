// Package twoq implements the 2Q eviction policy, which resists scan
// pollution better than plain LRU.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/ringcache/policy"
)

// Name is the configuration name of this policy.
const Name = "2q"

// twoQ keeps first-time entries in a bounded probation queue (A1in). An
// entry that is read while on probation graduates to the main queue (Am),
// whose order is the shard's recency list. Keys evicted from probation are
// remembered in a ghost queue (A1out); re-admitting a ghost key skips
// probation.
//
// All methods run under the shard lock.
type twoQ[K comparable, V any] struct {
	h policy.Hooks[K, V]

	probationCap int
	ghostCap     int

	// A1in, MRU at Front.
	probation    *list.List
	probationIdx map[policy.Node[K, V]]*list.Element

	// A1out holds keys only, MRU at Front.
	ghosts   *list.List
	ghostIdx map[K]*list.Element
}

type factory[K comparable, V any] struct {
	probationCap int
	ghostCap     int
}

// New constructs a 2Q policy factory. Sizes are per shard; a common choice
// is probation ≈ 25% and ghosts ≈ 50% of the shard capacity.
func New[K comparable, V any](probationCap, ghostCap int) policy.Policy[K, V] {
	return factory[K, V]{probationCap: max(probationCap, 1), ghostCap: max(ghostCap, 1)}
}

// ForCapacity sizes the queues from a per-shard capacity using the ratios above.
func ForCapacity[K comparable, V any](shardCap int) policy.Policy[K, V] {
	return New[K, V](shardCap/4, shardCap/2)
}

func (factory[K, V]) Name() string { return Name }

func (f factory[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &twoQ[K, V]{
		h:            h,
		probationCap: f.probationCap,
		ghostCap:     f.ghostCap,
		probation:    list.New(),
		probationIdx: make(map[policy.Node[K, V]]*list.Element),
		ghosts:       list.New(),
		ghostIdx:     make(map[K]*list.Element),
	}
}

// OnAdd admits a ghost key straight into Am; any other key goes on probation.
// When probation overflows, its oldest entry is proposed for eviction.
func (q *twoQ[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	k := n.Key()
	q.h.PushFront(n)
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghosts.Remove(ge)
		delete(q.ghostIdx, k)
		return nil
	}

	q.probationIdx[n] = q.probation.PushFront(n)
	if q.probation.Len() > q.probationCap {
		if oldest := q.probation.Back(); oldest != nil {
			return oldest.Value.(policy.Node[K, V])
		}
	}
	return nil
}

// OnGet graduates a probation entry to Am and promotes it.
func (q *twoQ[K, V]) OnGet(n policy.Node[K, V]) {
	if el, ok := q.probationIdx[n]; ok {
		q.probation.Remove(el)
		delete(q.probationIdx, n)
	}
	q.h.MoveToFront(n)
}

// OnUpdate treats an overwrite as a read.
func (q *twoQ[K, V]) OnUpdate(n policy.Node[K, V]) { q.OnGet(n) }

// OnRemove turns a probation entry into a ghost. Removals from Am leave no trace.
func (q *twoQ[K, V]) OnRemove(n policy.Node[K, V]) {
	el, ok := q.probationIdx[n]
	if !ok {
		return
	}
	q.probation.Remove(el)
	delete(q.probationIdx, n)

	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghosts.Remove(old)
	}
	q.ghostIdx[k] = q.ghosts.PushFront(k)

	for q.ghosts.Len() > q.ghostCap {
		tail := q.ghosts.Back()
		delete(q.ghostIdx, tail.Value.(K))
		q.ghosts.Remove(tail)
	}
}
