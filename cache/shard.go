package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/ringcache/internal/util"
	"github.com/IvanBrykalov/ringcache/policy"
)

// shard is an independent partition of the cache with its own lock, a
// key→slot index and an arena-backed recency list (head=MRU, tail=LRU).
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu    sync.RWMutex
	index map[K]int32
	slots []entry[K, V] // slots[0], slots[1] are the sentinels
	free  []int32       // released slots, reused LIFO
	len   int           // number of linked entries
	cap   int

	factory policy.Policy[K, V]
	pol     policy.ShardPolicy[K, V]
	opt     *Options[K, V]

	// resident is the cache-wide entry count shared by all shards; it only
	// feeds Metrics.Size.
	resident *atomic.Int64

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
	evicts util.PaddedAtomicUint64
}

func newShard[K comparable, V any](capacity int, opt *Options[K, V], resident *atomic.Int64) *shard[K, V] {
	s := &shard[K, V]{
		cap:      capacity,
		factory:  opt.Policy,
		opt:      opt,
		resident: resident,
	}
	s.resetLocked()
	return s
}

// Add inserts a new entry. A present but expired entry is purged first.
func (s *shard[K, V]) Add(k K, v V, created, ttl int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[k]; ok {
		if !s.slots[i].expired(s.now()) {
			return false
		}
		s.evictLocked(i, EvictTTL)
	}
	s.insertLocked(k, v, created, ttl)
	return true
}

// Set inserts or overwrites an entry and promotes it.
func (s *shard[K, V]) Set(k K, v V, created, ttl int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[k]; ok {
		e := &s.slots[i]
		e.val = v
		e.created = created
		e.ttl = ttl
		s.pol.OnUpdate(handle[K, V]{s, i})
		s.trimLocked()
		return
	}
	s.insertLocked(k, v, created, ttl)
}

// Get looks up, expires and promotes within a single exclusive section, so
// the entry cannot be removed between the lookup and the promotion.
func (s *shard[K, V]) Get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[k]
	if ok && s.slots[i].expired(s.now()) {
		s.evictLocked(i, EvictTTL)
		s.opt.Metrics.Size(int(s.resident.Load()))
		ok = false
	}
	if !ok {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}

	s.pol.OnGet(handle[K, V]{s, i})
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return s.slots[i].val, true
}

// Remove deletes an entry by key. Returns true if the entry existed.
// Explicit removals are not counted as evictions.
func (s *shard[K, V]) Remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[k]
	if !ok {
		return false
	}
	s.dropLocked(i)
	s.opt.Metrics.Size(int(s.resident.Load()))
	return true
}

// Clear drops every entry and starts a fresh policy instance.
func (s *shard[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resident.Add(-int64(s.len))
	s.resetLocked()
	s.opt.Metrics.Size(int(s.resident.Load()))
}

// Len returns the number of resident entries in this shard.
func (s *shard[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

func (s *shard[K, V]) stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Evictions: s.evicts.Load()}
}

// -------------------- internals (mu held) --------------------

func (s *shard[K, V]) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (s *shard[K, V]) resetLocked() {
	s.index = make(map[K]int32, s.cap)
	s.slots = make([]entry[K, V], firstSlot, firstSlot+s.cap+1)
	s.slots[headSlot] = entry[K, V]{prev: detached, next: tailSlot}
	s.slots[tailSlot] = entry[K, V]{prev: headSlot, next: detached}
	s.free = nil
	s.len = 0
	s.pol = s.factory.New(shardHooks[K, V]{s})
}

func (s *shard[K, V]) insertLocked(k K, v V, created, ttl int64) {
	i := s.alloc()
	s.slots[i] = entry[K, V]{key: k, val: v, created: created, ttl: ttl, prev: detached, next: detached}
	s.index[k] = i
	s.resident.Add(1)

	if ev := s.pol.OnAdd(handle[K, V]{s, i}); ev != nil {
		s.evictLocked(ev.(handle[K, V]).slot, EvictPolicy)
	}
	s.trimLocked()
}

// trimLocked evicts from the LRU end until the shard fits its capacity.
// Each insert adds one entry, so under LRU this evicts at most once.
func (s *shard[K, V]) trimLocked() {
	for s.len > s.cap {
		lruSlot := s.back()
		if lruSlot == headSlot {
			break
		}
		s.evictLocked(lruSlot, EvictCapacity)
	}
	s.opt.Metrics.Size(int(s.resident.Load()))
}

func (s *shard[K, V]) evictLocked(i int32, reason EvictReason) {
	k, v := s.slots[i].key, s.slots[i].val
	s.dropLocked(i)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		cb(k, v, reason)
	}
}

// dropLocked notifies the policy, unlinks the slot, forgets the key and
// releases the slot, in that order.
func (s *shard[K, V]) dropLocked(i int32) {
	s.pol.OnRemove(handle[K, V]{s, i})
	if s.slots[i].prev != detached {
		s.unlink(i)
	}
	delete(s.index, s.slots[i].key)
	s.release(i)
	s.resident.Add(-1)
}

func (s *shard[K, V]) alloc() int32 {
	if n := len(s.free); n > 0 {
		i := s.free[n-1]
		s.free = s.free[:n-1]
		return i
	}
	s.slots = append(s.slots, entry[K, V]{})
	return int32(len(s.slots) - 1)
}

// release zeroes the slot so the GC can reclaim key and value.
func (s *shard[K, V]) release(i int32) {
	s.slots[i] = entry[K, V]{prev: detached, next: detached}
	s.free = append(s.free, i)
}

// attachFront links slot i right after the head sentinel.
func (s *shard[K, V]) attachFront(i int32) {
	first := s.slots[headSlot].next
	s.slots[i].prev = headSlot
	s.slots[i].next = first
	s.slots[first].prev = i
	s.slots[headSlot].next = i
}

func (s *shard[K, V]) detach(i int32) {
	p, n := s.slots[i].prev, s.slots[i].next
	s.slots[p].next = n
	s.slots[n].prev = p
	s.slots[i].prev, s.slots[i].next = detached, detached
}

func (s *shard[K, V]) pushFront(i int32) {
	s.attachFront(i)
	s.len++
}

func (s *shard[K, V]) moveToFront(i int32) {
	if s.slots[headSlot].next == i {
		return
	}
	s.detach(i)
	s.attachFront(i)
}

func (s *shard[K, V]) unlink(i int32) {
	s.detach(i)
	s.len--
}

// back returns the LRU slot, or headSlot when the list is empty.
func (s *shard[K, V]) back() int32 { return s.slots[tailSlot].prev }

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
type shardHooks[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(handle[K, V]).slot) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.pushFront(x.(handle[K, V]).slot) }
