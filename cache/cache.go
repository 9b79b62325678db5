package cache

import (
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/ringcache/internal/util"
	"github.com/IvanBrykalov/ringcache/policy/lru"
)

// cache fans operations out to one or more shards.
type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt      Options[K, V]
	resident atomic.Int64
}

// New constructs a cache with the provided Options; see Options for the
// defaults applied to zero values.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCapacity
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}

	n := 1
	if opt.Shards > 1 {
		n = int(util.NextPow2(uint64(opt.Shards)))
	}
	if n > opt.Capacity {
		n = opt.Capacity
	}

	c := &cache[K, V]{
		shards: make([]*shard[K, V], n),
		hash:   util.Fnv64a[K],
		opt:    opt,
	}
	// Split capacity exactly: the first Capacity%n shards take one extra
	// slot, so the shard limits sum to Capacity.
	base, extra := opt.Capacity/n, opt.Capacity%n
	for i := range c.shards {
		capacity := base
		if i < extra {
			capacity++
		}
		c.shards[i] = newShard[K, V](capacity, &c.opt, &c.resident)
	}
	return c
}

// ---- Cache[K,V] implementation ----

func (c *cache[K, V]) Add(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Add(k, v, c.now(), int64(c.opt.DefaultTTL))
}

func (c *cache[K, V]) Set(k K, v V) {
	c.SetWithTTL(k, v, c.opt.DefaultTTL)
}

func (c *cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	c.getShard(k).Set(k, v, c.now(), int64(ttl))
}

func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Get(k)
}

func (c *cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Remove(k)
}

// Clear empties the shards one at a time. A concurrent writer may land in
// a shard that was already cleared; that entry survives.
func (c *cache[K, V]) Clear() {
	if c.closed.Load() {
		return
	}
	for _, s := range c.shards {
		s.Clear()
	}
}

func (c *cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

func (c *cache[K, V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		ss := s.stats()
		st.Hits += ss.Hits
		st.Misses += ss.Misses
		st.Evictions += ss.Evictions
	}
	return st
}

func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// ---- helpers ----

// getShard skips hashing entirely for a single shard, so any comparable
// key type works in the default configuration.
func (c *cache[K, V]) getShard(k K) *shard[K, V] {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}

func (c *cache[K, V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}
