// Package cache provides the node-local store of ringcache: a generic,
// bounded in-memory key/value cache with LRU eviction, per-entry TTL and
// lightweight metrics hooks.
//
// Design
//
//   - Storage: each shard keeps a map[K]int32 from key to arena slot and a
//     doubly linked MRU↔LRU list whose links are slot indices. Slots 0 and 1
//     are the head and tail sentinels; released slots are reused. All
//     operations are O(1) expected.
//
//   - Concurrency: every shard has a sync.RWMutex. Get, Set, Add, Remove and
//     Clear hold the write lock for their whole duration (Get has to promote
//     the entry, so it never reads under RLock and then upgrades). Len reads
//     under RLock.
//
//   - Capacity: Capacity (default 100) bounds the number of entries. The
//     cache has a single shard by default, which gives exact global LRU
//     order. Options.Shards > 1 trades that for lower contention: capacity
//     is split across shards and order is kept per shard.
//
//   - TTL: Set uses DefaultTTL (none by default); SetWithTTL stores an
//     explicit TTL. Expiry is lazy: an expired entry is removed only when
//     Get or Add touches it, or when capacity pressure evicts it. There is
//     no background sweep, so a key that is never read again can stay
//     resident past its TTL.
//
//   - Policies: eviction is pluggable via the policy package. LRU is the
//     default; 2Q (policy/twoq) resists scan pollution.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals;
//     metrics/prom adapts them to Prometheus.
//
// Basic usage
//
//	c := cache.New[string, string](cache.Options[string, string]{Capacity: 2})
//	c.Set("a", "1")
//	c.Set("b", "2")
//	c.Get("a")      // a becomes MRU
//	c.Set("c", "3") // evicts b
//
// With TTL
//
//	c.SetWithTTL("tmp", "v", 200*time.Millisecond)
//	time.Sleep(300 * time.Millisecond)
//	_, ok := c.Get("tmp") // ok == false, and "tmp" is gone
package cache
