package cache

import (
	"time"

	"github.com/IvanBrykalov/ringcache/policy"
	"github.com/IvanBrykalov/ringcache/policy/lru"
	"github.com/IvanBrykalov/ringcache/policy/twoq"
)

// DefaultCapacity is used when Options.Capacity is not positive.
const DefaultCapacity = 100

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictCapacity: the LRU tail was trimmed because the shard was full.
	EvictCapacity EvictReason = iota
	// EvictTTL: the entry had expired when it was read.
	EvictTTL
	// EvictPolicy: the active policy chose the victim (e.g. 2Q probation overflow).
	EvictPolicy
)

func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictPolicy:
		return "policy"
	default:
		return "capacity"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe; New applies:
//   - Capacity <= 0 => DefaultCapacity
//   - Shards <= 1   => a single shard (exact global LRU order)
//   - nil Policy    => LRU
//   - nil Metrics   => NoopMetrics
type Options[K comparable, V any] struct {
	// Capacity is the total entry limit across all shards.
	Capacity int

	// Shards splits the cache into independently locked partitions.
	// Values above 1 are rounded up to a power of two and capped at
	// Capacity. With more than one shard LRU order is kept per shard, and
	// keys must be of a type internal/util.Fnv64a can hash.
	Shards int

	// Policy is a pluggable eviction policy; nil => LRU.
	Policy policy.Policy[K, V]

	// DefaultTTL applies to Add/Set (0 = no expiry).
	DefaultTTL time.Duration

	// OnEvict is called for every eviction under the shard lock; keep it cheap
	// and never call back into the cache from it.
	OnEvict func(k K, v V, reason EvictReason)

	Metrics Metrics

	// Clock overrides the time source (tests). Nil => time.Now().
	Clock Clock
}

// NamedPolicy returns the policy registered under name ("lru" or "2q"),
// sized for a cache of the given capacity and shard count.
func NamedPolicy[K comparable, V any](name string, capacity, shards int) (policy.Policy[K, V], bool) {
	switch name {
	case "", lru.Name:
		return lru.New[K, V](), true
	case twoq.Name:
		if shards < 1 {
			shards = 1
		}
		return twoq.ForCapacity[K, V]((capacity + shards - 1) / shards), true
	default:
		return nil, false
	}
}
