package cache

import "time"

// Cache is a bounded in-memory key/value store with LRU ordering and
// per-entry TTL. All methods are safe for concurrent use by multiple
// goroutines.
//
// Every operation is O(1) expected: a map lookup plus constant-time slot
// relinking under a shard lock.
type Cache[K comparable, V any] interface {
	// Add inserts k→v only if k is not present (an expired entry counts as
	// absent). It uses the cache's DefaultTTL.
	// Returns false if a live entry already exists; nothing is updated then.
	Add(k K, v V) bool

	// Set inserts or overwrites k→v with the cache's DefaultTTL (infinite
	// unless configured) and promotes the entry to most-recently-used.
	Set(k K, v V)

	// SetWithTTL is Set with an explicit TTL relative to now.
	// A non-positive ttl disables expiration for this entry.
	SetWithTTL(k K, v V, ttl time.Duration)

	// Get returns the value for k and whether it was found. An expired entry
	// is removed as part of the call and reported as a miss. On a hit the
	// entry is promoted.
	Get(k K) (V, bool)

	// Remove deletes k if present and reports whether it did.
	Remove(k K) bool

	// Clear drops every entry. Clearing an empty cache is a no-op.
	Clear()

	// Len returns the number of resident entries, including expired entries
	// that no Get has purged yet.
	Len() int

	// Stats returns cumulative hit/miss/eviction counters.
	Stats() Stats

	// Close marks the cache closed; later calls are ignored.
	// It always returns nil.
	Close() error
}

// Stats is a snapshot of cumulative counters across all shards.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}
