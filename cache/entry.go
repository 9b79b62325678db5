package cache

// Reserved arena slots. The recency list is circular through these two
// sentinels: head.next is the MRU entry and tail.prev the LRU entry.
const (
	headSlot  int32 = 0
	tailSlot  int32 = 1
	firstSlot       = 2

	// detached marks prev/next of a slot that is not on the list.
	detached int32 = -1
)

// entry is one arena slot. Entries never hold pointers to each other;
// recency links are slot indices, so growing or reusing the arena cannot
// leave a dangling link behind.
type entry[K comparable, V any] struct {
	key K
	val V

	// created is the UnixNano time of the last write.
	created int64
	// ttl in nanoseconds; 0 means the entry never expires.
	ttl int64

	prev, next int32
}

// expired reports whether the entry's TTL has run out at now.
func (e *entry[K, V]) expired(now int64) bool {
	return e.ttl > 0 && now-e.created > e.ttl
}

// handle is the policy.Node view of a slot. It is comparable, so policies
// can index by it, and stays valid until the slot is released.
type handle[K comparable, V any] struct {
	s    *shard[K, V]
	slot int32
}

// Key returns the slot key (part of policy.Node).
func (h handle[K, V]) Key() K { return h.s.slots[h.slot].key }
