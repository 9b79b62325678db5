// Package policy defines the contract between a cache shard and a pluggable
// eviction policy.
//
// The shard owns storage, the key index and capacity trimming; a policy only
// decides where an entry sits in the recency list and may nominate a victim
// on admission. Capacity eviction always takes the list tail.
package policy

// Node identifies one resident entry to a policy.
//
// Nodes handed out by a shard are small comparable handles (an arena slot
// reference), so policies may use them as map keys. A handle is only valid
// until the policy receives OnRemove for it; the slot may be reused after.
type Node[K comparable, V any] interface {
	Key() K
}

// Hooks are the recency list moves a policy may request. All calls happen
// under the shard lock and cost O(1).
type Hooks[K comparable, V any] interface {
	// MoveToFront promotes a linked node to MRU.
	MoveToFront(Node[K, V])
	// PushFront links a newly admitted node at MRU.
	PushFront(Node[K, V])
}

// ShardPolicy is a per-shard eviction policy instance bound to shard hooks.
// All methods are invoked under the shard lock.
//
//   - OnAdd must link the node via PushFront. It may return an older node
//     to evict (e.g. the oldest probation entry); the shard evicts it with
//     reason "policy" and calls OnRemove for it.
//   - OnGet/OnUpdate promote the node.
//   - OnRemove runs before the shard unlinks and releases the node, for
//     every removal: eviction, expiry and explicit Remove.
type ShardPolicy[K comparable, V any] interface {
	OnAdd(Node[K, V]) (evict Node[K, V])
	OnGet(Node[K, V])
	OnUpdate(Node[K, V])
	OnRemove(Node[K, V])
}

// Policy creates shard-local instances. The shard calls New again after
// Clear so that policy state never outlives the entries it describes.
type Policy[K comparable, V any] interface {
	// Name is the configuration name ("lru", "2q").
	Name() string
	New(Hooks[K, V]) ShardPolicy[K, V]
}
