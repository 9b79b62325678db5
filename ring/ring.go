// Package ring implements the consistent-hash ring that assigns every key
// to one owning node.
//
// Each node is placed on a 31-bit hash circle at Replicas virtual points,
// hash(node + "#" + i). A key belongs to the node of the first point at or
// clockwise after hash(key), wrapping past the largest point to the
// smallest. A Ring is immutable after New and safe for concurrent use
// without locking; every node of a cluster must build it from the same
// node set so that routing decisions agree.
package ring

import (
	"cmp"
	"slices"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DefaultReplicas is the number of virtual points per node.
const DefaultReplicas = 100

// Hash maps a string to a position on the ring. Implementations must be
// deterministic and should spread values uniformly over [0, 1<<31).
type Hash func(s string) uint32

// Options configures ring construction. Zero values select the defaults.
type Options struct {
	// Replicas is the number of virtual points per node (default 100).
	Replicas int
	// Hash overrides the position function (default: Hash31).
	Hash Hash
}

type point struct {
	hash uint32
	node string
}

// Ring is an immutable consistent-hash ring.
type Ring struct {
	points []point // sorted by hash, hashes unique
	nodes  []string
	hash   Hash
}

// Hash31 is the default position function: xxhash64 truncated to a
// non-negative 31-bit value.
func Hash31(s string) uint32 {
	return uint32(xxhash.Sum64String(s)) & 0x7fffffff
}

// New builds a ring from node ids. Empty ids are skipped and duplicates
// collapse to one node. When two virtual points of different nodes land on
// the same hash, the lexicographically smaller node keeps it, so the ring
// does not depend on the order of nodes.
func New(nodes []string, opt Options) *Ring {
	if opt.Replicas <= 0 {
		opt.Replicas = DefaultReplicas
	}
	if opt.Hash == nil {
		opt.Hash = Hash31
	}

	r := &Ring{hash: opt.Hash}
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		r.nodes = append(r.nodes, n)
	}

	r.points = make([]point, 0, len(r.nodes)*opt.Replicas)
	for _, n := range r.nodes {
		for i := 0; i < opt.Replicas; i++ {
			r.points = append(r.points, point{hash: opt.Hash(n + "#" + strconv.Itoa(i)), node: n})
		}
	}
	slices.SortFunc(r.points, func(a, b point) int {
		if c := cmp.Compare(a.hash, b.hash); c != 0 {
			return c
		}
		return cmp.Compare(a.node, b.node)
	})
	r.points = slices.CompactFunc(r.points, func(a, b point) bool { return a.hash == b.hash })
	return r
}

// Owner returns the node responsible for key. It reports false only when
// the ring has no nodes.
func (r *Ring) Owner(key string) (string, bool) {
	if len(r.points) == 0 {
		return "", false
	}
	h := r.hash(key)
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if i == len(r.points) {
		i = 0
	}
	return r.points[i].node, true
}

// Nodes returns the distinct node ids in configuration order.
func (r *Ring) Nodes() []string { return slices.Clone(r.nodes) }

// Len returns the number of points on the ring.
func (r *Ring) Len() int { return len(r.points) }
