package ring

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwner_EmptyRing(t *testing.T) {
	t.Parallel()

	for _, nodes := range [][]string{nil, {}, {""}} {
		r := New(nodes, Options{})
		for i := 0; i < 100; i++ {
			_, ok := r.Owner("k" + strconv.Itoa(i))
			require.False(t, ok)
		}
		assert.Zero(t, r.Len())
	}
}

func TestOwner_DeterministicAndTotal(t *testing.T) {
	t.Parallel()

	nodes := []string{"N1", "N2", "N3"}
	a := New(nodes, Options{})
	b := New(nodes, Options{})

	first, ok := a.Owner("foo")
	require.True(t, ok)
	assert.Contains(t, nodes, first)

	for i := 0; i < 10; i++ {
		got, _ := a.Owner("foo")
		assert.Equal(t, first, got)
	}
	for i := 0; i < 5000; i++ {
		k := "key-" + strconv.Itoa(i)
		ownerA, okA := a.Owner(k)
		ownerB, okB := b.Owner(k)
		require.True(t, okA)
		require.True(t, okB)
		require.Equal(t, ownerA, ownerB, "independently built rings disagree on %q", k)
	}
}

func TestNew_OrderAndDuplicatesDoNotMatter(t *testing.T) {
	t.Parallel()

	a := New([]string{"http://a", "http://b", "http://c"}, Options{})
	b := New([]string{"http://c", "http://a", "http://b", "http://a"}, Options{})

	require.Equal(t, a.Len(), b.Len())
	require.LessOrEqual(t, b.Len(), 3*DefaultReplicas)
	for i := 0; i < 2000; i++ {
		k := strconv.Itoa(i)
		oa, _ := a.Owner(k)
		ob, _ := b.Owner(k)
		require.Equal(t, oa, ob)
	}
	assert.Equal(t, []string{"http://c", "http://a", "http://b"}, b.Nodes())
}

func TestOwner_NearestClockwiseWithWrap(t *testing.T) {
	t.Parallel()

	// Positions: A#0=10, B#0=20, key hashes are looked up in the table.
	pos := map[string]uint32{"A#0": 10, "B#0": 20, "k5": 5, "k10": 10, "k15": 15, "k25": 25}
	r := New([]string{"A", "B"}, Options{Replicas: 1, Hash: func(s string) uint32 { return pos[s] }})

	cases := map[string]string{
		"k5":  "A", // before the first point
		"k10": "A", // exactly on a point
		"k15": "B",
		"k25": "A", // past the last point wraps
	}
	for k, want := range cases {
		got, ok := r.Owner(k)
		require.True(t, ok)
		assert.Equal(t, want, got, "owner of %s", k)
	}
}

func TestNew_CollisionGoesToSmallerNode(t *testing.T) {
	t.Parallel()

	same := func(string) uint32 { return 42 }
	r1 := New([]string{"b", "a"}, Options{Replicas: 3, Hash: same})
	r2 := New([]string{"a", "b"}, Options{Replicas: 3, Hash: same})

	require.Equal(t, 1, r1.Len())
	o1, _ := r1.Owner("x")
	o2, _ := r2.Owner("x")
	assert.Equal(t, "a", o1)
	assert.Equal(t, o1, o2)
}

func TestHash31_NonNegative31Bit(t *testing.T) {
	t.Parallel()

	for i := 0; i < 10_000; i++ {
		h := Hash31(fmt.Sprintf("node-%d#%d", i%7, i))
		require.Less(t, h, uint32(1<<31))
	}
	assert.Equal(t, Hash31("stable"), Hash31("stable"))
}

// With 100 virtual points each node should own a reasonable share.
func TestOwner_SpreadsLoad(t *testing.T) {
	t.Parallel()

	nodes := []string{"http://10.0.0.1:8080", "http://10.0.0.2:8080", "http://10.0.0.3:8080", "http://10.0.0.4:8080"}
	r := New(nodes, Options{})

	counts := map[string]int{}
	const keys = 40_000
	for i := 0; i < keys; i++ {
		o, _ := r.Owner("user:" + strconv.Itoa(i))
		counts[o]++
	}
	require.Len(t, counts, len(nodes))
	for n, c := range counts {
		share := float64(c) / keys
		assert.Greater(t, share, 0.10, "node %s owns too little", n)
		assert.Less(t, share, 0.45, "node %s owns too much", n)
	}
}
