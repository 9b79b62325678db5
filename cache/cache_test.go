package cache

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/IvanBrykalov/ringcache/policy/twoq"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

// checkList walks every shard list from head to tail and back, verifying
// that it holds exactly the indexed keys.
func checkList[K comparable, V any](t *testing.T, c Cache[K, V]) {
	t.Helper()

	impl := c.(*cache[K, V])
	for si, s := range impl.shards {
		s.mu.RLock()
		seen := 0
		prev := headSlot
		for i := s.slots[headSlot].next; i != tailSlot; i = s.slots[i].next {
			if s.slots[i].prev != prev {
				s.mu.RUnlock()
				t.Fatalf("shard %d: broken back link at slot %d", si, i)
			}
			if s.index[s.slots[i].key] != i {
				s.mu.RUnlock()
				t.Fatalf("shard %d: slot %d not indexed", si, i)
			}
			prev = i
			seen++
		}
		n, idx, limit := s.len, len(s.index), s.cap
		s.mu.RUnlock()
		if seen != n || seen != idx {
			t.Fatalf("shard %d: list has %d entries, len=%d, index=%d", si, seen, n, idx)
		}
		if n > limit {
			t.Fatalf("shard %d: len %d over capacity %d", si, n, limit)
		}
	}
}

func TestCache_DefaultCapacity(t *testing.T) {
	t.Parallel()

	c := New[int, int](Options[int, int]{})
	for i := 0; i < 250; i++ {
		c.Set(i, i)
	}
	if c.Len() != DefaultCapacity {
		t.Fatalf("want Len %d, got %d", DefaultCapacity, c.Len())
	}
	checkList(t, c)
}

// Capacity 2: put a, put b, get a, put c -> b is evicted.
func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := New[string, int](Options[string, int]{
		Capacity: 2,
		OnEvict: func(k string, _ int, r EvictReason) {
			if r != EvictCapacity {
				t.Errorf("want capacity eviction, got %v", r)
			}
			evicted = append(evicted, k)
		},
	})

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expect hit for a")
	}
	c.Set("c", 3)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a: want 1, got %v ok=%v", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("b must be evicted")
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("c: want 3, got %v ok=%v", v, ok)
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("want exactly [b] evicted, got %v", evicted)
	}
	checkList(t, c)
}

func TestCache_CapacityInvariantOnEveryInsert(t *testing.T) {
	t.Parallel()

	const capacity = 5
	evictions := 0
	c := New[string, int](Options[string, int]{
		Capacity: capacity,
		OnEvict:  func(string, int, EvictReason) { evictions++ },
	})

	for i := 0; i < 50; i++ {
		before := evictions
		c.Set("k"+strconv.Itoa(i), i)
		if c.Len() > capacity {
			t.Fatalf("after insert %d: Len %d > %d", i, c.Len(), capacity)
		}
		if i >= capacity && evictions-before != 1 {
			t.Fatalf("insert %d: want exactly one eviction, got %d", i, evictions-before)
		}
		// The oldest untouched key is the one that left.
		if i >= capacity {
			if _, ok := c.Get("k" + strconv.Itoa(i-capacity)); ok {
				t.Fatalf("k%d must be evicted", i-capacity)
			}
		}
	}
	checkList(t, c)
}

// A key read right before an overflowing put must survive it.
func TestCache_GetProtectsFromNextEviction(t *testing.T) {
	t.Parallel()

	const capacity = 4
	for target := 0; target < capacity; target++ {
		c := New[int, int](Options[int, int]{Capacity: capacity})
		for i := 0; i < capacity; i++ {
			c.Set(i, i)
		}
		c.Get(target)
		c.Set(100, 100)
		if _, ok := c.Get(target); !ok {
			t.Fatalf("key %d read before overflow must survive", target)
		}
	}
}

func TestCache_OverwriteKeepsSizeAndPromotes(t *testing.T) {
	t.Parallel()

	c := New[string, string](Options[string, string]{Capacity: 2})
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "1*") // a is MRU now

	if c.Len() != 2 {
		t.Fatalf("overwrite must not change size, got %d", c.Len())
	}
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Fatal("b must be evicted after a was overwritten")
	}
	if v, _ := c.Get("a"); v != "1*" {
		t.Fatalf("a must hold the new value, got %q", v)
	}
}

func TestCache_TTLExpiresLazily(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	var reasons []EvictReason
	c := New[string, string](Options[string, string]{
		Capacity: 4,
		Clock:    clk,
		OnEvict:  func(_ string, _ string, r EvictReason) { reasons = append(reasons, r) },
	})

	c.SetWithTTL("x", "v", 100*time.Millisecond)
	c.Set("forever", "v")

	clk.add(100 * time.Millisecond)
	if _, ok := c.Get("x"); !ok {
		t.Fatal("entry must still be live at exactly its TTL")
	}

	clk.add(time.Millisecond)
	if c.Len() != 2 {
		t.Fatalf("expired entry stays resident until touched, Len=%d", c.Len())
	}
	if _, ok := c.Get("x"); ok {
		t.Fatal("expired entry must miss")
	}
	if c.Len() != 1 {
		t.Fatalf("expired entry must be purged by Get, Len=%d", c.Len())
	}
	if len(reasons) != 1 || reasons[0] != EvictTTL {
		t.Fatalf("want one TTL eviction, got %v", reasons)
	}

	clk.add(24 * time.Hour)
	if _, ok := c.Get("forever"); !ok {
		t.Fatal("entry without TTL must never expire")
	}
	checkList(t, c)
}

func TestCache_SetResetsTTL(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[string, string](Options[string, string]{Capacity: 4, Clock: clk})

	c.SetWithTTL("k", "v1", time.Second)
	clk.add(900 * time.Millisecond)
	c.Set("k", "v2") // infinite TTL
	clk.add(time.Hour)

	if v, ok := c.Get("k"); !ok || v != "v2" {
		t.Fatalf("overwrite with plain Set must clear the TTL, got %q ok=%v", v, ok)
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[string, int](Options[string, int]{Capacity: 4, Clock: clk, DefaultTTL: time.Second})

	c.Set("a", 1)
	c.SetWithTTL("b", 2, 0)
	clk.add(2 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatal("a must expire with DefaultTTL")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("explicit zero TTL must not expire")
	}
}

func TestCache_AddOnlyInsertsAbsentOrExpired(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[string, int](Options[string, int]{Capacity: 4, Clock: clk})

	if !c.Add("a", 1) {
		t.Fatal("Add of a new key must succeed")
	}
	if c.Add("a", 2) {
		t.Fatal("Add of a live key must fail")
	}
	c.SetWithTTL("t", 1, time.Millisecond)
	clk.add(time.Second)
	if !c.Add("t", 2) {
		t.Fatal("Add must replace an expired entry")
	}
	if v, _ := c.Get("t"); v != 2 {
		t.Fatalf("want 2, got %d", v)
	}
}

func TestCache_RemoveReportsPresence(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 4})
	c.Set("a", 1)

	if !c.Remove("a") {
		t.Fatal("first Remove must report true")
	}
	if c.Remove("a") {
		t.Fatal("second Remove must report false")
	}
	if c.Len() != 0 {
		t.Fatalf("want empty cache, got %d", c.Len())
	}
	checkList(t, c)
}

func TestCache_ClearIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 8})
	for i := 0; i < 8; i++ {
		c.Set(fmt.Sprint(i), i)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len after Clear = %d", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len after second Clear = %d", c.Len())
	}
	checkList(t, c)

	// The cache is fully usable afterwards.
	c.Set("x", 1)
	if v, ok := c.Get("x"); !ok || v != 1 {
		t.Fatal("cache must accept writes after Clear")
	}
}

func TestCache_SlotsAreReused(t *testing.T) {
	t.Parallel()

	c := New[int, int](Options[int, int]{Capacity: 3})
	for i := 0; i < 1000; i++ {
		c.Set(i, i)
		if i%2 == 0 {
			c.Remove(i)
		}
	}
	s := c.(*cache[int, int]).shards[0]
	if got := len(s.slots); got > firstSlot+4 {
		t.Fatalf("arena must stay bounded by capacity, has %d slots", got)
	}
	checkList(t, c)
}

func TestCache_ShardsSplitCapacityExactly(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 10, Shards: 4})
	total := 0
	for _, s := range c.(*cache[string, int]).shards {
		total += s.cap
	}
	if total != 10 {
		t.Fatalf("shard capacities must sum to 10, got %d", total)
	}
	for i := 0; i < 100; i++ {
		c.Set("k"+strconv.Itoa(i), i)
		if c.Len() > 10 {
			t.Fatalf("Len %d over capacity", c.Len())
		}
	}
	checkList(t, c)
}

func TestCache_ShardsCappedByCapacity(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 3, Shards: 16})
	if n := len(c.(*cache[string, int]).shards); n != 3 {
		t.Fatalf("want 3 shards, got %d", n)
	}
}

func TestCache_TwoQPolicyKeepsInvariants(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{
		Capacity: 8,
		Policy:   twoq.New[string, int](2, 4),
	})
	for i := 0; i < 200; i++ {
		k := "k" + strconv.Itoa(i%13)
		c.Set(k, i)
		if i%3 == 0 {
			c.Get(k)
		}
		if i%7 == 0 {
			c.Remove("k" + strconv.Itoa(i%5))
		}
		checkList(t, c)
	}
	c.Clear()
	checkList(t, c)
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 1})
	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	c.Set("b", 2)

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Evictions != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestCache_ClosedIgnoresCalls(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 4})
	c.Set("a", 1)
	_ = c.Close()

	c.Set("b", 2)
	if _, ok := c.Get("a"); ok {
		t.Fatal("closed cache must miss")
	}
	if c.Remove("a") {
		t.Fatal("closed cache must not remove")
	}
}

func TestNamedPolicy(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]string{"": "lru", "lru": "lru", "2q": "2q"} {
		p, ok := NamedPolicy[string, int](name, 100, 1)
		if !ok {
			t.Fatalf("policy %q must be known", name)
		}
		if p.Name() != want {
			t.Fatalf("policy %q: want name %q, got %q", name, want, p.Name())
		}
	}
	if _, ok := NamedPolicy[string, int]("arc", 100, 1); ok {
		t.Fatal("unknown policy must be rejected")
	}
}

type sizeMetrics struct {
	NoopMetrics
	last int
}

func (m *sizeMetrics) Size(n int) { m.last = n }

func TestCache_TTLPurgeUpdatesSize(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	m := &sizeMetrics{}
	c := New[string, int](Options[string, int]{Capacity: 4, Clock: clk, Metrics: m})

	c.SetWithTTL("a", 1, time.Second)
	c.Set("b", 2)
	if m.last != 2 {
		t.Fatalf("want size 2, got %d", m.last)
	}
	clk.add(2 * time.Second)
	c.Get("a")
	if m.last != 1 || c.Len() != 1 {
		t.Fatalf("after purge want size 1, got gauge=%d Len=%d", m.last, c.Len())
	}
}
