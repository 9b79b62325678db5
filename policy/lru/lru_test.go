package lru

import (
	"testing"

	"github.com/IvanBrykalov/ringcache/policy"
)

type testNode struct {
	k string
	v string
}

func (n *testNode) Key() string { return n.k }

// recordingHooks logs every hook call in order.
type recordingHooks struct {
	calls []string
}

func (h *recordingHooks) MoveToFront(n policy.Node[string, string]) {
	h.calls = append(h.calls, "move:"+n.Key())
}
func (h *recordingHooks) PushFront(n policy.Node[string, string]) {
	h.calls = append(h.calls, "push:"+n.Key())
}

func TestLRU_AddPushesFrontWithoutEviction(t *testing.T) {
	t.Parallel()

	h := &recordingHooks{}
	p := New[string, string]().New(h)

	if ev := p.OnAdd(&testNode{k: "a"}); ev != nil {
		t.Fatalf("LRU must not propose evictions, got %v", ev.Key())
	}
	if len(h.calls) != 1 || h.calls[0] != "push:a" {
		t.Fatalf("want [push:a], got %v", h.calls)
	}
}

func TestLRU_GetAndUpdatePromote(t *testing.T) {
	t.Parallel()

	h := &recordingHooks{}
	p := New[string, string]().New(h)

	n := &testNode{k: "k"}
	p.OnGet(n)
	p.OnUpdate(n)

	want := []string{"move:k", "move:k"}
	if len(h.calls) != len(want) {
		t.Fatalf("want %v, got %v", want, h.calls)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Fatalf("call %d: want %q, got %q", i, want[i], h.calls[i])
		}
	}
}

func TestLRU_RemoveIsNoop(t *testing.T) {
	t.Parallel()

	h := &recordingHooks{}
	p := New[string, string]().New(h)
	p.OnRemove(&testNode{k: "x"})

	if len(h.calls) != 0 {
		t.Fatalf("OnRemove must not touch hooks, got %v", h.calls)
	}
}
