// Package singleflight coalesces concurrent calls that share a key.
package singleflight

import (
	"context"
	"sync"
)

// Group runs fn at most once per key at a time; callers arriving while a
// call is in flight wait for its result instead of starting their own.
//
// The first caller (the leader) runs fn with its own context. A follower
// whose ctx ends stops waiting and gets ctx.Err(); the leader keeps going.
// The zero Group is ready to use.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed after val/err are set
	val  V
	err  error
	dups int
}

// Do executes fn for key, or joins the call already in flight. shared
// reports whether the result was handed to more than one caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err(), true
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	delete(g.m, key)
	shared = c.dups > 0
	g.mu.Unlock()
	close(c.done)

	return c.val, c.err, shared
}
