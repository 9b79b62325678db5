package cluster

import (
	"context"
	"time"
)

// Transport sends replica operations to a named peer. A replica operation
// always executes on the receiving node's local cache and never routes
// further.
//
// Implementations must honour ctx cancellation. Any returned error is a
// routing transport failure; a peer that answers "absent" is not an error.
type Transport interface {
	// Put stores key→value on peer. A positive ttl is passed through.
	Put(ctx context.Context, peer, key, value string, ttl time.Duration) error
	// Get reads key from peer's local cache.
	Get(ctx context.Context, peer, key string) (value string, found bool, err error)
	// Delete removes key from peer's local cache and reports whether it was there.
	Delete(ctx context.Context, peer, key string) (removed bool, err error)
}

// Metrics receives one signal per forwarded peer call.
type Metrics interface {
	Forward(op string, result string)
}

// Forward results.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Forwarded operations.
const (
	OpPut    = "put"
	OpGet    = "get"
	OpDelete = "delete"
)

// NoopMetrics discards router signals.
type NoopMetrics struct{}

func (NoopMetrics) Forward(string, string) {}
