// Package util contains internal helpers for the cache shards.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is the padding unit; 64 bytes matches common amd64/arm64 parts.
const CacheLineSize = 64

// CacheLinePad separates hot fields into distinct cache lines.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicUint64 is an atomic counter that owns a whole cache line, so
// per-shard hit/miss/evict counters bumped by different goroutines do not
// false-share.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

var _ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
