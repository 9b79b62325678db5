package util

import "fmt"

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// Fnv64a hashes a shard key with 64-bit FNV-1a without allocating.
// Supported: string, []byte-like arrays, every integer width and
// fmt.Stringer. Other key types panic, because silently hashing them badly
// would skew the shards; use a single shard or a string key instead.
func Fnv64a[K comparable](k K) uint64 {
	switch v := any(k).(type) {
	case string:
		return fnvString(v)
	case [16]byte:
		return fnvBytes(v[:])
	case [32]byte:
		return fnvBytes(v[:])
	case int:
		return fnvUint(uint64(v))
	case int8:
		return fnvUint(uint64(uint8(v)))
	case int16:
		return fnvUint(uint64(uint16(v)))
	case int32:
		return fnvUint(uint64(uint32(v)))
	case int64:
		return fnvUint(uint64(v))
	case uint:
		return fnvUint(uint64(v))
	case uint8:
		return fnvUint(uint64(v))
	case uint16:
		return fnvUint(uint64(v))
	case uint32:
		return fnvUint(uint64(v))
	case uint64:
		return fnvUint(v)
	case uintptr:
		return fnvUint(uint64(v))
	case fmt.Stringer:
		return fnvString(v.String())
	default:
		panic(fmt.Sprintf("util.Fnv64a: unsupported key type %T", k))
	}
}

func fnvString(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

func fnvBytes(b []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	return h
}

// fnvUint hashes the 8 little-endian bytes of u.
func fnvUint(u uint64) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < 8; i++ {
		h ^= uint64(byte(u))
		h *= fnvPrime64
		u >>= 8
	}
	return h
}
