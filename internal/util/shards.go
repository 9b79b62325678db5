package util

// NextPow2 returns the smallest power of two >= x (1 for x <= 1), clamped
// to 1<<63 on overflow.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	if x == 0 {
		return 1 << 63
	}
	return x
}

// ShardIndex maps a 64-bit hash to one of n shards. Power-of-two counts use
// a mask; anything else (a count capped by a small capacity) falls back to
// modulo.
func ShardIndex(hash uint64, n int) int {
	if n <= 1 {
		return 0
	}
	if n&(n-1) == 0 {
		return int(hash & uint64(n-1))
	}
	return int(hash % uint64(n))
}
