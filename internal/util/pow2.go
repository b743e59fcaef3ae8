package util

import "math/bits"

// MaxBuckets bounds a bucket table. It fits both a 32-bit int and the
// 32-bit bucket field of an entry.
const MaxBuckets = 1 << 30

// IsPowerOfTwo reports whether n is a power of two (> 0).
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPow2 returns the smallest power of two >= n, clamped to [1, MaxBuckets].
func NextPow2(n int) int {
	switch {
	case n <= 1:
		return 1
	case n >= MaxBuckets:
		return MaxBuckets
	}
	return 1 << bits.Len(uint(n-1))
}
