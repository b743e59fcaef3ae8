// Package util contains internal helpers (hashing, bucket indexing, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// HashKey hashes the 8 little-endian bytes of an 8-byte key with xxhash64.
// The hash is fixed for the lifetime of the process; bucket placement
// depends on it, so it must never change between calls.
func HashKey(k uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], k)
	return xxhash.Sum64(b[:])
}

// BucketIndex maps a 64-bit hash to a bucket index in [0, buckets).
// Uses a mask when buckets is a power of two, modulo otherwise.
func BucketIndex(hash uint64, buckets int) int {
	if buckets <= 1 {
		return 0
	}
	if IsPowerOfTwo(buckets) {
		return int(hash & uint64(buckets-1))
	}
	return int(hash % uint64(buckets))
}
