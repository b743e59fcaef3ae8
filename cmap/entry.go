package cmap

import "sync/atomic"

// entry is one cached key/value record living in an arena slot.
// Links are slot indices into the same arena; 0 is the nil link.
type entry struct {
	key  Key
	data []byte

	// refcnt and ref are touched by readers under the read lock, so they
	// are atomic; everything else is guarded by the write lock.
	refcnt atomic.Int32
	ref    atomic.Bool

	bucket uint32 // owning bucket, for O(1) chain lookup on removal
	next   uint32 // bucket chain

	// recency list links: prev is toward the front (newer),
	// nextLRU toward the back (older).
	prev    uint32
	nextLRU uint32
}

// reset prepares a recycled slot for a new key.
func (e *entry) reset(k Key, data []byte, bucket uint32, refcnt int32) {
	e.key = k
	e.data = data
	e.refcnt.Store(refcnt)
	e.ref.Store(false)
	e.bucket = bucket
	e.next, e.prev, e.nextLRU = 0, 0, 0
}
