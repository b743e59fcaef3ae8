package cmap

import (
	"context"
	"iter"
)

// Map is a reference-counted, capacity-bounded cache map from 8-byte keys
// to byte-slice values. All methods are safe for concurrent use unless the
// map was built with Options.DisableLocks.
//
// Ownership: a value handed to Create/Update/Set belongs to the map until
// the map gives it back through Callbacks, or through Set's return value.
// A value returned by Get is a view onto the live entry and stays valid
// while the caller holds the pin.
type Map interface {
	// Create inserts k→data with a reference count of 1.
	// Returns ErrExists if k is present. If the insert pushes the map over
	// MaxEntries, one unpinned entry is evicted before Create returns.
	Create(k Key, data []byte) error

	// Update replaces the value of a present key. The old value is passed
	// to Callbacks.OnReplace with ownership and without the key.
	// Returns ErrNotFound if k is absent.
	Update(k Key, data []byte) error

	// Set upserts k→data. If k was present, the old value is returned to
	// the caller (replaced == true), who becomes responsible for it; the
	// reference count is not changed. Callbacks.OnReplace still sees the
	// old value, with Owned false and no key, and OnDestroy is not called
	// for it. Otherwise Set behaves like Create.
	Set(k Key, data []byte) (old []byte, replaced bool, err error)

	// Get pins the entry (reference count + 1), marks it used and returns
	// its value. The caller must Release it later.
	Get(k Key) ([]byte, error)

	// Refcnt returns the current pin count of k.
	Refcnt(k Key) (int32, error)

	// Pin increments the pin count of a present key without fetching it.
	Pin(k Key) error

	// Release decrements the pin count of k. Releasing an unpinned entry
	// returns ErrUnderflow and leaves the count at zero.
	Release(k Key) error

	// Delete removes k and destroys its value. Returns false if k is absent.
	Delete(k Key) bool

	// Clear removes and destroys every entry.
	Clear()

	// CheckRefcnts reports every entry that is still pinned.
	CheckRefcnts() []Leak

	// Enum starts the map's single enumeration. The read lock is held
	// until the Enumerator is closed, so writers block meanwhile. The
	// enumerating goroutine must not call the Map's methods until Close;
	// the Enumerator offers Get, Pin, Release and Refcnt for that.
	Enum() (*Enumerator, error)

	// All returns an iterator over the map, newest insert first. It runs
	// one enumeration lease for the duration of the loop and yields
	// nothing if another enumeration is active. The loop body must not
	// call the Map's methods.
	All() iter.Seq2[Key, []byte]

	// GetOrLoad is Get that loads the value via Options.Loader on a miss.
	// Concurrent loads of the same key are coalesced.
	GetOrLoad(ctx context.Context, k Key) ([]byte, error)

	// Len returns the number of live entries.
	Len() int

	// Stats returns counters and pool occupancy.
	Stats() Stats

	// Close destroys every entry and marks the map closed.
	// Later operations return ErrClosed (or false).
	Close() error
}

// Leak is a pinned entry found by CheckRefcnts.
type Leak struct {
	Key    Key
	Refcnt int32
}

// Stats is a point-in-time snapshot of a map.
type Stats struct {
	Entries    int
	MaxEntries int
	Buckets    int

	Hits      uint64
	Misses    uint64
	Evictions uint64

	EntrySlots   int // entry slots allocated so far (never shrinks)
	EntriesInUse int
	EntryBatches int

	IteratorSlots   int
	IteratorsInUse  int
	IteratorBatches int
}
