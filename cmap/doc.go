// Package cmap provides a concurrent, reference-counted, capacity-bounded
// cache map: 8-byte keys, opaque byte-slice values, entries pinned while in
// use and unpinned entries evicted by CLOCK (second chance) when the map
// goes over its entry limit.
//
// Design
//
//   - Storage: a fixed-size bucket table of singly linked chains, sized at
//     construction and never rehashed, plus one doubly linked recency list
//     over every live entry (newest first). Entries live in an arena that
//     grows in batches and recycles slots; links are slot indices, not
//     pointers.
//
//   - Concurrency: one RWMutex per map. Structural changes take the write
//     lock; Get/Pin/Release take the read lock and change pin counts and
//     ref bits with atomics. Get takes the write lock instead under a
//     policy that re-links on access (policy/lru). Options.DisableLocks
//     turns locking off for single-goroutine use.
//
//   - Eviction: when an insert pushes the map above MaxEntries, exactly one
//     victim is evicted before the insert returns. Pinned entries are never
//     victims. The policy is pluggable (policy/clock by default,
//     policy/lru for strict LRU).
//
//   - Ownership: values are owned by the map from insert until handed back
//     through Callbacks (OnReplace on overwrite and eviction, OnDestroy as
//     final destructor) or through Set's return value.
//
//   - Errors: ErrNotFound/ErrExists are ordinary results. Misuse (wrong key
//     length, pin count past MaxRefcnt, no victim while over capacity) is
//     reported as *ContractViolation; treat it as fatal.
//
// Basic usage
//
//	m, _ := cmap.New(cmap.Options{MaxEntries: 1024})
//	_ = m.Create(42, []byte("node"))  // pinned once by the creator
//	_ = m.Release(42)                 // now evictable
//	if v, err := m.Get(42); err == nil {
//	    _ = v // use value while pinned
//	    _ = m.Release(42)
//	}
//
// Enumeration
//
//	for k, v := range m.All() {
//	    fmt.Println(k, len(v))
//	}
//
// Only one enumeration runs per map at a time, and it holds the read lock
// until it ends; writers wait for it.
package cmap
