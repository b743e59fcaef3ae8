// Package policy defines the contract between a map and its replacement
// policy: the map owns the recency list and the entries, the policy decides
// how accesses reorder or mark them and which entry to evict.
package policy

// Handle identifies a live entry in the map's recency list.
// The zero Handle means "none".
type Handle uint32

// Hooks expose the map's recency list to a policy. The list runs from
// Front (newest insert, MRU) to Back (oldest, LRU). Next walks toward Back,
// Prev toward Front; both return 0 at the ends.
//
// Concurrency: MoveToFront and every call made from Victim/OnInsert/OnRemove
// happen under the map's write lock. OnAccess runs under the read lock
// unless the Replacer reports Exclusive, so a non-exclusive policy may only
// touch the atomic ref bit from OnAccess.
type Hooks interface {
	Front() Handle
	Back() Handle
	Next(Handle) Handle
	Prev(Handle) Handle
	// MoveToFront re-links the entry at MRU.
	MoveToFront(Handle)
	// Pinned reports whether the entry's reference count is non-zero.
	// Pinned entries must never be returned by Victim.
	Pinned(Handle) bool
	// Referenced reads the entry's recently-used bit.
	Referenced(Handle) bool
	// SetReferenced sets or clears the recently-used bit.
	SetReferenced(Handle, bool)
	// Len returns the number of live entries.
	Len() int
}

// Replacer is a map-local policy instance bound to map hooks.
//
// Semantics:
//   - OnInsert is called after a new entry was pushed at Front.
//   - OnAccess is called on get/update/set of a present entry.
//   - OnRemove is called before an entry is unlinked, whatever the reason,
//     so the policy can move any cursor off it.
//   - Victim picks the entry to evict, or false if every entry is pinned.
//     The map unlinks the victim and calls OnRemove for it.
//   - Exclusive reports whether OnAccess mutates the list and therefore
//     needs the write lock.
type Replacer interface {
	OnInsert(Handle)
	OnAccess(Handle)
	OnRemove(Handle)
	Victim() (Handle, bool)
	Exclusive() bool
}

// Policy is a factory that creates a Replacer bound to a map's hooks.
type Policy interface {
	New(Hooks) Replacer
}
