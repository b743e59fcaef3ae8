// Package lru implements strict LRU replacement.
package lru

import "github.com/IvanBrykalov/cmap/policy"

// lru is a classic "move-to-front" Least-Recently-Used policy.
// It delegates list manipulation to policy.Hooks provided by the map.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory that constructs LRU replacers.
//
// Each access re-links the entry, so a map using this policy serves
// Get under its write lock.
func New() policy.Policy { return lruPolicy{} }

// New implements policy.Policy by binding map hooks.
func (lruPolicy) New(h policy.Hooks) policy.Replacer {
	return &lru{h: h}
}

// OnInsert is a no-op: the map already placed the entry at MRU.
func (p *lru) OnInsert(policy.Handle) {}

// OnAccess promotes the entry to MRU.
func (p *lru) OnAccess(e policy.Handle) { p.h.MoveToFront(e) }

// OnRemove is a no-op for pure LRU (no cursor to fix up).
func (p *lru) OnRemove(policy.Handle) {}

// Victim returns the least recently used unpinned entry.
func (p *lru) Victim() (policy.Handle, bool) {
	for e := p.h.Back(); e != 0; e = p.h.Prev(e) {
		if !p.h.Pinned(e) {
			return e, true
		}
	}
	return 0, false
}

// Exclusive is true: OnAccess re-links the list.
func (p *lru) Exclusive() bool { return true }
