package cmap

import "github.com/IvanBrykalov/cmap/policy"

// listHooks adapts the map's recency list and entry bits to policy.Hooks.
// Policies call these under the lock documented on policy.Hooks.
type listHooks struct{ m *cmap }

func (h listHooks) Front() policy.Handle { return policy.Handle(h.m.lru.head) }
func (h listHooks) Back() policy.Handle  { return policy.Handle(h.m.lru.tail) }
func (h listHooks) Len() int             { return h.m.lru.len }

func (h listHooks) Next(e policy.Handle) policy.Handle {
	return policy.Handle(h.m.ents.At(uint32(e)).nextLRU)
}

func (h listHooks) Prev(e policy.Handle) policy.Handle {
	return policy.Handle(h.m.ents.At(uint32(e)).prev)
}

func (h listHooks) MoveToFront(e policy.Handle) { h.m.lru.moveToFront(h.m.ents, uint32(e)) }

func (h listHooks) Pinned(e policy.Handle) bool {
	return h.m.ents.At(uint32(e)).refcnt.Load() != 0
}

func (h listHooks) Referenced(e policy.Handle) bool {
	return h.m.ents.At(uint32(e)).ref.Load()
}

func (h listHooks) SetReferenced(e policy.Handle, v bool) {
	h.m.ents.At(uint32(e)).ref.Store(v)
}
