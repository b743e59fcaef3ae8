// Package clock implements the CLOCK (second-chance) replacement policy.
//
// Accesses only set the entry's ref bit; entries are never re-linked, so
// access needs no structural change and runs under the map's read lock.
// The hand sweeps from the oldest entry toward the newest and wraps around,
// so it walks the map's list through Prev, against the nextLRU links.
package clock

import "github.com/IvanBrykalov/cmap/policy"

type clockPolicy struct{}

// New returns a Policy factory that constructs CLOCK replacers.
func New() policy.Policy { return clockPolicy{} }

func (clockPolicy) New(h policy.Hooks) policy.Replacer {
	return &clock{h: h}
}

type clock struct {
	h    policy.Hooks
	hand policy.Handle // 0: start at Back
}

// OnInsert is a no-op: new entries enter with the ref bit clear.
func (c *clock) OnInsert(policy.Handle) {}

// OnAccess marks the entry recently used.
func (c *clock) OnAccess(e policy.Handle) { c.h.SetReferenced(e, true) }

// OnRemove moves the hand off e: to its successor in sweep order, or back
// to the unset state when e was the newest entry.
func (c *clock) OnRemove(e policy.Handle) {
	if c.hand == e {
		c.hand = c.h.Prev(e)
	}
}

// Victim sweeps from the hand. Referenced entries lose their bit and are
// passed over, pinned entries are always passed over. The first entry that
// is neither wins and the hand moves to its successor.
//
// Two full turns suffice: the first clears every unpinned ref bit, so the
// second stops at the first unpinned entry. If none is found every entry
// is pinned.
func (c *clock) Victim() (policy.Handle, bool) {
	n := c.h.Len()
	if n == 0 {
		return 0, false
	}
	e := c.hand
	if e == 0 {
		e = c.h.Back()
	}
	for steps := 0; steps < 2*n; steps++ {
		switch {
		case c.h.Pinned(e):
		case c.h.Referenced(e):
			c.h.SetReferenced(e, false)
		default:
			c.hand = c.h.Prev(e)
			return e, true
		}
		if e = c.h.Prev(e); e == 0 {
			e = c.h.Back()
		}
	}
	c.hand = e
	return 0, false
}

// Exclusive is false: OnAccess only flips the atomic ref bit.
func (c *clock) Exclusive() bool { return false }
