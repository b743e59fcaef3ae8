package cmap

import (
	"iter"

	"github.com/IvanBrykalov/cmap/internal/arena"
)

// iterator is the pooled cursor state behind an Enumerator.
type iterator struct {
	cursor arena.Handle // next entry to return; 0 at the end
}

// Enumerator walks a map from the newest to the oldest entry. It is used
// by one goroutine.
//
// While an Enumerator is open the map's read lock is held and writers
// block until Close. The enumerating goroutine must not call any method
// of the map itself: a second read lock queues behind a waiting writer and
// deadlocks. Use the Enumerator's Get, Pin, Release and Refcnt instead;
// they run under the lock the enumeration already holds.
//
// With Options.DisableLocks nothing stops a structural change while the
// enumeration is open. If the entry under the cursor is removed, Next
// reports the end instead of returning a recycled slot.
type Enumerator struct {
	m *cmap
	h arena.Handle
}

// Enum starts the map's single enumeration; see Map.Enum.
func (m *cmap) Enum() (*Enumerator, error) {
	if !m.enumMu.TryLock() {
		return nil, ErrEnumerationActive
	}
	m.rlock()
	if m.closed.Load() {
		m.runlock()
		m.enumMu.Unlock()
		return nil, ErrClosed
	}

	m.itMu.Lock()
	i, it := m.iters.Acquire()
	it.cursor = m.entryHandle(m.lru.head)
	h := m.iters.Handle(i)
	m.itMu.Unlock()

	return &Enumerator{m: m, h: h}, nil
}

// entryHandle returns a generation-checked handle for slot i, 0 for nil.
func (m *cmap) entryHandle(i uint32) arena.Handle {
	if i == 0 {
		return 0
	}
	return m.ents.Handle(i)
}

// Next returns the current entry and advances to the next older one.
// ok is false at the end and after Close.
func (it *Enumerator) Next() (k Key, data []byte, ok bool) {
	m := it.m
	m.itMu.Lock()
	defer m.itMu.Unlock()
	st, live := m.iters.Resolve(it.h)
	if !live || st.cursor == 0 {
		return 0, nil, false
	}
	e, alive := m.ents.Resolve(st.cursor)
	if !alive {
		st.cursor = 0
		return 0, nil, false
	}
	st.cursor = m.entryHandle(e.nextLRU)
	return e.key, e.data, true
}

// check reports why the Enumerator's accessors cannot run, if they cannot.
func (it *Enumerator) check() error {
	it.m.itMu.Lock()
	_, ok := it.m.iters.Resolve(it.h)
	it.m.itMu.Unlock()
	switch {
	case !ok:
		return ErrEnumeratorClosed
	case it.m.closed.Load():
		return ErrClosed
	}
	return nil
}

// Get is Map.Get for the enumerating goroutine. Under a policy that
// re-links on access (policy/lru) it does not mark use, so the walk order
// stays fixed.
func (it *Enumerator) Get(k Key) ([]byte, error) {
	if err := it.check(); err != nil {
		return nil, err
	}
	return it.m.getLocked(k, !it.m.excl)
}

// Pin is Map.Pin for the enumerating goroutine.
func (it *Enumerator) Pin(k Key) error {
	if err := it.check(); err != nil {
		return err
	}
	return it.m.pinLocked(k)
}

// Release is Map.Release for the enumerating goroutine.
func (it *Enumerator) Release(k Key) error {
	if err := it.check(); err != nil {
		return err
	}
	return it.m.releaseLocked(k)
}

// Refcnt is Map.Refcnt for the enumerating goroutine.
func (it *Enumerator) Refcnt(k Key) (int32, error) {
	if err := it.check(); err != nil {
		return 0, err
	}
	return it.m.refcntLocked(k)
}

// Close ends the enumeration and releases the map's read lock.
// A second Close returns ErrEnumeratorClosed.
func (it *Enumerator) Close() error {
	m := it.m
	m.itMu.Lock()
	if _, live := m.iters.Resolve(it.h); !live {
		m.itMu.Unlock()
		return ErrEnumeratorClosed
	}
	m.iters.Release(it.h.Index())
	m.itMu.Unlock()

	m.runlock()
	m.enumMu.Unlock()
	return nil
}

func (m *cmap) All() iter.Seq2[Key, []byte] {
	return func(yield func(Key, []byte) bool) {
		it, err := m.Enum()
		if err != nil {
			return
		}
		defer it.Close()
		for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
			if !yield(k, v) {
				return
			}
		}
	}
}
