// Package arena implements a batch-allocated slot pool addressed by stable
// uint32 indices. Slots are never returned to the Go allocator: released
// slots go on a free list and are handed out again by Acquire.
//
// Index 0 is reserved and never handed out, so callers can use it as the
// nil link in index-based lists.
//
// A Pool is not safe for concurrent use; the owner serializes access.
package arena

import (
	"fmt"
	"math"
)

// Handle is a generation-checked reference to a slot: the low 32 bits are
// the index, the high 32 bits the slot generation at the time the handle
// was issued. A handle goes stale as soon as its slot is released.
type Handle uint64

// Index returns the slot index encoded in h.
func (h Handle) Index() uint32 { return uint32(h) }

func (h Handle) gen() uint32 { return uint32(h >> 32) }

type slot[T any] struct {
	val  T
	gen  uint32
	next uint32 // free-list link, valid only while the slot is free
	used bool
}

// Stats is a point-in-time summary of pool occupancy.
type Stats struct {
	Slots   int // total slots ever allocated (excluding the reserved slot)
	InUse   int
	Batches int
}

// Pool hands out slots of T, growing one batch at a time.
type Pool[T any] struct {
	batch  int
	chunks [][]slot[T]
	free   uint32
	slots  int
	inUse  int
}

// New returns an empty pool that grows by batch slots when exhausted.
// A non-positive batch is treated as 1.
func New[T any](batch int) *Pool[T] {
	if batch < 1 {
		batch = 1
	}
	return &Pool[T]{batch: batch}
}

// Acquire returns the index of a free slot and a pointer to its value.
// The pointer stays valid for the lifetime of the pool. The value is
// whatever the previous owner left there; Release does not zero it.
func (p *Pool[T]) Acquire() (uint32, *T) {
	for p.free == 0 {
		p.grow()
	}
	i := p.free
	s := p.slot(i)
	p.free = s.next
	s.next = 0
	s.used = true
	p.inUse++
	return i, &s.val
}

// Release puts slot i back on the free list and bumps its generation,
// invalidating every Handle issued for it. Releasing a free or reserved
// slot panics: it means the owner's linkage is corrupt.
func (p *Pool[T]) Release(i uint32) {
	s := p.slotChecked(i)
	if !s.used {
		panic(fmt.Sprintf("arena: double release of slot %d", i))
	}
	s.used = false
	s.gen++
	s.next = p.free
	p.free = i
	p.inUse--
}

// At returns the value stored in slot i. i must be an acquired slot.
func (p *Pool[T]) At(i uint32) *T {
	return &p.slot(i).val
}

// Handle returns a generation-checked handle for the acquired slot i.
func (p *Pool[T]) Handle(i uint32) Handle {
	s := p.slotChecked(i)
	return Handle(uint64(s.gen)<<32 | uint64(i))
}

// Resolve returns the value behind h, or false if h is zero, out of range,
// or stale (its slot was released since the handle was issued).
func (p *Pool[T]) Resolve(h Handle) (*T, bool) {
	i := h.Index()
	if i == 0 || int(i) > p.slots {
		return nil, false
	}
	s := p.slot(i)
	if !s.used || s.gen != h.gen() {
		return nil, false
	}
	return &s.val, true
}

// Stats reports how many slots exist and how many are in use.
func (p *Pool[T]) Stats() Stats {
	return Stats{Slots: p.slots, InUse: p.inUse, Batches: len(p.chunks)}
}

// grow allocates one batch and links it into the free list, lowest
// index first. The first batch carries the reserved slot 0.
func (p *Pool[T]) grow() {
	base := len(p.chunks) * p.batch
	if uint64(base)+uint64(p.batch) > math.MaxUint32 {
		panic(fmt.Sprintf("arena: index space exhausted at %d slots", base))
	}
	chunk := make([]slot[T], p.batch)
	p.chunks = append(p.chunks, chunk)

	lo := 0
	if base == 0 {
		lo = 1
	}
	for off := p.batch - 1; off >= lo; off-- {
		chunk[off].next = p.free
		p.free = uint32(base + off)
	}
	p.slots += p.batch - lo
}

func (p *Pool[T]) slot(i uint32) *slot[T] {
	return &p.chunks[int(i)/p.batch][int(i)%p.batch]
}

func (p *Pool[T]) slotChecked(i uint32) *slot[T] {
	if i == 0 || int(i) > p.slots {
		panic(fmt.Sprintf("arena: slot %d out of range", i))
	}
	return p.slot(i)
}
