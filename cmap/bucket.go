package cmap

import (
	"github.com/IvanBrykalov/cmap/internal/arena"
	"github.com/IvanBrykalov/cmap/internal/util"
)

// table is a fixed array of bucket heads. Each head starts a singly linked
// chain of entry slots threaded through entry.next; chain order carries no
// meaning.
type table struct {
	heads []uint32
}

func newTable(buckets int) table {
	return table{heads: make([]uint32, buckets)}
}

func (t *table) bucketOf(k Key) uint32 {
	return uint32(util.BucketIndex(util.HashKey(uint64(k)), len(t.heads)))
}

// find returns the slot holding k (0 if absent) and k's bucket, so a
// caller can insert without hashing again.
func (t *table) find(ents *arena.Pool[entry], k Key) (slot, bucket uint32) {
	bucket = t.bucketOf(k)
	for i := t.heads[bucket]; i != 0; {
		e := ents.At(i)
		if e.key == k {
			return i, bucket
		}
		i = e.next
	}
	return 0, bucket
}

// insert prepends slot i to the bucket's chain.
func (t *table) insert(ents *arena.Pool[entry], bucket, i uint32) {
	ents.At(i).next = t.heads[bucket]
	t.heads[bucket] = i
}

// remove unlinks slot i from the bucket's chain. Reports false if i is not
// on the chain.
func (t *table) remove(ents *arena.Pool[entry], bucket, i uint32) bool {
	link := &t.heads[bucket]
	for *link != 0 {
		if *link == i {
			e := ents.At(i)
			*link = e.next
			e.next = 0
			return true
		}
		link = &ents.At(*link).next
	}
	return false
}

func (t *table) reset() {
	clear(t.heads)
}
