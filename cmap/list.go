package cmap

import "github.com/IvanBrykalov/cmap/internal/arena"

// lruList is the intrusive recency list over all live entries:
// head is the newest insert (MRU), tail the oldest (LRU).
type lruList struct {
	head, tail uint32
	len        int
}

// pushFront inserts slot i at MRU in O(1).
func (l *lruList) pushFront(ents *arena.Pool[entry], i uint32) {
	e := ents.At(i)
	e.prev = 0
	e.nextLRU = l.head
	if l.head != 0 {
		ents.At(l.head).prev = i
	}
	l.head = i
	if l.tail == 0 {
		l.tail = i
	}
	l.len++
}

// remove unlinks slot i in O(1).
func (l *lruList) remove(ents *arena.Pool[entry], i uint32) {
	e := ents.At(i)
	if e.prev != 0 {
		ents.At(e.prev).nextLRU = e.nextLRU
	} else {
		l.head = e.nextLRU
	}
	if e.nextLRU != 0 {
		ents.At(e.nextLRU).prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev, e.nextLRU = 0, 0
	l.len--
}

// moveToFront promotes slot i to MRU in O(1).
func (l *lruList) moveToFront(ents *arena.Pool[entry], i uint32) {
	if l.head == i {
		return
	}
	l.remove(ents, i)
	l.pushFront(ents, i)
}
