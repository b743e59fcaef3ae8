package cmap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/cmap/internal/arena"
	"github.com/IvanBrykalov/cmap/internal/singleflight"
	"github.com/IvanBrykalov/cmap/internal/util"
	"github.com/IvanBrykalov/cmap/policy"
	"github.com/IvanBrykalov/cmap/policy/clock"
	"github.com/sirupsen/logrus"
)

// cmap is the Map implementation: a bucket table and a recency list over
// arena-allocated entries, all guarded by one RWMutex.
//
// Lock discipline:
//   - write lock: every structural change (Create/Update/Set/Delete/Clear/
//     Close/eviction) and CheckRefcnts;
//   - read lock: Get/Refcnt/Pin/Release/Len/Stats and enumeration. Pin
//     counts and ref bits are atomics, so readers may change them
//     concurrently. Get upgrades to the write lock when the policy
//     re-links on access.
type cmap struct {
	// ---- guarded by mu ----
	mu    sync.RWMutex
	tbl   table
	lru   lruList
	ents  *arena.Pool[entry]
	pol   policy.Replacer
	excl  bool // pol.Exclusive(), fixed per policy factory
	locks bool

	// single enumeration lease; itMu guards the iterator pool
	enumMu sync.Mutex
	itMu   sync.Mutex
	iters  *arena.Pool[iterator]

	closed atomic.Bool
	opt    Options
	log    logrus.FieldLogger

	sf singleflight.Group[Key, loaded]

	// ---- hot counters ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
	evicts util.PaddedAtomicUint64
}

// New constructs a map from opt; see Options for the defaults applied.
func New(opt Options) (Map, error) {
	switch {
	case opt.MaxEntries < 0:
		return nil, fmt.Errorf("%w: MaxEntries %d < 0", ErrInvalidOptions, opt.MaxEntries)
	case opt.Buckets < 0 || opt.Buckets > util.MaxBuckets:
		return nil, fmt.Errorf("%w: Buckets %d out of [0, %d]", ErrInvalidOptions, opt.Buckets, util.MaxBuckets)
	case opt.MaxRefcnt < 0:
		return nil, fmt.Errorf("%w: MaxRefcnt %d < 0", ErrInvalidOptions, opt.MaxRefcnt)
	}
	if opt.Buckets == 0 {
		opt.Buckets = DefaultBuckets
		if opt.MaxEntries > 0 {
			opt.Buckets = util.NextPow2(opt.MaxEntries)
		}
	}
	if opt.MaxRefcnt == 0 {
		opt.MaxRefcnt = DefaultMaxRefcnt
	}
	if opt.EntryBatch <= 0 {
		opt.EntryBatch = DefaultEntryBatch
	}
	if opt.IteratorBatch <= 0 {
		opt.IteratorBatch = DefaultIteratorBatch
	}
	if opt.Policy == nil {
		opt.Policy = clock.New()
	}
	if opt.Callbacks == nil {
		opt.Callbacks = NoopCallbacks{}
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}

	m := &cmap{
		tbl:   newTable(opt.Buckets),
		ents:  arena.New[entry](opt.EntryBatch),
		iters: arena.New[iterator](opt.IteratorBatch),
		locks: !opt.DisableLocks,
		opt:   opt,
		log:   opt.Logger.WithField("map", opt.Name),
	}
	m.pol = opt.Policy.New(listHooks{m: m})
	m.excl = m.pol.Exclusive()
	return m, nil
}

// MustNew is New that panics on invalid options.
func MustNew(opt Options) Map {
	m, err := New(opt)
	if err != nil {
		panic(err)
	}
	return m
}

// ---- Map implementation ----

func (m *cmap) Create(k Key, data []byte) error {
	m.lock()
	defer m.unlock()
	if m.closed.Load() {
		return ErrClosed
	}

	i, b := m.tbl.find(m.ents, k)
	if i != 0 {
		m.log.WithFields(logrus.Fields{"op": "create", "key": k}).Debug("entry exists")
		return ErrExists
	}
	return m.admitLocked("create", k, b, data)
}

func (m *cmap) Update(k Key, data []byte) error {
	m.lock()
	defer m.unlock()
	if m.closed.Load() {
		return ErrClosed
	}

	i, _ := m.tbl.find(m.ents, k)
	if i == 0 {
		return ErrNotFound
	}
	e := m.ents.At(i)
	m.touchLocked(i)
	m.opt.Callbacks.OnReplace(Replacement{Value: e.data, Reason: ReplaceOverwrite, Owned: true})
	e.data = data
	return nil
}

func (m *cmap) Set(k Key, data []byte) ([]byte, bool, error) {
	m.lock()
	defer m.unlock()
	if m.closed.Load() {
		return nil, false, ErrClosed
	}

	i, b := m.tbl.find(m.ents, k)
	if i == 0 {
		return nil, false, m.admitLocked("set", k, b, data)
	}
	e := m.ents.At(i)
	old := e.data
	m.opt.Callbacks.OnReplace(Replacement{Value: old, Reason: ReplaceOverwrite})
	e.data = data
	m.touchLocked(i)
	return old, true, nil
}

func (m *cmap) Get(k Key) ([]byte, error) {
	m.lockAccess()
	defer m.unlockAccess()
	if m.closed.Load() {
		return nil, ErrClosed
	}
	return m.getLocked(k, true)
}

// getLocked pins k and returns its value. touch marks use; callers holding
// only the read lock pass false under an exclusive policy.
func (m *cmap) getLocked(k Key, touch bool) ([]byte, error) {
	i, _ := m.tbl.find(m.ents, k)
	if i == 0 {
		m.misses.Add(1)
		m.opt.Metrics.Miss()
		return nil, ErrNotFound
	}
	e := m.ents.At(i)
	if err := m.pin(e, "get"); err != nil {
		return nil, err
	}
	if touch {
		m.touchLocked(i)
	}
	m.hits.Add(1)
	m.opt.Metrics.Hit()
	return e.data, nil
}

func (m *cmap) Refcnt(k Key) (int32, error) {
	m.rlock()
	defer m.runlock()
	if m.closed.Load() {
		return 0, ErrClosed
	}
	return m.refcntLocked(k)
}

func (m *cmap) refcntLocked(k Key) (int32, error) {
	i, _ := m.tbl.find(m.ents, k)
	if i == 0 {
		return 0, ErrNotFound
	}
	return m.ents.At(i).refcnt.Load(), nil
}

func (m *cmap) Pin(k Key) error {
	m.rlock()
	defer m.runlock()
	if m.closed.Load() {
		return ErrClosed
	}
	return m.pinLocked(k)
}

func (m *cmap) pinLocked(k Key) error {
	i, _ := m.tbl.find(m.ents, k)
	if i == 0 {
		return ErrNotFound
	}
	return m.pin(m.ents.At(i), "pin")
}

func (m *cmap) Release(k Key) error {
	m.rlock()
	defer m.runlock()
	if m.closed.Load() {
		return ErrClosed
	}
	return m.releaseLocked(k)
}

// releaseLocked drops one pin with a CAS loop so the count never goes
// below zero under concurrent readers.
func (m *cmap) releaseLocked(k Key) error {
	i, _ := m.tbl.find(m.ents, k)
	if i == 0 {
		return ErrNotFound
	}
	e := m.ents.At(i)
	for {
		n := e.refcnt.Load()
		if n <= 0 {
			m.log.WithFields(logrus.Fields{"op": "release", "key": k}).Warn("release of unpinned entry")
			return ErrUnderflow
		}
		if e.refcnt.CompareAndSwap(n, n-1) {
			return nil
		}
	}
}

func (m *cmap) Delete(k Key) bool {
	m.lock()
	defer m.unlock()
	if m.closed.Load() {
		return false
	}

	i, _ := m.tbl.find(m.ents, k)
	if i == 0 {
		return false
	}
	m.unlinkLocked(i)
	m.opt.Metrics.Remove(RemoveDeleted)
	m.freeLocked(i)
	m.opt.Metrics.Size(m.lru.len)
	return true
}

func (m *cmap) Clear() {
	m.lock()
	defer m.unlock()
	if m.closed.Load() {
		return
	}
	m.clearLocked()
}

// clearLocked walks the recency list once, O(live entries), and resets the
// table and the policy instead of unlinking entry by entry.
func (m *cmap) clearLocked() {
	for i := m.lru.head; i != 0; {
		next := m.ents.At(i).nextLRU
		m.opt.Metrics.Remove(RemoveCleared)
		m.freeLocked(i)
		i = next
	}
	m.tbl.reset()
	m.lru = lruList{}
	m.pol = m.opt.Policy.New(listHooks{m: m})
	m.opt.Metrics.Size(0)
}

// CheckRefcnts takes the write lock so the sweep sees a quiescent map.
func (m *cmap) CheckRefcnts() []Leak {
	m.lock()
	defer m.unlock()

	var leaks []Leak
	for i := m.lru.head; i != 0; i = m.ents.At(i).nextLRU {
		e := m.ents.At(i)
		if n := e.refcnt.Load(); n != 0 {
			m.log.WithFields(logrus.Fields{"op": "check_refcnts", "key": e.key, "refcnt": n}).Warn("entry still pinned")
			leaks = append(leaks, Leak{Key: e.key, Refcnt: n})
		}
	}
	return leaks
}

func (m *cmap) Len() int {
	m.rlock()
	defer m.runlock()
	return m.lru.len
}

func (m *cmap) Stats() Stats {
	m.rlock()
	es := m.ents.Stats()
	st := Stats{
		Entries:      m.lru.len,
		MaxEntries:   m.opt.MaxEntries,
		Buckets:      len(m.tbl.heads),
		Hits:         m.hits.Load(),
		Misses:       m.misses.Load(),
		Evictions:    m.evicts.Load(),
		EntrySlots:   es.Slots,
		EntriesInUse: es.InUse,
		EntryBatches: es.Batches,
	}
	m.runlock()

	m.itMu.Lock()
	is := m.iters.Stats()
	m.itMu.Unlock()
	st.IteratorSlots, st.IteratorsInUse, st.IteratorBatches = is.Slots, is.InUse, is.Batches
	return st
}

// Close destroys all contents. It is idempotent.
func (m *cmap) Close() error {
	m.lock()
	defer m.unlock()
	if m.closed.Swap(true) {
		return nil
	}
	m.clearLocked()
	return nil
}

// ---- GetOrLoad ----

// loaded is the leader's result: pinned reports whether the leader itself
// inserted the value with its pin already taken.
type loaded struct {
	data   []byte
	pinned bool
}

func (m *cmap) GetOrLoad(ctx context.Context, k Key) ([]byte, error) {
	for {
		v, err := m.Get(k)
		if !errors.Is(err, ErrNotFound) {
			return v, err
		}
		if m.opt.Loader == nil {
			return nil, ErrNoLoader
		}

		res, shared, err := m.sf.Do(ctx, k, func() (loaded, error) {
			data, err := m.opt.Loader(ctx, k)
			if err == nil {
				var res loaded
				if res, err = m.admitLoaded(k, data); err == nil {
					return res, nil
				}
			}
			// Callers arriving from now on start a fresh load instead of
			// joining this failed one.
			m.sf.Forget(k)
			return loaded{}, err
		})
		if err != nil {
			return nil, err
		}
		if !shared && res.pinned {
			return res.data, nil
		}
		// Followers (and a leader that lost the race) pin through Get.
		// The entry may be evicted in between; ctx bounds the retries.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// admitLoaded inserts a loaded value pinned for the loading caller. If the
// key appeared meanwhile, the loaded buffer is destroyed; the map owns it.
func (m *cmap) admitLoaded(k Key, data []byte) (loaded, error) {
	m.lock()
	defer m.unlock()
	if m.closed.Load() {
		return loaded{}, ErrClosed
	}

	i, b := m.tbl.find(m.ents, k)
	if i != 0 {
		if data != nil {
			m.opt.Callbacks.OnDestroy(data)
		}
		return loaded{}, nil
	}
	if err := m.admitLocked("load", k, b, data); err != nil {
		if data != nil {
			m.opt.Callbacks.OnDestroy(data)
		}
		return loaded{}, err
	}
	return loaded{data: data, pinned: true}, nil
}

// ---- internals (mu held) ----

// admitLocked links a new entry at MRU and enforces MaxEntries with at most
// one eviction. The new entry is pinned, so it is never its own victim.
// When no victim exists the insert is rolled back and the caller keeps
// ownership of data, unless AllowOvergrow is set.
func (m *cmap) admitLocked(op string, k Key, bucket uint32, data []byte) error {
	i, e := m.ents.Acquire()
	e.reset(k, data, bucket, 1)
	m.tbl.insert(m.ents, bucket, i)
	m.lru.pushFront(m.ents, i)
	m.pol.OnInsert(policy.Handle(i))

	if m.opt.MaxEntries > 0 && m.lru.len > m.opt.MaxEntries {
		if v, ok := m.pol.Victim(); ok {
			m.evictLocked(v)
		} else if m.opt.AllowOvergrow {
			m.log.WithFields(logrus.Fields{"op": op, "key": k, "entries": m.lru.len}).Warn("all entries pinned, growing past MaxEntries")
		} else {
			m.unlinkLocked(i)
			e.data = nil
			m.ents.Release(i)
			return m.violation(op, k, ErrNoVictim)
		}
	}
	m.opt.Metrics.Size(m.lru.len)
	return nil
}

// evictLocked tears down the victim: unlink, notify, destroy, recycle.
func (m *cmap) evictLocked(h policy.Handle) {
	i := uint32(h)
	e := m.ents.At(i)
	m.unlinkLocked(i)
	m.evicts.Add(1)
	m.opt.Metrics.Remove(RemoveEvicted)
	m.log.WithFields(logrus.Fields{"op": "evict", "key": e.key}).Debug("evicted")
	m.opt.Callbacks.OnReplace(Replacement{Key: e.key, HasKey: true, Value: e.data, Reason: ReplaceEvict})
	m.freeLocked(i)
}

// unlinkLocked removes slot i from its bucket chain and the recency list.
// Bucket and list membership are always dropped together.
func (m *cmap) unlinkLocked(i uint32) {
	e := m.ents.At(i)
	if !m.tbl.remove(m.ents, e.bucket, i) {
		panic(fmt.Sprintf("cmap %q: entry %s missing from bucket %d", m.opt.Name, e.key, e.bucket))
	}
	m.pol.OnRemove(policy.Handle(i))
	m.lru.remove(m.ents, i)
}

// freeLocked destroys the entry's value and returns its slot to the pool.
func (m *cmap) freeLocked(i uint32) {
	e := m.ents.At(i)
	if e.data != nil {
		m.opt.Callbacks.OnDestroy(e.data)
		e.data = nil
	}
	m.ents.Release(i)
}

// touchLocked marks an access. Recency only matters for bounded maps.
func (m *cmap) touchLocked(i uint32) {
	if m.opt.MaxEntries != 0 {
		m.pol.OnAccess(policy.Handle(i))
	}
}

// pin increments e's pin count unless it would pass MaxRefcnt.
func (m *cmap) pin(e *entry, op string) error {
	for {
		n := e.refcnt.Load()
		if n >= m.opt.MaxRefcnt {
			return m.violation(op, e.key, fmt.Errorf("%w: refcnt=%d max=%d", ErrRefcntCeiling, n, m.opt.MaxRefcnt))
		}
		if e.refcnt.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

func (m *cmap) violation(op string, k Key, err error) error {
	v := &ContractViolation{Map: m.opt.Name, Op: op, Key: k, Err: err}
	m.log.WithFields(logrus.Fields{"op": op, "key": k}).Error(v.Error())
	return v
}

// ---- locking ----

func (m *cmap) lock() {
	if m.locks {
		m.mu.Lock()
	}
}

func (m *cmap) unlock() {
	if m.locks {
		m.mu.Unlock()
	}
}

func (m *cmap) rlock() {
	if m.locks {
		m.mu.RLock()
	}
}

func (m *cmap) runlock() {
	if m.locks {
		m.mu.RUnlock()
	}
}

// lockAccess takes the lock an access needs: read for CLOCK-like policies,
// write for policies that re-link on access.
func (m *cmap) lockAccess() {
	if m.excl {
		m.lock()
	} else {
		m.rlock()
	}
}

func (m *cmap) unlockAccess() {
	if m.excl {
		m.unlock()
	} else {
		m.runlock()
	}
}
