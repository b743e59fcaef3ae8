package cmap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	for name, opt := range map[string]Options{
		"NegativeMaxEntries": {MaxEntries: -1},
		"NegativeBuckets":    {Buckets: -1},
		"NegativeMaxRefcnt":  {MaxRefcnt: -1},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := New(opt)
			require.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
	require.Panics(t, func() { MustNew(Options{MaxEntries: -1}) })
}

func TestNew_DefaultBuckets(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{MaxEntries: 1000})
	require.Equal(t, 1024, m.Stats().Buckets)

	u, _ := newTestMap(t, Options{})
	require.Equal(t, DefaultBuckets, u.Stats().Buckets)
}

func TestKeyFromBytes(t *testing.T) {
	t.Parallel()

	k, err := KeyFromBytes([]byte{1, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Equal(t, Key(1), k)
	require.Equal(t, [KeySize]byte{1}, k.Bytes())

	_, err = KeyFromBytes([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrContractViolation)
	require.ErrorIs(t, err, ErrKeyLength)

	var cv *ContractViolation
	require.True(t, errors.As(err, &cv))
	require.Equal(t, "key", cv.Op)
}

// A second Create of the same key fails until the key is deleted.
func TestCreate_Uniqueness(t *testing.T) {
	t.Parallel()

	m, rec := newTestMap(t, Options{Buckets: 16})

	require.NoError(t, m.Create(1, []byte("a")))
	require.ErrorIs(t, m.Create(1, []byte("b")), ErrExists)

	v, err := m.Get(1)
	require.NoError(t, err)
	require.Equal(t, "a", string(v), "failed Create must not overwrite")

	require.True(t, m.Delete(1))
	require.NoError(t, m.Create(1, []byte("c")))
	require.Equal(t, []string{"a"}, rec.destroyedStrings())
}

// Create pins once; Get pins again; Release undoes Get.
func TestGet_RoundTripAndRefcnt(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{Buckets: 16})

	require.NoError(t, m.Create(7, []byte("seven")))
	n, err := m.Refcnt(7)
	require.NoError(t, err)
	require.Equal(t, int32(1), n)

	v, err := m.Get(7)
	require.NoError(t, err)
	require.Equal(t, "seven", string(v))
	n, _ = m.Refcnt(7)
	require.Equal(t, int32(2), n)

	require.NoError(t, m.Release(7))
	n, _ = m.Refcnt(7)
	require.Equal(t, int32(1), n)

	// Set-as-create pins the same way
	_, replaced, err := m.Set(8, []byte("eight"))
	require.NoError(t, err)
	require.False(t, replaced)
	v, err = m.Get(8)
	require.NoError(t, err)
	require.Equal(t, "eight", string(v))
	n, _ = m.Refcnt(8)
	require.Equal(t, int32(2), n)
}

func TestMissingKey(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{Buckets: 4})

	_, err := m.Get(1)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Refcnt(1)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, m.Pin(1), ErrNotFound)
	require.ErrorIs(t, m.Release(1), ErrNotFound)
	require.ErrorIs(t, m.Update(1, nil), ErrNotFound)
	require.False(t, m.Delete(1))
	require.Equal(t, uint64(1), m.Stats().Misses)
}

func TestPinRelease(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{Buckets: 4})
	insertUnpinned(t, m, 1, "a")

	require.NoError(t, m.Pin(1))
	require.NoError(t, m.Pin(1))
	n, _ := m.Refcnt(1)
	require.Equal(t, int32(2), n)

	require.NoError(t, m.Release(1))
	require.NoError(t, m.Release(1))
	require.ErrorIs(t, m.Release(1), ErrUnderflow, "double release is rejected")
	n, _ = m.Refcnt(1)
	require.Equal(t, int32(0), n, "underflow leaves the count at zero")
}

func TestRefcntCeiling(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{Name: "ceil", MaxRefcnt: 3})
	require.NoError(t, m.Create(1, []byte("a"))) // 1
	_, err := m.Get(1)                           // 2
	require.NoError(t, err)
	require.NoError(t, m.Pin(1)) // 3

	_, err = m.Get(1)
	require.ErrorIs(t, err, ErrContractViolation)
	require.ErrorIs(t, err, ErrRefcntCeiling)
	require.ErrorIs(t, m.Pin(1), ErrRefcntCeiling)

	var cv *ContractViolation
	require.True(t, errors.As(err, &cv))
	require.Equal(t, "ceil", cv.Map)
	require.Equal(t, "get", cv.Op)
	require.Equal(t, Key(1), cv.Key)

	n, _ := m.Refcnt(1)
	require.Equal(t, int32(3), n, "a rejected pin must not increment")
}

// Update hands the old value to OnReplace with ownership and no key.
func TestUpdate_HandsOldValueToCallback(t *testing.T) {
	t.Parallel()

	m, rec := newTestMap(t, Options{Buckets: 16, MaxEntries: 4})
	insertUnpinned(t, m, 1, "old")

	require.NoError(t, m.Update(1, []byte("new")))
	require.Len(t, rec.replaced, 1)
	r := rec.replaced[0]
	require.False(t, r.HasKey, "overwrite passes the null key marker")
	require.True(t, r.Owned)
	require.Equal(t, ReplaceOverwrite, r.Reason)
	require.Equal(t, "old", string(r.Value))
	require.Empty(t, rec.destroyed, "update never runs the destructor")

	v, err := m.Get(1)
	require.NoError(t, err)
	require.Equal(t, "new", string(v))
}

// get(A) then set(A, V2): the callback sees the old value without a key,
// Set returns the old value to its caller and leaves the pin count alone.
func TestSet_ExistingReturnsOldValue(t *testing.T) {
	t.Parallel()

	m, rec := newTestMap(t, Options{Buckets: 16, MaxEntries: 4})
	insertUnpinned(t, m, 'A', "v1")

	_, err := m.Get('A')
	require.NoError(t, err)

	old, replaced, err := m.Set('A', []byte("v2"))
	require.NoError(t, err)
	require.True(t, replaced)
	require.Equal(t, "v1", string(old))

	require.Len(t, rec.replaced, 1)
	require.False(t, rec.replaced[0].HasKey)
	require.False(t, rec.replaced[0].Owned, "Set keeps ownership with the caller")
	require.Equal(t, "v1", string(rec.replaced[0].Value))
	require.Empty(t, rec.destroyed, "Set must not destroy the old value")

	n, _ := m.Refcnt('A')
	require.Equal(t, int32(1), n, "Set does not touch the pin count")
	v, _ := m.Get('A')
	require.Equal(t, "v2", string(v))
}

func TestDelete_DestroysOnce(t *testing.T) {
	t.Parallel()

	m, rec := newTestMap(t, Options{Buckets: 2})
	for k := Key(1); k <= 5; k++ {
		insertUnpinned(t, m, k, string(rune('a'+k-1)))
	}
	require.True(t, m.Delete(3))
	require.False(t, m.Delete(3))
	require.Equal(t, 4, m.Len())
	require.Equal(t, []string{"c"}, rec.destroyedStrings())
	require.Empty(t, rec.replaced, "explicit delete does not notify OnReplace")

	// the rest of the colliding chain is intact
	for _, k := range []Key{1, 2, 4, 5} {
		_, err := m.Get(k)
		require.NoError(t, err, "key %s", k)
	}
}

func TestNilValueIsNotDestroyed(t *testing.T) {
	t.Parallel()

	m, rec := newTestMap(t, Options{})
	require.NoError(t, m.Create(1, nil))
	require.True(t, m.Delete(1))
	require.Empty(t, rec.destroyed)
}

// Clear empties the map in one pass and destroys every value.
func TestClear(t *testing.T) {
	t.Parallel()

	m, rec := newTestMap(t, Options{Buckets: 8, MaxEntries: 100})
	for k := Key(0); k < 10; k++ {
		insertUnpinned(t, m, k, "v")
	}
	m.Clear()

	require.Equal(t, 0, m.Len())
	require.Len(t, rec.destroyed, 10)
	for k := Key(0); k < 10; k++ {
		_, err := m.Get(k)
		require.ErrorIs(t, err, ErrNotFound)
	}

	m.Clear()
	require.Len(t, rec.destroyed, 10, "clearing an empty map is a no-op")

	// map is fully usable afterwards, slots are recycled
	slots := m.Stats().EntrySlots
	insertUnpinned(t, m, 1, "again")
	require.Equal(t, 1, m.Len())
	require.Equal(t, slots, m.Stats().EntrySlots)
}

func TestCheckRefcnts_ReportsPinned(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{})
	insertUnpinned(t, m, 1, "a")
	require.NoError(t, m.Create(2, []byte("b")))
	_, _ = m.Get(2)

	require.Equal(t, []Leak{{Key: 2, Refcnt: 2}}, m.CheckRefcnts())

	_ = m.Release(2)
	_ = m.Release(2)
	require.Empty(t, m.CheckRefcnts())
}

func TestClose(t *testing.T) {
	t.Parallel()

	m, rec := newTestMap(t, Options{})
	insertUnpinned(t, m, 1, "a")
	require.NoError(t, m.Create(2, []byte("b")))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "Close is idempotent")
	require.ElementsMatch(t, []string{"a", "b"}, rec.destroyedStrings())

	require.ErrorIs(t, m.Create(3, nil), ErrClosed)
	_, err := m.Get(1)
	require.ErrorIs(t, err, ErrClosed)
	_, _, err = m.Set(1, nil)
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, m.Delete(1))
	_, err = m.Enum()
	require.ErrorIs(t, err, ErrClosed)
}

func TestPoolRecyclesEntries(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{EntryBatch: 4})
	for round := 0; round < 10; round++ {
		for k := Key(0); k < 3; k++ {
			insertUnpinned(t, m, k, "v")
		}
		for k := Key(0); k < 3; k++ {
			require.True(t, m.Delete(k))
		}
	}
	st := m.Stats()
	require.Equal(t, 1, st.EntryBatches, "steady-state churn must not grow the pool")
	require.Equal(t, 3, st.EntrySlots)
	require.Equal(t, 0, st.EntriesInUse)
}
