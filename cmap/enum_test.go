package cmap

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/cmap/policy"
	"github.com/IvanBrykalov/cmap/policy/clock"
	"github.com/IvanBrykalov/cmap/policy/lru"
)

func TestEnum_NewestFirst(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{Buckets: 4, MaxEntries: 10})
	for _, k := range []Key{5, 1, 9, 3} {
		insertUnpinned(t, m, k, k.String())
	}
	// reads do not reorder under CLOCK
	_, _ = m.Get(5)
	_ = m.Release(5)

	it, err := m.Enum()
	require.NoError(t, err)
	var got []string
	for k, v, ok := it.Next(); ok; k, v, ok = it.Next() {
		require.Equal(t, k.String(), string(v))
		got = append(got, k.String())
	}
	require.NoError(t, it.Close())

	if diff := cmp.Diff([]string{"0x3", "0x9", "0x1", "0x5"}, got); diff != "" {
		t.Fatalf("enumeration order (-want +got):\n%s", diff)
	}
}

func TestEnum_Empty(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{})
	it, err := m.Enum()
	require.NoError(t, err)
	_, _, ok := it.Next()
	require.False(t, ok)
	require.NoError(t, it.Close())
}

func TestEnum_SingleLease(t *testing.T) {
	t.Parallel()

	for _, disable := range []bool{false, true} {
		m, _ := newTestMap(t, Options{DisableLocks: disable})
		insertUnpinned(t, m, 1, "a")

		it, err := m.Enum()
		require.NoError(t, err)
		_, err = m.Enum()
		require.ErrorIs(t, err, ErrEnumerationActive, "DisableLocks=%v", disable)

		// All yields nothing while the lease is taken
		require.Empty(t, keysOf(m))

		require.NoError(t, it.Close())
		it2, err := m.Enum()
		require.NoError(t, err, "lease is free again after Close")
		require.NoError(t, it2.Close())
	}
}

func TestEnum_CloseTwice(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{})
	insertUnpinned(t, m, 1, "a")

	it, err := m.Enum()
	require.NoError(t, err)
	require.NoError(t, it.Close())
	require.ErrorIs(t, it.Close(), ErrEnumeratorClosed)
	_, _, ok := it.Next()
	require.False(t, ok, "Next after Close")

	// a recycled iterator slot must not revive the stale handle
	it2, err := m.Enum()
	require.NoError(t, err)
	_, _, ok = it.Next()
	require.False(t, ok)
	require.ErrorIs(t, it.Close(), ErrEnumeratorClosed)
	_, _, ok = it2.Next()
	require.True(t, ok)
	require.NoError(t, it2.Close())
}

func TestAll_EarlyBreakReleasesLease(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{})
	for k := Key(0); k < 5; k++ {
		insertUnpinned(t, m, k, "v")
	}
	n := 0
	for range m.All() {
		n++
		if n == 2 {
			break
		}
	}
	require.Equal(t, 2, n)

	st := m.Stats()
	require.Zero(t, st.IteratorsInUse)
	require.Equal(t, 1, st.IteratorBatches)
	require.Len(t, keysOf(m), 5)
}

// A writer waits for an open enumeration to close.
func TestEnum_BlocksWriters(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{})
	insertUnpinned(t, m, 1, "a")

	it, err := m.Enum()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Create(2, []byte("b")) }()

	select {
	case err := <-done:
		t.Fatalf("Create finished during enumeration: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	_, _, ok := it.Next()
	require.True(t, ok)
	require.NoError(t, it.Close())
	require.NoError(t, <-done)
	require.Equal(t, 2, m.Len())
}

// The enumerating goroutine pins and reads through the Enumerator while a
// writer is queued on the lock. Map.Get would take a second read lock
// behind that writer and never return.
func TestEnum_AccessorsWithWaitingWriter(t *testing.T) {
	t.Parallel()

	for name, pol := range map[string]policy.Policy{"clock": clock.New(), "lru": lru.New()} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestMap(t, Options{MaxEntries: 10, Policy: pol})
			insertUnpinned(t, m, 1, "a")
			insertUnpinned(t, m, 2, "b")

			it, err := m.Enum()
			require.NoError(t, err)
			k, _, ok := it.Next()
			require.True(t, ok)
			require.Equal(t, Key(2), k)

			created := make(chan error, 1)
			go func() { created <- m.Create(99, nil) }()
			time.Sleep(20 * time.Millisecond) // let the writer queue up

			visited := make(chan error, 1)
			go func() {
				v, err := it.Get(k)
				if err == nil && string(v) != "b" {
					err = errors.New("unexpected value " + string(v))
				}
				if err == nil {
					err = it.Pin(k)
				}
				if err == nil {
					var n int32
					if n, err = it.Refcnt(k); err == nil && n != 2 {
						err = errors.New("want refcnt 2")
					}
				}
				if err == nil {
					err = it.Release(k)
				}
				if err == nil {
					err = it.Release(k)
				}
				visited <- err
			}()
			select {
			case err := <-visited:
				require.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("enumerator accessors blocked behind a waiting writer")
			}

			// the walk order is unaffected by the access
			k, _, ok = it.Next()
			require.True(t, ok)
			require.Equal(t, Key(1), k)
			_, _, ok = it.Next()
			require.False(t, ok)

			require.NoError(t, it.Close())
			require.NoError(t, <-created)
			require.Equal(t, []Leak{{Key: 99, Refcnt: 1}}, m.CheckRefcnts(), "only the creator's pin on 99 is left")
		})
	}
}

func TestEnum_AccessorsAfterClose(t *testing.T) {
	t.Parallel()

	m, _ := newTestMap(t, Options{})
	insertUnpinned(t, m, 1, "a")
	it, err := m.Enum()
	require.NoError(t, err)
	require.NoError(t, it.Close())

	_, err = it.Get(1)
	require.ErrorIs(t, err, ErrEnumeratorClosed)
	require.ErrorIs(t, it.Pin(1), ErrEnumeratorClosed)
	require.ErrorIs(t, it.Release(1), ErrEnumeratorClosed)
	_, err = it.Refcnt(1)
	require.ErrorIs(t, err, ErrEnumeratorClosed)
}

// Without locks, removing the entry under the cursor ends the walk instead
// of handing out a recycled slot.
func TestEnum_DisableLocksRemovedCursor(t *testing.T) {
	t.Parallel()

	deleteAndReuse := func(m Map) {
		m.Delete(2)
		_ = m.Create(4, []byte("d")) // takes the freed slot
	}
	for name, mutate := range map[string]func(Map){
		"Delete":      func(m Map) { m.Delete(2) },
		"DeleteReuse": deleteAndReuse,
		"Clear":       func(m Map) { m.Clear() },
		"CloseMap":    func(m Map) { _ = m.Close() },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			m, _ := newTestMap(t, Options{DisableLocks: true})
			for k := Key(1); k <= 3; k++ {
				insertUnpinned(t, m, k, string(rune('a'+k-1)))
			}

			it, err := m.Enum()
			require.NoError(t, err)
			k, _, ok := it.Next()
			require.True(t, ok)
			require.Equal(t, Key(3), k)

			mutate(m)
			k, v, ok := it.Next()
			require.False(t, ok, "got %s=%q from a removed slot", k, v)
			require.NoError(t, it.Close())
		})
	}

	// removing an entry the cursor has not reached just shortens the walk
	m, _ := newTestMap(t, Options{DisableLocks: true})
	for k := Key(1); k <= 3; k++ {
		insertUnpinned(t, m, k, "v")
	}
	it, err := m.Enum()
	require.NoError(t, err)
	_, _, _ = it.Next()
	m.Delete(1)
	k, _, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, Key(2), k)
	_, _, ok = it.Next()
	require.False(t, ok)
	require.NoError(t, it.Close())
}
