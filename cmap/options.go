package cmap

import (
	"context"

	"github.com/IvanBrykalov/cmap/policy"
	"github.com/sirupsen/logrus"
)

// Defaults applied by New.
const (
	DefaultBuckets       = 1024
	DefaultMaxRefcnt     = 10000
	DefaultEntryBatch    = 512
	DefaultIteratorBatch = 8
)

// RemoveReason explains why an entry left the map.
type RemoveReason int

const (
	// RemoveEvicted: chosen as victim when the map went over MaxEntries.
	RemoveEvicted RemoveReason = iota
	// RemoveDeleted: explicit Delete.
	RemoveDeleted
	// RemoveCleared: Clear or Close.
	RemoveCleared
)

// Metrics exposes map-level observability hooks.
// NoopMetrics is used by default.
type Metrics interface {
	Hit()
	Miss()
	Remove(reason RemoveReason)
	Size(entries int)
}

// Options configures a map. Zero values are safe; New applies defaults:
//   - Buckets <= 0   => NextPow2(MaxEntries), or DefaultBuckets if unbounded
//   - nil Policy     => CLOCK
//   - nil Callbacks  => NoopCallbacks
//   - nil Metrics    => NoopMetrics
//   - nil Logger     => logrus.StandardLogger()
type Options struct {
	// Name identifies the map in logs and contract violations.
	Name string

	// Buckets is the fixed hash table size. The table never resizes.
	Buckets int

	// MaxEntries is the soft entry limit; 0 means unbounded.
	MaxEntries int

	// DisableLocks turns off all locking for single-goroutine embeddings.
	// The single-enumeration lease is still enforced.
	DisableLocks bool

	// Callbacks receives values before overwrite/eviction and at teardown.
	Callbacks Callbacks

	// Policy selects the eviction victim; nil => clock.New().
	Policy policy.Policy

	// MaxRefcnt is the sanity ceiling for a pin count (0 => DefaultMaxRefcnt).
	MaxRefcnt int32

	// AllowOvergrow lets an insert succeed when every entry is pinned,
	// leaving the map above MaxEntries. By default such an insert fails
	// with ErrNoVictim and is rolled back.
	AllowOvergrow bool

	// Pool batch sizes: slots are allocated this many at a time.
	EntryBatch    int
	IteratorBatch int

	// Loader fetches a value on a GetOrLoad miss. The returned buffer is
	// owned by the map.
	Loader func(ctx context.Context, k Key) ([]byte, error)

	Metrics Metrics
	Logger  logrus.FieldLogger
}
