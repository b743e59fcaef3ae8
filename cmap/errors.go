package cmap

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by map operations. Use errors.Is to check them.
var (
	// ErrNotFound indicates the key is absent.
	ErrNotFound = errors.New("cmap: not found")

	// ErrExists indicates Create was called for a present key.
	ErrExists = errors.New("cmap: already exists")

	// ErrClosed indicates the map was closed.
	ErrClosed = errors.New("cmap: closed")

	// ErrUnderflow indicates Release on an entry whose pin count is zero.
	// The count is left at zero.
	ErrUnderflow = errors.New("cmap: refcnt underflow")

	// ErrEnumerationActive indicates Enum was called while another
	// enumeration of the same map is still open.
	ErrEnumerationActive = errors.New("cmap: enumeration already active")

	// ErrEnumeratorClosed indicates use of an Enumerator after Close.
	ErrEnumeratorClosed = errors.New("cmap: enumerator closed")

	// ErrNoLoader is returned by GetOrLoad when Options.Loader is nil.
	ErrNoLoader = errors.New("cmap: no Loader provided")

	// ErrInvalidOptions is returned by New for out-of-range options.
	ErrInvalidOptions = errors.New("cmap: invalid options")
)

// ErrContractViolation matches every *ContractViolation via errors.Is.
// A contract violation is a programming error in the owner or a capacity
// misconfiguration; the host should treat it as fatal.
var ErrContractViolation = errors.New("cmap: contract violation")

// Contract violation kinds, wrapped by ContractViolation.Err.
var (
	// ErrKeyLength indicates a raw key that is not KeySize bytes long.
	ErrKeyLength = errors.New("unsupported key length")

	// ErrRefcntCeiling indicates a pin count would exceed Options.MaxRefcnt,
	// which almost always means a missing Release.
	ErrRefcntCeiling = errors.New("refcnt ceiling exceeded")

	// ErrNoVictim indicates the map is over capacity and every entry is pinned.
	ErrNoVictim = errors.New("no eviction victim")
)

// ContractViolation describes an unrecoverable misuse of a map. The failed
// operation made no change to the map's linkage.
type ContractViolation struct {
	Map string // Options.Name
	Op  string
	Key Key
	Err error
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("cmap: contract violation: map=%q op=%s key=%s: %v", e.Map, e.Op, e.Key, e.Err)
}

func (e *ContractViolation) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrContractViolation) true for every violation.
func (e *ContractViolation) Is(target error) bool { return target == ErrContractViolation }
