package cmap

// ReplaceReason tells OnReplace why a value is being let go.
type ReplaceReason int

const (
	// ReplaceOverwrite: Update or Set replaced the value of a present key.
	ReplaceOverwrite ReplaceReason = iota
	// ReplaceEvict: the entry was chosen as eviction victim.
	ReplaceEvict
)

// Replacement is passed to Callbacks.OnReplace.
type Replacement struct {
	// Key is valid only if HasKey is set. Overwrites pass no key: the
	// entry and its key stay in the map.
	Key    Key
	HasKey bool

	Value  []byte
	Reason ReplaceReason

	// Owned reports whether the callback now owns Value. It is set for
	// Update; Set returns the old value to its caller instead, and an
	// evicted value is destroyed through OnDestroy right after.
	Owned bool
}

// Callbacks is the owner's hook into the map's value lifecycle.
// Both methods run under the map's write lock; they must be quick and
// must not call back into the same map.
type Callbacks interface {
	// OnReplace is called before a value is discarded by overwrite or
	// eviction.
	OnReplace(r Replacement)
	// OnDestroy is the final destructor for a value, called exactly once
	// per value on eviction, Delete, Clear and Close. It is never called
	// with a nil value.
	OnDestroy(value []byte)
}

// CallbackFuncs adapts plain functions to Callbacks; nil fields are no-ops.
type CallbackFuncs struct {
	Replace func(Replacement)
	Destroy func([]byte)
}

func (f CallbackFuncs) OnReplace(r Replacement) {
	if f.Replace != nil {
		f.Replace(r)
	}
}

func (f CallbackFuncs) OnDestroy(v []byte) {
	if f.Destroy != nil {
		f.Destroy(v)
	}
}

// NoopCallbacks ignores every notification; values are left to the GC.
type NoopCallbacks struct{}

func (NoopCallbacks) OnReplace(Replacement) {}
func (NoopCallbacks) OnDestroy([]byte)      {}

var (
	_ Callbacks = CallbackFuncs{}
	_ Callbacks = NoopCallbacks{}
)
