package cmap

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// recorder captures callback traffic in order.
type recorder struct {
	mu        sync.Mutex
	replaced  []Replacement
	destroyed [][]byte
	events    []string
}

func (r *recorder) OnReplace(x Replacement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaced = append(r.replaced, x)
	r.events = append(r.events, "replace:"+string(x.Value))
}

func (r *recorder) OnDestroy(v []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed = append(r.destroyed, v)
	r.events = append(r.events, "destroy:"+string(v))
}

func (r *recorder) destroyedStrings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.destroyed))
	for _, v := range r.destroyed {
		out = append(out, string(v))
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestMap builds a lock-free map with a recorder and a silent logger.
func newTestMap(t testing.TB, opt Options) (Map, *recorder) {
	t.Helper()
	rec := &recorder{}
	if opt.Callbacks == nil {
		opt.Callbacks = rec
	}
	if opt.Logger == nil {
		opt.Logger = quietLogger()
	}
	m, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, rec
}

// insertUnpinned creates k→v and drops the creator's pin.
func insertUnpinned(t testing.TB, m Map, k Key, v string) {
	t.Helper()
	if err := m.Create(k, []byte(v)); err != nil {
		t.Fatalf("Create(%s): %v", k, err)
	}
	if err := m.Release(k); err != nil {
		t.Fatalf("Release(%s): %v", k, err)
	}
}

func keysOf(m Map) []Key {
	var ks []Key
	for k := range m.All() {
		ks = append(ks, k)
	}
	return ks
}
