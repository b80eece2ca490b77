package lifecycle

import "sync/atomic"

// Runtime provides atomic access to the current Instance for hot-reload
// support, mirroring the reference service's config.Runtime: a lock-free
// read for request-path callers and an atomic swap for the config watcher's
// reload callback.
type Runtime struct {
	ptr atomic.Pointer[Instance]
}

// NewRuntime wraps an already-constructed initial Instance.
func NewRuntime(initial *Instance) *Runtime {
	r := &Runtime{}
	r.ptr.Store(initial)

	return r
}

// Get returns the current Instance. Safe for concurrent use.
func (r *Runtime) Get() *Instance {
	return r.ptr.Load()
}

// Store atomically swaps in a new Instance, typically one built by New with
// the previous Get() result passed as prev.
func (r *Runtime) Store(next *Instance) {
	r.ptr.Store(next)
}
