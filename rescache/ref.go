package rescache

import (
	"sync/atomic"
	"unsafe"
)

// Ref is an explicitly reference-counted, externally-owned key object.
// The cache's identity is the *address* of a Ref, not the value it
// carries, mirroring a Rust `Arc<K>`/`Weak<K>` pair: Retain/Release
// play the role of cloning and dropping the Arc, and Alive plays the
// role of upgrading the Weak.
//
// Go's GC would happily collect a Ref with no remaining Go-level
// pointers to it regardless of this counter, so the counter exists
// purely to model the guest-side ownership of the underlying resource
// handle — the cache itself always holds a real pointer to the Ref (so
// it can call Alive later), and relies on callers to Release when
// their own, separate, guest-level handle is dropped.
type Ref[K any] struct {
	count atomic.Int64
	val   K
}

// NewRef wraps v with an initial strong count of one.
func NewRef[K any](v K) *Ref[K] {
	r := &Ref[K]{val: v}
	r.count.Store(1)
	return r
}

// Get returns the wrapped value.
func (r *Ref[K]) Get() *K { return &r.val }

// Retain increments the strong count (an additional clone of the
// owner's handle was made).
func (r *Ref[K]) Retain() { r.count.Add(1) }

// Release decrements the strong count (the owner's handle, or a clone
// of it, was dropped).
func (r *Ref[K]) Release() { r.count.Add(-1) }

// Alive reports whether any strong reference remains.
func (r *Ref[K]) Alive() bool { return r.count.Load() > 0 }

func (r *Ref[K]) addr() uintptr { return uintptr(unsafe.Pointer(r)) }
