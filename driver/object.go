// Package driver implements the core of the compute driver: the
// reference-counted object model behind the host API's opaque handles, the
// program/kernel compilation pipeline, memory objects, events, and the
// command queue that encodes work for the native backend.
//
// The hundreds of C entry points that validate arguments and route here live
// outside this module; the package exposes exactly the operations that shim
// needs.
package driver

import "sync/atomic"

// object is the reference-counted base embedded in every driver object.
// The count starts at one for the creating caller; Retain and Release may be
// called from any thread.
type object struct {
	refs atomic.Int64
}

func (o *object) init() {
	o.refs.Store(1)
}

// Retain increments the reference count.
func (o *object) Retain() {
	o.refs.Add(1)
}

// release decrements the reference count and reports whether it reached
// zero, at which point the owner must destroy the object. Destruction never
// runs while the count is nonzero.
func (o *object) release() bool {
	return o.refs.Add(-1) == 0
}

// ReferenceCount returns the current count.
func (o *object) ReferenceCount() uint64 {
	return uint64(o.refs.Load())
}
