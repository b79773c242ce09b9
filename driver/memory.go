package driver

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
)

// Memory is the state shared by both memory-object variants.
type Memory struct {
	handle
	object

	context *Context
	flags   cl.MemFlags
	size    int
	kind    cl.ImageKind
	maps    atomic.Int32
}

// MemObject is either a Buffer or an Image.
type MemObject interface {
	Mem() *Memory
	Retain()
	Release()
}

// Mem returns the shared memory-object state.
func (m *Memory) Mem() *Memory { return m }

// Context returns the owning context.
func (m *Memory) Context() *Context { return m.context }

// Flags returns the creation flags.
func (m *Memory) Flags() cl.MemFlags { return m.flags }

// Size returns the byte size.
func (m *Memory) Size() int { return m.size }

// Type returns the memory-object type.
func (m *Memory) Type() cl.ImageKind { return m.kind }

// MapCount returns the number of outstanding mappings.
func (m *Memory) MapCount() int { return int(m.maps.Load()) }

func normalizeMemFlags(flags cl.MemFlags, host []byte) (cl.MemFlags, error) {
	if host != nil && !flags.HasAny(cl.MemUseHostPtr|cl.MemCopyHostPtr) {
		return 0, cl.ErrInvalidHostPtr
	}
	if host == nil && flags.HasAny(cl.MemUseHostPtr|cl.MemCopyHostPtr) {
		return 0, cl.ErrInvalidHostPtr
	}
	if flags.HasAny(cl.MemUseHostPtr) && flags.HasAny(cl.MemCopyHostPtr) {
		return 0, cl.ErrInvalidValue
	}
	if !flags.HasAny(cl.MemReadWrite | cl.MemReadOnly | cl.MemWriteOnly) {
		flags |= cl.MemReadWrite
	}
	return flags, nil
}

// Buffer is a linear memory object. A buffer created from another buffer is
// a sub-buffer: it aliases the parent's native allocation through a region
// origin and keeps the parent alive.
type Buffer struct {
	Memory

	native mtl.Buffer
	parent *Buffer
	origin int
	host   []byte
}

// NewBuffer creates a buffer of size bytes. The host slice is required
// exactly when the flags say so: it is wrapped for use-host-pointer and
// copied for copy-host-pointer.
func NewBuffer(context *Context, flags cl.MemFlags, size int, host []byte) (*Buffer, error) {
	if context == nil {
		return nil, cl.ErrInvalidContext
	}
	if size <= 0 || uint64(size) > context.device.MaxMemAllocSize() {
		return nil, cl.ErrInvalidBufferSize
	}
	if host != nil && len(host) < size {
		return nil, cl.ErrInvalidHostPtr
	}
	flags, err := normalizeMemFlags(flags, host)
	if err != nil {
		return nil, err
	}

	b := &Buffer{Memory: Memory{
		handle:  newHandle(),
		context: context,
		flags:   flags,
		size:    size,
		kind:    cl.MemObjectBuffer,
	}}
	b.object.init()

	native := context.device.Native()
	switch {
	case flags.HasAny(cl.MemUseHostPtr):
		b.native, err = native.NewBufferNoCopy(host[:size])
		b.host = host
	case flags.HasAny(cl.MemCopyHostPtr):
		b.native, err = native.NewBufferWithBytes(host[:size])
	default:
		b.native, err = native.NewBuffer(size)
	}
	if err != nil {
		return nil, errors.WithMessage(cl.ErrMemObjectAllocationFailure, err.Error())
	}

	context.Retain()
	return b, nil
}

// NewSubBuffer creates a view of a region of the parent buffer. The view
// shares the parent's storage and retains the parent.
func NewSubBuffer(parent *Buffer, flags cl.MemFlags, origin, size int) (*Buffer, error) {
	if parent == nil || parent.parent != nil {
		return nil, cl.ErrInvalidMemObject
	}
	if size <= 0 {
		return nil, cl.ErrInvalidBufferSize
	}
	if origin < 0 || origin+size > parent.size {
		return nil, cl.ErrInvalidValue
	}
	if !flags.HasAny(cl.MemReadWrite | cl.MemReadOnly | cl.MemWriteOnly) {
		flags |= parent.flags & (cl.MemReadWrite | cl.MemReadOnly | cl.MemWriteOnly)
	}

	b := &Buffer{
		Memory: Memory{
			handle:  newHandle(),
			context: parent.context,
			flags:   flags,
			size:    size,
			kind:    cl.MemObjectBuffer,
		},
		native: parent.native,
		parent: parent,
		origin: origin,
	}
	b.object.init()
	parent.Retain()
	return b, nil
}

// Parent returns the parent of a sub-buffer, or nil.
func (b *Buffer) Parent() *Buffer { return b.parent }

// Origin returns the region origin of a sub-buffer within its parent.
func (b *Buffer) Origin() int { return b.origin }

// Native returns the backing native buffer, shared with the parent for
// sub-buffers.
func (b *Buffer) Native() mtl.Buffer { return b.native }

// Map returns the buffer contents for host access and bumps the map count.
func (b *Buffer) Map() []byte {
	data := b.native.Contents()
	if data == nil {
		return nil
	}
	b.maps.Add(1)
	return data[b.origin : b.origin+b.size]
}

// Unmap ends one mapping.
func (b *Buffer) Unmap() {
	b.maps.Add(-1)
}

// Release decrements the count and destroys the buffer at zero.
func (b *Buffer) Release() {
	if b.object.release() {
		b.destroy()
	}
}

func (b *Buffer) destroy() {
	if b.parent != nil {
		// The native allocation belongs to the parent.
		b.parent.Release()
	} else {
		b.native.Release()
	}
	b.native = nil
	b.host = nil
	if b.parent == nil {
		b.context.Release()
	}
	b.parent = nil
}
