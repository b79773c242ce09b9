// Package softmtl is a portable software implementation of the mtl device
// interface. Buffers live in host memory, textures in flat byte planes, and
// command buffers execute on a background goroutine per queue, in commit
// order, with threadgroups fanned out over an errgroup.
//
// The device cannot compile native shader source; instead, kernels are Go
// functions registered by name, and a "library" resolves the kernel names it
// finds in the source text against that registry. This is what makes the
// driver testable without a GPU.
package softmtl

import (
	"sync"

	"github.com/daemyung/clmtl/mtl"
)

// BackendName to use in the device-selection environment variable.
const BackendName = "soft"

// KernelFunc is a registered kernel implementation, invoked once per work
// item with the execution context for that invocation.
type KernelFunc func(inv *Invocation)

func init() {
	mtl.Register(BackendName, New)
}

// New constructs a software device. The config string is ignored.
func New(_ string) (mtl.Device, error) {
	return NewDevice(), nil
}

var (
	sharedMu      sync.Mutex
	sharedKernels = map[string]KernelFunc{}
)

// RegisterKernel registers a kernel implementation visible to every software
// device in the process.
func RegisterKernel(name string, fn KernelFunc) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedKernels[name] = fn
}

// Device implements mtl.Device in software.
type Device struct {
	mu      sync.Mutex
	kernels map[string]KernelFunc
}

// Compile-time check.
var _ mtl.Device = (*Device)(nil)

// NewDevice returns a fresh software device.
func NewDevice() *Device {
	return &Device{kernels: map[string]KernelFunc{}}
}

// RegisterKernel registers a kernel implementation on this device only.
func (d *Device) RegisterKernel(name string, fn KernelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernels[name] = fn
}

func (d *Device) kernel(name string) (KernelFunc, bool) {
	d.mu.Lock()
	fn, ok := d.kernels[name]
	d.mu.Unlock()
	if ok {
		return fn, true
	}
	sharedMu.Lock()
	defer sharedMu.Unlock()
	fn, ok = sharedKernels[name]
	return fn, ok
}

// Name implements mtl.Device.
func (d *Device) Name() string { return "clmtl software device" }

// MaxBufferLength implements mtl.Device.
func (d *Device) MaxBufferLength() int { return 1 << 30 }

// MaxThreadsPerThreadgroup implements mtl.Device.
func (d *Device) MaxThreadsPerThreadgroup() [3]int { return [3]int{1024, 1024, 64} }

// MaxThreadgroupMemoryLength implements mtl.Device.
func (d *Device) MaxThreadgroupMemoryLength() int { return 32 << 10 }

// NewCommandQueue implements mtl.Device.
func (d *Device) NewCommandQueue() mtl.CommandQueue {
	return newCommandQueue(d)
}
