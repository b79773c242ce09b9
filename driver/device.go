package driver

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/clc"
	"github.com/daemyung/clmtl/mtl"
)

// Device is the process-wide singleton wrapping the native device. It owns
// the process-wide resources the rest of the driver shares: the library
// pool and the compiler toolchain.
type Device struct {
	handle
	object

	native    mtl.Device
	libraries *LibraryPool

	mu        sync.Mutex
	toolchain clc.Toolchain
}

var (
	deviceOnce sync.Once
	device     *Device
	deviceErr  error
)

// GetDevice returns the singleton device, opening the native backend on
// first use. It fails with the device-not-found condition if no backend can
// be opened.
func GetDevice() (*Device, error) {
	deviceOnce.Do(func() {
		native, err := mtl.NewDevice("")
		if err != nil {
			deviceErr = errors.WithMessage(cl.ErrDeviceNotFound, err.Error())
			return
		}
		device = &Device{handle: newHandle(), native: native}
		device.object.init()
		device.libraries = newLibraryPool(native)
		klog.V(1).Infof("opened device %q", native.Name())
	})
	return device, deviceErr
}

// Native returns the native device.
func (d *Device) Native() mtl.Device { return d.native }

// LibraryPool returns the process-wide compiled-library pool.
func (d *Device) LibraryPool() *LibraryPool { return d.libraries }

// Toolchain returns the compiler toolchain, opening the default one on
// first use.
func (d *Device) Toolchain() (clc.Toolchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.toolchain == nil {
		tc, err := clc.New("")
		if err != nil {
			return nil, errors.WithMessage(cl.ErrCompilerNotAvailable, err.Error())
		}
		d.toolchain = tc
	}
	return d.toolchain, nil
}

// SetToolchain overrides the compiler toolchain; embedders and tests use it
// to inject their own pipeline.
func (d *Device) SetToolchain(tc clc.Toolchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toolchain = tc
}

// Release never destroys the device; the singleton lives for the process.
func (d *Device) Release() {
	d.object.release()
}

// Static capability table, read by the info queries of the dispatch shim.

// Name returns the device name.
func (d *Device) Name() string { return d.native.Name() }

// Vendor returns the device vendor string.
func (d *Device) Vendor() string { return "clmtl" }

// Version returns the device's OpenCL version string.
func (d *Device) Version() string { return cl.VersionString + " clmtl" }

// CVersion returns the device's OpenCL C version string.
func (d *Device) CVersion() string { return cl.CVersionString }

// Profile returns the device profile.
func (d *Device) Profile() string { return "FULL_PROFILE" }

// Type returns the device family.
func (d *Device) Type() cl.DeviceType { return cl.DeviceTypeGPU }

// Available reports whether the device accepts work.
func (d *Device) Available() bool { return true }

// CompilerAvailable reports whether programs can be built from source.
func (d *Device) CompilerAvailable() bool { return true }

// AddressBits returns the device address width.
func (d *Device) AddressBits() uint32 { return 64 }

// MaxComputeUnits returns the number of parallel compute units.
func (d *Device) MaxComputeUnits() uint32 { return 8 }

// MaxWorkItemDimensions returns the dispatch dimensionality.
func (d *Device) MaxWorkItemDimensions() uint32 { return 3 }

// MaxWorkGroupSize returns the total work-item bound of one workgroup.
func (d *Device) MaxWorkGroupSize() uint64 {
	dims := d.native.MaxThreadsPerThreadgroup()
	return uint64(dims[0])
}

// MaxWorkItemSizes returns the per-dimension workgroup bounds.
func (d *Device) MaxWorkItemSizes() [3]uint64 {
	dims := d.native.MaxThreadsPerThreadgroup()
	return [3]uint64{uint64(dims[0]), uint64(dims[1]), uint64(dims[2])}
}

// GlobalMemSize returns the device memory size.
func (d *Device) GlobalMemSize() uint64 { return uint64(d.native.MaxBufferLength()) }

// MaxMemAllocSize returns the largest single allocation.
func (d *Device) MaxMemAllocSize() uint64 { return uint64(d.native.MaxBufferLength()) }

// LocalMemSize returns the per-workgroup local memory size.
func (d *Device) LocalMemSize() uint64 { return uint64(d.native.MaxThreadgroupMemoryLength()) }

// MaxConstantBufferSize returns the constant-memory bound.
func (d *Device) MaxConstantBufferSize() uint64 { return 64 << 10 }

// MaxConstantArgs returns the bound on constant kernel arguments.
func (d *Device) MaxConstantArgs() uint32 { return 8 }

// ImageSupport reports that images are implemented.
func (d *Device) ImageSupport() bool { return true }

// Image2DMaxWidth returns the 2D image width bound.
func (d *Device) Image2DMaxWidth() uint64 { return 16384 }

// Image2DMaxHeight returns the 2D image height bound.
func (d *Device) Image2DMaxHeight() uint64 { return 16384 }

// Image3DMaxWidth returns the 3D image width bound.
func (d *Device) Image3DMaxWidth() uint64 { return 2048 }

// Image3DMaxHeight returns the 3D image height bound.
func (d *Device) Image3DMaxHeight() uint64 { return 2048 }

// Image3DMaxDepth returns the 3D image depth bound.
func (d *Device) Image3DMaxDepth() uint64 { return 2048 }

// MaxSamplers returns the sampler-argument bound.
func (d *Device) MaxSamplers() uint32 { return 16 }

// MemBaseAddrAlign returns the sub-buffer alignment requirement in bits.
func (d *Device) MemBaseAddrAlign() uint32 { return 1024 }

// QueueProperties returns the supported queue property bits. Only in-order
// execution is supported; profiling is accepted but inert.
func (d *Device) QueueProperties() cl.QueueProperties { return cl.QueueProfilingEnable }

// Extensions returns the supported extension string.
func (d *Device) Extensions() string { return "" }
