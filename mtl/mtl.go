// Package mtl defines the native command-submission interface the driver
// core expects of its backend: device and resource allocation, shader
// library compilation, pipeline-state specialization, and an asynchronous
// command-buffer stream with compute and blit encoders.
//
// Implementations register themselves by name; the darwin implementation in
// mtl/metal wraps the Metal framework, and mtl/softmtl is a portable
// software device used for tests and as a fallback.
package mtl

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Constructor builds a device from a backend-specific config string.
type Constructor func(config string) (Device, error)

var (
	registered      = map[string]Constructor{}
	firstRegistered string
)

// Register makes a device constructor available under the given name.
// Call it from an implementation package's init.
func Register(name string, ctor Constructor) {
	if len(registered) == 0 {
		firstRegistered = name
	}
	registered[name] = ctor
}

// DeviceEnv is the environment variable selecting the device backend. The
// format is "<name>" or "<name>:<config>".
const DeviceEnv = "CLMTL_DEVICE"

// NewDevice opens a device. An empty config selects DeviceEnv if set, else
// the first registered backend.
func NewDevice(config string) (Device, error) {
	if config == "" {
		config = os.Getenv(DeviceEnv)
	}
	if len(registered) == 0 {
		return nil, errors.New("no device backends registered")
	}
	name := firstRegistered
	if idx := strings.Index(config, ":"); idx != -1 {
		name, config = config[:idx], config[idx+1:]
	} else if config != "" {
		name, config = config, ""
	}
	ctor, ok := registered[name]
	if !ok {
		return nil, errors.Errorf("unknown device backend %q", name)
	}
	return ctor(config)
}

// Device is a command-submission endpoint: it allocates resources, compiles
// shader libraries and mints command queues.
type Device interface {
	Name() string

	// Limits.
	MaxBufferLength() int
	MaxThreadsPerThreadgroup() [3]int
	MaxThreadgroupMemoryLength() int

	// NewBuffer allocates a zero-initialized buffer.
	NewBuffer(length int) (Buffer, error)
	// NewBufferWithBytes allocates a buffer initialized with a copy of data.
	NewBufferWithBytes(data []byte) (Buffer, error)
	// NewBufferNoCopy wraps host memory directly; the caller keeps the
	// allocation alive for the buffer's lifetime.
	NewBufferNoCopy(data []byte) (Buffer, error)

	NewTexture(desc TextureDescriptor) (Texture, error)
	NewSamplerState(desc SamplerDescriptor) (SamplerState, error)

	// NewLibrary compiles native shader source.
	NewLibrary(source string) (Library, error)
	// NewComputePipelineState specializes a function into an executable
	// pipeline.
	NewComputePipelineState(fn Function) (ComputePipelineState, error)

	NewCommandQueue() CommandQueue
}

// Buffer is a linear device allocation whose contents are host visible.
type Buffer interface {
	// Contents returns the backing storage. The slice stays valid until
	// Release.
	Contents() []byte
	Length() int
	Release()
}

// PixelFormat is the native texel format. The values mirror the Metal
// pixel-format raw values so the darwin backend is a straight cast.
type PixelFormat int32

const (
	PixelFormatInvalid PixelFormat = 0

	PixelFormatR8Unorm PixelFormat = 10
	PixelFormatR8Snorm PixelFormat = 12
	PixelFormatR8Uint  PixelFormat = 13
	PixelFormatR8Sint  PixelFormat = 14

	PixelFormatR16Unorm PixelFormat = 20
	PixelFormatR16Snorm PixelFormat = 22
	PixelFormatR16Uint  PixelFormat = 23
	PixelFormatR16Sint  PixelFormat = 24
	PixelFormatR16Float PixelFormat = 25

	PixelFormatRG8Unorm PixelFormat = 30
	PixelFormatRG8Snorm PixelFormat = 32
	PixelFormatRG8Uint  PixelFormat = 33
	PixelFormatRG8Sint  PixelFormat = 34

	PixelFormatR32Uint  PixelFormat = 53
	PixelFormatR32Sint  PixelFormat = 54
	PixelFormatR32Float PixelFormat = 55

	PixelFormatRG16Unorm PixelFormat = 60
	PixelFormatRG16Snorm PixelFormat = 62
	PixelFormatRG16Uint  PixelFormat = 63
	PixelFormatRG16Sint  PixelFormat = 64
	PixelFormatRG16Float PixelFormat = 65

	PixelFormatRGBA8Unorm PixelFormat = 70
	PixelFormatRGBA8Snorm PixelFormat = 72
	PixelFormatRGBA8Uint  PixelFormat = 73
	PixelFormatRGBA8Sint  PixelFormat = 74

	PixelFormatBGRA8Unorm PixelFormat = 80

	PixelFormatRG32Uint  PixelFormat = 103
	PixelFormatRG32Sint  PixelFormat = 104
	PixelFormatRG32Float PixelFormat = 105

	PixelFormatRGBA16Unorm PixelFormat = 110
	PixelFormatRGBA16Snorm PixelFormat = 112
	PixelFormatRGBA16Uint  PixelFormat = 113
	PixelFormatRGBA16Sint  PixelFormat = 114
	PixelFormatRGBA16Float PixelFormat = 115

	PixelFormatRGBA32Uint  PixelFormat = 123
	PixelFormatRGBA32Sint  PixelFormat = 124
	PixelFormatRGBA32Float PixelFormat = 125
)

// TextureKind is the dimensionality of a texture.
type TextureKind int32

const (
	TextureKind1D TextureKind = 0
	TextureKind2D TextureKind = 2
	TextureKind3D TextureKind = 7
)

// TextureDescriptor configures a texture allocation.
type TextureDescriptor struct {
	Kind                 TextureKind
	Format               PixelFormat
	ElemSize             int
	Width, Height, Depth int
}

// Region is a box within a texture.
type Region struct {
	X, Y, Z int
	W, H, D int
}

// Texture is a formatted device allocation.
type Texture interface {
	Format() PixelFormat
	// ReplaceRegion uploads data into the region; data is laid out with the
	// given row and slice strides.
	ReplaceRegion(r Region, data []byte, bytesPerRow, bytesPerImage int)
	// GetBytes downloads the region into dst with the given strides.
	GetBytes(dst []byte, bytesPerRow, bytesPerImage int, r Region)
	Release()
}

// SamplerDescriptor configures a sampler state.
type SamplerDescriptor struct {
	NormalizedCoordinates bool
	AddressMode           SamplerAddressMode
	Filter                SamplerFilter
}

// SamplerAddressMode mirrors the native addressing modes.
type SamplerAddressMode int32

const (
	SamplerAddressClampToEdge  SamplerAddressMode = 0
	SamplerAddressRepeat       SamplerAddressMode = 2
	SamplerAddressMirrorRepeat SamplerAddressMode = 3
	SamplerAddressClampToZero  SamplerAddressMode = 4
)

// SamplerFilter mirrors the native min/mag filters.
type SamplerFilter int32

const (
	SamplerFilterNearest SamplerFilter = 0
	SamplerFilterLinear  SamplerFilter = 1
)

// SamplerState is an immutable sampler object.
type SamplerState interface {
	Release()
}

// FunctionConstants are the scalar values bound at pipeline-state creation;
// the key is the constant id. Only unsigned 32-bit constants are needed:
// the workgroup dimensions enter at ids 0, 1 and 2.
type FunctionConstants map[int]uint32

// Library is a compiled collection of shader functions.
type Library interface {
	NewFunction(name string, constants FunctionConstants) (Function, error)
	Release()
}

// Function is a single specialized entry point.
type Function interface {
	Name() string
	Release()
}

// ComputePipelineState is an executable kernel specialization.
type ComputePipelineState interface {
	MaxTotalThreadsPerThreadgroup() int
	ThreadExecutionWidth() int
	Release()
}

// CommandQueue serializes command buffers: buffers execute in commit order.
type CommandQueue interface {
	CommandBuffer() CommandBuffer
	Release()
}

// CommandBuffer is a batch of encoded work. Handlers added before Commit
// run on a backend-managed thread: scheduled handlers when the batch starts
// executing, completed handlers when it finishes (with the execution error,
// if any).
type CommandBuffer interface {
	ComputeCommandEncoder() ComputeCommandEncoder
	BlitCommandEncoder() BlitCommandEncoder
	AddScheduledHandler(fn func())
	AddCompletedHandler(fn func(err error))
	Commit()
	// WaitUntilCompleted blocks until the batch finishes and returns its
	// execution error, if any.
	WaitUntilCompleted() error
}

// ComputeCommandEncoder encodes kernel dispatches.
type ComputeCommandEncoder interface {
	SetComputePipelineState(ps ComputePipelineState)
	SetBytes(data []byte, index int)
	SetBuffer(buf Buffer, offset, index int)
	SetTexture(tex Texture, index int)
	SetSamplerState(s SamplerState, index int)
	DispatchThreadgroups(groups, threadsPerGroup [3]int)
	EndEncoding()
}

// BlitCommandEncoder encodes memory transfers.
type BlitCommandEncoder interface {
	CopyBuffer(src Buffer, srcOffset int, dst Buffer, dstOffset int, size int)
	FillBuffer(dst Buffer, offset, size int, value byte)
	CopyBufferToTexture(src Buffer, srcOffset, bytesPerRow, bytesPerImage int, size [3]int, dst Texture, origin [3]int)
	CopyTextureToBuffer(src Texture, origin, size [3]int, dst Buffer, dstOffset, bytesPerRow, bytesPerImage int)
	CopyTexture(src Texture, srcOrigin [3]int, size [3]int, dst Texture, dstOrigin [3]int)
	EndEncoding()
}
