//go:build darwin && cgo

// Package metal implements the mtl device interface over Metal.framework.
// Objects are retained Objective-C references held as unsafe pointers; each
// wrapper releases its reference in Release.
package metal

/*
#cgo CFLAGS: -x objective-c -fobjc-arc
#cgo LDFLAGS: -framework Metal -framework Foundation

#import <Metal/Metal.h>
#import <Foundation/Foundation.h>
#include <stdlib.h>
#include <string.h>

static void *mtCreateSystemDefaultDevice(void) {
	id<MTLDevice> device = MTLCreateSystemDefaultDevice();
	return (__bridge_retained void *)device;
}

static char *mtDeviceName(void *device) {
	id<MTLDevice> d = (__bridge id<MTLDevice>)device;
	return strdup([[d name] UTF8String]);
}

static unsigned long mtMaxBufferLength(void *device) {
	return [(__bridge id<MTLDevice>)device maxBufferLength];
}

static void mtMaxThreadsPerThreadgroup(void *device, unsigned long *dims) {
	MTLSize size = [(__bridge id<MTLDevice>)device maxThreadsPerThreadgroup];
	dims[0] = size.width;
	dims[1] = size.height;
	dims[2] = size.depth;
}

static unsigned long mtMaxThreadgroupMemoryLength(void *device) {
	return [(__bridge id<MTLDevice>)device maxThreadgroupMemoryLength];
}

static void *mtNewBuffer(void *device, size_t length) {
	id<MTLBuffer> buffer = [(__bridge id<MTLDevice>)device
		newBufferWithLength:length options:MTLResourceStorageModeShared];
	return (__bridge_retained void *)buffer;
}

static void *mtNewBufferWithBytes(void *device, const void *data, size_t length) {
	id<MTLBuffer> buffer = [(__bridge id<MTLDevice>)device
		newBufferWithBytes:data length:length options:MTLResourceStorageModeShared];
	return (__bridge_retained void *)buffer;
}

static void *mtNewBufferNoCopy(void *device, void *data, size_t length) {
	id<MTLBuffer> buffer = [(__bridge id<MTLDevice>)device
		newBufferWithBytesNoCopy:data length:length options:MTLResourceStorageModeShared deallocator:nil];
	return (__bridge_retained void *)buffer;
}

static void *mtBufferContents(void *buffer) {
	return [(__bridge id<MTLBuffer>)buffer contents];
}

static unsigned long mtBufferLength(void *buffer) {
	return [(__bridge id<MTLBuffer>)buffer length];
}

static void *mtNewTexture(void *device, int kind, int format, size_t w, size_t h, size_t d) {
	MTLTextureDescriptor *desc = [[MTLTextureDescriptor alloc] init];
	desc.textureType = (MTLTextureType)kind;
	desc.pixelFormat = (MTLPixelFormat)format;
	desc.width = w;
	desc.height = h;
	desc.depth = d;
	desc.storageMode = MTLStorageModeShared;
	desc.usage = MTLTextureUsageShaderRead | MTLTextureUsageShaderWrite;
	id<MTLTexture> texture = [(__bridge id<MTLDevice>)device newTextureWithDescriptor:desc];
	return (__bridge_retained void *)texture;
}

static void mtTextureReplaceRegion(void *texture, size_t x, size_t y, size_t z,
		size_t w, size_t h, size_t d, const void *data, size_t bytesPerRow, size_t bytesPerImage) {
	[(__bridge id<MTLTexture>)texture
		replaceRegion:MTLRegionMake3D(x, y, z, w, h, d)
		mipmapLevel:0 slice:0 withBytes:data bytesPerRow:bytesPerRow bytesPerImage:bytesPerImage];
}

static void mtTextureGetBytes(void *texture, void *dst, size_t bytesPerRow, size_t bytesPerImage,
		size_t x, size_t y, size_t z, size_t w, size_t h, size_t d) {
	[(__bridge id<MTLTexture>)texture
		getBytes:dst bytesPerRow:bytesPerRow bytesPerImage:bytesPerImage
		fromRegion:MTLRegionMake3D(x, y, z, w, h, d) mipmapLevel:0];
}

static void *mtNewSamplerState(void *device, int normalized, int address, int filter) {
	MTLSamplerDescriptor *desc = [[MTLSamplerDescriptor alloc] init];
	desc.normalizedCoordinates = normalized != 0;
	desc.sAddressMode = (MTLSamplerAddressMode)address;
	desc.tAddressMode = (MTLSamplerAddressMode)address;
	desc.rAddressMode = (MTLSamplerAddressMode)address;
	desc.minFilter = (MTLSamplerMinMagFilter)filter;
	desc.magFilter = (MTLSamplerMinMagFilter)filter;
	id<MTLSamplerState> sampler = [(__bridge id<MTLDevice>)device newSamplerStateWithDescriptor:desc];
	return (__bridge_retained void *)sampler;
}

static void *mtNewLibrary(void *device, const char *source, char **error) {
	NSError *err = nil;
	id<MTLLibrary> library = [(__bridge id<MTLDevice>)device
		newLibraryWithSource:[NSString stringWithUTF8String:source] options:nil error:&err];
	if (library == nil && err != nil) {
		*error = strdup([[err localizedDescription] UTF8String]);
	}
	return (__bridge_retained void *)library;
}

static void *mtNewFunction(void *library, const char *name,
		const unsigned int *constants, const int *ids, int count, char **error) {
	MTLFunctionConstantValues *values = [[MTLFunctionConstantValues alloc] init];
	for (int i = 0; i < count; ++i) {
		unsigned int value = constants[i];
		[values setConstantValue:&value type:MTLDataTypeUInt atIndex:ids[i]];
	}
	NSError *err = nil;
	id<MTLFunction> function = [(__bridge id<MTLLibrary>)library
		newFunctionWithName:[NSString stringWithUTF8String:name] constantValues:values error:&err];
	if (function == nil && err != nil) {
		*error = strdup([[err localizedDescription] UTF8String]);
	}
	return (__bridge_retained void *)function;
}

static void *mtNewComputePipelineState(void *device, void *function, char **error) {
	NSError *err = nil;
	id<MTLComputePipelineState> state = [(__bridge id<MTLDevice>)device
		newComputePipelineStateWithFunction:(__bridge id<MTLFunction>)function error:&err];
	if (state == nil && err != nil) {
		*error = strdup([[err localizedDescription] UTF8String]);
	}
	return (__bridge_retained void *)state;
}

static unsigned long mtMaxTotalThreadsPerThreadgroup(void *state) {
	return [(__bridge id<MTLComputePipelineState>)state maxTotalThreadsPerThreadgroup];
}

static unsigned long mtThreadExecutionWidth(void *state) {
	return [(__bridge id<MTLComputePipelineState>)state threadExecutionWidth];
}

static void *mtNewCommandQueue(void *device) {
	id<MTLCommandQueue> queue = [(__bridge id<MTLDevice>)device newCommandQueue];
	return (__bridge_retained void *)queue;
}

static void *mtCommandBuffer(void *queue) {
	id<MTLCommandBuffer> cb = [(__bridge id<MTLCommandQueue>)queue commandBuffer];
	return (__bridge_retained void *)cb;
}

static void mtCommit(void *cb) {
	[(__bridge id<MTLCommandBuffer>)cb commit];
}

static void mtWaitUntilScheduled(void *cb) {
	[(__bridge id<MTLCommandBuffer>)cb waitUntilScheduled];
}

static char *mtWaitUntilCompleted(void *cb) {
	id<MTLCommandBuffer> buffer = (__bridge id<MTLCommandBuffer>)cb;
	[buffer waitUntilCompleted];
	if (buffer.status == MTLCommandBufferStatusError && buffer.error != nil) {
		return strdup([[buffer.error localizedDescription] UTF8String]);
	}
	return NULL;
}

static void *mtComputeCommandEncoder(void *cb) {
	id<MTLComputeCommandEncoder> enc = [(__bridge id<MTLCommandBuffer>)cb computeCommandEncoder];
	return (__bridge_retained void *)enc;
}

static void *mtBlitCommandEncoder(void *cb) {
	id<MTLBlitCommandEncoder> enc = [(__bridge id<MTLCommandBuffer>)cb blitCommandEncoder];
	return (__bridge_retained void *)enc;
}

static void mtSetComputePipelineState(void *enc, void *state) {
	[(__bridge id<MTLComputeCommandEncoder>)enc
		setComputePipelineState:(__bridge id<MTLComputePipelineState>)state];
}

static void mtSetBytes(void *enc, const void *data, size_t length, int index) {
	[(__bridge id<MTLComputeCommandEncoder>)enc setBytes:data length:length atIndex:index];
}

static void mtSetBuffer(void *enc, void *buffer, size_t offset, int index) {
	[(__bridge id<MTLComputeCommandEncoder>)enc
		setBuffer:(__bridge id<MTLBuffer>)buffer offset:offset atIndex:index];
}

static void mtSetTexture(void *enc, void *texture, int index) {
	[(__bridge id<MTLComputeCommandEncoder>)enc
		setTexture:(__bridge id<MTLTexture>)texture atIndex:index];
}

static void mtSetSamplerState(void *enc, void *sampler, int index) {
	[(__bridge id<MTLComputeCommandEncoder>)enc
		setSamplerState:(__bridge id<MTLSamplerState>)sampler atIndex:index];
}

static void mtDispatchThreadgroups(void *enc, size_t gw, size_t gh, size_t gd,
		size_t tw, size_t th, size_t td) {
	[(__bridge id<MTLComputeCommandEncoder>)enc
		dispatchThreadgroups:MTLSizeMake(gw, gh, gd)
		threadsPerThreadgroup:MTLSizeMake(tw, th, td)];
}

static void mtEndEncoding(void *enc) {
	[(__bridge id<MTLCommandEncoder>)enc endEncoding];
}

static void mtCopyBuffer(void *enc, void *src, size_t srcOffset, void *dst, size_t dstOffset, size_t size) {
	[(__bridge id<MTLBlitCommandEncoder>)enc
		copyFromBuffer:(__bridge id<MTLBuffer>)src sourceOffset:srcOffset
		toBuffer:(__bridge id<MTLBuffer>)dst destinationOffset:dstOffset size:size];
}

static void mtFillBuffer(void *enc, void *dst, size_t offset, size_t size, unsigned char value) {
	[(__bridge id<MTLBlitCommandEncoder>)enc
		fillBuffer:(__bridge id<MTLBuffer>)dst range:NSMakeRange(offset, size) value:value];
}

static void mtCopyBufferToTexture(void *enc, void *src, size_t srcOffset, size_t bytesPerRow,
		size_t bytesPerImage, size_t w, size_t h, size_t d, void *dst, size_t x, size_t y, size_t z) {
	[(__bridge id<MTLBlitCommandEncoder>)enc
		copyFromBuffer:(__bridge id<MTLBuffer>)src sourceOffset:srcOffset
		sourceBytesPerRow:bytesPerRow sourceBytesPerImage:bytesPerImage
		sourceSize:MTLSizeMake(w, h, d)
		toTexture:(__bridge id<MTLTexture>)dst destinationSlice:0 destinationLevel:0
		destinationOrigin:MTLOriginMake(x, y, z)];
}

static void mtCopyTextureToBuffer(void *enc, void *src, size_t x, size_t y, size_t z,
		size_t w, size_t h, size_t d, void *dst, size_t dstOffset, size_t bytesPerRow, size_t bytesPerImage) {
	[(__bridge id<MTLBlitCommandEncoder>)enc
		copyFromTexture:(__bridge id<MTLTexture>)src sourceSlice:0 sourceLevel:0
		sourceOrigin:MTLOriginMake(x, y, z) sourceSize:MTLSizeMake(w, h, d)
		toBuffer:(__bridge id<MTLBuffer>)dst destinationOffset:dstOffset
		destinationBytesPerRow:bytesPerRow destinationBytesPerImage:bytesPerImage];
}

static void mtCopyTexture(void *enc, void *src, size_t sx, size_t sy, size_t sz,
		size_t w, size_t h, size_t d, void *dst, size_t dx, size_t dy, size_t dz) {
	[(__bridge id<MTLBlitCommandEncoder>)enc
		copyFromTexture:(__bridge id<MTLTexture>)src sourceSlice:0 sourceLevel:0
		sourceOrigin:MTLOriginMake(sx, sy, sz) sourceSize:MTLSizeMake(w, h, d)
		toTexture:(__bridge id<MTLTexture>)dst destinationSlice:0 destinationLevel:0
		destinationOrigin:MTLOriginMake(dx, dy, dz)];
}

static void mtRelease(void *object) {
	if (object != NULL) {
		CFRelease(object);
	}
}

static int mtTexturePixelFormat(void *texture) {
	return (int)[(__bridge id<MTLTexture>)texture pixelFormat];
}
*/
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/mtl"
)

// BackendName to use in the device-selection environment variable.
const BackendName = "metal"

func init() {
	mtl.Register(BackendName, New)
}

// New opens the system default Metal device. The config string is ignored.
func New(_ string) (mtl.Device, error) {
	ptr := C.mtCreateSystemDefaultDevice()
	if ptr == nil {
		return nil, errors.New("no Metal device available")
	}
	return &Device{ptr: ptr}, nil
}

func takeError(cerr *C.char) error {
	if cerr == nil {
		return nil
	}
	defer C.free(unsafe.Pointer(cerr))
	return errors.New(C.GoString(cerr))
}

// Device wraps an MTLDevice.
type Device struct {
	ptr unsafe.Pointer
}

var _ mtl.Device = (*Device)(nil)

// Name implements mtl.Device.
func (d *Device) Name() string {
	cname := C.mtDeviceName(d.ptr)
	defer C.free(unsafe.Pointer(cname))
	return C.GoString(cname)
}

// MaxBufferLength implements mtl.Device.
func (d *Device) MaxBufferLength() int {
	return int(C.mtMaxBufferLength(d.ptr))
}

// MaxThreadsPerThreadgroup implements mtl.Device.
func (d *Device) MaxThreadsPerThreadgroup() [3]int {
	var dims [3]C.ulong
	C.mtMaxThreadsPerThreadgroup(d.ptr, &dims[0])
	return [3]int{int(dims[0]), int(dims[1]), int(dims[2])}
}

// MaxThreadgroupMemoryLength implements mtl.Device.
func (d *Device) MaxThreadgroupMemoryLength() int {
	return int(C.mtMaxThreadgroupMemoryLength(d.ptr))
}

// Buffer wraps an MTLBuffer with shared storage.
type Buffer struct {
	ptr    unsafe.Pointer
	length int
}

var _ mtl.Buffer = (*Buffer)(nil)

// NewBuffer implements mtl.Device.
func (d *Device) NewBuffer(length int) (mtl.Buffer, error) {
	ptr := C.mtNewBuffer(d.ptr, C.size_t(length))
	if ptr == nil {
		return nil, errors.Errorf("cannot allocate %d-byte buffer", length)
	}
	return &Buffer{ptr: ptr, length: length}, nil
}

// NewBufferWithBytes implements mtl.Device.
func (d *Device) NewBufferWithBytes(data []byte) (mtl.Buffer, error) {
	ptr := C.mtNewBufferWithBytes(d.ptr, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	if ptr == nil {
		return nil, errors.Errorf("cannot allocate %d-byte buffer", len(data))
	}
	return &Buffer{ptr: ptr, length: len(data)}, nil
}

// NewBufferNoCopy implements mtl.Device. Metal requires page alignment for
// no-copy wrapping; on misalignment the bytes are copied instead.
func (d *Device) NewBufferNoCopy(data []byte) (mtl.Buffer, error) {
	addr := uintptr(unsafe.Pointer(&data[0]))
	if addr%4096 != 0 || len(data)%4096 != 0 {
		return d.NewBufferWithBytes(data)
	}
	ptr := C.mtNewBufferNoCopy(d.ptr, unsafe.Pointer(&data[0]), C.size_t(len(data)))
	if ptr == nil {
		return nil, errors.Errorf("cannot wrap %d-byte host allocation", len(data))
	}
	return &Buffer{ptr: ptr, length: len(data)}, nil
}

// Contents implements mtl.Buffer.
func (b *Buffer) Contents() []byte {
	data := C.mtBufferContents(b.ptr)
	if data == nil {
		return nil
	}
	return unsafe.Slice((*byte)(data), b.length)
}

// Length implements mtl.Buffer.
func (b *Buffer) Length() int { return b.length }

// Release implements mtl.Buffer.
func (b *Buffer) Release() {
	C.mtRelease(b.ptr)
	b.ptr = nil
}

// Texture wraps an MTLTexture.
type Texture struct {
	ptr unsafe.Pointer
}

var _ mtl.Texture = (*Texture)(nil)

// NewTexture implements mtl.Device.
func (d *Device) NewTexture(desc mtl.TextureDescriptor) (mtl.Texture, error) {
	ptr := C.mtNewTexture(d.ptr, C.int(desc.Kind), C.int(desc.Format),
		C.size_t(desc.Width), C.size_t(desc.Height), C.size_t(desc.Depth))
	if ptr == nil {
		return nil, errors.Errorf("cannot allocate %dx%dx%d texture", desc.Width, desc.Height, desc.Depth)
	}
	return &Texture{ptr: ptr}, nil
}

// Format implements mtl.Texture.
func (t *Texture) Format() mtl.PixelFormat {
	return mtl.PixelFormat(C.mtTexturePixelFormat(t.ptr))
}

// ReplaceRegion implements mtl.Texture.
func (t *Texture) ReplaceRegion(r mtl.Region, data []byte, bytesPerRow, bytesPerImage int) {
	C.mtTextureReplaceRegion(t.ptr, C.size_t(r.X), C.size_t(r.Y), C.size_t(r.Z),
		C.size_t(r.W), C.size_t(r.H), C.size_t(r.D),
		unsafe.Pointer(&data[0]), C.size_t(bytesPerRow), C.size_t(bytesPerImage))
}

// GetBytes implements mtl.Texture.
func (t *Texture) GetBytes(dst []byte, bytesPerRow, bytesPerImage int, r mtl.Region) {
	C.mtTextureGetBytes(t.ptr, unsafe.Pointer(&dst[0]), C.size_t(bytesPerRow), C.size_t(bytesPerImage),
		C.size_t(r.X), C.size_t(r.Y), C.size_t(r.Z), C.size_t(r.W), C.size_t(r.H), C.size_t(r.D))
}

// Release implements mtl.Texture.
func (t *Texture) Release() {
	C.mtRelease(t.ptr)
	t.ptr = nil
}

// SamplerState wraps an MTLSamplerState.
type SamplerState struct {
	ptr unsafe.Pointer
}

var _ mtl.SamplerState = (*SamplerState)(nil)

// NewSamplerState implements mtl.Device.
func (d *Device) NewSamplerState(desc mtl.SamplerDescriptor) (mtl.SamplerState, error) {
	normalized := C.int(0)
	if desc.NormalizedCoordinates {
		normalized = 1
	}
	ptr := C.mtNewSamplerState(d.ptr, normalized, C.int(desc.AddressMode), C.int(desc.Filter))
	if ptr == nil {
		return nil, errors.New("cannot create sampler state")
	}
	return &SamplerState{ptr: ptr}, nil
}

// Release implements mtl.SamplerState.
func (s *SamplerState) Release() {
	C.mtRelease(s.ptr)
	s.ptr = nil
}

// Library wraps an MTLLibrary.
type Library struct {
	ptr unsafe.Pointer
}

var _ mtl.Library = (*Library)(nil)

// NewLibrary implements mtl.Device.
func (d *Device) NewLibrary(source string) (mtl.Library, error) {
	csource := C.CString(source)
	defer C.free(unsafe.Pointer(csource))
	var cerr *C.char
	ptr := C.mtNewLibrary(d.ptr, csource, &cerr)
	if ptr == nil {
		if err := takeError(cerr); err != nil {
			return nil, err
		}
		return nil, errors.New("shader compilation failed")
	}
	return &Library{ptr: ptr}, nil
}

// NewFunction implements mtl.Library.
func (l *Library) NewFunction(name string, constants mtl.FunctionConstants) (mtl.Function, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	values := make([]C.uint, 0, len(constants))
	ids := make([]C.int, 0, len(constants))
	for id, value := range constants {
		ids = append(ids, C.int(id))
		values = append(values, C.uint(value))
	}
	var cvalues *C.uint
	var cids *C.int
	if len(ids) > 0 {
		cvalues, cids = &values[0], &ids[0]
	}

	var cerr *C.char
	ptr := C.mtNewFunction(l.ptr, cname, cvalues, cids, C.int(len(ids)), &cerr)
	if ptr == nil {
		if err := takeError(cerr); err != nil {
			return nil, err
		}
		return nil, errors.Errorf("function %q not found", name)
	}
	return &Function{ptr: ptr, name: name}, nil
}

// Release implements mtl.Library.
func (l *Library) Release() {
	C.mtRelease(l.ptr)
	l.ptr = nil
}

// Function wraps an MTLFunction.
type Function struct {
	ptr  unsafe.Pointer
	name string
}

var _ mtl.Function = (*Function)(nil)

// Name implements mtl.Function.
func (f *Function) Name() string { return f.name }

// Release implements mtl.Function.
func (f *Function) Release() {
	C.mtRelease(f.ptr)
	f.ptr = nil
}

// ComputePipelineState wraps an MTLComputePipelineState.
type ComputePipelineState struct {
	ptr unsafe.Pointer
}

var _ mtl.ComputePipelineState = (*ComputePipelineState)(nil)

// NewComputePipelineState implements mtl.Device.
func (d *Device) NewComputePipelineState(fn mtl.Function) (mtl.ComputePipelineState, error) {
	f, ok := fn.(*Function)
	if !ok {
		return nil, errors.Errorf("function is not a %q backend function", BackendName)
	}
	var cerr *C.char
	ptr := C.mtNewComputePipelineState(d.ptr, f.ptr, &cerr)
	if ptr == nil {
		if err := takeError(cerr); err != nil {
			return nil, err
		}
		return nil, errors.New("pipeline state creation failed")
	}
	return &ComputePipelineState{ptr: ptr}, nil
}

// MaxTotalThreadsPerThreadgroup implements mtl.ComputePipelineState.
func (p *ComputePipelineState) MaxTotalThreadsPerThreadgroup() int {
	return int(C.mtMaxTotalThreadsPerThreadgroup(p.ptr))
}

// ThreadExecutionWidth implements mtl.ComputePipelineState.
func (p *ComputePipelineState) ThreadExecutionWidth() int {
	return int(C.mtThreadExecutionWidth(p.ptr))
}

// Release implements mtl.ComputePipelineState.
func (p *ComputePipelineState) Release() {
	C.mtRelease(p.ptr)
	p.ptr = nil
}

// CommandQueue wraps an MTLCommandQueue.
type CommandQueue struct {
	ptr unsafe.Pointer
}

var _ mtl.CommandQueue = (*CommandQueue)(nil)

// NewCommandQueue implements mtl.Device.
func (d *Device) NewCommandQueue() mtl.CommandQueue {
	return &CommandQueue{ptr: C.mtNewCommandQueue(d.ptr)}
}

// CommandBuffer implements mtl.CommandQueue.
func (q *CommandQueue) CommandBuffer() mtl.CommandBuffer {
	return &CommandBuffer{ptr: C.mtCommandBuffer(q.ptr), done: make(chan struct{})}
}

// Release implements mtl.CommandQueue.
func (q *CommandQueue) Release() {
	C.mtRelease(q.ptr)
	q.ptr = nil
}

// CommandBuffer wraps an MTLCommandBuffer. The scheduled and completed
// handlers run on a watcher goroutine spawned at commit, which avoids
// bridging Objective-C blocks.
type CommandBuffer struct {
	ptr       unsafe.Pointer
	scheduled []func()
	completed []func(error)
	done      chan struct{}
	err       error
}

var _ mtl.CommandBuffer = (*CommandBuffer)(nil)

// AddScheduledHandler implements mtl.CommandBuffer.
func (cb *CommandBuffer) AddScheduledHandler(fn func()) {
	cb.scheduled = append(cb.scheduled, fn)
}

// AddCompletedHandler implements mtl.CommandBuffer.
func (cb *CommandBuffer) AddCompletedHandler(fn func(error)) {
	cb.completed = append(cb.completed, fn)
}

// Commit implements mtl.CommandBuffer.
func (cb *CommandBuffer) Commit() {
	C.mtCommit(cb.ptr)
	go func() {
		C.mtWaitUntilScheduled(cb.ptr)
		for _, fn := range cb.scheduled {
			fn()
		}
		cb.err = takeError(C.mtWaitUntilCompleted(cb.ptr))
		for _, fn := range cb.completed {
			fn(cb.err)
		}
		C.mtRelease(cb.ptr)
		cb.ptr = nil
		close(cb.done)
	}()
}

// WaitUntilCompleted implements mtl.CommandBuffer.
func (cb *CommandBuffer) WaitUntilCompleted() error {
	<-cb.done
	return cb.err
}

// ComputeCommandEncoder implements mtl.CommandBuffer.
func (cb *CommandBuffer) ComputeCommandEncoder() mtl.ComputeCommandEncoder {
	return &computeEncoder{ptr: C.mtComputeCommandEncoder(cb.ptr)}
}

// BlitCommandEncoder implements mtl.CommandBuffer.
func (cb *CommandBuffer) BlitCommandEncoder() mtl.BlitCommandEncoder {
	return &blitEncoder{ptr: C.mtBlitCommandEncoder(cb.ptr)}
}

type computeEncoder struct {
	ptr unsafe.Pointer
}

var _ mtl.ComputeCommandEncoder = (*computeEncoder)(nil)

func (e *computeEncoder) SetComputePipelineState(ps mtl.ComputePipelineState) {
	C.mtSetComputePipelineState(e.ptr, ps.(*ComputePipelineState).ptr)
}

func (e *computeEncoder) SetBytes(data []byte, index int) {
	C.mtSetBytes(e.ptr, unsafe.Pointer(&data[0]), C.size_t(len(data)), C.int(index))
}

func (e *computeEncoder) SetBuffer(buf mtl.Buffer, offset, index int) {
	C.mtSetBuffer(e.ptr, buf.(*Buffer).ptr, C.size_t(offset), C.int(index))
}

func (e *computeEncoder) SetTexture(tex mtl.Texture, index int) {
	C.mtSetTexture(e.ptr, tex.(*Texture).ptr, C.int(index))
}

func (e *computeEncoder) SetSamplerState(s mtl.SamplerState, index int) {
	C.mtSetSamplerState(e.ptr, s.(*SamplerState).ptr, C.int(index))
}

func (e *computeEncoder) DispatchThreadgroups(groups, threadsPerGroup [3]int) {
	C.mtDispatchThreadgroups(e.ptr,
		C.size_t(groups[0]), C.size_t(groups[1]), C.size_t(groups[2]),
		C.size_t(threadsPerGroup[0]), C.size_t(threadsPerGroup[1]), C.size_t(threadsPerGroup[2]))
}

func (e *computeEncoder) EndEncoding() {
	C.mtEndEncoding(e.ptr)
	C.mtRelease(e.ptr)
	e.ptr = nil
}

type blitEncoder struct {
	ptr unsafe.Pointer
}

var _ mtl.BlitCommandEncoder = (*blitEncoder)(nil)

func (e *blitEncoder) CopyBuffer(src mtl.Buffer, srcOffset int, dst mtl.Buffer, dstOffset int, size int) {
	C.mtCopyBuffer(e.ptr, src.(*Buffer).ptr, C.size_t(srcOffset),
		dst.(*Buffer).ptr, C.size_t(dstOffset), C.size_t(size))
}

func (e *blitEncoder) FillBuffer(dst mtl.Buffer, offset, size int, value byte) {
	C.mtFillBuffer(e.ptr, dst.(*Buffer).ptr, C.size_t(offset), C.size_t(size), C.uchar(value))
}

func (e *blitEncoder) CopyBufferToTexture(src mtl.Buffer, srcOffset, bytesPerRow, bytesPerImage int,
	size [3]int, dst mtl.Texture, origin [3]int) {
	C.mtCopyBufferToTexture(e.ptr, src.(*Buffer).ptr, C.size_t(srcOffset),
		C.size_t(bytesPerRow), C.size_t(bytesPerImage),
		C.size_t(size[0]), C.size_t(size[1]), C.size_t(size[2]),
		dst.(*Texture).ptr, C.size_t(origin[0]), C.size_t(origin[1]), C.size_t(origin[2]))
}

func (e *blitEncoder) CopyTextureToBuffer(src mtl.Texture, origin, size [3]int,
	dst mtl.Buffer, dstOffset, bytesPerRow, bytesPerImage int) {
	C.mtCopyTextureToBuffer(e.ptr, src.(*Texture).ptr,
		C.size_t(origin[0]), C.size_t(origin[1]), C.size_t(origin[2]),
		C.size_t(size[0]), C.size_t(size[1]), C.size_t(size[2]),
		dst.(*Buffer).ptr, C.size_t(dstOffset), C.size_t(bytesPerRow), C.size_t(bytesPerImage))
}

func (e *blitEncoder) CopyTexture(src mtl.Texture, srcOrigin [3]int, size [3]int,
	dst mtl.Texture, dstOrigin [3]int) {
	C.mtCopyTexture(e.ptr, src.(*Texture).ptr,
		C.size_t(srcOrigin[0]), C.size_t(srcOrigin[1]), C.size_t(srcOrigin[2]),
		C.size_t(size[0]), C.size_t(size[1]), C.size_t(size[2]),
		dst.(*Texture).ptr, C.size_t(dstOrigin[0]), C.size_t(dstOrigin[1]), C.size_t(dstOrigin[2]))
}

func (e *blitEncoder) EndEncoding() {
	C.mtEndEncoding(e.ptr)
	C.mtRelease(e.ptr)
	e.ptr = nil
}
