package softmtl

import (
	"bytes"
	"encoding/binary"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemyung/clmtl/mtl"
)

func testDevice(t *testing.T) *Device {
	t.Helper()
	return NewDevice()
}

func commit(t *testing.T, cb mtl.CommandBuffer) {
	t.Helper()
	cb.Commit()
	require.NoError(t, cb.WaitUntilCompleted())
}

func TestBuffer_Allocation(t *testing.T) {
	d := testDevice(t)

	buf, err := d.NewBuffer(64)
	require.NoError(t, err)
	assert.Len(t, buf.Contents(), 64)

	_, err = d.NewBuffer(0)
	assert.Error(t, err)

	init, err := d.NewBufferWithBytes([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, init.Contents())

	host := make([]byte, 16)
	wrapped, err := d.NewBufferNoCopy(host)
	require.NoError(t, err)
	wrapped.Contents()[0] = 9
	assert.Equal(t, byte(9), host[0])
}

func TestBlit_CopyAndFill(t *testing.T) {
	d := testDevice(t)
	queue := d.NewCommandQueue()
	defer queue.Release()

	src, err := d.NewBufferWithBytes(bytes.Repeat([]byte{5}, 32))
	require.NoError(t, err)
	dst, err := d.NewBuffer(32)
	require.NoError(t, err)

	cb := queue.CommandBuffer()
	enc := cb.BlitCommandEncoder()
	enc.CopyBuffer(src, 0, dst, 0, 16)
	enc.FillBuffer(dst, 16, 16, 7)
	enc.EndEncoding()
	commit(t, cb)

	assert.Equal(t, bytes.Repeat([]byte{5}, 16), dst.Contents()[:16])
	assert.Equal(t, bytes.Repeat([]byte{7}, 16), dst.Contents()[16:])
}

func TestCommandBuffer_HandlersAndOrder(t *testing.T) {
	d := testDevice(t)
	queue := d.NewCommandQueue()
	defer queue.Release()

	buf, err := d.NewBuffer(1)
	require.NoError(t, err)

	var scheduled, completed atomic.Bool
	var order []byte

	cb := queue.CommandBuffer()
	enc := cb.BlitCommandEncoder()
	enc.FillBuffer(buf, 0, 1, 1)
	enc.EndEncoding()
	cb.AddScheduledHandler(func() { scheduled.Store(true) })
	cb.AddCompletedHandler(func(err error) {
		completed.Store(true)
		order = append(order, buf.Contents()[0])
	})
	commit(t, cb)

	assert.True(t, scheduled.Load())
	assert.True(t, completed.Load())
	assert.Equal(t, []byte{1}, order)
}

func TestCommandBuffer_ErrorSurfacesToHandler(t *testing.T) {
	d := testDevice(t)
	queue := d.NewCommandQueue()
	defer queue.Release()

	tex, err := d.NewTexture(mtl.TextureDescriptor{
		Kind: mtl.TextureKind2D, Format: mtl.PixelFormatR8Uint, ElemSize: 1, Width: 2, Height: 2, Depth: 1,
	})
	require.NoError(t, err)
	buf, err := d.NewBuffer(64)
	require.NoError(t, err)

	var handlerErr error
	cb := queue.CommandBuffer()
	enc := cb.BlitCommandEncoder()
	// Out-of-bounds region: the step panics and the executor maps it to an
	// execution error.
	enc.CopyTextureToBuffer(tex, [3]int{0, 0, 0}, [3]int{4, 4, 1}, buf, 0, 4, 16)
	enc.EndEncoding()
	cb.AddCompletedHandler(func(err error) { handlerErr = err })
	cb.Commit()
	assert.Error(t, cb.WaitUntilCompleted())
	assert.Error(t, handlerErr)
}

func TestLibrary_FunctionsAndDefines(t *testing.T) {
	d := testDevice(t)
	d.RegisterKernel("twice", func(inv *Invocation) {
		data := inv.Buffer(0)
		i := inv.GlobalID(0)
		binary.LittleEndian.PutUint32(data[i*4:], 2*binary.LittleEndian.Uint32(data[i*4:]))
	})

	source := "#define SPIRV_CROSS_CONSTANT_ID_4 16\nkernel void twice(device uint *data) {}\n"
	lib, err := d.NewLibrary(source)
	require.NoError(t, err)

	fn, err := lib.NewFunction("twice", mtl.FunctionConstants{0: 8, 1: 1, 2: 1})
	require.NoError(t, err)
	_, err = lib.NewFunction("missing", nil)
	assert.Error(t, err)

	ps, err := d.NewComputePipelineState(fn)
	require.NoError(t, err)
	assert.Greater(t, ps.MaxTotalThreadsPerThreadgroup(), 0)

	state := ps.(*ComputePipelineState)
	assert.Equal(t, uint32(16), state.defines[4])
}

func TestLibrary_UnregisteredKernelFails(t *testing.T) {
	d := testDevice(t)
	lib, err := d.NewLibrary("kernel void nobody_home() {}")
	require.NoError(t, err)
	fn, err := lib.NewFunction("nobody_home", nil)
	require.NoError(t, err)
	_, err = d.NewComputePipelineState(fn)
	assert.ErrorContains(t, err, "no kernel implementation")
}

func TestDispatch_RunsEveryWorkItem(t *testing.T) {
	d := testDevice(t)
	d.RegisterKernel("mark", func(inv *Invocation) {
		data := inv.Buffer(0)
		data[inv.GlobalID(0)] = byte(1 + inv.GlobalID(1))
	})

	lib, err := d.NewLibrary("kernel void mark() {}")
	require.NoError(t, err)
	fn, err := lib.NewFunction("mark", nil)
	require.NoError(t, err)
	ps, err := d.NewComputePipelineState(fn)
	require.NoError(t, err)

	buf, err := d.NewBuffer(128)
	require.NoError(t, err)

	queue := d.NewCommandQueue()
	defer queue.Release()
	cb := queue.CommandBuffer()
	enc := cb.ComputeCommandEncoder()
	enc.SetComputePipelineState(ps)
	enc.SetBuffer(buf, 0, 0)
	enc.DispatchThreadgroups([3]int{4, 1, 1}, [3]int{32, 1, 1})
	enc.EndEncoding()
	commit(t, cb)

	assert.Equal(t, bytes.Repeat([]byte{1}, 128), buf.Contents())
}

func TestTexture_RegionRoundTrip(t *testing.T) {
	d := testDevice(t)
	tex, err := d.NewTexture(mtl.TextureDescriptor{
		Kind: mtl.TextureKind2D, Format: mtl.PixelFormatR8Uint, ElemSize: 1, Width: 4, Height: 4, Depth: 1,
	})
	require.NoError(t, err)

	soft := tex.(*Texture)
	soft.ReplaceRegion(mtl.Region{X: 1, Y: 1, W: 2, H: 2, D: 1}, []byte{1, 2, 3, 4}, 2, 4)
	assert.Equal(t, []byte{1}, soft.Texel(1, 1, 0))
	assert.Equal(t, []byte{4}, soft.Texel(2, 2, 0))

	out := make([]byte, 4)
	soft.GetBytes(out, 2, 4, mtl.Region{X: 1, Y: 1, W: 2, H: 2, D: 1})
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
}
