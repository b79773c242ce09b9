package driver

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemyung/clmtl/cl"
)

func u32Bytes(values []uint32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func bytesU32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}

func TestQueue_WriteReadRoundTrip(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	buffer := must.M1(NewBuffer(context, 0, 256, nil))
	defer buffer.Release()

	pattern := make([]byte, 256)
	for i := range pattern {
		pattern[i] = byte(i)
	}
	require.NoError(t, queue.EnqueueWriteBuffer(buffer, false, 0, pattern))

	got := make([]byte, 256)
	require.NoError(t, queue.EnqueueReadBuffer(buffer, true, 0, got))
	assert.Equal(t, pattern, got)
}

func TestQueue_VectorAdd(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)
	kernel := newTestKernel(t, context, vaddSource, "vadd")

	const n = 1024
	a := make([]uint32, n)
	b := make([]uint32, n)
	for i := range a {
		a[i] = uint32(i)
		b[i] = uint32(1024 + i)
	}

	bufA := must.M1(NewBuffer(context, cl.MemReadOnly|cl.MemCopyHostPtr, n*4, u32Bytes(a)))
	defer bufA.Release()
	bufB := must.M1(NewBuffer(context, cl.MemReadOnly|cl.MemCopyHostPtr, n*4, u32Bytes(b)))
	defer bufB.Release()
	bufC := must.M1(NewBuffer(context, cl.MemWriteOnly, n*4, nil))
	defer bufC.Release()

	require.NoError(t, kernel.SetArg(0, bufA, 0))
	require.NoError(t, kernel.SetArg(1, bufB, 0))
	require.NoError(t, kernel.SetArg(2, bufC, 0))
	require.NoError(t, queue.EnqueueDispatch(kernel, cl.Size1(n), nil))

	got := make([]byte, n*4)
	require.NoError(t, queue.EnqueueReadBuffer(bufC, true, 0, got))
	for i, v := range bytesU32(got) {
		require.Equal(t, uint32(1024+2*i), v, "element %d", i)
	}
}

func TestQueue_DispatchPopulatesPipelineCache(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)
	kernel := newTestKernel(t, context, reduceSource, "reduce")

	in := must.M1(NewBuffer(context, 0, 256*4, nil))
	defer in.Release()
	out := must.M1(NewBuffer(context, 0, 4, nil))
	defer out.Release()

	require.NoError(t, kernel.SetArg(0, in, 0))
	require.NoError(t, kernel.SetArg(1, out, 0))
	require.NoError(t, kernel.SetArg(2, u32Bytes([]uint32{256}), 4))
	require.NoError(t, kernel.SetArg(3, nil, 64*4))

	local := cl.Size{W: 64, H: 1, D: 1}
	require.NoError(t, queue.EnqueueDispatch(kernel, cl.Size1(256), &local))
	assert.True(t, kernel.HasPipelineState(local))

	// The kernel observes the scratch element count through the
	// specialization constant.
	require.NoError(t, queue.Finish())
	got := make([]byte, 4)
	require.NoError(t, queue.EnqueueReadBuffer(out, true, 0, got))
	assert.Equal(t, uint32(64), binary.LittleEndian.Uint32(got))
}

func TestQueue_DispatchValidation(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)
	kernel := newTestKernel(t, context, vaddSource, "vadd")

	// All arguments unset.
	err := queue.EnqueueDispatch(kernel, cl.Size1(16), nil)
	assert.Equal(t, int32(cl.ErrInvalidKernelArgs), cl.Code(err))

	buffer := must.M1(NewBuffer(context, 0, 64, nil))
	defer buffer.Release()
	for i := uint32(0); i < 3; i++ {
		require.NoError(t, kernel.SetArg(i, buffer, 0))
	}

	// A local size that does not divide the global size.
	local := cl.Size{W: 5, H: 1, D: 1}
	err = queue.EnqueueDispatch(kernel, cl.Size1(16), &local)
	assert.Equal(t, int32(cl.ErrInvalidWorkGroupSize), cl.Code(err))

	err = queue.EnqueueDispatch(kernel, cl.Size{}, nil)
	assert.Equal(t, int32(cl.ErrInvalidGlobalWorkSize), cl.Code(err))
}

func TestQueue_RequiredWorkGroupSizeEnforced(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)
	kernel := newTestKernel(t, context, "kernel void fixed(global int *data);", "fixed")

	buffer := must.M1(NewBuffer(context, 0, 64*4, nil))
	defer buffer.Release()
	require.NoError(t, kernel.SetArg(0, buffer, 0))

	wrong := cl.Size{W: 16, H: 1, D: 1}
	err := queue.EnqueueDispatch(kernel, cl.Size1(64), &wrong)
	assert.Equal(t, int32(cl.ErrInvalidWorkGroupSize), cl.Code(err))

	// Without an explicit local size the compile-time size wins.
	require.NoError(t, queue.EnqueueDispatch(kernel, cl.Size1(64), nil))
	got := make([]byte, 64*4)
	require.NoError(t, queue.EnqueueReadBuffer(buffer, true, 0, got))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(got))
}

func TestQueue_EventOrdering(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)
	kernel := newTestKernel(t, context, "kernel void scale(global int *data, int factor);", "scale")

	const n = 64
	values := make([]uint32, n)
	for i := range values {
		values[i] = uint32(i)
	}
	buffer := must.M1(NewBuffer(context, 0, n*4, nil))
	defer buffer.Release()

	require.NoError(t, queue.EnqueueWriteBuffer(buffer, false, 0, u32Bytes(values)))
	e1 := must.M1(NewEvent(queue))
	defer e1.Release()
	require.NoError(t, queue.EnqueueSignalEvent(e1))

	require.NoError(t, kernel.SetArg(0, buffer, 0))
	require.NoError(t, kernel.SetArg(1, u32Bytes([]uint32{3}), 4))
	require.NoError(t, queue.EnqueueWaitEvent(e1))
	require.NoError(t, queue.EnqueueDispatch(kernel, cl.Size1(n), nil))
	e2 := must.M1(NewEvent(queue))
	defer e2.Release()
	require.NoError(t, queue.EnqueueSignalEvent(e2))

	require.NoError(t, queue.Flush())
	require.NoError(t, WaitForEvents([]*Event{e2}))
	assert.Equal(t, cl.Complete, e1.Status())
	assert.Equal(t, cl.Complete, e2.Status())

	got := make([]byte, n*4)
	require.NoError(t, queue.EnqueueReadBuffer(buffer, true, 0, got))
	for i, v := range bytesU32(got) {
		assert.Equal(t, uint32(i)*3, v)
	}
}

func TestQueue_UserEventGatesSubmission(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)
	kernel := newTestKernel(t, context, "kernel void scale(global int *data, int factor);", "scale")

	buffer := must.M1(NewBuffer(context, 0, 64*4, nil))
	defer buffer.Release()
	require.NoError(t, kernel.SetArg(0, buffer, 0))
	require.NoError(t, kernel.SetArg(1, u32Bytes([]uint32{2}), 4))

	gate := must.M1(NewUserEvent(context))
	defer gate.Release()

	require.NoError(t, queue.EnqueueWaitEvent(gate))
	require.NoError(t, queue.EnqueueDispatch(kernel, cl.Size1(64), nil))
	tracker := must.M1(NewEvent(queue))
	defer tracker.Release()
	require.NoError(t, queue.EnqueueSignalEvent(tracker))

	require.NoError(t, queue.Flush())
	assert.Equal(t, cl.Queued, tracker.Status())

	require.NoError(t, gate.SetUserEventStatus(cl.Complete))
	assert.Equal(t, cl.Complete, tracker.Wait())
}

func TestQueue_NegativeWaitStatusPropagates(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	gate := must.M1(NewUserEvent(context))
	defer gate.Release()

	buffer := must.M1(NewBuffer(context, 0, 64, nil))
	defer buffer.Release()

	require.NoError(t, queue.EnqueueWaitEvent(gate))
	require.NoError(t, queue.EnqueueWriteBuffer(buffer, false, 0, make([]byte, 64)))
	tracker := must.M1(NewEvent(queue))
	defer tracker.Release()
	require.NoError(t, queue.EnqueueSignalEvent(tracker))
	require.NoError(t, queue.Flush())

	require.NoError(t, gate.SetUserEventStatus(cl.ExecStatus(cl.ErrOutOfResources)))
	deadline := time.After(time.Second)
	for tracker.Status() >= 0 {
		select {
		case <-deadline:
			t.Fatal("negative status did not propagate")
		case <-time.After(time.Millisecond):
		}
	}
	assert.Equal(t, cl.ExecStatus(cl.ErrOutOfResources), tracker.Status())
}

func TestQueue_SubBufferAliasing(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	parent := must.M1(NewBuffer(context, 0, 1024, nil))
	defer parent.Release()
	sub := must.M1(NewSubBuffer(parent, 0, 256, 256))
	defer sub.Release()

	pattern := bytes.Repeat([]byte{0xA5, 0x5A}, 128)
	require.NoError(t, queue.EnqueueWriteBuffer(sub, false, 0, pattern))

	got := make([]byte, 256)
	require.NoError(t, queue.EnqueueReadBuffer(parent, true, 256, got))
	assert.Equal(t, pattern, got)
}

func TestQueue_SubBufferValidation(t *testing.T) {
	context := testContext(t)

	parent := must.M1(NewBuffer(context, 0, 1024, nil))
	defer parent.Release()

	_, err := NewSubBuffer(parent, 0, 900, 256)
	assert.Equal(t, int32(cl.ErrInvalidValue), cl.Code(err))

	sub := must.M1(NewSubBuffer(parent, 0, 0, 128))
	defer sub.Release()
	_, err = NewSubBuffer(sub, 0, 0, 64)
	assert.Equal(t, int32(cl.ErrInvalidMemObject), cl.Code(err))
}

func TestQueue_FillBuffer(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	buffer := must.M1(NewBuffer(context, 0, 64, nil))
	defer buffer.Release()

	require.NoError(t, queue.EnqueueFillBuffer(buffer, []byte{1, 2, 3, 4}, 0, 64))
	got := make([]byte, 64)
	require.NoError(t, queue.EnqueueReadBuffer(buffer, true, 0, got))
	assert.Equal(t, bytes.Repeat([]byte{1, 2, 3, 4}, 16), got)

	// The pattern length must be a power of two.
	err := queue.EnqueueFillBuffer(buffer, []byte{1, 2, 3}, 0, 63)
	assert.Equal(t, int32(cl.ErrInvalidValue), cl.Code(err))
}

func TestQueue_ImageWriteCopyToBufferRead(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	format := cl.ImageFormat{Order: cl.ChannelRGBA, Type: cl.ChannelUnormInt8}
	image := must.M1(NewImage(context, 0, format, cl.ImageDesc{Kind: cl.Image2D, Width: 8, Height: 4}, nil))
	defer image.Release()

	data := make([]byte, 8*4*4)
	for i := range data {
		data[i] = byte(i * 3)
	}
	require.NoError(t, queue.EnqueueWriteImage(image, false, cl.Origin{}, cl.Size{W: 8, H: 4, D: 1}, 0, 0, data))

	buffer := must.M1(NewBuffer(context, 0, len(data), nil))
	defer buffer.Release()
	require.NoError(t, queue.EnqueueCopyImageToBuffer(image, cl.Origin{}, cl.Size{W: 8, H: 4, D: 1}, buffer, 0))

	got := make([]byte, len(data))
	require.NoError(t, queue.EnqueueReadBuffer(buffer, true, 0, got))
	assert.Equal(t, data, got)
}

func TestQueue_ImageReadWithRowPitch(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	format := cl.ImageFormat{Order: cl.ChannelR, Type: cl.ChannelUnsignedInt8}
	image := must.M1(NewImage(context, 0, format, cl.ImageDesc{Kind: cl.Image2D, Width: 4, Height: 2}, nil))
	defer image.Release()

	require.NoError(t, queue.EnqueueWriteImage(image, false, cl.Origin{}, cl.Size{W: 4, H: 2, D: 1}, 0, 0,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	// Read with a padded row pitch of 6.
	got := make([]byte, 12)
	require.NoError(t, queue.EnqueueReadImage(image, true, cl.Origin{}, cl.Size{W: 4, H: 2, D: 1}, 6, 12, got))
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 5, 6, 7, 8, 0, 0}, got)
}

func TestQueue_FillImage(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	format := cl.ImageFormat{Order: cl.ChannelRGBA, Type: cl.ChannelUnormInt8}
	image := must.M1(NewImage(context, 0, format, cl.ImageDesc{Kind: cl.Image2D, Width: 4, Height: 4}, nil))
	defer image.Release()

	require.NoError(t, queue.EnqueueFillImage(image, [4]float32{1, 0, 0.5, 1}, cl.Origin{}, cl.Size{W: 4, H: 4, D: 1}))

	got := make([]byte, 4*4*4)
	require.NoError(t, queue.EnqueueReadImage(image, true, cl.Origin{}, cl.Size{W: 4, H: 4, D: 1}, 0, 0, got))
	assert.Equal(t, []byte{255, 0, 128, 255}, got[:4])
	assert.Equal(t, got[:4], got[4:8])
}

func TestQueue_MapBuffer(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	buffer := must.M1(NewBuffer(context, 0, 64, nil))
	defer buffer.Release()
	require.NoError(t, queue.EnqueueWriteBuffer(buffer, false, 0, bytes.Repeat([]byte{9}, 64)))

	mapped, err := queue.EnqueueMapBuffer(buffer, true, cl.MapRead|cl.MapWrite, 16, 16)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{9}, 16), mapped)
	assert.Equal(t, 1, buffer.MapCount())

	mapped[0] = 42
	require.NoError(t, queue.EnqueueUnmapMemObject(buffer))
	assert.Equal(t, 0, buffer.MapCount())

	got := make([]byte, 1)
	require.NoError(t, queue.EnqueueReadBuffer(buffer, true, 16, got))
	assert.Equal(t, byte(42), got[0])
}

func TestQueue_CopyBuffer(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	src := must.M1(NewBuffer(context, cl.MemCopyHostPtr, 32, bytes.Repeat([]byte{7}, 32)))
	defer src.Release()
	dst := must.M1(NewBuffer(context, 0, 64, nil))
	defer dst.Release()

	require.NoError(t, queue.EnqueueCopyBuffer(src, 0, dst, 32, 32))
	got := make([]byte, 32)
	require.NoError(t, queue.EnqueueReadBuffer(dst, true, 32, got))
	assert.Equal(t, bytes.Repeat([]byte{7}, 32), got)
}

func TestQueue_CommandsCompleteInEnqueueOrder(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	buffer := must.M1(NewBuffer(context, 0, 4, nil))
	defer buffer.Release()

	// Later writes land later: the final read observes the last value.
	for i := byte(1); i <= 9; i++ {
		require.NoError(t, queue.EnqueueWriteBuffer(buffer, false, 0, []byte{i, i, i, i}))
	}
	got := make([]byte, 4)
	require.NoError(t, queue.EnqueueReadBuffer(buffer, true, 0, got))
	assert.Equal(t, []byte{9, 9, 9, 9}, got)
}

func TestQueue_UseHostPtrAliasesClientMemory(t *testing.T) {
	context := testContext(t)
	queue := testQueue(t, context)

	host := make([]byte, 128)
	buffer := must.M1(NewBuffer(context, cl.MemUseHostPtr, 128, host))
	defer buffer.Release()

	require.NoError(t, queue.EnqueueWriteBuffer(buffer, true, 0, bytes.Repeat([]byte{3}, 128)))
	assert.Equal(t, bytes.Repeat([]byte{3}, 128), host)
}
