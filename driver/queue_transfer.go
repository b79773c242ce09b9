package driver

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
)

func (q *CommandQueue) newStaging(b *batch, size int) (mtl.Buffer, error) {
	staging, err := q.device.Native().NewBuffer(size)
	if err != nil {
		return nil, errors.WithMessage(cl.ErrOutOfResources, err.Error())
	}
	b.releases = append(b.releases, staging.Release)
	return staging, nil
}

func (q *CommandQueue) newStagingWithBytes(b *batch, data []byte) (mtl.Buffer, error) {
	staging, err := q.device.Native().NewBufferWithBytes(data)
	if err != nil {
		return nil, errors.WithMessage(cl.ErrOutOfResources, err.Error())
	}
	b.releases = append(b.releases, staging.Release)
	return staging, nil
}

// EnqueueReadBuffer enqueues a read of len(dst) bytes at offset into dst.
// With blocking set the queue flushes and waits before returning.
func (q *CommandQueue) EnqueueReadBuffer(buffer *Buffer, blocking bool, offset int, dst []byte) error {
	if buffer == nil {
		return cl.ErrInvalidMemObject
	}
	if len(dst) == 0 {
		return cl.ErrInvalidValue
	}
	if offset < 0 || offset+len(dst) > buffer.Size() {
		return cl.ErrInvalidValue
	}
	size := len(dst)
	q.enqueue(func(b *batch) error {
		staging, err := q.newStaging(b, size)
		if err != nil {
			return err
		}
		b.blitEncoder().CopyBuffer(buffer.Native(), buffer.Origin()+offset, staging, 0, size)
		b.copybacks = append(b.copybacks, func() {
			copy(dst, staging.Contents())
		})
		return nil
	})
	return q.finishIf(blocking)
}

// EnqueueWriteBuffer enqueues a write of src into the buffer at offset.
func (q *CommandQueue) EnqueueWriteBuffer(buffer *Buffer, blocking bool, offset int, src []byte) error {
	if buffer == nil {
		return cl.ErrInvalidMemObject
	}
	if len(src) == 0 {
		return cl.ErrInvalidValue
	}
	if offset < 0 || offset+len(src) > buffer.Size() {
		return cl.ErrInvalidValue
	}
	q.enqueue(func(b *batch) error {
		staging, err := q.newStagingWithBytes(b, src)
		if err != nil {
			return err
		}
		b.blitEncoder().CopyBuffer(staging, 0, buffer.Native(), buffer.Origin()+offset, len(src))
		return nil
	})
	return q.finishIf(blocking)
}

// EnqueueCopyBuffer enqueues a device-side copy between buffers.
func (q *CommandQueue) EnqueueCopyBuffer(src *Buffer, srcOffset int, dst *Buffer, dstOffset, size int) error {
	if src == nil || dst == nil {
		return cl.ErrInvalidMemObject
	}
	if size <= 0 || srcOffset < 0 || dstOffset < 0 ||
		srcOffset+size > src.Size() || dstOffset+size > dst.Size() {
		return cl.ErrInvalidValue
	}
	q.enqueue(func(b *batch) error {
		b.blitEncoder().CopyBuffer(src.Native(), src.Origin()+srcOffset, dst.Native(), dst.Origin()+dstOffset, size)
		return nil
	})
	return nil
}

// EnqueueFillBuffer enqueues a fill of the range with the repeated pattern.
// The pattern length must be a power of two up to 128 and divide both the
// offset and the size.
func (q *CommandQueue) EnqueueFillBuffer(buffer *Buffer, pattern []byte, offset, size int) error {
	if buffer == nil {
		return cl.ErrInvalidMemObject
	}
	n := len(pattern)
	if n == 0 || n > 128 || bits.OnesCount(uint(n)) != 1 {
		return cl.ErrInvalidValue
	}
	if size <= 0 || offset < 0 || offset%n != 0 || size%n != 0 || offset+size > buffer.Size() {
		return cl.ErrInvalidValue
	}
	pat := append([]byte(nil), pattern...)
	q.enqueue(func(b *batch) error {
		if len(pat) == 1 {
			b.blitEncoder().FillBuffer(buffer.Native(), buffer.Origin()+offset, size, pat[0])
			return nil
		}
		expanded := make([]byte, size)
		for at := 0; at < size; at += len(pat) {
			copy(expanded[at:], pat)
		}
		staging, err := q.newStagingWithBytes(b, expanded)
		if err != nil {
			return err
		}
		b.blitEncoder().CopyBuffer(staging, 0, buffer.Native(), buffer.Origin()+offset, size)
		return nil
	})
	return nil
}

func checkImageRegion(image *Image, origin cl.Origin, region cl.Size) error {
	extent := image.Extent()
	if region.Total() == 0 {
		return cl.ErrInvalidValue
	}
	if origin.X+region.W > extent.W || origin.Y+region.H > extent.H || origin.Z+region.D > extent.D {
		return cl.ErrInvalidValue
	}
	if image.Type() == cl.Image2D && (origin.Z != 0 || region.D != 1) {
		return cl.ErrInvalidValue
	}
	if image.Type() == cl.Image1D && (origin.Y != 0 || region.H != 1 || origin.Z != 0 || region.D != 1) {
		return cl.ErrInvalidValue
	}
	return nil
}

// resolvePitches substitutes the tight strides for zero-valued caller
// pitches.
func resolvePitches(image *Image, region cl.Size, rowPitch, slicePitch int) (int, int) {
	if rowPitch == 0 {
		rowPitch = image.ElemSize() * int(region.W)
	}
	if slicePitch == 0 {
		slicePitch = rowPitch * int(region.H)
	}
	return rowPitch, slicePitch
}

func regionOf(origin cl.Origin, region cl.Size) ([3]int, [3]int) {
	return [3]int{int(origin.X), int(origin.Y), int(origin.Z)},
		[3]int{int(region.W), int(region.H), int(region.D)}
}

// EnqueueReadImage enqueues a read of the image region into dst using the
// caller's row and slice pitches (zero selects tight packing).
func (q *CommandQueue) EnqueueReadImage(image *Image, blocking bool, origin cl.Origin, region cl.Size,
	rowPitch, slicePitch int, dst []byte) error {
	if image == nil {
		return cl.ErrInvalidMemObject
	}
	if len(dst) == 0 {
		return cl.ErrInvalidValue
	}
	if err := checkImageRegion(image, origin, region); err != nil {
		return err
	}
	rowPitch, slicePitch = resolvePitches(image, region, rowPitch, slicePitch)
	tightRow := image.ElemSize() * int(region.W)
	tightSlice := tightRow * int(region.H)
	o, r := regionOf(origin, region)

	q.enqueue(func(b *batch) error {
		staging, err := q.newStaging(b, tightSlice*int(region.D))
		if err != nil {
			return err
		}
		b.blitEncoder().CopyTextureToBuffer(image.Native(), o, r, staging, 0, tightRow, tightSlice)
		b.copybacks = append(b.copybacks, func() {
			data := staging.Contents()
			for z := 0; z < int(region.D); z++ {
				for y := 0; y < int(region.H); y++ {
					src := z*tightSlice + y*tightRow
					out := z*slicePitch + y*rowPitch
					copy(dst[out:out+tightRow], data[src:src+tightRow])
				}
			}
		})
		return nil
	})
	return q.finishIf(blocking)
}

// EnqueueWriteImage enqueues a write of src into the image region, reading
// src with the caller's pitches.
func (q *CommandQueue) EnqueueWriteImage(image *Image, blocking bool, origin cl.Origin, region cl.Size,
	rowPitch, slicePitch int, src []byte) error {
	if image == nil {
		return cl.ErrInvalidMemObject
	}
	if len(src) == 0 {
		return cl.ErrInvalidValue
	}
	if err := checkImageRegion(image, origin, region); err != nil {
		return err
	}
	rowPitch, slicePitch = resolvePitches(image, region, rowPitch, slicePitch)
	tightRow := image.ElemSize() * int(region.W)
	tightSlice := tightRow * int(region.H)
	o, r := regionOf(origin, region)

	q.enqueue(func(b *batch) error {
		tight := make([]byte, tightSlice*int(region.D))
		for z := 0; z < int(region.D); z++ {
			for y := 0; y < int(region.H); y++ {
				in := z*slicePitch + y*rowPitch
				out := z*tightSlice + y*tightRow
				copy(tight[out:out+tightRow], src[in:in+tightRow])
			}
		}
		staging, err := q.newStagingWithBytes(b, tight)
		if err != nil {
			return err
		}
		b.blitEncoder().CopyBufferToTexture(staging, 0, tightRow, tightSlice, r, image.Native(), o)
		return nil
	})
	return q.finishIf(blocking)
}

// EnqueueCopyImage enqueues a device-side copy between images.
func (q *CommandQueue) EnqueueCopyImage(src *Image, srcOrigin cl.Origin, region cl.Size,
	dst *Image, dstOrigin cl.Origin) error {
	if src == nil || dst == nil {
		return cl.ErrInvalidMemObject
	}
	if src.ElemSize() != dst.ElemSize() {
		return cl.ErrInvalidValue
	}
	if err := checkImageRegion(src, srcOrigin, region); err != nil {
		return err
	}
	if err := checkImageRegion(dst, dstOrigin, region); err != nil {
		return err
	}
	so, r := regionOf(srcOrigin, region)
	do, _ := regionOf(dstOrigin, region)
	q.enqueue(func(b *batch) error {
		b.blitEncoder().CopyTexture(src.Native(), so, r, dst.Native(), do)
		return nil
	})
	return nil
}

// EnqueueCopyImageToBuffer enqueues a tight-packed copy of the image region
// into the buffer at dstOffset.
func (q *CommandQueue) EnqueueCopyImageToBuffer(image *Image, origin cl.Origin, region cl.Size,
	buffer *Buffer, dstOffset int) error {
	if image == nil || buffer == nil {
		return cl.ErrInvalidMemObject
	}
	if err := checkImageRegion(image, origin, region); err != nil {
		return err
	}
	tightRow := image.ElemSize() * int(region.W)
	tightSlice := tightRow * int(region.H)
	total := tightSlice * int(region.D)
	if dstOffset < 0 || dstOffset+total > buffer.Size() {
		return cl.ErrInvalidValue
	}
	o, r := regionOf(origin, region)
	q.enqueue(func(b *batch) error {
		b.blitEncoder().CopyTextureToBuffer(image.Native(), o, r,
			buffer.Native(), buffer.Origin()+dstOffset, tightRow, tightSlice)
		return nil
	})
	return nil
}

// EnqueueCopyBufferToImage enqueues a tight-packed copy from the buffer at
// srcOffset into the image region.
func (q *CommandQueue) EnqueueCopyBufferToImage(buffer *Buffer, srcOffset int,
	image *Image, origin cl.Origin, region cl.Size) error {
	if image == nil || buffer == nil {
		return cl.ErrInvalidMemObject
	}
	if err := checkImageRegion(image, origin, region); err != nil {
		return err
	}
	tightRow := image.ElemSize() * int(region.W)
	tightSlice := tightRow * int(region.H)
	total := tightSlice * int(region.D)
	if srcOffset < 0 || srcOffset+total > buffer.Size() {
		return cl.ErrInvalidValue
	}
	o, r := regionOf(origin, region)
	q.enqueue(func(b *batch) error {
		b.blitEncoder().CopyBufferToTexture(buffer.Native(), buffer.Origin()+srcOffset,
			tightRow, tightSlice, r, image.Native(), o)
		return nil
	})
	return nil
}

// EnqueueFillImage enqueues a fill of the image region with the color,
// packed per the image's channel order and type.
func (q *CommandQueue) EnqueueFillImage(image *Image, color [4]float32, origin cl.Origin, region cl.Size) error {
	if image == nil {
		return cl.ErrInvalidMemObject
	}
	if err := checkImageRegion(image, origin, region); err != nil {
		return err
	}
	elem, err := PackColor(image.Format(), color)
	if err != nil {
		return err
	}
	tightRow := len(elem) * int(region.W)
	tightSlice := tightRow * int(region.H)
	o, r := regionOf(origin, region)
	q.enqueue(func(b *batch) error {
		expanded := make([]byte, tightSlice*int(region.D))
		for at := 0; at < len(expanded); at += len(elem) {
			copy(expanded[at:], elem)
		}
		staging, err := q.newStagingWithBytes(b, expanded)
		if err != nil {
			return err
		}
		b.blitEncoder().CopyBufferToTexture(staging, 0, tightRow, tightSlice, r, image.Native(), o)
		return nil
	})
	return nil
}

// EnqueueMapBuffer maps the byte range for host access. The mapping itself
// happens immediately; with blocking set the queue drains first so the
// contents reflect every prior command.
func (q *CommandQueue) EnqueueMapBuffer(buffer *Buffer, blocking bool, flags cl.MapFlags,
	offset, size int) ([]byte, error) {
	if buffer == nil {
		return nil, cl.ErrInvalidMemObject
	}
	if size <= 0 || offset < 0 || offset+size > buffer.Size() {
		return nil, cl.ErrInvalidValue
	}
	if !flags.HasAny(cl.MapRead | cl.MapWrite) {
		return nil, cl.ErrInvalidValue
	}
	q.enqueue(nil)
	if err := q.finishIf(blocking); err != nil {
		return nil, err
	}
	data := buffer.Map()
	if data == nil {
		return nil, cl.ErrMapFailure
	}
	return data[offset : offset+size], nil
}

// EnqueueUnmapMemObject ends a mapping.
func (q *CommandQueue) EnqueueUnmapMemObject(mem MemObject) error {
	if mem == nil {
		return cl.ErrInvalidMemObject
	}
	if buffer, ok := mem.(*Buffer); ok {
		buffer.Unmap()
	}
	q.enqueue(nil)
	return nil
}
