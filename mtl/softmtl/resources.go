package softmtl

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/mtl"
)

// Buffer is a host-memory allocation.
type Buffer struct {
	data []byte
}

var _ mtl.Buffer = (*Buffer)(nil)

// NewBuffer implements mtl.Device.
func (d *Device) NewBuffer(length int) (mtl.Buffer, error) {
	if length <= 0 || length > d.MaxBufferLength() {
		return nil, errors.Errorf("buffer length %d out of range", length)
	}
	return &Buffer{data: make([]byte, length)}, nil
}

// NewBufferWithBytes implements mtl.Device.
func (d *Device) NewBufferWithBytes(data []byte) (mtl.Buffer, error) {
	buf, err := d.NewBuffer(len(data))
	if err != nil {
		return nil, err
	}
	copy(buf.Contents(), data)
	return buf, nil
}

// NewBufferNoCopy implements mtl.Device. The buffer aliases the caller's
// memory, which is exactly the use-host-pointer contract.
func (d *Device) NewBufferNoCopy(data []byte) (mtl.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("cannot wrap an empty host allocation")
	}
	return &Buffer{data: data}, nil
}

// Contents implements mtl.Buffer.
func (b *Buffer) Contents() []byte { return b.data }

// Length implements mtl.Buffer.
func (b *Buffer) Length() int { return len(b.data) }

// Release implements mtl.Buffer.
func (b *Buffer) Release() {}

// Texture is a flat byte plane with tight row and slice strides.
type Texture struct {
	desc       mtl.TextureDescriptor
	data       []byte
	rowBytes   int
	sliceBytes int
}

var _ mtl.Texture = (*Texture)(nil)

// NewTexture implements mtl.Device.
func (d *Device) NewTexture(desc mtl.TextureDescriptor) (mtl.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || desc.Depth <= 0 {
		return nil, errors.Errorf("texture extents %dx%dx%d out of range", desc.Width, desc.Height, desc.Depth)
	}
	if desc.ElemSize <= 0 {
		return nil, errors.Errorf("texture element size %d out of range", desc.ElemSize)
	}
	rowBytes := desc.Width * desc.ElemSize
	sliceBytes := rowBytes * desc.Height
	return &Texture{
		desc:       desc,
		data:       make([]byte, sliceBytes*desc.Depth),
		rowBytes:   rowBytes,
		sliceBytes: sliceBytes,
	}, nil
}

// Format implements mtl.Texture.
func (t *Texture) Format() mtl.PixelFormat { return t.desc.Format }

// ElemSize returns the byte size of one texel.
func (t *Texture) ElemSize() int { return t.desc.ElemSize }

func (t *Texture) checkRegion(r mtl.Region) {
	if r.X < 0 || r.Y < 0 || r.Z < 0 || r.W <= 0 || r.H <= 0 || r.D <= 0 ||
		r.X+r.W > t.desc.Width || r.Y+r.H > t.desc.Height || r.Z+r.D > t.desc.Depth {
		exceptions.Panicf("region %+v outside texture %dx%dx%d",
			r, t.desc.Width, t.desc.Height, t.desc.Depth)
	}
}

// ReplaceRegion implements mtl.Texture.
func (t *Texture) ReplaceRegion(r mtl.Region, data []byte, bytesPerRow, bytesPerImage int) {
	t.checkRegion(r)
	rowLen := r.W * t.desc.ElemSize
	for z := 0; z < r.D; z++ {
		for y := 0; y < r.H; y++ {
			dst := (r.Z+z)*t.sliceBytes + (r.Y+y)*t.rowBytes + r.X*t.desc.ElemSize
			src := z*bytesPerImage + y*bytesPerRow
			copy(t.data[dst:dst+rowLen], data[src:src+rowLen])
		}
	}
}

// GetBytes implements mtl.Texture.
func (t *Texture) GetBytes(dst []byte, bytesPerRow, bytesPerImage int, r mtl.Region) {
	t.checkRegion(r)
	rowLen := r.W * t.desc.ElemSize
	for z := 0; z < r.D; z++ {
		for y := 0; y < r.H; y++ {
			src := (r.Z+z)*t.sliceBytes + (r.Y+y)*t.rowBytes + r.X*t.desc.ElemSize
			out := z*bytesPerImage + y*bytesPerRow
			copy(dst[out:out+rowLen], t.data[src:src+rowLen])
		}
	}
}

// Texel returns the bytes of one texel; kernels use it for image access.
func (t *Texture) Texel(x, y, z int) []byte {
	at := z*t.sliceBytes + y*t.rowBytes + x*t.desc.ElemSize
	return t.data[at : at+t.desc.ElemSize]
}

// Release implements mtl.Texture.
func (t *Texture) Release() {}

// SamplerState is an immutable sampler description.
type SamplerState struct {
	desc mtl.SamplerDescriptor
}

var _ mtl.SamplerState = (*SamplerState)(nil)

// NewSamplerState implements mtl.Device.
func (d *Device) NewSamplerState(desc mtl.SamplerDescriptor) (mtl.SamplerState, error) {
	return &SamplerState{desc: desc}, nil
}

// Release implements mtl.SamplerState.
func (s *SamplerState) Release() {}
