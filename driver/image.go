package driver

import (
	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
)

// Image is a formatted memory object backed by a native texture.
type Image struct {
	Memory

	native mtl.Texture
	format cl.ImageFormat
	extent cl.Size
}

func textureKind(kind cl.ImageKind) (mtl.TextureKind, bool) {
	switch kind {
	case cl.Image1D:
		return mtl.TextureKind1D, true
	case cl.Image2D:
		return mtl.TextureKind2D, true
	case cl.Image3D:
		return mtl.TextureKind3D, true
	}
	return 0, false
}

func maxUint32(v, floor uint32) uint32 {
	if v < floor {
		return floor
	}
	return v
}

// NewImage creates an image. Extents of zero are clamped to one, matching
// the host API's descriptor conventions.
func NewImage(context *Context, flags cl.MemFlags, format cl.ImageFormat, desc cl.ImageDesc, host []byte) (*Image, error) {
	if context == nil {
		return nil, cl.ErrInvalidContext
	}
	pixel, ok := nativePixelFormat(format)
	if !ok {
		return nil, cl.ErrImageFormatNotSupported
	}
	kind, ok := textureKind(desc.Kind)
	if !ok {
		return nil, cl.ErrInvalidImageFormatDescriptor
	}
	flags, err := normalizeMemFlags(flags, host)
	if err != nil {
		return nil, err
	}
	if flags.HasAny(cl.MemUseHostPtr) {
		// Textures cannot wrap host memory; the closest legal behavior is a
		// copy, which the host API forbids under this flag.
		return nil, cl.ErrInvalidOperation
	}

	extent := cl.Size{
		W: maxUint32(desc.Width, 1),
		H: maxUint32(desc.Height, 1),
		D: maxUint32(desc.Depth, 1),
	}
	if err := checkImageExtent(context.device, desc.Kind, extent); err != nil {
		return nil, err
	}

	elem := format.ElemSize()
	img := &Image{
		Memory: Memory{
			handle:  newHandle(),
			context: context,
			flags:   flags,
			size:    elem * int(extent.Total()),
			kind:    desc.Kind,
		},
		format: format,
		extent: extent,
	}
	img.object.init()

	img.native, err = context.device.Native().NewTexture(mtl.TextureDescriptor{
		Kind:     kind,
		Format:   pixel,
		ElemSize: elem,
		Width:    int(extent.W),
		Height:   int(extent.H),
		Depth:    int(extent.D),
	})
	if err != nil {
		return nil, errors.WithMessage(cl.ErrMemObjectAllocationFailure, err.Error())
	}

	if flags.HasAny(cl.MemCopyHostPtr) {
		if len(host) < img.size {
			img.native.Release()
			return nil, cl.ErrInvalidHostPtr
		}
		rowBytes := elem * int(extent.W)
		img.native.ReplaceRegion(mtl.Region{
			W: int(extent.W), H: int(extent.H), D: int(extent.D),
		}, host, rowBytes, rowBytes*int(extent.H))
	}

	context.Retain()
	return img, nil
}

func checkImageExtent(device *Device, kind cl.ImageKind, extent cl.Size) error {
	switch kind {
	case cl.Image1D:
		if uint64(extent.W) > device.Image2DMaxWidth() {
			return cl.ErrInvalidImageSize
		}
	case cl.Image2D:
		if uint64(extent.W) > device.Image2DMaxWidth() || uint64(extent.H) > device.Image2DMaxHeight() {
			return cl.ErrInvalidImageSize
		}
	case cl.Image3D:
		if uint64(extent.W) > device.Image3DMaxWidth() || uint64(extent.H) > device.Image3DMaxHeight() ||
			uint64(extent.D) > device.Image3DMaxDepth() {
			return cl.ErrInvalidImageSize
		}
	}
	return nil
}

// Format returns the image format.
func (i *Image) Format() cl.ImageFormat { return i.format }

// Extent returns the image extents; unused dimensions are 1.
func (i *Image) Extent() cl.Size { return i.extent }

// ElemSize returns the byte size of one element.
func (i *Image) ElemSize() int { return i.format.ElemSize() }

// RowPitch reports the driver-managed row stride, which is not exposed.
func (i *Image) RowPitch() int { return 0 }

// SlicePitch reports the driver-managed slice stride, which is not exposed.
func (i *Image) SlicePitch() int { return 0 }

// Native returns the backing texture.
func (i *Image) Native() mtl.Texture { return i.native }

// Release decrements the count and destroys the image at zero.
func (i *Image) Release() {
	if i.object.release() {
		i.destroy()
	}
}

func (i *Image) destroy() {
	i.native.Release()
	i.native = nil
	i.context.Release()
}
