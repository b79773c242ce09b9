package cl

// ChannelOrder is the layout of channels within an image element.
type ChannelOrder uint32

const (
	ChannelR         ChannelOrder = 0x10B0
	ChannelA         ChannelOrder = 0x10B1
	ChannelRG        ChannelOrder = 0x10B2
	ChannelRA        ChannelOrder = 0x10B3
	ChannelRGB       ChannelOrder = 0x10B4
	ChannelRGBA      ChannelOrder = 0x10B5
	ChannelBGRA      ChannelOrder = 0x10B6
	ChannelARGB      ChannelOrder = 0x10B7
	ChannelIntensity ChannelOrder = 0x10B8
	ChannelLuminance ChannelOrder = 0x10B9
)

// Count returns the number of channels in the order, or 0 if unknown.
func (o ChannelOrder) Count() int {
	switch o {
	case ChannelR, ChannelA, ChannelIntensity, ChannelLuminance:
		return 1
	case ChannelRG, ChannelRA:
		return 2
	case ChannelRGB:
		return 3
	case ChannelRGBA, ChannelBGRA, ChannelARGB:
		return 4
	}
	return 0
}

// ChannelType is the storage type of a single channel.
type ChannelType uint32

const (
	ChannelSnormInt8     ChannelType = 0x10D0
	ChannelSnormInt16    ChannelType = 0x10D1
	ChannelUnormInt8     ChannelType = 0x10D2
	ChannelUnormInt16    ChannelType = 0x10D3
	ChannelSignedInt8    ChannelType = 0x10D7
	ChannelSignedInt16   ChannelType = 0x10D8
	ChannelSignedInt32   ChannelType = 0x10D9
	ChannelUnsignedInt8  ChannelType = 0x10DA
	ChannelUnsignedInt16 ChannelType = 0x10DB
	ChannelUnsignedInt32 ChannelType = 0x10DC
	ChannelHalfFloat     ChannelType = 0x10DD
	ChannelFloat         ChannelType = 0x10DE
)

// Bytes returns the storage size of one channel, or 0 if unknown.
func (t ChannelType) Bytes() int {
	switch t {
	case ChannelSnormInt8, ChannelUnormInt8, ChannelSignedInt8, ChannelUnsignedInt8:
		return 1
	case ChannelSnormInt16, ChannelUnormInt16, ChannelSignedInt16, ChannelUnsignedInt16, ChannelHalfFloat:
		return 2
	case ChannelSignedInt32, ChannelUnsignedInt32, ChannelFloat:
		return 4
	}
	return 0
}

// ImageFormat pairs a channel order with a channel type.
type ImageFormat struct {
	Order ChannelOrder
	Type  ChannelType
}

// ElemSize returns the byte size of one image element.
func (f ImageFormat) ElemSize() int {
	return f.Order.Count() * f.Type.Bytes()
}

// ImageKind selects the dimensionality of an image. Values match the host
// API's memory object types.
type ImageKind uint32

const (
	MemObjectBuffer ImageKind = 0x10F0
	Image2D         ImageKind = 0x10F1
	Image3D         ImageKind = 0x10F2
	Image1D         ImageKind = 0x10F4
)

// ImageDesc describes the geometry of an image at creation time. Extents of
// zero are clamped to one by the driver.
type ImageDesc struct {
	Kind   ImageKind
	Width  uint32
	Height uint32
	Depth  uint32
}
