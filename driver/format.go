package driver

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
)

// formatTable maps every supported (channel order, channel type) pair to its
// native pixel format. Three-channel orders have no native equivalent and
// are absent.
var formatTable = map[cl.ImageFormat]mtl.PixelFormat{
	{Order: cl.ChannelR, Type: cl.ChannelUnormInt8}:     mtl.PixelFormatR8Unorm,
	{Order: cl.ChannelR, Type: cl.ChannelSnormInt8}:     mtl.PixelFormatR8Snorm,
	{Order: cl.ChannelR, Type: cl.ChannelSignedInt8}:    mtl.PixelFormatR8Sint,
	{Order: cl.ChannelR, Type: cl.ChannelUnsignedInt8}:  mtl.PixelFormatR8Uint,
	{Order: cl.ChannelR, Type: cl.ChannelUnormInt16}:    mtl.PixelFormatR16Unorm,
	{Order: cl.ChannelR, Type: cl.ChannelSnormInt16}:    mtl.PixelFormatR16Snorm,
	{Order: cl.ChannelR, Type: cl.ChannelSignedInt16}:   mtl.PixelFormatR16Sint,
	{Order: cl.ChannelR, Type: cl.ChannelUnsignedInt16}: mtl.PixelFormatR16Uint,
	{Order: cl.ChannelR, Type: cl.ChannelHalfFloat}:     mtl.PixelFormatR16Float,
	{Order: cl.ChannelR, Type: cl.ChannelSignedInt32}:   mtl.PixelFormatR32Sint,
	{Order: cl.ChannelR, Type: cl.ChannelUnsignedInt32}: mtl.PixelFormatR32Uint,
	{Order: cl.ChannelR, Type: cl.ChannelFloat}:         mtl.PixelFormatR32Float,

	{Order: cl.ChannelRG, Type: cl.ChannelUnormInt8}:     mtl.PixelFormatRG8Unorm,
	{Order: cl.ChannelRG, Type: cl.ChannelSnormInt8}:     mtl.PixelFormatRG8Snorm,
	{Order: cl.ChannelRG, Type: cl.ChannelSignedInt8}:    mtl.PixelFormatRG8Sint,
	{Order: cl.ChannelRG, Type: cl.ChannelUnsignedInt8}:  mtl.PixelFormatRG8Uint,
	{Order: cl.ChannelRG, Type: cl.ChannelUnormInt16}:    mtl.PixelFormatRG16Unorm,
	{Order: cl.ChannelRG, Type: cl.ChannelSnormInt16}:    mtl.PixelFormatRG16Snorm,
	{Order: cl.ChannelRG, Type: cl.ChannelSignedInt16}:   mtl.PixelFormatRG16Sint,
	{Order: cl.ChannelRG, Type: cl.ChannelUnsignedInt16}: mtl.PixelFormatRG16Uint,
	{Order: cl.ChannelRG, Type: cl.ChannelHalfFloat}:     mtl.PixelFormatRG16Float,
	{Order: cl.ChannelRG, Type: cl.ChannelSignedInt32}:   mtl.PixelFormatRG32Sint,
	{Order: cl.ChannelRG, Type: cl.ChannelUnsignedInt32}: mtl.PixelFormatRG32Uint,
	{Order: cl.ChannelRG, Type: cl.ChannelFloat}:         mtl.PixelFormatRG32Float,

	{Order: cl.ChannelRGBA, Type: cl.ChannelUnormInt8}:     mtl.PixelFormatRGBA8Unorm,
	{Order: cl.ChannelRGBA, Type: cl.ChannelSnormInt8}:     mtl.PixelFormatRGBA8Snorm,
	{Order: cl.ChannelRGBA, Type: cl.ChannelSignedInt8}:    mtl.PixelFormatRGBA8Sint,
	{Order: cl.ChannelRGBA, Type: cl.ChannelUnsignedInt8}:  mtl.PixelFormatRGBA8Uint,
	{Order: cl.ChannelRGBA, Type: cl.ChannelUnormInt16}:    mtl.PixelFormatRGBA16Unorm,
	{Order: cl.ChannelRGBA, Type: cl.ChannelSnormInt16}:    mtl.PixelFormatRGBA16Snorm,
	{Order: cl.ChannelRGBA, Type: cl.ChannelSignedInt16}:   mtl.PixelFormatRGBA16Sint,
	{Order: cl.ChannelRGBA, Type: cl.ChannelUnsignedInt16}: mtl.PixelFormatRGBA16Uint,
	{Order: cl.ChannelRGBA, Type: cl.ChannelHalfFloat}:     mtl.PixelFormatRGBA16Float,
	{Order: cl.ChannelRGBA, Type: cl.ChannelSignedInt32}:   mtl.PixelFormatRGBA32Sint,
	{Order: cl.ChannelRGBA, Type: cl.ChannelUnsignedInt32}: mtl.PixelFormatRGBA32Uint,
	{Order: cl.ChannelRGBA, Type: cl.ChannelFloat}:         mtl.PixelFormatRGBA32Float,

	{Order: cl.ChannelBGRA, Type: cl.ChannelUnormInt8}: mtl.PixelFormatBGRA8Unorm,
}

func nativePixelFormat(f cl.ImageFormat) (mtl.PixelFormat, bool) {
	pf, ok := formatTable[f]
	return pf, ok
}

func supportedFormats() []cl.ImageFormat {
	out := make([]cl.ImageFormat, 0, len(formatTable))
	for f := range formatTable {
		out = append(out, f)
	}
	return out
}

// channelIndices returns, for each stored channel, the index into the
// canonical (r, g, b, a) color vector.
func channelIndices(order cl.ChannelOrder) []int {
	switch order {
	case cl.ChannelR, cl.ChannelIntensity, cl.ChannelLuminance:
		return []int{0}
	case cl.ChannelA:
		return []int{3}
	case cl.ChannelRG:
		return []int{0, 1}
	case cl.ChannelRA:
		return []int{0, 3}
	case cl.ChannelRGBA:
		return []int{0, 1, 2, 3}
	case cl.ChannelBGRA:
		return []int{2, 1, 0, 3}
	case cl.ChannelARGB:
		return []int{3, 0, 1, 2}
	}
	return nil
}

func clampf(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// packChannel encodes one color component into dst per the channel type.
func packChannel(dst []byte, t cl.ChannelType, v float32) {
	switch t {
	case cl.ChannelUnormInt8:
		dst[0] = byte(math.RoundToEven(clampf(float64(v), 0, 1) * 255))
	case cl.ChannelSnormInt8:
		dst[0] = byte(int8(math.RoundToEven(clampf(float64(v), -1, 1) * 127)))
	case cl.ChannelSignedInt8:
		dst[0] = byte(int8(clampf(float64(v), math.MinInt8, math.MaxInt8)))
	case cl.ChannelUnsignedInt8:
		dst[0] = byte(clampf(float64(v), 0, math.MaxUint8))
	case cl.ChannelUnormInt16:
		binary.LittleEndian.PutUint16(dst, uint16(math.RoundToEven(clampf(float64(v), 0, 1)*65535)))
	case cl.ChannelSnormInt16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(math.RoundToEven(clampf(float64(v), -1, 1)*32767))))
	case cl.ChannelSignedInt16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(clampf(float64(v), math.MinInt16, math.MaxInt16))))
	case cl.ChannelUnsignedInt16:
		binary.LittleEndian.PutUint16(dst, uint16(clampf(float64(v), 0, math.MaxUint16)))
	case cl.ChannelHalfFloat:
		binary.LittleEndian.PutUint16(dst, float16.Fromfloat32(v).Bits())
	case cl.ChannelSignedInt32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(clampf(float64(v), math.MinInt32, math.MaxInt32))))
	case cl.ChannelUnsignedInt32:
		binary.LittleEndian.PutUint32(dst, uint32(clampf(float64(v), 0, math.MaxUint32)))
	case cl.ChannelFloat:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
	}
}

// PackColor encodes an (r, g, b, a) fill color into one image element of the
// given format.
func PackColor(format cl.ImageFormat, color [4]float32) ([]byte, error) {
	indices := channelIndices(format.Order)
	width := format.Type.Bytes()
	if indices == nil || width == 0 {
		return nil, cl.ErrInvalidImageFormatDescriptor
	}
	elem := make([]byte, len(indices)*width)
	for i, ch := range indices {
		packChannel(elem[i*width:], format.Type, color[ch])
	}
	return elem, nil
}
