package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
)

func TestFormatTable_KnownMappings(t *testing.T) {
	pf, ok := nativePixelFormat(cl.ImageFormat{Order: cl.ChannelRGBA, Type: cl.ChannelUnormInt8})
	require.True(t, ok)
	assert.Equal(t, mtl.PixelFormatRGBA8Unorm, pf)

	pf, ok = nativePixelFormat(cl.ImageFormat{Order: cl.ChannelBGRA, Type: cl.ChannelUnormInt8})
	require.True(t, ok)
	assert.Equal(t, mtl.PixelFormatBGRA8Unorm, pf)

	_, ok = nativePixelFormat(cl.ImageFormat{Order: cl.ChannelRGB, Type: cl.ChannelUnormInt8})
	assert.False(t, ok)
}

func TestFormatTable_ElemSizesConsistent(t *testing.T) {
	for format := range formatTable {
		assert.Greater(t, format.ElemSize(), 0, "format %+v", format)
	}
}

func TestPackColor_Unorm8(t *testing.T) {
	elem, err := PackColor(cl.ImageFormat{Order: cl.ChannelRGBA, Type: cl.ChannelUnormInt8},
		[4]float32{0, 1, 0.5, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 128, 255}, elem)
}

func TestPackColor_BGRAReordersChannels(t *testing.T) {
	elem, err := PackColor(cl.ImageFormat{Order: cl.ChannelBGRA, Type: cl.ChannelUnormInt8},
		[4]float32{1, 0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255}, elem)
}

func TestPackColor_HalfFloat(t *testing.T) {
	elem, err := PackColor(cl.ImageFormat{Order: cl.ChannelR, Type: cl.ChannelHalfFloat},
		[4]float32{1, 0, 0, 0})
	require.NoError(t, err)
	// 1.0 in binary16.
	assert.Equal(t, []byte{0x00, 0x3C}, elem)
}

func TestPackColor_Float(t *testing.T) {
	elem, err := PackColor(cl.ImageFormat{Order: cl.ChannelRG, Type: cl.ChannelFloat},
		[4]float32{1.5, -2, 0, 0})
	require.NoError(t, err)
	require.Len(t, elem, 8)
	assert.Equal(t, []byte{0x00, 0x00, 0xC0, 0x3F}, elem[:4])
}

func TestPackColor_SignedInt(t *testing.T) {
	elem, err := PackColor(cl.ImageFormat{Order: cl.ChannelR, Type: cl.ChannelSignedInt32},
		[4]float32{-7, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xF9, 0xFF, 0xFF, 0xFF}, elem)
}

func TestPackColor_UnknownOrderRejected(t *testing.T) {
	_, err := PackColor(cl.ImageFormat{Order: cl.ChannelOrder(0xFFFF), Type: cl.ChannelFloat}, [4]float32{})
	assert.Equal(t, int32(cl.ErrInvalidImageFormatDescriptor), cl.Code(err))
}

func TestContext_SupportedImageFormats(t *testing.T) {
	context := testContext(t)

	formats := context.SupportedImageFormats(cl.MemReadWrite, cl.Image2D)
	assert.NotEmpty(t, formats)
	for _, f := range formats {
		assert.True(t, context.SupportsImageFormat(f))
	}
	assert.Empty(t, context.SupportedImageFormats(cl.MemReadWrite, cl.MemObjectBuffer))
	assert.False(t, context.SupportsImageFormat(cl.ImageFormat{Order: cl.ChannelRGB, Type: cl.ChannelFloat}))
}
