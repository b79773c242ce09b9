package spirv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assembleOneKernel() []uint32 {
	a := NewAssembler()
	a.StorageBufferArg("vadd", 0, 0, 0)
	a.StorageBufferArg("vadd", 1, 0, 1)
	a.PodArg("vadd", 2, 0, 2, 16, 4)
	return a.Words()
}

func TestReflect_SingleKernel(t *testing.T) {
	refl, err := Reflect(assembleOneKernel())
	require.NoError(t, err)

	require.Contains(t, refl.Arguments, "vadd")
	bindings := refl.Arguments["vadd"]
	require.Len(t, bindings, 3)

	assert.Equal(t, Binding{Kernel: "vadd", Ordinal: 0, Kind: ArgKindBuffer, Index: 0}, bindings[0])
	assert.Equal(t, Binding{Kernel: "vadd", Ordinal: 1, Kind: ArgKindBuffer, Index: 1}, bindings[1])
	assert.Equal(t, Binding{Kernel: "vadd", Ordinal: 2, Kind: ArgKindPod, Index: 2, Offset: 16, Size: 4}, bindings[2])
}

func TestReflect_AllArgumentKinds(t *testing.T) {
	a := NewAssembler()
	a.StorageBufferArg("k", 0, 0, 0)
	a.UniformBufferArg("k", 1, 0, 1)
	a.PodUniformArg("k", 2, 0, 2, 0, 8)
	a.PodPushConstantArg("k", 3, 4, 4)
	a.SampledImageArg("k", 4, 0, 3)
	a.StorageImageArg("k", 5, 0, 4)
	a.SamplerArg("k", 6, 0, 5)
	a.WorkgroupArg("k", 7, 3, 4)

	refl, err := Reflect(a.Words())
	require.NoError(t, err)
	bindings := refl.Arguments["k"]
	require.Len(t, bindings, 8)

	kinds := make([]ArgKind, len(bindings))
	for i, b := range bindings {
		kinds[i] = b.Kind
		assert.Equal(t, uint32(i), b.Ordinal)
	}
	assert.Equal(t, []ArgKind{
		ArgKindBuffer, ArgKindBufferUBO, ArgKindPodUBO, ArgKindPodPushConstant,
		ArgKindSampledImage, ArgKindStorageImage, ArgKindSampler, ArgKindLocal,
	}, kinds)

	local := bindings[7]
	assert.Equal(t, uint32(3), local.Spec)
	assert.Equal(t, uint32(4), local.Size)
}

func TestReflect_SortsByOrdinal(t *testing.T) {
	a := NewAssembler()
	a.StorageBufferArg("k", 2, 0, 2)
	a.StorageBufferArg("k", 0, 0, 0)
	a.StorageBufferArg("k", 1, 0, 1)

	refl, err := Reflect(a.Words())
	require.NoError(t, err)
	for i, b := range refl.Arguments["k"] {
		assert.Equal(t, uint32(i), b.Ordinal)
	}
}

func TestReflect_RequiredWorkGroupSize(t *testing.T) {
	a := NewAssembler()
	a.StorageBufferArg("k", 0, 0, 0)
	a.RequiredWorkGroupSize("k", 8, 4, 2)

	refl, err := Reflect(a.Words())
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{8, 4, 2}, refl.RequiredWorkGroupSize["k"])
}

func TestReflect_KernelWithoutArguments(t *testing.T) {
	a := NewAssembler()
	a.Kernel("noop")

	refl, err := Reflect(a.Words())
	require.NoError(t, err)
	require.Contains(t, refl.Arguments, "noop")
	assert.Empty(t, refl.Arguments["noop"])
}

func TestReflect_DuplicateOrdinalRejected(t *testing.T) {
	a := NewAssembler()
	a.StorageBufferArg("k", 0, 0, 0)
	a.StorageBufferArg("k", 0, 0, 1)

	_, err := Reflect(a.Words())
	assert.ErrorContains(t, err, "twice")
}

func TestReflect_BadMagicRejected(t *testing.T) {
	words := assembleOneKernel()
	words[0] = 0x12345678
	_, err := Reflect(words)
	assert.ErrorContains(t, err, "magic")
}

func TestReflect_TruncatedModuleRejected(t *testing.T) {
	words := assembleOneKernel()
	_, err := Reflect(words[:len(words)-1])
	assert.ErrorContains(t, err, "truncated")
}

func TestReflect_MissingReflectionSetRejected(t *testing.T) {
	words := []uint32{Magic, 0x00010000, 0, 8, 0,
		3<<16 | OpTypeInt, 6, 32} // lone type instruction, no imports
	_, err := Reflect(words)
	assert.ErrorContains(t, err, "reflection")
}

func TestParse_DecodesInstructions(t *testing.T) {
	m, err := Parse(assembleOneKernel())
	require.NoError(t, err)
	require.NotEmpty(t, m.Instructions)
	assert.Equal(t, uint16(OpCapability), m.Instructions[0].Opcode)
}

func TestDecodeString_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "abc", "abcd", "kernel_name_with_length"} {
		assert.Equal(t, s, DecodeString(encodeString(s)))
	}
}
