package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daemyung/clmtl/cl"
)

const vaddSource = `
kernel void vadd(global const int *a, global const int *b, global int *c) {
    int i = get_global_id(0);
    c[i] = a[i] + b[i];
}
`

func TestProgram_BuildFromSource(t *testing.T) {
	context := testContext(t)
	program := buildTestProgram(t, context, vaddSource)

	assert.Equal(t, cl.BuildSuccess, program.Status())
	assert.NotEmpty(t, program.Binary())
	assert.NotEmpty(t, program.NativeSource())

	refl := program.Reflection()
	require.NotNil(t, refl)
	require.Contains(t, refl.Arguments, "vadd")
	assert.Len(t, refl.Arguments["vadd"], 3)
	assert.Equal(t, []string{"vadd"}, program.KernelNames())
}

func TestProgram_ReflectionOrdinalsUnique(t *testing.T) {
	context := testContext(t)
	program := buildTestProgram(t, context, vaddSource+"\nkernel void scale();")

	refl := program.Reflection()
	for kernel, bindings := range refl.Arguments {
		seen := map[uint32]bool{}
		for _, b := range bindings {
			assert.False(t, seen[b.Ordinal], "kernel %s ordinal %d duplicated", kernel, b.Ordinal)
			seen[b.Ordinal] = true
		}
	}
}

func TestProgram_BuildFailureKeepsLog(t *testing.T) {
	context := testContext(t)
	program, err := NewProgramWithSource(context, "kernel void unknown_kernel() {}")
	require.NoError(t, err)
	defer program.Release()

	err = program.Build("")
	require.Error(t, err)
	assert.Equal(t, int32(cl.ErrBuildProgramFailure), cl.Code(err))
	assert.Equal(t, cl.BuildError, program.Status())
	assert.NotEmpty(t, program.Log())
	assert.Nil(t, program.Reflection())
}

func TestProgram_BinaryRoundTrip(t *testing.T) {
	context := testContext(t)
	source := buildTestProgram(t, context, vaddSource)

	rebuilt, err := NewProgramWithBinary(context, source.Binary())
	require.NoError(t, err)
	defer rebuilt.Release()
	require.NoError(t, rebuilt.Build(""))

	assert.Equal(t, source.KernelNames(), rebuilt.KernelNames())
	assert.Equal(t, source.Reflection().Arguments, rebuilt.Reflection().Arguments)
	assert.Equal(t, source.Binary(), rebuilt.Binary())
}

func TestProgram_RejectsMalformedBinary(t *testing.T) {
	context := testContext(t)

	_, err := NewProgramWithBinary(context, []uint32{0xdeadbeef, 0, 0, 0, 0})
	require.Error(t, err)
	assert.Equal(t, int32(cl.ErrInvalidBinary), cl.Code(err))
}

func TestProgram_OptionsRecorded(t *testing.T) {
	context := testContext(t)
	program, err := NewProgramWithSource(context, vaddSource)
	require.NoError(t, err)
	defer program.Release()

	require.NoError(t, program.Build("-DVALUE=2 -cl-fast-relaxed-math"))
	assert.Equal(t, "-DVALUE=2 -cl-fast-relaxed-math", program.Options())
}

func TestProgram_EmptySourceRejected(t *testing.T) {
	context := testContext(t)
	_, err := NewProgramWithSource(context)
	assert.Equal(t, int32(cl.ErrInvalidValue), cl.Code(err))
}
