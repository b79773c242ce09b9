package driver

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/daemyung/clmtl/clc"
	"github.com/daemyung/clmtl/mtl/softmtl"
	"github.com/daemyung/clmtl/spirv"
)

// testToolchain compiles by recognizing the kernels it knows in the source
// and assembling a reflection-carrying module for them, standing in for the
// external IR compiler.
type testToolchain struct {
	kernels map[string]func(a *spirv.Assembler)
}

var _ clc.Toolchain = (*testToolchain)(nil)

func (tc *testToolchain) Compile(source string, options []string) ([]uint32, string, error) {
	asm := spirv.NewAssembler()
	found := false
	for name, build := range tc.kernels {
		if strings.Contains(source, name) {
			build(asm)
			found = true
		}
	}
	if !found {
		return nil, "error: no kernels recognized\n", errors.New("compilation failed")
	}
	return asm.Words(), "", nil
}

func (tc *testToolchain) Translate(ir []uint32) (string, error) {
	refl, err := spirv.Reflect(ir)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, name := range sortedKeys(refl.Arguments) {
		fmt.Fprintf(&sb, "kernel void %s() {}\n", name)
	}
	return sb.String(), nil
}

func sortedKeys(m map[string][]spirv.Binding) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var registerTestKernels sync.Once

// u32 helpers over the little-endian buffers the software device exposes.
func loadU32(data []byte, i int) uint32     { return binary.LittleEndian.Uint32(data[i*4:]) }
func storeU32(data []byte, i int, v uint32) { binary.LittleEndian.PutUint32(data[i*4:], v) }

func setupTestKernels() {
	registerTestKernels.Do(func() {
		softmtl.RegisterKernel("vadd", func(inv *softmtl.Invocation) {
			i := inv.GlobalID(0)
			a, b, c := inv.Buffer(0), inv.Buffer(1), inv.Buffer(2)
			storeU32(c, i, loadU32(a, i)+loadU32(b, i))
		})
		softmtl.RegisterKernel("scale", func(inv *softmtl.Invocation) {
			i := inv.GlobalID(0)
			factor := loadU32(inv.Bytes(1), 0)
			data := inv.Buffer(0)
			storeU32(data, i, loadU32(data, i)*factor)
		})
		softmtl.RegisterKernel("fixed", func(inv *softmtl.Invocation) {
			data := inv.Buffer(0)
			storeU32(data, inv.GlobalID(0), uint32(inv.GroupSize[0]))
		})
		softmtl.RegisterKernel("reduce", func(inv *softmtl.Invocation) {
			// Exercises the local-memory specialization path; the scratch
			// size arrives as a spec constant, not a binding.
			if i := inv.GlobalID(0); i == 0 {
				n, _ := inv.SpecConstant(3)
				storeU32(inv.Buffer(1), 0, n)
			}
		})
	})
}

// driverKernels is the binding layout of every kernel the tests compile.
var driverKernels = map[string]func(a *spirv.Assembler){
	"vadd": func(a *spirv.Assembler) {
		a.StorageBufferArg("vadd", 0, 0, 0)
		a.StorageBufferArg("vadd", 1, 0, 1)
		a.StorageBufferArg("vadd", 2, 0, 2)
	},
	"scale": func(a *spirv.Assembler) {
		a.StorageBufferArg("scale", 0, 0, 0)
		a.PodArg("scale", 1, 0, 1, 0, 4)
	},
	"reduce": func(a *spirv.Assembler) {
		a.StorageBufferArg("reduce", 0, 0, 0)
		a.StorageBufferArg("reduce", 1, 0, 1)
		a.WorkgroupArg("reduce", 3, 3, 4)
		a.PodArg("reduce", 2, 0, 2, 0, 4)
	},
	"fixed": func(a *spirv.Assembler) {
		a.StorageBufferArg("fixed", 0, 0, 0)
		a.RequiredWorkGroupSize("fixed", 8, 1, 1)
	},
}

func testContext(t *testing.T) *Context {
	t.Helper()
	setupTestKernels()
	device, err := GetDevice()
	require.NoError(t, err)
	device.SetToolchain(&testToolchain{kernels: driverKernels})
	context, err := NewContext(device)
	require.NoError(t, err)
	t.Cleanup(context.Release)
	return context
}

func buildTestProgram(t *testing.T, context *Context, source string) *Program {
	t.Helper()
	program, err := NewProgramWithSource(context, source)
	require.NoError(t, err)
	require.NoError(t, program.Build(""))
	t.Cleanup(program.Release)
	return program
}

func testQueue(t *testing.T, context *Context) *CommandQueue {
	t.Helper()
	queue, err := NewCommandQueue(context, context.Device(), 0)
	require.NoError(t, err)
	t.Cleanup(queue.Release)
	return queue
}
