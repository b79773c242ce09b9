package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
	"github.com/daemyung/clmtl/spirv"
)

// Arg is one argument slot of a kernel. POD arguments carry their bytes;
// buffer, image and sampler arguments carry the bound object; local
// arguments leave the slot empty and contribute a specialization define
// instead.
type Arg struct {
	Kind  spirv.ArgKind
	Index uint32

	Set     bool
	Data    []byte
	Size    int
	Buffer  *Buffer
	Image   *Image
	Sampler *Sampler
}

// Kernel is a compute entry point plus its argument state and the cache of
// pipeline states specialized per workgroup shape and local-memory sizing.
type Kernel struct {
	handle
	object

	program  *Program
	name     string
	bindings []spirv.Binding

	mu        sync.Mutex
	args      map[uint32]*Arg
	defines   map[uint32]string
	pipelines map[uint64]map[string]mtl.ComputePipelineState
}

// warmHash keys the pre-warmed (1, 1, 1) pipeline state; the preferred and
// maximum workgroup queries read it.
const warmHash = 0

// NewKernel creates a kernel by name against the program's reflection and
// pre-warms the pipeline-state cache so the workgroup queries have a stable
// answer.
func NewKernel(program *Program, name string) (*Kernel, error) {
	if program == nil {
		return nil, cl.ErrInvalidProgram
	}
	refl := program.Reflection()
	if refl == nil {
		return nil, cl.ErrInvalidProgramExecutable
	}
	bindings, ok := refl.Arguments[name]
	if !ok {
		return nil, cl.ErrInvalidKernelName
	}

	k := &Kernel{
		handle:    newHandle(),
		program:   program,
		name:      name,
		bindings:  append([]spirv.Binding(nil), bindings...),
		args:      map[uint32]*Arg{},
		defines:   map[uint32]string{},
		pipelines: map[uint64]map[string]mtl.ComputePipelineState{},
	}
	k.object.init()
	sort.Slice(k.bindings, func(i, j int) bool { return k.bindings[i].Ordinal < k.bindings[j].Ordinal })
	for i := range k.bindings {
		b := &k.bindings[i]
		k.args[b.Ordinal] = &Arg{Kind: b.Kind, Index: b.Index}
	}

	if _, err := k.addPipelineState(warmHash, cl.Size{W: 1, H: 1, D: 1}); err != nil {
		return nil, errors.WithMessage(cl.ErrInvalidProgramExecutable, err.Error())
	}

	program.Retain()
	return k, nil
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// Program returns the owning program.
func (k *Kernel) Program() *Program { return k.program }

// Context returns the owning context.
func (k *Kernel) Context() *Context { return k.program.Context() }

// NumArgs returns the argument count of the source signature.
func (k *Kernel) NumArgs() int { return len(k.bindings) }

// Bindings returns the reflection bindings, sorted by ordinal.
func (k *Kernel) Bindings() []spirv.Binding { return k.bindings }

// SetArg sets the argument at the given ordinal. POD arguments take a byte
// slice of the argument's size; buffer, image and sampler arguments take
// the object; local arguments take a nil value and the requested byte size,
// which is recorded as a specialization define in units of the element size
// the kernel declared.
func (k *Kernel) SetArg(ordinal uint32, value any, size int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	arg, ok := k.args[ordinal]
	if !ok {
		return cl.ErrInvalidArgIndex
	}
	binding := k.bindings[sort.Search(len(k.bindings), func(i int) bool {
		return k.bindings[i].Ordinal >= ordinal
	})]

	if arg.Kind == spirv.ArgKindLocal {
		if value != nil {
			return cl.ErrInvalidArgValue
		}
		if size == 0 || binding.Size == 0 {
			return cl.ErrInvalidArgSize
		}
		k.defines[ordinal] = fmt.Sprintf("#define SPIRV_CROSS_CONSTANT_ID_%d %d\n",
			binding.Spec, size/int(binding.Size))
		arg.Set = true
		return nil
	}

	switch v := value.(type) {
	case []byte:
		if !arg.Kind.IsPod() {
			return cl.ErrInvalidArgValue
		}
		if len(v) < size {
			return cl.ErrInvalidArgSize
		}
		arg.Data = append(arg.Data[:0], v[:size]...)
		arg.Size = size
	case *Buffer:
		if arg.Kind != spirv.ArgKindBuffer && arg.Kind != spirv.ArgKindBufferUBO {
			return cl.ErrInvalidArgValue
		}
		arg.Buffer = v
	case *Image:
		if arg.Kind != spirv.ArgKindSampledImage && arg.Kind != spirv.ArgKindStorageImage {
			return cl.ErrInvalidArgValue
		}
		arg.Image = v
	case *Sampler:
		if arg.Kind != spirv.ArgKindSampler {
			return cl.ErrInvalidArgValue
		}
		arg.Sampler = v
	default:
		return cl.ErrInvalidArgValue
	}
	arg.Set = true
	return nil
}

// Args returns a snapshot of the argument slots keyed by ordinal.
func (k *Kernel) Args() map[uint32]Arg {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[uint32]Arg, len(k.args))
	for ordinal, arg := range k.args {
		snap := *arg
		snap.Data = append([]byte(nil), arg.Data...)
		out[ordinal] = snap
	}
	return out
}

// defineText concatenates the active specialization defines in ordinal
// order; it is the second-level cache key.
func (k *Kernel) defineText() string {
	ordinals := make([]uint32, 0, len(k.defines))
	for ordinal := range k.defines {
		ordinals = append(ordinals, ordinal)
	}
	sort.Slice(ordinals, func(i, j int) bool { return ordinals[i] < ordinals[j] })
	var sb strings.Builder
	for _, ordinal := range ordinals {
		sb.WriteString(k.defines[ordinal])
	}
	return sb.String()
}

// GetPipelineState returns the pipeline state specialized for the workgroup
// shape and the current defines, compiling it on first use.
func (k *Kernel) GetPipelineState(workGroupSize cl.Size) (mtl.ComputePipelineState, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	hash := workGroupSize.Hash()
	defines := k.defineText()
	if ps, ok := k.pipelines[hash][defines]; ok {
		return ps, nil
	}
	return k.addPipelineState(hash, workGroupSize)
}

// addPipelineState compiles the pipeline for the workgroup shape and caches
// it under (hash, defines). Callers hold k.mu except during construction.
func (k *Kernel) addPipelineState(hash uint64, workGroupSize cl.Size) (mtl.ComputePipelineState, error) {
	device := k.program.Context().Device()
	defines := k.defineText()

	lib, err := device.LibraryPool().At(k.program, defines)
	if err != nil {
		return nil, err
	}
	fn, err := lib.NewFunction(k.name, mtl.FunctionConstants{
		0: workGroupSize.W,
		1: workGroupSize.H,
		2: workGroupSize.D,
	})
	if err != nil {
		return nil, errors.WithMessage(cl.ErrBuildProgramFailure, err.Error())
	}
	defer fn.Release()

	ps, err := device.Native().NewComputePipelineState(fn)
	if err != nil {
		return nil, errors.WithMessage(cl.ErrBuildProgramFailure, err.Error())
	}
	if k.pipelines[hash] == nil {
		k.pipelines[hash] = map[string]mtl.ComputePipelineState{}
	}
	k.pipelines[hash][defines] = ps
	return ps, nil
}

// PipelineStateCount reports the number of cached pipeline states.
func (k *Kernel) PipelineStateCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, states := range k.pipelines {
		n += len(states)
	}
	return n
}

// HasPipelineState reports whether a pipeline is cached for the workgroup
// shape and the current defines.
func (k *Kernel) HasPipelineState(workGroupSize cl.Size) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.pipelines[workGroupSize.Hash()][k.defineText()]
	return ok
}

func (k *Kernel) warm() mtl.ComputePipelineState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pipelines[warmHash][""]
}

// WorkGroupSize returns the maximum total threads per threadgroup of the
// pre-warmed pipeline state.
func (k *Kernel) WorkGroupSize() int {
	return k.warm().MaxTotalThreadsPerThreadgroup()
}

// PreferredWorkGroupSizeMultiple returns the execution width of the
// pre-warmed pipeline state.
func (k *Kernel) PreferredWorkGroupSizeMultiple() int {
	return k.warm().ThreadExecutionWidth()
}

// RequiredWorkGroupSize returns the compile-time workgroup size, or the
// zero Size if the kernel does not declare one.
func (k *Kernel) RequiredWorkGroupSize() cl.Size {
	refl := k.program.Reflection()
	if dims, ok := refl.RequiredWorkGroupSize[k.name]; ok {
		return cl.Size{W: dims[0], H: dims[1], D: dims[2]}
	}
	return cl.Size{}
}

// Release decrements the count and destroys the kernel at zero.
func (k *Kernel) Release() {
	if k.object.release() {
		k.destroy()
	}
}

func (k *Kernel) destroy() {
	for _, states := range k.pipelines {
		for _, ps := range states {
			ps.Release()
		}
	}
	k.pipelines = nil
	k.program.Release()
}
