package softmtl

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/mtl"
)

var (
	kernelRx = regexp.MustCompile(`(?m)kernel\s+void\s+([A-Za-z_][A-Za-z0-9_]*)`)
	defineRx = regexp.MustCompile(`(?m)^#define\s+SPIRV_CROSS_CONSTANT_ID_(\d+)\s+(\d+)`)
)

// Library holds the kernel names and specialization defines scraped from the
// shader source. The function bodies themselves come from the device's
// kernel registry.
type Library struct {
	device  *Device
	names   map[string]bool
	defines map[uint32]uint32
}

var _ mtl.Library = (*Library)(nil)

// NewLibrary implements mtl.Device.
func (d *Device) NewLibrary(source string) (mtl.Library, error) {
	lib := &Library{device: d, names: map[string]bool{}, defines: map[uint32]uint32{}}
	for _, m := range kernelRx.FindAllStringSubmatch(source, -1) {
		lib.names[m[1]] = true
	}
	if len(lib.names) == 0 {
		return nil, errors.New("source declares no kernels")
	}
	for _, m := range defineRx.FindAllStringSubmatch(source, -1) {
		id, _ := strconv.ParseUint(m[1], 10, 32)
		value, _ := strconv.ParseUint(m[2], 10, 32)
		lib.defines[uint32(id)] = uint32(value)
	}
	return lib, nil
}

// NewFunction implements mtl.Library.
func (l *Library) NewFunction(name string, constants mtl.FunctionConstants) (mtl.Function, error) {
	if !l.names[name] {
		return nil, errors.Errorf("library has no function %q", name)
	}
	return &Function{library: l, name: name, constants: constants}, nil
}

// Release implements mtl.Library.
func (l *Library) Release() {}

// Function is an entry point plus its function-constant values.
type Function struct {
	library   *Library
	name      string
	constants mtl.FunctionConstants
}

var _ mtl.Function = (*Function)(nil)

// Name implements mtl.Function.
func (f *Function) Name() string { return f.name }

// Release implements mtl.Function.
func (f *Function) Release() {}

// ComputePipelineState binds a registered Go kernel to the function's
// specialization.
type ComputePipelineState struct {
	fn        KernelFunc
	name      string
	constants mtl.FunctionConstants
	defines   map[uint32]uint32
}

var _ mtl.ComputePipelineState = (*ComputePipelineState)(nil)

// NewComputePipelineState implements mtl.Device.
func (d *Device) NewComputePipelineState(fn mtl.Function) (mtl.ComputePipelineState, error) {
	f, ok := fn.(*Function)
	if !ok {
		return nil, errors.Errorf("function is not a %q backend function", BackendName)
	}
	impl, ok := f.library.device.kernel(f.name)
	if !ok {
		return nil, errors.Errorf("no kernel implementation registered for %q", f.name)
	}
	return &ComputePipelineState{
		fn:        impl,
		name:      f.name,
		constants: f.constants,
		defines:   f.library.defines,
	}, nil
}

// MaxTotalThreadsPerThreadgroup implements mtl.ComputePipelineState.
func (p *ComputePipelineState) MaxTotalThreadsPerThreadgroup() int { return 1024 }

// ThreadExecutionWidth implements mtl.ComputePipelineState.
func (p *ComputePipelineState) ThreadExecutionWidth() int { return 32 }

// Release implements mtl.ComputePipelineState.
func (p *ComputePipelineState) Release() {}
