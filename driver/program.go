package driver

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/clc"
	"github.com/daemyung/clmtl/spirv"
)

// Program carries a compute program through its build pipeline: source text
// in, portable IR and native shader source out, plus the reflection the
// kernels are created from.
type Program struct {
	handle
	object

	context *Context

	source  string
	options string

	status       cl.BuildStatus
	log          string
	binary       []uint32
	nativeSource string
	reflection   *spirv.Reflection
}

// NewProgramWithSource creates a program from one or more source fragments,
// concatenated into a single translation unit.
func NewProgramWithSource(context *Context, sources ...string) (*Program, error) {
	if context == nil {
		return nil, cl.ErrInvalidContext
	}
	if len(sources) == 0 {
		return nil, cl.ErrInvalidValue
	}
	p := &Program{
		handle:  newHandle(),
		context: context,
		source:  strings.Join(sources, ""),
		status:  cl.BuildNone,
	}
	p.object.init()
	context.Retain()
	return p, nil
}

// NewProgramWithBinary creates a program from a previously returned portable
// IR binary. The header is validated here; reflection runs at build.
func NewProgramWithBinary(context *Context, binary []uint32) (*Program, error) {
	if context == nil {
		return nil, cl.ErrInvalidContext
	}
	if _, err := spirv.Parse(binary); err != nil {
		return nil, errors.WithMessage(cl.ErrInvalidBinary, err.Error())
	}
	p := &Program{
		handle:  newHandle(),
		context: context,
		status:  cl.BuildNone,
		binary:  append([]uint32(nil), binary...),
	}
	p.object.init()
	context.Retain()
	return p, nil
}

// Build runs the compile pipeline: source to portable IR, IR to native
// shader source, and reflection. Programs created from a binary skip the
// first stage. On failure the build log survives for the info queries.
func (p *Program) Build(options string) error {
	toolchain, err := p.context.device.Toolchain()
	if err != nil {
		p.status = cl.BuildError
		p.log = err.Error()
		return err
	}

	p.status = cl.BuildInProgress
	p.options = options

	if p.binary == nil {
		ir, log, err := toolchain.Compile(p.source, clc.ParseOptions(options))
		p.log = log
		if err != nil {
			p.status = cl.BuildError
			klog.V(1).Infof("program build failed: %v", err)
			return errors.WithMessage(cl.ErrBuildProgramFailure, err.Error())
		}
		p.binary = ir
	}

	p.nativeSource, err = toolchain.Translate(p.binary)
	if err != nil {
		p.status = cl.BuildError
		p.log += err.Error()
		return errors.WithMessage(cl.ErrBuildProgramFailure, err.Error())
	}

	p.reflection, err = spirv.Reflect(p.binary)
	if err != nil {
		p.status = cl.BuildError
		p.log += err.Error()
		return errors.WithMessage(cl.ErrInvalidBinary, err.Error())
	}

	p.status = cl.BuildSuccess
	return nil
}

// Context returns the owning context.
func (p *Program) Context() *Context { return p.context }

// Source returns the accumulated source text.
func (p *Program) Source() string { return p.source }

// Options returns the options of the last build.
func (p *Program) Options() string { return p.options }

// Status returns the build status.
func (p *Program) Status() cl.BuildStatus { return p.status }

// Log returns the build log of the last build.
func (p *Program) Log() string { return p.log }

// Binary returns a copy of the program's portable IR. The caller owns the
// destination; nil before a successful build of a source program.
func (p *Program) Binary() []uint32 {
	return append([]uint32(nil), p.binary...)
}

// NativeSource returns the cross-translated shader source.
func (p *Program) NativeSource() string { return p.nativeSource }

// Reflection returns the argument-info tables, or nil before a successful
// build.
func (p *Program) Reflection() *spirv.Reflection { return p.reflection }

// KernelNames returns the kernel names of a built program, sorted.
func (p *Program) KernelNames() []string {
	if p.reflection == nil {
		return nil
	}
	names := make([]string, 0, len(p.reflection.Arguments))
	for name := range p.reflection.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Release decrements the count and destroys the program at zero.
func (p *Program) Release() {
	if p.object.release() {
		p.destroy()
	}
}

func (p *Program) destroy() {
	p.context.device.LibraryPool().Purge(p)
	p.context.Release()
	p.reflection = nil
	p.binary = nil
}
