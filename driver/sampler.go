package driver

import (
	"github.com/pkg/errors"

	"github.com/daemyung/clmtl/cl"
	"github.com/daemyung/clmtl/mtl"
)

// Sampler is the immutable (normalized-coords, addressing, filter) triple.
type Sampler struct {
	handle
	object

	context    *Context
	normalized bool
	addressing cl.AddressingMode
	filter     cl.FilterMode
	native     mtl.SamplerState
}

func samplerAddressMode(mode cl.AddressingMode) (mtl.SamplerAddressMode, bool) {
	switch mode {
	case cl.AddressNone, cl.AddressClampToEdge:
		return mtl.SamplerAddressClampToEdge, true
	case cl.AddressClamp:
		return mtl.SamplerAddressClampToZero, true
	case cl.AddressRepeat:
		return mtl.SamplerAddressRepeat, true
	case cl.AddressMirroredRepeat:
		return mtl.SamplerAddressMirrorRepeat, true
	}
	return 0, false
}

func samplerFilter(mode cl.FilterMode) (mtl.SamplerFilter, bool) {
	switch mode {
	case cl.FilterNearest:
		return mtl.SamplerFilterNearest, true
	case cl.FilterLinear:
		return mtl.SamplerFilterLinear, true
	}
	return 0, false
}

// NewSampler creates a sampler.
func NewSampler(context *Context, normalized bool, addressing cl.AddressingMode, filter cl.FilterMode) (*Sampler, error) {
	if context == nil {
		return nil, cl.ErrInvalidContext
	}
	address, ok := samplerAddressMode(addressing)
	if !ok {
		return nil, cl.ErrInvalidValue
	}
	filt, ok := samplerFilter(filter)
	if !ok {
		return nil, cl.ErrInvalidValue
	}

	s := &Sampler{
		handle:     newHandle(),
		context:    context,
		normalized: normalized,
		addressing: addressing,
		filter:     filter,
	}
	s.object.init()

	native, err := context.device.Native().NewSamplerState(mtl.SamplerDescriptor{
		NormalizedCoordinates: normalized,
		AddressMode:           address,
		Filter:                filt,
	})
	if err != nil {
		return nil, errors.WithMessage(cl.ErrOutOfResources, err.Error())
	}
	s.native = native

	context.Retain()
	return s, nil
}

// Context returns the owning context.
func (s *Sampler) Context() *Context { return s.context }

// NormalizedCoords reports whether coordinates are normalized.
func (s *Sampler) NormalizedCoords() bool { return s.normalized }

// AddressingMode returns the addressing mode.
func (s *Sampler) AddressingMode() cl.AddressingMode { return s.addressing }

// FilterMode returns the filter mode.
func (s *Sampler) FilterMode() cl.FilterMode { return s.filter }

// Native returns the native sampler state.
func (s *Sampler) Native() mtl.SamplerState { return s.native }

// Release decrements the count and destroys the sampler at zero.
func (s *Sampler) Release() {
	if s.object.release() {
		s.destroy()
	}
}

func (s *Sampler) destroy() {
	s.native.Release()
	s.context.Release()
}
