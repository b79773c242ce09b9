package spirv

import (
	"sort"

	"github.com/pkg/errors"
)

// Binding describes one kernel argument: where it sits in the source
// signature, how it is bound, and how it is sized.
type Binding struct {
	// Kernel is the kernel the argument belongs to.
	Kernel string
	// Ordinal is the argument's position in the source signature.
	Ordinal uint32
	// Kind classifies the binding.
	Kind ArgKind
	// Index is the native binding slot.
	Index uint32
	// Size is the byte size for POD arguments, or the element size for
	// Local arguments.
	Size uint32
	// Offset is the byte offset within the packed POD struct.
	Offset uint32
	// Spec is the specialization-constant id sizing a Local argument.
	Spec uint32
}

// Reflection is the decoded argument-info of a module: the binding vectors
// grouped by kernel, sorted by ordinal, plus the compile-time required
// workgroup size for kernels that declare one.
type Reflection struct {
	Arguments             map[string][]Binding
	RequiredWorkGroupSize map[string][3]uint32
}

// Reflect scans the module for the reflection decorations and groups them
// into per-kernel binding tables. It fails if the decorations are missing
// operands, reference unknown ids, or declare the same (kernel, ordinal)
// twice.
func Reflect(words []uint32) (*Reflection, error) {
	m, err := Parse(words)
	if err != nil {
		return nil, err
	}

	strs := map[uint32]string{}
	consts := map[uint32]uint32{}
	intTypes := map[uint32]bool{}
	reflSets := map[uint32]bool{}
	for _, inst := range m.Instructions {
		switch inst.Opcode {
		case OpString:
			if len(inst.Operands) < 2 {
				return nil, errors.Errorf("OpString with %d operands", len(inst.Operands))
			}
			strs[inst.Operands[0]] = DecodeString(inst.Operands[1:])
		case OpTypeInt:
			if len(inst.Operands) >= 2 && inst.Operands[1] <= 32 {
				intTypes[inst.Operands[0]] = true
			}
		case OpConstant:
			if len(inst.Operands) >= 3 && intTypes[inst.Operands[0]] {
				consts[inst.Operands[1]] = inst.Operands[2]
			}
		case OpExtInstImport:
			if len(inst.Operands) < 2 {
				return nil, errors.Errorf("OpExtInstImport with %d operands", len(inst.Operands))
			}
			name := DecodeString(inst.Operands[1:])
			if len(name) >= len(ReflectionSetPrefix) && name[:len(ReflectionSetPrefix)] == ReflectionSetPrefix {
				reflSets[inst.Operands[0]] = true
			}
		}
	}
	if len(reflSets) == 0 {
		return nil, errors.New("no reflection instruction set imported")
	}

	constant := func(id uint32) (uint32, error) {
		v, ok := consts[id]
		if !ok {
			return 0, errors.Errorf("operand %d is not an integer constant", id)
		}
		return v, nil
	}

	r := &Reflection{
		Arguments:             map[string][]Binding{},
		RequiredWorkGroupSize: map[string][3]uint32{},
	}
	kernels := map[uint32]string{} // Kernel decoration result id -> name
	seen := map[string]map[uint32]bool{}

	addBinding := func(ops []uint32, kind ArgKind, want int, fill func(b *Binding, vals []uint32)) error {
		if len(ops) < want {
			return errors.Errorf("%s decoration with %d operands, want %d", kind, len(ops), want)
		}
		name, ok := kernels[ops[0]]
		if !ok {
			return errors.Errorf("%s decoration references unknown kernel id %d", kind, ops[0])
		}
		vals := make([]uint32, want-1)
		for i := range vals {
			v, err := constant(ops[i+1])
			if err != nil {
				return err
			}
			vals[i] = v
		}
		b := Binding{Kernel: name, Ordinal: vals[0], Kind: kind}
		fill(&b, vals[1:])
		if seen[name] == nil {
			seen[name] = map[uint32]bool{}
		}
		if seen[name][b.Ordinal] {
			return errors.Errorf("kernel %q declares argument %d twice", name, b.Ordinal)
		}
		seen[name][b.Ordinal] = true
		r.Arguments[name] = append(r.Arguments[name], b)
		return nil
	}

	for _, inst := range m.Instructions {
		if inst.Opcode != OpExtInst || len(inst.Operands) < 4 || !reflSets[inst.Operands[2]] {
			continue
		}
		resultID := inst.Operands[1]
		num := inst.Operands[3]
		ops := inst.Operands[4:]
		var err error
		switch num {
		case reflKernel:
			if len(ops) < 2 {
				return nil, errors.Errorf("Kernel decoration with %d operands", len(ops))
			}
			name, ok := strs[ops[1]]
			if !ok {
				return nil, errors.Errorf("Kernel decoration references unknown string id %d", ops[1])
			}
			kernels[resultID] = name
			if r.Arguments[name] == nil {
				r.Arguments[name] = []Binding{}
			}
		case reflArgumentInfo:
			// Argument-name metadata; nothing the driver needs.
		case reflArgumentStorageBuffer:
			err = addBinding(ops, ArgKindBuffer, 4, func(b *Binding, v []uint32) { b.Index = v[1] })
		case reflArgumentUniform:
			err = addBinding(ops, ArgKindBufferUBO, 4, func(b *Binding, v []uint32) { b.Index = v[1] })
		case reflArgumentPodStorageBuffer:
			err = addBinding(ops, ArgKindPod, 6, func(b *Binding, v []uint32) {
				b.Index, b.Offset, b.Size = v[1], v[2], v[3]
			})
		case reflArgumentPodUniform:
			err = addBinding(ops, ArgKindPodUBO, 6, func(b *Binding, v []uint32) {
				b.Index, b.Offset, b.Size = v[1], v[2], v[3]
			})
		case reflArgumentPodPushConstant:
			err = addBinding(ops, ArgKindPodPushConstant, 4, func(b *Binding, v []uint32) {
				b.Offset, b.Size = v[0], v[1]
			})
		case reflArgumentSampledImage:
			err = addBinding(ops, ArgKindSampledImage, 4, func(b *Binding, v []uint32) { b.Index = v[1] })
		case reflArgumentStorageImage:
			err = addBinding(ops, ArgKindStorageImage, 4, func(b *Binding, v []uint32) { b.Index = v[1] })
		case reflArgumentSampler:
			err = addBinding(ops, ArgKindSampler, 4, func(b *Binding, v []uint32) { b.Index = v[1] })
		case reflArgumentWorkgroup:
			err = addBinding(ops, ArgKindLocal, 4, func(b *Binding, v []uint32) {
				b.Spec, b.Size = v[0], v[1]
			})
		case reflPropertyRequiredWorkgroupSize:
			if len(ops) < 4 {
				return nil, errors.Errorf("RequiredWorkgroupSize decoration with %d operands", len(ops))
			}
			name, ok := kernels[ops[0]]
			if !ok {
				return nil, errors.Errorf("RequiredWorkgroupSize references unknown kernel id %d", ops[0])
			}
			var dims [3]uint32
			for i := range dims {
				if dims[i], err = constant(ops[i+1]); err != nil {
					return nil, err
				}
			}
			r.RequiredWorkGroupSize[name] = dims
		}
		if err != nil {
			return nil, err
		}
	}
	if len(r.Arguments) == 0 {
		return nil, errors.New("no kernel decorations found")
	}
	for name := range r.Arguments {
		args := r.Arguments[name]
		sort.Slice(args, func(i, j int) bool { return args[i].Ordinal < args[j].Ordinal })
	}
	return r, nil
}
