package spirv

import "sort"

// Assembler emits a minimal module that carries reflection decorations for a
// set of kernels. The offline compiler uses it for round-trip checks and the
// tests use it as the output of a synthetic toolchain; it does not produce
// executable shader code.
type Assembler struct {
	next    uint32
	voidID  uint32
	intID   uint32
	setID   uint32
	strings map[string]uint32
	consts  map[uint32]uint32
	kernels map[string]uint32

	strInsts   []Instruction
	constInsts []Instruction
	reflInsts  []Instruction
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	a := &Assembler{
		next:    1,
		strings: map[string]uint32{},
		consts:  map[uint32]uint32{},
		kernels: map[string]uint32{},
	}
	a.setID = a.id()
	a.voidID = a.id()
	a.intID = a.id()
	return a
}

func (a *Assembler) id() uint32 {
	id := a.next
	a.next++
	return id
}

func (a *Assembler) str(s string) uint32 {
	if id, ok := a.strings[s]; ok {
		return id
	}
	id := a.id()
	a.strings[s] = id
	a.strInsts = append(a.strInsts, Instruction{
		Opcode:   OpString,
		Operands: append([]uint32{id}, encodeString(s)...),
	})
	return id
}

func (a *Assembler) uconst(v uint32) uint32 {
	if id, ok := a.consts[v]; ok {
		return id
	}
	id := a.id()
	a.consts[v] = id
	a.constInsts = append(a.constInsts, Instruction{
		Opcode:   OpConstant,
		Operands: []uint32{a.intID, id, v},
	})
	return id
}

func (a *Assembler) refl(num uint32, args ...uint32) uint32 {
	id := a.id()
	a.reflInsts = append(a.reflInsts, Instruction{
		Opcode:   OpExtInst,
		Operands: append([]uint32{a.voidID, id, a.setID, num}, args...),
	})
	return id
}

// Kernel declares a kernel by name. Declaring the same name twice is a no-op.
func (a *Assembler) Kernel(name string) {
	a.kernelDecl(name)
}

func (a *Assembler) kernelDecl(name string) uint32 {
	if id, ok := a.kernels[name]; ok {
		return id
	}
	fn := a.id() // stands in for the entry point's function id
	id := a.refl(reflKernel, fn, a.str(name))
	a.kernels[name] = id
	return id
}

// StorageBufferArg declares a global-memory buffer argument.
func (a *Assembler) StorageBufferArg(kernel string, ordinal, descSet, binding uint32) {
	a.refl(reflArgumentStorageBuffer, a.kernelDecl(kernel), a.uconst(ordinal), a.uconst(descSet), a.uconst(binding))
}

// UniformBufferArg declares a constant-memory buffer argument.
func (a *Assembler) UniformBufferArg(kernel string, ordinal, descSet, binding uint32) {
	a.refl(reflArgumentUniform, a.kernelDecl(kernel), a.uconst(ordinal), a.uconst(descSet), a.uconst(binding))
}

// PodArg declares a by-value argument packed into a storage buffer.
func (a *Assembler) PodArg(kernel string, ordinal, descSet, binding, offset, size uint32) {
	a.refl(reflArgumentPodStorageBuffer, a.kernelDecl(kernel),
		a.uconst(ordinal), a.uconst(descSet), a.uconst(binding), a.uconst(offset), a.uconst(size))
}

// PodUniformArg declares a by-value argument packed into a uniform buffer.
func (a *Assembler) PodUniformArg(kernel string, ordinal, descSet, binding, offset, size uint32) {
	a.refl(reflArgumentPodUniform, a.kernelDecl(kernel),
		a.uconst(ordinal), a.uconst(descSet), a.uconst(binding), a.uconst(offset), a.uconst(size))
}

// PodPushConstantArg declares a by-value argument passed as a push constant.
func (a *Assembler) PodPushConstantArg(kernel string, ordinal, offset, size uint32) {
	a.refl(reflArgumentPodPushConstant, a.kernelDecl(kernel), a.uconst(ordinal), a.uconst(offset), a.uconst(size))
}

// SampledImageArg declares a read-only image argument.
func (a *Assembler) SampledImageArg(kernel string, ordinal, descSet, binding uint32) {
	a.refl(reflArgumentSampledImage, a.kernelDecl(kernel), a.uconst(ordinal), a.uconst(descSet), a.uconst(binding))
}

// StorageImageArg declares a write-only image argument.
func (a *Assembler) StorageImageArg(kernel string, ordinal, descSet, binding uint32) {
	a.refl(reflArgumentStorageImage, a.kernelDecl(kernel), a.uconst(ordinal), a.uconst(descSet), a.uconst(binding))
}

// SamplerArg declares a sampler argument.
func (a *Assembler) SamplerArg(kernel string, ordinal, descSet, binding uint32) {
	a.refl(reflArgumentSampler, a.kernelDecl(kernel), a.uconst(ordinal), a.uconst(descSet), a.uconst(binding))
}

// WorkgroupArg declares a local-memory argument sized through the given
// specialization constant, with the given element size in bytes.
func (a *Assembler) WorkgroupArg(kernel string, ordinal, specID, elemSize uint32) {
	a.refl(reflArgumentWorkgroup, a.kernelDecl(kernel), a.uconst(ordinal), a.uconst(specID), a.uconst(elemSize))
}

// RequiredWorkGroupSize declares the kernel's compile-time workgroup size.
func (a *Assembler) RequiredWorkGroupSize(kernel string, x, y, z uint32) {
	a.refl(reflPropertyRequiredWorkgroupSize, a.kernelDecl(kernel), a.uconst(x), a.uconst(y), a.uconst(z))
}

// Words assembles the module.
func (a *Assembler) Words() []uint32 {
	words := []uint32{Magic, 0x00010000, 0, a.next, 0}
	emit := func(inst Instruction) {
		words = append(words, uint32(len(inst.Operands)+1)<<16|uint32(inst.Opcode))
		words = append(words, inst.Operands...)
	}
	emit(Instruction{Opcode: OpCapability, Operands: []uint32{1}}) // Shader
	emit(Instruction{Opcode: OpExtInstImport,
		Operands: append([]uint32{a.setID}, encodeString(ReflectionSetPrefix+"5")...)})
	emit(Instruction{Opcode: OpMemoryModel, Operands: []uint32{0, 1}}) // Logical GLSL450

	// Debug-section strings must be stable across assemblies of the same
	// content, so order them by id.
	sort.Slice(a.strInsts, func(i, j int) bool { return a.strInsts[i].Operands[0] < a.strInsts[j].Operands[0] })
	for _, inst := range a.strInsts {
		emit(inst)
	}
	emit(Instruction{Opcode: OpTypeVoid, Operands: []uint32{a.voidID}})
	emit(Instruction{Opcode: OpTypeInt, Operands: []uint32{a.intID, 32, 0}})
	for _, inst := range a.constInsts {
		emit(inst)
	}
	for _, inst := range a.reflInsts {
		emit(inst)
	}
	return words
}
