// Package spirv reads the portable compute IR the compiler pipeline produces:
// a stream of 32-bit words carrying, among the shader code proper, the
// non-semantic reflection decorations that describe every kernel argument.
//
// The package exposes the word-stream reader, the Reflector that turns the
// decorations into per-kernel binding tables, and a small Assembler used by
// the offline tools and tests to emit decoration-carrying modules.
package spirv

import (
	"github.com/pkg/errors"
)

// Magic is the first word of every module, in native byte order.
const Magic = 0x07230203

// Opcodes the reader cares about. The remaining instructions are carried
// through opaquely.
const (
	OpString        = 7
	OpExtInstImport = 11
	OpExtInst       = 12
	OpCapability    = 17
	OpMemoryModel   = 14
	OpTypeVoid      = 19
	OpTypeInt       = 21
	OpConstant      = 43
)

// ReflectionSetPrefix identifies the non-semantic instruction set that
// carries the argument-info decorations. The trailing version component is
// ignored.
const ReflectionSetPrefix = "NonSemantic.ClspvReflection."

// Reflection instruction numbers within the reflection set.
const (
	reflKernel                        = 1
	reflArgumentInfo                  = 2
	reflArgumentStorageBuffer         = 3
	reflArgumentUniform               = 4
	reflArgumentPodStorageBuffer      = 5
	reflArgumentPodUniform            = 6
	reflArgumentPodPushConstant       = 7
	reflArgumentSampledImage          = 8
	reflArgumentStorageImage          = 9
	reflArgumentSampler               = 10
	reflArgumentWorkgroup             = 11
	reflPropertyRequiredWorkgroupSize = 24
)

// Instruction is a single decoded instruction: the opcode and its operand
// words, excluding the leading count/opcode word.
type Instruction struct {
	Opcode   uint16
	Operands []uint32
}

// Module is a parsed word stream.
type Module struct {
	Version      uint32
	Bound        uint32
	Instructions []Instruction
}

// Parse decodes the module header and instruction stream. It fails on a bad
// magic word, a truncated stream, or a zero-length instruction.
func Parse(words []uint32) (*Module, error) {
	if len(words) < 5 {
		return nil, errors.Errorf("module too short: %d words", len(words))
	}
	if words[0] != Magic {
		return nil, errors.Errorf("bad magic word %#x", words[0])
	}
	m := &Module{Version: words[1], Bound: words[3]}
	for at := 5; at < len(words); {
		count := int(words[at] >> 16)
		if count == 0 {
			return nil, errors.Errorf("zero-length instruction at word %d", at)
		}
		if at+count > len(words) {
			return nil, errors.Errorf("truncated instruction at word %d: needs %d words, %d left",
				at, count, len(words)-at)
		}
		m.Instructions = append(m.Instructions, Instruction{
			Opcode:   uint16(words[at] & 0xFFFF),
			Operands: words[at+1 : at+count],
		})
		at += count
	}
	return m, nil
}

// DecodeString decodes a literal string starting at the given operand,
// NUL-terminated and packed four bytes per word.
func DecodeString(operands []uint32) string {
	var buf []byte
	for _, w := range operands {
		for shift := 0; shift < 32; shift += 8 {
			c := byte(w >> shift)
			if c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
		}
	}
	return string(buf)
}

func encodeString(s string) []uint32 {
	raw := append([]byte(s), 0)
	for len(raw)%4 != 0 {
		raw = append(raw, 0)
	}
	words := make([]uint32, 0, len(raw)/4)
	for i := 0; i < len(raw); i += 4 {
		words = append(words, uint32(raw[i])|uint32(raw[i+1])<<8|uint32(raw[i+2])<<16|uint32(raw[i+3])<<24)
	}
	return words
}
