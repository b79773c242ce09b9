package spirv

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// WordsFromBytes converts a little-endian byte image of a module into words.
func WordsFromBytes(raw []byte) ([]uint32, error) {
	if len(raw)%4 != 0 {
		return nil, errors.Errorf("binary length %d is not a multiple of 4", len(raw))
	}
	words := make([]uint32, len(raw)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return words, nil
}

// BytesFromWords converts a module to its little-endian byte image.
func BytesFromWords(words []uint32) []byte {
	raw := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(raw[i*4:], w)
	}
	return raw
}
