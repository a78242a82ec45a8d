package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// decodeTag returns the type index of one tag, decoded per the exception
// handling proposal. The leading attribute must be zero: it is reserved for
// kinds of tags other than exceptions.
//
// See https://webassembly.github.io/exception-handling/core/binary/modules.html#binary-tag
func decodeTag(r *bytes.Reader, canonical bool) (typeIndex wasm.Index, err error) {
	attribute, _, err := readUint32(r, canonical)
	if err != nil {
		return 0, fmt.Errorf("read tag attribute: %w", err)
	}
	if attribute != 0 {
		return 0, fmt.Errorf("tag attribute must be zero but was %d", attribute)
	}
	if typeIndex, _, err = readUint32(r, canonical); err != nil {
		return 0, fmt.Errorf("read tag type index: %w", err)
	}
	return typeIndex, nil
}

// encodeTag returns one tag section entry: a zero attribute then the type
// index.
func encodeTag(typeIndex wasm.Index) []byte {
	return append([]byte{0x00}, leb128.EncodeUint32(typeIndex)...)
}
