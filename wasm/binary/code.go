package binary

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// decodeCode parses one code section entry: the locals vector then the body
// expression. data holds the entry contents after its size prefix and base is
// the module offset of data[0], so the returned wasm.Code positions its body
// absolutely. The final byte must be OpcodeEnd: everything downstream walks
// the body relying on that terminator.
func decodeCode(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (wasm.Code, error) {
	var zero wasm.Code
	r := bytes.NewReader(data)

	// parse locals
	ls, _, err := readUint32(r, canonical)
	if err != nil {
		return zero, fmt.Errorf("get the size of locals: %w", err)
	}
	// Each local block takes at least two bytes.
	if uint64(ls)*2 > uint64(r.Len()) {
		return zero, io.EOF
	}

	var nums []uint64
	var types []wasm.ValueType
	var sum uint64
	var n uint32
	for i := uint32(0); i < ls; i++ {
		n, _, err = readUint32(r, canonical)
		if err != nil {
			return zero, fmt.Errorf("read n of locals: %w", err)
		}
		sum += uint64(n)
		nums = append(nums, uint64(n))

		t, err := decodeValueType(r, enabledFeatures)
		if err != nil {
			return zero, fmt.Errorf("read type of local: %w", err)
		}
		types = append(types, t)
	}

	if sum > math.MaxUint32 {
		return zero, fmt.Errorf("too many locals: %d", sum)
	}

	var localTypes []wasm.ValueType
	for i, num := range nums {
		t := types[i]
		for j := uint64(0); j < num; j++ {
			localTypes = append(localTypes, t)
		}
	}

	bodyStart := int(r.Size()) - r.Len()
	body := data[bodyStart:]
	if endIndex := len(body) - 1; endIndex < 0 || body[endIndex] != wasm.OpcodeEnd {
		return zero, fmt.Errorf("expr not end with OpcodeEnd")
	}

	return wasm.Code{
		LocalTypes:         localTypes,
		Body:               body,
		BodyOffsetInBinary: base + uint64(bodyStart),
	}, nil
}

// encodeCode returns the wasm.Code encoded in the WebAssembly 1.0 (20191205)
// Binary Format: the size prefixed locals vector, compressed into runs of the
// same type, then the body.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-code
func encodeCode(c *wasm.Code) []byte {
	var localBlocks []byte
	var blockCount uint32
	for i := 0; i < len(c.LocalTypes); {
		t := c.LocalTypes[i]
		j := i + 1
		for ; j < len(c.LocalTypes) && c.LocalTypes[j] == t; j++ {
		}
		localBlocks = append(localBlocks, leb128.EncodeUint32(uint32(j-i))...)
		localBlocks = append(localBlocks, t)
		blockCount++
		i = j
	}

	data := leb128.EncodeUint32(blockCount)
	data = append(data, localBlocks...)
	data = append(data, c.Body...)
	return encodeSizePrefixed(data)
}
