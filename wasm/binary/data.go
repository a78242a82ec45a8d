package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// Data segment prefixes. Two is active like zero, but carries an explicit
// memory index for a multi-memory future; only index zero is accepted.
const (
	dataSegmentPrefixActive              = iota // 0: offset expr then the byte vector.
	dataSegmentPrefixPassive                    // 1: byte vector only.
	dataSegmentPrefixActiveWithMemoryIdx        // 2: memory index, offset expr, byte vector.
)

// dataOffsetFeatures parses an offset expression by shape alone: the
// expression's type is checked during validation, which carries the real
// feature set, so a ref or vector constant here still fails as a non-i32
// offset.
var dataOffsetFeatures = wasm.Features20220419

// decodeDataSegment decodes one data section entry. Segments are structural
// here: whether a passive segment is allowed is the decoder's concern, as it
// knows the enabled features.
//
// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html#data-section
func decodeDataSegment(r *bytes.Reader, canonical bool) (wasm.DataSegment, error) {
	var zero wasm.DataSegment
	prefix, _, err := readUint32(r, canonical)
	if err != nil {
		return zero, fmt.Errorf("read data segment prefix: %w", err)
	}

	var ret wasm.DataSegment
	switch prefix {
	case dataSegmentPrefixActive:
		if ret.OffsetExpression, err = decodeConstantExpression(r, dataOffsetFeatures, canonical); err != nil {
			return zero, fmt.Errorf("read offset expression: %w", err)
		}
	case dataSegmentPrefixPassive:
		ret.Passive = true
	case dataSegmentPrefixActiveWithMemoryIdx:
		d, _, err := readUint32(r, canonical)
		if err != nil {
			return zero, fmt.Errorf("read memory index: %w", err)
		}
		if d != 0 {
			return zero, fmt.Errorf("invalid memory index: %d", d)
		}
		if ret.OffsetExpression, err = decodeConstantExpression(r, dataOffsetFeatures, canonical); err != nil {
			return zero, fmt.Errorf("read offset expression: %w", err)
		}
	default:
		return zero, fmt.Errorf("invalid data segment prefix: 0x%x", prefix)
	}

	vs, _, err := readUint32(r, canonical)
	if err != nil {
		return zero, fmt.Errorf("get the size of vector: %w", err)
	}

	if uint64(vs) > uint64(r.Len()) {
		return zero, fmt.Errorf("read bytes for init: %w", io.EOF)
	}
	ret.Init = make([]byte, vs)
	if _, err := io.ReadFull(r, ret.Init); err != nil {
		return zero, fmt.Errorf("read bytes for init: %w", err)
	}

	return ret, nil
}

// encodeDataSegment returns the wasm.DataSegment encoded in the WebAssembly
// 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#data-section%E2%91%A0
func encodeDataSegment(d *wasm.DataSegment) (ret []byte) {
	if d.IsPassive() {
		ret = append(ret, dataSegmentPrefixPassive)
	} else {
		// Currently multiple memories are not supported.
		ret = append(ret, dataSegmentPrefixActive)
		ret = append(ret, encodeConstantExpression(&d.OffsetExpression)...)
	}
	ret = append(ret, leb128.EncodeUint32(uint32(len(d.Init)))...)
	ret = append(ret, d.Init...)
	return
}
