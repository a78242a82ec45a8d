package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm"
)

// decodeTable returns the wasm.Table decoded with the WebAssembly 1.0
// (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-table
func decodeTable(r *bytes.Reader, enabledFeatures wasm.Features, canonical bool) (wasm.Table, error) {
	var ret wasm.Table
	b, err := r.ReadByte()
	if err != nil {
		return ret, fmt.Errorf("read leading byte: %w", err)
	}

	switch b {
	case wasm.RefTypeFuncref:
	case wasm.RefTypeExternref:
		if err = enabledFeatures.RequireEnabled(wasm.FeatureReferenceTypes); err != nil {
			return ret, fmt.Errorf("table type externref invalid as %v", err)
		}
	default:
		return ret, fmt.Errorf("invalid table element type: %#x", b)
	}
	ret.Type = b

	flag, min, max, err := decodeLimitsType(r, canonical)
	if err != nil {
		return ret, fmt.Errorf("read limits: %w", err)
	}
	if flag&limitsFlagShared != 0 {
		return ret, fmt.Errorf("tables cannot be marked as shared")
	}
	if min > wasm.MaximumFunctionIndex {
		return ret, fmt.Errorf("table min must be at most %d", wasm.MaximumFunctionIndex)
	}
	if max != nil {
		if *max < min {
			return ret, fmt.Errorf("table size minimum must not be greater than maximum")
		}
	}
	ret.Min, ret.Max = min, max
	return ret, nil
}

// encodeTable returns the wasm.Table encoded in the WebAssembly 1.0
// (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-table
func encodeTable(i *wasm.Table) []byte {
	return append([]byte{i.Type}, encodeLimitsType(i.Min, i.Max, false)...)
}
