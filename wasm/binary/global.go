package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm"
)

// decodeGlobal returns the wasm.Global decoded with the WebAssembly 1.0
// (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-global
func decodeGlobal(r *bytes.Reader, enabledFeatures wasm.Features, canonical bool) (wasm.Global, error) {
	var ret wasm.Global
	gt, err := decodeGlobalType(r, enabledFeatures)
	if err != nil {
		return ret, err
	}

	init, err := decodeConstantExpression(r, enabledFeatures, canonical)
	if err != nil {
		return ret, err
	}

	ret.Type, ret.Init = gt, init
	return ret, nil
}

// decodeGlobalType returns the wasm.GlobalType decoded with the WebAssembly
// 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-globaltype
func decodeGlobalType(r *bytes.Reader, enabledFeatures wasm.Features) (wasm.GlobalType, error) {
	var ret wasm.GlobalType
	vt, err := decodeValueType(r, enabledFeatures)
	if err != nil {
		return ret, fmt.Errorf("read value type: %w", err)
	}

	ret.ValType = vt

	b, err := r.ReadByte()
	if err != nil {
		return ret, fmt.Errorf("read mutability: %w", err)
	}

	switch mut := b; mut {
	case 0x00: // not mutable
	case 0x01: // mutable
		ret.Mutable = true
	default:
		return ret, fmt.Errorf("%w for mutability: %#x != 0x00 or 0x01", ErrInvalidByte, mut)
	}
	return ret, nil
}

// encodeGlobal returns the wasm.Global encoded in the WebAssembly 1.0
// (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-global
func encodeGlobal(g *wasm.Global) (ret []byte) {
	var mutable byte
	if g.Type.Mutable {
		mutable = 1
	}
	ret = append(ret, g.Type.ValType, mutable)
	ret = append(ret, encodeConstantExpression(&g.Init)...)
	return
}
