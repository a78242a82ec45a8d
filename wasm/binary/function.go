package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm"
)

func decodeFunctionType(r *bytes.Reader, enabledFeatures wasm.Features, canonical bool) (wasm.FunctionType, error) {
	var ret wasm.FunctionType
	b, err := r.ReadByte()
	if err != nil {
		return ret, fmt.Errorf("read leading byte: %w", err)
	}

	if b != 0x60 {
		return ret, fmt.Errorf("%w: %#x != 0x60", ErrInvalidByte, b)
	}

	paramCount, _, err := readUint32(r, canonical)
	if err != nil {
		return ret, fmt.Errorf("could not read parameter count: %w", err)
	}

	paramTypes, err := decodeValueTypes(r, paramCount, enabledFeatures)
	if err != nil {
		return ret, fmt.Errorf("could not read parameter types: %w", err)
	}

	resultCount, _, err := readUint32(r, canonical)
	if err != nil {
		return ret, fmt.Errorf("could not read result count: %w", err)
	}

	// Guard >1.0 feature multi-value
	if resultCount > 1 {
		if err = enabledFeatures.RequireEnabled(wasm.FeatureMultiValue); err != nil {
			return ret, fmt.Errorf("multiple result types invalid as %w", err)
		}
	}

	resultTypes, err := decodeValueTypes(r, resultCount, enabledFeatures)
	if err != nil {
		return ret, fmt.Errorf("could not read result types: %w", err)
	}

	ret.Params = paramTypes
	ret.Results = resultTypes

	// cache the key for the function type
	_ = ret.String()

	return ret, nil
}

// encodeFunctionType returns the wasm.FunctionType in the type section format.
//
// Note: Function types are encoded by the byte 0x60 followed by the respective
// vectors of parameter and result types.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-types%E2%91%A4
func encodeFunctionType(t *wasm.FunctionType) []byte {
	data := append([]byte{0x60}, encodeValTypes(t.Params)...)
	return append(data, encodeValTypes(t.Results)...)
}
