package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

func decodeExport(r *bytes.Reader, enabledFeatures wasm.Features, canonical bool) (i wasm.Export, err error) {
	if i.Name, _, err = decodeUTF8(r, canonical, "export name"); err != nil {
		return
	}

	b, err := r.ReadByte()
	if err != nil {
		err = fmt.Errorf("error decoding export kind: %w", err)
		return
	}

	i.Type = b
	switch i.Type {
	case wasm.ExternTypeFunc, wasm.ExternTypeTable, wasm.ExternTypeMemory, wasm.ExternTypeGlobal:
	case wasm.ExternTypeTag:
		if ferr := enabledFeatures.RequireEnabled(wasm.FeatureExceptionHandling); ferr != nil {
			err = fmt.Errorf("tag export invalid as %v", ferr)
			return
		}
	default:
		err = fmt.Errorf("%w: invalid byte for exportdesc: %#x", ErrInvalidByte, b)
		return
	}

	if i.Index, _, err = readUint32(r, canonical); err != nil {
		err = fmt.Errorf("error decoding export index: %w", err)
	}
	return
}

// encodeExport returns the wasm.Export encoded in WebAssembly 1.0 (20191205)
// Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-export
func encodeExport(i *wasm.Export) []byte {
	data := encodeSizePrefixed([]byte(i.Name))
	data = append(data, i.Type)
	data = append(data, leb128.EncodeUint32(i.Index)...)
	return data
}
