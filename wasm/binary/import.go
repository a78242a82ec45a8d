package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

func decodeImport(r *bytes.Reader, enabledFeatures wasm.Features, memoryLimitPages uint32, canonical bool) (i wasm.Import, err error) {
	if i.Module, _, err = decodeUTF8(r, canonical, "import module"); err != nil {
		return
	}

	if i.Name, _, err = decodeUTF8(r, canonical, "import name"); err != nil {
		return
	}

	b, err := r.ReadByte()
	if err != nil {
		err = fmt.Errorf("error decoding import kind: %w", err)
		return
	}

	i.Type = b
	switch i.Type {
	case wasm.ExternTypeFunc:
		if i.DescFunc, _, err = readUint32(r, canonical); err != nil {
			err = fmt.Errorf("error decoding import func typeindex: %w", err)
		}
	case wasm.ExternTypeTable:
		if i.DescTable, err = decodeTable(r, enabledFeatures, canonical); err != nil {
			err = fmt.Errorf("error decoding import table desc: %w", err)
		}
	case wasm.ExternTypeMemory:
		if i.DescMem, err = decodeMemory(r, enabledFeatures, memoryLimitPages, canonical); err != nil {
			err = fmt.Errorf("error decoding import mem desc: %w", err)
		}
	case wasm.ExternTypeGlobal:
		if i.DescGlobal, err = decodeGlobalType(r, enabledFeatures); err != nil {
			err = fmt.Errorf("error decoding import global desc: %w", err)
		}
	case wasm.ExternTypeTag:
		if ferr := enabledFeatures.RequireEnabled(wasm.FeatureExceptionHandling); ferr != nil {
			err = fmt.Errorf("tag import invalid as %v", ferr)
			return
		}
		if i.DescTag, err = decodeTag(r, canonical); err != nil {
			err = fmt.Errorf("error decoding import tag desc: %w", err)
		}
	default:
		err = fmt.Errorf("%w: invalid byte for importdesc: %#x", ErrInvalidByte, b)
	}
	return
}

// encodeImport returns the wasm.Import encoded in WebAssembly 1.0 (20191205)
// Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-import
func encodeImport(i *wasm.Import) []byte {
	data := encodeSizePrefixed([]byte(i.Module))
	data = append(data, encodeSizePrefixed([]byte(i.Name))...)
	data = append(data, i.Type)
	switch i.Type {
	case wasm.ExternTypeFunc:
		data = append(data, leb128.EncodeUint32(i.DescFunc)...)
	case wasm.ExternTypeTable:
		data = append(data, encodeTable(&i.DescTable)...)
	case wasm.ExternTypeMemory:
		data = append(data, encodeMemory(i.DescMem)...)
	case wasm.ExternTypeGlobal:
		var mutable byte
		if i.DescGlobal.Mutable {
			mutable = 1
		}
		data = append(data, i.DescGlobal.ValType, mutable)
	case wasm.ExternTypeTag:
		data = append(data, encodeTag(i.DescTag)...)
	default:
		panic(fmt.Errorf("invalid externtype: %s", wasm.ExternTypeName(i.Type)))
	}
	return data
}
