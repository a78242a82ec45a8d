package binary

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// readUint32 reads one unsigned 32-bit varint, minimal-form only when
// canonical is set.
func readUint32(r io.Reader, canonical bool) (uint32, uint64, error) {
	if canonical {
		return leb128.DecodeCanonicalUint32(r)
	}
	return leb128.DecodeUint32(r)
}

// readInt32 is readUint32 for signed 32-bit immediates.
func readInt32(r io.Reader, canonical bool) (int32, uint64, error) {
	if canonical {
		return leb128.DecodeCanonicalInt32(r)
	}
	return leb128.DecodeInt32(r)
}

// readInt64 is readUint32 for signed 64-bit immediates.
func readInt64(r io.Reader, canonical bool) (int64, uint64, error) {
	if canonical {
		return leb128.DecodeCanonicalInt64(r)
	}
	return leb128.DecodeInt64(r)
}

// loadUint32 is the slice form of readUint32, used by the parser.
func loadUint32(buf []byte, canonical bool) (uint32, uint64, error) {
	if canonical {
		return leb128.LoadCanonicalUint32(buf)
	}
	return leb128.LoadUint32(buf)
}

func decodeValueTypes(r *bytes.Reader, num uint32, enabledFeatures wasm.Features) ([]wasm.ValueType, error) {
	if num == 0 {
		return nil, nil
	}
	if uint64(num) > uint64(r.Len()) {
		return nil, io.EOF
	}
	ret := make([]wasm.ValueType, num)
	if _, err := io.ReadFull(r, ret); err != nil {
		return nil, err
	}
	for _, v := range ret {
		if err := validateValueType(v, enabledFeatures); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeValueType(r *bytes.Reader, enabledFeatures wasm.Features) (wasm.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	v := wasm.ValueType(b)
	if err = validateValueType(v, enabledFeatures); err != nil {
		return 0, err
	}
	return v, nil
}

func validateValueType(v wasm.ValueType, enabledFeatures wasm.Features) error {
	switch v {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
	case wasm.ValueTypeV128:
		if err := enabledFeatures.RequireEnabled(wasm.FeatureSIMD); err != nil {
			return fmt.Errorf("%s value type invalid as %w", wasm.ValueTypeName(v), err)
		}
	case wasm.ValueTypeFuncref, wasm.ValueTypeExternref:
		if err := enabledFeatures.RequireEnabled(wasm.FeatureReferenceTypes); err != nil {
			return fmt.Errorf("%s value type invalid as %w", wasm.ValueTypeName(v), err)
		}
	default:
		return fmt.Errorf("invalid value type: %d", v)
	}
	return nil
}

// decodeUTF8 decodes a size prefixed string from the reader, returning it and
// the count of bytes read.
// contextFormat and context are used to format an error on failure.
func decodeUTF8(r *bytes.Reader, canonical bool, contextFormat string, context ...interface{}) (string, uint32, error) {
	size, sizeOfSize, err := readUint32(r, canonical)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read %s size: %w", fmt.Sprintf(contextFormat, context...), err)
	}

	if uint64(size) > uint64(r.Len()) {
		return "", 0, fmt.Errorf("failed to read %s: %w", fmt.Sprintf(contextFormat, context...), io.EOF)
	}
	buf := make([]byte, size)
	if _, err = io.ReadFull(r, buf); err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", fmt.Sprintf(contextFormat, context...), err)
	}

	if !utf8.Valid(buf) {
		return "", 0, fmt.Errorf("%s is not valid UTF-8", fmt.Sprintf(contextFormat, context...))
	}

	return string(buf), size + uint32(sizeOfSize), nil
}

var noValType = []byte{0}

// encodedValTypes is a cache of size prefixed binary encoding of known val types.
var encodedValTypes = map[wasm.ValueType][]byte{
	wasm.ValueTypeI32:       {1, wasm.ValueTypeI32},
	wasm.ValueTypeI64:       {1, wasm.ValueTypeI64},
	wasm.ValueTypeF32:       {1, wasm.ValueTypeF32},
	wasm.ValueTypeF64:       {1, wasm.ValueTypeF64},
	wasm.ValueTypeV128:      {1, wasm.ValueTypeV128},
	wasm.ValueTypeExternref: {1, wasm.ValueTypeExternref},
	wasm.ValueTypeFuncref:   {1, wasm.ValueTypeFuncref},
}

// encodeValTypes fast paths binary encoding of common value type lengths.
func encodeValTypes(vt []wasm.ValueType) []byte {
	// Special case nullary and parameter lengths of 1 and 2 as these are likely.
	switch len(vt) {
	case 0: // nullary
		return noValType
	case 1: // ex i32
		if encoded, ok := encodedValTypes[vt[0]]; ok {
			return encoded
		}
	case 2: // ex i32i32
		if vt[0] == wasm.ValueTypeI32 && vt[1] == wasm.ValueTypeI32 {
			return []byte{2, wasm.ValueTypeI32, wasm.ValueTypeI32}
		}
	}
	// Slow path others until someone complains with a valid use case.
	count := leb128.EncodeUint32(uint32(len(vt)))
	return append(count, vt...)
}
