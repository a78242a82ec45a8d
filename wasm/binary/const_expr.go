package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/ieee754"
)

func decodeConstantExpression(r *bytes.Reader, enabledFeatures wasm.Features, canonical bool) (wasm.ConstantExpression, error) {
	var ret wasm.ConstantExpression
	b, err := r.ReadByte()
	if err != nil {
		return ret, fmt.Errorf("read opcode: %w", err)
	}

	remainingBeforeData := int64(r.Len())
	offsetAtData := r.Size() - remainingBeforeData

	opcode := b
	switch opcode {
	case wasm.OpcodeI32Const:
		// Treat constants as signed as their interpretation is not yet known.
		_, _, err = readInt32(r, canonical)
	case wasm.OpcodeI64Const:
		// Treat constants as signed as their interpretation is not yet known.
		_, _, err = readInt64(r, canonical)
	case wasm.OpcodeF32Const:
		_, err = ieee754.ReadFloat32(r)
	case wasm.OpcodeF64Const:
		_, err = ieee754.ReadFloat64(r)
	case wasm.OpcodeGlobalGet:
		_, _, err = readUint32(r, canonical)
	case wasm.OpcodeRefNull:
		if err = enabledFeatures.RequireEnabled(wasm.FeatureReferenceTypes); err != nil {
			return ret, fmt.Errorf("ref.null invalid as %v", err)
		}
		var reftype byte
		if reftype, err = r.ReadByte(); err != nil {
			return ret, fmt.Errorf("read reference type for ref.null: %w", err)
		} else if reftype != wasm.RefTypeFuncref && reftype != wasm.RefTypeExternref {
			return ret, fmt.Errorf("invalid type for ref.null: 0x%x", reftype)
		}
	case wasm.OpcodeRefFunc:
		if err = enabledFeatures.RequireEnabled(wasm.FeatureReferenceTypes); err != nil {
			return ret, fmt.Errorf("ref.func invalid as %v", err)
		}
		_, _, err = readUint32(r, canonical)
	case wasm.OpcodeVecPrefix:
		if err = enabledFeatures.RequireEnabled(wasm.FeatureSIMD); err != nil {
			return ret, fmt.Errorf("vector instructions are invalid as %v", err)
		}
		if opcode, err = r.ReadByte(); err != nil {
			return ret, fmt.Errorf("read vector instruction opcode suffix: %w", err)
		}
		if opcode != wasm.OpcodeVecV128Const {
			return ret, fmt.Errorf("invalid vector opcode for const expression: %#x", opcode)
		}
		// Data starts after the two opcode bytes for vector instructions.
		remainingBeforeData = int64(r.Len())
		offsetAtData = r.Size() - remainingBeforeData
		if remainingBeforeData < 16 {
			return ret, fmt.Errorf("read vector const instruction immediates: %w", io.EOF)
		}
		if _, err = r.Seek(16, io.SeekCurrent); err != nil {
			return ret, fmt.Errorf("read vector const instruction immediates: %w", err)
		}
	default:
		return ret, fmt.Errorf("%v for const expression opt code: %#x", ErrInvalidByte, b)
	}

	if err != nil {
		return ret, fmt.Errorf("read value: %w", err)
	}

	if b, err = r.ReadByte(); err != nil {
		return ret, fmt.Errorf("look for end opcode: %w", err)
	}

	if b != wasm.OpcodeEnd {
		return ret, fmt.Errorf("constant expression has been not terminated")
	}

	ret.Data = make([]byte, remainingBeforeData-int64(r.Len())-1)
	n, err := r.ReadAt(ret.Data, offsetAtData)
	if err != nil || n != len(ret.Data) {
		return ret, fmt.Errorf("error re-buffering ConstantExpression.Data")
	}
	ret.Opcode = opcode
	return ret, nil
}

// encodeConstantExpression returns the constant expression in its initializer
// form: the opcode, its immediate, then OpcodeEnd.
func encodeConstantExpression(expr *wasm.ConstantExpression) (ret []byte) {
	if expr.Opcode == wasm.OpcodeVecV128Const {
		ret = append(ret, wasm.OpcodeVecPrefix)
	}
	ret = append(ret, expr.Opcode)
	ret = append(ret, expr.Data...)
	ret = append(ret, wasm.OpcodeEnd)
	return
}
