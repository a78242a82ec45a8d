package wasm

import (
	"io"

	"github.com/wasmcheck/wasmcheck/wasm/ieee754"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// GlobalType represents the type of a global variable, which is its value
// type paired with mutability.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-globaltype
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Global is the binary representation of a global defined in a module.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-global
type Global struct {
	Type GlobalType
	Init ConstantExpression
}

// ConstantExpression is a sequence of a constant-producing instruction and
// its immediate, ending in OpcodeEnd. Data holds the undecoded immediate.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#constant-expressions%E2%91%A0
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

// validateConstExpression checks the expression produces a value of
// expectedType. Only imported globals are in scope, so callers pass the
// imported prefix of the global index space as globals. offset positions any
// error at the section the expression came from.
func validateConstExpression(globals []GlobalType, numFuncs uint32, expr *ConstantExpression,
	expectedType ValueType, offset uint64) (err error) {
	var actualType ValueType
	switch expr.Opcode {
	case OpcodeI32Const:
		// Treat constants as signed as their interpretation is not yet known.
		_, _, err = leb128.LoadInt32(expr.Data)
		if err != nil {
			return NewError(offset, kindOfReadError(err), "read i32: %w", err)
		}
		actualType = ValueTypeI32
	case OpcodeI64Const:
		// Treat constants as signed as their interpretation is not yet known.
		_, _, err = leb128.LoadInt64(expr.Data)
		if err != nil {
			return NewError(offset, kindOfReadError(err), "read i64: %w", err)
		}
		actualType = ValueTypeI64
	case OpcodeF32Const:
		_, err = ieee754.DecodeFloat32(expr.Data)
		if err != nil {
			return NewError(offset, ErrorKindUnexpectedEOF, "read f32: %w", err)
		}
		actualType = ValueTypeF32
	case OpcodeF64Const:
		_, err = ieee754.DecodeFloat64(expr.Data)
		if err != nil {
			return NewError(offset, ErrorKindUnexpectedEOF, "read f64: %w", err)
		}
		actualType = ValueTypeF64
	case OpcodeGlobalGet:
		id, _, err := leb128.LoadUint32(expr.Data)
		if err != nil {
			return NewError(offset, kindOfReadError(err), "read index of global: %w", err)
		}
		if uint32(len(globals)) <= id {
			return NewError(offset, ErrorKindUnknownIndex, "global index out of range")
		}
		actualType = globals[id].ValType
	case OpcodeRefNull:
		if len(expr.Data) == 0 {
			return NewError(offset, ErrorKindUnexpectedEOF, "read reference type for ref.null: %w", io.ErrShortBuffer)
		}
		reftype := expr.Data[0]
		if reftype != RefTypeFuncref && reftype != RefTypeExternref {
			return NewError(offset, ErrorKindInvalidEncoding, "invalid type for ref.null: 0x%x", reftype)
		}
		actualType = reftype
	case OpcodeRefFunc:
		index, _, err := leb128.LoadUint32(expr.Data)
		if err != nil {
			return NewError(offset, kindOfReadError(err), "read i32: %w", err)
		} else if index >= numFuncs {
			return NewError(offset, ErrorKindUnknownIndex,
				"ref.func index out of range [%d] with length %d", index, numFuncs-1)
		}
		actualType = ValueTypeFuncref
	case OpcodeVecV128Const:
		if len(expr.Data) != 16 {
			return NewError(offset, ErrorKindUnexpectedEOF,
				"%s needs 16 bytes but was %d bytes", OpcodeVecV128ConstName, len(expr.Data))
		}
		actualType = ValueTypeV128
	default:
		return NewError(offset, ErrorKindInvalidEncoding, "invalid opcode for const expression: 0x%x", expr.Opcode)
	}

	if actualType != expectedType {
		return NewError(offset, ErrorKindTypeMismatch, "const expression type mismatch expected %s but got %s",
			ValueTypeName(expectedType), ValueTypeName(actualType))
	}
	return nil
}
