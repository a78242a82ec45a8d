package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

func ensureElementKindFuncRef(r *bytes.Reader) error {
	elemKind, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("read element prefix: %w", err)
	}
	if elemKind != 0x0 { // ElemKind is fixed to 0x0 now: https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html#element-section
		return fmt.Errorf("element kind must be zero but was 0x%x", elemKind)
	}
	return nil
}

func decodeElementInitValueVector(r *bytes.Reader, canonical bool) ([]wasm.Index, error) {
	vs, _, err := readUint32(r, canonical)
	if err != nil {
		return nil, fmt.Errorf("get size of vector: %w", err)
	}

	vec := make([]wasm.Index, vs)
	for i := range vec {
		u32, _, err := readUint32(r, canonical)
		if err != nil {
			return nil, fmt.Errorf("read function index: %w", err)
		}

		if u32 >= wasm.MaximumFunctionIndex {
			return nil, fmt.Errorf("too large function index in Element init: %d", u32)
		}
		vec[i] = u32
	}
	return vec, nil
}

func decodeElementConstExprVector(r *bytes.Reader, elemType wasm.RefType, enabledFeatures wasm.Features, canonical bool) ([]wasm.Index, error) {
	vs, _, err := readUint32(r, canonical)
	if err != nil {
		return nil, fmt.Errorf("failed to get the size of constexpr vector: %w", err)
	}
	vec := make([]wasm.Index, vs)
	for i := range vec {
		expr, err := decodeConstantExpression(r, enabledFeatures, canonical)
		if err != nil {
			return nil, err
		}
		switch expr.Opcode {
		case wasm.OpcodeRefFunc:
			if elemType != wasm.RefTypeFuncref {
				return nil, fmt.Errorf("element type mismatch: want %s, but constexpr has funcref", wasm.RefTypeName(elemType))
			}
			v, _, _ := leb128.LoadUint32(expr.Data)
			if v >= wasm.MaximumFunctionIndex {
				return nil, fmt.Errorf("too large function index in Element init: %d", v)
			}
			vec[i] = v
		case wasm.OpcodeRefNull:
			if elemType != expr.Data[0] {
				return nil, fmt.Errorf("element type mismatch: want %s, but constexpr has %s",
					wasm.RefTypeName(elemType), wasm.RefTypeName(expr.Data[0]))
			}
			vec[i] = wasm.ElementInitNullReference
		case wasm.OpcodeGlobalGet:
			globalIdx, _, _ := leb128.LoadUint32(expr.Data)
			vec[i] = wasm.WrapGlobalIndexAsElementInit(globalIdx)
		default:
			return nil, fmt.Errorf("const expr must be either ref.null or ref.func but was %s", wasm.InstructionName(expr.Opcode))
		}
	}
	return vec, nil
}

func decodeElementRefType(r *bytes.Reader) (ret wasm.RefType, err error) {
	ret, err = r.ReadByte()
	if err != nil {
		err = fmt.Errorf("read element ref type: %w", err)
		return
	}
	if ret != wasm.RefTypeFuncref && ret != wasm.RefTypeExternref {
		return 0, fmt.Errorf("ref type must be funcref or externref for element as of WebAssembly 2.0")
	}
	return
}

const (
	// The prefix is a bitfield of three flags.
	elementSegmentPrefixLegacy                    = iota // 0: active funcref segment on table zero.
	elementSegmentPrefixPassive                          // 1: passive segment, element kind and func indexes.
	elementSegmentPrefixActiveTableIndex                 // 2: active segment with an explicit table index.
	elementSegmentPrefixDeclarative                      // 3: declarative segment, element kind and func indexes.
	elementSegmentPrefixLegacyConstExpr                  // 4: active segment on table zero, constexpr vector.
	elementSegmentPrefixPassiveConstExpr                 // 5: passive segment, ref type and constexpr vector.
	elementSegmentPrefixActiveTableIndexConstExpr        // 6: active segment, table index and constexpr vector.
	elementSegmentPrefixDeclarativeConstExpr             // 7: declarative segment, ref type and constexpr vector.
)

func decodeElementSegment(r *bytes.Reader, enabledFeatures wasm.Features, canonical bool) (wasm.ElementSegment, error) {
	var zero wasm.ElementSegment
	prefix, _, err := readUint32(r, canonical)
	if err != nil {
		return zero, fmt.Errorf("read element prefix: %w", err)
	}

	if prefix != 0 {
		if err := enabledFeatures.RequireEnabled(wasm.FeatureBulkMemoryOperations); err != nil {
			return zero, fmt.Errorf("non-zero prefix for element segment is invalid as %w", err)
		}
	}

	// Encoding depends on the prefix and is described at
	// https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html#element-section
	switch prefix {
	case elementSegmentPrefixLegacy:
		// Legacy prefix which is WebAssembly 1.0 compatible.
		expr, err := decodeConstantExpression(r, enabledFeatures, canonical)
		if err != nil {
			return zero, fmt.Errorf("read expr for offset: %w", err)
		}

		init, err := decodeElementInitValueVector(r, canonical)
		if err != nil {
			return zero, err
		}

		return wasm.ElementSegment{
			OffsetExpr: expr,
			Init:       init,
			Type:       wasm.RefTypeFuncref,
			Mode:       wasm.ElementModeActive,
		}, nil
	case elementSegmentPrefixPassive:
		// Prefix 1 requires funcref.
		if err = ensureElementKindFuncRef(r); err != nil {
			return zero, err
		}

		init, err := decodeElementInitValueVector(r, canonical)
		if err != nil {
			return zero, err
		}
		return wasm.ElementSegment{
			Init: init,
			Type: wasm.RefTypeFuncref,
			Mode: wasm.ElementModePassive,
		}, nil
	case elementSegmentPrefixActiveTableIndex:
		tableIndex, _, err := readUint32(r, canonical)
		if err != nil {
			return zero, fmt.Errorf("read table index: %w", err)
		}

		if tableIndex != 0 {
			if err := enabledFeatures.RequireEnabled(wasm.FeatureReferenceTypes); err != nil {
				return zero, fmt.Errorf("table index must be zero but was %d: %w", tableIndex, err)
			}
		}

		expr, err := decodeConstantExpression(r, enabledFeatures, canonical)
		if err != nil {
			return zero, fmt.Errorf("read expr for offset: %w", err)
		}

		// Prefix 2 requires funcref.
		if err = ensureElementKindFuncRef(r); err != nil {
			return zero, err
		}

		init, err := decodeElementInitValueVector(r, canonical)
		if err != nil {
			return zero, err
		}
		return wasm.ElementSegment{
			OffsetExpr: expr,
			TableIndex: tableIndex,
			Init:       init,
			Type:       wasm.RefTypeFuncref,
			Mode:       wasm.ElementModeActive,
		}, nil
	case elementSegmentPrefixDeclarative:
		// Prefix 3 requires funcref.
		if err = ensureElementKindFuncRef(r); err != nil {
			return zero, err
		}
		init, err := decodeElementInitValueVector(r, canonical)
		if err != nil {
			return zero, err
		}
		return wasm.ElementSegment{
			Init: init,
			Type: wasm.RefTypeFuncref,
			Mode: wasm.ElementModeDeclarative,
		}, nil
	case elementSegmentPrefixLegacyConstExpr:
		expr, err := decodeConstantExpression(r, enabledFeatures, canonical)
		if err != nil {
			return zero, fmt.Errorf("read expr for offset: %w", err)
		}

		init, err := decodeElementConstExprVector(r, wasm.RefTypeFuncref, enabledFeatures, canonical)
		if err != nil {
			return zero, err
		}

		return wasm.ElementSegment{
			OffsetExpr: expr,
			Init:       init,
			Type:       wasm.RefTypeFuncref,
			Mode:       wasm.ElementModeActive,
		}, nil
	case elementSegmentPrefixPassiveConstExpr:
		refType, err := decodeElementRefType(r)
		if err != nil {
			return zero, err
		}
		init, err := decodeElementConstExprVector(r, refType, enabledFeatures, canonical)
		if err != nil {
			return zero, err
		}
		return wasm.ElementSegment{
			Init: init,
			Type: refType,
			Mode: wasm.ElementModePassive,
		}, nil
	case elementSegmentPrefixActiveTableIndexConstExpr:
		tableIndex, _, err := readUint32(r, canonical)
		if err != nil {
			return zero, fmt.Errorf("read table index: %w", err)
		}

		if tableIndex != 0 {
			if err := enabledFeatures.RequireEnabled(wasm.FeatureReferenceTypes); err != nil {
				return zero, fmt.Errorf("table index must be zero but was %d: %w", tableIndex, err)
			}
		}
		expr, err := decodeConstantExpression(r, enabledFeatures, canonical)
		if err != nil {
			return zero, fmt.Errorf("read expr for offset: %w", err)
		}

		refType, err := decodeElementRefType(r)
		if err != nil {
			return zero, err
		}

		init, err := decodeElementConstExprVector(r, refType, enabledFeatures, canonical)
		if err != nil {
			return zero, err
		}

		return wasm.ElementSegment{
			OffsetExpr: expr,
			TableIndex: tableIndex,
			Init:       init,
			Type:       refType,
			Mode:       wasm.ElementModeActive,
		}, nil
	case elementSegmentPrefixDeclarativeConstExpr:
		refType, err := decodeElementRefType(r)
		if err != nil {
			return zero, err
		}
		init, err := decodeElementConstExprVector(r, refType, enabledFeatures, canonical)
		if err != nil {
			return zero, err
		}
		return wasm.ElementSegment{
			Init: init,
			Type: refType,
			Mode: wasm.ElementModeDeclarative,
		}, nil
	default:
		return zero, fmt.Errorf("invalid element segment prefix: 0x%x", prefix)
	}
}

// encodeElement returns the wasm.ElementSegment encoded in the WebAssembly
// 2.0 Binary Format, choosing the lowest prefix the segment's content allows.
//
// https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html#element-section
func encodeElement(e *wasm.ElementSegment) (ret []byte) {
	needConstExpr := e.Type != wasm.RefTypeFuncref
	for _, init := range e.Init {
		if init == wasm.ElementInitNullReference {
			needConstExpr = true
			break
		}
		if _, ok := wasm.UnwrapElementInitGlobalIndex(init); ok {
			needConstExpr = true
			break
		}
	}

	var prefix byte
	switch e.Mode {
	case wasm.ElementModeActive:
		switch {
		case e.TableIndex == 0 && !needConstExpr:
			prefix = elementSegmentPrefixLegacy
		case e.TableIndex == 0:
			prefix = elementSegmentPrefixLegacyConstExpr
		case !needConstExpr:
			prefix = elementSegmentPrefixActiveTableIndex
		default:
			prefix = elementSegmentPrefixActiveTableIndexConstExpr
		}
	case wasm.ElementModePassive:
		if needConstExpr {
			prefix = elementSegmentPrefixPassiveConstExpr
		} else {
			prefix = elementSegmentPrefixPassive
		}
	case wasm.ElementModeDeclarative:
		if needConstExpr {
			prefix = elementSegmentPrefixDeclarativeConstExpr
		} else {
			prefix = elementSegmentPrefixDeclarative
		}
	}

	ret = append(ret, prefix)
	switch prefix {
	case elementSegmentPrefixLegacy:
		ret = append(ret, encodeConstantExpression(&e.OffsetExpr)...)
		ret = append(ret, encodeElementInitValueVector(e.Init)...)
	case elementSegmentPrefixPassive, elementSegmentPrefixDeclarative:
		ret = append(ret, 0x00) // element kind: funcref
		ret = append(ret, encodeElementInitValueVector(e.Init)...)
	case elementSegmentPrefixActiveTableIndex:
		ret = append(ret, leb128.EncodeUint32(e.TableIndex)...)
		ret = append(ret, encodeConstantExpression(&e.OffsetExpr)...)
		ret = append(ret, 0x00) // element kind: funcref
		ret = append(ret, encodeElementInitValueVector(e.Init)...)
	case elementSegmentPrefixLegacyConstExpr:
		ret = append(ret, encodeConstantExpression(&e.OffsetExpr)...)
		ret = append(ret, encodeElementConstExprVector(e)...)
	case elementSegmentPrefixPassiveConstExpr, elementSegmentPrefixDeclarativeConstExpr:
		ret = append(ret, e.Type)
		ret = append(ret, encodeElementConstExprVector(e)...)
	case elementSegmentPrefixActiveTableIndexConstExpr:
		ret = append(ret, leb128.EncodeUint32(e.TableIndex)...)
		ret = append(ret, encodeConstantExpression(&e.OffsetExpr)...)
		ret = append(ret, e.Type)
		ret = append(ret, encodeElementConstExprVector(e)...)
	}
	return
}

func encodeElementInitValueVector(init []wasm.Index) (ret []byte) {
	ret = append(ret, leb128.EncodeUint32(uint32(len(init)))...)
	for _, idx := range init {
		ret = append(ret, leb128.EncodeUint32(idx)...)
	}
	return
}

func encodeElementConstExprVector(e *wasm.ElementSegment) (ret []byte) {
	ret = append(ret, leb128.EncodeUint32(uint32(len(e.Init)))...)
	for _, init := range e.Init {
		if init == wasm.ElementInitNullReference {
			ret = append(ret, wasm.OpcodeRefNull, e.Type, wasm.OpcodeEnd)
		} else if global, ok := wasm.UnwrapElementInitGlobalIndex(init); ok {
			ret = append(ret, wasm.OpcodeGlobalGet)
			ret = append(ret, leb128.EncodeUint32(global)...)
			ret = append(ret, wasm.OpcodeEnd)
		} else {
			ret = append(ret, wasm.OpcodeRefFunc)
			ret = append(ret, leb128.EncodeUint32(init)...)
			ret = append(ret, wasm.OpcodeEnd)
		}
	}
	return
}
