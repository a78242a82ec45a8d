package wasm

import (
	"math"

	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// Table describes the limits of elements and its type in a table.
type Table struct {
	Min  uint32
	Max  *uint32
	Type RefType
}

// ElementMode represents a mode of element segment which is either active, passive or declarative.
//
// https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/syntax/modules.html#element-segments
type ElementMode = byte

const (
	// ElementModeActive is the mode which requires the runtime to initialize table with the contents in .Init field combined with OffsetExpr.
	ElementModeActive ElementMode = iota
	// ElementModePassive is the mode which doesn't require the runtime to initialize table, and only used with OpcodeTableInitName.
	ElementModePassive
	// ElementModeDeclarative is introduced in reference-types proposal which can be used to declare function indexes used by OpcodeRefFunc.
	ElementModeDeclarative
)

// ElementSegment are initialization instructions for a table.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#syntax-elem
type ElementSegment struct {
	// OffsetExpr returns the table element offset to apply to Init indices.
	// Note: This can be validated prior to instantiation unless it includes OpcodeGlobalGet (an imported global).
	// Note: This is only set when Mode is active.
	OffsetExpr ConstantExpression

	// TableIndex is the table's index to which this element segment is applied.
	// Note: This is used if and only if the Mode is active.
	TableIndex Index

	// Followings are set/used regardless of the Mode.

	// Init indices are (nullable) table elements where each index is the function index by which the module initialize the table.
	Init []Index

	// Type holds the type of this element segment, which is the RefType in WebAssembly 2.0.
	Type RefType

	// Mode is the mode of this element segment.
	Mode ElementMode
}

const (
	// ElementInitNullReference represents the null reference in ElementSegment's Init.
	// In the binary format, an init item is either a function index or the null
	// reference, and the null case is represented as this sentinel value. A real
	// function index never collides with it as indexes are capped by
	// MaximumFunctionIndex.
	ElementInitNullReference Index = 1 << 31
	// elementInitImportedGlobalReferenceType marks an init item whose value is
	// deferred to an imported global, with the global index in the low bits.
	// A real global index never collides with the flag as indexes are capped by
	// MaximumGlobals.
	elementInitImportedGlobalReferenceType Index = 1 << 30
)

// WrapGlobalIndexAsElementInit wraps the given global index so that it can be
// stored in ElementSegment.Init.
func WrapGlobalIndexAsElementInit(idx Index) Index {
	return idx | elementInitImportedGlobalReferenceType
}

// UnwrapElementInitGlobalIndex strips the global flag from an init item. ok is
// true if the item was a wrapped global index.
func UnwrapElementInitGlobalIndex(init Index) (_ Index, ok bool) {
	if init&elementInitImportedGlobalReferenceType != 0 {
		return init &^ elementInitImportedGlobalReferenceType, true
	}
	return init, false
}

// IsActive returns true if the element segment is "active" mode which requires the runtime to initialize table
// with the contents in .Init field combined with OffsetExpr.
func (e *ElementSegment) IsActive() bool {
	return e.Mode == ElementModeActive
}

// validateTable ensures any ElementSegment is valid. Table limits and the
// feature gates on table types are enforced by decoders, so not re-checked
// here.
func (m *Module) validateTable(_ Features, tables []Table, maximumTableIndex uint32) error {
	if len(tables) > int(maximumTableIndex) {
		return NewError(m.SectionOffsets[SectionIDTable], ErrorKindCountMismatch,
			"too many tables in a module: %d given with limit %d", len(tables), maximumTableIndex)
	}

	importedTableCount := m.ImportTableCount

	// Create bounds checks as these can err prior to instantiation
	funcCount := m.ImportFunctionCount + m.SectionElementCount(SectionIDFunction)
	globalsCount := m.ImportGlobalCount + m.SectionElementCount(SectionIDGlobal)

	offset := m.SectionOffsets[SectionIDElement]

	// Now, we have to figure out which table elements can be resolved before instantiation and also fail early if there
	// are any imported globals that are known to be invalid by their declarations.
	for i := range m.ElementSection {
		elem := &m.ElementSection[i]
		idx := Index(i)
		initCount := uint32(len(elem.Init))

		// Any offset applied is to the element, not the function index: validate here if the funcidx is sound.
		for ei, init := range elem.Init {
			if init == ElementInitNullReference {
				continue
			}
			index, ok := UnwrapElementInitGlobalIndex(init)
			if ok {
				if index >= globalsCount {
					return NewError(offset, ErrorKindUnknownIndex,
						"%s[%d].init[%d] global index %d out of range", SectionIDName(SectionIDElement), idx, ei, index)
				}
			} else {
				if elem.Type == RefTypeExternref {
					return NewError(offset, ErrorKindTypeMismatch,
						"%s[%d].init[%d] must be ref.null but was %d", SectionIDName(SectionIDElement), idx, ei, init)
				}
				if index >= funcCount {
					return NewError(offset, ErrorKindUnknownIndex,
						"%s[%d].init[%d] funcidx %d out of range", SectionIDName(SectionIDElement), idx, ei, index)
				}
			}
		}

		if elem.IsActive() {
			if len(tables) <= int(elem.TableIndex) {
				return NewError(offset, ErrorKindUnknownIndex,
					"unknown table %d as active element target", elem.TableIndex)
			}

			t := tables[elem.TableIndex]
			if t.Type != elem.Type {
				return NewError(offset, ErrorKindTypeMismatch,
					"element type mismatch: table has %s but element has %s",
					RefTypeName(t.Type), RefTypeName(elem.Type))
			}

			// global.get needs to be discovered during initialization
			oc := elem.OffsetExpr.Opcode
			if oc == OpcodeGlobalGet {
				globalIdx, _, err := leb128.LoadUint32(elem.OffsetExpr.Data)
				if err != nil {
					return NewError(offset, kindOfReadError(err),
						"%s[%d] couldn't read global.get parameter: %w", SectionIDName(SectionIDElement), idx, err)
				} else if err = m.verifyImportGlobalI32(SectionIDElement, idx, globalIdx); err != nil {
					return err
				}
			} else if oc == OpcodeI32Const {
				// Treat constants as signed as their interpretation is not yet known.
				o, _, err := leb128.LoadInt32(elem.OffsetExpr.Data)
				if err != nil {
					return NewError(offset, kindOfReadError(err),
						"%s[%d] couldn't read i32.const parameter: %w", SectionIDName(SectionIDElement), idx, err)
				}

				// Per https://github.com/WebAssembly/spec/blob/wg-1.0/test/core/elem.wast#L117 we must pass if imported
				// table has set its min=0. Per https://github.com/WebAssembly/spec/blob/wg-1.0/test/core/elem.wast#L142, we
				// have to do fail if module-defined min=0.
				if elem.TableIndex >= importedTableCount {
					if err := checkSegmentBounds(offset, t.Min, uint64(initCount)+uint64(Index(o)), idx); err != nil {
						return err
					}
				}
			} else {
				return NewError(offset, ErrorKindInvalidEncoding,
					"%s[%d] has an invalid const expression: %s", SectionIDName(SectionIDElement), idx, InstructionName(oc))
			}
		}
	}
	return nil
}

// checkSegmentBounds fails if the capacity needed for an ElementSegment.Init is larger than the table's min.
// requireMin is uint64 in case the segment offset was set to -1.
//
// WebAssembly 1.0 (20191205) doesn't forbid growing to accommodate element segments, and spectests are inconsistent.
// For example, the spectests enforce elements within Table Min, but ignore Import.DescTable min. What this
// means is we have to delay offset checks on imported tables until we link to them.
// Ex. https://github.com/WebAssembly/spec/blob/wg-1.0/test/core/elem.wast#L117 wants pass on min=0 for import
// Ex. https://github.com/WebAssembly/spec/blob/wg-1.0/test/core/elem.wast#L142 wants fail on min=0 module-defined
func checkSegmentBounds(offset uint64, min uint32, requireMin uint64, idx Index) error {
	if requireMin > uint64(min) {
		return NewError(offset, ErrorKindUnknownIndex,
			"%s[%d].init exceeds min table size", SectionIDName(SectionIDElement), idx)
	}
	return nil
}

// verifyImportGlobalI32 checks idx resolves to an imported global of type i32.
// Segment offsets can only reference imported globals, so the scan is over the
// import section alone.
func (m *Module) verifyImportGlobalI32(sectionID SectionID, sectionIdx Index, idx uint32) error {
	ig := uint32(math.MaxUint32) // +1 == 0
	for i := range m.ImportSection {
		im := &m.ImportSection[i]
		if im.Type == ExternTypeGlobal {
			ig++
			if ig == idx {
				if im.DescGlobal.ValType != ValueTypeI32 {
					return NewError(m.SectionOffsets[sectionID], ErrorKindTypeMismatch,
						"%s[%d] (global.get %d): import[%d].global.ValType != i32", SectionIDName(sectionID), sectionIdx, idx, i)
				}
				return nil
			}
		}
	}
	return NewError(m.SectionOffsets[sectionID], ErrorKindUnknownIndex,
		"%s[%d] (global.get %d): out of range of imported globals", SectionIDName(sectionID), sectionIdx, idx)
}
