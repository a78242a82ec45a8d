package wasm

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/willf/bitset"

	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// Module is a WebAssembly binary representation.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#modules%E2%91%A8
//
// Differences from the specification:
// * NameSection is decoded from the SectionIDCustom "name" key; other custom
// sections are retained verbatim in CustomSections.
// * Exports are additionally held as a map for lookup convenience.
type Module struct {
	// TypeSection contains the unique FunctionType of functions imported or defined in this module.
	//
	// Note: Currently, there is no type ambiguity in the index as WebAssembly 1.0 only defines function type.
	// In the future, other types may be introduced to support features such as module linking.
	//
	// Note: In the Binary Format, this is SectionIDType.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#types%E2%91%A0%E2%91%A0
	TypeSection []FunctionType

	// ImportSection contains imported functions, tables, memories, globals or tags.
	//
	// Note: there are no unique constraints relating to the two-level namespace of Import.Module and Import.Name.
	//
	// Note: In the Binary Format, this is SectionIDImport.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#import-section%E2%91%A0
	ImportSection []Import
	// ImportFunctionCount ImportGlobalCount ImportMemoryCount, ImportTableCount and ImportTagCount are
	// the cached import count per ExternType set during decoding.
	ImportFunctionCount,
	ImportGlobalCount,
	ImportMemoryCount,
	ImportTableCount,
	ImportTagCount Index

	// FunctionSection contains the index in TypeSection of each function defined in this module.
	//
	// Note: The function Index space begins with imported functions and ends with those defined in this module.
	// For example, if there are two imported functions and one defined in this module, the function Index 3 is defined
	// in this module at FunctionSection[0].
	//
	// Note: FunctionSection is index correlated with the CodeSection. If given the same position, e.g. 2, a function
	// type is at TypeSection[FunctionSection[2]], while its locals and body are at CodeSection[2].
	//
	// Note: In the Binary Format, this is SectionIDFunction.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-section%E2%91%A0
	FunctionSection []Index

	// TableSection contains each table defined in this module.
	//
	// Note: The table Index space begins with imported tables and ends with those defined in this module.
	// For example, if there are two imported tables and one defined in this module, the table Index 3 is defined in
	// this module at TableSection[0].
	//
	// Note: Version 1.0 (20191205) of the WebAssembly spec allows at most one table definition per module, so the
	// length of the TableSection can be zero or one, and can only be one if there is no imported table. The limit
	// is lifted when FeatureReferenceTypes is enabled.
	//
	// Note: In the Binary Format, this is SectionIDTable.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#table-section%E2%91%A0
	TableSection []Table

	// MemorySection contains each memory defined in this module.
	//
	// Note: The memory Index space begins with imported memories and ends with those defined in this module.
	//
	// Note: The WebAssembly spec allows at most one memory definition per module, so the
	// MemorySection is non-nil only if there is no imported memory.
	//
	// Note: In the Binary Format, this is SectionIDMemory.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#memory-section%E2%91%A0
	MemorySection *Memory

	// GlobalSection contains each global defined in this module.
	//
	// Global indexes are offset by any imported globals because the global index begins with imports, followed by
	// ones defined in this module. For example, if there are two imported globals and three defined in this module, the
	// global at index 3 is defined in this module at GlobalSection[0].
	//
	// Note: In the Binary Format, this is SectionIDGlobal.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#global-section%E2%91%A0
	GlobalSection []Global

	// ExportSection contains each export defined in this module.
	//
	// Note: In the Binary Format, this is SectionIDExport.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#exports%E2%91%A0
	ExportSection []Export
	// Exports maps a name to Export for fast lookup. Each item of this map
	// points to an element of ExportSection. Export names are unique, which
	// the decoder enforces.
	Exports map[string]*Export

	// StartSection is the index of a function to call on instantiation.
	//
	// Note: The index here is not the position in the FunctionSection, rather in the function index space, which
	// begins with imported functions.
	//
	// Note: In the Binary Format, this is SectionIDStart.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#start-section%E2%91%A0
	StartSection *Index

	// Note: In the Binary Format, this is SectionIDElement.
	ElementSection []ElementSegment

	// CodeSection is index-correlated with FunctionSection and contains each
	// function's locals and body.
	//
	// Note: In the Binary Format, this is SectionIDCode.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#code-section%E2%91%A0
	CodeSection []Code

	// Note: In the Binary Format, this is SectionIDData.
	DataSection []DataSegment

	// TagSection contains the type index of each exception tag defined in
	// this module. The tag Index space begins with imported tags.
	//
	// Note: In the Binary Format, this is SectionIDTag, present only with
	// FeatureExceptionHandling.
	//
	// See https://github.com/WebAssembly/exception-handling/blob/main/proposals/exception-handling/Exceptions.md
	TagSection []Index

	// NameSection is set when the SectionIDCustom "name" was successfully decoded from the binary format.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#name-section%E2%91%A0
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#custom-section%E2%91%A0
	NameSection *NameSection

	// CustomSections are set when SectionIDCustom sections other than "name" were decoded
	// and their retention was requested.
	//
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#custom-section%E2%91%A0
	CustomSections []*CustomSection

	// DataCountSection holds the number of data segments in the data section.
	//
	// Note: This may exist in WebAssembly 2.0 or WebAssembly 1.0 with FeatureBulkMemoryOperations.
	// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html#data-count-section
	// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/appendix/changes.html#bulk-memory-and-table-instructions
	DataCountSection *uint32

	// SectionOffsets records, per non-custom SectionID, the offset in the
	// module binary of that section's contents. The decoder fills this so
	// validation errors can carry a byte position. Zero means the section
	// was absent, as no section contents can begin at the magic number.
	SectionOffsets [SectionIDTag + 1]uint64

	// functionDefinitionSectionInitOnce guards FunctionDefinitionSection so that it is initialized exactly once.
	functionDefinitionSectionInitOnce sync.Once

	// FunctionDefinitionSection is built on demand from the name, export and
	// type sections. See Module.FunctionDefinitions.
	FunctionDefinitionSection []FunctionDefinition
}

// Validation limits, chosen so that index arithmetic cannot overflow 32 bits
// even after scaling indexes to byte offsets.
const (
	MaximumFunctionTypes = uint32(1 << 27)
	MaximumGlobals       = uint32(1 << 27)
	MaximumFunctionIndex = uint32(1 << 27)
	MaximumTableIndex    = uint32(1 << 27)
)

// typeOfFunction returns the wasm.FunctionType for the given function space index or nil.
func (m *Module) typeOfFunction(funcIdx Index) *FunctionType {
	typeSectionLength, importedFunctionCount := uint32(len(m.TypeSection)), m.ImportFunctionCount
	if funcIdx < importedFunctionCount {
		// Imports are not exclusively functions. This is the current function index in the loop.
		cur := Index(0)
		for i := range m.ImportSection {
			imp := &m.ImportSection[i]
			if imp.Type != ExternTypeFunc {
				continue
			}
			if funcIdx == cur {
				if imp.DescFunc >= typeSectionLength {
					return nil
				}
				return &m.TypeSection[imp.DescFunc]
			}
			cur++
		}
	}

	funcSectionIdx := funcIdx - m.ImportFunctionCount
	if funcSectionIdx >= uint32(len(m.FunctionSection)) {
		return nil
	}
	typeIdx := m.FunctionSection[funcSectionIdx]
	if typeIdx >= typeSectionLength {
		return nil
	}
	return &m.TypeSection[typeIdx]
}

// Validate checks the module against the WebAssembly validation algorithm
// restricted to the enabled features, stopping at the first defect. The
// returned error carries the kind and byte offset of the defect, retrievable
// with KindOf and OffsetOf.
func (m *Module) Validate(enabledFeatures Features) error {
	return m.validate(enabledFeatures, 1, false)
}

// ValidateAll is Validate, except defects in function bodies do not stop
// validation of the remaining functions. When more than one function is
// invalid, the returned error is an ErrorList ordered by function index.
// Defects outside function bodies still stop validation, as the later checks
// depend on the structures they reject.
func (m *Module) ValidateAll(enabledFeatures Features) error {
	return m.validate(enabledFeatures, 1, true)
}

// ValidateParallel is Validate with function bodies checked by up to
// parallelism goroutines. The result is deterministic: the error returned,
// or the order of a collected ErrorList, matches sequential validation.
func (m *Module) ValidateParallel(enabledFeatures Features, parallelism int, collectAll bool) error {
	return m.validate(enabledFeatures, parallelism, collectAll)
}

func (m *Module) validate(enabledFeatures Features, parallelism int, collectAll bool) error {
	// The signature key is built lazily and cached. Prime every cache here so
	// concurrent function validation only reads it.
	for i := range m.TypeSection {
		tp := &m.TypeSection[i]
		tp.key()
	}
	if uint32(len(m.TypeSection)) > MaximumFunctionTypes {
		return NewError(m.SectionOffsets[SectionIDType], ErrorKindCountMismatch, "too many function types in a module")
	}

	if err := m.validateStartSection(); err != nil {
		return err
	}

	functions, globals, memory, tables, err := m.AllDeclarations()
	if err != nil {
		return err
	}

	if err = m.validateImports(enabledFeatures); err != nil {
		return err
	}

	if err = m.validateGlobals(globals, uint32(len(functions)), MaximumGlobals); err != nil {
		return err
	}

	if err = m.validateMemory(memory, globals); err != nil {
		return err
	}

	if err = m.validateExports(enabledFeatures, functions, globals, memory, tables); err != nil {
		return err
	}

	tags, err := m.validateTags(enabledFeatures)
	if err != nil {
		return err
	}

	if err = m.validateFunctions(enabledFeatures, functions, globals, memory, tables, tags, MaximumFunctionIndex, parallelism, collectAll); err != nil {
		return err
	}

	if err = m.validateTable(enabledFeatures, tables, MaximumTableIndex); err != nil {
		return err
	}

	if err = m.validateDataCountSection(); err != nil {
		return err
	}
	return nil
}

func (m *Module) validateStartSection() error {
	if m.StartSection != nil {
		startIndex := *m.StartSection
		ft := m.typeOfFunction(startIndex)
		if ft == nil {
			return NewError(m.SectionOffsets[SectionIDStart], ErrorKindUnknownIndex,
				"invalid start function: func[%d] has an invalid type", startIndex)
		}
		if len(ft.Params) > 0 || len(ft.Results) > 0 {
			return NewError(m.SectionOffsets[SectionIDStart], ErrorKindTypeMismatch,
				"invalid start function: func[%d] must have an empty (nullary) signature: %s", startIndex, ft)
		}
	}
	return nil
}

func (m *Module) validateGlobals(globals []GlobalType, numFuncts, maxGlobals uint32) error {
	if uint32(len(globals)) > maxGlobals {
		return NewError(m.SectionOffsets[SectionIDGlobal], ErrorKindCountMismatch, "too many globals in a module")
	}

	// Global initialization constant expression can only reference the imported globals.
	// See the note on https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#constant-expressions%E2%91%A0
	importedGlobals := globals[:m.ImportGlobalCount]
	for i := range m.GlobalSection {
		g := &m.GlobalSection[i]
		if err := validateConstExpression(importedGlobals, numFuncts, &g.Init, g.Type.ValType,
			m.SectionOffsets[SectionIDGlobal]); err != nil {
			return err
		}
	}
	return nil
}

// validateTags checks the tag index space and resolves it to function types
// for use by the function body validator. Imported tags were already checked
// by validateImports, which runs first.
func (m *Module) validateTags(enabledFeatures Features) (tags []*FunctionType, err error) {
	total := m.ImportTagCount + uint32(len(m.TagSection))
	if total == 0 {
		return nil, nil
	}
	if err = enabledFeatures.RequireEnabled(FeatureExceptionHandling); err != nil {
		return nil, NewError(m.SectionOffsets[SectionIDTag], ErrorKindInvalidEncoding, "tag section: %w", err)
	}

	tags = make([]*FunctionType, 0, total)
	for i := range m.ImportSection {
		imp := &m.ImportSection[i]
		if imp.Type == ExternTypeTag {
			tags = append(tags, &m.TypeSection[imp.DescTag])
		}
	}
	for i, typeIndex := range m.TagSection {
		if typeIndex >= uint32(len(m.TypeSection)) {
			return nil, NewError(m.SectionOffsets[SectionIDTag], ErrorKindUnknownIndex,
				"invalid tag[%d]: type section index %d out of range", i, typeIndex)
		}
		ft := &m.TypeSection[typeIndex]
		if len(ft.Results) != 0 {
			return nil, NewError(m.SectionOffsets[SectionIDTag], ErrorKindTypeMismatch,
				"invalid tag[%d]: signature must have an empty result: %s", i, ft)
		}
		tags = append(tags, ft)
	}
	return tags, nil
}

func (m *Module) validateFunctions(enabledFeatures Features, functions []Index, globals []GlobalType,
	memory *Memory, tables []Table, tags []*FunctionType, maximumFunctionIndex uint32,
	parallelism int, collectAll bool) error {
	if uint32(len(functions)) > maximumFunctionIndex {
		return NewError(m.SectionOffsets[SectionIDFunction], ErrorKindCountMismatch,
			"too many functions (%d) in a module", len(functions))
	}

	functionCount := m.SectionElementCount(SectionIDFunction)
	codeCount := m.SectionElementCount(SectionIDCode)
	if functionCount == 0 && codeCount == 0 {
		return nil
	}

	typeCount := m.SectionElementCount(SectionIDType)
	if codeCount != functionCount {
		return NewError(m.SectionOffsets[SectionIDCode], ErrorKindCountMismatch,
			"code count (%d) != function count (%d)", codeCount, functionCount)
	}

	declaredFuncIndexes, err := m.declaredFunctionIndexes()
	if err != nil {
		return err
	}

	checkOne := func(vs *stacks, br *bytes.Reader, idx Index) *Error {
		return m.validateCodeEntry(vs, br, enabledFeatures, idx, functions, globals, memory, tables, tags,
			declaredFuncIndexes, typeCount)
	}

	if n := len(m.FunctionSection); parallelism > 1 && n > 1 {
		if parallelism > n {
			parallelism = n
		}
		results := make([]*Error, n)
		work := make(chan Index)
		var wg sync.WaitGroup
		wg.Add(parallelism)
		for w := 0; w < parallelism; w++ {
			go func() {
				defer wg.Done()
				// Each worker owns its reader and stacks, sharing only the
				// read-only module and the results slot per index.
				br := bytes.NewReader(nil)
				vs := &stacks{}
				for idx := range work {
					results[idx] = checkOne(vs, br, idx)
				}
			}()
		}
		for idx := Index(0); idx < Index(n); idx++ {
			work <- idx
		}
		close(work)
		wg.Wait()

		var list ErrorList
		for _, e := range results {
			if e == nil {
				continue
			}
			if !collectAll {
				return e
			}
			list = append(list, e)
		}
		if len(list) > 0 {
			return list
		}
		return nil
	}

	// Create bytes.Reader once as it causes allocation, and
	// we frequently need it (e.g. on every If instruction).
	br := bytes.NewReader(nil)
	// Also, we reuse the stacks across multiple function validations to reduce allocations.
	vs := &stacks{}
	var list ErrorList
	for idx := range m.FunctionSection {
		if e := checkOne(vs, br, Index(idx)); e != nil {
			if !collectAll {
				return e
			}
			list = append(list, e)
		}
	}
	if len(list) > 0 {
		return list
	}
	return nil
}

// validateCodeEntry checks one function body against the type context: the
// type section index recorded for it must be in range, and the body must
// type-check. idx is the position in the FunctionSection.
func (m *Module) validateCodeEntry(vs *stacks, br *bytes.Reader, enabledFeatures Features, idx Index,
	functions []Index, globals []GlobalType, memory *Memory, tables []Table, tags []*FunctionType,
	declaredFuncIndexes *bitset.BitSet, typeCount uint32) *Error {
	typeIndex := m.FunctionSection[idx]
	if typeIndex >= typeCount {
		return NewError(m.SectionOffsets[SectionIDFunction], ErrorKindUnknownIndex,
			"invalid %s: type section index %d out of range", m.funcDesc(SectionIDFunction, idx), typeIndex)
	}
	if err := m.validateFunction(vs, enabledFeatures, idx, functions, globals, memory, tables, tags,
		declaredFuncIndexes, br); err != nil {
		return wrapError(err, "invalid %s: %w", m.funcDesc(SectionIDFunction, idx), err)
	}
	return nil
}

// declaredFunctionIndexes returns the set of function indexes that can be used as an immediate for OpcodeRefFunc instruction.
//
// The criteria for which function indexes can be available for that instruction is vague in the WebAssembly specification:
//
//   - "References: the list of function indices that occur in the module outside functions and can hence be used to form references inside them."
//   - https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/valid/conventions.html#contexts
//   - "Ref is the set funcidx(module with functions=ε, start=ε) , i.e., the set of function indices occurring in the module, except in its functions or start function."
//   - https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/valid/modules.html#valid-module
//
// To summarize, the function indexes OpcodeRefFunc can refer include:
//   - existing in an element section regardless of its mode (active, passive, declarative).
//   - defined as globals whose value type is ValueRefFunc.
//   - used as an exported function.
//
// See https://github.com/WebAssembly/reference-types/issues/31
// See https://github.com/WebAssembly/reference-types/issues/76
func (m *Module) declaredFunctionIndexes() (ret *bitset.BitSet, err error) {
	total := uint(m.ImportFunctionCount) + uint(len(m.FunctionSection))
	ret = bitset.New(total)

	for i := range m.ExportSection {
		exp := &m.ExportSection[i]
		if exp.Type == ExternTypeFunc {
			ret.Set(uint(exp.Index))
		}
	}

	for i := range m.GlobalSection {
		g := &m.GlobalSection[i]
		if g.Init.Opcode == OpcodeRefFunc {
			var index uint32
			index, _, err = leb128.LoadUint32(g.Init.Data)
			if err != nil {
				err = NewError(m.SectionOffsets[SectionIDGlobal], kindOfReadError(err),
					"%s[%d] failed to initialize: %w", SectionIDName(SectionIDGlobal), i, err)
				return
			}
			ret.Set(uint(index))
		}
	}

	for i := range m.ElementSection {
		elem := &m.ElementSection[i]
		for _, index := range elem.Init {
			if index == ElementInitNullReference {
				continue
			}
			if _, isGlobal := UnwrapElementInitGlobalIndex(index); isGlobal {
				continue
			}
			// Entries are bounds-checked by validateTable, which runs after
			// the bodies. A ref.func to an out-of-range entry fails its own
			// index check first, so the entry needn't enter the set.
			if uint(index) < total {
				ret.Set(uint(index))
			}
		}
	}
	return
}

func (m *Module) funcDesc(sectionID SectionID, sectionIndex Index) string {
	// Try to improve the error message by collecting any exports:
	var exportNames []string
	funcIdx := sectionIndex + m.ImportFunctionCount
	for i := range m.ExportSection {
		exp := &m.ExportSection[i]
		if exp.Index == funcIdx && exp.Type == ExternTypeFunc {
			exportNames = append(exportNames, fmt.Sprintf("%q", exp.Name))
		}
	}
	sectionIDName := SectionIDName(sectionID)
	if exportNames == nil {
		return fmt.Sprintf("%s[%d]", sectionIDName, sectionIndex)
	}
	sort.Strings(exportNames) // go map keys do not iterate consistently
	return fmt.Sprintf("%s[%d] export[%s]", sectionIDName, sectionIndex, strings.Join(exportNames, ","))
}

func (m *Module) validateMemory(memory *Memory, globals []GlobalType) error {
	var activeElementCount int
	for i := range m.DataSection {
		d := &m.DataSection[i]
		if !d.IsPassive() {
			activeElementCount++
		}
	}
	if activeElementCount > 0 && memory == nil {
		return NewError(m.SectionOffsets[SectionIDData], ErrorKindUnknownIndex, "unknown memory")
	}

	// Constant expression can only reference imported globals.
	// https://github.com/WebAssembly/spec/blob/5900d839f38641989a9d8df2df4aee0513365d39/test/core/data.wast#L84-L91
	importedGlobals := globals[:m.ImportGlobalCount]
	for i := range m.DataSection {
		d := &m.DataSection[i]
		if !d.IsPassive() {
			if err := validateConstExpression(importedGlobals, 0, &d.OffsetExpression, ValueTypeI32,
				m.SectionOffsets[SectionIDData]); err != nil {
				return wrapError(err, "calculate offset: %w", err)
			}
		}
	}
	return nil
}

func (m *Module) validateImports(enabledFeatures Features) error {
	offset := m.SectionOffsets[SectionIDImport]
	for i := range m.ImportSection {
		imp := &m.ImportSection[i]
		switch imp.Type {
		case ExternTypeFunc:
			if int(imp.DescFunc) >= len(m.TypeSection) {
				return NewError(offset, ErrorKindUnknownIndex,
					"invalid import[%q.%q] function: type index out of range", imp.Module, imp.Name)
			}
		case ExternTypeGlobal:
			if !imp.DescGlobal.Mutable {
				continue
			}
			if err := enabledFeatures.RequireEnabled(FeatureMutableGlobal); err != nil {
				return NewError(offset, ErrorKindInvalidEncoding,
					"invalid import[%q.%q] global: %w", imp.Module, imp.Name, err)
			}
		case ExternTypeTag:
			if err := enabledFeatures.RequireEnabled(FeatureExceptionHandling); err != nil {
				return NewError(offset, ErrorKindInvalidEncoding,
					"invalid import[%q.%q] tag: %w", imp.Module, imp.Name, err)
			}
			if int(imp.DescTag) >= len(m.TypeSection) {
				return NewError(offset, ErrorKindUnknownIndex,
					"invalid import[%q.%q] tag: type index out of range", imp.Module, imp.Name)
			}
			if ft := &m.TypeSection[imp.DescTag]; len(ft.Results) != 0 {
				return NewError(offset, ErrorKindTypeMismatch,
					"invalid import[%q.%q] tag: signature must have an empty result: %s", imp.Module, imp.Name, ft)
			}
		}
	}
	return nil
}

func (m *Module) validateExports(enabledFeatures Features, functions []Index, globals []GlobalType,
	memory *Memory, tables []Table) error {
	offset := m.SectionOffsets[SectionIDExport]
	for i := range m.ExportSection {
		exp := &m.ExportSection[i]
		index := exp.Index
		switch exp.Type {
		case ExternTypeFunc:
			if index >= uint32(len(functions)) {
				return NewError(offset, ErrorKindUnknownIndex, "unknown function for export[%q]", exp.Name)
			}
		case ExternTypeGlobal:
			if index >= uint32(len(globals)) {
				return NewError(offset, ErrorKindUnknownIndex, "unknown global for export[%q]", exp.Name)
			}
			if !globals[index].Mutable {
				continue
			}
			if err := enabledFeatures.RequireEnabled(FeatureMutableGlobal); err != nil {
				return NewError(offset, ErrorKindInvalidEncoding,
					"invalid export[%q] global[%d]: %w", exp.Name, index, err)
			}
		case ExternTypeMemory:
			if index > 0 || memory == nil {
				return NewError(offset, ErrorKindUnknownIndex, "memory for export[%q] out of range", exp.Name)
			}
		case ExternTypeTable:
			if index >= uint32(len(tables)) {
				return NewError(offset, ErrorKindUnknownIndex, "table for export[%q] out of range", exp.Name)
			}
		case ExternTypeTag:
			if index >= m.ImportTagCount+uint32(len(m.TagSection)) {
				return NewError(offset, ErrorKindUnknownIndex, "unknown tag for export[%q]", exp.Name)
			}
		}
	}
	return nil
}

func (m *Module) validateDataCountSection() (err error) {
	if m.DataCountSection != nil && int(*m.DataCountSection) != len(m.DataSection) {
		err = NewError(m.SectionOffsets[SectionIDDataCount], ErrorKindCountMismatch,
			"data count section (%d) doesn't match the length of data section (%d)",
			*m.DataCountSection, len(m.DataSection))
	}
	return
}

// Import is the binary representation of an import indicated by Type
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-import
type Import struct {
	Type ExternType
	// Module is the possibly empty primary namespace of this import
	Module string
	// Name is the possibly empty secondary namespace of this import
	Name string
	// DescFunc is the index in Module.TypeSection when Type equals ExternTypeFunc
	DescFunc Index
	// DescTable is the inlined Table when Type equals ExternTypeTable
	DescTable Table
	// DescMem is the inlined Memory when Type equals ExternTypeMemory
	DescMem *Memory
	// DescGlobal is the inlined GlobalType when Type equals ExternTypeGlobal
	DescGlobal GlobalType
	// DescTag is the index in Module.TypeSection when Type equals ExternTypeTag
	DescTag Index
	// IndexPerType has the index of this import per ExternType.
	IndexPerType Index
}

// Export is the binary representation of an export indicated by Type
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-export
type Export struct {
	Type ExternType

	// Name is what the host refers to this definition as.
	Name string

	// Index is the index of the definition to export, the index is by Type
	// e.g. If ExternTypeFunc, this is a position in the function index.
	Index Index
}

// Code is an entry in the Module.CodeSection containing the locals and body of the function.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-code
type Code struct {
	// LocalTypes are any function-scoped variables in insertion order.
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-local
	LocalTypes []ValueType

	// Body is a sequence of expressions ending in OpcodeEnd
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-expr
	Body []byte

	// BodyOffsetInBinary is the offset of the beginning of the body in the
	// module binary. Validation errors inside the body are positioned
	// relative to this.
	BodyOffsetInBinary uint64
}

type DataSegment struct {
	OffsetExpression ConstantExpression
	Init             []byte
	Passive          bool
}

// IsPassive returns true if this data segment is "passive" in the sense that memory offset and
// index is determined at runtime and used by OpcodeMemoryInitName instruction in the bulk memory
// operations proposal.
//
// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/appendix/changes.html#bulk-memory-and-table-instructions
func (d *DataSegment) IsPassive() bool {
	return d.Passive
}

// NameSection represent the known custom name subsections defined in the WebAssembly Binary Format
//
// Note: This can be nil if no names were decoded for any reason including configuration.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#name-section%E2%91%A0
type NameSection struct {
	// ModuleName is the symbolic identifier for a module. e.g. math
	//
	// Note: This can be empty for any reason including configuration.
	ModuleName string

	// FunctionNames is an association of a function index to its symbolic identifier. e.g. add
	//
	// * the key (idx) is in the function index space, where module defined functions are preceded by imported ones.
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#functions%E2%91%A7
	//
	// For example, assuming the below text format is the second import, you would expect FunctionNames[1] = "mul"
	//	(import "Math" "Mul" (func $mul (param $x f32) (param $y f32) (result f32)))
	//
	// Note: This can be nil for any reason including configuration.
	FunctionNames NameMap

	// LocalNames contains symbolic names for function parameters or locals that have one.
	//
	// Note: In the Text Format, function local names can inherit parameter
	// names from their type. Here are some examples:
	//  * (module (import (func (param $x i32) (param i32))) (func (type 0))) = [{0, {x,0}}]
	//  * (module (import (func (param i32) (param $y i32))) (func (type 0) (local $z i32))) = [0, [{y,1},{z,2}]]
	//  * (module (func (param $x i32) (local $y i32) (local $z i32))) = [{x,0},{y,1},{z,2}]
	//
	// Note: This can be nil for any reason including configuration.
	LocalNames IndirectNameMap
}

// CustomSection contains the name and raw data of a custom section.
type CustomSection struct {
	Name string
	Data []byte
}

// NameMap associates an index with any associated names.
//
// Note: Often the index bridges multiple sections. For example, the function index starts with any
// ExternTypeFunc in the Module.ImportSection followed by the Module.FunctionSection
//
// Note: NameMap is unique by NameAssoc.Index, but NameAssoc.Name needn't be unique.
// Note: When encoding in the Binary format, this must be ordered by NameAssoc.Index
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-namemap
type NameMap []NameAssoc

type NameAssoc struct {
	Index Index
	Name  string
}

// IndirectNameMap associates an index with an association of names.
//
// Note: IndirectNameMap is unique by NameMapAssoc.Index, but NameMapAssoc.NameMap needn't be unique.
// Note: When encoding in the Binary format, this must be ordered by NameMapAssoc.Index
// https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-indirectnamemap
type IndirectNameMap []NameMapAssoc

type NameMapAssoc struct {
	Index   Index
	NameMap NameMap
}

// AllDeclarations returns all declarations for functions, globals, memories and tables in a module including imported ones.
func (m *Module) AllDeclarations() (functions []Index, globals []GlobalType, memory *Memory, tables []Table, err error) {
	for i := range m.ImportSection {
		imp := &m.ImportSection[i]
		switch imp.Type {
		case ExternTypeFunc:
			functions = append(functions, imp.DescFunc)
		case ExternTypeGlobal:
			globals = append(globals, imp.DescGlobal)
		case ExternTypeMemory:
			if memory != nil {
				err = NewError(m.SectionOffsets[SectionIDImport], ErrorKindCountMismatch,
					"at most one memory allowed in module")
				return
			}
			memory = imp.DescMem
		case ExternTypeTable:
			tables = append(tables, imp.DescTable)
		}
	}

	functions = append(functions, m.FunctionSection...)
	for i := range m.GlobalSection {
		g := &m.GlobalSection[i]
		globals = append(globals, g.Type)
	}
	if m.MemorySection != nil {
		if memory != nil {
			err = NewError(m.SectionOffsets[SectionIDMemory], ErrorKindCountMismatch,
				"at most one memory allowed in module")
			return
		}
		memory = m.MemorySection
	}
	if m.TableSection != nil {
		tables = append(tables, m.TableSection...)
	}
	return
}

// SectionElementCount returns the count of elements in a given section ID
//
// For example...
// * SectionIDType returns the count of FunctionType
// * SectionIDCustom returns the count of retained custom sections, the NameSection included
// * SectionIDExport returns the count of unique export names
func (m *Module) SectionElementCount(sectionID SectionID) uint32 { // element as in vector elements!
	switch sectionID {
	case SectionIDCustom:
		numCustomSections := uint32(len(m.CustomSections))
		if m.NameSection != nil {
			numCustomSections++
		}
		return numCustomSections
	case SectionIDType:
		return uint32(len(m.TypeSection))
	case SectionIDImport:
		return uint32(len(m.ImportSection))
	case SectionIDFunction:
		return uint32(len(m.FunctionSection))
	case SectionIDTable:
		return uint32(len(m.TableSection))
	case SectionIDMemory:
		if m.MemorySection != nil {
			return 1
		}
		return 0
	case SectionIDGlobal:
		return uint32(len(m.GlobalSection))
	case SectionIDExport:
		return uint32(len(m.ExportSection))
	case SectionIDStart:
		if m.StartSection != nil {
			return 1
		}
		return 0
	case SectionIDElement:
		return uint32(len(m.ElementSection))
	case SectionIDCode:
		return uint32(len(m.CodeSection))
	case SectionIDData:
		return uint32(len(m.DataSection))
	case SectionIDDataCount:
		if m.DataCountSection != nil {
			return 1
		}
		return 0
	case SectionIDTag:
		return uint32(len(m.TagSection))
	}
	return 0
}

// SectionID identifies the sections of a Module in the WebAssembly 1.0 (20191205) Binary Format.
//
// Note: these are defined in the wasm package, instead of the binary package, as a key per section is needed regardless
// of format, and deferring to the binary type avoids confusion.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
type SectionID = byte

const (
	// SectionIDCustom includes the standard defined NameSection and possibly others not defined in the standard.
	SectionIDCustom SectionID = iota // don't add anything not in https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData

	// SectionIDDataCount may exist in WebAssembly 2.0 or WebAssembly 1.0 with FeatureBulkMemoryOperations enabled.
	//
	// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html#data-count-section
	// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/appendix/changes.html#bulk-memory-and-table-instructions
	SectionIDDataCount

	// SectionIDTag exists only with FeatureExceptionHandling enabled.
	//
	// See https://github.com/WebAssembly/exception-handling/blob/main/proposals/exception-handling/Exceptions.md
	SectionIDTag
)

// SectionIDName returns the canonical name of a module section.
// https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
func SectionIDName(sectionID SectionID) string {
	switch sectionID {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data_count"
	case SectionIDTag:
		return "tag"
	}
	return "unknown"
}
