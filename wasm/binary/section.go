package binary

import (
	"bytes"
	"io"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// sectionReader is the cursor shared by the per-section readers. It holds the
// byte range of one section's contents, the module offset of that range for
// error positions, and the count of entries declared up front.
type sectionReader struct {
	r    *bytes.Reader
	data []byte
	base uint64

	count uint32
	read  uint32

	enabledFeatures wasm.Features
	canonical       bool
}

func newSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (sectionReader, error) {
	s := sectionReader{r: bytes.NewReader(data), data: data, base: base, enabledFeatures: enabledFeatures, canonical: canonical}
	count, _, err := readUint32(s.r, canonical)
	if err != nil {
		return s, wasm.NewError(base, readErrorKind(err), "get size of vector: %w", err)
	}
	s.count = count
	return s, nil
}

// Count returns the entry count the section declared.
func (s *sectionReader) Count() uint32 { return s.count }

// position is the module offset of the next unread byte.
func (s *sectionReader) position() uint64 {
	return s.base + uint64(s.r.Size()) - uint64(s.r.Len())
}

// begin starts one entry decode. After the declared count it returns io.EOF,
// unless bytes remain in the range, which is a size mismatch.
func (s *sectionReader) begin() error {
	if s.read == s.count {
		if s.r.Len() > 0 {
			return wasm.NewError(s.position(), wasm.ErrorKindSizeMismatch,
				"section size mismatch: %d bytes remain after the %d declared entries", s.r.Len(), s.count)
		}
		return io.EOF
	}
	return nil
}

// entryErr positions err at the entry which began at offset at. Running out
// of bytes mid-entry means the declared count overstates the entries present,
// as the framing already delimited the range.
func (s *sectionReader) entryErr(at uint64, err error, format string, args ...interface{}) error {
	kind := classify(err)
	if kind == wasm.ErrorKindUnexpectedEOF {
		kind = wasm.ErrorKindCountMismatch
	}
	args = append(args, err)
	return wasm.NewError(at, kind, format+": %w", args...)
}

// TypeSectionReader decodes the function types of a type section one entry at
// a time.
type TypeSectionReader struct{ sectionReader }

// NewTypeSectionReader reads the entry count of the type section whose
// contents are data, beginning at module offset base.
func NewTypeSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*TypeSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &TypeSectionReader{s}, nil
}

// Next decodes the next function type, returning io.EOF after the last one.
func (t *TypeSectionReader) Next() (wasm.FunctionType, error) {
	var zero wasm.FunctionType
	if err := t.begin(); err != nil {
		return zero, err
	}
	at := t.position()
	ft, err := decodeFunctionType(t.r, t.enabledFeatures, t.canonical)
	if err != nil {
		return zero, t.entryErr(at, err, "read %d-th type", t.read)
	}
	t.read++
	return ft, nil
}

// ImportSectionReader decodes the entries of an import section.
type ImportSectionReader struct {
	sectionReader
	memoryLimitPages uint32
}

// NewImportSectionReader reads the entry count of an import section.
// memoryLimitPages caps any imported memory the way DecodeModule does.
func NewImportSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, memoryLimitPages uint32, canonical bool) (*ImportSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &ImportSectionReader{sectionReader: s, memoryLimitPages: memoryLimitPages}, nil
}

// Next decodes the next import, returning io.EOF after the last one.
func (i *ImportSectionReader) Next() (wasm.Import, error) {
	var zero wasm.Import
	if err := i.begin(); err != nil {
		return zero, err
	}
	at := i.position()
	imp, err := decodeImport(i.r, i.enabledFeatures, i.memoryLimitPages, i.canonical)
	if err != nil {
		return zero, i.entryErr(at, err, "read import")
	}
	i.read++
	return imp, nil
}

// FunctionSectionReader decodes the type indices of a function section.
type FunctionSectionReader struct{ sectionReader }

// NewFunctionSectionReader reads the entry count of a function section.
func NewFunctionSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*FunctionSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &FunctionSectionReader{s}, nil
}

// Next decodes the next type index, returning io.EOF after the last one.
func (f *FunctionSectionReader) Next() (wasm.Index, error) {
	if err := f.begin(); err != nil {
		return 0, err
	}
	at := f.position()
	idx, _, err := readUint32(f.r, f.canonical)
	if err != nil {
		return 0, f.entryErr(at, err, "get type index")
	}
	f.read++
	return idx, nil
}

// TableSectionReader decodes the entries of a table section.
type TableSectionReader struct{ sectionReader }

// NewTableSectionReader reads the entry count of a table section. More than
// one table requires the reference-types feature.
func NewTableSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*TableSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	if s.count > 1 {
		if err := enabledFeatures.RequireEnabled(wasm.FeatureReferenceTypes); err != nil {
			return nil, wasm.NewError(base, wasm.ErrorKindInvalidEncoding, "at most one table allowed in module as %v", err)
		}
	}
	return &TableSectionReader{s}, nil
}

// Next decodes the next table, returning io.EOF after the last one.
func (t *TableSectionReader) Next() (wasm.Table, error) {
	var zero wasm.Table
	if err := t.begin(); err != nil {
		return zero, err
	}
	at := t.position()
	table, err := decodeTable(t.r, t.enabledFeatures, t.canonical)
	if err != nil {
		return zero, t.entryErr(at, err, "read table")
	}
	t.read++
	return table, nil
}

// MemorySectionReader decodes the entries of a memory section.
type MemorySectionReader struct {
	sectionReader
	memoryLimitPages uint32
}

// NewMemorySectionReader reads the entry count of a memory section. At most
// one memory may be declared.
func NewMemorySectionReader(data []byte, base uint64, enabledFeatures wasm.Features, memoryLimitPages uint32, canonical bool) (*MemorySectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	if s.count > 1 {
		return nil, wasm.NewError(base, wasm.ErrorKindInvalidEncoding, "at most one memory allowed in module, but read %d", s.count)
	}
	return &MemorySectionReader{sectionReader: s, memoryLimitPages: memoryLimitPages}, nil
}

// Next decodes the memory, returning io.EOF after it.
func (m *MemorySectionReader) Next() (*wasm.Memory, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	at := m.position()
	mem, err := decodeMemory(m.r, m.enabledFeatures, m.memoryLimitPages, m.canonical)
	if err != nil {
		return nil, m.entryErr(at, err, "read memory")
	}
	m.read++
	return mem, nil
}

// GlobalSectionReader decodes the entries of a global section.
type GlobalSectionReader struct{ sectionReader }

// NewGlobalSectionReader reads the entry count of a global section.
func NewGlobalSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*GlobalSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &GlobalSectionReader{s}, nil
}

// Next decodes the next global, returning io.EOF after the last one.
func (g *GlobalSectionReader) Next() (wasm.Global, error) {
	var zero wasm.Global
	if err := g.begin(); err != nil {
		return zero, err
	}
	at := g.position()
	global, err := decodeGlobal(g.r, g.enabledFeatures, g.canonical)
	if err != nil {
		return zero, g.entryErr(at, err, "read global")
	}
	g.read++
	return global, nil
}

// ExportSectionReader decodes the entries of an export section. Name
// uniqueness is the caller's concern: the reader sees one entry at a time.
type ExportSectionReader struct{ sectionReader }

// NewExportSectionReader reads the entry count of an export section.
func NewExportSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*ExportSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &ExportSectionReader{s}, nil
}

// Next decodes the next export, returning io.EOF after the last one.
func (e *ExportSectionReader) Next() (wasm.Export, error) {
	var zero wasm.Export
	if err := e.begin(); err != nil {
		return zero, err
	}
	at := e.position()
	exp, err := decodeExport(e.r, e.enabledFeatures, e.canonical)
	if err != nil {
		return zero, e.entryErr(at, err, "read export")
	}
	e.read++
	return exp, nil
}

// ElementSectionReader decodes the entries of an element section.
type ElementSectionReader struct{ sectionReader }

// NewElementSectionReader reads the entry count of an element section.
func NewElementSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*ElementSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &ElementSectionReader{s}, nil
}

// Next decodes the next element segment, returning io.EOF after the last one.
func (e *ElementSectionReader) Next() (wasm.ElementSegment, error) {
	var zero wasm.ElementSegment
	if err := e.begin(); err != nil {
		return zero, err
	}
	at := e.position()
	elem, err := decodeElementSegment(e.r, e.enabledFeatures, e.canonical)
	if err != nil {
		return zero, e.entryErr(at, err, "read element")
	}
	e.read++
	return elem, nil
}

// DataSectionReader decodes the entries of a data section.
type DataSectionReader struct{ sectionReader }

// NewDataSectionReader reads the entry count of a data section.
func NewDataSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*DataSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &DataSectionReader{s}, nil
}

// Next decodes the next data segment, returning io.EOF after the last one.
// Passive segments require the bulk-memory-operations feature.
func (d *DataSectionReader) Next() (wasm.DataSegment, error) {
	var zero wasm.DataSegment
	if err := d.begin(); err != nil {
		return zero, err
	}
	at := d.position()
	seg, err := decodeDataSegment(d.r, d.canonical)
	if err != nil {
		return zero, d.entryErr(at, err, "read data segment")
	}
	if seg.IsPassive() {
		if err := d.enabledFeatures.RequireEnabled(wasm.FeatureBulkMemoryOperations); err != nil {
			return zero, wasm.NewError(at, wasm.ErrorKindInvalidEncoding,
				"non-zero prefix for data segment is invalid as %v", err)
		}
	}
	d.read++
	return seg, nil
}

// CodeSectionReader decodes the entries of a code section: the size prefixed
// locals and body of each function.
type CodeSectionReader struct{ sectionReader }

// NewCodeSectionReader reads the entry count of a code section.
func NewCodeSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*CodeSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &CodeSectionReader{s}, nil
}

// Next decodes the next code entry, returning io.EOF after the last one.
func (c *CodeSectionReader) Next() (wasm.Code, error) {
	var zero wasm.Code
	if err := c.begin(); err != nil {
		return zero, err
	}
	at := c.position()
	size, _, err := readUint32(c.r, c.canonical)
	if err != nil {
		return zero, c.entryErr(at, err, "get the size of code")
	}
	if uint64(size) > uint64(c.r.Len()) {
		return zero, wasm.NewError(at, wasm.ErrorKindSizeMismatch,
			"the size of %d-th code (%d bytes) exceeds the section", c.read, size)
	}
	start := int(c.r.Size()) - c.r.Len()
	entry := c.data[start : start+int(size)]
	if _, err := c.r.Seek(int64(size), io.SeekCurrent); err != nil {
		return zero, c.entryErr(at, err, "read %d-th code segment", c.read)
	}
	code, err := decodeCode(entry, c.base+uint64(start), c.enabledFeatures, c.canonical)
	if err != nil {
		return zero, c.entryErr(at, err, "read %d-th code segment", c.read)
	}
	c.read++
	return code, nil
}

// TagSectionReader decodes the type indices of a tag section.
type TagSectionReader struct{ sectionReader }

// NewTagSectionReader reads the entry count of a tag section.
func NewTagSectionReader(data []byte, base uint64, enabledFeatures wasm.Features, canonical bool) (*TagSectionReader, error) {
	s, err := newSectionReader(data, base, enabledFeatures, canonical)
	if err != nil {
		return nil, err
	}
	return &TagSectionReader{s}, nil
}

// Next decodes the next tag, returning io.EOF after the last one.
func (t *TagSectionReader) Next() (wasm.Index, error) {
	if err := t.begin(); err != nil {
		return 0, err
	}
	at := t.position()
	tag, err := decodeTag(t.r, t.canonical)
	if err != nil {
		return 0, t.entryErr(at, err, "read tag")
	}
	t.read++
	return tag, nil
}

// encodeSection encodes the sectionID, the size of its contents in bytes,
// followed by the contents.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
func encodeSection(sectionID wasm.SectionID, contents []byte) []byte {
	return append([]byte{sectionID}, encodeSizePrefixed(contents)...)
}

// encodeTypeSection encodes a wasm.SectionIDType for the given function
// types.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#type-section%E2%91%A0
func encodeTypeSection(types []wasm.FunctionType) []byte {
	contents := leb128.EncodeUint32(uint32(len(types)))
	for i := range types {
		contents = append(contents, encodeFunctionType(&types[i])...)
	}
	return encodeSection(wasm.SectionIDType, contents)
}

// encodeImportSection encodes a wasm.SectionIDImport for the given imports.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#import-section%E2%91%A0
func encodeImportSection(imports []wasm.Import) []byte {
	contents := leb128.EncodeUint32(uint32(len(imports)))
	for i := range imports {
		contents = append(contents, encodeImport(&imports[i])...)
	}
	return encodeSection(wasm.SectionIDImport, contents)
}

// encodeFunctionSection encodes a wasm.SectionIDFunction for the type indices
// associated with module-defined functions.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-section%E2%91%A0
func encodeFunctionSection(typeIndices []wasm.Index) []byte {
	contents := leb128.EncodeUint32(uint32(len(typeIndices)))
	for _, index := range typeIndices {
		contents = append(contents, leb128.EncodeUint32(index)...)
	}
	return encodeSection(wasm.SectionIDFunction, contents)
}

// encodeTableSection encodes a wasm.SectionIDTable for the given tables.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#table-section%E2%91%A0
func encodeTableSection(tables []wasm.Table) []byte {
	contents := leb128.EncodeUint32(uint32(len(tables)))
	for i := range tables {
		contents = append(contents, encodeTable(&tables[i])...)
	}
	return encodeSection(wasm.SectionIDTable, contents)
}

// encodeMemorySection encodes a wasm.SectionIDMemory for the single memory.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#memory-section%E2%91%A0
func encodeMemorySection(memory *wasm.Memory) []byte {
	contents := append([]byte{1}, encodeMemory(memory)...)
	return encodeSection(wasm.SectionIDMemory, contents)
}

// encodeGlobalSection encodes a wasm.SectionIDGlobal for the given globals.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#global-section%E2%91%A0
func encodeGlobalSection(globals []wasm.Global) []byte {
	contents := leb128.EncodeUint32(uint32(len(globals)))
	for i := range globals {
		contents = append(contents, encodeGlobal(&globals[i])...)
	}
	return encodeSection(wasm.SectionIDGlobal, contents)
}

// encodeExportSection encodes a wasm.SectionIDExport for the given exports.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#export-section%E2%91%A0
func encodeExportSection(exports []wasm.Export) []byte {
	contents := leb128.EncodeUint32(uint32(len(exports)))
	for i := range exports {
		contents = append(contents, encodeExport(&exports[i])...)
	}
	return encodeSection(wasm.SectionIDExport, contents)
}

// encodeStartSection encodes a wasm.SectionIDStart for the module-defined
// function.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#start-section%E2%91%A0
func encodeStartSection(funcidx wasm.Index) []byte {
	return encodeSection(wasm.SectionIDStart, leb128.EncodeUint32(funcidx))
}

// encodeElementSection encodes a wasm.SectionIDElement for the given
// segments.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#element-section%E2%91%A0
func encodeElementSection(elements []wasm.ElementSegment) []byte {
	contents := leb128.EncodeUint32(uint32(len(elements)))
	for i := range elements {
		contents = append(contents, encodeElement(&elements[i])...)
	}
	return encodeSection(wasm.SectionIDElement, contents)
}

// encodeCodeSection encodes a wasm.SectionIDCode for the module-defined
// function bodies.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#code-section%E2%91%A0
func encodeCodeSection(code []wasm.Code) []byte {
	contents := leb128.EncodeUint32(uint32(len(code)))
	for i := range code {
		contents = append(contents, encodeCode(&code[i])...)
	}
	return encodeSection(wasm.SectionIDCode, contents)
}

// encodeDataSection encodes a wasm.SectionIDData for the given segments.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#data-section%E2%91%A0
func encodeDataSection(datum []wasm.DataSegment) []byte {
	contents := leb128.EncodeUint32(uint32(len(datum)))
	for i := range datum {
		contents = append(contents, encodeDataSegment(&datum[i])...)
	}
	return encodeSection(wasm.SectionIDData, contents)
}

// encodeDataCountSection encodes a wasm.SectionIDDataCount with the given
// count.
// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html#data-count-section
func encodeDataCountSection(count uint32) []byte {
	return encodeSection(wasm.SectionIDDataCount, leb128.EncodeUint32(count))
}

// encodeTagSection encodes a wasm.SectionIDTag for the given tag type
// indices.
// See https://webassembly.github.io/exception-handling/core/binary/modules.html#binary-tagsec
func encodeTagSection(tags []wasm.Index) []byte {
	contents := leb128.EncodeUint32(uint32(len(tags)))
	for _, t := range tags {
		contents = append(contents, encodeTag(t)...)
	}
	return encodeSection(wasm.SectionIDTag, contents)
}

// encodeCustomSection encodes a wasm.SectionIDCustom with the given name and
// data.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#custom-section%E2%91%A0
func encodeCustomSection(c *wasm.CustomSection) []byte {
	contents := append(encodeSizePrefixed([]byte(c.Name)), c.Data...)
	return encodeSection(wasm.SectionIDCustom, contents)
}

// encodeNameSection encodes a possibly empty buffer representing the "name"
// wasm.Module CustomSection.
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-namesec
func encodeNameSection(n *wasm.NameSection) []byte {
	name := encodeSizePrefixed([]byte("name"))
	data := encodeNameSectionData(n)
	contents := append(name, data...)
	return encodeSection(wasm.SectionIDCustom, contents)
}
