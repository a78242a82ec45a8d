package binary

import (
	"github.com/wasmcheck/wasmcheck/wasm"
)

// EncodeModule encodes the module into the binary format, the inverse of
// DecodeModule. Standard sections are written in their mandated order,
// retained custom sections after them in decoded order, and the name section
// last.
//
// Decoding the result yields an equal Module. The bytes equal the original
// binary when that binary kept its sections in the mandated order, used
// shortest-form varints and carried its custom sections at the end, as
// EncodeModule always writes that normal form.
func EncodeModule(m *wasm.Module) (bytes []byte) {
	bytes = append(Magic, version...)
	if m.SectionElementCount(wasm.SectionIDType) > 0 {
		bytes = append(bytes, encodeTypeSection(m.TypeSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDImport) > 0 {
		bytes = append(bytes, encodeImportSection(m.ImportSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDFunction) > 0 {
		bytes = append(bytes, encodeFunctionSection(m.FunctionSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDTable) > 0 {
		bytes = append(bytes, encodeTableSection(m.TableSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDMemory) > 0 {
		bytes = append(bytes, encodeMemorySection(m.MemorySection)...)
	}
	if m.SectionElementCount(wasm.SectionIDTag) > 0 {
		bytes = append(bytes, encodeTagSection(m.TagSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDGlobal) > 0 {
		bytes = append(bytes, encodeGlobalSection(m.GlobalSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDExport) > 0 {
		bytes = append(bytes, encodeExportSection(m.ExportSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDStart) > 0 {
		bytes = append(bytes, encodeStartSection(*m.StartSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDElement) > 0 {
		bytes = append(bytes, encodeElementSection(m.ElementSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDDataCount) > 0 {
		bytes = append(bytes, encodeDataCountSection(*m.DataCountSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDCode) > 0 {
		bytes = append(bytes, encodeCodeSection(m.CodeSection)...)
	}
	if m.SectionElementCount(wasm.SectionIDData) > 0 {
		bytes = append(bytes, encodeDataSection(m.DataSection)...)
	}
	for _, c := range m.CustomSections {
		bytes = append(bytes, encodeCustomSection(c)...)
	}
	if m.NameSection != nil {
		bytes = append(bytes, encodeNameSection(m.NameSection)...)
	}
	return
}
