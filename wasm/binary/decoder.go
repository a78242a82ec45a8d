// Package binary decodes and encodes the WebAssembly binary format.
//
// DecodeModule turns a complete module binary into a wasm.Module. Parser
// exposes the same decode as a resumable push parser for callers that stream
// module bytes, ModuleBuilder folds the parser's payloads into a wasm.Module,
// and the per-section readers decode one section's entries at a time.
// EncodeModule is the inverse of DecodeModule.
//
// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/modules.html
package binary

import (
	"bytes"
	"io"

	"github.com/wasmcheck/wasmcheck/wasm"
)

// DecodeModule decodes a complete module binary into its in-memory form,
// stopping at the first defect. The result is structurally sound but not yet
// validated: index resolution and type checking are wasm.Module Validate's
// concern.
//
// enabledFeatures gates feature-dependent constructs such as passive data
// segments or the tag section. memoryLimitPages caps memory minimums and
// substitutes for an absent maximum. storeCustomSections retains custom
// sections other than "name" in Module.CustomSections. canonical requires
// every varint outside function bodies to use its shortest encoding.
//
// The returned Module aliases binary rather than copying it, so the caller
// must not reuse the buffer while the Module is live. Errors are *wasm.Error
// values positioned within the binary.
func DecodeModule(binary []byte, enabledFeatures wasm.Features, memoryLimitPages uint32, storeCustomSections, canonical bool) (*wasm.Module, error) {
	p := NewParser(canonical)
	b := NewModuleBuilder(enabledFeatures, memoryLimitPages, storeCustomSections, canonical)

	data := binary
	for {
		payload, n, err := p.Feed(data, true)
		if err != nil {
			return nil, err
		}
		data = data[n:]

		if err := b.Apply(payload); err != nil {
			return nil, err
		}
		if _, done := payload.(End); done {
			return b.Module(), nil
		}
	}
}

// ModuleBuilder folds Parser payloads into a wasm.Module. DecodeModule is a
// parse-then-Apply loop over one; streaming callers drive their own loop so
// they can act on each payload, such as validating a function body, before
// the next is parsed.
//
// Payloads must arrive in parse order from a single Parser configured with
// the same canonical setting. After a payload is rejected the builder is no
// longer usable.
type ModuleBuilder struct {
	m                *wasm.Module
	enabledFeatures  wasm.Features
	memoryLimitPages uint32

	storeCustomSections bool
	canonical           bool
	sawNameSection      bool
}

// NewModuleBuilder returns a builder with an empty module. The parameters
// match DecodeModule's.
func NewModuleBuilder(enabledFeatures wasm.Features, memoryLimitPages uint32, storeCustomSections, canonical bool) *ModuleBuilder {
	return &ModuleBuilder{
		m:                   &wasm.Module{},
		enabledFeatures:     enabledFeatures,
		memoryLimitPages:    memoryLimitPages,
		storeCustomSections: storeCustomSections,
		canonical:           canonical,
	}
}

// Module returns the module built so far. It is complete once End has been
// applied.
func (b *ModuleBuilder) Module() *wasm.Module {
	return b.m
}

// Apply decodes one payload into the module. Applying End runs the checks
// that span sections, currently that the function and code sections agree on
// the function count.
func (b *ModuleBuilder) Apply(payload Payload) error {
	m := b.m
	switch s := payload.(type) {
	case ModuleVersion:

	case Section:
		return b.applySection(s)

	case CustomSection:
		if s.Name == "name" {
			if b.sawNameSection {
				return wrapSection(wasm.SectionIDCustom, wasm.NewError(s.DataOffset,
					wasm.ErrorKindSectionOutOfOrder, "redundant custom section name"))
			}
			b.sawNameSection = true
			ns, err := decodeNameSection(s.Data, b.canonical)
			if err != nil {
				return wrapSection(wasm.SectionIDCustom,
					wasm.NewError(s.DataOffset, classify(err), "%w", err))
			}
			m.NameSection = ns
		} else if b.storeCustomSections {
			m.CustomSections = append(m.CustomSections, &wasm.CustomSection{Name: s.Name, Data: s.Data})
		}

	case CodeSectionStart:
		m.SectionOffsets[wasm.SectionIDCode] = s.DataOffset

	case FunctionBody:
		code, err := decodeCode(s.Data, s.DataOffset, b.enabledFeatures, b.canonical)
		if err != nil {
			kind := classify(err)
			if kind == wasm.ErrorKindUnexpectedEOF {
				// The entry's size prefix delimited the bytes, so an EOF
				// inside means the declared size was too small.
				kind = wasm.ErrorKindSizeMismatch
			}
			return wrapSection(wasm.SectionIDCode,
				wasm.NewError(s.DataOffset, kind, "read %d-th code segment: %w", s.Index, err))
		}
		m.CodeSection = append(m.CodeSection, code)

	case DataSectionStart:
		m.SectionOffsets[wasm.SectionIDData] = s.DataOffset

	case DataEntry:
		if s.Segment.IsPassive() {
			if err := b.enabledFeatures.RequireEnabled(wasm.FeatureBulkMemoryOperations); err != nil {
				return wrapSection(wasm.SectionIDData, wasm.NewError(s.DataOffset,
					wasm.ErrorKindInvalidEncoding, "non-zero prefix for data segment is invalid as %v", err))
			}
		}
		m.DataSection = append(m.DataSection, s.Segment)

	case End:
		if len(m.FunctionSection) != len(m.CodeSection) {
			at := m.SectionOffsets[wasm.SectionIDCode]
			if at == 0 {
				at = m.SectionOffsets[wasm.SectionIDFunction]
			}
			return wasm.NewError(at, wasm.ErrorKindCountMismatch,
				"function and code section have inconsistent lengths: %d and %d",
				len(m.FunctionSection), len(m.CodeSection))
		}
	}
	return nil
}

// applySection decodes one fully buffered non-custom section into the module.
func (b *ModuleBuilder) applySection(s Section) error {
	m, enabledFeatures, canonical := b.m, b.enabledFeatures, b.canonical
	m.SectionOffsets[s.ID] = s.DataOffset

	switch s.ID {
	case wasm.SectionIDType:
		tr, err := NewTypeSectionReader(s.Data, s.DataOffset, enabledFeatures, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		m.TypeSection = make([]wasm.FunctionType, 0, boundedCap(tr.Count(), len(s.Data)))
		for {
			ft, err := tr.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			m.TypeSection = append(m.TypeSection, ft)
		}

	case wasm.SectionIDImport:
		ir, err := NewImportSectionReader(s.Data, s.DataOffset, enabledFeatures, b.memoryLimitPages, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		m.ImportSection = make([]wasm.Import, 0, boundedCap(ir.Count(), len(s.Data)))
		for {
			imp, err := ir.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			switch imp.Type {
			case wasm.ExternTypeFunc:
				imp.IndexPerType = m.ImportFunctionCount
				m.ImportFunctionCount++
			case wasm.ExternTypeTable:
				imp.IndexPerType = m.ImportTableCount
				m.ImportTableCount++
			case wasm.ExternTypeMemory:
				imp.IndexPerType = m.ImportMemoryCount
				m.ImportMemoryCount++
			case wasm.ExternTypeGlobal:
				imp.IndexPerType = m.ImportGlobalCount
				m.ImportGlobalCount++
			case wasm.ExternTypeTag:
				imp.IndexPerType = m.ImportTagCount
				m.ImportTagCount++
			}
			m.ImportSection = append(m.ImportSection, imp)
		}

	case wasm.SectionIDFunction:
		fr, err := NewFunctionSectionReader(s.Data, s.DataOffset, enabledFeatures, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		m.FunctionSection = make([]wasm.Index, 0, boundedCap(fr.Count(), len(s.Data)))
		for {
			idx, err := fr.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			m.FunctionSection = append(m.FunctionSection, idx)
		}

	case wasm.SectionIDTable:
		tr, err := NewTableSectionReader(s.Data, s.DataOffset, enabledFeatures, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		for {
			table, err := tr.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			m.TableSection = append(m.TableSection, table)
		}

	case wasm.SectionIDMemory:
		mr, err := NewMemorySectionReader(s.Data, s.DataOffset, enabledFeatures, b.memoryLimitPages, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		for {
			mem, err := mr.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			m.MemorySection = mem
		}

	case wasm.SectionIDGlobal:
		gr, err := NewGlobalSectionReader(s.Data, s.DataOffset, enabledFeatures, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		m.GlobalSection = make([]wasm.Global, 0, boundedCap(gr.Count(), len(s.Data)))
		for {
			g, err := gr.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			m.GlobalSection = append(m.GlobalSection, g)
		}

	case wasm.SectionIDExport:
		er, err := NewExportSectionReader(s.Data, s.DataOffset, enabledFeatures, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		seen := make(map[string]struct{}, er.Count())
		for {
			at := er.position()
			exp, err := er.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			if _, ok := seen[exp.Name]; ok {
				return wrapSection(s.ID, wasm.NewError(at, wasm.ErrorKindInvalidEncoding,
					"export[%d] duplicates name %q", len(m.ExportSection), exp.Name))
			}
			seen[exp.Name] = struct{}{}
			m.ExportSection = append(m.ExportSection, exp)
		}
		// Appends above reallocate, so take pointers only once the slice is
		// final.
		m.Exports = make(map[string]*wasm.Export, len(m.ExportSection))
		for i := range m.ExportSection {
			m.Exports[m.ExportSection[i].Name] = &m.ExportSection[i]
		}

	case wasm.SectionIDStart:
		r := bytes.NewReader(s.Data)
		idx, _, err := readUint32(r, canonical)
		if err != nil {
			return wrapSection(s.ID, wasm.NewError(s.DataOffset, readErrorKind(err), "get function index: %w", err))
		}
		if r.Len() > 0 {
			return wrapSection(s.ID, sectionLengthMismatch(s, r.Len()))
		}
		m.StartSection = &idx

	case wasm.SectionIDElement:
		er, err := NewElementSectionReader(s.Data, s.DataOffset, enabledFeatures, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		m.ElementSection = make([]wasm.ElementSegment, 0, boundedCap(er.Count(), len(s.Data)))
		for {
			elem, err := er.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			m.ElementSection = append(m.ElementSection, elem)
		}

	case wasm.SectionIDDataCount:
		if err := enabledFeatures.RequireEnabled(wasm.FeatureBulkMemoryOperations); err != nil {
			return wasm.NewError(s.DataOffset, wasm.ErrorKindInvalidEncoding,
				"data count section not supported as %v", err)
		}
		r := bytes.NewReader(s.Data)
		count, _, err := readUint32(r, canonical)
		if err != nil {
			return wrapSection(s.ID, wasm.NewError(s.DataOffset, readErrorKind(err), "get data segment count: %w", err))
		}
		if r.Len() > 0 {
			return wrapSection(s.ID, sectionLengthMismatch(s, r.Len()))
		}
		m.DataCountSection = &count

	case wasm.SectionIDTag:
		if err := enabledFeatures.RequireEnabled(wasm.FeatureExceptionHandling); err != nil {
			return wasm.NewError(s.DataOffset, wasm.ErrorKindInvalidEncoding,
				"tag section invalid as %v", err)
		}
		tr, err := NewTagSectionReader(s.Data, s.DataOffset, enabledFeatures, canonical)
		if err != nil {
			return wrapSection(s.ID, err)
		}
		for {
			tag, err := tr.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return wrapSection(s.ID, err)
			}
			m.TagSection = append(m.TagSection, tag)
		}
	}
	return nil
}

// wrapSection prefixes err with the section name, keeping its kind and byte
// offset reachable through KindOf and OffsetOf.
func wrapSection(id wasm.SectionID, err error) error {
	offset, _ := wasm.OffsetOf(err)
	return wasm.NewError(offset, wasm.KindOf(err), "section %s: %w", wasm.SectionIDName(id), err)
}

// sectionLengthMismatch reports leftover bytes after a section's single
// value.
func sectionLengthMismatch(s Section, leftover int) error {
	return wasm.NewError(s.DataOffset+uint64(len(s.Data)-leftover), wasm.ErrorKindSizeMismatch,
		"invalid section length: expected to be %d but got %d", len(s.Data), len(s.Data)-leftover)
}

// boundedCap caps a preallocation from a declared entry count: entries take
// at least one byte each, so the section length bounds the real count.
func boundedCap(count uint32, sectionLen int) int {
	if uint64(count) > uint64(sectionLen) {
		return sectionLen
	}
	return int(count)
}
