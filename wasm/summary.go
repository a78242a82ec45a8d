package wasm

// ModuleSummary is a read-only digest of a module: each index space finalized
// with imports first, resolved types, and any names from the name section.
// Build one only from a module that passed Validate; Summary does not
// re-check anything.
//
// A summary is plain data. Decoding, re-encoding and re-decoding a module
// yields a summary equal to the first under reflect.DeepEqual.
type ModuleSummary struct {
	// ModuleName is from the name section, possibly empty.
	ModuleName string

	// ImportedFunctionCount, ImportedGlobalCount, ImportedTableCount,
	// ImportedMemoryCount and ImportedTagCount split each index space into
	// the imported prefix and the locally defined rest.
	ImportedFunctionCount,
	ImportedGlobalCount,
	ImportedTableCount,
	ImportedMemoryCount,
	ImportedTagCount uint32

	// Functions is the function index space.
	Functions []FunctionDefinition
	// Globals is the global index space.
	Globals []GlobalType
	// Tables is the table index space.
	Tables []Table
	// Memory is nil unless the module defines or imports a memory.
	Memory *Memory
	// Tags is the exception tag index space.
	Tags []TagDefinition
}

// FunctionDefinition describes one function in the index space, whether
// imported or defined in this module.
type FunctionDefinition struct {
	// Index is the position in the function index space, imports first.
	Index Index
	// Name is from the name section, possibly empty.
	Name string
	// ParamTypes and ResultTypes are the resolved signature.
	ParamTypes  []ValueType
	ResultTypes []ValueType
	// ParamNames is from the local name subsection, nil when it has no
	// entry for this function.
	ParamNames []string
	// ImportModule and ImportName identify the import when IsImport is true.
	ImportModule, ImportName string
	IsImport                 bool
	// ExportNames lists each export of this function in export section order.
	ExportNames []string
}

// TagDefinition describes one exception tag in the tag index space.
type TagDefinition struct {
	// Index is the position in the tag index space, imports first.
	Index Index
	// ParamTypes are the exception arguments. Tags never have results.
	ParamTypes []ValueType
}

// Summary builds the ModuleSummary of m. Call it only on a validated module.
func (m *Module) Summary() *ModuleSummary {
	s := &ModuleSummary{
		Functions:             m.FunctionDefinitions(),
		ImportedFunctionCount: m.ImportFunctionCount,
		ImportedGlobalCount:   m.ImportGlobalCount,
		ImportedTableCount:    m.ImportTableCount,
		ImportedMemoryCount:   m.ImportMemoryCount,
		ImportedTagCount:      m.ImportTagCount,
	}
	if m.NameSection != nil {
		s.ModuleName = m.NameSection.ModuleName
	}

	for i := range m.ImportSection {
		imp := &m.ImportSection[i]
		switch imp.Type {
		case ExternTypeGlobal:
			s.Globals = append(s.Globals, imp.DescGlobal)
		case ExternTypeTable:
			s.Tables = append(s.Tables, imp.DescTable)
		case ExternTypeMemory:
			mem := *imp.DescMem
			s.Memory = &mem
		case ExternTypeTag:
			s.Tags = append(s.Tags, TagDefinition{
				Index:      Index(len(s.Tags)),
				ParamTypes: m.TypeSection[imp.DescTag].Params,
			})
		}
	}

	for i := range m.GlobalSection {
		s.Globals = append(s.Globals, m.GlobalSection[i].Type)
	}
	s.Tables = append(s.Tables, m.TableSection...)
	if m.MemorySection != nil {
		mem := *m.MemorySection
		s.Memory = &mem
	}
	for _, typeIndex := range m.TagSection {
		s.Tags = append(s.Tags, TagDefinition{
			Index:      Index(len(s.Tags)),
			ParamTypes: m.TypeSection[typeIndex].Params,
		})
	}
	return s
}

// FunctionDefinitions returns the function index space as definitions,
// imports first. The section is built on first call and cached, so the
// module must be completely decoded beforehand.
func (m *Module) FunctionDefinitions() []FunctionDefinition {
	m.functionDefinitionSectionInitOnce.Do(m.buildFunctionDefinitions)
	return m.FunctionDefinitionSection
}

func (m *Module) buildFunctionDefinitions() {
	importCount := m.ImportFunctionCount
	if importCount+uint32(len(m.FunctionSection)) == 0 {
		return
	}

	var functionNames NameMap
	var localNames IndirectNameMap
	if m.NameSection != nil {
		functionNames = m.NameSection.FunctionNames
		localNames = m.NameSection.LocalNames
	}

	m.FunctionDefinitionSection = make([]FunctionDefinition, 0, importCount+uint32(len(m.FunctionSection)))

	importFuncIdx := Index(0)
	for i := range m.ImportSection {
		imp := &m.ImportSection[i]
		if imp.Type != ExternTypeFunc {
			continue
		}

		tp := &m.TypeSection[imp.DescFunc]
		m.FunctionDefinitionSection = append(m.FunctionDefinitionSection, FunctionDefinition{
			Index:        importFuncIdx,
			ParamTypes:   tp.Params,
			ResultTypes:  tp.Results,
			ImportModule: imp.Module,
			ImportName:   imp.Name,
			IsImport:     true,
		})
		importFuncIdx++
	}

	for codeIndex, typeIndex := range m.FunctionSection {
		tp := &m.TypeSection[typeIndex]
		m.FunctionDefinitionSection = append(m.FunctionDefinitionSection, FunctionDefinition{
			Index:       Index(codeIndex) + importCount,
			ParamTypes:  tp.Params,
			ResultTypes: tp.Results,
		})
	}

	n, nLen := 0, len(functionNames)
	for i := range m.FunctionDefinitionSection {
		d := &m.FunctionDefinitionSection[i]
		// The function name section begins with imports, but can be sparse.
		// This keeps track of how far in the name section we've searched.
		funcIdx := d.Index
		for ; n < nLen; n++ {
			next := functionNames[n]
			if next.Index > funcIdx {
				break // we have function names, but starting at a later index.
			} else if next.Index == funcIdx {
				d.Name = next.Name
				break
			}
		}

		d.ParamNames = paramNames(localNames, funcIdx, len(d.ParamTypes))

		for ei := range m.ExportSection {
			e := &m.ExportSection[ei]
			if e.Type == ExternTypeFunc && e.Index == funcIdx {
				d.ExportNames = append(d.ExportNames, e.Name)
			}
		}
	}
}

// paramNames returns the name of each parameter of function funcIdx, or nil
// when the local name subsection has no entry for it. Names of true locals,
// those at an index beyond the parameter count, are not parameter names.
func paramNames(localNames IndirectNameMap, funcIdx Index, paramLen int) []string {
	for i := range localNames {
		na := &localNames[i]
		if na.Index != funcIdx {
			continue
		}

		ret := make([]string, paramLen)
		for _, p := range na.NameMap {
			if int(p.Index) < paramLen {
				ret[p.Index] = p.Name
			}
		}
		return ret
	}
	return nil
}
