package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModule_FunctionDefinitions(t *testing.T) {
	nopCode := Code{Body: end}
	tests := []struct {
		name     string
		m        *Module
		expected []FunctionDefinition
	}{
		{
			name: "no functions",
			m:    &Module{},
		},
		{
			name: "without imports",
			m: &Module{
				ExportSection: []Export{
					{Name: "function_index=0", Type: ExternTypeFunc, Index: 0},
					{Name: "function_index=2", Type: ExternTypeFunc, Index: 2},
					{Name: "", Type: ExternTypeGlobal, Index: 0},
					{Name: "function_index=1", Type: ExternTypeFunc, Index: 1},
				},
				GlobalSection:   []Global{{}},
				FunctionSection: []Index{1, 2, 0},
				CodeSection:     []Code{nopCode, nopCode, nopCode},
				TypeSection: []FunctionType{
					{},
					{Params: []ValueType{f64, i32}, Results: []ValueType{ValueTypeV128, i64}},
					{Params: []ValueType{f64, f32}, Results: []ValueType{i64}},
				},
			},
			expected: []FunctionDefinition{
				{
					Index:       0,
					ParamTypes:  []ValueType{f64, i32},
					ResultTypes: []ValueType{ValueTypeV128, i64},
					ExportNames: []string{"function_index=0"},
				},
				{
					Index:       1,
					ParamTypes:  []ValueType{f64, f32},
					ResultTypes: []ValueType{i64},
					ExportNames: []string{"function_index=1"},
				},
				{
					Index:       2,
					ExportNames: []string{"function_index=2"},
				},
			},
		},
		{
			name: "with imports",
			m: &Module{
				ImportFunctionCount: 1,
				ImportSection: []Import{{
					Type:     ExternTypeFunc,
					Module:   "host",
					Name:     "clock",
					DescFunc: 2, // Index of type.
				}},
				ExportSection: []Export{
					{Name: "imported_function", Type: ExternTypeFunc, Index: 0},
					{Name: "function_index=1", Type: ExternTypeFunc, Index: 1},
				},
				FunctionSection: []Index{1},
				CodeSection:     []Code{nopCode},
				TypeSection: []FunctionType{
					{},
					{Params: []ValueType{f64, i32}, Results: []ValueType{ValueTypeV128, i64}},
					{Params: []ValueType{f64, f32}, Results: []ValueType{i64}},
				},
			},
			expected: []FunctionDefinition{
				{
					Index:        0,
					ParamTypes:   []ValueType{f64, f32},
					ResultTypes:  []ValueType{i64},
					ImportModule: "host",
					ImportName:   "clock",
					IsImport:     true,
					ExportNames:  []string{"imported_function"},
				},
				{
					Index:       1,
					ParamTypes:  []ValueType{f64, i32},
					ResultTypes: []ValueType{ValueTypeV128, i64},
					ExportNames: []string{"function_index=1"},
				},
			},
		},
		{
			name: "with names",
			m: &Module{
				ImportFunctionCount: 1,
				TypeSection:         []FunctionType{{}},
				ImportSection:       []Import{{Module: "i", Name: "f", Type: ExternTypeFunc}},
				NameSection: &NameSection{
					ModuleName: "module",
					FunctionNames: NameMap{
						{Index: Index(2), Name: "two"},
						{Index: Index(4), Name: "four"},
						{Index: Index(5), Name: "five"},
					},
				},
				FunctionSection: []Index{0, 0, 0, 0, 0},
				CodeSection:     []Code{nopCode, nopCode, nopCode, nopCode, nopCode},
			},
			expected: []FunctionDefinition{
				{Index: 0, ImportModule: "i", ImportName: "f", IsImport: true},
				{Index: 1},
				{Index: 2, Name: "two"},
				{Index: 3},
				{Index: 4, Name: "four"},
				{Index: 5, Name: "five"},
			},
		},
		{
			name: "with param names",
			m: &Module{
				TypeSection:     []FunctionType{i32i32_i32, i32_v},
				FunctionSection: []Index{0, 1},
				CodeSection:     []Code{nopCode, nopCode},
				NameSection: &NameSection{
					LocalNames: IndirectNameMap{
						// The z entry names a local, not a parameter, so it is
						// not a parameter name.
						{Index: 0, NameMap: NameMap{{Index: 0, Name: "x"}, {Index: 1, Name: "y"}, {Index: 2, Name: "z"}}},
					},
				},
			},
			expected: []FunctionDefinition{
				{
					Index:       0,
					ParamTypes:  []ValueType{i32, i32},
					ResultTypes: []ValueType{i32},
					ParamNames:  []string{"x", "y"},
				},
				{
					Index:      1,
					ParamTypes: []ValueType{i32},
				},
			},
		},
		{
			name: "sparse param names",
			m: &Module{
				TypeSection:     []FunctionType{i32i32_i32},
				FunctionSection: []Index{0},
				CodeSection:     []Code{nopCode},
				NameSection: &NameSection{
					LocalNames: IndirectNameMap{
						{Index: 0, NameMap: NameMap{{Index: 1, Name: "y"}}},
					},
				},
			},
			expected: []FunctionDefinition{
				{
					Index:       0,
					ParamTypes:  []ValueType{i32, i32},
					ResultTypes: []ValueType{i32},
					ParamNames:  []string{"", "y"},
				},
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.m.FunctionDefinitions())
		})
	}

	t.Run("cached across calls", func(t *testing.T) {
		m := &Module{TypeSection: []FunctionType{{}}, FunctionSection: []Index{0}, CodeSection: []Code{nopCode}}
		first := m.FunctionDefinitions()
		second := m.FunctionDefinitions()
		require.Equal(t, first, second)
		require.Same(t, &first[0], &second[0])
	})
}

func TestModule_Summary(t *testing.T) {
	t.Run("empty module", func(t *testing.T) {
		require.Equal(t, &ModuleSummary{}, (&Module{}).Summary())
	})

	t.Run("imports first", func(t *testing.T) {
		importedMemory := &Memory{Min: 1, Max: 2, IsMaxEncoded: true}
		m := &Module{
			TypeSection: []FunctionType{v_v, i32_v, i32i32_i32},
			ImportSection: []Import{
				{Type: ExternTypeFunc, Module: "env", Name: "log", DescFunc: 1},
				{Type: ExternTypeGlobal, Module: "env", Name: "base", DescGlobal: GlobalType{ValType: i32}},
				{Type: ExternTypeTable, Module: "env", Name: "tbl", DescTable: Table{Min: 1, Type: RefTypeFuncref}},
				{Type: ExternTypeMemory, Module: "env", Name: "mem", DescMem: importedMemory},
				{Type: ExternTypeTag, Module: "env", Name: "exn", DescTag: 1},
			},
			ImportFunctionCount: 1,
			ImportGlobalCount:   1,
			ImportTableCount:    1,
			ImportMemoryCount:   1,
			ImportTagCount:      1,
			FunctionSection:     []Index{2},
			CodeSection:         []Code{{Body: end}},
			GlobalSection:       []Global{{Type: GlobalType{ValType: i64, Mutable: true}}},
			TableSection:        []Table{{Min: 2, Type: RefTypeExternref}},
			TagSection:          []Index{0},
			ExportSection:       []Export{{Name: "add", Type: ExternTypeFunc, Index: 1}},
			NameSection: &NameSection{
				ModuleName:    "calc",
				FunctionNames: NameMap{{Index: 1, Name: "add"}},
			},
		}

		s := m.Summary()
		require.Equal(t, &ModuleSummary{
			ModuleName:            "calc",
			ImportedFunctionCount: 1,
			ImportedGlobalCount:   1,
			ImportedTableCount:    1,
			ImportedMemoryCount:   1,
			ImportedTagCount:      1,
			Functions: []FunctionDefinition{
				{
					Index:        0,
					ParamTypes:   []ValueType{i32},
					ImportModule: "env",
					ImportName:   "log",
					IsImport:     true,
				},
				{
					Index:       1,
					Name:        "add",
					ParamTypes:  []ValueType{i32, i32},
					ResultTypes: []ValueType{i32},
					ExportNames: []string{"add"},
				},
			},
			Globals: []GlobalType{{ValType: i32}, {ValType: i64, Mutable: true}},
			Tables:  []Table{{Min: 1, Type: RefTypeFuncref}, {Min: 2, Type: RefTypeExternref}},
			Memory:  &Memory{Min: 1, Max: 2, IsMaxEncoded: true},
			Tags: []TagDefinition{
				{Index: 0, ParamTypes: []ValueType{i32}},
				{Index: 1},
			},
		}, s)

		// The summary owns a copy of the memory limits.
		require.NotSame(t, importedMemory, s.Memory)
	})

	t.Run("module-defined memory", func(t *testing.T) {
		m := &Module{MemorySection: &Memory{Min: 3}}
		s := m.Summary()
		require.Equal(t, &Memory{Min: 3}, s.Memory)
		require.NotSame(t, m.MemorySection, s.Memory)
	})
}
