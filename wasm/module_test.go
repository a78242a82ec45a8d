package wasm

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

func TestFunctionType_String(t *testing.T) {
	tests := []struct {
		functype *FunctionType
		exp      string
	}{
		{functype: &FunctionType{}, exp: "v_v"},
		{functype: &FunctionType{Params: []ValueType{i32}}, exp: "i32_v"},
		{functype: &FunctionType{Params: []ValueType{i32, f64}}, exp: "i32f64_v"},
		{functype: &FunctionType{Params: []ValueType{f32, i32, f64}}, exp: "f32i32f64_v"},
		{functype: &FunctionType{Results: []ValueType{i64}}, exp: "v_i64"},
		{functype: &FunctionType{Results: []ValueType{i64, f32}}, exp: "v_i64f32"},
		{functype: &FunctionType{Results: []ValueType{f32, i32, f64}}, exp: "v_f32i32f64"},
		{functype: &FunctionType{Params: []ValueType{i32}, Results: []ValueType{i64}}, exp: "i32_i64"},
		{functype: &FunctionType{Params: []ValueType{i64, f32}, Results: []ValueType{i64, f32}}, exp: "i64f32_i64f32"},
		{functype: &FunctionType{Params: []ValueType{i64, f32, f64}, Results: []ValueType{f32, i32, f64}}, exp: "i64f32f64_f32i32f64"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.functype.String(), func(t *testing.T) {
			require.Equal(t, tc.exp, tc.functype.String())
			require.Equal(t, tc.exp, tc.functype.key())
			require.Equal(t, tc.exp, tc.functype.string)
		})
	}
}

func TestSectionIDName(t *testing.T) {
	tests := []struct {
		name     string
		input    SectionID
		expected string
	}{
		{"custom", SectionIDCustom, "custom"},
		{"type", SectionIDType, "type"},
		{"import", SectionIDImport, "import"},
		{"function", SectionIDFunction, "function"},
		{"table", SectionIDTable, "table"},
		{"memory", SectionIDMemory, "memory"},
		{"global", SectionIDGlobal, "global"},
		{"export", SectionIDExport, "export"},
		{"start", SectionIDStart, "start"},
		{"element", SectionIDElement, "element"},
		{"code", SectionIDCode, "code"},
		{"data", SectionIDData, "data"},
		{"data_count", SectionIDDataCount, "data_count"},
		{"tag", SectionIDTag, "tag"},
		{"unknown", 100, "unknown"},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SectionIDName(tc.input))
		})
	}
}

func TestMemory_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mem         *Memory
		expectedErr string
	}{
		{
			name: "ok",
			mem:  &Memory{Min: 2, Max: 2},
		},
		{
			name:        "max < min",
			mem:         &Memory{Min: 2, Max: 0, IsMaxEncoded: true},
			expectedErr: "min 2 pages (128 Ki) > max 0 pages (0 Ki)",
		},
		{
			name:        "min > limit",
			mem:         &Memory{Min: math.MaxUint32},
			expectedErr: "min 4294967295 pages (3 Ti) over limit of 65536 pages (4 Gi)",
		},
		{
			name:        "max > limit",
			mem:         &Memory{Max: math.MaxUint32, IsMaxEncoded: true},
			expectedErr: "max 4294967295 pages (3 Ti) over limit of 65536 pages (4 Gi)",
		},
		{
			name:        "shared memory without max",
			mem:         &Memory{Min: 1, Max: 2, IsShared: true},
			expectedErr: "shared memory requires a maximum size to be specified",
		},
		{
			name: "shared memory with max",
			mem:  &Memory{Min: 1, Max: 2, IsMaxEncoded: true, IsShared: true},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			err := tc.mem.Validate(MemoryLimitPages)
			if tc.expectedErr == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.expectedErr)
			}
		})
	}
}

func TestModule_AllDeclarations(t *testing.T) {
	tests := []struct {
		module            *Module
		expectedFunctions []Index
		expectedGlobals   []GlobalType
		expectedMemory    *Memory
		expectedTables    []Table
	}{
		// Functions.
		{
			module: &Module{
				ImportSection:   []Import{{Type: ExternTypeFunc, DescFunc: 10000}},
				FunctionSection: []Index{10, 20, 30},
			},
			expectedFunctions: []Index{10000, 10, 20, 30},
		},
		{
			module: &Module{
				FunctionSection: []Index{10, 20, 30},
			},
			expectedFunctions: []Index{10, 20, 30},
		},
		{
			module: &Module{
				ImportSection: []Import{{Type: ExternTypeFunc, DescFunc: 10000}},
			},
			expectedFunctions: []Index{10000},
		},
		// Globals.
		{
			module: &Module{
				ImportSection: []Import{{Type: ExternTypeGlobal, DescGlobal: GlobalType{Mutable: false}}},
				GlobalSection: []Global{{Type: GlobalType{Mutable: true}}},
			},
			expectedGlobals: []GlobalType{{Mutable: false}, {Mutable: true}},
		},
		{
			module: &Module{
				GlobalSection: []Global{{Type: GlobalType{Mutable: true}}},
			},
			expectedGlobals: []GlobalType{{Mutable: true}},
		},
		// Memories.
		{
			module: &Module{
				ImportSection: []Import{{Type: ExternTypeMemory, DescMem: &Memory{Min: 1, Max: 10}}},
			},
			expectedMemory: &Memory{Min: 1, Max: 10},
		},
		{
			module: &Module{
				MemorySection: &Memory{Min: 100},
			},
			expectedMemory: &Memory{Min: 100},
		},
		// Tables.
		{
			module: &Module{
				ImportSection: []Import{{Type: ExternTypeTable, DescTable: Table{Min: 1}}},
			},
			expectedTables: []Table{{Min: 1}},
		},
		{
			module: &Module{
				TableSection: []Table{{Min: 10}},
			},
			expectedTables: []Table{{Min: 10}},
		},
		// Mixed.
		{
			module: &Module{
				ImportSection: []Import{
					{Type: ExternTypeFunc, DescFunc: 3},
					{Type: ExternTypeGlobal, DescGlobal: GlobalType{ValType: i64}},
					{Type: ExternTypeTable, DescTable: Table{Min: 1}},
				},
				FunctionSection: []Index{0},
				TableSection:    []Table{{Min: 2}},
			},
			expectedFunctions: []Index{3, 0},
			expectedGlobals:   []GlobalType{{ValType: i64}},
			expectedTables:    []Table{{Min: 1}, {Min: 2}},
		},
	}

	for i, tt := range tests {
		tc := tt
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			functions, globals, memory, tables, err := tc.module.AllDeclarations()
			require.NoError(t, err)
			require.Equal(t, tc.expectedFunctions, functions)
			require.Equal(t, tc.expectedGlobals, globals)
			require.Equal(t, tc.expectedTables, tables)
			require.Equal(t, tc.expectedMemory, memory)
		})
	}

	t.Run("at most one memory", func(t *testing.T) {
		t.Run("import and section", func(t *testing.T) {
			m := &Module{
				ImportSection: []Import{{Type: ExternTypeMemory, DescMem: &Memory{Min: 1}}},
				MemorySection: &Memory{Min: 2},
				SectionOffsets: [SectionIDTag + 1]uint64{
					SectionIDMemory: 0x2a,
				},
			}
			_, _, _, _, err := m.AllDeclarations()
			require.EqualError(t, err, "at most one memory allowed in module")

			var ve *Error
			require.ErrorAs(t, err, &ve)
			require.Equal(t, ErrorKindCountMismatch, ve.Kind)
			require.Equal(t, uint64(0x2a), ve.Offset)
		})
		t.Run("two imports", func(t *testing.T) {
			m := &Module{
				ImportSection: []Import{
					{Type: ExternTypeMemory, DescMem: &Memory{Min: 1}},
					{Type: ExternTypeMemory, DescMem: &Memory{Min: 2}},
				},
				SectionOffsets: [SectionIDTag + 1]uint64{
					SectionIDImport: 0x10,
				},
			}
			_, _, _, _, err := m.AllDeclarations()
			require.EqualError(t, err, "at most one memory allowed in module")

			var ve *Error
			require.ErrorAs(t, err, &ve)
			require.Equal(t, uint64(0x10), ve.Offset)
		})
	})
}

func TestModule_SectionElementCount(t *testing.T) {
	i32Const1 := ConstantExpression{Opcode: OpcodeI32Const, Data: leb128.EncodeInt32(1)}
	start := Index(2)
	dataCount := uint32(1)
	m := &Module{
		CustomSections:   []*CustomSection{{Name: "producers"}},
		NameSection:      &NameSection{ModuleName: "simple"},
		TypeSection:      []FunctionType{v_v, v_i32},
		ImportSection:    []Import{{Type: ExternTypeFunc, Module: "env", Name: "f"}},
		FunctionSection:  []Index{0, 1},
		TableSection:     []Table{{Min: 1, Type: RefTypeFuncref}},
		MemorySection:    &Memory{Min: 1},
		GlobalSection:    []Global{{Type: GlobalType{ValType: i32}, Init: i32Const1}},
		ExportSection:    []Export{{Name: "f1", Type: ExternTypeFunc, Index: 1}, {Name: "f2", Type: ExternTypeFunc, Index: 2}},
		StartSection:     &start,
		ElementSection:   []ElementSegment{{Mode: ElementModePassive, Type: RefTypeFuncref}},
		CodeSection:      []Code{{Body: end}, {Body: end}},
		DataSection:      []DataSegment{{Passive: true}},
		DataCountSection: &dataCount,
		TagSection:       []Index{0},
	}

	tests := []struct {
		id       SectionID
		expected uint32
	}{
		{SectionIDCustom, 2}, // NameSection counts as one more custom section.
		{SectionIDType, 2},
		{SectionIDImport, 1},
		{SectionIDFunction, 2},
		{SectionIDTable, 1},
		{SectionIDMemory, 1},
		{SectionIDGlobal, 1},
		{SectionIDExport, 2},
		{SectionIDStart, 1},
		{SectionIDElement, 1},
		{SectionIDCode, 2},
		{SectionIDData, 1},
		{SectionIDDataCount, 1},
		{SectionIDTag, 1},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(SectionIDName(tc.id), func(t *testing.T) {
			require.Equal(t, tc.expected, m.SectionElementCount(tc.id))
			require.Equal(t, uint32(0), (&Module{}).SectionElementCount(tc.id))
		})
	}
}

func TestValidateConstExpression(t *testing.T) {
	t.Run("invalid opcode", func(t *testing.T) {
		expr := ConstantExpression{Opcode: OpcodeNop}
		err := validateConstExpression(nil, 0, &expr, valueTypeUnknown, 5)
		require.EqualError(t, err, "invalid opcode for const expression: 0x1")

		var ve *Error
		require.ErrorAs(t, err, &ve)
		require.Equal(t, ErrorKindInvalidEncoding, ve.Kind)
		require.Equal(t, uint64(5), ve.Offset)
	})
	for _, vt := range []ValueType{i32, i64, f32, f64} {
		t.Run(ValueTypeName(vt), func(t *testing.T) {
			t.Run("valid", func(t *testing.T) {
				expr := ConstantExpression{}
				switch vt {
				case i32:
					expr.Data = []byte{1}
					expr.Opcode = OpcodeI32Const
				case i64:
					expr.Data = []byte{2}
					expr.Opcode = OpcodeI64Const
				case f32:
					expr.Data = []byte{1, 2, 3, 4}
					expr.Opcode = OpcodeF32Const
				case f64:
					expr.Data = []byte{1, 2, 3, 4, 5, 6, 7, 8}
					expr.Opcode = OpcodeF64Const
				}

				err := validateConstExpression(nil, 0, &expr, vt, 0)
				require.NoError(t, err)
			})
			t.Run("invalid", func(t *testing.T) {
				// Empty data must be failure.
				expr := ConstantExpression{Data: make([]byte, 0)}
				var expectedErr string
				switch vt {
				case i32:
					expr.Opcode = OpcodeI32Const
					expectedErr = "read i32: EOF"
				case i64:
					expr.Opcode = OpcodeI64Const
					expectedErr = "read i64: EOF"
				case f32:
					expr.Opcode = OpcodeF32Const
					expectedErr = "read f32: short buffer"
				case f64:
					expr.Opcode = OpcodeF64Const
					expectedErr = "read f64: short buffer"
				}
				err := validateConstExpression(nil, 0, &expr, vt, 0)
				require.EqualError(t, err, expectedErr)
				require.Equal(t, ErrorKindUnexpectedEOF, KindOf(err))
			})
		})
	}
	t.Run("ref types", func(t *testing.T) {
		t.Run("ref.func", func(t *testing.T) {
			expr := &ConstantExpression{Data: []byte{5}, Opcode: OpcodeRefFunc}
			err := validateConstExpression(nil, 10, expr, ValueTypeFuncref, 0)
			require.NoError(t, err)
			err = validateConstExpression(nil, 2, expr, ValueTypeFuncref, 0)
			require.EqualError(t, err, "ref.func index out of range [5] with length 1")
			require.Equal(t, ErrorKindUnknownIndex, KindOf(err))
		})
		t.Run("ref.null", func(t *testing.T) {
			err := validateConstExpression(nil, 0,
				&ConstantExpression{Data: []byte{ValueTypeFuncref}, Opcode: OpcodeRefNull},
				ValueTypeFuncref, 0)
			require.NoError(t, err)
			err = validateConstExpression(nil, 0,
				&ConstantExpression{Data: []byte{ValueTypeExternref}, Opcode: OpcodeRefNull},
				ValueTypeExternref, 0)
			require.NoError(t, err)
			err = validateConstExpression(nil, 0,
				&ConstantExpression{Data: []byte{0xff}, Opcode: OpcodeRefNull},
				ValueTypeExternref, 0)
			require.EqualError(t, err, "invalid type for ref.null: 0xff")
			err = validateConstExpression(nil, 0,
				&ConstantExpression{Opcode: OpcodeRefNull},
				ValueTypeExternref, 0)
			require.EqualError(t, err, "read reference type for ref.null: short buffer")
		})
	})
	t.Run("vector", func(t *testing.T) {
		err := validateConstExpression(nil, 0,
			&ConstantExpression{Data: make([]byte, 16), Opcode: OpcodeVecV128Const},
			ValueTypeV128, 0)
		require.NoError(t, err)
		err = validateConstExpression(nil, 0,
			&ConstantExpression{Data: make([]byte, 8), Opcode: OpcodeVecV128Const},
			ValueTypeV128, 0)
		require.EqualError(t, err, "v128.const needs 16 bytes but was 8 bytes")
	})
	t.Run("global expr", func(t *testing.T) {
		t.Run("failed to read global index", func(t *testing.T) {
			// Empty data for global index is invalid.
			expr := &ConstantExpression{Data: make([]byte, 0), Opcode: OpcodeGlobalGet}
			err := validateConstExpression(nil, 0, expr, valueTypeUnknown, 0)
			require.EqualError(t, err, "read index of global: EOF")
		})
		t.Run("global index out of range", func(t *testing.T) {
			// Data holds the index in leb128 and this time the value exceeds len(globals) (=0).
			expr := &ConstantExpression{Data: []byte{1}, Opcode: OpcodeGlobalGet}
			var globals []GlobalType
			err := validateConstExpression(globals, 0, expr, valueTypeUnknown, 0)
			require.EqualError(t, err, "global index out of range")
		})

		t.Run("type mismatch", func(t *testing.T) {
			for _, vt := range []ValueType{i32, i64, f32, f64} {
				t.Run(ValueTypeName(vt), func(t *testing.T) {
					// The index specified in Data equals zero.
					expr := &ConstantExpression{Data: []byte{0}, Opcode: OpcodeGlobalGet}
					globals := []GlobalType{{ValType: valueTypeUnknown}}

					err := validateConstExpression(globals, 0, expr, vt, 0)
					require.Error(t, err)
					require.Equal(t, ErrorKindTypeMismatch, KindOf(err))
				})
			}
		})
		t.Run("ok", func(t *testing.T) {
			for _, vt := range []ValueType{i32, i64, f32, f64} {
				t.Run(ValueTypeName(vt), func(t *testing.T) {
					// The index specified in Data equals zero.
					expr := &ConstantExpression{Data: []byte{0}, Opcode: OpcodeGlobalGet}
					globals := []GlobalType{{ValType: vt}}

					err := validateConstExpression(globals, 0, expr, vt, 0)
					require.NoError(t, err)
				})
			}
		})
	})
	t.Run("type mismatch", func(t *testing.T) {
		expr := &ConstantExpression{Data: []byte{0}, Opcode: OpcodeI32Const}
		err := validateConstExpression(nil, 0, expr, i64, 0)
		require.EqualError(t, err, "const expression type mismatch expected i64 but got i32")
	})
}

func TestModule_Validate(t *testing.T) {
	one := uint32(1)
	m := &Module{
		TypeSection:         []FunctionType{v_v, v_i32},
		ImportSection:       []Import{{Type: ExternTypeFunc, DescFunc: 0, Module: "env", Name: "tick"}},
		ImportFunctionCount: 1,
		FunctionSection:     []Index{1},
		CodeSection:         []Code{{Body: []byte{OpcodeI32Const, 42, OpcodeEnd}}},
		MemorySection:       &Memory{Min: 1, Max: 2, IsMaxEncoded: true},
		GlobalSection: []Global{{
			Type: GlobalType{ValType: i32, Mutable: true},
			Init: ConstantExpression{Opcode: OpcodeI32Const, Data: leb128.EncodeInt32(0)},
		}},
		ExportSection: []Export{
			{Type: ExternTypeFunc, Index: 1, Name: "answer"},
			{Type: ExternTypeMemory, Index: 0, Name: "memory"},
		},
		TableSection: []Table{{Min: 1, Type: RefTypeFuncref}},
		ElementSection: []ElementSegment{{
			Mode:       ElementModeActive,
			Type:       RefTypeFuncref,
			OffsetExpr: ConstantExpression{Opcode: OpcodeI32Const, Data: leb128.EncodeInt32(0)},
			Init:       []Index{1},
		}},
		DataSection: []DataSegment{{
			OffsetExpression: ConstantExpression{Opcode: OpcodeI32Const, Data: leb128.EncodeInt32(0)},
			Init:             []byte{1},
		}},
		DataCountSection: &one,
	}

	require.NoError(t, m.Validate(Features20220419))
	require.NoError(t, m.ValidateAll(Features20220419))
	require.NoError(t, m.ValidateParallel(Features20220419, 4, true))
}

func TestModule_Validate_Errors(t *testing.T) {
	zero := Index(0)
	one := uint32(1)
	tests := []struct {
		name           string
		input          *Module
		features       Features
		expectedErr    string
		expectedKind   ErrorKind
		expectedOffset uint64
	}{
		{
			name: "start function has an invalid type",
			input: &Module{
				TypeSection:     nil,
				FunctionSection: []Index{0},
				CodeSection:     []Code{{Body: end}},
				StartSection:    &zero,
				SectionOffsets:  [SectionIDTag + 1]uint64{SectionIDStart: 0x51},
			},
			features:       Features20191205,
			expectedErr:    "invalid start function: func[0] has an invalid type",
			expectedKind:   ErrorKindUnknownIndex,
			expectedOffset: 0x51,
		},
		{
			name: "start function signature not nullary",
			input: &Module{
				TypeSection:     []FunctionType{v_i32},
				FunctionSection: []Index{0},
				CodeSection:     []Code{{Body: []byte{OpcodeI32Const, 1, OpcodeEnd}}},
				StartSection:    &zero,
				SectionOffsets:  [SectionIDTag + 1]uint64{SectionIDStart: 0x51},
			},
			features:       Features20191205,
			expectedErr:    "invalid start function: func[0] must have an empty (nullary) signature: v_i32",
			expectedKind:   ErrorKindTypeMismatch,
			expectedOffset: 0x51,
		},
		{
			name: "import function type out of range",
			input: &Module{
				ImportSection:       []Import{{Type: ExternTypeFunc, Module: "m", Name: "n", DescFunc: 5}},
				ImportFunctionCount: 1,
				SectionOffsets:      [SectionIDTag + 1]uint64{SectionIDImport: 0x10},
			},
			features:       Features20191205,
			expectedErr:    `invalid import["m"."n"] function: type index out of range`,
			expectedKind:   ErrorKindUnknownIndex,
			expectedOffset: 0x10,
		},
		{
			name: "export unknown function",
			input: &Module{
				ExportSection:  []Export{{Type: ExternTypeFunc, Index: 0, Name: "f"}},
				SectionOffsets: [SectionIDTag + 1]uint64{SectionIDExport: 0x33},
			},
			features:       Features20191205,
			expectedErr:    `unknown function for export["f"]`,
			expectedKind:   ErrorKindUnknownIndex,
			expectedOffset: 0x33,
		},
		{
			name: "tag section disabled",
			input: &Module{
				TypeSection:    []FunctionType{v_v},
				TagSection:     []Index{0},
				SectionOffsets: [SectionIDTag + 1]uint64{SectionIDTag: 0x60},
			},
			features:       Features20220419,
			expectedErr:    `tag section: feature "exception-handling" is disabled`,
			expectedKind:   ErrorKindInvalidEncoding,
			expectedOffset: 0x60,
		},
		{
			name: "function body positioned in binary",
			input: &Module{
				TypeSection:     []FunctionType{v_v},
				FunctionSection: []Index{0},
				CodeSection:     []Code{{Body: []byte{OpcodeF32Abs}, BodyOffsetInBinary: 0x80}},
			},
			features:       Features20191205,
			expectedErr:    "invalid function[0]: cannot pop the 1st f32 operand for f32.abs: f32 missing",
			expectedKind:   ErrorKindStackUnderflow,
			expectedOffset: 0x80,
		},
		{
			name: "active element without table",
			input: &Module{
				ElementSection: []ElementSegment{{Mode: ElementModeActive}},
				SectionOffsets: [SectionIDTag + 1]uint64{SectionIDElement: 0x44},
			},
			features:       Features20191205,
			expectedErr:    "unknown table 0 as active element target",
			expectedKind:   ErrorKindUnknownIndex,
			expectedOffset: 0x44,
		},
		{
			name: "data count disagrees with data section",
			input: &Module{
				DataCountSection: &one,
				SectionOffsets:   [SectionIDTag + 1]uint64{SectionIDDataCount: 0x5c},
			},
			features:       Features20220419,
			expectedErr:    "data count section (1) doesn't match the length of data section (0)",
			expectedKind:   ErrorKindCountMismatch,
			expectedOffset: 0x5c,
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.Validate(tc.features)
			require.EqualError(t, err, tc.expectedErr)

			var ve *Error
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tc.expectedKind, ve.Kind)
			require.Equal(t, tc.expectedOffset, ve.Offset)
		})
	}
}

func TestModule_validateStartSection(t *testing.T) {
	t.Run("no start section", func(t *testing.T) {
		m := Module{}
		err := m.validateStartSection()
		require.NoError(t, err)
	})

	t.Run("invalid type", func(t *testing.T) {
		for _, ft := range []FunctionType{
			{Params: []ValueType{i32}},
			{Results: []ValueType{i32}},
			{Params: []ValueType{i32}, Results: []ValueType{i32}},
		} {
			tc := ft
			t.Run(tc.String(), func(t *testing.T) {
				index := Index(0)
				m := Module{StartSection: &index, FunctionSection: []Index{0}, TypeSection: []FunctionType{tc}}
				err := m.validateStartSection()
				require.EqualError(t, err,
					fmt.Sprintf("invalid start function: func[0] must have an empty (nullary) signature: %s", tc.String()))
				require.Equal(t, ErrorKindTypeMismatch, KindOf(err))
			})
		}
	})
	t.Run("func index out of range", func(t *testing.T) {
		index := Index(5)
		m := Module{StartSection: &index, FunctionSection: []Index{0}, TypeSection: []FunctionType{v_v}}
		err := m.validateStartSection()
		require.EqualError(t, err, "invalid start function: func[5] has an invalid type")
		require.Equal(t, ErrorKindUnknownIndex, KindOf(err))
	})
	t.Run("imported valid func", func(t *testing.T) {
		index := Index(1)
		m := Module{
			StartSection:        &index,
			TypeSection:         []FunctionType{{}, {Results: []ValueType{i32}}},
			ImportFunctionCount: 2,
			ImportSection: []Import{
				{Type: ExternTypeFunc, DescFunc: 1},
				// import with index 1 is global but this should be skipped when searching imported functions.
				{Type: ExternTypeGlobal},
				{Type: ExternTypeFunc, DescFunc: 0}, // This one must be selected.
			},
		}
		err := m.validateStartSection()
		require.NoError(t, err)
	})
}

func TestModule_validateGlobals(t *testing.T) {
	t.Run("too many globals", func(t *testing.T) {
		m := Module{}
		err := m.validateGlobals(make([]GlobalType, 10), 0, 9)
		require.EqualError(t, err, "too many globals in a module")
		require.Equal(t, ErrorKindCountMismatch, KindOf(err))
	})
	t.Run("global index out of range", func(t *testing.T) {
		m := Module{GlobalSection: []Global{
			{
				Type: GlobalType{ValType: i32},
				// Trying to reference globals[1] which is not imported.
				Init: ConstantExpression{Opcode: OpcodeGlobalGet, Data: []byte{1}},
			},
		}}
		err := m.validateGlobals(nil, 0, 9)
		require.EqualError(t, err, "global index out of range")
	})
	t.Run("invalid const expression", func(t *testing.T) {
		m := Module{GlobalSection: []Global{
			{
				Type: GlobalType{ValType: valueTypeUnknown},
				Init: ConstantExpression{Opcode: OpcodeUnreachable},
			},
		}}
		err := m.validateGlobals(nil, 0, 9)
		require.EqualError(t, err, "invalid opcode for const expression: 0x0")
	})
	t.Run("ok", func(t *testing.T) {
		m := Module{GlobalSection: []Global{
			{
				Type: GlobalType{ValType: i32},
				Init: ConstantExpression{Opcode: OpcodeI32Const, Data: leb128.EncodeInt32(1)},
			},
		}}
		err := m.validateGlobals(nil, 0, 9)
		require.NoError(t, err)
	})
	t.Run("ok with imported global", func(t *testing.T) {
		m := Module{
			ImportGlobalCount: 1,
			GlobalSection: []Global{
				{
					Type: GlobalType{ValType: i32},
					// Trying to reference globals[0] which is imported.
					Init: ConstantExpression{Opcode: OpcodeGlobalGet, Data: []byte{0}},
				},
			},
			ImportSection: []Import{{Type: ExternTypeGlobal}},
		}
		globalDeclarations := []GlobalType{
			{ValType: i32}, // Imported one.
			{},             // the local one trying to validate.
		}
		err := m.validateGlobals(globalDeclarations, 0, 9)
		require.NoError(t, err)
	})
}

func TestModule_validateTags(t *testing.T) {
	t.Run("no tags", func(t *testing.T) {
		m := Module{}
		tags, err := m.validateTags(Features20191205)
		require.NoError(t, err)
		require.Nil(t, tags)
	})
	t.Run("disabled", func(t *testing.T) {
		m := Module{
			TypeSection:    []FunctionType{v_v},
			TagSection:     []Index{0},
			SectionOffsets: [SectionIDTag + 1]uint64{SectionIDTag: 0x60},
		}
		_, err := m.validateTags(Features20220419)
		require.EqualError(t, err, `tag section: feature "exception-handling" is disabled`)

		var ve *Error
		require.ErrorAs(t, err, &ve)
		require.Equal(t, ErrorKindInvalidEncoding, ve.Kind)
		require.Equal(t, uint64(0x60), ve.Offset)
	})
	t.Run("type index out of range", func(t *testing.T) {
		m := Module{
			TypeSection: []FunctionType{v_v},
			TagSection:  []Index{3},
		}
		_, err := m.validateTags(Features20220419 | FeatureExceptionHandling)
		require.EqualError(t, err, "invalid tag[0]: type section index 3 out of range")
		require.Equal(t, ErrorKindUnknownIndex, KindOf(err))
	})
	t.Run("non-empty result", func(t *testing.T) {
		m := Module{
			TypeSection: []FunctionType{v_v, v_i32},
			TagSection:  []Index{0, 1},
		}
		_, err := m.validateTags(Features20220419 | FeatureExceptionHandling)
		require.EqualError(t, err, "invalid tag[1]: signature must have an empty result: v_i32")
		require.Equal(t, ErrorKindTypeMismatch, KindOf(err))
	})
	t.Run("ok with imports", func(t *testing.T) {
		m := Module{
			TypeSection:    []FunctionType{v_v, v_i32, i32_v},
			ImportSection:  []Import{{Type: ExternTypeTag, DescTag: 0}},
			ImportTagCount: 1,
			TagSection:     []Index{2},
		}
		tags, err := m.validateTags(Features20220419 | FeatureExceptionHandling)
		require.NoError(t, err)
		require.Equal(t, 2, len(tags))
		require.Equal(t, "v_v", tags[0].String())
		require.Equal(t, "i32_v", tags[1].String())
	})
}

func TestModule_validateFunctions(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		m := Module{
			TypeSection:     []FunctionType{v_v},
			FunctionSection: []Index{0},
			CodeSection:     []Code{{Body: []byte{OpcodeI32Const, 0, OpcodeDrop, OpcodeEnd}}},
		}
		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 1, false)
		require.NoError(t, err)
	})
	t.Run("too many functions", func(t *testing.T) {
		m := Module{}
		err := m.validateFunctions(Features20191205, []Index{1, 2, 3, 4}, nil, nil, nil, nil, 3, 1, false)
		require.EqualError(t, err, "too many functions (4) in a module")
		require.Equal(t, ErrorKindCountMismatch, KindOf(err))
	})
	t.Run("function, but no code", func(t *testing.T) {
		m := Module{
			TypeSection:     []FunctionType{v_v},
			FunctionSection: []Index{0},
			CodeSection:     nil,
		}
		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 1, false)
		require.EqualError(t, err, "code count (0) != function count (1)")
		require.Equal(t, ErrorKindCountMismatch, KindOf(err))
	})
	t.Run("function out of range of code", func(t *testing.T) {
		m := Module{
			TypeSection:     []FunctionType{v_v},
			FunctionSection: []Index{1},
			CodeSection:     []Code{{Body: end}},
		}
		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 1, false)
		require.EqualError(t, err, "invalid function[0]: type section index 1 out of range")
		require.Equal(t, ErrorKindUnknownIndex, KindOf(err))
	})
	t.Run("invalid", func(t *testing.T) {
		m := Module{
			TypeSection:     []FunctionType{v_v},
			FunctionSection: []Index{0},
			CodeSection:     []Code{{Body: []byte{OpcodeF32Abs}}},
		}
		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 1, false)
		require.EqualError(t, err, "invalid function[0]: cannot pop the 1st f32 operand for f32.abs: f32 missing")
	})
	t.Run("in- exported", func(t *testing.T) {
		m := Module{
			TypeSection:     []FunctionType{v_v},
			FunctionSection: []Index{0},
			CodeSection:     []Code{{Body: []byte{OpcodeF32Abs}}},
			ExportSection:   []Export{{Name: "f1", Type: ExternTypeFunc, Index: 0}},
		}
		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 1, false)
		require.EqualError(t, err,
			`invalid function[0] export["f1"]: cannot pop the 1st f32 operand for f32.abs: f32 missing`)
	})
	t.Run("in- exported after import", func(t *testing.T) {
		m := Module{
			ImportFunctionCount: 1,
			TypeSection:         []FunctionType{v_v},
			ImportSection:       []Import{{Type: ExternTypeFunc}},
			FunctionSection:     []Index{0},
			CodeSection:         []Code{{Body: []byte{OpcodeF32Abs}}},
			ExportSection:       []Export{{Name: "f1", Type: ExternTypeFunc, Index: 1}},
		}
		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 1, false)
		require.EqualError(t, err,
			`invalid function[0] export["f1"]: cannot pop the 1st f32 operand for f32.abs: f32 missing`)
	})
	t.Run("in- exported twice", func(t *testing.T) {
		m := Module{
			TypeSection:     []FunctionType{v_v},
			FunctionSection: []Index{0},
			CodeSection:     []Code{{Body: []byte{OpcodeF32Abs}}},
			ExportSection: []Export{
				{Name: "f2", Type: ExternTypeFunc, Index: 0},
				{Name: "f1", Type: ExternTypeFunc, Index: 0},
			},
		}
		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 1, false)
		// Export names are sorted regardless of the order they were declared in.
		require.EqualError(t, err,
			`invalid function[0] export["f1","f2"]: cannot pop the 1st f32 operand for f32.abs: f32 missing`)
	})
	t.Run("collect all", func(t *testing.T) {
		m := Module{TypeSection: []FunctionType{v_v}}
		for i := 0; i < 8; i++ {
			m.FunctionSection = append(m.FunctionSection, 0)
			body := end
			if i%2 == 1 {
				body = []byte{OpcodeF32Abs}
			}
			m.CodeSection = append(m.CodeSection, Code{Body: body})
		}

		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 1, true)
		require.Error(t, err)

		list, ok := err.(ErrorList)
		require.True(t, ok)
		require.Equal(t, 4, len(list))
		for i, e := range list {
			require.EqualError(t, e,
				fmt.Sprintf("invalid function[%d]: cannot pop the 1st f32 operand for f32.abs: f32 missing", i*2+1))
		}
		require.EqualError(t, err,
			"invalid function[1]: cannot pop the 1st f32 operand for f32.abs: f32 missing (and 3 more errors)")
	})
	t.Run("parallel matches sequential", func(t *testing.T) {
		m := Module{TypeSection: []FunctionType{v_v}}
		for i := 0; i < 8; i++ {
			m.FunctionSection = append(m.FunctionSection, 0)
			body := end
			if i%2 == 1 {
				body = []byte{OpcodeF32Abs}
			}
			m.CodeSection = append(m.CodeSection, Code{Body: body})
		}

		err := m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 4, true)
		require.Error(t, err)

		list, ok := err.(ErrorList)
		require.True(t, ok)
		require.Equal(t, 4, len(list))
		for i, e := range list {
			require.EqualError(t, e,
				fmt.Sprintf("invalid function[%d]: cannot pop the 1st f32 operand for f32.abs: f32 missing", i*2+1))
		}

		// Stopping at the first defect returns the lowest function index even
		// when a later function fails first in wall-clock order.
		err = m.validateFunctions(Features20191205, nil, nil, nil, nil, nil, MaximumFunctionIndex, 4, false)
		require.EqualError(t, err, "invalid function[1]: cannot pop the 1st f32 operand for f32.abs: f32 missing")
	})
}

func TestModule_validateMemory(t *testing.T) {
	t.Run("active data segment exists but memory not declared", func(t *testing.T) {
		m := Module{
			DataSection:    []DataSegment{{OffsetExpression: ConstantExpression{}}},
			SectionOffsets: [SectionIDTag + 1]uint64{SectionIDData: 0x3a},
		}
		err := m.validateMemory(nil, nil)
		require.EqualError(t, err, "unknown memory")

		var ve *Error
		require.ErrorAs(t, err, &ve)
		require.Equal(t, ErrorKindUnknownIndex, ve.Kind)
		require.Equal(t, uint64(0x3a), ve.Offset)
	})
	t.Run("passive data segment needs no memory", func(t *testing.T) {
		m := Module{DataSection: []DataSegment{{Passive: true}}}
		err := m.validateMemory(nil, nil)
		require.NoError(t, err)
	})
	t.Run("invalid const expr", func(t *testing.T) {
		m := Module{DataSection: []DataSegment{{
			OffsetExpression: ConstantExpression{
				Opcode: OpcodeUnreachable, // Invalid!
			},
		}}}
		err := m.validateMemory(&Memory{}, nil)
		require.EqualError(t, err, "calculate offset: invalid opcode for const expression: 0x0")
	})
	t.Run("offset type mismatch", func(t *testing.T) {
		m := Module{DataSection: []DataSegment{{
			OffsetExpression: ConstantExpression{
				Opcode: OpcodeI64Const,
				Data:   leb128.EncodeInt64(1),
			},
		}}}
		err := m.validateMemory(&Memory{}, nil)
		require.EqualError(t, err, "calculate offset: const expression type mismatch expected i32 but got i64")
		require.Equal(t, ErrorKindTypeMismatch, KindOf(err))
	})
	t.Run("offset from module-defined global", func(t *testing.T) {
		m := Module{DataSection: []DataSegment{{
			OffsetExpression: ConstantExpression{
				Opcode: OpcodeGlobalGet,
				Data:   []byte{0},
			},
		}}}
		// The global at index zero is module-defined, so out of scope for the
		// offset expression.
		err := m.validateMemory(&Memory{}, []GlobalType{{ValType: i32}})
		require.EqualError(t, err, "calculate offset: global index out of range")
	})
	t.Run("offset from imported global", func(t *testing.T) {
		m := Module{
			ImportGlobalCount: 1,
			DataSection: []DataSegment{{
				OffsetExpression: ConstantExpression{
					Opcode: OpcodeGlobalGet,
					Data:   []byte{0},
				},
			}},
		}
		err := m.validateMemory(&Memory{}, []GlobalType{{ValType: i32}})
		require.NoError(t, err)
	})
	t.Run("ok", func(t *testing.T) {
		m := Module{DataSection: []DataSegment{{
			Init: []byte{0x1},
			OffsetExpression: ConstantExpression{
				Opcode: OpcodeI32Const,
				Data:   leb128.EncodeInt32(1),
			},
		}}}
		err := m.validateMemory(&Memory{}, nil)
		require.NoError(t, err)
	})
}

func TestModule_validateImports(t *testing.T) {
	tests := []struct {
		name            string
		enabledFeatures Features
		i               *Import
		expectedErr     string
		expectedKind    ErrorKind
	}{
		{name: "empty import section"},
		{
			name:            "func",
			enabledFeatures: Features20191205,
			i:               &Import{Module: "m", Name: "n", Type: ExternTypeFunc, DescFunc: 0},
		},
		{
			name:            "func type index out of range",
			enabledFeatures: Features20191205,
			i:               &Import{Module: "m", Name: "n", Type: ExternTypeFunc, DescFunc: 100},
			expectedErr:     `invalid import["m"."n"] function: type index out of range`,
			expectedKind:    ErrorKindUnknownIndex,
		},
		{
			name: "global const",
			i: &Import{
				Module:     "m",
				Name:       "n",
				Type:       ExternTypeGlobal,
				DescGlobal: GlobalType{ValType: i32},
			},
		},
		{
			name:            "global var disabled",
			enabledFeatures: Features20191205.Set(FeatureMutableGlobal, false),
			i: &Import{
				Module:     "m",
				Name:       "n",
				Type:       ExternTypeGlobal,
				DescGlobal: GlobalType{ValType: i32, Mutable: true},
			},
			expectedErr:  `invalid import["m"."n"] global: feature "mutable-global" is disabled`,
			expectedKind: ErrorKindInvalidEncoding,
		},
		{
			name:            "global var",
			enabledFeatures: Features20191205,
			i: &Import{
				Module:     "m",
				Name:       "n",
				Type:       ExternTypeGlobal,
				DescGlobal: GlobalType{ValType: i32, Mutable: true},
			},
		},
		{
			name:            "table",
			enabledFeatures: Features20191205,
			i: &Import{
				Module:    "m",
				Name:      "n",
				Type:      ExternTypeTable,
				DescTable: Table{Min: 1},
			},
		},
		{
			name:            "memory",
			enabledFeatures: Features20191205,
			i: &Import{
				Module:  "m",
				Name:    "n",
				Type:    ExternTypeMemory,
				DescMem: &Memory{Min: 1},
			},
		},
		{
			name:            "tag disabled",
			enabledFeatures: Features20220419,
			i:               &Import{Module: "m", Name: "n", Type: ExternTypeTag, DescTag: 0},
			expectedErr:     `invalid import["m"."n"] tag: feature "exception-handling" is disabled`,
			expectedKind:    ErrorKindInvalidEncoding,
		},
		{
			name:            "tag type index out of range",
			enabledFeatures: Features20220419 | FeatureExceptionHandling,
			i:               &Import{Module: "m", Name: "n", Type: ExternTypeTag, DescTag: 100},
			expectedErr:     `invalid import["m"."n"] tag: type index out of range`,
			expectedKind:    ErrorKindUnknownIndex,
		},
		{
			name:            "tag signature with result",
			enabledFeatures: Features20220419 | FeatureExceptionHandling,
			i:               &Import{Module: "m", Name: "n", Type: ExternTypeTag, DescTag: 1},
			expectedErr:     `invalid import["m"."n"] tag: signature must have an empty result: v_i32`,
			expectedKind:    ErrorKindTypeMismatch,
		},
		{
			name:            "tag",
			enabledFeatures: Features20220419 | FeatureExceptionHandling,
			i:               &Import{Module: "m", Name: "n", Type: ExternTypeTag, DescTag: 0},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			m := Module{TypeSection: []FunctionType{v_v, v_i32}}
			if tc.i != nil {
				m.ImportSection = []Import{*tc.i}
			}
			err := m.validateImports(tc.enabledFeatures)
			if tc.expectedErr != "" {
				require.EqualError(t, err, tc.expectedErr)
				require.Equal(t, tc.expectedKind, KindOf(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestModule_validateExports(t *testing.T) {
	tests := []struct {
		name            string
		enabledFeatures Features
		exportSection   []Export
		functions       []Index
		globals         []GlobalType
		memory          *Memory
		tables          []Table
		tagCount        int
		expectedErr     string
	}{
		{name: "empty export section", exportSection: []Export{}},
		{
			name:            "func",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeFunc, Index: 0}},
			functions:       []Index{100 /* arbitrary type id */},
		},
		{
			name:            "func out of range",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeFunc, Index: 1, Name: "e"}},
			functions:       []Index{100 /* arbitrary type id */},
			expectedErr:     `unknown function for export["e"]`,
		},
		{
			name:            "global const",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeGlobal, Index: 0}},
			globals:         []GlobalType{{ValType: i32}},
		},
		{
			name:            "global var",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeGlobal, Index: 0}},
			globals:         []GlobalType{{ValType: i32, Mutable: true}},
		},
		{
			name:            "global var disabled",
			enabledFeatures: Features20191205.Set(FeatureMutableGlobal, false),
			exportSection:   []Export{{Type: ExternTypeGlobal, Index: 0, Name: "e"}},
			globals:         []GlobalType{{ValType: i32, Mutable: true}},
			expectedErr:     `invalid export["e"] global[0]: feature "mutable-global" is disabled`,
		},
		{
			name:            "global out of range",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeGlobal, Index: 1, Name: "e"}},
			globals:         []GlobalType{{}},
			expectedErr:     `unknown global for export["e"]`,
		},
		{
			name:            "table",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeTable, Index: 0}},
			tables:          []Table{{}},
		},
		{
			name:            "multiple tables",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeTable, Index: 0}, {Type: ExternTypeTable, Index: 1}, {Type: ExternTypeTable, Index: 2}},
			tables:          []Table{{}, {}, {}},
		},
		{
			name:            "table out of range",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeTable, Index: 1, Name: "e"}},
			tables:          []Table{},
			expectedErr:     `table for export["e"] out of range`,
		},
		{
			name:            "memory",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeMemory, Index: 0}},
			memory:          &Memory{},
		},
		{
			name:            "memory out of range",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeMemory, Index: 0, Name: "e"}},
			tables:          []Table{},
			expectedErr:     `memory for export["e"] out of range`,
		},
		{
			name:            "second memory out of range",
			enabledFeatures: Features20191205,
			exportSection:   []Export{{Type: ExternTypeMemory, Index: 1, Name: "e"}},
			memory:          &Memory{},
			expectedErr:     `memory for export["e"] out of range`,
		},
		{
			name:            "tag",
			enabledFeatures: Features20220419 | FeatureExceptionHandling,
			exportSection:   []Export{{Type: ExternTypeTag, Index: 0}},
			tagCount:        1,
		},
		{
			name:            "tag out of range",
			enabledFeatures: Features20220419 | FeatureExceptionHandling,
			exportSection:   []Export{{Type: ExternTypeTag, Index: 1, Name: "e"}},
			tagCount:        1,
			expectedErr:     `unknown tag for export["e"]`,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			m := Module{ExportSection: tc.exportSection, TagSection: make([]Index, tc.tagCount)}
			err := m.validateExports(tc.enabledFeatures, tc.functions, tc.globals, tc.memory, tc.tables)
			if tc.expectedErr != "" {
				require.EqualError(t, err, tc.expectedErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestModule_validateDataCountSection(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		count := uint32(2)
		for _, m := range []*Module{
			{
				DataSection:      []DataSegment{},
				DataCountSection: nil,
			},
			{
				DataSection:      []DataSegment{{}, {}},
				DataCountSection: nil,
			},
			{
				DataSection:      []DataSegment{{}, {}},
				DataCountSection: &count,
			},
		} {
			err := m.validateDataCountSection()
			require.NoError(t, err)
		}
	})
	t.Run("error", func(t *testing.T) {
		count := uint32(1)
		for _, tc := range []struct {
			m           *Module
			expectedErr string
		}{
			{
				m: &Module{
					DataSection:      []DataSegment{},
					DataCountSection: &count,
				},
				expectedErr: "data count section (1) doesn't match the length of data section (0)",
			},
			{
				m: &Module{
					DataSection:      []DataSegment{{}, {}},
					DataCountSection: &count,
				},
				expectedErr: "data count section (1) doesn't match the length of data section (2)",
			},
		} {
			err := tc.m.validateDataCountSection()
			require.EqualError(t, err, tc.expectedErr)
			require.Equal(t, ErrorKindCountMismatch, KindOf(err))
		}
	})
}

func TestModule_declaredFunctionIndexes(t *testing.T) {
	tests := []struct {
		name   string
		mod    *Module
		exp    []Index
		expErr string
	}{
		{
			name: "empty",
			mod:  &Module{},
			exp:  []Index{},
		},
		{
			name: "global",
			mod: &Module{
				ExportSection: []Export{
					{Index: 10, Type: ExternTypeFunc},
					{Index: 1000, Type: ExternTypeGlobal},
				},
			},
			exp: []Index{10},
		},
		{
			name: "export",
			mod: &Module{
				ExportSection: []Export{
					{Index: 1000, Type: ExternTypeGlobal},
					{Index: 10, Type: ExternTypeFunc},
				},
			},
			exp: []Index{10},
		},
		{
			name: "element",
			mod: &Module{
				FunctionSection: make([]Index, 6),
				ElementSection: []ElementSegment{
					{
						Mode: ElementModeActive,
						Init: []Index{0, ElementInitNullReference, 5},
					},
					{
						Mode: ElementModeDeclarative,
						Init: []Index{1, ElementInitNullReference, 5},
					},
					{
						Mode: ElementModePassive,
						Init: []Index{5, 2, ElementInitNullReference, ElementInitNullReference},
					},
				},
			},
			exp: []Index{0, 1, 2, 5},
		},
		{
			name: "element init deferred to global",
			mod: &Module{
				FunctionSection: make([]Index, 6),
				ElementSection: []ElementSegment{
					{
						Mode: ElementModePassive,
						Init: []Index{WrapGlobalIndexAsElementInit(3), 2},
					},
				},
			},
			exp: []Index{2},
		},
		{
			name: "element init out of function range",
			mod: &Module{
				FunctionSection: make([]Index, 2),
				ElementSection: []ElementSegment{
					{
						Mode: ElementModePassive,
						Init: []Index{10},
					},
				},
			},
			exp: []Index{},
		},
		{
			name: "all",
			mod: &Module{
				FunctionSection: make([]Index, 6),
				ExportSection: []Export{
					{Index: 10, Type: ExternTypeGlobal},
					{Index: 1000, Type: ExternTypeFunc},
				},
				GlobalSection: []Global{
					{
						Init: ConstantExpression{
							Opcode: OpcodeI32Const, // not funcref.
							Data:   leb128.EncodeInt32(-1),
						},
					},
					{
						Init: ConstantExpression{
							Opcode: OpcodeRefFunc,
							Data:   leb128.EncodeUint32(123),
						},
					},
				},
				ElementSection: []ElementSegment{
					{
						Mode: ElementModeActive,
						Init: []Index{0, ElementInitNullReference, 5},
					},
					{
						Mode: ElementModeDeclarative,
						Init: []Index{1, ElementInitNullReference, 5},
					},
					{
						Mode: ElementModePassive,
						Init: []Index{5, 2, ElementInitNullReference, ElementInitNullReference},
					},
				},
			},
			exp: []Index{0, 1, 2, 5, 123, 1000},
		},
		{
			mod: &Module{
				GlobalSection: []Global{
					{
						Init: ConstantExpression{
							Opcode: OpcodeRefFunc,
							Data:   nil,
						},
					},
				},
			},
			name:   "invalid global",
			expErr: `global[0] failed to initialize: EOF`,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			actual, err := tc.mod.declaredFunctionIndexes()
			if tc.expErr != "" {
				require.EqualError(t, err, tc.expErr)
				require.Equal(t, ErrorKindUnexpectedEOF, KindOf(err))
			} else {
				require.NoError(t, err)
				require.Equal(t, uint(len(tc.exp)), actual.Count())
				for _, idx := range tc.exp {
					require.True(t, actual.Test(uint(idx)), "index %d not declared", idx)
				}
			}
		})
	}
}
