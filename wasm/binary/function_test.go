package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcheck/wasmcheck/wasm"
)

func TestFunctionType(t *testing.T) {
	i32, i64 := wasm.ValueTypeI32, wasm.ValueTypeI64
	tests := []struct {
		name     string
		input    wasm.FunctionType
		expected []byte
	}{
		{
			name:     "empty",
			input:    wasm.FunctionType{},
			expected: []byte{0x60, 0, 0},
		},
		{
			name:     "one param no result",
			input:    wasm.FunctionType{Params: []wasm.ValueType{i32}},
			expected: []byte{0x60, 1, i32, 0},
		},
		{
			name:     "no param one result",
			input:    wasm.FunctionType{Results: []wasm.ValueType{i32}},
			expected: []byte{0x60, 0, 1, i32},
		},
		{
			name:     "one param one result",
			input:    wasm.FunctionType{Params: []wasm.ValueType{i64}, Results: []wasm.ValueType{i32}},
			expected: []byte{0x60, 1, i64, 1, i32},
		},
		{
			name:     "two params no result",
			input:    wasm.FunctionType{Params: []wasm.ValueType{i32, i64}},
			expected: []byte{0x60, 2, i32, i64, 0},
		},
		{
			name:     "two param one result",
			input:    wasm.FunctionType{Params: []wasm.ValueType{i32, i64}, Results: []wasm.ValueType{i32}},
			expected: []byte{0x60, 2, i32, i64, 1, i32},
		},
		{
			name:     "one param two results",
			input:    wasm.FunctionType{Params: []wasm.ValueType{i64}, Results: []wasm.ValueType{i32, i64}},
			expected: []byte{0x60, 1, i64, 2, i32, i64},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run("encode - "+tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, encodeFunctionType(&tc.input))
		})

		t.Run("decode - "+tc.name, func(t *testing.T) {
			ft, err := decodeFunctionType(bytes.NewReader(tc.expected), wasm.Features20220419, false)
			require.NoError(t, err)
			require.Equal(t, tc.input.Params, ft.Params)
			require.Equal(t, tc.input.Results, ft.Results)
		})
	}
}

func TestDecodeFunctionType_Errors(t *testing.T) {
	i32 := wasm.ValueTypeI32
	tests := []struct {
		name        string
		input       []byte
		features    wasm.Features
		expectedErr string
	}{
		{
			name:        "empty",
			input:       []byte{},
			features:    wasm.Features20220419,
			expectedErr: "read leading byte: EOF",
		},
		{
			name:        "undefined leading byte",
			input:       []byte{0x6f},
			features:    wasm.Features20220419,
			expectedErr: "invalid byte: 0x6f != 0x60",
		},
		{
			name:        "truncated param count",
			input:       []byte{0x60},
			features:    wasm.Features20220419,
			expectedErr: "could not read parameter count: EOF",
		},
		{
			name:        "truncated param types",
			input:       []byte{0x60, 2, i32},
			features:    wasm.Features20220419,
			expectedErr: "could not read parameter types: EOF",
		},
		{
			name:        "multiple results before feature",
			input:       []byte{0x60, 0, 2, i32, i32},
			features:    wasm.Features20191205,
			expectedErr: `multiple result types invalid as feature "multi-value" is disabled`,
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeFunctionType(bytes.NewReader(tc.input), tc.features, false)
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}
