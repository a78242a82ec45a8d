package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

func TestGlobal(t *testing.T) {
	tests := []struct {
		name     string
		input    wasm.Global
		expected []byte
	}{
		{
			name: "const",
			input: wasm.Global{
				Type: wasm.GlobalType{ValType: wasm.ValueTypeI32},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(1)},
			},
			expected: []byte{
				wasm.ValueTypeI32, 0x00, // 0 == const
				wasm.OpcodeI32Const, 0x01, wasm.OpcodeEnd,
			},
		},
		{
			name: "var",
			input: wasm.Global{
				Type: wasm.GlobalType{ValType: wasm.ValueTypeI64, Mutable: true},
				Init: wasm.ConstantExpression{Opcode: wasm.OpcodeI64Const, Data: leb128.EncodeInt64(1)},
			},
			expected: []byte{
				wasm.ValueTypeI64, 0x01, // 1 == var
				wasm.OpcodeI64Const, 0x01, wasm.OpcodeEnd,
			},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run("encode - "+tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, encodeGlobal(&tc.input))
		})

		t.Run("decode - "+tc.name, func(t *testing.T) {
			g, err := decodeGlobal(bytes.NewReader(tc.expected), wasm.Features20220419, false)
			require.NoError(t, err)
			require.Equal(t, tc.input, g)
		})
	}
}

func TestDecodeGlobal_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       []byte
		expectedErr string
	}{
		{
			name:        "empty",
			input:       []byte{},
			expectedErr: "read value type: EOF",
		},
		{
			name:        "missing mutability",
			input:       []byte{wasm.ValueTypeI32},
			expectedErr: "read mutability: EOF",
		},
		{
			name:        "invalid mutability",
			input:       []byte{wasm.ValueTypeI32, 2},
			expectedErr: "invalid byte for mutability: 0x2 != 0x00 or 0x01",
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeGlobal(bytes.NewReader(tc.input), wasm.Features20220419, false)
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}
