package binary

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmcheck/wasmcheck/wasm"
)

func TestMemory(t *testing.T) {
	max := wasm.MemoryLimitPages

	tests := []struct {
		name     string
		input    *wasm.Memory
		expected []byte
	}{
		{
			name:     "min 0",
			input:    &wasm.Memory{Max: max, IsMaxEncoded: false},
			expected: []byte{0x0, 0},
		},
		{
			name:     "min 0, max 0",
			input:    &wasm.Memory{IsMaxEncoded: true},
			expected: []byte{0x1, 0, 0},
		},
		{
			name:     "min largest, no max",
			input:    &wasm.Memory{Min: max, Max: max, IsMaxEncoded: false},
			expected: []byte{0x0, 0x80, 0x80, 0x4},
		},
		{
			name:     "min largest max largest",
			input:    &wasm.Memory{Min: max, Max: max, IsMaxEncoded: true},
			expected: []byte{0x1, 0x80, 0x80, 0x4, 0x80, 0x80, 0x4},
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run("encode - "+tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, encodeMemory(tc.input))
		})

		t.Run("decode - "+tc.name, func(t *testing.T) {
			mem, err := decodeMemory(bytes.NewReader(tc.expected), wasm.Features20220419, max, false)
			require.NoError(t, err)
			require.Equal(t, tc.input, mem)
		})
	}
}

func TestDecodeMemory_Shared(t *testing.T) {
	in := []byte{0x3, 1, 2} // shared with max.

	t.Run("requires threads", func(t *testing.T) {
		_, err := decodeMemory(bytes.NewReader(in), wasm.Features20220419, wasm.MemoryLimitPages, false)
		require.EqualError(t, err, `shared memory invalid as feature "threads" is disabled`)
	})

	t.Run("decodes with threads", func(t *testing.T) {
		mem, err := decodeMemory(bytes.NewReader(in), wasm.Features20220419|wasm.FeatureThreads, wasm.MemoryLimitPages, false)
		require.NoError(t, err)
		require.Equal(t, &wasm.Memory{Min: 1, Max: 2, IsMaxEncoded: true, IsShared: true}, mem)
	})
}
