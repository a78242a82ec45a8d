package binary

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimitsType(t *testing.T) {
	zero := uint32(0)
	largest := uint32(math.MaxUint32)

	tests := []struct {
		name     string
		min      uint32
		max      *uint32
		expected []byte
	}{
		{
			name:     "min 0",
			expected: []byte{0x0, 0},
		},
		{
			name:     "min 0, max 0",
			max:      &zero,
			expected: []byte{0x1, 0, 0},
		},
		{
			name:     "min largest",
			min:      largest,
			expected: []byte{0x0, 0xff, 0xff, 0xff, 0xff, 0xf},
		},
		{
			name:     "min 0, max largest",
			max:      &largest,
			expected: []byte{0x1, 0, 0xff, 0xff, 0xff, 0xff, 0xf},
		},
		{
			name:     "min largest max largest",
			min:      largest,
			max:      &largest,
			expected: []byte{0x1, 0xff, 0xff, 0xff, 0xff, 0xf, 0xff, 0xff, 0xff, 0xff, 0xf},
		},
	}

	for _, tt := range tests {
		tc := tt

		b := encodeLimitsType(tc.min, tc.max, false)
		t.Run(fmt.Sprintf("encode - %s", tc.name), func(t *testing.T) {
			require.Equal(t, tc.expected, b)
		})

		t.Run(fmt.Sprintf("decode - %s", tc.name), func(t *testing.T) {
			flag, min, max, err := decodeLimitsType(bytes.NewReader(b), false)
			require.NoError(t, err)
			require.Equal(t, tc.expected[0], flag)
			require.Equal(t, tc.min, min)
			require.Equal(t, tc.max, max)
		})
	}
}

func TestLimitsType_Shared(t *testing.T) {
	max := uint32(2)

	b := encodeLimitsType(1, &max, true)
	require.Equal(t, []byte{0x3, 1, 2}, b)

	flag, min, maxP, err := decodeLimitsType(bytes.NewReader(b), false)
	require.NoError(t, err)
	require.Equal(t, limitsFlagHasMax|limitsFlagShared, flag)
	require.Equal(t, uint32(1), min)
	require.Equal(t, &max, maxP)
}

func TestDecodeLimitsType_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       []byte
		expectedErr string
	}{
		{
			name:        "empty",
			input:       []byte{},
			expectedErr: "read leading byte: EOF",
		},
		{
			name:        "bad flag",
			input:       []byte{0x4, 1},
			expectedErr: "invalid byte for limits: 0x4",
		},
		{
			name:        "missing min",
			input:       []byte{0x0},
			expectedErr: "read min of limit: EOF",
		},
		{
			name:        "missing max",
			input:       []byte{0x1, 1},
			expectedErr: "read max of limit: EOF",
		},
	}

	for _, tt := range tests {
		tc := tt

		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := decodeLimitsType(bytes.NewReader(tc.input), false)
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}
