package wasm

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		exp  string
	}{
		{ErrorKindMalformedHeader, "malformed header"},
		{ErrorKindUnexpectedEOF, "unexpected end of input"},
		{ErrorKindIntegerTooLarge, "integer too large"},
		{ErrorKindNonCanonicalEncoding, "non-canonical encoding"},
		{ErrorKindInvalidEncoding, "invalid encoding"},
		{ErrorKindSectionOutOfOrder, "section out of order"},
		{ErrorKindSizeMismatch, "size mismatch"},
		{ErrorKindCountMismatch, "count mismatch"},
		{ErrorKindUnknownIndex, "unknown index"},
		{ErrorKindUnknownLabel, "unknown label"},
		{ErrorKindTypeMismatch, "type mismatch"},
		{ErrorKindStackUnderflow, "stack underflow"},
		{ErrorKindUnclosedControlFrame, "unclosed control frame"},
		{ErrorKindTrailingData, "trailing data"},
		{ErrorKind(0), "unknown"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.exp, func(t *testing.T) {
			require.Equal(t, tc.exp, tc.kind.String())
		})
	}
}

func TestError(t *testing.T) {
	e := NewError(0x1a, ErrorKindUnknownIndex, "unknown function index %d", 5)
	require.EqualError(t, e, "unknown function index 5")
	require.Equal(t, ErrorKindUnknownIndex, e.Kind)
	require.Equal(t, uint64(0x1a), e.Offset)
	require.Nil(t, errors.Unwrap(e))
}

func TestError_Unwrap(t *testing.T) {
	e := NewError(4, ErrorKindUnexpectedEOF, "read version: %w", io.EOF)
	require.EqualError(t, e, "read version: EOF")
	require.True(t, errors.Is(e, io.EOF))
}

func TestKindOf(t *testing.T) {
	e := NewError(0, ErrorKindMalformedHeader, "invalid magic number")
	require.Equal(t, ErrorKindMalformedHeader, KindOf(e))

	// Wrapping with context must not hide the kind.
	wrapped := fmt.Errorf("section type: %w", e)
	require.Equal(t, ErrorKindMalformedHeader, KindOf(wrapped))

	require.Equal(t, ErrorKind(0), KindOf(io.EOF))
	require.Equal(t, ErrorKind(0), KindOf(nil))
}

func TestOffsetOf(t *testing.T) {
	e := NewError(0x20, ErrorKindTypeMismatch, "cannot use i64")
	offset, ok := OffsetOf(fmt.Errorf("function[0]: %w", e))
	require.True(t, ok)
	require.Equal(t, uint64(0x20), offset)

	_, ok = OffsetOf(errors.New("plain"))
	require.False(t, ok)
}

func TestWrapError(t *testing.T) {
	inner := NewError(0x51, ErrorKindTypeMismatch, "cannot use i64 as i32")
	wrapped := wrapError(inner, "invalid function[2]: %w", inner)
	require.EqualError(t, wrapped, "invalid function[2]: cannot use i64 as i32")
	require.Equal(t, ErrorKindTypeMismatch, wrapped.Kind)
	require.Equal(t, uint64(0x51), wrapped.Offset)
	require.True(t, errors.Is(wrapped, inner))
}

func TestKindOfReadError(t *testing.T) {
	require.Equal(t, ErrorKindUnexpectedEOF, kindOfReadError(io.EOF))
	require.Equal(t, ErrorKindUnexpectedEOF, kindOfReadError(io.ErrUnexpectedEOF))
	require.Equal(t, ErrorKindUnexpectedEOF, kindOfReadError(io.ErrShortBuffer))
	require.Equal(t, ErrorKindUnexpectedEOF, kindOfReadError(fmt.Errorf("read i32: %w", io.EOF)))
	require.Equal(t, ErrorKindIntegerTooLarge, kindOfReadError(errors.New("integer too large")))
}

func TestErrorList(t *testing.T) {
	first := NewError(8, ErrorKindTypeMismatch, "cannot use i64 as i32")
	second := NewError(12, ErrorKindUnknownLabel, "unknown label 3")

	tests := []struct {
		name string
		list ErrorList
		exp  string
	}{
		{name: "empty", list: nil, exp: "no errors"},
		{name: "one", list: ErrorList{first}, exp: "cannot use i64 as i32"},
		{name: "two", list: ErrorList{first, second}, exp: "cannot use i64 as i32 (and 1 more errors)"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			require.EqualError(t, tc.list, tc.exp)
		})
	}

	require.Equal(t, ErrorKindTypeMismatch, KindOf(ErrorList{first, second}))
	require.True(t, errors.Is(ErrorList{first}, first))
}
