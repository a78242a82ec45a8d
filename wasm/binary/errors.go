package binary

import (
	"errors"
	"io"

	"github.com/wasmcheck/wasmcheck/wasm"
	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

var (
	// ErrInvalidByte means a one-byte tag was not among the values the format
	// admits at that position.
	ErrInvalidByte = errors.New("invalid byte")

	// ErrInvalidMagicNumber means the module didn't begin with "\0asm".
	ErrInvalidMagicNumber = errors.New("invalid magic number")

	// ErrInvalidVersion means the four bytes after the magic number were not
	// binary format version 1.
	ErrInvalidVersion = errors.New("invalid version header")

	// ErrInvalidSectionID means a section ID byte was outside the known range.
	ErrInvalidSectionID = errors.New("invalid section id")

	// ErrNeedMoreData is returned by Parser.Feed when the fed bytes end before
	// the next payload is complete and more input may follow. Nothing is
	// consumed: append more data and feed again.
	ErrNeedMoreData = errors.New("need more input")
)

// readErrorKind classifies an error from a varint or float read: exhausted
// input is ErrorKindUnexpectedEOF, a redundant encoding under canonical mode
// is ErrorKindNonCanonicalEncoding, and anything else means the value
// overflowed its bit width.
func readErrorKind(err error) wasm.ErrorKind {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrShortBuffer):
		return wasm.ErrorKindUnexpectedEOF
	case errors.Is(err, leb128.ErrNonCanonical):
		return wasm.ErrorKindNonCanonicalEncoding
	default:
		return wasm.ErrorKindIntegerTooLarge
	}
}

// classify maps an arbitrary decode error to its kind: a kind the error
// already carries wins, then the sentinels of this package and leb128, then
// exhausted input. Errors matching nothing are structural, so
// ErrorKindInvalidEncoding.
func classify(err error) wasm.ErrorKind {
	if k := wasm.KindOf(err); k != 0 {
		return k
	}
	switch {
	case errors.Is(err, leb128.ErrOverflow32), errors.Is(err, leb128.ErrOverflow33), errors.Is(err, leb128.ErrOverflow64):
		return wasm.ErrorKindIntegerTooLarge
	case errors.Is(err, leb128.ErrNonCanonical):
		return wasm.ErrorKindNonCanonicalEncoding
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrShortBuffer):
		return wasm.ErrorKindUnexpectedEOF
	default:
		return wasm.ErrorKindInvalidEncoding
	}
}
