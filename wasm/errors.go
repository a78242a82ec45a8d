package wasm

import (
	"errors"
	"fmt"
	"io"
)

// ErrorKind classifies why a module was rejected. Every failure surfaced by
// decoding or validation maps onto exactly one kind, so callers can branch on
// the class of defect without string matching.
type ErrorKind uint32

const (
	// ErrorKindMalformedHeader means the magic number or version did not match.
	ErrorKindMalformedHeader ErrorKind = iota + 1
	// ErrorKindUnexpectedEOF means the input ended inside a structure that
	// declared or implied more bytes.
	ErrorKindUnexpectedEOF
	// ErrorKindIntegerTooLarge means a varint used more continuation bytes
	// than its declared bit width allows.
	ErrorKindIntegerTooLarge
	// ErrorKindNonCanonicalEncoding means a varint was not minimally encoded
	// while canonical encoding enforcement was requested.
	ErrorKindNonCanonicalEncoding
	// ErrorKindInvalidEncoding means a tag, flag, opcode or similar byte is
	// not a known encoding, or is disabled by the feature configuration.
	ErrorKindInvalidEncoding
	// ErrorKindSectionOutOfOrder means a non-custom section was duplicated or
	// appeared after a section it must precede.
	ErrorKindSectionOutOfOrder
	// ErrorKindSizeMismatch means a declared byte length disagrees with the
	// bytes actually consumed by the contents.
	ErrorKindSizeMismatch
	// ErrorKindCountMismatch means a declared entry count disagrees with the
	// entries present, or exceeds a hard limit.
	ErrorKindCountMismatch
	// ErrorKindUnknownIndex means an index does not resolve within its space.
	ErrorKindUnknownIndex
	// ErrorKindUnknownLabel means a branch targets a relative depth larger
	// than the number of open control frames.
	ErrorKindUnknownLabel
	// ErrorKindTypeMismatch means an operand or result type disagrees with
	// the type required at that point.
	ErrorKindTypeMismatch
	// ErrorKindStackUnderflow means fewer operands were available than an
	// instruction or block result requires.
	ErrorKindStackUnderflow
	// ErrorKindUnclosedControlFrame means a function body ended with a
	// block, loop, if or try still open.
	ErrorKindUnclosedControlFrame
	// ErrorKindTrailingData means bytes remained after the terminal element
	// of a delimited range.
	ErrorKindTrailingData
)

// String implements fmt.Stringer with the conventional lower-case phrasing of
// each kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindMalformedHeader:
		return "malformed header"
	case ErrorKindUnexpectedEOF:
		return "unexpected end of input"
	case ErrorKindIntegerTooLarge:
		return "integer too large"
	case ErrorKindNonCanonicalEncoding:
		return "non-canonical encoding"
	case ErrorKindInvalidEncoding:
		return "invalid encoding"
	case ErrorKindSectionOutOfOrder:
		return "section out of order"
	case ErrorKindSizeMismatch:
		return "size mismatch"
	case ErrorKindCountMismatch:
		return "count mismatch"
	case ErrorKindUnknownIndex:
		return "unknown index"
	case ErrorKindUnknownLabel:
		return "unknown label"
	case ErrorKindTypeMismatch:
		return "type mismatch"
	case ErrorKindStackUnderflow:
		return "stack underflow"
	case ErrorKindUnclosedControlFrame:
		return "unclosed control frame"
	case ErrorKindTrailingData:
		return "trailing data"
	}
	return "unknown"
}

// Error describes one reason a module was rejected: the byte offset in the
// module binary where the defect was detected, its kind, and a message in the
// wording of the failing check. Errors wrap any lower-level cause.
type Error struct {
	// Offset is the position in the module binary, counted from the first
	// magic byte.
	Offset uint64
	// Kind classifies the failure.
	Kind ErrorKind

	msg   string
	cause error
}

// NewError returns an Error at the given offset formatted like fmt.Errorf.
// An %w verb wraps a cause retrievable via errors.Unwrap.
func NewError(offset uint64, kind ErrorKind, format string, args ...interface{}) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Offset: offset, Kind: kind, msg: wrapped.Error(), cause: errors.Unwrap(wrapped)}
}

// Error implements error. The message does not repeat Offset or Kind; they
// are carried structurally, as in encoding/json's SyntaxError.
func (e *Error) Error() string {
	return e.msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// wrapError prefixes err's message per format, which must reference err with
// %w, preserving the kind and offset err carries.
func wrapError(err error, format string, args ...interface{}) *Error {
	offset, _ := OffsetOf(err)
	return NewError(offset, KindOf(err), format, args...)
}

// kindOfReadError classifies an error from a varint or float reader: inputs
// that ended early are ErrorKindUnexpectedEOF, anything else from those
// readers means the encoding overflowed its bit width.
func kindOfReadError(err error) ErrorKind {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrShortBuffer) {
		return ErrorKindUnexpectedEOF
	}
	return ErrorKindIntegerTooLarge
}

// KindOf returns the ErrorKind of err or any error it wraps, or zero if none
// carries one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var l ErrorList
	if errors.As(err, &l) && len(l) > 0 {
		return l[0].Kind
	}
	return 0
}

// OffsetOf returns the module-binary offset recorded on err or any error it
// wraps. The second result is false if none carries one.
func OffsetOf(err error) (uint64, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Offset, true
	}
	return 0, false
}

// ErrorList is every defect found in one pass, ordered by discovery. It is
// the error type returned when collecting all errors instead of stopping at
// the first.
type ErrorList []*Error

// Error implements error by summarizing the first defect.
func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// Unwrap returns the first defect so errors.Is and errors.As see it.
func (l ErrorList) Unwrap() error {
	if len(l) == 0 {
		return nil
	}
	return l[0]
}
