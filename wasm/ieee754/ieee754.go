// Package ieee754 decodes the little-endian IEEE 754 floats of the
// WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#floating-point%E2%91%A4
package ieee754

import (
	"encoding/binary"
	"io"
	"math"
)

// DecodeFloat32 returns the float32 held in the first four bytes of buf, or
// io.ErrShortBuffer if buf is smaller than that.
func DecodeFloat32(buf []byte) (float32, error) {
	if len(buf) < 4 {
		return 0, io.ErrShortBuffer
	}
	raw := binary.LittleEndian.Uint32(buf)
	return math.Float32frombits(raw), nil
}

// DecodeFloat64 returns the float64 held in the first eight bytes of buf, or
// io.ErrShortBuffer if buf is smaller than that.
func DecodeFloat64(buf []byte) (float64, error) {
	if len(buf) < 8 {
		return 0, io.ErrShortBuffer
	}
	raw := binary.LittleEndian.Uint64(buf)
	return math.Float64frombits(raw), nil
}

// ReadFloat32 is the io.Reader form of DecodeFloat32.
func ReadFloat32(r io.Reader) (float32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf)), nil
}

// ReadFloat64 is the io.Reader form of DecodeFloat64.
func ReadFloat64(r io.Reader) (float64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

// EncodeFloat32 appends the four-byte encoding of f to buf.
func EncodeFloat32(buf []byte, f float32) []byte {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(f))
	return append(buf, scratch[:]...)
}

// EncodeFloat64 appends the eight-byte encoding of f to buf.
func EncodeFloat64(buf []byte, f float64) []byte {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(f))
	return append(buf, scratch[:]...)
}
