// Package leb128 reads and writes the variable-length integers of the
// WebAssembly 1.0 (20191205) Binary Format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#integers%E2%91%A4
package leb128

import (
	"errors"
	"io"
)

const (
	maxVarintLen32 = 5
	maxVarintLen64 = 10

	moreBitsMask = 0x80
	signBitMask  = 0x40
	valueMask    = 0x7f
)

var (
	// ErrOverflow32 means an encoding exceeds 32 bits: more than five bytes,
	// or value bits of the final byte beyond the 32nd.
	ErrOverflow32 = errors.New("overflows a 32-bit integer")
	// ErrOverflow33 is ErrOverflow32 for the 33-bit block type form.
	ErrOverflow33 = errors.New("overflows a 33-bit integer")
	// ErrOverflow64 is ErrOverflow32 for 64-bit integers, which can take up
	// to ten bytes.
	ErrOverflow64 = errors.New("overflows a 64-bit integer")

	// ErrNonCanonical means a value was encoded in more bytes than the
	// minimal encoding of that value requires. The Canonical decode forms
	// return it; the plain forms accept redundant encodings, as the format
	// does.
	ErrNonCanonical = errors.New("non-canonical LEB128 encoding")
)

// EncodeInt32 encodes the signed value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_signed_integer
func EncodeInt64(value int64) (buf []byte) {
	for {
		// Take 7 remaining low-order bits of the value.
		b := byte(value & valueMask)
		value >>= 7

		// If there are no remaining bits and the sign bit agrees, we're done.
		if (value == 0 && b&signBitMask == 0) || (value == -1 && b&signBitMask != 0) {
			buf = append(buf, b)
			return
		}
		buf = append(buf, b|moreBitsMask)
	}
}

// EncodeUint32 encodes the value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint32(value uint32) []byte {
	return EncodeUint64(uint64(value))
}

// EncodeUint64 encodes the value into a buffer in LEB128 format
//
// See https://en.wikipedia.org/wiki/LEB128#Encode_unsigned_integer
func EncodeUint64(value uint64) (buf []byte) {
	for value >= moreBitsMask {
		buf = append(buf, byte(value&valueMask)|moreBitsMask)
		value >>= 7
	}
	return append(buf, byte(value))
}

// SizeUint32 returns the length in bytes of the canonical (minimal) LEB128
// encoding of value.
func SizeUint32(value uint32) uint64 {
	return SizeUint64(uint64(value))
}

// SizeUint64 returns the length in bytes of the canonical (minimal) LEB128
// encoding of value.
func SizeUint64(value uint64) (size uint64) {
	for size = 1; value >= moreBitsMask; size++ {
		value >>= 7
	}
	return
}

// SizeInt32 returns the length in bytes of the canonical (minimal) LEB128
// encoding of value.
func SizeInt32(value int32) uint64 {
	return SizeInt64(int64(value))
}

// SizeInt64 returns the length in bytes of the canonical (minimal) LEB128
// encoding of value.
func SizeInt64(value int64) (size uint64) {
	for {
		b := byte(value & valueMask)
		value >>= 7
		size++
		if (value == 0 && b&signBitMask == 0) || (value == -1 && b&signBitMask != 0) {
			return
		}
	}
}

// LoadUint32 reads an unsigned 32-bit integer from buf, returning also the
// count of bytes read. Encodings longer than five bytes, or whose final byte
// sets bits beyond the 32nd, err with a message like "overflows a 32-bit
// integer". A buf exhausted mid-value errs with io.EOF.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < maxVarintLen32; i++ {
		if i >= len(buf) {
			return 0, 0, io.EOF
		}
		b := buf[i]
		// Only four value bits of the fifth byte fit into a uint32.
		if i == maxVarintLen32-1 && b&0xf0 != 0 {
			return 0, 0, ErrOverflow32
		}
		ret |= uint32(b&valueMask) << shift
		shift += 7
		if b&moreBitsMask == 0 {
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow32
}

// LoadUint64 is like LoadUint32, but for unsigned 64-bit integers which can
// take up to ten bytes.
func LoadUint64(buf []byte) (ret uint64, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < maxVarintLen64; i++ {
		if i >= len(buf) {
			return 0, 0, io.EOF
		}
		b := buf[i]
		// Only one value bit of the tenth byte fits into a uint64.
		if i == maxVarintLen64-1 && b&0xfe != 0 {
			return 0, 0, ErrOverflow64
		}
		ret |= uint64(b&valueMask) << shift
		shift += 7
		if b&moreBitsMask == 0 {
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow64
}

// LoadInt32 reads a signed 32-bit integer from buf, returning also the count
// of bytes read. A five-byte encoding must sign-extend consistently: bits
// 32-34 of the final byte must all equal the value's sign bit.
func LoadInt32(buf []byte) (ret int32, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < maxVarintLen32; i++ {
		if i >= len(buf) {
			return 0, 0, io.EOF
		}
		b := buf[i]
		if i == maxVarintLen32-1 {
			// Bits 3 through 6 hold value bit 31 and the sign extension,
			// which must agree.
			if extension := b & 0x78; extension != 0 && extension != 0x78 {
				return 0, 0, ErrOverflow32
			}
		}
		ret |= int32(b&valueMask) << shift
		shift += 7
		if b&moreBitsMask == 0 {
			if shift < 32 && b&signBitMask != 0 {
				ret |= ^0 << shift
			}
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow32
}

// LoadInt64 is like LoadInt32, but for signed 64-bit integers which can take
// up to ten bytes.
func LoadInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < maxVarintLen64; i++ {
		if i >= len(buf) {
			return 0, 0, io.EOF
		}
		b := buf[i]
		if i == maxVarintLen64-1 {
			// Bits 1 through 6 hold the sign extension beyond bit 63, which
			// must agree with value bit 63 in bit 0.
			if extension := b & 0x7e; !(extension == 0 && b&0x01 == 0) && !(extension == 0x7e && b&0x01 == 0x01) {
				return 0, 0, ErrOverflow64
			}
		}
		ret |= int64(b&valueMask) << shift
		shift += 7
		if b&moreBitsMask == 0 {
			if shift < 64 && b&signBitMask != 0 {
				ret |= ^0 << shift
			}
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow64
}

// DecodeUint32 is the io.Reader form of LoadUint32.
func DecodeUint32(r io.Reader) (ret uint32, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < maxVarintLen32; i++ {
		b, err := readByte(r)
		if err != nil {
			return 0, 0, err
		}
		if i == maxVarintLen32-1 && b&0xf0 != 0 {
			return 0, 0, ErrOverflow32
		}
		ret |= uint32(b&valueMask) << shift
		shift += 7
		if b&moreBitsMask == 0 {
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow32
}

// DecodeUint64 is the io.Reader form of LoadUint64.
func DecodeUint64(r io.Reader) (ret uint64, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < maxVarintLen64; i++ {
		b, err := readByte(r)
		if err != nil {
			return 0, 0, err
		}
		if i == maxVarintLen64-1 && b&0xfe != 0 {
			return 0, 0, ErrOverflow64
		}
		ret |= uint64(b&valueMask) << shift
		shift += 7
		if b&moreBitsMask == 0 {
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow64
}

// DecodeInt32 is the io.Reader form of LoadInt32.
func DecodeInt32(r io.Reader) (ret int32, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < maxVarintLen32; i++ {
		b, err := readByte(r)
		if err != nil {
			return 0, 0, err
		}
		if i == maxVarintLen32-1 {
			if extension := b & 0x78; extension != 0 && extension != 0x78 {
				return 0, 0, ErrOverflow32
			}
		}
		ret |= int32(b&valueMask) << shift
		shift += 7
		if b&moreBitsMask == 0 {
			if shift < 32 && b&signBitMask != 0 {
				ret |= ^0 << shift
			}
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow32
}

// DecodeInt33AsInt64 reads a signed 33-bit integer used for block types,
// widened to int64.
//
// See https://www.w3.org/TR/2022/WD-wasm-core-2-20220419/binary/instructions.html#binary-blocktype
func DecodeInt33AsInt64(r io.Reader) (ret int64, bytesRead uint64, err error) {
	const (
		int33Mask  int64 = 1 << 7
		int33Mask2       = ^int33Mask
		int33Mask3       = 1 << 6
		int33Mask4       = 8589934591 // 2^33-1
		int33Mask5       = 1 << 32
		int33Mask6       = int33Mask4 + 1 // 2^33
	)
	var shift int
	var b int64
	var rb byte
	for shift < 35 {
		rb, err = readByte(r)
		if err != nil {
			return 0, 0, err
		}
		b = int64(rb)
		bytesRead++
		ret |= (b & int33Mask2) << shift
		shift += 7
		if b&int33Mask == 0 {
			break
		}
	}
	if shift == 35 && b&moreBitsMask != 0 {
		return 0, 0, ErrOverflow33
	}

	if shift < 33 && (b&int33Mask3) == int33Mask3 {
		ret |= int33Mask4 << shift
	}
	ret = ret & int33Mask4

	// if 33rd bit == 1, we translate it as a corresponding signed-33bit minus value
	if ret&int33Mask5 > 0 {
		ret = ret - int33Mask6
	}
	return ret, bytesRead, nil
}

// DecodeInt64 is the io.Reader form of LoadInt64.
func DecodeInt64(r io.Reader) (ret int64, bytesRead uint64, err error) {
	var shift int
	for i := 0; i < maxVarintLen64; i++ {
		b, err := readByte(r)
		if err != nil {
			return 0, 0, err
		}
		if i == maxVarintLen64-1 {
			if extension := b & 0x7e; !(extension == 0 && b&0x01 == 0) && !(extension == 0x7e && b&0x01 == 0x01) {
				return 0, 0, ErrOverflow64
			}
		}
		ret |= int64(b&valueMask) << shift
		shift += 7
		if b&moreBitsMask == 0 {
			if shift < 64 && b&signBitMask != 0 {
				ret |= ^0 << shift
			}
			return ret, uint64(i) + 1, nil
		}
	}
	return 0, 0, ErrOverflow64
}

// LoadCanonicalUint32 is LoadUint32 restricted to minimal encodings: a value
// carried in more bytes than SizeUint32 of it errs with ErrNonCanonical.
func LoadCanonicalUint32(buf []byte) (uint32, uint64, error) {
	ret, bytesRead, err := LoadUint32(buf)
	if err == nil && bytesRead != SizeUint32(ret) {
		return 0, 0, ErrNonCanonical
	}
	return ret, bytesRead, err
}

// DecodeCanonicalUint32 is the io.Reader form of LoadCanonicalUint32.
func DecodeCanonicalUint32(r io.Reader) (uint32, uint64, error) {
	ret, bytesRead, err := DecodeUint32(r)
	if err == nil && bytesRead != SizeUint32(ret) {
		return 0, 0, ErrNonCanonical
	}
	return ret, bytesRead, err
}

// DecodeCanonicalUint64 is DecodeUint64 restricted to minimal encodings.
func DecodeCanonicalUint64(r io.Reader) (uint64, uint64, error) {
	ret, bytesRead, err := DecodeUint64(r)
	if err == nil && bytesRead != SizeUint64(ret) {
		return 0, 0, ErrNonCanonical
	}
	return ret, bytesRead, err
}

// DecodeCanonicalInt32 is DecodeInt32 restricted to minimal encodings.
func DecodeCanonicalInt32(r io.Reader) (int32, uint64, error) {
	ret, bytesRead, err := DecodeInt32(r)
	if err == nil && bytesRead != SizeInt32(ret) {
		return 0, 0, ErrNonCanonical
	}
	return ret, bytesRead, err
}

// DecodeCanonicalInt64 is DecodeInt64 restricted to minimal encodings.
func DecodeCanonicalInt64(r io.Reader) (int64, uint64, error) {
	ret, bytesRead, err := DecodeInt64(r)
	if err == nil && bytesRead != SizeInt64(ret) {
		return 0, 0, ErrNonCanonical
	}
	return ret, bytesRead, err
}

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}
