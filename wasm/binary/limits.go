package binary

import (
	"bytes"
	"fmt"

	"github.com/wasmcheck/wasmcheck/wasm/leb128"
)

// Limits flag bits. Bit zero means a maximum is encoded, bit one that the
// memory is shared between threads.
const (
	limitsFlagHasMax byte = 0x01
	limitsFlagShared byte = 0x02
)

// decodeLimitsType returns the flag byte and the decoded limits.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#limits%E2%91%A6
func decodeLimitsType(r *bytes.Reader, canonical bool) (flag byte, min uint32, max *uint32, err error) {
	if flag, err = r.ReadByte(); err != nil {
		err = fmt.Errorf("read leading byte: %w", err)
		return
	}

	switch flag {
	case 0x00, limitsFlagShared:
		min, _, err = readUint32(r, canonical)
		if err != nil {
			err = fmt.Errorf("read min of limit: %w", err)
		}
	case limitsFlagHasMax, limitsFlagHasMax | limitsFlagShared:
		min, _, err = readUint32(r, canonical)
		if err != nil {
			err = fmt.Errorf("read min of limit: %w", err)
			return
		}
		var m uint32
		if m, _, err = readUint32(r, canonical); err != nil {
			err = fmt.Errorf("read max of limit: %w", err)
		} else {
			max = &m
		}
	default:
		err = fmt.Errorf("%w for limits: %#x", ErrInvalidByte, flag)
	}
	return
}

// encodeLimitsType writes the limits in the leading flag byte form, with the
// shared bit set for shared memories.
func encodeLimitsType(min uint32, max *uint32, shared bool) []byte {
	var flag byte
	if max != nil {
		flag |= limitsFlagHasMax
	}
	if shared {
		flag |= limitsFlagShared
	}
	ret := append([]byte{flag}, leb128.EncodeUint32(min)...)
	if max != nil {
		ret = append(ret, leb128.EncodeUint32(*max)...)
	}
	return ret
}
