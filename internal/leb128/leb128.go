// Package leb128 encodes the variable-length integers used throughout the
// WebAssembly binary format.
//
// See https://en.wikipedia.org/wiki/LEB128
package leb128

import (
	"errors"
	"fmt"
)

const (
	maxVarintLen32 = 5
)

var errOverflow32 = errors.New("overflows a 32-bit integer")

// EncodeInt32 encodes the signed value into a buffer in LEB128 format
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format
func EncodeInt64(value int64) (buf []byte) {
	for {
		// Take 7 remaining low-order bits from the value into b.
		b := uint8(value & 0x7f)
		// Extract the sign bit.
		s := uint8(value & 0x40)
		value >>= 7

		// Signed values are done when the remaining bits are all sign bits.
		if (value != -1 || s == 0) && (value != 0 || s != 0) {
			b |= 0x80
		}

		buf = append(buf, b)
		if b&0x80 == 0 {
			break
		}
	}
	return buf
}

// EncodeUint32 encodes the value into a buffer in LEB128 format
func EncodeUint32(value uint32) []byte {
	return EncodeUint64(uint64(value))
}

// EncodeUint64 encodes the value into a buffer in LEB128 format
func EncodeUint64(value uint64) (buf []byte) {
	for {
		b := uint8(value & 0x7f)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if b&0x80 == 0 {
			return buf
		}
	}
}

// LoadUint32 decodes an unsigned value from the start of buf, returning the
// number of bytes read.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	var shift uint
	for i := 0; i < maxVarintLen32; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("readByte failed: unexpected EOF after %d bytes", i)
		}
		b := buf[i]
		if i == maxVarintLen32-1 && b > 0x0f {
			return 0, 0, errOverflow32
		}
		ret |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return ret, uint64(i + 1), nil
		}
		shift += 7
	}
	return 0, 0, errOverflow32
}
