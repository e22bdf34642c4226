// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package zigzag implements the variable-length
// zigzag integer encoding that Avro uses for
// int and long values and for every count and
// length in the object container format.
//
// A signed value n is first mapped to an unsigned
// value as (n << 1) ^ (n >> 63), so that small
// magnitudes of either sign produce small outputs,
// and the result is written 7 bits at a time,
// least significant group first, with the high
// bit of every byte but the last one set.
package zigzag

import (
	"errors"
	"io"
)

// MaxLen is the maximum number of bytes
// in the encoding of a 64-bit value.
const MaxLen = 10

// ErrOverflow is returned when an encoded
// value does not fit in 64 bits.
var ErrOverflow = errors.New("zigzag: varint overflows a 64-bit integer")

func zig(n int64) uint64 { return uint64((n << 1) ^ (n >> 63)) }

func zag(u uint64) int64 {
	if u&1 == 0 {
		return int64(u >> 1)
	}
	return int64(^(u >> 1))
}

// Size returns the number of bytes
// used to encode n.
func Size(n int64) int {
	u := zig(n)
	size := 1
	for u > 0x7f {
		u >>= 7
		size++
	}
	return size
}

// Append appends the encoding of n to dst
// and returns the extended buffer.
func Append(dst []byte, n int64) []byte {
	u := zig(n)
	for u > 0x7f {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// Write writes the encoding of n to w
// using a single call to w.Write.
func Write(w io.Writer, n int64) error {
	var buf [MaxLen]byte
	_, err := w.Write(Append(buf[:0], n))
	return err
}

// Read reads one encoded value from r.
//
// If r is exhausted before the first byte
// of the value, Read returns io.EOF. If r
// is exhausted in the middle of a value,
// Read returns io.ErrUnexpectedEOF. Values
// longer than MaxLen bytes, or whose final
// byte carries bits beyond the 64th, produce
// ErrOverflow. Any other error from r is
// returned as-is.
func Read(r io.ByteReader) (int64, error) {
	var u uint64
	for i := 0; i < MaxLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		if i == MaxLen-1 && b > 1 {
			return 0, ErrOverflow
		}
		u |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return zag(u), nil
		}
	}
	return 0, ErrOverflow
}

// Decode decodes one value from the front of buf
// and returns the value and the number of bytes
// consumed. The error conditions are the same
// as for Read: io.EOF when buf is empty,
// io.ErrUnexpectedEOF when buf ends inside a
// value, and ErrOverflow for overlong values.
func Decode(buf []byte) (int64, int, error) {
	if len(buf) == 0 {
		return 0, 0, io.EOF
	}
	var u uint64
	for i := 0; i < MaxLen; i++ {
		if i == len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := buf[i]
		if i == MaxLen-1 && b > 1 {
			return 0, 0, ErrOverflow
		}
		u |= uint64(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return zag(u), i + 1, nil
		}
	}
	return 0, 0, ErrOverflow
}
