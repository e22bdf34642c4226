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

// Package compr provides a unified interface wrapping
// the third-party compression libraries used for
// Avro container file blocks.
//
// Codecs are looked up by their Avro codec name
// ("deflate", "snappy", "zstandard"). Building with
// the nocompress tag removes every codec, in which
// case the lookup functions always return nil.
package compr

import (
	"errors"
	"unsafe"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Compressor describes the interface
// that a block compression algorithm implements.
type Compressor interface {
	// Name is the Avro codec name of
	// the compression algorithm.
	Name() string
	// Compress should append the compressed contents
	// of src to dst and return the result.
	Compress(src, dst []byte) ([]byte, error)
}

// Decompressor is the interface
// used to decompress blocks.
type Decompressor interface {
	// Name is the Avro codec name of the
	// compression algorithm.
	// See also Compressor.Name.
	Name() string
	// Decompress should append the decompressed
	// contents of src to dst and return the result.
	// If the decompressed data would be longer than
	// limit bytes, Decompress returns ErrTooLarge
	// without allocating space for it.
	//
	// It must be safe to make multiple
	// calls to Decompress simultaneously
	// from different goroutines.
	Decompress(src, dst []byte, limit int) ([]byte, error)
}

var (
	// ErrChecksum is returned by Decompress when
	// a codec that carries a checksum finds that
	// it does not match the decompressed data.
	ErrChecksum = errors.New("compr: checksum mismatch")
	// ErrTooLarge is returned by Decompress when
	// the output would exceed the given limit.
	ErrTooLarge = errors.New("compr: decompressed data exceeds limit")
)

// MaxDecoderMemory bounds the memory the
// zstandard decoder may use for a single frame,
// regardless of the limit passed to Decompress.
const MaxDecoderMemory = 1 << 30

var (
	compressors   = map[string]Compressor{}
	decompressors = map[string]Decompressor{}
)

// Compression selects a compression algorithm by name.
// The returned Compressor will return the same value
// for Compressor.Name as the specified name.
// It returns nil if the algorithm is unknown or
// was not compiled in.
func Compression(name string) Compressor {
	return compressors[name]
}

// Decompression selects a decompression
// algorithm by name, or returns nil.
// See also Compression.
func Decompression(name string) Decompressor {
	return decompressors[name]
}

// Names returns the sorted names
// of the available codecs.
func Names() []string {
	out := maps.Keys(compressors)
	slices.Sort(out)
	return out
}

func overlaps(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	a0 := uintptr(unsafe.Pointer(&a[0]))
	a1 := a0 + uintptr(len(a))
	b0 := uintptr(unsafe.Pointer(&b[0]))
	b1 := b0 + uintptr(len(b))
	return a0 < b1 && b0 < a1
}

// extend returns dst extended by len(got)
// if got was written into the spare capacity
// of dst, or dst with got appended otherwise
func extend(dst, got []byte) []byte {
	if len(got) == 0 {
		return dst
	}
	if tail := dst[len(dst):cap(dst)]; len(tail) >= len(got) && &tail[0] == &got[0] {
		return dst[:len(dst)+len(got)]
	}
	return append(dst, got...)
}
