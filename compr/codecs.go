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

//go:build !nocompress

package compr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/slices"
)

func init() {
	d := deflateCompressor{}
	compressors[d.Name()] = d
	decompressors[d.Name()] = d
	s := snappyCompressor{}
	compressors[s.Name()] = s
	decompressors[s.Name()] = s

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(MaxDecoderMemory))
	if err != nil {
		panic(err)
	}
	compressors["zstandard"] = zstdCompressor{enc}
	decompressors["zstandard"] = (*zstdDecompressor)(dec)
}

// appender is an io.Writer
// that appends to buf
type appender struct {
	buf []byte
}

func (a *appender) Write(p []byte) (int, error) {
	a.buf = append(a.buf, p...)
	return len(p), nil
}

// readAppend reads r until io.EOF, appending
// everything to dst; reading more than limit
// bytes is an error
func readAppend(dst []byte, r io.Reader, limit int) ([]byte, error) {
	start := len(dst)
	for {
		if len(dst)-start > limit {
			return dst, ErrTooLarge
		}
		if len(dst) == cap(dst) {
			dst = slices.Grow(dst, 512)
		}
		// read at most one byte past the limit
		room := cap(dst)
		if end := start + limit + 1; room > end {
			room = end
		}
		n, err := r.Read(dst[len(dst):room])
		dst = dst[:len(dst)+n]
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(dst)-start > limit {
					return dst, ErrTooLarge
				}
				err = nil
			}
			return dst, err
		}
	}
}

// deflateCompressor implements raw deflate
// (RFC 1951, no zlib or gzip framing)
type deflateCompressor struct{}

var (
	deflateWriters sync.Pool
	deflateReaders sync.Pool
)

func (deflateCompressor) Name() string { return "deflate" }

func (deflateCompressor) Compress(src, dst []byte) ([]byte, error) {
	out := &appender{buf: dst}
	w, _ := deflateWriters.Get().(*flate.Writer)
	if w == nil {
		var err error
		w, err = flate.NewWriter(out, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
	} else {
		w.Reset(out)
	}
	_, err := w.Write(src)
	if err == nil {
		err = w.Close()
	}
	deflateWriters.Put(w)
	if err != nil {
		return nil, err
	}
	return out.buf, nil
}

func (deflateCompressor) Decompress(src, dst []byte, limit int) ([]byte, error) {
	in := bytes.NewReader(src)
	r, _ := deflateReaders.Get().(io.ReadCloser)
	if r == nil {
		r = flate.NewReader(in)
	} else if err := r.(flate.Resetter).Reset(in, nil); err != nil {
		return nil, err
	}
	out, err := readAppend(dst, r, limit)
	r.Close()
	deflateReaders.Put(r)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return out, nil
}

// snappyCompressor implements the Avro "snappy"
// codec: a raw snappy block followed by the
// big-endian CRC32 (IEEE) of the uncompressed data
type snappyCompressor struct{}

func (snappyCompressor) Name() string { return "snappy" }

func (snappyCompressor) Compress(src, dst []byte) ([]byte, error) {
	n := s2.MaxEncodedLen(len(src))
	if n < 0 {
		return nil, fmt.Errorf("snappy: block of %d bytes is too large", len(src))
	}
	dst = slices.Grow(dst, n+4)
	tail := dst[len(dst) : len(dst)+n]
	// s2 requires non-overlapping src and dst
	if overlaps(src, tail) {
		tail = nil
	}
	dst = extend(dst, s2.EncodeSnappy(tail, src))
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(src)), nil
}

func (snappyCompressor) Decompress(src, dst []byte, limit int) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("snappy: block of %d bytes has no checksum", len(src))
	}
	body := src[:len(src)-4]
	want := binary.BigEndian.Uint32(src[len(src)-4:])
	n, err := s2.DecodedLen(body)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("snappy: block declares %d bytes: %w", n, ErrTooLarge)
	}
	dst = slices.Grow(dst, n)
	start := len(dst)
	tail := dst[start : start+n]
	if overlaps(body, tail) {
		tail = nil
	}
	got, err := s2.Decode(tail, body)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	dst = extend(dst, got)
	if crc32.ChecksumIEEE(dst[start:]) != want {
		return nil, fmt.Errorf("snappy: %w", ErrChecksum)
	}
	return dst, nil
}

type zstdCompressor struct {
	enc *zstd.Encoder
}

func (z zstdCompressor) Name() string { return "zstandard" }

func (z zstdCompressor) Compress(src, dst []byte) ([]byte, error) {
	return z.enc.EncodeAll(src, dst), nil
}

type zstdDecompressor zstd.Decoder

func (z *zstdDecompressor) Name() string { return "zstandard" }

func (z *zstdDecompressor) Decompress(src, dst []byte, limit int) ([]byte, error) {
	var h zstd.Header
	if err := h.Decode(src); err == nil && h.HasFCS && h.FrameContentSize > uint64(limit) {
		return nil, fmt.Errorf("zstandard: frame declares %d bytes: %w", h.FrameContentSize, ErrTooLarge)
	}
	start := len(dst)
	out, err := (*zstd.Decoder)(z).DecodeAll(src, dst)
	if err != nil {
		return nil, fmt.Errorf("zstandard: %w", err)
	}
	if len(out)-start > limit {
		return nil, fmt.Errorf("zstandard: %w", ErrTooLarge)
	}
	return out, nil
}
