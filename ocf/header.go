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

package ocf

import (
	"bufio"
	"io"
	"unicode/utf8"

	"github.com/SnellerInc/avro/schema"
	"github.com/SnellerInc/avro/zigzag"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	schemaKey = "avro.schema"
	codecKey  = "avro.codec"
)

// DefaultMaxBlockSize is the largest block
// (and the largest header value) accepted
// by a reader unless configured otherwise.
const DefaultMaxBlockSize = 64 << 20

type byteReader interface {
	io.Reader
	io.ByteReader
}

// oneByte adapts an io.Reader to io.ByteReader
// without reading ahead of the current position
type oneByte struct {
	r   io.Reader
	buf [1]byte
}

func (o *oneByte) Read(p []byte) (int, error) { return o.r.Read(p) }

func (o *oneByte) ReadByte() (byte, error) {
	_, err := io.ReadFull(o.r, o.buf[:])
	return o.buf[0], err
}

func asByteReader(r io.Reader) byteReader {
	if br, ok := r.(byteReader); ok {
		return br
	}
	return &oneByte{r: r}
}

// ReadMetadata reads the header of a container file from r.
//
// ReadMetadata never reads past the end of the header,
// so r is positioned at the first block when it returns.
// If r does not implement io.ByteReader it is read one
// byte at a time while decoding integers; callers should
// wrap unbuffered sources in a bufio.Reader and pass the
// same reader to NewBlockIterator.
func ReadMetadata(r io.Reader) (*FileMetadata, error) {
	return readMetadata(asByteReader(r))
}

// Open reads the header from r and returns
// an iterator over the blocks that follow it.
// If r does not implement io.ByteReader, it
// is wrapped in a bufio.Reader.
func Open(r io.Reader) (*FileMetadata, *BlockIterator, error) {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	fm, err := readMetadata(br)
	if err != nil {
		return nil, nil, err
	}
	return fm, newBlockIterator(br, fm.Compression, fm.Marker), nil
}

func readMetadata(br byteReader) (*FileMetadata, error) {
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, outOfSpec(err)
	}
	if magic != Magic {
		return nil, specf("bad magic bytes %q", magic[:])
	}
	meta := make(map[string][]byte)
	for {
		n, err := readCount(br)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		for i := int64(0); i < n; i++ {
			key, err := readBytes(br)
			if err != nil {
				return nil, err
			}
			if !utf8.Valid(key) {
				return nil, specf("metadata key %q is not valid UTF-8", key)
			}
			val, err := readBytes(br)
			if err != nil {
				return nil, err
			}
			meta[string(key)] = val
		}
	}
	fm := &FileMetadata{}
	if _, err := io.ReadFull(br, fm.Marker[:]); err != nil {
		return nil, outOfSpec(truncated(err))
	}
	text, ok := meta[schemaKey]
	if !ok {
		return nil, specf("header is missing %s", schemaKey)
	}
	s, err := schema.Parse(text)
	if err != nil {
		return nil, outOfSpec(err)
	}
	rec, ok := s.(schema.Record)
	if !ok {
		return nil, specf("file schema is %s, not a record", s.Type())
	}
	fm.Record = rec
	fm.Codec = string(meta[codecKey])
	fm.Compression = ParseCompression(fm.Codec)
	delete(meta, schemaKey)
	delete(meta, codecKey)
	if len(meta) > 0 {
		fm.Meta = meta
	}
	return fm, nil
}

// readCount reads the item count of a map block.
// A negative count is followed by the size of the block
// in bytes, which is not needed here.
func readCount(br byteReader) (int64, error) {
	n, err := zigzag.Read(br)
	if err != nil {
		return 0, outOfSpec(truncated(err))
	}
	if n < 0 {
		if n == -n {
			return 0, specf("map block count %d", n)
		}
		n = -n
		if _, err := zigzag.Read(br); err != nil {
			return 0, outOfSpec(truncated(err))
		}
	}
	return n, nil
}

// readBytes reads a length-prefixed byte string
func readBytes(br byteReader) ([]byte, error) {
	n, err := zigzag.Read(br)
	if err != nil {
		return nil, outOfSpec(truncated(err))
	}
	if n < 0 || n > DefaultMaxBlockSize {
		return nil, specf("metadata entry length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, outOfSpec(truncated(err))
	}
	return buf, nil
}

// WriteMetadata writes the header of a container
// file with the given record schema and compression,
// using DefaultMarker as the sync marker.
func WriteMetadata(w io.Writer, rec schema.Record, c Compression) error {
	return writeMetadata(w, rec, codecName(c), DefaultMarker, nil)
}

// codecName is the avro.codec value for c,
// or "" if the entry should be omitted
func codecName(c Compression) string {
	if c == None {
		return ""
	}
	return c.String()
}

func appendMetadata(dst []byte, rec schema.Record, codec string, m Marker, meta map[string][]byte) ([]byte, error) {
	text, err := schema.Marshal(rec)
	if err != nil {
		return nil, outOfSpec(err)
	}
	entries := make(map[string][]byte, len(meta)+2)
	for k, v := range meta {
		if k == schemaKey || k == codecKey {
			return nil, specf("metadata key %q is reserved", k)
		}
		entries[k] = v
	}
	entries[schemaKey] = text
	if codec != "" {
		entries[codecKey] = []byte(codec)
	}
	keys := maps.Keys(entries)
	slices.Sort(keys)

	dst = append(dst, Magic[:]...)
	dst = zigzag.Append(dst, int64(len(keys)))
	for _, k := range keys {
		dst = zigzag.Append(dst, int64(len(k)))
		dst = append(dst, k...)
		dst = zigzag.Append(dst, int64(len(entries[k])))
		dst = append(dst, entries[k]...)
	}
	dst = zigzag.Append(dst, 0)
	return append(dst, m[:]...), nil
}

func writeMetadata(w io.Writer, rec schema.Record, codec string, m Marker, meta map[string][]byte) error {
	buf, err := appendMetadata(nil, rec, codec, m, meta)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return outOfSpec(err)
}
