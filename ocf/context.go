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
	"context"
	"io"

	"github.com/SnellerInc/avro/schema"
)

// ctxReader checks for cancellation
// before every read from r
type ctxReader struct {
	ctx context.Context
	r   byteReader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func (c *ctxReader) ReadByte() (byte, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.ReadByte()
}

type ctxWriter struct {
	ctx context.Context
	w   io.Writer
}

func (c *ctxWriter) Write(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.w.Write(p)
}

// ReadMetadataContext is like ReadMetadata,
// but it stops reading once ctx is done.
// The returned error then matches both
// ErrOutOfSpec and ctx.Err().
func ReadMetadataContext(ctx context.Context, r io.Reader) (*FileMetadata, error) {
	return readMetadata(&ctxReader{ctx: ctx, r: asByteReader(r)})
}

// NewBlockIteratorContext is like NewBlockIterator,
// but every read made by the iterator first checks ctx.
func NewBlockIteratorContext(ctx context.Context, r io.Reader, c Compression, marker Marker) *BlockIterator {
	return newBlockIterator(&ctxReader{ctx: ctx, r: asByteReader(r)}, c, marker)
}

// WriteMetadataContext is like WriteMetadata,
// but it does not write anything if ctx is done.
// The header is written with a single call to w.Write.
func WriteMetadataContext(ctx context.Context, w io.Writer, rec schema.Record, c Compression) error {
	return writeMetadata(&ctxWriter{ctx: ctx, w: w}, rec, codecName(c), DefaultMarker, nil)
}

// WriteBlockContext is like WriteBlock,
// but it does not write anything if ctx is done.
func WriteBlockContext(ctx context.Context, w io.Writer, b *CompressedBlock) error {
	return writeBlock(&ctxWriter{ctx: ctx, w: w}, b, DefaultMarker, nil)
}
