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
	"errors"
	"io"

	"github.com/SnellerInc/avro/compr"
	"github.com/SnellerInc/avro/zigzag"
	"golang.org/x/exp/slices"
)

// CompressedBlockIterator reads raw blocks from a stream.
//
// A single CompressedBlock is reused for every block,
// so the block returned by Current is only valid
// until the next call to Advance.
type CompressedBlockIterator struct {
	// MaxBlockSize is the largest block payload
	// accepted. If it is zero, DefaultMaxBlockSize
	// is used.
	MaxBlockSize int

	src    byteReader
	marker Marker
	block  CompressedBlock
	sync   Marker
}

// NewCompressedBlockIterator returns an iterator
// over the blocks in r. The header must already
// have been consumed from r (see ReadMetadata),
// and marker is the sync marker from the header.
func NewCompressedBlockIterator(r io.Reader, marker Marker) *CompressedBlockIterator {
	return &CompressedBlockIterator{src: asByteReader(r), marker: marker}
}

func (it *CompressedBlockIterator) maxSize() int64 {
	if it.MaxBlockSize > 0 {
		return int64(it.MaxBlockSize)
	}
	return DefaultMaxBlockSize
}

// Advance reads the next block.
//
// When the stream ends cleanly (at the start of
// a block) Advance returns nil and Current returns
// nil afterwards. A stream that ends anywhere else,
// a block whose sync marker does not match, or a
// block larger than MaxBlockSize produce an error
// matching ErrOutOfSpec. Errors are not recoverable.
func (it *CompressedBlockIterator) Advance() error {
	it.block.Rows = 0
	rows, err := zigzag.Read(it.src)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return outOfSpec(err)
	}
	if rows < 0 {
		return specf("block row count %d", rows)
	}
	size, err := zigzag.Read(it.src)
	if err != nil {
		return outOfSpec(truncated(err))
	}
	if size < 0 || size > it.maxSize() {
		return specf("block size %d exceeds limit %d", size, it.maxSize())
	}
	it.block.Data = slices.Grow(it.block.Data[:0], int(size))[:size]
	if _, err := io.ReadFull(it.src, it.block.Data); err != nil {
		return outOfSpec(truncated(err))
	}
	if _, err := io.ReadFull(it.src, it.sync[:]); err != nil {
		return outOfSpec(truncated(err))
	}
	if it.sync != it.marker {
		return specf("sync marker mismatch: got %x, want %x", it.sync[:], it.marker[:])
	}
	it.block.Rows = int(rows)
	return nil
}

// Current returns the block read by the last
// call to Advance, or nil if there is none.
func (it *CompressedBlockIterator) Current() *CompressedBlock {
	if it.block.Rows > 0 {
		return &it.block
	}
	return nil
}

// BlockIterator reads blocks from a stream
// and decompresses them.
//
// Like CompressedBlockIterator, the returned
// block is reused by the next call to Advance.
// When the file is uncompressed, no bytes
// are copied between the read buffer and
// the returned block.
type BlockIterator struct {
	// MaxBlockSize is the largest block payload
	// accepted, both before and after decompression.
	// See CompressedBlockIterator.MaxBlockSize.
	MaxBlockSize int
	// Decompressor, if non-nil, is used in place
	// of the Compression passed to NewBlockIterator.
	// It lets callers opt in to codecs that are
	// not Compression values, for example:
	//
	//	it.Decompressor = compr.Decompression(fm.Codec)
	//
	// Output is still limited to MaxBlockSize bytes.
	Decompressor compr.Decompressor

	inner   CompressedBlockIterator
	codec   Compression
	block   Block
	swapped bool
}

// NewBlockIterator returns an iterator over the
// decompressed blocks in r, which must be positioned
// just past the header.
func NewBlockIterator(r io.Reader, c Compression, marker Marker) *BlockIterator {
	return newBlockIterator(asByteReader(r), c, marker)
}

func newBlockIterator(br byteReader, c Compression, marker Marker) *BlockIterator {
	return &BlockIterator{
		inner: CompressedBlockIterator{src: br, marker: marker},
		codec: c,
	}
}

// Advance reads and decompresses the next block.
// See CompressedBlockIterator.Advance.
func (it *BlockIterator) Advance() error {
	// return the buffer we borrowed on the previous
	// step before the inner iterator reads into it again
	if it.swapped {
		it.inner.block.Data, it.block.Data = it.block.Data, it.inner.block.Data
		it.swapped = false
	}
	it.block.Rows = 0
	it.inner.MaxBlockSize = it.MaxBlockSize
	if err := it.inner.Advance(); err != nil {
		return err
	}
	cb := it.inner.Current()
	if cb == nil {
		return nil
	}
	limit := int(it.inner.maxSize())
	var swapped bool
	var err error
	if it.Decompressor != nil {
		err = DecompressWith(cb, &it.block, it.Decompressor, limit)
	} else {
		swapped, err = DecompressLimit(cb, &it.block, it.codec, limit)
	}
	if err != nil {
		it.block.Rows = 0
		return err
	}
	it.swapped = swapped
	return nil
}

// Current returns the most recently decompressed
// block, or nil if there is none.
func (it *BlockIterator) Current() *Block {
	if it.block.Rows > 0 {
		return &it.block
	}
	return nil
}

// Next is Advance followed by Current.
// It returns (nil, nil) at the end of the stream.
func (it *BlockIterator) Next() (*Block, error) {
	if err := it.Advance(); err != nil {
		return nil, err
	}
	return it.Current(), nil
}

// Compression returns the codec the
// iterator decompresses blocks with.
func (it *BlockIterator) Compression() Compression { return it.codec }

// Reader returns the stream the iterator reads from.
func (it *BlockIterator) Reader() io.Reader {
	br := it.inner.src
	if c, ok := br.(*ctxReader); ok {
		br = c.r
	}
	if o, ok := br.(*oneByte); ok {
		return o.r
	}
	return br
}

// WriteBlock writes a block to w followed
// by DefaultMarker. The block should already
// be compressed (see Compress).
func WriteBlock(w io.Writer, b *CompressedBlock) error {
	return writeBlock(w, b, DefaultMarker, nil)
}

func appendBlock(dst []byte, b *CompressedBlock, m Marker) []byte {
	dst = zigzag.Append(dst, int64(b.Rows))
	dst = zigzag.Append(dst, int64(len(b.Data)))
	dst = append(dst, b.Data...)
	return append(dst, m[:]...)
}

// writeBlock frames b and issues a single Write;
// if scratch is non-nil it is used (and kept)
// as the framing buffer
func writeBlock(w io.Writer, b *CompressedBlock, m Marker, scratch *[]byte) error {
	var buf []byte
	if scratch != nil {
		buf = (*scratch)[:0]
	}
	buf = appendBlock(buf, b, m)
	if scratch != nil {
		*scratch = buf
	}
	_, err := w.Write(buf)
	return outOfSpec(err)
}
