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
	"fmt"

	"github.com/SnellerInc/avro/compr"
)

// Compress compresses src into dst using codec c.
// dst.Rows is set to src.Rows.
//
// When c is None the buffers of src and dst are
// exchanged rather than copied, and Compress returns
// swapped=true. The caller owns both buffers again
// once it swaps them back:
//
//	src.Data, dst.Data = dst.Data, src.Data
//
// which must happen before src is reused.
func Compress(src *Block, dst *CompressedBlock, c Compression) (swapped bool, err error) {
	if c == None {
		dst.Rows = src.Rows
		src.Data, dst.Data = dst.Data, src.Data
		return true, nil
	}
	cmp := compr.Compression(c.String())
	if cmp == nil {
		return false, codecError(c)
	}
	return false, CompressWith(src, dst, cmp)
}

// CompressWith compresses src into dst with an
// explicitly chosen codec, which need not be
// one of the Compression values. The buffers
// are never swapped.
func CompressWith(src *Block, dst *CompressedBlock, cmp compr.Compressor) error {
	dst.Rows = src.Rows
	out, err := cmp.Compress(src.Data, dst.Data[:0])
	if err != nil {
		return outOfSpec(err)
	}
	dst.Data = out
	return nil
}

// Decompress decompresses src into dst using codec c,
// refusing to produce more than DefaultMaxBlockSize bytes.
// The buffer ownership rules are the same as for Compress.
func Decompress(src *CompressedBlock, dst *Block, c Compression) (swapped bool, err error) {
	return DecompressLimit(src, dst, c, DefaultMaxBlockSize)
}

// DecompressLimit is like Decompress, but a block
// that would decompress to more than limit bytes
// is rejected with ErrOutOfSpec before space for
// it is allocated.
func DecompressLimit(src *CompressedBlock, dst *Block, c Compression, limit int) (swapped bool, err error) {
	if c == None {
		if len(src.Data) > limit {
			return false, specf("block of %d bytes exceeds limit %d", len(src.Data), limit)
		}
		dst.Rows = src.Rows
		src.Data, dst.Data = dst.Data, src.Data
		return true, nil
	}
	dc := compr.Decompression(c.String())
	if dc == nil {
		return false, codecError(c)
	}
	return false, DecompressWith(src, dst, dc, limit)
}

// DecompressWith decompresses src into dst with an
// explicitly chosen codec. See CompressWith.
func DecompressWith(src *CompressedBlock, dst *Block, dc compr.Decompressor, limit int) error {
	dst.Rows = src.Rows
	out, err := dc.Decompress(src.Data, dst.Data[:0], limit)
	if err != nil {
		return outOfSpec(err)
	}
	dst.Data = out
	return nil
}

func codecError(c Compression) error {
	if c > Snappy {
		return specf("unknown compression %d", c)
	}
	return fmt.Errorf("%w: %s", ErrRequiresCompression, c)
}
