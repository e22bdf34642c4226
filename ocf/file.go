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
	"encoding/binary"

	"github.com/SnellerInc/avro/schema"
	"github.com/dchest/siphash"
	"github.com/google/uuid"
)

// MarkerSize is the size of a sync marker in bytes.
const MarkerSize = 16

// Marker is the sync marker written after the
// header and after every block of a file.
type Marker [MarkerSize]byte

// Magic is the four-byte prefix of every container file.
var Magic = [4]byte{'O', 'b', 'j', 1}

// DefaultMarker is the marker used by
// WriteMetadata and WriteBlock.
//
// Files written with a fixed marker are
// byte-for-byte reproducible, but a marker
// is meant to be unique per file; use Writer
// (which picks a random marker by default)
// when that matters.
var DefaultMarker = Marker{1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4}

// NewMarker returns a random marker.
func NewMarker() Marker {
	return Marker(uuid.New())
}

// siphash keys for MarkerFor; arbitrary
// but fixed so that markers are stable
const (
	markerK0 = 0x6176726f2d6f6366
	markerK1 = 0x73796e632d6d6b72
)

// MarkerFor returns a marker derived
// from the given bytes (typically the JSON
// text of the file schema), so that writing
// the same schema twice produces the same marker.
func MarkerFor(text []byte) Marker {
	var m Marker
	lo, hi := siphash.Hash128(markerK0, markerK1, text)
	binary.LittleEndian.PutUint64(m[:], lo)
	binary.LittleEndian.PutUint64(m[8:], hi)
	return m
}

// Compression is the codec applied to block payloads.
//
// Files using any other avro.codec value are
// read as uncompressed; see FileMetadata.Codec and
// BlockIterator.Decompressor for reading them with
// another codec from the compr package.
type Compression uint8

const (
	// None means blocks are stored uncompressed.
	None Compression = iota
	// Deflate is raw deflate (RFC 1951).
	Deflate
	// Snappy is a snappy block followed
	// by the CRC32 of the uncompressed data.
	Snappy
)

var codecNames = [...]string{
	None:    "null",
	Deflate: "deflate",
	Snappy:  "snappy",
}

// String returns the avro.codec name of c.
func (c Compression) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return "unknown"
}

// ParseCompression returns the Compression
// whose name is exactly name. Unrecognized names
// (including the empty string) map to None.
func ParseCompression(name string) Compression {
	switch name {
	case "deflate":
		return Deflate
	case "snappy":
		return Snappy
	default:
		return None
	}
}

// FileMetadata is the decoded header of a container file.
type FileMetadata struct {
	// Record is the schema of each row in the file.
	Record schema.Record
	// Compression is the codec used for every block.
	Compression Compression
	// Codec is the raw avro.codec value,
	// or "" if the header has none.
	Codec string
	// Marker is the sync marker that
	// follows every block.
	Marker Marker
	// Meta holds header entries other
	// than avro.schema and avro.codec.
	Meta map[string][]byte
}

// CompressedBlock is a block as stored in the file.
// Data may be compressed.
type CompressedBlock struct {
	Rows int
	Data []byte
}

// Block is a block of encoded rows.
type Block struct {
	Rows int
	Data []byte
}
