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

//go:build nocompress

package ocf

import (
	"errors"
	"testing"
)

func TestRequiresCompression(t *testing.T) {
	for _, c := range []Compression{Deflate, Snappy} {
		var cb CompressedBlock
		_, err := Compress(&Block{Rows: 1, Data: []byte{1}}, &cb, c)
		if !errors.Is(err, ErrRequiresCompression) || errors.Is(err, ErrOutOfSpec) {
			t.Errorf("%s: Compress returned %v", c, err)
		}
		var b Block
		_, err = Decompress(&CompressedBlock{Rows: 1, Data: []byte{1}}, &b, c)
		if !errors.Is(err, ErrRequiresCompression) {
			t.Errorf("%s: Decompress returned %v", c, err)
		}
	}
	// the identity codec needs no support
	var cb CompressedBlock
	if swapped, err := Compress(&Block{Rows: 1, Data: []byte{1}}, &cb, None); err != nil || !swapped {
		t.Fatalf("None: %v %v", swapped, err)
	}
}

func TestRequiresCompressionIterator(t *testing.T) {
	file := header([]entry{{"avro.codec", "deflate"}, {"avro.schema", floatSchema}})
	file = appendBlock(file, &CompressedBlock{Rows: 1, Data: []byte{1, 2, 3}}, DefaultMarker)
	_, _, err := readFile(t, file)
	if !errors.Is(err, ErrRequiresCompression) {
		t.Fatalf("got %v", err)
	}
}
