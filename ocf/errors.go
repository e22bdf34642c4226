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

// Package ocf reads and writes Avro object container files.
//
// A container file is a header (magic bytes,
// a metadata map holding the schema and codec,
// and a 16-byte sync marker) followed by a
// sequence of blocks, each framed as a row count,
// a byte length, the (possibly compressed) payload
// and a copy of the sync marker.
//
// Row data inside a block is left to the caller;
// this package only deals with the framing.
package ocf

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrOutOfSpec is returned when the input
	// does not conform to the container file format.
	// I/O errors from the underlying stream are also
	// reported as ErrOutOfSpec; the original error
	// remains available through errors.Is/errors.As.
	ErrOutOfSpec = errors.New("ocf: out of spec")
	// ErrRequiresCompression is returned when
	// a block uses a codec that was not compiled
	// into this binary (see the nocompress build tag).
	ErrRequiresCompression = errors.New("ocf: codec requires compression support")
)

// outOfSpec wraps err so that it matches ErrOutOfSpec
func outOfSpec(err error) error {
	if err == nil || errors.Is(err, ErrOutOfSpec) || errors.Is(err, ErrRequiresCompression) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrOutOfSpec, err)
}

func specf(f string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOutOfSpec, fmt.Sprintf(f, args...))
}

// truncated converts io.EOF into io.ErrUnexpectedEOF
// for reads that begin after the start of a record
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
