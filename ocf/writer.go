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
	"github.com/SnellerInc/avro/schema"
)

// DefaultTargetSize is the default
// value of Writer.TargetSize.
const DefaultTargetSize = 1 << 20

// Writer is a buffered container file writer.
//
// Rows are accumulated in memory and written
// as a single block once at least TargetSize
// bytes of row data have been buffered, or
// when Flush or Close is called.
type Writer struct {
	// Output is the destination of the file.
	Output io.Writer
	// Compression is the codec used for blocks.
	Compression Compression
	// Compressor, if non-nil, overrides Compression.
	// Its Name is written as avro.codec, which
	// allows writing codecs outside of Compression
	// for readers that opt in to them.
	Compressor compr.Compressor
	// Marker is the sync marker. If it is
	// the zero value, Start picks a random one.
	Marker Marker
	// Meta holds additional header entries.
	// It may not contain avro.schema or avro.codec.
	Meta map[string][]byte
	// TargetSize is the uncompressed size at
	// which a block is flushed. If it is zero,
	// DefaultTargetSize is used.
	TargetSize int
	// Logf, if non-nil, is used to log
	// each block as it is written.
	Logf func(f string, args ...any)

	block   Block
	comp    CompressedBlock
	frame   []byte
	started bool
	blocks  int
	rows    int64
}

var errNotStarted = errors.New("ocf: Writer.Start not called")

func (w *Writer) logf(f string, args ...any) {
	if w.Logf != nil {
		w.Logf(f, args...)
	}
}

func (w *Writer) codec() string {
	if w.Compressor != nil {
		return w.Compressor.Name()
	}
	return codecName(w.Compression)
}

func (w *Writer) target() int {
	if w.TargetSize <= 0 {
		return DefaultTargetSize
	}
	return w.TargetSize
}

// Start writes the file header for rec.
func (w *Writer) Start(rec schema.Record) error {
	if w.started {
		return specf("Writer.Start called twice")
	}
	if w.Marker == (Marker{}) {
		w.Marker = NewMarker()
	}
	if err := writeMetadata(w.Output, rec, w.codec(), w.Marker, w.Meta); err != nil {
		return err
	}
	w.started = true
	return nil
}

// Append adds rows encoded rows, held in data,
// to the current block. The caller is responsible
// for encoding data according to the schema
// passed to Start.
func (w *Writer) Append(rows int, data []byte) error {
	if !w.started {
		return outOfSpec(errNotStarted)
	}
	if rows < 0 {
		return specf("negative row count %d", rows)
	}
	w.block.Rows += rows
	w.block.Data = append(w.block.Data, data...)
	if len(w.block.Data) >= w.target() {
		return w.Flush()
	}
	return nil
}

// Flush writes any buffered rows as a block.
func (w *Writer) Flush() error {
	if !w.started {
		return outOfSpec(errNotStarted)
	}
	if w.block.Rows == 0 {
		w.block.Data = w.block.Data[:0]
		return nil
	}
	size := len(w.block.Data)
	var swapped bool
	var err error
	if w.Compressor != nil {
		err = CompressWith(&w.block, &w.comp, w.Compressor)
	} else {
		swapped, err = Compress(&w.block, &w.comp, w.Compression)
	}
	if err != nil {
		return err
	}
	csize := len(w.comp.Data)
	err = writeBlock(w.Output, &w.comp, w.Marker, &w.frame)
	if swapped {
		w.block.Data, w.comp.Data = w.comp.Data, w.block.Data
	}
	if err != nil {
		return err
	}
	w.blocks++
	w.rows += int64(w.block.Rows)
	w.logf("ocf: block %d: %d rows, %d bytes -> %d bytes (%s)",
		w.blocks, w.block.Rows, size, csize, w.codec())
	w.block.Rows = 0
	w.block.Data = w.block.Data[:0]
	return nil
}

// Close flushes any buffered rows.
// It does not close Output.
func (w *Writer) Close() error {
	if !w.started {
		return outOfSpec(errNotStarted)
	}
	err := w.Flush()
	if err == nil {
		w.logf("ocf: wrote %d rows in %d blocks", w.rows, w.blocks)
	}
	return err
}

// Blocks returns the number of
// blocks written so far.
func (w *Writer) Blocks() int { return w.blocks }
