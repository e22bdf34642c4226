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

// avrodump prints the header and block layout
// of Avro object container files.
//
// Usage:
//
//	avrodump [-yaml] [-digest] [-v] file.avro ...
//
// With no arguments (or "-") the file is read from stdin.
package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/SnellerInc/avro/compr"
	"github.com/SnellerInc/avro/ocf"
	"github.com/SnellerInc/avro/schema"
	"golang.org/x/crypto/blake2b"
	"sigs.k8s.io/yaml"
)

var (
	dashv      bool
	dashh      bool
	dashyaml   bool
	dashdigest bool
	dashheader bool
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.BoolVar(&dashh, "h", false, "show usage help")
	flag.BoolVar(&dashyaml, "yaml", false, "print YAML instead of JSON")
	flag.BoolVar(&dashdigest, "digest", false, "print the blake2b-256 digest of each block")
	flag.BoolVar(&dashheader, "header", false, "only print the header")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	if !dashv {
		return
	}
	if f[len(f)-1] != '\n' {
		f += "\n"
	}
	fmt.Fprintf(os.Stderr, f, args...)
}

type blockInfo struct {
	Rows         int    `json:"rows"`
	Size         int    `json:"size"`
	Decompressed int    `json:"decompressed"`
	Digest       string `json:"blake2b,omitempty"`
}

type fileInfo struct {
	File        string            `json:"file"`
	Schema      json.RawMessage   `json:"schema"`
	Canonical   string            `json:"canonical"`
	Fingerprint string            `json:"fingerprint"`
	Codec       string            `json:"codec"`
	Marker      string            `json:"marker"`
	Meta        map[string]string `json:"meta,omitempty"`
	Rows        int64             `json:"rows"`
	Blocks      []blockInfo       `json:"blocks,omitempty"`
}

// metaString returns v as text if it is
// valid UTF-8, or as a hex string otherwise
func metaString(v []byte) string {
	if utf8.Valid(v) {
		return string(v)
	}
	return "0x" + hex.EncodeToString(v)
}

func describe(name string, src io.Reader, blocks, digest bool) (*fileInfo, error) {
	fm, err := ocf.ReadMetadata(src)
	if err != nil {
		return nil, err
	}
	text, err := schema.Marshal(fm.Record)
	if err != nil {
		return nil, err
	}
	info := &fileInfo{
		File:        name,
		Schema:      text,
		Canonical:   string(schema.Canonical(fm.Record)),
		Fingerprint: "0x" + strconv.FormatUint(schema.Fingerprint64(fm.Record), 16),
		Codec:       fm.Codec,
		Marker:      hex.EncodeToString(fm.Marker[:]),
	}
	for k, v := range fm.Meta {
		if info.Meta == nil {
			info.Meta = make(map[string]string, len(fm.Meta))
		}
		info.Meta[k] = metaString(v)
	}
	if info.Codec == "" {
		info.Codec = ocf.None.String()
	}
	logf("%s: schema %s, codec %s", name, fm.Record.FullName(), info.Codec)
	if !blocks {
		return info, nil
	}
	// decode codecs outside ocf.Compression
	// (for example zstandard) when they are available
	var dc compr.Decompressor
	if fm.Compression == ocf.None && info.Codec != ocf.None.String() {
		dc = compr.Decompression(fm.Codec)
		if dc == nil {
			logf("%s: codec %q not supported; reporting raw sizes", name, fm.Codec)
		}
	}
	it := ocf.NewCompressedBlockIterator(src, fm.Marker)
	var out ocf.Block
	for {
		if err := it.Advance(); err != nil {
			return nil, fmt.Errorf("block %d: %w", len(info.Blocks), err)
		}
		cb := it.Current()
		if cb == nil {
			break
		}
		bi := blockInfo{Rows: cb.Rows, Size: len(cb.Data)}
		if digest {
			sum := blake2b.Sum256(cb.Data)
			bi.Digest = hex.EncodeToString(sum[:])
		}
		var swapped bool
		if dc != nil {
			err = ocf.DecompressWith(cb, &out, dc, ocf.DefaultMaxBlockSize)
		} else {
			swapped, err = ocf.Decompress(cb, &out, fm.Compression)
		}
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", len(info.Blocks), err)
		}
		bi.Decompressed = len(out.Data)
		if swapped {
			cb.Data, out.Data = out.Data, cb.Data
		}
		logf("block %d: %d rows, %d bytes", len(info.Blocks), bi.Rows, bi.Size)
		info.Blocks = append(info.Blocks, bi)
		info.Rows += int64(bi.Rows)
	}
	return info, nil
}

func format(info *fileInfo, asYAML bool) ([]byte, error) {
	buf, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	if asYAML {
		return yaml.JSONToYAML(buf)
	}
	return append(buf, '\n'), nil
}

func dump(o io.Writer, name string) {
	var in *os.File
	if name == "-" {
		in = os.Stdin
	} else {
		var err error
		in, err = os.Open(name)
		if err != nil {
			exitf("can't open %q: %s\n", name, err)
		}
		defer in.Close()
	}
	var src io.Reader
	if st, err := in.Stat(); err == nil && st.Mode().IsRegular() && st.Size() > 0 {
		if mem, ok := mmap(in, st.Size()); ok {
			defer unmap(mem)
			src = bytes.NewReader(mem)
		}
	}
	if src == nil {
		src = bufio.NewReader(in)
	}
	info, err := describe(name, src, !dashheader, dashdigest)
	if err != nil {
		exitf("%s: %s\n", name, err)
	}
	buf, err := format(info, dashyaml)
	if err != nil {
		exitf("%s: %s\n", name, err)
	}
	if dashyaml {
		buf = append([]byte("---\n"), buf...)
	}
	if _, err := o.Write(buf); err != nil {
		exitf("%s\n", err)
	}
}

func main() {
	flag.Parse()
	if dashh {
		flag.Usage()
		os.Exit(0)
	}
	o := bufio.NewWriter(os.Stdout)
	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, arg := range args {
		dump(o, arg)
	}
	if err := o.Flush(); err != nil {
		exitf("%s\n", err)
	}
}
