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

// avropack writes an Avro object container file
// from a schema file and pre-encoded row data.
//
// Usage:
//
//	avropack -s schema.avsc [-c codec] [-n rows] [-o out.avro] rows.bin ...
//
// Each input holds -n rows already encoded in the
// Avro binary encoding of the schema's record type.
// The schema may be JSON (comments allowed) or YAML.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/SnellerInc/avro/compr"
	"github.com/SnellerInc/avro/ocf"
	"github.com/SnellerInc/avro/schema"
)

var (
	dashv      bool
	dashh      bool
	dashs      string
	dashc      string
	dashn      int
	dasho      string
	dashmarker string
	dasht      int
	dashmeta   = make(map[string][]byte)
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose")
	flag.BoolVar(&dashh, "h", false, "show usage help")
	flag.StringVar(&dashs, "s", "", "schema file (.json, .avsc, .yaml)")
	flag.StringVar(&dashc, "c", "null", "codec (null, "+strings.Join(compr.Names(), ", ")+")")
	flag.IntVar(&dashn, "n", 1, "number of rows in each input")
	flag.StringVar(&dasho, "o", "-", "output file (or - for stdout)")
	flag.StringVar(&dashmarker, "marker", "random", "sync marker: random, schema, or default")
	flag.IntVar(&dasht, "t", ocf.DefaultTargetSize, "target uncompressed block size")
	flag.Func("m", "extra metadata entry key=value (may be repeated)", func(s string) error {
		k, v, ok := strings.Cut(s, "=")
		if !ok || k == "" {
			return fmt.Errorf("expected key=value, got %q", s)
		}
		dashmeta[k] = []byte(v)
		return nil
	})
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	if f[len(f)-1] != '\n' {
		f += "\n"
	}
	fmt.Fprintf(os.Stderr, f, args...)
}

func loadRecord(path string) (schema.Record, error) {
	s, err := schema.ReadFile(path)
	if err != nil {
		return schema.Record{}, err
	}
	if err := schema.Validate(s); err != nil {
		return schema.Record{}, err
	}
	rec, ok := s.(schema.Record)
	if !ok {
		return schema.Record{}, fmt.Errorf("%s: top-level schema is %s, not a record", path, s.Type())
	}
	return rec, nil
}

// codec resolves a -c argument; names outside
// ocf.Compression (zstandard) are returned as an
// explicit compressor, since not every reader
// will decode them
func codec(name string) (ocf.Compression, compr.Compressor, error) {
	c := ocf.ParseCompression(name)
	if c == ocf.None && name != "null" && name != "" {
		if cmp := compr.Compression(name); cmp != nil {
			return ocf.None, cmp, nil
		}
		return c, nil, fmt.Errorf("unknown codec %q", name)
	}
	if c != ocf.None && compr.Compression(name) == nil {
		return c, nil, fmt.Errorf("codec %q was not compiled in", name)
	}
	return c, nil, nil
}

func marker(kind string, rec schema.Record) (ocf.Marker, error) {
	switch kind {
	case "random":
		return ocf.NewMarker(), nil
	case "default":
		return ocf.DefaultMarker, nil
	case "schema":
		return ocf.MarkerFor(schema.Canonical(rec)), nil
	default:
		return ocf.Marker{}, fmt.Errorf("unknown marker kind %q", kind)
	}
}

// pack writes a file holding rows
// rows from each input to w
func pack(w *ocf.Writer, rec schema.Record, rows int, inputs []io.Reader) error {
	if err := w.Start(rec); err != nil {
		return err
	}
	for i, in := range inputs {
		buf, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if err := w.Append(rows, buf); err != nil {
			return err
		}
	}
	return w.Close()
}

func main() {
	flag.Parse()
	if dashh || dashs == "" {
		flag.Usage()
		os.Exit(1)
	}
	rec, err := loadRecord(dashs)
	if err != nil {
		exitf("%s\n", err)
	}
	c, cmp, err := codec(dashc)
	if err != nil {
		exitf("%s\n", err)
	}
	m, err := marker(dashmarker, rec)
	if err != nil {
		exitf("%s\n", err)
	}

	var out io.Writer = os.Stdout
	var f *os.File
	if dasho != "-" {
		f, err = os.Create(dasho)
		if err != nil {
			exitf("%s\n", err)
		}
		out = f
	}
	bw := bufio.NewWriter(out)
	w := &ocf.Writer{
		Output:      bw,
		Compression: c,
		Compressor:  cmp,
		Marker:      m,
		Meta:        dashmeta,
		TargetSize:  dasht,
	}
	if dashv {
		w.Logf = logf
	}

	var inputs []io.Reader
	args := flag.Args()
	if len(args) == 0 {
		inputs = append(inputs, os.Stdin)
	}
	for _, arg := range args {
		in, err := os.Open(arg)
		if err != nil {
			exitf("can't open %q: %s\n", arg, err)
		}
		defer in.Close()
		inputs = append(inputs, in)
	}
	if err := pack(w, rec, dashn, inputs); err != nil {
		exitf("%s\n", err)
	}
	if err := bw.Flush(); err != nil {
		exitf("%s\n", err)
	}
	if f != nil {
		if err := f.Close(); err != nil {
			exitf("%s\n", err)
		}
	}
}
