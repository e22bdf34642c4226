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

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SnellerInc/avro/compr"
	"github.com/SnellerInc/avro/ocf"
	"github.com/SnellerInc/avro/schema"
)

const pointYAML = `
type: record
name: point
namespace: geo
fields:
  - name: lat
    type: int
  - name: lon
    type: int
`

func TestLoadRecord(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "point.yaml")
	if err := os.WriteFile(good, []byte(pointYAML), 0644); err != nil {
		t.Fatal(err)
	}
	rec, err := loadRecord(good)
	if err != nil {
		t.Fatal(err)
	}
	if rec.FullName() != "geo.point" || len(rec.Fields) != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}

	notRecord := filepath.Join(dir, "int.avsc")
	if err := os.WriteFile(notRecord, []byte(`"int" // just an int`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRecord(notRecord); err == nil {
		t.Fatal("expected an error for a non-record schema")
	}

	invalid := filepath.Join(dir, "dup.json")
	dup := `{"type":"record","name":"r","fields":[{"name":"a","type":"int"},{"name":"a","type":"int"}]}`
	if err := os.WriteFile(invalid, []byte(dup), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRecord(invalid); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestCodec(t *testing.T) {
	for _, name := range []string{"", "null"} {
		if c, cmp, err := codec(name); err != nil || c != ocf.None || cmp != nil {
			t.Errorf("codec(%q) = %s, %v, %v", name, c, cmp, err)
		}
	}
	if _, _, err := codec("lz4"); err == nil {
		t.Error("expected an error for an unknown codec")
	}
	if compr.Compression("zstandard") != nil {
		c, cmp, err := codec("zstandard")
		if err != nil || c != ocf.None || cmp == nil || cmp.Name() != "zstandard" {
			t.Errorf("codec(zstandard) = %s, %v, %v", c, cmp, err)
		}
	}
}

func TestMarker(t *testing.T) {
	rec := schema.NewRecord("r", schema.NewField("a", schema.Int{}))
	a, err := marker("schema", rec)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := marker("schema", rec)
	if a != b {
		t.Fatal("schema markers differ")
	}
	if d, _ := marker("default", rec); d != ocf.DefaultMarker {
		t.Fatal("default marker")
	}
	if _, err := marker("bogus", rec); err == nil {
		t.Fatal("expected an error")
	}
}

func TestPack(t *testing.T) {
	rec := schema.NewRecord("r", schema.NewField("a", schema.Int{}))
	var buf bytes.Buffer
	w := &ocf.Writer{Output: &buf, TargetSize: 2}
	inputs := []io.Reader{strings.NewReader("\x02\x04")}
	if err := pack(w, rec, 2, inputs); err != nil {
		t.Fatal(err)
	}
	fm, it, err := ocf.Open(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if fm.Record.Name != "r" {
		t.Fatalf("record %+v", fm.Record)
	}
	b, err := it.Next()
	if err != nil || b == nil {
		t.Fatalf("%v %v", b, err)
	}
	if b.Rows != 2 || string(b.Data) != "\x02\x04" {
		t.Fatalf("block %+v", b)
	}
	if b, err := it.Next(); err != nil || b != nil {
		t.Fatalf("expected end of file; got %v %v", b, err)
	}
}
