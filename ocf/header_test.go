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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/SnellerInc/avro/schema"
	"github.com/SnellerInc/avro/zigzag"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func floatRecord() schema.Record {
	return schema.NewRecord("test", schema.NewField("f", schema.Float{}))
}

func floats(vals ...float32) []byte {
	var out []byte
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func readFloats(t *testing.T, buf []byte) []float32 {
	t.Helper()
	if len(buf)%4 != 0 {
		t.Fatalf("block of %d bytes is not a sequence of floats", len(buf))
	}
	var out []float32
	for len(buf) > 0 {
		out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(buf)))
		buf = buf[4:]
	}
	return out
}

// writeFile writes a file using WriteMetadata and WriteBlock
func writeFile(t *testing.T, c Compression, blocks ...[]float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteMetadata(&buf, floatRecord(), c); err != nil {
		t.Fatal(err)
	}
	var cb CompressedBlock
	for i := range blocks {
		b := Block{Rows: len(blocks[i]), Data: floats(blocks[i]...)}
		if _, err := Compress(&b, &cb, c); err != nil {
			t.Fatal(err)
		}
		if err := WriteBlock(&buf, &cb); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

// readFile reads every block back as floats
func readFile(t *testing.T, file []byte) (*FileMetadata, [][]float32, error) {
	t.Helper()
	rd := bytes.NewReader(file)
	fm, err := ReadMetadata(rd)
	if err != nil {
		return nil, nil, err
	}
	it := NewBlockIterator(rd, fm.Compression, fm.Marker)
	var out [][]float32
	for {
		b, err := it.Next()
		if err != nil {
			return fm, out, err
		}
		if b == nil {
			return fm, out, nil
		}
		vals := readFloats(t, b.Data)
		if len(vals) != b.Rows {
			t.Fatalf("block has %d rows but %d values", b.Rows, len(vals))
		}
		out = append(out, vals)
	}
}

type entry struct {
	key, val string
}

// header builds a header by hand, one map block per group
func header(groups ...[]entry) []byte {
	out := append([]byte{}, Magic[:]...)
	for _, g := range groups {
		out = zigzag.Append(out, int64(len(g)))
		for _, e := range g {
			out = zigzag.Append(out, int64(len(e.key)))
			out = append(out, e.key...)
			out = zigzag.Append(out, int64(len(e.val)))
			out = append(out, e.val...)
		}
	}
	out = zigzag.Append(out, 0)
	return append(out, DefaultMarker[:]...)
}

const floatSchema = `{"type":"record","name":"test","fields":[{"name":"f","type":"float"}]}`

func TestMetadataRoundTrip(t *testing.T) {
	rec := schema.NewRecord("User",
		schema.NewField("id", schema.Long{}),
		schema.NewField("name", schema.Union{schema.Null{}, schema.String{}}),
	)
	rec.Namespace = "com.example"
	for _, c := range []Compression{None, Deflate, Snappy} {
		var buf bytes.Buffer
		if err := WriteMetadata(&buf, rec, c); err != nil {
			t.Fatal(err)
		}
		rd := bytes.NewReader(buf.Bytes())
		fm, err := ReadMetadata(rd)
		if err != nil {
			t.Fatalf("%s: %s", c, err)
		}
		if rd.Len() != 0 {
			t.Errorf("%s: %d bytes left unread", c, rd.Len())
		}
		want := &FileMetadata{Record: rec, Compression: c, Codec: codecName(c), Marker: DefaultMarker}
		if diff := cmp.Diff(want, fm); diff != "" {
			t.Errorf("%s: metadata mismatch (-want +got):\n%s", c, diff)
		}
	}
}

func TestWriteMetadataLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMetadata(&buf, floatRecord(), Snappy); err != nil {
		t.Fatal(err)
	}
	want := header([]entry{
		{"avro.codec", "snappy"},
		{"avro.schema", floatSchema},
	})
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got  %q\nwant %q", buf.Bytes(), want)
	}
}

func TestReadMetadata(t *testing.T) {
	schemaEntry := entry{"avro.schema", floatSchema}
	cases := []struct {
		name  string
		input []byte
		want  Compression
		codec string
		meta  map[string][]byte
	}{
		{
			name:  "no codec",
			input: header([]entry{schemaEntry}),
			want:  None,
		},
		{
			name:  "null codec",
			input: header([]entry{schemaEntry, {"avro.codec", "null"}}),
			want:  None,
			codec: "null",
		},
		{
			name:  "unknown codec",
			input: header([]entry{schemaEntry, {"avro.codec", "lz4"}}),
			want:  None,
			codec: "lz4",
		},
		{
			name:  "zstandard is read as null",
			input: header([]entry{schemaEntry, {"avro.codec", "zstandard"}}),
			want:  None,
			codec: "zstandard",
		},
		{
			name:  "codec is case sensitive",
			input: header([]entry{schemaEntry, {"avro.codec", "Deflate"}}),
			want:  None,
			codec: "Deflate",
		},
		{
			name: "later key wins",
			input: header(
				[]entry{schemaEntry, {"avro.codec", "deflate"}},
				[]entry{{"avro.codec", "snappy"}},
			),
			want:  Snappy,
			codec: "snappy",
		},
		{
			name:  "user metadata",
			input: header([]entry{{"created.by", "test"}, schemaEntry, {"empty", ""}}),
			want:  None,
			meta: map[string][]byte{
				"created.by": []byte("test"),
				"empty":      {},
			},
		},
	}
	for i := range cases {
		c := &cases[i]
		t.Run(c.name, func(t *testing.T) {
			fm, err := ReadMetadata(bytes.NewReader(c.input))
			if err != nil {
				t.Fatal(err)
			}
			if fm.Compression != c.want {
				t.Errorf("compression %s, want %s", fm.Compression, c.want)
			}
			if fm.Codec != c.codec {
				t.Errorf("codec %q, want %q", fm.Codec, c.codec)
			}
			if diff := cmp.Diff(c.meta, fm.Meta, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("meta mismatch (-want +got):\n%s", diff)
			}
			if fm.Record.Name != "test" || len(fm.Record.Fields) != 1 {
				t.Errorf("unexpected record %+v", fm.Record)
			}
		})
	}
}

func TestReadMetadataNegativeCount(t *testing.T) {
	out := append([]byte{}, Magic[:]...)
	var body []byte
	body = zigzag.Append(body, int64(len("avro.schema")))
	body = append(body, "avro.schema"...)
	body = zigzag.Append(body, int64(len(floatSchema)))
	body = append(body, floatSchema...)
	out = zigzag.Append(out, -1)
	out = zigzag.Append(out, int64(len(body)))
	out = append(out, body...)
	out = zigzag.Append(out, 0)
	out = append(out, DefaultMarker[:]...)
	fm, err := ReadMetadata(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if fm.Record.Name != "test" {
		t.Fatalf("record %+v", fm.Record)
	}
}

func TestReadMetadataErrors(t *testing.T) {
	good := header([]entry{{"avro.schema", floatSchema}})
	cases := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("Obj\x02"), good[4:]...)},
		{"short magic", []byte("Ob")},
		{"missing schema", header([]entry{{"avro.codec", "deflate"}})},
		{"bad schema json", header([]entry{{"avro.schema", `{"type":`}})},
		{"unknown schema type", header([]entry{{"avro.schema", `"foo"`}})},
		{"root not a record", header([]entry{{"avro.schema", `"int"`}})},
		{"root is a union", header([]entry{{"avro.schema", `["null",` + floatSchema + `]`}})},
		{"invalid utf8 key", header([]entry{{"avro.schema", floatSchema}, {"\xff\xfe", "x"}})},
		{"truncated marker", good[:len(good)-3]},
		{"truncated map", good[:10]},
		{"negative length", append(append([]byte{}, Magic[:]...), 2, 1)},
		{"overlong varint", append(append([]byte{}, Magic[:]...), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01)},
	}
	for i := range cases {
		c := &cases[i]
		t.Run(c.name, func(t *testing.T) {
			_, err := ReadMetadata(bytes.NewReader(c.input))
			if !errors.Is(err, ErrOutOfSpec) {
				t.Fatalf("got %v, want ErrOutOfSpec", err)
			}
			if errors.Is(err, ErrRequiresCompression) {
				t.Fatalf("error %v matches both sentinels", err)
			}
		})
	}
}

func TestReadMetadataSchemaError(t *testing.T) {
	_, err := ReadMetadata(bytes.NewReader(header([]entry{{"avro.schema", `{"type":"record","name":"r"}`}})))
	if !errors.Is(err, ErrOutOfSpec) || !errors.Is(err, schema.ErrMissingField) {
		t.Fatalf("got %v", err)
	}
}

func TestReservedMeta(t *testing.T) {
	_, err := appendMetadata(nil, floatRecord(), codecName(None), DefaultMarker, map[string][]byte{"avro.codec": []byte("x")})
	if !errors.Is(err, ErrOutOfSpec) {
		t.Fatalf("got %v", err)
	}
}

// onlyReader hides every method but Read
type onlyReader struct {
	io.Reader
}

func TestNoReadAhead(t *testing.T) {
	file := writeFile(t, None, []float32{1, 2}, []float32{3})
	rd := onlyReader{bytes.NewReader(file)}
	fm, err := ReadMetadata(rd)
	if err != nil {
		t.Fatal(err)
	}
	it := NewBlockIterator(rd, fm.Compression, fm.Marker)
	var got []float32
	for {
		b, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if b == nil {
			break
		}
		got = append(got, readFloats(t, b.Data)...)
	}
	if diff := cmp.Diff([]float32{1, 2, 3}, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if it.Reader() != io.Reader(rd) {
		t.Fatal("Reader() did not return the underlying stream")
	}
}

func TestOpen(t *testing.T) {
	file := writeFile(t, None, []float32{0.1, 0.2})
	fm, it, err := Open(onlyReader{bytes.NewReader(file)})
	if err != nil {
		t.Fatal(err)
	}
	if fm.Marker != DefaultMarker {
		t.Fatalf("marker %x", fm.Marker)
	}
	b, err := it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{0.1, 0.2}, readFloats(t, b.Data)); diff != "" {
		t.Fatal(diff)
	}
}

func TestMarkers(t *testing.T) {
	a, b := NewMarker(), NewMarker()
	if a == b || a == (Marker{}) {
		t.Fatalf("markers %x and %x", a, b)
	}
	text := []byte(floatSchema)
	if MarkerFor(text) != MarkerFor(text) {
		t.Fatal("MarkerFor is not deterministic")
	}
	if MarkerFor(text) == MarkerFor([]byte(`"int"`)) {
		t.Fatal("MarkerFor collision")
	}
}

func TestCompressionNames(t *testing.T) {
	for _, c := range []Compression{None, Deflate, Snappy} {
		if got := ParseCompression(c.String()); got != c {
			t.Errorf("ParseCompression(%q) = %s", c.String(), got)
		}
	}
	for _, name := range []string{"", "bzip2", "xz", "zstandard"} {
		if got := ParseCompression(name); got != None {
			t.Errorf("ParseCompression(%q) = %s, want null", name, got)
		}
	}
}
