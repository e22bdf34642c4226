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

//go:build !nocompress

package compr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testInputs() [][]byte {
	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 4096)
	rng.Read(random)
	return [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("avro container "), 1000),
		random,
	}
}

func TestNames(t *testing.T) {
	want := []string{"deflate", "snappy", "zstandard"}
	if diff := cmp.Diff(want, Names()); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}
	if Compression("lzma") != nil || Decompression("lzma") != nil {
		t.Fatal("unknown codec should be nil")
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range Names() {
		name := name
		t.Run(name, func(t *testing.T) {
			c := Compression(name)
			d := Decompression(name)
			if c.Name() != name || d.Name() != name {
				t.Fatalf("names %q %q", c.Name(), d.Name())
			}
			for i, in := range testInputs() {
				prefix := []byte("prefix")
				comp, err := c.Compress(in, prefix)
				if err != nil {
					t.Fatalf("input %d: compress: %s", i, err)
				}
				if !bytes.HasPrefix(comp, []byte("prefix")) {
					t.Fatalf("input %d: compress clobbered dst", i)
				}
				out, err := d.Decompress(comp[len("prefix"):], []byte("head"), len(in))
				if err != nil {
					t.Fatalf("input %d: decompress: %s", i, err)
				}
				if !bytes.HasPrefix(out, []byte("head")) {
					t.Fatalf("input %d: decompress clobbered dst", i)
				}
				if !bytes.Equal(out[len("head"):], in) {
					t.Fatalf("input %d: round trip mismatch", i)
				}
			}
		})
	}
}

func TestSnappyChecksum(t *testing.T) {
	c := Compression("snappy")
	d := Decompression("snappy")
	in := []byte("hello, hello, hello, hello")
	comp, err := c.Compress(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	sum := binary.BigEndian.Uint32(comp[len(comp)-4:])
	binary.BigEndian.PutUint32(comp[len(comp)-4:], sum^1)
	_, err = d.Decompress(comp, nil, len(in))
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("got error %v, want ErrChecksum", err)
	}
	_, err = d.Decompress([]byte{1, 2}, nil, 1024)
	if err == nil {
		t.Fatal("expected an error for a truncated block")
	}
}

func TestDeflateCorrupt(t *testing.T) {
	d := Decompression("deflate")
	// reserved block type 3
	_, err := d.Decompress([]byte{0xff, 0xff, 0xff}, nil, 1024)
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestDecompressLimit(t *testing.T) {
	in := make([]byte, 64*1024)
	for _, name := range Names() {
		c := Compression(name)
		d := Decompression(name)
		comp, err := c.Compress(in, nil)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		_, err = d.Decompress(comp, nil, len(in)-1)
		if !errors.Is(err, ErrTooLarge) {
			t.Errorf("%s: limit %d: got error %v", name, len(in)-1, err)
		}
		out, err := d.Decompress(comp, nil, len(in))
		if err != nil || len(out) != len(in) {
			t.Errorf("%s: limit %d: got %d bytes, %v", name, len(in), len(out), err)
		}
	}
}

func TestSnappyDeclaredSize(t *testing.T) {
	// a tiny block claiming a 1GiB output
	// must be rejected before decoding
	body := binary.AppendUvarint(nil, 1<<30)
	body = append(body, 0, 0, 0)
	body = binary.BigEndian.AppendUint32(body, 0)
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := Decompression("snappy").Decompress(body, nil, 1<<20)
	runtime.ReadMemStats(&after)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got error %v, want ErrTooLarge", err)
	}
	if n := after.TotalAlloc - before.TotalAlloc; n > 1<<20 {
		t.Fatalf("allocated %d bytes", n)
	}
}

func TestDeflateBomb(t *testing.T) {
	in := bytes.Repeat([]byte{0}, 8<<20)
	comp, err := Compression("deflate").Compress(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decompression("deflate").Decompress(comp, make([]byte, 0, 16), 1<<16)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got error %v, want ErrTooLarge", err)
	}
	if out != nil {
		t.Fatalf("got %d bytes of output", len(out))
	}
}

func TestZstandardDeclaredSize(t *testing.T) {
	in := make([]byte, 1<<20)
	comp, err := Compression("zstandard").Compress(in, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Decompression("zstandard").Decompress(comp, nil, 4096)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("got error %v, want ErrTooLarge", err)
	}
}

func TestOverlaps(t *testing.T) {
	buf := make([]byte, 16)
	cases := []struct {
		a, b []byte
		want bool
	}{
		{buf[:4], buf[4:8], false},
		{buf[:5], buf[4:8], true},
		{buf[2:3], buf[:16], true},
		{nil, buf, false},
		{buf[:8], make([]byte, 8), false},
	}
	for i := range cases {
		if got := overlaps(cases[i].a, cases[i].b); got != cases[i].want {
			t.Errorf("case %d: got %v", i, got)
		}
	}
}

func TestExtend(t *testing.T) {
	dst := make([]byte, 2, 8)
	got := dst[2:5]
	copy(got, "abc")
	out := extend(dst, got)
	if string(out[2:]) != "abc" || &out[0] != &dst[0] {
		t.Fatalf("in-place extend: %q", out)
	}
	out = extend(dst[:2:2], []byte("xyz"))
	if string(out[2:]) != "xyz" {
		t.Fatalf("append extend: %q", out)
	}
}

func BenchmarkCompress(b *testing.B) {
	in := bytes.Repeat([]byte("avro container "), 4096)
	for _, name := range Names() {
		c := Compression(name)
		b.Run(name, func(b *testing.B) {
			var dst []byte
			var err error
			b.SetBytes(int64(len(in)))
			for i := 0; i < b.N; i++ {
				dst, err = c.Compress(in, dst[:0])
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
