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

package schema

import (
	"strconv"
	"strings"
)

// Canonical returns the Parsing Canonical Form
// of s: logical types, docs, aliases, defaults
// and orders are stripped, names are fully
// qualified, attributes appear in the order
// name, type, fields, symbols, items, values, size,
// and there is no whitespace. Two schemas that
// read the same data have the same canonical form.
func Canonical(s Schema) []byte {
	return appendCanonical(nil, s, "")
}

func canonicalName(name, namespace, ns string) (full, inner string) {
	if namespace == "" {
		namespace = ns
	}
	full = fullname(name, namespace)
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full, full[:i]
	}
	return full, ""
}

func appendCanonical(dst []byte, s Schema, ns string) []byte {
	switch s := s.(type) {
	case Record:
		full, inner := canonicalName(s.Name, s.Namespace, ns)
		dst = appendKey(dst, '{', "name")
		dst = appendString(dst, full)
		dst = append(dst, `,"type":"record","fields":[`...)
		for i := range s.Fields {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendKey(dst, '{', "name")
			dst = appendString(dst, s.Fields[i].Name)
			dst = appendKey(dst, ',', "type")
			dst = appendCanonical(dst, s.Fields[i].Type, inner)
			dst = append(dst, '}')
		}
		return append(dst, ']', '}')
	case Enum:
		full, _ := canonicalName(s.Name, s.Namespace, ns)
		dst = appendKey(dst, '{', "name")
		dst = appendString(dst, full)
		dst = append(dst, `,"type":"enum","symbols":`...)
		dst = appendStrings(dst, s.Symbols)
		return append(dst, '}')
	case Fixed:
		full, _ := canonicalName(s.Name, s.Namespace, ns)
		dst = appendKey(dst, '{', "name")
		dst = appendString(dst, full)
		dst = append(dst, `,"type":"fixed","size":`...)
		dst = strconv.AppendInt(dst, int64(s.Size), 10)
		return append(dst, '}')
	case Array:
		dst = append(dst, `{"type":"array","items":`...)
		dst = appendCanonical(dst, s.Items, ns)
		return append(dst, '}')
	case Map:
		dst = append(dst, `{"type":"map","values":`...)
		dst = appendCanonical(dst, s.Values, ns)
		return append(dst, '}')
	case Union:
		dst = append(dst, '[')
		for i := range s {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendCanonical(dst, s[i], ns)
		}
		return append(dst, ']')
	case Ref:
		return appendString(dst, fullname(s.Name, ns))
	case nil:
		return append(dst, "null"...)
	default:
		// primitives, with any logical type dropped
		return appendString(dst, s.Type().String())
	}
}

const rabinEmpty = 0xc15d213aa4d7a795

var rabinTable = func() (t [256]uint64) {
	for i := range t {
		fp := uint64(i)
		for j := 0; j < 8; j++ {
			fp = (fp >> 1) ^ (rabinEmpty & -(fp & 1))
		}
		t[i] = fp
	}
	return t
}()

// Rabin computes the 64-bit CRC-64-AVRO
// fingerprint of buf.
func Rabin(buf []byte) uint64 {
	fp := uint64(rabinEmpty)
	for _, b := range buf {
		fp = (fp >> 8) ^ rabinTable[byte(fp)^b]
	}
	return fp
}

// Fingerprint64 returns the CRC-64-AVRO
// fingerprint of the canonical form of s.
func Fingerprint64(s Schema) uint64 {
	return Rabin(Canonical(s))
}
