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
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Marshal returns the canonical JSON text of s.
//
// Primitives without a logical type are written
// as bare strings, unions as arrays, and everything
// else as an object with an explicit "type" key.
// Optional attributes are omitted when empty, so
// Parse(Marshal(s)) reproduces s.
//
// Field defaults are written with insignificant
// whitespace removed.
//
// Marshal fails if a field default is not valid
// JSON, or if a logical type value is unknown or
// carries decimal parameters it cannot express.
// AppendJSON does not make these checks.
func Marshal(s Schema) ([]byte, error) {
	if err := checkMarshal(s); err != nil {
		return nil, err
	}
	return AppendJSON(nil, s), nil
}

func checkMarshal(s Schema) error {
	if msg := logicalProblem(s); msg != "" {
		return fmt.Errorf("schema: %s", msg)
	}
	switch s := s.(type) {
	case Record:
		for i := range s.Fields {
			f := &s.Fields[i]
			if f.Default != nil && !json.Valid(f.Default) {
				return fmt.Errorf("schema: field %q: default is not valid JSON", f.Name)
			}
			if err := checkMarshal(f.Type); err != nil {
				return err
			}
		}
	case Array:
		return checkMarshal(s.Items)
	case Map:
		return checkMarshal(s.Values)
	case Union:
		for i := range s {
			if err := checkMarshal(s[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// AppendJSON appends the canonical JSON
// text of s to dst. See Marshal.
func AppendJSON(dst []byte, s Schema) []byte {
	switch s := s.(type) {
	case nil:
		return append(dst, "null"...)
	case Null, Boolean, Float, Double:
		return appendString(dst, s.Type().String())
	case Int:
		if s.Logical == NoIntLogical {
			return appendString(dst, "int")
		}
		return appendLogical(dst, "int", s.Logical.String())
	case Long:
		if s.Logical == NoLongLogical {
			return appendString(dst, "long")
		}
		return appendLogical(dst, "long", s.Logical.String())
	case String:
		if s.Logical == NoStringLogical {
			return appendString(dst, "string")
		}
		return appendLogical(dst, "string", s.Logical.String())
	case Bytes:
		if s.Logical == NoBytesLogical {
			return appendString(dst, "bytes")
		}
		dst = appendKey(dst, '{', "type")
		dst = appendString(dst, "bytes")
		dst = appendKey(dst, ',', "logicalType")
		dst = appendString(dst, s.Logical.String())
		dst = appendDecimal(dst, s.Decimal)
		return append(dst, '}')
	case Record:
		return appendRecord(dst, &s)
	case Enum:
		dst = appendKey(dst, '{', "type")
		dst = appendString(dst, "enum")
		dst = appendNames(dst, s.Name, s.Namespace, s.Aliases, s.Doc)
		if s.Default != "" {
			dst = appendKey(dst, ',', "default")
			dst = appendString(dst, s.Default)
		}
		dst = appendKey(dst, ',', "symbols")
		dst = appendStrings(dst, s.Symbols)
		return append(dst, '}')
	case Array:
		dst = appendKey(dst, '{', "type")
		dst = appendString(dst, "array")
		dst = appendKey(dst, ',', "items")
		dst = AppendJSON(dst, s.Items)
		return append(dst, '}')
	case Map:
		dst = appendKey(dst, '{', "type")
		dst = appendString(dst, "map")
		dst = appendKey(dst, ',', "values")
		dst = AppendJSON(dst, s.Values)
		return append(dst, '}')
	case Union:
		dst = append(dst, '[')
		for i := range s {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendJSON(dst, s[i])
		}
		return append(dst, ']')
	case Fixed:
		dst = appendKey(dst, '{', "type")
		dst = appendString(dst, "fixed")
		dst = appendNames(dst, s.Name, s.Namespace, s.Aliases, s.Doc)
		dst = appendKey(dst, ',', "size")
		dst = strconv.AppendInt(dst, int64(s.Size), 10)
		if s.Logical != NoFixedLogical {
			dst = appendKey(dst, ',', "logicalType")
			dst = appendString(dst, s.Logical.String())
			if s.Logical == FixedDecimal {
				dst = appendDecimal(dst, s.Decimal)
			}
		}
		return append(dst, '}')
	case Ref:
		return appendString(dst, s.Name)
	default:
		panic(fmt.Sprintf("schema: unexpected Schema implementation %T", s))
	}
}

func appendRecord(dst []byte, r *Record) []byte {
	dst = appendKey(dst, '{', "type")
	dst = appendString(dst, "record")
	dst = appendNames(dst, r.Name, r.Namespace, r.Aliases, r.Doc)
	dst = appendKey(dst, ',', "fields")
	dst = append(dst, '[')
	for i := range r.Fields {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendField(dst, &r.Fields[i])
	}
	return append(dst, ']', '}')
}

func appendField(dst []byte, f *Field) []byte {
	dst = appendKey(dst, '{', "name")
	dst = appendString(dst, f.Name)
	if len(f.Aliases) > 0 {
		dst = appendKey(dst, ',', "aliases")
		dst = appendStrings(dst, f.Aliases)
	}
	if f.Doc != "" {
		dst = appendKey(dst, ',', "doc")
		dst = appendString(dst, f.Doc)
	}
	if f.Default != nil {
		dst = appendKey(dst, ',', "default")
		dst = appendCompact(dst, f.Default)
	}
	dst = appendKey(dst, ',', "type")
	dst = AppendJSON(dst, f.Type)
	if f.Order != NoOrder {
		dst = appendKey(dst, ',', "order")
		dst = appendString(dst, f.Order.String())
	}
	return append(dst, '}')
}

// appendCompact appends the JSON text raw
// with insignificant whitespace removed
func appendCompact(dst, raw []byte) []byte {
	buf := bytes.NewBuffer(dst)
	if err := json.Compact(buf, raw); err != nil {
		// buf is truncated back to dst on error
		return append(buf.Bytes(), raw...)
	}
	return buf.Bytes()
}

func appendNames(dst []byte, name, namespace string, aliases []string, doc string) []byte {
	dst = appendKey(dst, ',', "name")
	dst = appendString(dst, name)
	if namespace != "" {
		dst = appendKey(dst, ',', "namespace")
		dst = appendString(dst, namespace)
	}
	if len(aliases) > 0 {
		dst = appendKey(dst, ',', "aliases")
		dst = appendStrings(dst, aliases)
	}
	if doc != "" {
		dst = appendKey(dst, ',', "doc")
		dst = appendString(dst, doc)
	}
	return dst
}

func appendLogical(dst []byte, typ, logical string) []byte {
	dst = appendKey(dst, '{', "type")
	dst = appendString(dst, typ)
	dst = appendKey(dst, ',', "logicalType")
	dst = appendString(dst, logical)
	return append(dst, '}')
}

func appendDecimal(dst []byte, d Decimal) []byte {
	dst = appendKey(dst, ',', "precision")
	dst = strconv.AppendInt(dst, int64(d.Precision), 10)
	if d.Scale > 0 {
		dst = appendKey(dst, ',', "scale")
		dst = strconv.AppendInt(dst, int64(d.Scale), 10)
	}
	return dst
}

func appendKey(dst []byte, sep byte, key string) []byte {
	dst = append(dst, sep)
	dst = appendString(dst, key)
	return append(dst, ':')
}

func appendStrings(dst []byte, lst []string) []byte {
	dst = append(dst, '[')
	for i := range lst {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendString(dst, lst[i])
	}
	return append(dst, ']')
}

const hex = "0123456789abcdef"

// appendString appends s as a quoted JSON string;
// invalid UTF-8 is replaced with U+FFFD
func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); {
		if b := s[i]; b < utf8.RuneSelf {
			if b >= 0x20 && b != '"' && b != '\\' {
				i++
				continue
			}
			dst = append(dst, s[start:i]...)
			dst = append(dst, '\\')
			switch b {
			case '\\', '"':
				dst = append(dst, b)
			case '\n':
				dst = append(dst, 'n')
			case '\r':
				dst = append(dst, 'r')
			case '\t':
				dst = append(dst, 't')
			default:
				dst = append(dst, 'u', '0', '0', hex[b>>4], hex[b&0xf])
			}
			i++
			start = i
			continue
		}
		c, size := utf8.DecodeRuneInString(s[i:])
		if c == utf8.RuneError && size == 1 {
			dst = append(dst, s[start:i]...)
			dst = append(dst, `�`...)
			i += size
			start = i
			continue
		}
		i += size
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}
