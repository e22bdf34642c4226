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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Validate checks s against the rules of the
// Avro specification that Parse does not enforce:
//
//   - names of named types, fields and enum
//     symbols must match [A-Za-z_][A-Za-z0-9_]*
//     (names may be dotted)
//   - a union may not directly contain another union
//   - a union may not contain two unnamed members
//     of the same type, or two named members
//     with the same full name
//   - enum symbols must be unique and a
//     default must be one of them
//   - record field names must be unique
//   - fixed sizes must not be negative
//   - decimal precision must be positive and
//     the scale must not exceed it
//   - logical type values must be known, and
//     decimal parameters require the decimal
//     logical type
//   - a duration must be a fixed of size 12
//
// Field defaults are not checked against their types.
// All violations are reported, joined with errors.Join;
// each one wraps ErrInvalid.
func Validate(s Schema) error {
	v := validator{}
	v.walk(s, "", "")
	return errors.Join(v.errs...)
}

type validator struct {
	errs []error
}

func (v *validator) fail(path, f string, args ...any) {
	v.errs = append(v.errs, errorf(path, ErrInvalid, f, args...))
}

func validName(name string, dotted bool) bool {
	if name == "" {
		return false
	}
	if dotted {
		for _, part := range strings.Split(name, ".") {
			if !validName(part, false) {
				return false
			}
		}
		return true
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func (v *validator) checkName(path, name, namespace string) {
	if !validName(name, true) {
		v.fail(path, "invalid name %q", name)
	}
	if namespace != "" && !validName(namespace, true) {
		v.fail(path, "invalid namespace %q", namespace)
	}
}

func (v *validator) checkDecimal(path string, d Decimal) {
	if d.Precision <= 0 {
		v.fail(path, "decimal precision %d must be positive", d.Precision)
	} else if d.Scale > d.Precision {
		v.fail(path, "decimal scale %d exceeds precision %d", d.Scale, d.Precision)
	}
	if d.Scale < 0 {
		v.fail(path, "decimal scale %d is negative", d.Scale)
	}
}

func (v *validator) walk(s Schema, path, ns string) {
	if msg := logicalProblem(s); msg != "" {
		v.fail(path, "%s", msg)
	}
	switch s := s.(type) {
	case nil:
		v.fail(path, "missing schema")
	case Bytes:
		if s.Logical == BytesDecimal {
			v.checkDecimal(path, s.Decimal)
		}
	case Record:
		v.checkName(path, s.Name, s.Namespace)
		path = join(path, fmt.Sprintf("record %q", s.Name))
		inner := ns
		if s.Namespace != "" {
			inner = s.Namespace
		}
		seen := make(map[string]struct{}, len(s.Fields))
		for i := range s.Fields {
			f := &s.Fields[i]
			fpath := path + ".fields[" + strconv.Itoa(i) + "]"
			if !validName(f.Name, false) {
				v.fail(fpath, "invalid field name %q", f.Name)
			}
			if _, dup := seen[f.Name]; dup {
				v.fail(fpath, "duplicate field name %q", f.Name)
			}
			seen[f.Name] = struct{}{}
			v.walk(f.Type, join(fpath, "type"), inner)
		}
	case Enum:
		v.checkName(path, s.Name, s.Namespace)
		for i, sym := range s.Symbols {
			if !validName(sym, false) {
				v.fail(path, "invalid enum symbol %q", sym)
			}
			if slices.Index(s.Symbols[:i], sym) >= 0 {
				v.fail(path, "duplicate enum symbol %q", sym)
			}
		}
		if s.Default != "" && !slices.Contains(s.Symbols, s.Default) {
			v.fail(path, "enum default %q is not a symbol", s.Default)
		}
	case Array:
		v.walk(s.Items, join(path, "items"), ns)
	case Map:
		v.walk(s.Values, join(path, "values"), ns)
	case Union:
		seen := make(map[string]struct{}, len(s))
		for i := range s {
			mpath := path + "[" + strconv.Itoa(i) + "]"
			key := ""
			switch m := s[i].(type) {
			case Union:
				v.fail(mpath, "union nested directly inside a union")
			case Record:
				key = m.FullName()
			case Enum:
				key = m.FullName()
			case Fixed:
				key = m.FullName()
			case Ref:
				key = fullname(m.Name, ns)
			case nil:
			default:
				key = m.Type().String()
			}
			if key != "" {
				if _, dup := seen[key]; dup {
					v.fail(mpath, "duplicate union member %s", key)
				}
				seen[key] = struct{}{}
			}
			v.walk(s[i], mpath, ns)
		}
	case Fixed:
		v.checkName(path, s.Name, s.Namespace)
		if s.Size < 0 {
			v.fail(path, "negative fixed size %d", s.Size)
		}
		if s.Logical == FixedDecimal {
			v.checkDecimal(path, s.Decimal)
		}
		if s.Logical == Duration && s.Size != 12 {
			v.fail(path, "duration requires size 12, not %d", s.Size)
		}
	case Ref:
		if !validName(s.Name, true) {
			v.fail(path, "invalid reference %q", s.Name)
		}
	}
}
