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
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMissingField is returned when a
	// required JSON attribute is absent.
	ErrMissingField = errors.New("missing field")
	// ErrWrongShape is returned when a JSON
	// value has the wrong shape for its position.
	ErrWrongShape = errors.New("wrong JSON shape")
	// ErrUnknownType is returned for type names
	// that are neither primitive, complex, nor
	// previously defined.
	ErrUnknownType = errors.New("unknown type")
	// ErrInvalid is returned for values that
	// have the right shape but are not allowed.
	ErrInvalid = errors.New("invalid value")
)

// Error is the error produced when
// schema JSON cannot be parsed.
type Error struct {
	// Path locates the offending value,
	// e.g. "fields[2].type".
	Path string
	// Err is one of ErrMissingField, ErrWrongShape,
	// ErrUnknownType, ErrInvalid, or a JSON syntax error.
	Err error
	Msg string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("schema: ")
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Parse parses the JSON text of an Avro schema.
func Parse(text []byte) (Schema, error) {
	d := json.NewDecoder(bytes.NewReader(text))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, &Error{Err: err}
	}
	if _, err := d.Token(); err != io.EOF {
		return nil, &Error{Err: ErrWrongShape, Msg: "trailing data after schema"}
	}
	return ParseValue(v)
}

// ParseValue parses a schema from a generic
// JSON value, as produced by encoding/json
// when decoding into an interface{}. Numbers
// may be float64 or json.Number.
//
// Three shapes are accepted: a string names a
// primitive (or a previously defined named type),
// an array is a union, and an object is dispatched
// on its "type" attribute. A JSON null is the
// null type.
func ParseValue(v any) (Schema, error) {
	p := parser{names: make(map[string]struct{})}
	return p.parse(v, "", "")
}

type parser struct {
	// full names of named types defined so far
	names map[string]struct{}
}

var primitives = map[string]Schema{
	"null":    Null{},
	"boolean": Boolean{},
	"int":     Int{},
	"long":    Long{},
	"float":   Float{},
	"double":  Double{},
	"bytes":   Bytes{},
	"string":  String{},
}

type complexFunc func(p *parser, obj map[string]any, path, ns string) (Schema, error)

// complexTypes is populated in init
// because its entries refer back to
// parser.parse
var complexTypes map[string]complexFunc

func init() {
	complexTypes = map[string]complexFunc{
		"record": (*parser).record,
		"enum":   (*parser).enum,
		"array":  (*parser).array,
		"map":    (*parser).mapType,
		"fixed":  (*parser).fixed,
	}
}

func errorf(path string, err error, f string, args ...any) error {
	return &Error{Path: path, Err: err, Msg: fmt.Sprintf(f, args...)}
}

func join(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}

func (p *parser) parse(v any, path, ns string) (Schema, error) {
	switch v := v.(type) {
	case nil:
		return Null{}, nil
	case string:
		return p.named(v, path, ns)
	case []any:
		u := make(Union, 0, len(v))
		for i := range v {
			s, err := p.parse(v[i], path+"["+strconv.Itoa(i)+"]", ns)
			if err != nil {
				return nil, err
			}
			u = append(u, s)
		}
		return u, nil
	case map[string]any:
		return p.object(v, path, ns)
	default:
		return nil, errorf(path, ErrWrongShape, "expected a string, array or object; found %T", v)
	}
}

// named resolves a bare type name
func (p *parser) named(name, path, ns string) (Schema, error) {
	if s, ok := primitives[name]; ok {
		return s, nil
	}
	if _, ok := p.names[fullname(name, ns)]; ok {
		return Ref{Name: name}, nil
	}
	if _, ok := p.names[name]; ok {
		return Ref{Name: name}, nil
	}
	return nil, errorf(path, ErrUnknownType, "%q", name)
}

func (p *parser) object(obj map[string]any, path, ns string) (Schema, error) {
	t, ok := obj["type"]
	if !ok {
		return nil, errorf(path, ErrMissingField, "type")
	}
	var tag string
	switch t := t.(type) {
	case nil:
		return Null{}, nil
	case string:
		tag = t
	case map[string]any, []any:
		// {"type": {"type": "array", ...}}
		return p.parse(t, join(path, "type"), ns)
	default:
		return nil, errorf(join(path, "type"), ErrWrongShape, "expected a string; found %T", t)
	}
	if prim, ok := primitives[tag]; ok {
		return logical(prim, obj, path)
	}
	if fn, ok := complexTypes[tag]; ok {
		return fn(p, obj, path, ns)
	}
	return p.named(tag, join(path, "type"), ns)
}

// logical refines a primitive with its
// "logicalType" attribute; unrecognized
// logical types are dropped
func logical(prim Schema, obj map[string]any, path string) (Schema, error) {
	lt, err := optString(obj, "logicalType", path)
	if err != nil || lt == "" {
		return prim, err
	}
	switch prim.(type) {
	case Int:
		if l, ok := intLogicals[lt]; ok {
			return Int{Logical: l}, nil
		}
	case Long:
		if l, ok := longLogicals[lt]; ok {
			return Long{Logical: l}, nil
		}
	case String:
		if l, ok := stringLogicals[lt]; ok {
			return String{Logical: l}, nil
		}
	case Bytes:
		if lt == logicalDecimal {
			dec, err := decimal(obj, path)
			if err != nil {
				return nil, err
			}
			return Bytes{Logical: BytesDecimal, Decimal: dec}, nil
		}
	}
	return prim, nil
}

func decimal(obj map[string]any, path string) (Decimal, error) {
	precision, ok, err := optInt(obj, "precision", path)
	if err != nil {
		return Decimal{}, err
	}
	if !ok {
		return Decimal{}, errorf(path, ErrMissingField, "precision")
	}
	scale, _, err := optInt(obj, "scale", path)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Precision: precision, Scale: scale}, nil
}

// define registers a named type so that
// later bare-string references resolve;
// it returns the namespace that applies
// to the type's children
func (p *parser) define(name, namespace, ns string) string {
	if namespace == "" {
		namespace = ns
	}
	full := fullname(name, namespace)
	p.names[full] = struct{}{}
	if i := strings.LastIndexByte(full, '.'); i >= 0 {
		return full[:i]
	}
	return ""
}

type attrs struct {
	name, namespace, doc string
	aliases              []string
}

// nameAttrs reads the attributes
// shared by all named types
func nameAttrs(obj map[string]any, path string) (n attrs, err error) {
	n.name, err = reqString(obj, "name", path)
	if err != nil {
		return
	}
	if n.name == "" {
		err = errorf(join(path, "name"), ErrInvalid, "name must not be empty")
		return
	}
	if n.namespace, err = optString(obj, "namespace", path); err != nil {
		return
	}
	if n.doc, err = optString(obj, "doc", path); err != nil {
		return
	}
	n.aliases, err = optStrings(obj, "aliases", path)
	return
}

func (p *parser) record(obj map[string]any, path, ns string) (Schema, error) {
	n, err := nameAttrs(obj, path)
	if err != nil {
		return nil, err
	}
	path = join(path, fmt.Sprintf("record %q", n.name))
	inner := p.define(n.name, n.namespace, ns)
	raw, ok := obj["fields"]
	if !ok {
		return nil, errorf(path, ErrMissingField, "fields")
	}
	lst, ok := raw.([]any)
	if !ok {
		return nil, errorf(join(path, "fields"), ErrWrongShape, "expected an array; found %T", raw)
	}
	r := Record{
		Name:      n.name,
		Namespace: n.namespace,
		Doc:       n.doc,
		Aliases:   n.aliases,
		Fields:    make([]Field, 0, len(lst)),
	}
	for i := range lst {
		f, err := p.field(lst[i], path+".fields["+strconv.Itoa(i)+"]", inner)
		if err != nil {
			return nil, err
		}
		r.Fields = append(r.Fields, f)
	}
	return r, nil
}

var orders = map[string]Order{
	"ascending":  Ascending,
	"descending": Descending,
	"ignore":     Ignore,
}

func (p *parser) field(v any, path, ns string) (Field, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Field{}, errorf(path, ErrWrongShape, "expected an object; found %T", v)
	}
	var f Field
	var err error
	if f.Name, err = reqString(obj, "name", path); err != nil {
		return f, err
	}
	if f.Doc, err = optString(obj, "doc", path); err != nil {
		return f, err
	}
	if f.Aliases, err = optStrings(obj, "aliases", path); err != nil {
		return f, err
	}
	t, ok := obj["type"]
	if !ok {
		return f, errorf(path, ErrMissingField, "type")
	}
	if f.Type, err = p.parse(t, join(path, "type"), ns); err != nil {
		return f, err
	}
	if def, ok := obj["default"]; ok {
		f.Default, err = marshalDefault(def)
		if err != nil {
			return f, errorf(join(path, "default"), ErrInvalid, "%s", err)
		}
	}
	order, err := optString(obj, "order", path)
	if err != nil {
		return f, err
	}
	if order != "" {
		if f.Order, ok = orders[order]; !ok {
			return f, errorf(join(path, "order"), ErrInvalid, "order %q is not one of ascending, descending, ignore", order)
		}
	}
	return f, nil
}

func (p *parser) enum(obj map[string]any, path, ns string) (Schema, error) {
	n, err := nameAttrs(obj, path)
	if err != nil {
		return nil, err
	}
	if _, ok := obj["symbols"]; !ok {
		return nil, errorf(path, ErrMissingField, "symbols")
	}
	symbols, err := optStrings(obj, "symbols", path)
	if err != nil {
		return nil, err
	}
	def, err := optString(obj, "default", path)
	if err != nil {
		return nil, err
	}
	p.define(n.name, n.namespace, ns)
	return Enum{
		Name:      n.name,
		Namespace: n.namespace,
		Aliases:   n.aliases,
		Doc:       n.doc,
		Symbols:   symbols,
		Default:   def,
	}, nil
}

func (p *parser) array(obj map[string]any, path, ns string) (Schema, error) {
	items, ok := obj["items"]
	if !ok {
		return nil, errorf(path, ErrMissingField, "items")
	}
	s, err := p.parse(items, join(path, "items"), ns)
	if err != nil {
		return nil, err
	}
	return Array{Items: s}, nil
}

func (p *parser) mapType(obj map[string]any, path, ns string) (Schema, error) {
	values, ok := obj["values"]
	if !ok {
		return nil, errorf(path, ErrMissingField, "values")
	}
	s, err := p.parse(values, join(path, "values"), ns)
	if err != nil {
		return nil, err
	}
	return Map{Values: s}, nil
}

func (p *parser) fixed(obj map[string]any, path, ns string) (Schema, error) {
	n, err := nameAttrs(obj, path)
	if err != nil {
		return nil, err
	}
	size, ok, err := optInt(obj, "size", path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errorf(path, ErrMissingField, "size")
	}
	f := Fixed{
		Name:      n.name,
		Namespace: n.namespace,
		Doc:       n.doc,
		Aliases:   n.aliases,
		Size:      size,
	}
	lt, err := optString(obj, "logicalType", path)
	if err != nil {
		return nil, err
	}
	switch lt {
	case logicalDecimal:
		f.Decimal, err = decimal(obj, path)
		if err != nil {
			return nil, err
		}
		f.Logical = FixedDecimal
	case logicalDuration:
		f.Logical = Duration
	}
	p.define(n.name, n.namespace, ns)
	return f, nil
}

func reqString(obj map[string]any, key, path string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", errorf(path, ErrMissingField, "%s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errorf(join(path, key), ErrWrongShape, "expected a string; found %T", v)
	}
	return s, nil
}

// optString returns "" for a missing or null attribute
func optString(obj map[string]any, key, path string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errorf(join(path, key), ErrWrongShape, "expected a string; found %T", v)
	}
	return s, nil
}

func optStrings(obj map[string]any, key, path string) ([]string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, nil
	}
	lst, ok := v.([]any)
	if !ok {
		return nil, errorf(join(path, key), ErrWrongShape, "expected an array of strings; found %T", v)
	}
	if len(lst) == 0 {
		return nil, nil
	}
	out := make([]string, len(lst))
	for i := range lst {
		s, ok := lst[i].(string)
		if !ok {
			return nil, errorf(join(path, key)+"["+strconv.Itoa(i)+"]", ErrWrongShape, "expected a string; found %T", lst[i])
		}
		out[i] = s
	}
	return out, nil
}

// optInt reads a non-negative integer attribute
func optInt(obj map[string]any, key, path string) (int, bool, error) {
	v, ok := obj[key]
	if !ok {
		return 0, false, nil
	}
	var n int64
	switch v := v.(type) {
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false, errorf(join(path, key), ErrWrongShape, "expected an integer; found %s", v)
		}
		n = i
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false, errorf(join(path, key), ErrWrongShape, "expected an integer; found %g", v)
		}
		n = int64(v)
	default:
		return 0, false, errorf(join(path, key), ErrWrongShape, "expected an integer; found %T", v)
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, false, errorf(join(path, key), ErrInvalid, "%d out of range", n)
	}
	return int(n), true, nil
}

// marshalDefault re-encodes a parsed default
// compactly, without HTML escaping
func marshalDefault(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
