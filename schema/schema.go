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

// Package schema models the Avro schema language.
//
// A Schema is one of the concrete types in this
// package (Null, Boolean, Int, Long, Float, Double,
// Bytes, String, Record, Enum, Array, Map, Union,
// Fixed, or Ref). Container types own their children
// by value, so a parsed schema is always a tree.
//
// Parse and Marshal convert between the model and
// Avro's JSON schema syntax.
package schema

import (
	"encoding/json"
	"strings"
)

// Type identifies the kind of a Schema.
type Type uint8

const (
	NullType Type = iota
	BooleanType
	IntType
	LongType
	FloatType
	DoubleType
	BytesType
	StringType
	RecordType
	EnumType
	ArrayType
	MapType
	UnionType
	FixedType
	// RefType is a reference by name
	// to a previously defined named type.
	RefType
)

var typeNames = [...]string{
	NullType:    "null",
	BooleanType: "boolean",
	IntType:     "int",
	LongType:    "long",
	FloatType:   "float",
	DoubleType:  "double",
	BytesType:   "bytes",
	StringType:  "string",
	RecordType:  "record",
	EnumType:    "enum",
	ArrayType:   "array",
	MapType:     "map",
	UnionType:   "union",
	FixedType:   "fixed",
	RefType:     "ref",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Schema is an Avro schema.
//
// The set of implementations is closed;
// use a type switch to inspect a Schema.
type Schema interface {
	Type() Type
	schema()
}

// Null is the Avro "null" type.
type Null struct{}

// Boolean is the Avro "boolean" type.
type Boolean struct{}

// Int is the Avro "int" type, a 32-bit signed
// integer encoded as a zigzag varint.
type Int struct {
	Logical IntLogical
}

// Long is the Avro "long" type, a 64-bit signed
// integer encoded as a zigzag varint.
type Long struct {
	Logical LongLogical
}

// Float is the Avro "float" type (4 bytes, little-endian).
type Float struct{}

// Double is the Avro "double" type (8 bytes, little-endian).
type Double struct{}

// Bytes is the Avro "bytes" type.
// Decimal is only meaningful when
// Logical is BytesDecimal.
type Bytes struct {
	Logical BytesLogical
	Decimal Decimal
}

// String is the Avro "string" type.
type String struct {
	Logical StringLogical
}

// Record is an Avro record.
type Record struct {
	Name      string
	Namespace string
	Doc       string
	Aliases   []string
	Fields    []Field
}

// Enum is an Avro enum.
//
// Symbols are expected to be unique and
// Default is expected to be one of Symbols;
// see Validate.
type Enum struct {
	Name      string
	Namespace string
	Aliases   []string
	Doc       string
	Symbols   []string
	Default   string
}

// Array is an Avro array of Items.
type Array struct {
	Items Schema
}

// Map is an Avro map from strings to Values.
type Map struct {
	Values Schema
}

// Union is an Avro union. The position of
// each member is its branch index on the wire.
type Union []Schema

// Fixed is an Avro fixed-size byte sequence.
// Decimal is only meaningful when Logical
// is FixedDecimal.
type Fixed struct {
	Name      string
	Namespace string
	Doc       string
	Aliases   []string
	Size      int
	Logical   FixedLogical
	Decimal   Decimal
}

// Ref refers to a record, enum or fixed
// defined earlier in the same schema.
// Name is kept exactly as written.
type Ref struct {
	Name string
}

func (Null) Type() Type    { return NullType }
func (Boolean) Type() Type { return BooleanType }
func (Int) Type() Type     { return IntType }
func (Long) Type() Type    { return LongType }
func (Float) Type() Type   { return FloatType }
func (Double) Type() Type  { return DoubleType }
func (Bytes) Type() Type   { return BytesType }
func (String) Type() Type  { return StringType }
func (Record) Type() Type  { return RecordType }
func (Enum) Type() Type    { return EnumType }
func (Array) Type() Type   { return ArrayType }
func (Map) Type() Type     { return MapType }
func (Union) Type() Type   { return UnionType }
func (Fixed) Type() Type   { return FixedType }
func (Ref) Type() Type     { return RefType }

func (Null) schema()    {}
func (Boolean) schema() {}
func (Int) schema()     {}
func (Long) schema()    {}
func (Float) schema()   {}
func (Double) schema()  {}
func (Bytes) schema()   {}
func (String) schema()  {}
func (Record) schema()  {}
func (Enum) schema()    {}
func (Array) schema()   {}
func (Map) schema()     {}
func (Union) schema()   {}
func (Fixed) schema()   {}
func (Ref) schema()     {}

// Order is the sort order of a record field.
type Order uint8

const (
	// NoOrder means the field did not declare
	// an order (Avro treats this as ascending).
	NoOrder Order = iota
	Ascending
	Descending
	Ignore
)

var orderNames = [...]string{
	Ascending:  "ascending",
	Descending: "descending",
	Ignore:     "ignore",
}

func (o Order) String() string {
	if int(o) < len(orderNames) && orderNames[o] != "" {
		return orderNames[o]
	}
	return ""
}

// Field is a field of a Record.
type Field struct {
	Name string
	Doc  string
	Type Schema
	// Default is the JSON text of the field's
	// default value, or nil if there is none.
	// It is not checked against Type.
	Default json.RawMessage
	Order   Order
	Aliases []string
}

// NewField returns a Field with
// only a name and a type.
func NewField(name string, t Schema) Field {
	return Field{Name: name, Type: t}
}

// NewRecord returns a Record with
// only a name and fields.
func NewRecord(name string, fields ...Field) Record {
	return Record{Name: name, Fields: fields}
}

// NewEnum returns an Enum with
// only a name and symbols.
func NewEnum(name string, symbols ...string) Enum {
	return Enum{Name: name, Symbols: symbols}
}

// NewFixed returns a Fixed with
// only a name and a size.
func NewFixed(name string, size int) Fixed {
	return Fixed{Name: name, Size: size}
}

func fullname(name, namespace string) string {
	if namespace == "" || strings.IndexByte(name, '.') >= 0 {
		return name
	}
	return namespace + "." + name
}

// FullName returns the namespace-qualified name.
func (r *Record) FullName() string { return fullname(r.Name, r.Namespace) }

// FullName returns the namespace-qualified name.
func (e *Enum) FullName() string { return fullname(e.Name, e.Namespace) }

// FullName returns the namespace-qualified name.
func (f *Fixed) FullName() string { return fullname(f.Name, f.Namespace) }

// Field returns the field with the given
// name, or nil if there is no such field.
func (r *Record) Field(name string) *Field {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			return &r.Fields[i]
		}
	}
	return nil
}
