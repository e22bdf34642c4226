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

import "fmt"

// IntLogical is a logical type refining Int.
type IntLogical uint8

const (
	NoIntLogical IntLogical = iota
	Date
	TimeMillis
)

// LongLogical is a logical type refining Long.
type LongLogical uint8

const (
	NoLongLogical LongLogical = iota
	TimeMicros
	TimestampMillis
	TimestampMicros
	LocalTimestampMillis
	LocalTimestampMicros
)

// StringLogical is a logical type refining String.
type StringLogical uint8

const (
	NoStringLogical StringLogical = iota
	UUID
)

// BytesLogical is a logical type refining Bytes.
type BytesLogical uint8

const (
	NoBytesLogical BytesLogical = iota
	BytesDecimal
)

// FixedLogical is a logical type refining Fixed.
type FixedLogical uint8

const (
	NoFixedLogical FixedLogical = iota
	FixedDecimal
	Duration
)

// Decimal holds the parameters of
// the "decimal" logical type.
type Decimal struct {
	Precision int
	Scale     int
}

const (
	logicalDecimal  = "decimal"
	logicalDuration = "duration"
)

var intLogicals = map[string]IntLogical{
	"date":        Date,
	"time-millis": TimeMillis,
}

var longLogicals = map[string]LongLogical{
	"time-micros":            TimeMicros,
	"timestamp-millis":       TimestampMillis,
	"timestamp-micros":       TimestampMicros,
	"local-timestamp-millis": LocalTimestampMillis,
	"local-timestamp-micros": LocalTimestampMicros,
}

var stringLogicals = map[string]StringLogical{
	"uuid": UUID,
}

func (l IntLogical) String() string {
	switch l {
	case Date:
		return "date"
	case TimeMillis:
		return "time-millis"
	}
	return ""
}

func (l LongLogical) String() string {
	switch l {
	case TimeMicros:
		return "time-micros"
	case TimestampMillis:
		return "timestamp-millis"
	case TimestampMicros:
		return "timestamp-micros"
	case LocalTimestampMillis:
		return "local-timestamp-millis"
	case LocalTimestampMicros:
		return "local-timestamp-micros"
	}
	return ""
}

func (l StringLogical) String() string {
	if l == UUID {
		return "uuid"
	}
	return ""
}

func (l BytesLogical) String() string {
	if l == BytesDecimal {
		return logicalDecimal
	}
	return ""
}

func (l FixedLogical) String() string {
	switch l {
	case FixedDecimal:
		return logicalDecimal
	case Duration:
		return logicalDuration
	}
	return ""
}

// logicalProblem describes a logical type value
// that has no name, or decimal parameters on a
// type whose logical type is not decimal.
// It returns "" if s has neither problem.
func logicalProblem(s Schema) string {
	switch s := s.(type) {
	case Int:
		if s.Logical != NoIntLogical && s.Logical.String() == "" {
			return fmt.Sprintf("unknown int logical type %d", s.Logical)
		}
	case Long:
		if s.Logical != NoLongLogical && s.Logical.String() == "" {
			return fmt.Sprintf("unknown long logical type %d", s.Logical)
		}
	case String:
		if s.Logical != NoStringLogical && s.Logical.String() == "" {
			return fmt.Sprintf("unknown string logical type %d", s.Logical)
		}
	case Bytes:
		if s.Logical != NoBytesLogical && s.Logical.String() == "" {
			return fmt.Sprintf("unknown bytes logical type %d", s.Logical)
		}
		if s.Logical != BytesDecimal && s.Decimal != (Decimal{}) {
			return "bytes has decimal parameters but no decimal logical type"
		}
	case Fixed:
		if s.Logical != NoFixedLogical && s.Logical.String() == "" {
			return fmt.Sprintf("unknown fixed logical type %d", s.Logical)
		}
		if s.Logical != FixedDecimal && s.Decimal != (Decimal{}) {
			return fmt.Sprintf("fixed %q has decimal parameters but no decimal logical type", s.Name)
		}
	}
	return ""
}
