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

// Package avro is the root of a set of packages
// for reading and writing Avro object container files.
//
//   - zigzag implements the variable-length
//     integer encoding used throughout the format.
//   - schema models Avro schemas and converts
//     them to and from their JSON representation.
//   - compr wraps the block compression codecs.
//   - ocf reads and writes container file
//     headers and blocks.
//
// The avrodump and avropack commands under cmd/
// inspect and build container files.
package avro
