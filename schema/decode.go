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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	yamlv3 "gopkg.in/yaml.v3"
	"sigs.k8s.io/yaml"
)

// Decode reads a schema definition from src.
// The ext argument selects the input syntax:
//
//	".yaml", ".yml"          YAML 1.2
//	".json", ".avsc", ""     JSON, with comments and trailing commas allowed
//
// YAML and commented JSON are converted
// to plain JSON and handed to Parse.
// YAML input follows the 1.2 core schema, so
// names such as y, yes, or off stay strings.
func Decode(src io.Reader, ext string) (Schema, error) {
	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	switch ext {
	case ".yaml", ".yml":
		buf, err = yamlToJSON(buf)
		if err != nil {
			return nil, fmt.Errorf("schema: converting yaml: %w", err)
		}
	case ".json", ".avsc", "":
		buf = jsonc.ToJSON(buf)
	default:
		return nil, fmt.Errorf("schema: unsupported schema file extension %q", ext)
	}
	return Parse(buf)
}

func yamlToJSON(buf []byte) ([]byte, error) {
	var doc any
	if err := yamlv3.Unmarshal(buf, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// ReadFile reads and decodes the schema
// stored at path, using the file extension
// to pick the syntax. See Decode.
func ReadFile(path string) (Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := Decode(f, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// YAML returns s as a YAML document.
func YAML(s Schema) ([]byte, error) {
	text, err := Marshal(s)
	if err != nil {
		return nil, err
	}
	return yaml.JSONToYAML(text)
}
