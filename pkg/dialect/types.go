// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package dialect

import (
	"strings"
)

// Type is a backend-independent value type.
type Type int

const (
	TypeNull Type = iota
	TypeText
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeTimestamp
	TypeBlob
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeTimestamp:
		return "timestamp"
	case TypeBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// ParseTypeName maps a generic type name ("text", "integer", ...) back to a Type.
func ParseTypeName(name string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "null":
		return TypeNull, true
	case "text", "string":
		return TypeText, true
	case "integer", "int":
		return TypeInteger, true
	case "float", "double":
		return TypeFloat, true
	case "boolean", "bool":
		return TypeBoolean, true
	case "timestamp", "time":
		return TypeTimestamp, true
	case "blob", "bytes":
		return TypeBlob, true
	}
	return TypeNull, false
}

var exactTypeNames = map[string]Type{
	"INT": TypeInteger, "INTEGER": TypeInteger, "BIGINT": TypeInteger, "SMALLINT": TypeInteger,
	"TINYINT": TypeInteger, "MEDIUMINT": TypeInteger, "INT2": TypeInteger, "INT4": TypeInteger,
	"INT8": TypeInteger, "SERIAL": TypeInteger, "BIGSERIAL": TypeInteger, "YEAR": TypeInteger,

	"REAL": TypeFloat, "DOUBLE": TypeFloat, "DOUBLE PRECISION": TypeFloat, "FLOAT": TypeFloat,
	"FLOAT4": TypeFloat, "FLOAT8": TypeFloat, "NUMERIC": TypeFloat, "DECIMAL": TypeFloat,

	"BOOL": TypeBoolean, "BOOLEAN": TypeBoolean,

	"DATE": TypeTimestamp, "DATETIME": TypeTimestamp, "TIMESTAMP": TypeTimestamp,
	"TIMESTAMPTZ": TypeTimestamp, "TIMESTAMP WITH TIME ZONE": TypeTimestamp,
	"TIMESTAMP WITHOUT TIME ZONE": TypeTimestamp,

	"BLOB": TypeBlob, "TINYBLOB": TypeBlob, "MEDIUMBLOB": TypeBlob, "LONGBLOB": TypeBlob,
	"BYTEA": TypeBlob, "BINARY": TypeBlob, "VARBINARY": TypeBlob,

	"TEXT": TypeText, "TINYTEXT": TypeText, "MEDIUMTEXT": TypeText, "LONGTEXT": TypeText,
	"VARCHAR": TypeText, "CHAR": TypeText, "CHARACTER": TypeText, "CHARACTER VARYING": TypeText,
	"BPCHAR": TypeText, "NVARCHAR": TypeText, "NCHAR": TypeText, "CLOB": TypeText,
	"JSON": TypeText, "JSONB": TypeText, "UUID": TypeText, "ENUM": TypeText, "SET": TypeText,
}

// parseTypeName maps a backend column type name onto a Type. Unknown names
// fall back to SQLite's affinity rules, and TypeNull means "unknown".
func parseTypeName(name string) Type {
	n := strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(n, '('); i >= 0 {
		n = strings.TrimSpace(n[:i])
	}
	n = strings.TrimSpace(strings.TrimSuffix(n, "UNSIGNED"))
	if n == "" {
		return TypeNull
	}
	if t, ok := exactTypeNames[n]; ok {
		return t
	}

	switch {
	case strings.Contains(n, "INT"):
		return TypeInteger
	case strings.Contains(n, "CHAR"), strings.Contains(n, "CLOB"), strings.Contains(n, "TEXT"):
		return TypeText
	case strings.Contains(n, "BLOB"):
		return TypeBlob
	case strings.Contains(n, "REAL"), strings.Contains(n, "FLOA"), strings.Contains(n, "DOUB"):
		return TypeFloat
	case strings.Contains(n, "BOOL"):
		return TypeBoolean
	case strings.Contains(n, "TIME"), strings.Contains(n, "DATE"):
		return TypeTimestamp
	}
	return TypeNull
}
