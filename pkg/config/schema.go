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
package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// backendsSchema describes a dbkit backends file after YAML decoding.
const backendsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["apiVersion", "backends"],
  "additionalProperties": false,
  "properties": {
    "apiVersion": {"enum": ["dbkit/v1"]},
    "kind": {"enum": ["Backends"]},
    "backends": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/definitions/backend"}
    }
  },
  "definitions": {
    "duration": {
      "type": "string",
      "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
    },
    "backend": {
      "type": "object",
      "required": ["driver"],
      "additionalProperties": false,
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "driver": {"enum": ["sqlite", "sqlite3", "mysql", "mariadb", "maria", "postgres", "postgresql", "pg", "pgx"]},
        "mode": {"enum": ["file-embedded", "client-server", "embedded-server"]},
        "path": {"type": "string"},
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 0, "maximum": 65535},
        "database": {"type": "string"},
        "user": {"type": "string"},
        "password": {"type": "string"},
        "dsn": {"type": "string"},
        "params": {
          "type": "object",
          "additionalProperties": {"type": ["string", "number", "boolean"]}
        },
        "postgres_driver": {"enum": ["pgx", "pq"]},
        "keyring_service": {"type": "string"},
        "encryption_key": {"type": "string"},
        "pool": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "min_idle": {"type": "integer", "minimum": 0},
            "max_total": {"type": "integer", "minimum": 1},
            "acquire_timeout": {"$ref": "#/definitions/duration"},
            "max_idle_time": {"$ref": "#/definitions/duration"},
            "health_check_after": {"$ref": "#/definitions/duration"},
            "breaker_threshold": {"type": "integer", "minimum": 0},
            "breaker_cooldown": {"$ref": "#/definitions/duration"}
          }
        },
        "embedded": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "image": {"type": "string"},
            "root_password": {"type": "string"},
            "start_timeout": {"$ref": "#/definitions/duration"},
            "keep_running": {"type": "boolean"}
          }
        }
      }
    }
  }
}`

var compiledSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(backendsSchema))
	if err != nil {
		panic(fmt.Sprintf("config: invalid backends schema: %v", err))
	}
	compiledSchema = s
}

// validateDocument checks a decoded YAML document against the backends schema.
func validateDocument(doc any) error {
	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			msgs[i] = e.String()
		}
		return fmt.Errorf("invalid backends file: %s", strings.Join(msgs, "; "))
	}
	return nil
}
