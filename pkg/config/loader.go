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
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// FileYAML is the layout of a backends file:
//
//	apiVersion: dbkit/v1
//	kind: Backends
//	backends:
//	  - name: local
//	    driver: sqlite
//	    path: ./data/app.db
//	  - name: reporting
//	    driver: postgres
//	    host: ${PGHOST}
//	    user: reporter
//	    keyring_service: dbkit
type FileYAML struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Backends   []Backend `yaml:"backends"`
}

// LoadFile reads, validates and defaults every backend declared in a file.
// ${VAR} references are expanded from the environment before parsing, and
// relative SQLite paths are resolved against the file's directory.
func LoadFile(path string) ([]Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sqlerr.Newf(sqlerr.KindConfiguration, "load config", "failed to read backends file %s: %w", path, err)
	}
	return parse(expandEnvVars(string(data)), filepath.Dir(path))
}

// Parse is LoadFile for in-memory content. Relative paths stay relative to
// the working directory.
func Parse(content string) ([]Backend, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return parse(expandEnvVars(content), wd)
}

func parse(content, baseDir string) ([]Backend, error) {
	var doc any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, sqlerr.Newf(sqlerr.KindConfiguration, "load config", "failed to parse backends YAML: %w", err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, sqlerr.New(sqlerr.KindConfiguration, "load config", err)
	}

	var file FileYAML
	if err := yaml.Unmarshal([]byte(content), &file); err != nil {
		return nil, sqlerr.Newf(sqlerr.KindConfiguration, "load config", "failed to decode backends: %w", err)
	}

	seen := make(map[string]bool, len(file.Backends))
	out := make([]Backend, 0, len(file.Backends))
	for _, b := range file.Backends {
		if kind, err := b.Kind(); err == nil && kind == dialect.KindSQLite {
			b.Path = resolvePath(baseDir, b.Path)
		}
		b = b.WithDefaults()
		if seen[b.Name] {
			return nil, sqlerr.Newf(sqlerr.KindConfiguration, "load config", "duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true
		if err := b.Validate(); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Find returns the backend with the given name. An empty name selects the
// only backend of a single-entry list.
func Find(backends []Backend, name string) (Backend, error) {
	if name == "" && len(backends) == 1 {
		return backends[0], nil
	}
	for _, b := range backends {
		if b.Name == name {
			return b, nil
		}
	}
	return Backend{}, sqlerr.Newf(sqlerr.KindConfiguration, "find backend", "no backend named %q", name)
}

// expandEnvVars expands environment variables in YAML content
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
