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

// Package dialect describes the per-backend SQL facts dbkit needs: identifier
// quoting, placeholder syntax, type mapping, auto-increment and returning-id
// syntax, conflict handling verbs and schema introspection style.
//
// A Dialect is a value object. It is built once per backend kind, registered,
// and never mutated:
//
//	d, err := dialect.For(dialect.KindPostgres)
//	col, _ := d.QuoteIdentifier("users.name") // "users"."name"
//	ph := d.Placeholder(2)                    // $2
package dialect

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Kind identifies a backend engine.
type Kind string

const (
	KindSQLite   Kind = "sqlite"
	KindMySQL    Kind = "mysql"
	KindMariaDB  Kind = "mariadb"
	KindPostgres Kind = "postgres"
)

// ParseKind accepts the canonical kind names and common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return KindSQLite, nil
	case "mysql":
		return KindMySQL, nil
	case "mariadb", "maria":
		return KindMariaDB, nil
	case "postgres", "postgresql", "pg", "pgx":
		return KindPostgres, nil
	}
	return "", sqlerr.Newf(sqlerr.KindConfiguration, "parse dialect", "unknown backend kind %q (supported: sqlite, mysql, mariadb, postgres)", s)
}

// PlaceholderStyle is the bound-parameter marker syntax.
type PlaceholderStyle int

const (
	// PlaceholderQuestion renders every parameter as "?".
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar renders parameters as "$1", "$2", ...
	PlaceholderDollar
)

// Conflict selects how an INSERT treats rows that violate a unique key.
type Conflict int

const (
	ConflictError Conflict = iota
	ConflictIgnore
	ConflictReplace
)

func (c Conflict) String() string {
	switch c {
	case ConflictError:
		return "error"
	case ConflictIgnore:
		return "ignore"
	case ConflictReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Introspection is the way a backend exposes column metadata.
type Introspection int

const (
	IntrospectPragma Introspection = iota
	IntrospectInformationSchema
)

// Spec holds the facts of one backend. It is copied into a Dialect by New.
type Spec struct {
	Kind          Kind
	Quote         byte
	Placeholders  PlaceholderStyle
	Returning     bool
	Types         map[Type]string
	AutoIncrement string
	InsertVerbs   map[Conflict]string
	InsertSuffix  map[Conflict]string
	UpdateIgnore  string // empty when UPDATE IGNORE is unsupported
	OffsetOnly    string
	BoolAsInt     bool
	SessionInit   []string
	Introspection Introspection
	// ColumnsSQL lists name, type, nullability and key flag of a table's
	// columns, taking the table name as its only parameter.
	ColumnsSQL string
}

// New builds a descriptor from a spec. The spec's maps and slices are copied.
func New(s Spec) Dialect {
	d := Dialect{
		kind:          s.Kind,
		quote:         s.Quote,
		placeholders:  s.Placeholders,
		returning:     s.Returning,
		types:         make(map[Type]string, len(s.Types)),
		autoIncrement: s.AutoIncrement,
		insertVerbs:   make(map[Conflict]string, len(s.InsertVerbs)),
		insertSuffix:  make(map[Conflict]string, len(s.InsertSuffix)),
		updateIgnore:  s.UpdateIgnore,
		offsetOnly:    s.OffsetOnly,
		boolAsInt:     s.BoolAsInt,
		sessionInit:   append([]string(nil), s.SessionInit...),
		introspection: s.Introspection,
		columnsSQL:    s.ColumnsSQL,
	}
	if d.quote == 0 {
		d.quote = '"'
	}
	for k, v := range s.Types {
		d.types[k] = v
	}
	for k, v := range s.InsertVerbs {
		d.insertVerbs[k] = v
	}
	for k, v := range s.InsertSuffix {
		d.insertSuffix[k] = v
	}
	return d
}

// Dialect is the descriptor of one backend kind.
type Dialect struct {
	kind          Kind
	quote         byte
	placeholders  PlaceholderStyle
	returning     bool
	types         map[Type]string
	autoIncrement string
	insertVerbs   map[Conflict]string
	insertSuffix  map[Conflict]string
	updateIgnore  string
	offsetOnly    string
	boolAsInt     bool
	sessionInit   []string
	introspection Introspection
	columnsSQL    string
}

// Kind returns the backend kind.
func (d Dialect) Kind() Kind { return d.kind }

// Name returns the backend kind as a string.
func (d Dialect) Name() string { return string(d.kind) }

// QuoteIdentifier quotes a possibly dot-qualified identifier. Each part is
// wrapped in the backend's quote character with embedded quotes doubled; a
// bare "*" part is left as is.
func (d Dialect) QuoteIdentifier(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", sqlerr.Newf(sqlerr.KindValidation, "quote identifier", "empty identifier")
	}
	if strings.ContainsRune(name, 0) {
		return "", sqlerr.Newf(sqlerr.KindValidation, "quote identifier", "identifier %q contains a NUL byte", name)
	}

	parts := strings.Split(name, ".")
	q := string(d.quote)
	for i, p := range parts {
		if p == "" {
			return "", sqlerr.Newf(sqlerr.KindValidation, "quote identifier", "identifier %q has an empty part", name)
		}
		if p == "*" {
			if i != len(parts)-1 {
				return "", sqlerr.Newf(sqlerr.KindValidation, "quote identifier", "wildcard must be the last part of %q", name)
			}
			continue
		}
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, "."), nil
}

// Placeholder returns the marker for the index-th (1-based) bound parameter.
func (d Dialect) Placeholder(index int) string {
	if d.placeholders == PlaceholderDollar {
		return "$" + strconv.Itoa(index)
	}
	return "?"
}

// PlaceholderStyle returns the marker syntax.
func (d Dialect) PlaceholderStyle() PlaceholderStyle { return d.placeholders }

// SupportsReturning reports whether INSERT ... RETURNING is available.
func (d Dialect) SupportsReturning() bool { return d.returning }

// MapType returns the column type used for a generic type.
func (d Dialect) MapType(t Type) (string, error) {
	if s, ok := d.types[t]; ok {
		return s, nil
	}
	return "", sqlerr.Newf(sqlerr.KindValidation, "map type", "type %s is not supported by %s", t, d.kind)
}

// ParseType maps a backend column type name (as reported by the driver or
// the catalog) onto a generic type. TypeNull means unknown.
func (d Dialect) ParseType(dbType string) Type {
	return parseTypeName(dbType)
}

// AutoIncrementColumn returns the full column type clause for an
// auto-generated integer primary key.
func (d Dialect) AutoIncrementColumn() string { return d.autoIncrement }

// InsertVerb returns the statement head for the conflict policy, e.g.
// "INSERT IGNORE INTO".
func (d Dialect) InsertVerb(c Conflict) (string, error) {
	if v, ok := d.insertVerbs[c]; ok {
		return v, nil
	}
	return "", sqlerr.Newf(sqlerr.KindValidation, "insert", "conflict policy %s is not supported by %s", c, d.kind)
}

// InsertSuffix returns the clause appended after VALUES for the conflict policy.
func (d Dialect) InsertSuffix(c Conflict) string { return d.insertSuffix[c] }

// UpdateVerb returns the statement head of an UPDATE, optionally ignoring
// rows that would violate a unique key.
func (d Dialect) UpdateVerb(ignore bool) (string, error) {
	if !ignore {
		return "UPDATE", nil
	}
	if d.updateIgnore == "" {
		return "", sqlerr.Newf(sqlerr.KindValidation, "update", "UPDATE IGNORE is not supported by %s", d.kind)
	}
	return d.updateIgnore, nil
}

// OffsetWithoutLimit returns the LIMIT clause needed before an OFFSET when
// the caller set no limit. Empty when the backend accepts a bare OFFSET.
func (d Dialect) OffsetWithoutLimit() string { return d.offsetOnly }

// BoolAsInt reports whether booleans are bound as 0/1 integers.
func (d Dialect) BoolAsInt() bool { return d.boolAsInt }

// SessionInit returns the statements run on every new physical connection.
func (d Dialect) SessionInit() []string {
	return append([]string(nil), d.sessionInit...)
}

// Introspection returns how column metadata is read.
func (d Dialect) Introspection() Introspection { return d.introspection }

// ColumnsQuery returns the catalog query listing a table's columns as
// (name, type, nullable, key) rows, and its arguments.
func (d Dialect) ColumnsQuery(table string) (string, []any, error) {
	if strings.TrimSpace(table) == "" {
		return "", nil, sqlerr.Newf(sqlerr.KindValidation, "introspect", "empty table name")
	}
	if d.columnsSQL == "" {
		return "", nil, sqlerr.Newf(sqlerr.KindValidation, "introspect", "%s has no column catalog query", d.kind)
	}
	return d.columnsSQL, []any{table}, nil
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]Dialect)
)

// Register adds or replaces the descriptor for d's kind.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.kind] = d
}

// For returns the registered descriptor for a kind.
func For(kind Kind) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[kind]
	if !ok {
		return Dialect{}, sqlerr.Newf(sqlerr.KindConfiguration, "dialect", "no dialect registered for %q", kind)
	}
	return d, nil
}

// Kinds returns all registered kinds, sorted.
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
