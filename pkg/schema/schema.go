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

// Package schema reads and caches column metadata through each dialect's
// catalog query.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/teradata-labs/dbkit/internal/log"
	"github.com/teradata-labs/dbkit/pkg/dialect"
)

// Column is the catalog view of one column.
type Column struct {
	Name       string
	DBType     string
	Type       dialect.Type
	Nullable   bool
	PrimaryKey bool
}

// Table is the catalog view of one table. A table without columns is
// unknown to the catalog.
type Table struct {
	Name    string
	Columns []Column
	index   map[string]int
}

// foldName builds a Caser per call; Casers are not safe for concurrent use.
func foldName(name string) string { return cases.Fold().String(name) }

func newTable(name string, cols []Column) *Table {
	t := &Table{Name: name, Columns: cols, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		key := foldName(c.Name)
		if _, dup := t.index[key]; !dup {
			t.index[key] = i
		}
	}
	return t
}

// Known reports whether the catalog returned any column.
func (t *Table) Known() bool { return t != nil && len(t.Columns) > 0 }

// Column looks a column up case-insensitively.
func (t *Table) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	i, ok := t.index[foldName(name)]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnType reports the generic type of a column. Columns whose catalog
// type has no generic equivalent are reported as unknown, and so are
// qualified names whose qualifier is a different table.
func (t *Table) ColumnType(name string) (dialect.Type, bool) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if !t.owns(name[:i]) {
			return dialect.TypeNull, false
		}
		name = name[i+1:]
	}
	c, ok := t.Column(name)
	if !ok || c.Type == dialect.TypeNull {
		return dialect.TypeNull, false
	}
	return c.Type, true
}

// owns reports whether qualifier names t, with or without its schema.
func (t *Table) owns(qualifier string) bool {
	if t == nil {
		return false
	}
	q := foldName(qualifier)
	if q == foldName(t.Name) {
		return true
	}
	base := t.Name
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[i+1:]
	}
	return q == foldName(base)
}

// Names returns the column names in catalog order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Querier is satisfied by *sql.Tx, *sql.Conn and *sql.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Inspector caches table metadata for one dialect. It is safe for
// concurrent use. Callers run DDL through Invalidate so stale entries are
// never consulted.
type Inspector struct {
	d      dialect.Dialect
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]*Table
}

// NewInspector returns an empty cache for d. A nil logger uses the process
// logger.
func NewInspector(d dialect.Dialect, logger *zap.Logger) *Inspector {
	return &Inspector{
		d:      d,
		logger: log.Or(logger),
		cache:  make(map[string]*Table),
	}
}

// Table returns the metadata of name, reading the catalog through q on a
// cache miss. Unknown tables are returned empty and are not cached, so a
// table created later is picked up without invalidation.
func (i *Inspector) Table(ctx context.Context, q Querier, name string) (*Table, error) {
	key := foldName(name)
	i.mu.RLock()
	t, ok := i.cache[key]
	i.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := i.load(ctx, q, name)
	if err != nil {
		return nil, err
	}
	if t.Known() {
		i.mu.Lock()
		i.cache[key] = t
		i.mu.Unlock()
		i.logger.Debug("table metadata cached",
			zap.String("table", name),
			zap.Int("columns", len(t.Columns)))
	}
	return t, nil
}

func (i *Inspector) load(ctx context.Context, q Querier, name string) (*Table, error) {
	// catalogs are queried by the unqualified name in the current schema
	base := name
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		base = name[idx+1:]
	}
	query, args, err := i.d.ColumnsQuery(base)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var colName, dbType, nullable, key any
		if err := rows.Scan(&colName, &dbType, &nullable, &key); err != nil {
			return nil, err
		}
		c := Column{
			Name:       text(colName),
			DBType:     text(dbType),
			Nullable:   truthy(nullable),
			PrimaryKey: truthy(key),
		}
		c.Type = i.d.ParseType(c.DBType)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return newTable(name, cols), nil
}

// Invalidate drops the cached metadata of one table.
func (i *Inspector) Invalidate(name string) {
	i.mu.Lock()
	delete(i.cache, foldName(name))
	i.mu.Unlock()
}

// InvalidateAll drops every cached table.
func (i *Inspector) InvalidateAll() {
	i.mu.Lock()
	clear(i.cache)
	i.mu.Unlock()
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}

// truthy normalizes the catalog flags: sqlite and mysql report 0/1
// integers, postgres real booleans, some drivers text.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case []byte:
		return truthyText(string(x))
	case string:
		return truthyText(x)
	}
	return false
}

func truthyText(s string) bool {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return strings.EqualFold(s, "yes")
}
