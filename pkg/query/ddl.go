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
package query

import (
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// ColumnSpec is one column of a CREATE TABLE. AutoIncrement implies the
// column is the integer primary key.
type ColumnSpec struct {
	Name          string
	Type          dialect.Type
	NotNull       bool
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
}

// TableSpec describes a table for CreateTable.
type TableSpec struct {
	Name        string
	Columns     []ColumnSpec
	IfNotExists bool
}

// CreateTable renders a CREATE TABLE statement with the dialect's column
// types. Several PrimaryKey columns form a composite key.
func (b Builder) CreateTable(t TableSpec) (Statement, error) {
	if len(t.Columns) == 0 {
		return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "create table", "table %q has no columns", t.Name)
	}

	var keys []string
	auto := 0
	for _, c := range t.Columns {
		if c.AutoIncrement {
			auto++
			continue
		}
		if c.PrimaryKey {
			keys = append(keys, c.Name)
		}
	}
	if auto > 1 || (auto == 1 && len(keys) > 0) {
		return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "create table", "an auto-increment column must be the only primary key of %q", t.Name)
	}

	r := newRenderer(b.d)
	r.write("CREATE TABLE ")
	if t.IfNotExists {
		r.write("IF NOT EXISTS ")
	}
	if err := r.ident(t.Name); err != nil {
		return Statement{}, err
	}
	r.write(" (")

	for i, c := range t.Columns {
		if i > 0 {
			r.write(", ")
		}
		if err := r.ident(c.Name); err != nil {
			return Statement{}, err
		}
		if c.AutoIncrement {
			r.write(" ", b.d.AutoIncrementColumn())
			continue
		}
		typ, err := b.d.MapType(c.Type)
		if err != nil {
			return Statement{}, err
		}
		r.write(" ", typ)
		if c.NotNull {
			r.write(" NOT NULL")
		}
		if c.Unique {
			r.write(" UNIQUE")
		}
	}

	if len(keys) > 0 {
		r.write(", PRIMARY KEY (")
		if err := r.idents(keys); err != nil {
			return Statement{}, err
		}
		r.write(")")
	}
	r.write(")")
	return r.statement(KindDDL, t.Name), nil
}

// DropTable renders a DROP TABLE statement.
func (b Builder) DropTable(name string, ifExists bool) (Statement, error) {
	r := newRenderer(b.d)
	r.write("DROP TABLE ")
	if ifExists {
		r.write("IF EXISTS ")
	}
	if err := r.ident(name); err != nil {
		return Statement{}, err
	}
	return r.statement(KindDDL, name), nil
}
