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

// Package query renders parameterized SQL for one dialect.
//
// Values are always bound as parameters and identifiers always go through
// the dialect's quoting, so nothing a caller passes can change the shape of
// the statement:
//
//	b := query.NewBuilder(dialect.SQLite())
//	stmt, err := b.Select("users", []string{"name"}, query.Eq("age", 36))
//	// SELECT "name" FROM "users" WHERE "age" = ?
package query

import (
	"strconv"

	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by column ascending.
func Asc(column string) Order { return Order{Column: column} }

// Desc orders by column descending.
func Desc(column string) Order { return Order{Column: column, Desc: true} }

// Join is a LEFT JOIN of Table on Left = Right.
type Join struct {
	Table string
	Left  string
	Right string
}

// LeftJoin joins table where the left column equals the right column.
func LeftJoin(table, left, right string) Join {
	return Join{Table: table, Left: left, Right: right}
}

// SelectSpec describes a SELECT. An empty column list selects "*"; Limit and
// Offset of zero mean none.
type SelectSpec struct {
	Table   string
	Columns []string
	Joins   []Join
	Where   Predicate
	GroupBy []string
	OrderBy []Order
	Limit   int
	Offset  int
}

// InsertSpec describes an INSERT of one or more rows. Each row holds one
// value per column. Returning is only allowed for single-row inserts.
type InsertSpec struct {
	Table     string
	Columns   []string
	Rows      [][]any
	Conflict  dialect.Conflict
	Returning string
}

// UpdateSpec describes an UPDATE. Ignore skips rows that would violate a
// unique key where the dialect supports it.
type UpdateSpec struct {
	Table  string
	Set    []Assignment
	Where  Predicate
	Ignore bool
}

// Builder renders statements for one dialect. It holds no state besides the
// dialect and is safe for concurrent use.
type Builder struct {
	d dialect.Dialect
}

// NewBuilder returns a builder for d.
func NewBuilder(d dialect.Dialect) Builder {
	return Builder{d: d}
}

// Dialect returns the builder's dialect.
func (b Builder) Dialect() dialect.Dialect { return b.d }

// Select renders a SELECT of columns from table, filtered by where (nil for
// all rows) and ordered by order.
func (b Builder) Select(table string, columns []string, where Predicate, order ...Order) (Statement, error) {
	return b.BuildSelect(SelectSpec{Table: table, Columns: columns, Where: where, OrderBy: order})
}

// BuildSelect renders a SELECT from a full description.
func (b Builder) BuildSelect(s SelectSpec) (Statement, error) {
	if s.Limit < 0 || s.Offset < 0 {
		return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "select", "negative limit or offset")
	}

	r := newRenderer(b.d)
	r.write("SELECT ")
	if len(s.Columns) == 0 {
		r.write("*")
	} else if err := r.idents(s.Columns); err != nil {
		return Statement{}, err
	}
	r.write(" FROM ")
	if err := r.ident(s.Table); err != nil {
		return Statement{}, err
	}

	for _, j := range s.Joins {
		r.write(" LEFT JOIN ")
		if err := r.ident(j.Table); err != nil {
			return Statement{}, err
		}
		r.write(" ON ")
		if err := r.ident(j.Left); err != nil {
			return Statement{}, err
		}
		r.write(" = ")
		if err := r.ident(j.Right); err != nil {
			return Statement{}, err
		}
	}

	if err := r.where(s.Where); err != nil {
		return Statement{}, err
	}

	if len(s.GroupBy) > 0 {
		r.write(" GROUP BY ")
		if err := r.idents(s.GroupBy); err != nil {
			return Statement{}, err
		}
	}

	for i, o := range s.OrderBy {
		if i == 0 {
			r.write(" ORDER BY ")
		} else {
			r.write(", ")
		}
		if err := r.ident(o.Column); err != nil {
			return Statement{}, err
		}
		if o.Desc {
			r.write(" DESC")
		}
	}

	switch {
	case s.Limit > 0:
		r.write(" LIMIT ", strconv.Itoa(s.Limit))
	case s.Offset > 0:
		if tail := b.d.OffsetWithoutLimit(); tail != "" {
			r.write(" ", tail)
		}
	}
	if s.Offset > 0 {
		r.write(" OFFSET ", strconv.Itoa(s.Offset))
	}

	return r.statement(KindSelect, s.Table), nil
}

// Insert renders a single-row INSERT. returning names the generated key
// column to hand back, or is empty.
func (b Builder) Insert(table string, values []Assignment, returning string) (Statement, error) {
	spec := InsertSpec{Table: table, Returning: returning}
	row := make([]any, len(values))
	for i, a := range values {
		spec.Columns = append(spec.Columns, a.Column)
		row[i] = a.Value
	}
	spec.Rows = [][]any{row}
	return b.BuildInsert(spec)
}

// BuildInsert renders an INSERT from a full description.
func (b Builder) BuildInsert(s InsertSpec) (Statement, error) {
	if len(s.Columns) == 0 {
		return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "insert", "no columns for %q", s.Table)
	}
	if len(s.Rows) == 0 {
		return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "insert", "no rows for %q", s.Table)
	}
	if s.Returning != "" && len(s.Rows) > 1 {
		return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "insert", "returning a key needs a single-row insert")
	}
	verb, err := b.d.InsertVerb(s.Conflict)
	if err != nil {
		return Statement{}, err
	}

	r := newRenderer(b.d)
	r.write(verb, " ")
	if err := r.ident(s.Table); err != nil {
		return Statement{}, err
	}
	r.write(" (")
	if err := r.idents(s.Columns); err != nil {
		return Statement{}, err
	}
	r.write(") VALUES ")

	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "insert", "row %d has %d values for %d columns", i+1, len(row), len(s.Columns))
		}
		if i > 0 {
			r.write(", ")
		}
		r.write("(")
		for j, v := range row {
			if j > 0 {
				r.write(", ")
			}
			if err := r.param(s.Columns[j], v); err != nil {
				return Statement{}, err
			}
		}
		r.write(")")
	}
	r.write(b.d.InsertSuffix(s.Conflict))

	if s.Returning != "" && b.d.SupportsReturning() {
		r.write(" RETURNING ")
		if err := r.ident(s.Returning); err != nil {
			return Statement{}, err
		}
	}

	stmt := r.statement(KindInsert, s.Table)
	stmt.Returning = s.Returning
	return stmt, nil
}

// Update renders an UPDATE of table setting values where the predicate holds.
func (b Builder) Update(table string, values []Assignment, where Predicate) (Statement, error) {
	return b.BuildUpdate(UpdateSpec{Table: table, Set: values, Where: where})
}

// BuildUpdate renders an UPDATE from a full description.
func (b Builder) BuildUpdate(s UpdateSpec) (Statement, error) {
	if len(s.Set) == 0 {
		return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "update", "nothing to set on %q", s.Table)
	}
	verb, err := b.d.UpdateVerb(s.Ignore)
	if err != nil {
		return Statement{}, err
	}

	r := newRenderer(b.d)
	r.write(verb, " ")
	if err := r.ident(s.Table); err != nil {
		return Statement{}, err
	}
	r.write(" SET ")
	for i, a := range s.Set {
		if i > 0 {
			r.write(", ")
		}
		if err := r.ident(a.Column); err != nil {
			return Statement{}, err
		}
		r.write(" = ")
		if err := r.param(a.Column, a.Value); err != nil {
			return Statement{}, err
		}
	}
	if err := r.where(s.Where); err != nil {
		return Statement{}, err
	}
	return r.statement(KindUpdate, s.Table), nil
}

// Delete renders a DELETE from table where the predicate holds. A nil
// predicate deletes every row.
func (b Builder) Delete(table string, where Predicate) (Statement, error) {
	r := newRenderer(b.d)
	r.write("DELETE FROM ")
	if err := r.ident(table); err != nil {
		return Statement{}, err
	}
	if err := r.where(where); err != nil {
		return Statement{}, err
	}
	return r.statement(KindDelete, table), nil
}
