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
	"sort"
	"strings"

	"github.com/teradata-labs/dbkit/pkg/bind"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Kind is the statement category.
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindDDL
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindDDL:
		return "ddl"
	default:
		return "unknown"
	}
}

// Statement is rendered SQL plus its positional parameters. Values never
// appear in SQL; Params[i] belongs to the (i+1)-th placeholder.
type Statement struct {
	Kind   Kind
	Table  string
	SQL    string
	Params []bind.Param
	// Returning is the generated-key column an insert asked for. It is part
	// of SQL only when the dialect supports RETURNING.
	Returning string

	dialect dialect.Dialect
	// parts are the SQL fragments between placeholders
	parts []string
}

// Dialect returns the dialect the statement was rendered for.
func (s Statement) Dialect() dialect.Dialect { return s.dialect }

// String renders the statement with parameter values inlined as literals.
// The result is meant for logs and the CLI, never for execution.
func (s Statement) String() string {
	if len(s.parts) == 0 {
		return s.SQL
	}
	var b strings.Builder
	for i, part := range s.parts {
		b.WriteString(part)
		if i < len(s.Params) {
			b.WriteString(s.Params[i].Value.Literal())
		}
	}
	return b.String()
}

// Mark returns the n-th (1-based) late-bound value. A statement containing
// marks is bound with Apply, typically once per execution of a prepared
// statement. Building a statement with a mark below 1 fails.
func Mark(n int) bind.Value { return bind.Marked(n) }

// Marks returns the highest mark number used, or 0.
func (s Statement) Marks() int {
	highest := 0
	for _, p := range s.Params {
		if p.Value.Mark > highest {
			highest = p.Value.Mark
		}
	}
	return highest
}

// Apply returns a copy of s with every Mark(n) replaced by args[n-1]. The
// number of args must equal Marks().
func (s Statement) Apply(args ...any) (Statement, error) {
	if want := s.Marks(); len(args) != want {
		return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "apply", "statement has %d marks, got %d values", want, len(args))
	}
	for i, p := range s.Params {
		if p.Value.IsInvalidMark() {
			return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "apply", "parameter %d is a mark numbered below 1", i+1)
		}
	}
	values := make([]bind.Value, len(args))
	for i, a := range args {
		v, err := bind.ValueOf(a)
		if err != nil {
			return Statement{}, err
		}
		if v.IsMark() || v.IsInvalidMark() {
			return Statement{}, sqlerr.Newf(sqlerr.KindValidation, "apply", "value %d is itself a mark", i+1)
		}
		values[i] = v
	}

	out := s
	out.Params = make([]bind.Param, len(s.Params))
	for i, p := range s.Params {
		if p.Value.IsMark() {
			p.Value = values[p.Value.Mark-1]
		}
		out.Params[i] = p
	}
	return out, nil
}

// Assignment pairs a column with a value.
type Assignment struct {
	Column string
	Value  any
}

// Set is shorthand for an Assignment.
func Set(column string, value any) Assignment { return Assignment{Column: column, Value: value} }

// Values turns a map into assignments sorted by column name, so the rendered
// SQL is stable.
func Values(m map[string]any) []Assignment {
	out := make([]Assignment, 0, len(m))
	for k, v := range m {
		out = append(out, Assignment{Column: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out
}

// renderer accumulates SQL text and parameters for one statement.
type renderer struct {
	d      dialect.Dialect
	sb     strings.Builder
	parts  []string
	params []bind.Param
}

func newRenderer(d dialect.Dialect) *renderer {
	return &renderer{d: d}
}

func (r *renderer) write(s ...string) {
	for _, x := range s {
		r.sb.WriteString(x)
	}
}

func (r *renderer) ident(name string) error {
	q, err := r.d.QuoteIdentifier(name)
	if err != nil {
		return err
	}
	r.sb.WriteString(q)
	return nil
}

func (r *renderer) idents(names []string) error {
	for i, n := range names {
		if i > 0 {
			r.write(", ")
		}
		if err := r.ident(n); err != nil {
			return err
		}
	}
	return nil
}

// param records a value and writes a placeholder for it.
func (r *renderer) param(column string, v any) error {
	val, err := bind.ValueOf(v)
	if err != nil {
		return err
	}
	if val.IsInvalidMark() {
		return sqlerr.Newf(sqlerr.KindValidation, "build", "marks are numbered from 1")
	}
	r.parts = append(r.parts, r.sb.String())
	r.sb.Reset()
	r.params = append(r.params, bind.Param{Column: column, Value: val})
	return nil
}

func (r *renderer) where(p Predicate) error {
	if p == nil {
		return nil
	}
	r.write(" WHERE ")
	return p.render(r)
}

func (r *renderer) statement(kind Kind, table string) Statement {
	parts := append(r.parts, r.sb.String())

	var b strings.Builder
	for i, part := range parts {
		b.WriteString(part)
		if i < len(r.params) {
			b.WriteString(r.d.Placeholder(i + 1))
		}
	}
	return Statement{
		Kind:    kind,
		Table:   table,
		SQL:     b.String(),
		Params:  r.params,
		dialect: r.d,
		parts:   parts,
	}
}
