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
	"strings"

	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Op is a comparison operator of a predicate leaf.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLike Op = "LIKE"
)

// ParseOp accepts the SQL spelling of an operator. "!=" is an alias of "<>".
func ParseOp(s string) (Op, error) {
	switch op := Op(strings.ToUpper(strings.TrimSpace(s))); op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike:
		return op, nil
	case "!=":
		return OpNe, nil
	case "==":
		return OpEq, nil
	}
	return "", sqlerr.Newf(sqlerr.KindValidation, "predicate", "unknown operator %q", s)
}

// Predicate is a node of a WHERE condition tree. Trees are checked while
// rendering, so a malformed tree fails at build time with a Validation error.
type Predicate interface {
	render(r *renderer) error
}

type comparison struct {
	column string
	op     Op
	value  any
}

type membership struct {
	column string
	negate bool
	values []any
}

type nullness struct {
	column string
	negate bool
}

type junction struct {
	or       bool
	children []Predicate
}

type negation struct {
	child Predicate
}

// Compare builds a comparison leaf. The operator is validated at build time.
func Compare(column string, op Op, value any) Predicate {
	return comparison{column: column, op: op, value: value}
}

// Eq matches rows where column = value.
func Eq(column string, value any) Predicate { return Compare(column, OpEq, value) }

// Ne matches rows where column <> value.
func Ne(column string, value any) Predicate { return Compare(column, OpNe, value) }

// Lt matches rows where column < value.
func Lt(column string, value any) Predicate { return Compare(column, OpLt, value) }

// Le matches rows where column <= value.
func Le(column string, value any) Predicate { return Compare(column, OpLe, value) }

// Gt matches rows where column > value.
func Gt(column string, value any) Predicate { return Compare(column, OpGt, value) }

// Ge matches rows where column >= value.
func Ge(column string, value any) Predicate { return Compare(column, OpGe, value) }

// Like matches rows where column LIKE pattern.
func Like(column, pattern string) Predicate { return Compare(column, OpLike, pattern) }

// In matches rows whose column equals one of values. An empty list is
// rejected when the statement is built.
func In(column string, values ...any) Predicate {
	return membership{column: column, values: values}
}

// NotIn matches rows whose column equals none of values.
func NotIn(column string, values ...any) Predicate {
	return membership{column: column, negate: true, values: values}
}

// IsNull matches rows where column IS NULL.
func IsNull(column string) Predicate { return nullness{column: column} }

// IsNotNull matches rows where column IS NOT NULL.
func IsNotNull(column string) Predicate { return nullness{column: column, negate: true} }

// And matches rows satisfying every child.
func And(children ...Predicate) Predicate { return junction{children: children} }

// Or matches rows satisfying at least one child.
func Or(children ...Predicate) Predicate { return junction{or: true, children: children} }

// Not negates a predicate.
func Not(child Predicate) Predicate { return negation{child: child} }

// Where is shorthand for a conjunction of equality leaves over the pairs.
// It returns nil for an empty list, which selects every row.
func Where(pairs ...Assignment) Predicate {
	if len(pairs) == 0 {
		return nil
	}
	children := make([]Predicate, len(pairs))
	for i, p := range pairs {
		if p.Value == nil {
			children[i] = IsNull(p.Column)
			continue
		}
		children[i] = Eq(p.Column, p.Value)
	}
	if len(children) == 1 {
		return children[0]
	}
	return And(children...)
}

func (c comparison) render(r *renderer) error {
	switch c.op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike:
	default:
		return sqlerr.Newf(sqlerr.KindValidation, "predicate", "unknown operator %q", string(c.op))
	}
	if c.value == nil {
		return sqlerr.Newf(sqlerr.KindValidation, "predicate",
			"comparison %s with NULL on %q never matches; use IsNull or IsNotNull", c.op, c.column)
	}
	if err := r.ident(c.column); err != nil {
		return err
	}
	r.write(" ", string(c.op), " ")
	return r.param(c.column, c.value)
}

func (m membership) render(r *renderer) error {
	if len(m.values) == 0 {
		return sqlerr.Newf(sqlerr.KindValidation, "predicate", "empty IN list for %q", m.column)
	}
	if err := r.ident(m.column); err != nil {
		return err
	}
	if m.negate {
		r.write(" NOT IN (")
	} else {
		r.write(" IN (")
	}
	for i, v := range m.values {
		if i > 0 {
			r.write(", ")
		}
		if err := r.param(m.column, v); err != nil {
			return err
		}
	}
	r.write(")")
	return nil
}

func (n nullness) render(r *renderer) error {
	if err := r.ident(n.column); err != nil {
		return err
	}
	if n.negate {
		r.write(" IS NOT NULL")
	} else {
		r.write(" IS NULL")
	}
	return nil
}

func (j junction) render(r *renderer) error {
	if len(j.children) == 0 {
		return sqlerr.Newf(sqlerr.KindValidation, "predicate", "empty %s", j.name())
	}
	sep := " AND "
	if j.or {
		sep = " OR "
	}
	r.write("(")
	for i, child := range j.children {
		if child == nil {
			return sqlerr.Newf(sqlerr.KindValidation, "predicate", "nil child %d in %s", i, j.name())
		}
		if i > 0 {
			r.write(sep)
		}
		if err := child.render(r); err != nil {
			return err
		}
	}
	r.write(")")
	return nil
}

func (j junction) name() string {
	if j.or {
		return "disjunction"
	}
	return "conjunction"
}

func (n negation) render(r *renderer) error {
	if n.child == nil {
		return sqlerr.Newf(sqlerr.KindValidation, "predicate", "NOT without a child")
	}
	r.write("NOT (")
	if err := n.child.render(r); err != nil {
		return err
	}
	r.write(")")
	return nil
}
