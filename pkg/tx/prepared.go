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
package tx

import (
	"context"
	"database/sql"

	"github.com/teradata-labs/dbkit/pkg/bind"
	"github.com/teradata-labs/dbkit/pkg/query"
	"github.com/teradata-labs/dbkit/pkg/result"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Prepared is a statement prepared once on the scope's connection and
// executed any number of times with new values for its marks.
type Prepared struct {
	scope *Scope
	stmt  query.Statement
	cols  bind.Columns
	raw   *sql.Stmt
}

// Prepare prepares stmt, which may contain query.Mark placeholders. The
// prepared statement is closed when the scope ends.
func (s *Scope) Prepare(ctx context.Context, stmt query.Statement) (*Prepared, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	if k := stmt.Dialect().Kind(); k != s.dialect.Kind() {
		return nil, sqlerr.Newf(sqlerr.KindValidation, "prepare", "statement rendered for %q, scope runs on %q", k, s.dialect.Kind())
	}
	cols, err := s.columns(ctx, stmt)
	if err != nil {
		return nil, err
	}
	raw, err := s.tx.PrepareContext(ctx, stmt.SQL)
	if err != nil {
		return nil, s.fail("prepare", err)
	}
	return &Prepared{scope: s, stmt: stmt, cols: cols, raw: raw}, nil
}

// Statement returns the statement with its marks.
func (p *Prepared) Statement() query.Statement { return p.stmt }

func (p *Prepared) args(values []any) ([]any, error) {
	if err := p.scope.checkActive(); err != nil {
		return nil, err
	}
	applied, err := p.stmt.Apply(values...)
	if err != nil {
		return nil, err
	}
	return p.scope.binder.Bind(applied.Params, p.cols)
}

// Exec runs the statement with values for marks 1..n and returns the number
// of affected rows.
func (p *Prepared) Exec(ctx context.Context, values ...any) (int64, error) {
	args, err := p.args(values)
	if err != nil {
		return 0, err
	}
	res, err := p.raw.ExecContext(ctx, args...)
	if err != nil {
		return 0, p.scope.fail("exec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, p.scope.fail("exec", err)
	}
	return n, nil
}

// Query runs the statement with values for marks 1..n.
func (p *Prepared) Query(ctx context.Context, values ...any) (*result.Rows, error) {
	args, err := p.args(values)
	if err != nil {
		return nil, err
	}
	rows, err := p.raw.QueryContext(ctx, args...)
	if err != nil {
		return nil, p.scope.fail("query", err)
	}
	return result.New(rows, p.scope.dialect, p.scope.fail), nil
}

// Close releases the prepared statement early.
func (p *Prepared) Close() error {
	return p.raw.Close()
}
