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

// Package result exposes a database cursor as a single-pass sequence of rows
// with case-insensitive column access and values normalized by column type.
//
//	rows, err := scope.Query(ctx, stmt)
//	defer rows.Close()
//	for rows.Next() {
//		name, err := rows.Row().String("name")
//	}
//	err = rows.Err()
package result

import (
	"database/sql"
	"errors"
	"strings"

	"golang.org/x/text/cases"

	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// ErrClosed is returned when a closed result set is used.
var ErrClosed = errors.New("result set is closed")

// ErrorFunc turns a driver error into the caller's error, typically a
// classifier bound to the transaction that owns the cursor.
type ErrorFunc func(op string, err error) error

// Rows is a lazy, forward-only result set. It is not safe for concurrent use.
type Rows struct {
	rows   *sql.Rows
	d      dialect.Dialect
	onErr  ErrorFunc
	header *header

	row       *Row
	err       error
	exhausted bool
	closed    bool
}

// New wraps a cursor. onErr may be nil, in which case driver errors are
// returned as they are.
func New(rows *sql.Rows, d dialect.Dialect, onErr ErrorFunc) *Rows {
	if onErr == nil {
		onErr = func(_ string, err error) error { return err }
	}
	return &Rows{rows: rows, d: d, onErr: onErr}
}

// header is the cursor's column schema, read once.
type header struct {
	names []string
	types []dialect.Type
	index map[string]int
}

func foldName(name string) string { return cases.Fold().String(name) }

func (h *header) lookup(name string) (int, bool) {
	i, ok := h.index[foldName(name)]
	return i, ok
}

func (r *Rows) load() error {
	if r.header != nil {
		return nil
	}
	if r.closed {
		return ErrClosed
	}
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return r.fail("columns", err)
	}
	h := &header{
		names: make([]string, len(types)),
		types: make([]dialect.Type, len(types)),
		index: make(map[string]int, len(types)),
	}
	for i, ct := range types {
		h.names[i] = ct.Name()
		h.types[i] = r.d.ParseType(ct.DatabaseTypeName())
		key := foldName(ct.Name())
		// the first of duplicate names wins, as in most SQL clients
		if _, dup := h.index[key]; !dup {
			h.index[key] = i
		}
	}
	r.header = h
	return nil
}

func (r *Rows) fail(op string, err error) error {
	if r.err == nil {
		r.err = r.onErr(op, err)
	}
	return r.err
}

// Columns returns the column names in cursor order.
func (r *Rows) Columns() ([]string, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	return append([]string(nil), r.header.names...), nil
}

// Require fails with a Not-Found error unless every named column is present.
func (r *Rows) Require(columns ...string) error {
	if err := r.load(); err != nil {
		return err
	}
	var missing []string
	for _, c := range columns {
		if _, ok := r.header.lookup(c); !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return sqlerr.Newf(sqlerr.KindNotFound, "result", "unknown column(s) %s (have %s)",
			strings.Join(missing, ", "), strings.Join(r.header.names, ", "))
	}
	return nil
}

// Next advances to the next row. It returns false at the end of the result,
// on error, or once the set is closed; Err tells which.
func (r *Rows) Next() bool {
	if r.exhausted || r.err != nil {
		return false
	}
	if r.closed {
		r.err = ErrClosed
		return false
	}
	if err := r.load(); err != nil {
		return false
	}
	if !r.rows.Next() {
		err := r.rows.Err()
		r.exhausted = true
		r.row = nil
		_ = r.rows.Close()
		if err != nil {
			// the cursor is closed before onErr may roll the transaction back
			r.fail("next", err)
		}
		return false
	}

	raw := make([]any, len(r.header.names))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		r.row = nil
		_ = r.rows.Close()
		r.fail("scan", err)
		return false
	}
	for i, v := range raw {
		raw[i] = normalize(v, r.header.types[i])
	}
	r.row = &Row{header: r.header, values: raw}
	return true
}

// Row returns the current row, or nil before the first Next and after the last.
func (r *Rows) Row() *Row { return r.row }

// Err returns the error that ended iteration, if any.
func (r *Rows) Err() error { return r.err }

// Close releases the cursor. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.row = nil
	if err := r.rows.Close(); err != nil {
		return r.onErr("close", err)
	}
	return nil
}

// Collect reads every remaining row and closes the set.
func Collect(r *Rows) ([]*Row, error) {
	defer r.Close()
	var out []*Row
	for r.Next() {
		out = append(out, r.Row())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Single reads exactly one row and closes the set. No row is a Not-Found
// error; more than one row is a Validation error.
func Single(r *Rows) (*Row, error) {
	defer r.Close()
	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, sqlerr.Newf(sqlerr.KindNotFound, "result", "no rows")
	}
	row := r.Row()
	if r.Next() {
		return nil, sqlerr.Newf(sqlerr.KindValidation, "result", "more than one row")
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return row, nil
}
