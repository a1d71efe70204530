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

// Package tx implements transaction scopes: one borrowed connection bounded
// by exactly one outcome, commit or rollback.
//
// A scope is owned by a single goroutine from Begin to its terminal state.
// Its connection goes back to the provider exactly once, on whichever of
// Commit, Rollback or an automatic rollback ends it first. Run wraps the
// usual begin / work / commit sequence:
//
//	err := tx.Run(ctx, provider, nil, func(s *tx.Scope) error {
//		stmt, err := s.Builder().Insert("users", query.Values(row), "id")
//		if err != nil {
//			return err
//		}
//		_, err = s.Insert(ctx, stmt)
//		return err
//	})
package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/dbkit/pkg/bind"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/pool"
	"github.com/teradata-labs/dbkit/pkg/query"
	"github.com/teradata-labs/dbkit/pkg/result"
	"github.com/teradata-labs/dbkit/pkg/schema"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// ErrTxDone is returned by operations on a scope that already committed or
// rolled back.
var ErrTxDone = errors.New("transaction already committed or rolled back")

// State is the lifecycle state of a scope.
type State int32

const (
	StateActive State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Options configures Begin. The zero value uses the backend's default
// isolation level and the provider's acquire timeout.
type Options struct {
	// Isolation is passed to the driver unmodified.
	Isolation sql.IsolationLevel
	ReadOnly  bool
	// AcquireTimeout overrides pool.acquire_timeout for this scope.
	AcquireTimeout time.Duration
	// Inspector shares column metadata between scopes. When nil each scope
	// introspects on its own.
	Inspector *schema.Inspector
}

// Scope is an active or finished transaction on one pooled connection.
type Scope struct {
	id         uuid.UUID
	conn       *pool.Conn
	tx         *sql.Tx
	dialect    dialect.Dialect
	builder    query.Builder
	binder     bind.Binder
	inspector  *schema.Inspector
	classifier *sqlerr.Classifier
	logger     *zap.Logger
	started    time.Time

	mu    sync.Mutex
	state State
	lost  bool // a connection failure was observed
}

// Begin acquires a connection from p and starts a transaction on it. The
// driver rolls the transaction back on its own if ctx is cancelled before
// the scope ends.
func Begin(ctx context.Context, p *pool.Provider, opts *Options) (*Scope, error) {
	if opts == nil {
		opts = &Options{}
	}

	conn, err := p.Acquire(ctx, opts.AcquireTimeout)
	if err != nil {
		return nil, err
	}
	sqlTx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly})
	if err != nil {
		conn.Release(!sqlerr.IsConnectionFailure(err))
		return nil, err
	}

	d := p.Dialect()
	s := &Scope{
		id:         uuid.New(),
		conn:       conn,
		tx:         sqlTx,
		dialect:    d,
		builder:    query.NewBuilder(d),
		binder:     bind.New(d),
		inspector:  opts.Inspector,
		classifier: p.Classifier(),
		started:    time.Now(),
		state:      StateActive,
	}
	s.logger = p.Logger().With(zap.String("tx", s.id.String()), zap.String("conn", conn.ID()))
	if s.inspector == nil {
		s.inspector = schema.NewInspector(d, s.logger)
	}

	s.logger.Debug("transaction begun",
		zap.String("isolation", opts.Isolation.String()),
		zap.Bool("read_only", opts.ReadOnly))
	return s, nil
}

// Run begins a scope, calls fn and commits when fn returns nil. An error or
// panic from fn rolls the scope back; the error is returned and the panic
// re-raised after the connection is released. If fn ends the scope itself,
// Run only returns fn's result.
func Run(ctx context.Context, p *pool.Provider, opts *Options, fn func(s *Scope) error) error {
	s, err := Begin(ctx, p, opts)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = s.rollback("panic")
			panic(r)
		}
	}()

	if err := fn(s); err != nil {
		if rbErr := s.rollback("error"); rbErr != nil {
			s.logger.Warn("rollback after error failed", zap.Error(rbErr))
		}
		return err
	}
	if s.State() != StateActive {
		return nil
	}
	return s.Commit()
}

// ID identifies the scope in log events.
func (s *Scope) ID() string { return s.id.String() }

// State returns the current lifecycle state.
func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dialect returns the backend's descriptor.
func (s *Scope) Dialect() dialect.Dialect { return s.dialect }

// Builder returns a statement builder for the scope's dialect.
func (s *Scope) Builder() query.Builder { return s.builder }

// Table returns the column metadata of a table as seen by this scope. An
// unknown table is returned with no columns.
func (s *Scope) Table(ctx context.Context, name string) (*schema.Table, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	tbl, err := s.inspector.Table(ctx, s.tx, name)
	if err != nil && sqlerr.KindOf(err) != sqlerr.KindValidation {
		return nil, s.fail("introspect", err)
	}
	return tbl, err
}

// Exec runs an insert, update, delete or DDL statement and returns the
// number of affected rows.
func (s *Scope) Exec(ctx context.Context, stmt query.Statement) (int64, error) {
	args, err := s.bind(ctx, stmt)
	if err != nil {
		return 0, err
	}
	res, err := s.tx.ExecContext(ctx, stmt.SQL, args...)
	if err != nil {
		return 0, s.fail("exec", err)
	}
	if stmt.Kind == query.KindDDL {
		s.inspector.Invalidate(stmt.Table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.fail("exec", err)
	}
	return n, nil
}

// Query runs a select and returns its rows. The rows must be closed before
// the scope ends.
func (s *Scope) Query(ctx context.Context, stmt query.Statement) (*result.Rows, error) {
	args, err := s.bind(ctx, stmt)
	if err != nil {
		return nil, err
	}
	rows, err := s.tx.QueryContext(ctx, stmt.SQL, args...)
	if err != nil {
		return nil, s.fail("query", err)
	}
	return result.New(rows, s.dialect, s.fail), nil
}

// Insert runs a single-row insert and returns the generated key: read via
// RETURNING where the dialect has it, via the driver's last insert id
// otherwise. It returns 0 when no row was inserted or no key column was
// requested on a RETURNING dialect.
func (s *Scope) Insert(ctx context.Context, stmt query.Statement) (int64, error) {
	if stmt.Kind != query.KindInsert {
		return 0, sqlerr.Newf(sqlerr.KindValidation, "insert", "%s statement passed to Insert", stmt.Kind)
	}
	args, err := s.bind(ctx, stmt)
	if err != nil {
		return 0, err
	}

	if stmt.Returning != "" && s.dialect.SupportsReturning() {
		var key any
		err := s.tx.QueryRowContext(ctx, stmt.SQL, args...).Scan(&key)
		if errors.Is(err, sql.ErrNoRows) {
			// a conflict policy skipped the row
			return 0, nil
		}
		if err != nil {
			return 0, s.fail("insert", err)
		}
		return keyInt64(key)
	}

	res, err := s.tx.ExecContext(ctx, stmt.SQL, args...)
	if err != nil {
		return 0, s.fail("insert", err)
	}
	if s.dialect.SupportsReturning() {
		return 0, nil
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.fail("insert", err)
	}
	return id, nil
}

// ExecRaw runs SQL text the builder does not cover, typically DDL. args are
// bound without column checks. Cached column metadata is dropped afterwards.
func (s *Scope) ExecRaw(ctx context.Context, sqlText string, args ...any) (int64, error) {
	if err := s.checkActive(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(sqlText) == "" {
		return 0, sqlerr.Newf(sqlerr.KindValidation, "exec", "empty statement")
	}
	bound, err := s.binder.BindValues(args...)
	if err != nil {
		return 0, err
	}
	res, err := s.tx.ExecContext(ctx, sqlText, bound...)
	if err != nil {
		return 0, s.fail("exec", err)
	}
	s.inspector.InvalidateAll()
	// some drivers report no row count for DDL
	n, _ := res.RowsAffected()
	return n, nil
}

// Commit ends the scope. A failed commit leaves the scope rolled back and
// returns the classified error; committing a finished scope returns
// ErrTxDone.
func (s *Scope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrTxDone
	}

	if err := s.tx.Commit(); err != nil {
		err = s.classifier.Classify("commit", err)
		// database/sql ends the transaction either way; the driver
		// connection may still be inside it, so it is not reused
		s.finishLocked(StateRolledBack, "commit failed", false)
		return err
	}
	s.finishLocked(StateCommitted, "", !s.lost)
	return nil
}

// Rollback ends the scope. It is safe to call at any time: on a finished
// scope it does nothing and returns nil. If the connection is already gone
// the scope still ends rolled back and a Connection-Lost error is returned.
func (s *Scope) Rollback() error {
	return s.rollback("explicit")
}

func (s *Scope) rollback(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil
	}

	err := s.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		// the driver already rolled back, e.g. after ctx was cancelled
		err = nil
	}
	if err != nil {
		err = s.classifier.Classify("rollback", err)
		if sqlerr.IsConnectionFailure(err) {
			s.lost = true
		}
	}
	s.finishLocked(StateRolledBack, reason, err == nil && !s.lost)
	return err
}

// finishLocked moves to a terminal state and hands the connection back.
// It runs once per scope because every caller checks for StateActive
// under s.mu first.
func (s *Scope) finishLocked(state State, reason string, healthy bool) {
	s.state = state
	s.conn.Release(healthy)

	fields := []zap.Field{zap.Duration("duration", time.Since(s.started)), zap.Bool("healthy", healthy)}
	if state == StateCommitted {
		s.logger.Debug("transaction committed", fields...)
		return
	}
	s.logger.Debug("transaction rolled back", append(fields, zap.String("reason", reason))...)
}

func (s *Scope) checkActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrTxDone
	}
	return nil
}

// fail classifies a backend error. Connection losses, constraint violations
// and unclassified errors roll the scope back before they are returned.
func (s *Scope) fail(op string, err error) error {
	err = s.classifier.Classify(op, err)
	switch sqlerr.KindOf(err) {
	case sqlerr.KindConnectionLost:
		s.mu.Lock()
		s.lost = true
		s.mu.Unlock()
		fallthrough
	case sqlerr.KindConstraintViolation, sqlerr.KindUnclassified:
		s.logger.Warn("rolling back after failure", zap.String("op", op), zap.Error(err))
		if rbErr := s.rollback("auto: " + sqlerr.KindOf(err).String()); rbErr != nil {
			s.logger.Warn("automatic rollback failed", zap.Error(rbErr))
		}
	}
	return err
}

// bind checks the scope and turns a statement's parameters into driver
// arguments. Errors found here never reach the backend and leave the scope
// active.
func (s *Scope) bind(ctx context.Context, stmt query.Statement) ([]any, error) {
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(stmt.SQL) == "" {
		return nil, sqlerr.Newf(sqlerr.KindValidation, "bind", "empty statement")
	}
	if k := stmt.Dialect().Kind(); k != s.dialect.Kind() {
		return nil, sqlerr.Newf(sqlerr.KindValidation, "bind", "statement rendered for %q, scope runs on %q", k, s.dialect.Kind())
	}

	cols, err := s.columns(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return s.binder.Bind(stmt.Params, cols)
}

func (s *Scope) columns(ctx context.Context, stmt query.Statement) (bind.Columns, error) {
	if stmt.Table == "" || stmt.Kind == query.KindDDL || len(stmt.Params) == 0 {
		return nil, nil
	}
	tbl, err := s.inspector.Table(ctx, s.tx, stmt.Table)
	if err != nil {
		return nil, s.fail("introspect", err)
	}
	if !tbl.Known() {
		return nil, nil
	}
	return tbl, nil
}

func keyInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case []byte:
		if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return n, nil
		}
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, sqlerr.New(sqlerr.KindTypeMismatch, "insert", fmt.Errorf("generated key %v (%T) is not an integer", v, v))
}
