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
package dbkit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teradata-labs/dbkit/pkg/config"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/query"
	"github.com/teradata-labs/dbkit/pkg/result"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
	"github.com/teradata-labs/dbkit/pkg/tx"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), config.Backend{
		Name:   "app",
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "app.db"),
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createUsers(t *testing.T, db *DB) {
	t.Helper()
	stmt, err := db.Builder().CreateTable(query.TableSpec{
		Name: "users",
		Columns: []query.ColumnSpec{
			{Name: "id", AutoIncrement: true},
			{Name: "name", Type: dialect.TypeText, NotNull: true},
			{Name: "age", Type: dialect.TypeInteger},
		},
	})
	require.NoError(t, err)
	require.NoError(t, db.Transact(context.Background(), func(s *tx.Scope) error {
		_, err := s.Exec(context.Background(), stmt)
		return err
	}))
}

func TestOpen_SQLite(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	assert.Equal(t, dialect.KindSQLite, db.Dialect().Kind())
	assert.Equal(t, dialect.KindSQLite, db.Builder().Dialect().Kind())
	require.NoError(t, db.Ping(ctx))
	createUsers(t, db)

	err := db.Transact(ctx, func(s *tx.Scope) error {
		stmt, err := s.Builder().Insert("users", query.Values(map[string]any{"name": "Ada", "age": 36}), "id")
		if err != nil {
			return err
		}
		_, err = s.Insert(ctx, stmt)
		return err
	})
	require.NoError(t, err)

	stmt, err := db.Builder().Select("users", []string{"name"}, query.Eq("age", 36))
	require.NoError(t, err)
	err = db.Transact(ctx, func(s *tx.Scope) error {
		rows, err := s.Query(ctx, stmt)
		if err != nil {
			return err
		}
		row, err := result.Single(rows)
		if err != nil {
			return err
		}
		name, err := row.String("name")
		assert.Equal(t, "Ada", name)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 0, db.Provider().Stats().InUse)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), config.Backend{Driver: "mysql"})
	assert.ErrorIs(t, err, sqlerr.ErrConfiguration)

	_, err = Open(context.Background(), config.Backend{Driver: "db2"})
	assert.ErrorIs(t, err, sqlerr.ErrConfiguration)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dbkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`apiVersion: dbkit/v1
backends:
  - name: local
    driver: sqlite
    path: local.db
`), 0o600))

	db, err := OpenFile(context.Background(), path, "local", WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.Close())
	assert.FileExists(t, filepath.Join(dir, "local.db"), "relative paths resolve against the config file")

	_, err = OpenFile(context.Background(), path, "other")
	assert.ErrorIs(t, err, sqlerr.ErrConfiguration)
}

func TestScopesShareInspector(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	createUsers(t, db)

	tbl, err := db.Table(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "age"}, tbl.Names())

	s, err := db.Begin(ctx, &tx.Options{})
	require.NoError(t, err)
	defer func() { _ = s.Rollback() }()
	again, err := s.Table(ctx, "users")
	require.NoError(t, err)
	assert.Same(t, tbl, again, "metadata read by one scope is reused by the next")
}

func TestTransact_RollsBackOnError(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	createUsers(t, db)
	boom := errors.New("boom")

	err := db.Transact(ctx, func(s *tx.Scope) error {
		stmt, err := s.Builder().Insert("users", query.Values(map[string]any{"name": "Ada"}), "")
		if err != nil {
			return err
		}
		if _, err := s.Exec(ctx, stmt); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stmt, err := db.Builder().Select("users", nil, nil)
	require.NoError(t, err)
	err = db.Transact(ctx, func(s *tx.Scope) error {
		rows, err := s.Query(ctx, stmt)
		if err != nil {
			return err
		}
		all, err := result.Collect(rows)
		assert.Empty(t, all)
		return err
	})
	require.NoError(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Begin(context.Background(), nil)
	assert.ErrorIs(t, err, sqlerr.ErrConnectionLost)
}
