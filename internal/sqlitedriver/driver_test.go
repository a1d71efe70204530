package sqlitedriver

import (
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverRegistered(t *testing.T) {
	assert.True(t, slices.Contains(sql.Drivers(), DriverName), "sqlite3 driver should be registered")
}

func TestBasicCRUD(t *testing.T) {
	db, err := sql.Open(DriverName, filepath.Join(t.TempDir(), "crud.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO test (name) VALUES (?)", "hello")
	require.NoError(t, err)

	var name string
	err = db.QueryRow("SELECT name FROM test WHERE id = 1").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "hello", name)
}

func TestErrorCode_Constraint(t *testing.T) {
	db, err := sql.Open(DriverName, filepath.Join(t.TempDir(), "codes.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE uniq (name TEXT UNIQUE)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO uniq (name) VALUES (?)", "a")
	require.NoError(t, err)

	_, err = db.Exec("INSERT INTO uniq (name) VALUES (?)", "a")
	require.Error(t, err)

	code, ok := ErrorCode(err)
	require.True(t, ok, "driver error should carry a result code")
	assert.Equal(t, 19, PrimaryCode(code), "SQLITE_CONSTRAINT")
}

func TestErrorCode_ForeignError(t *testing.T) {
	_, ok := ErrorCode(errors.New("not a sqlite error"))
	assert.False(t, ok)

	_, ok = ErrorCode(nil)
	assert.False(t, ok)
}

func TestPrimaryCode(t *testing.T) {
	assert.Equal(t, 19, PrimaryCode(2067)) // SQLITE_CONSTRAINT_UNIQUE
	assert.Equal(t, 5, PrimaryCode(5))
}
