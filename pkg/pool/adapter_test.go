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
package pool

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/dbkit/internal/sqlitedriver"
	"github.com/teradata-labs/dbkit/pkg/config"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

func TestSQLiteDSN(t *testing.T) {
	dsn, err := SQLiteDSN(config.Backend{Path: "/data/app.db"})
	require.NoError(t, err)
	assert.Equal(t, "/data/app.db", dsn)

	dsn, err = SQLiteDSN(config.Backend{Path: "/data/app.db", Params: map[string]string{"_journal_mode": "WAL", "cache": "shared"}})
	require.NoError(t, err)
	assert.Equal(t, "/data/app.db?_journal_mode=WAL&cache=shared", dsn)

	dsn, err = SQLiteDSN(config.Backend{DSN: "file:x.db?mode=ro", Path: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "file:x.db?mode=ro", dsn)
}

func TestSQLiteDSN_EncryptionKey(t *testing.T) {
	dsn, err := SQLiteDSN(config.Backend{Path: "/data/app.db", EncryptionKey: "k 1"})
	if !sqlitedriver.EncryptionSupported {
		assert.Error(t, err)
		return
	}
	require.NoError(t, err)
	assert.Equal(t, "/data/app.db?_pragma_key=k+1", dsn)
}

func TestMySQLConfig_FromFields(t *testing.T) {
	mc, err := MySQLConfig(config.Backend{
		Host:     "db.internal",
		Port:     3307,
		User:     "app",
		Password: "p@ss",
		Database: "shop",
		Params:   map[string]string{"timeout": "5s", "wait_timeout": "600"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tcp", mc.Net)
	assert.Equal(t, "db.internal:3307", mc.Addr)
	assert.Equal(t, "app", mc.User)
	assert.Equal(t, "p@ss", mc.Passwd)
	assert.Equal(t, "shop", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, 5*time.Second, mc.Timeout)
	assert.Equal(t, "600", mc.Params["wait_timeout"])
}

func TestMySQLConfig_FromDSN(t *testing.T) {
	mc, err := MySQLConfig(config.Backend{DSN: "root:secret@tcp(127.0.0.1:3306)/test"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3306", mc.Addr)
	assert.True(t, mc.ParseTime, "parseTime is always enabled")

	_, err = MySQLConfig(config.Backend{DSN: "not a dsn"})
	assert.Error(t, err)
}

func TestRegisterAdapter_NewKind(t *testing.T) {
	const kind dialect.Kind = "memdb"
	called := false
	RegisterAdapter(kind, AdapterFunc(func(cfg config.Backend) (*sql.DB, error) {
		called = true
		return sql.Open(sqlitedriver.DriverName, ":memory:")
	}))
	t.Cleanup(func() {
		adaptersMu.Lock()
		delete(adapters, kind)
		adaptersMu.Unlock()
	})

	a, err := adapterFor(kind)
	require.NoError(t, err)
	db, err := a.Open(config.Backend{})
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, called)

	_, err = adapterFor("nope")
	assert.ErrorIs(t, err, sqlerr.ErrConfiguration)
}
