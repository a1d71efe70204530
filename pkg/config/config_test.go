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
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

func TestWithDefaults(t *testing.T) {
	b := Backend{Driver: "sqlite3", Path: "/tmp/app.db"}.WithDefaults()
	assert.Equal(t, "sqlite", b.Driver)
	assert.Equal(t, "sqlite", b.Name)
	assert.Equal(t, ModeFileEmbedded, b.Mode)
	assert.Equal(t, DefaultMaxTotal, b.Pool.MaxTotal)
	assert.Equal(t, DefaultAcquireTimeout, b.Pool.AcquireTimeout)
	require.NoError(t, b.Validate())

	pg := Backend{Driver: "postgresql", Host: "db", User: "u", Password: "p"}.WithDefaults()
	assert.Equal(t, ModeClientServer, pg.Mode)
	assert.Equal(t, 5432, pg.Port)
	assert.Equal(t, PostgresDriverPgx, pg.PostgresDriver)
	require.NoError(t, pg.Validate())

	maria := Backend{Driver: "mariadb", Mode: ModeEmbeddedServer}.WithDefaults()
	assert.Equal(t, DefaultMariaDBImage, maria.Embedded.Image)
	require.NoError(t, maria.Validate())
}

func TestWithDefaults_DoesNotAliasParams(t *testing.T) {
	orig := Backend{Driver: "mysql", Params: map[string]string{"charset": "utf8mb4"}}
	b := orig.WithDefaults()
	b.Params["charset"] = "latin1"
	assert.Equal(t, "utf8mb4", orig.Params["charset"])
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		b    Backend
		want string
	}{
		{"unknown driver", Backend{Driver: "oracle"}, "unknown backend kind"},
		{"sqlite without path", Backend{Driver: "sqlite"}, "path is required"},
		{"sqlite client-server", Backend{Driver: "sqlite", Mode: ModeClientServer, Host: "h", User: "u", Password: "p"}, "no client-server mode"},
		{"missing host", Backend{Driver: "mysql", User: "u", Password: "p"}, "host is required"},
		{"malformed host", Backend{Driver: "mysql", Host: "db host", User: "u", Password: "p"}, "malformed host"},
		{"missing credentials", Backend{Driver: "postgres", Host: "db", User: "u"}, "password or keyring_service"},
		{"missing user", Backend{Driver: "postgres", Host: "db", Password: "p"}, "user is required"},
		{"bad port", Backend{Driver: "mysql", Host: "db", Port: 70000, User: "u", Password: "p"}, "out of range"},
		{"embedded mysql", Backend{Driver: "mysql", Mode: ModeEmbeddedServer}, "only available for mariadb"},
		{"bad pg driver", Backend{Driver: "postgres", Host: "db", User: "u", Password: "p", PostgresDriver: "odbc"}, "unknown postgres_driver"},
		{"min over max", Backend{Driver: "sqlite", Path: "x.db", Pool: Pool{MinIdle: 5, MaxTotal: 2}}, "exceeds pool.max_total"},
		{"shared pool on private memory", Backend{Driver: "sqlite", Path: ":memory:", Pool: Pool{MaxTotal: 4}}, "must be 1 for a private in-memory database"},
		{"negative timeout", Backend{Driver: "sqlite", Path: "x.db", Pool: Pool{AcquireTimeout: -time.Second}}, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.WithDefaults().Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, sqlerr.ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWithDefaults_PrivateMemory(t *testing.T) {
	mem := Backend{Driver: "sqlite", Path: ":memory:"}.WithDefaults()
	assert.True(t, mem.PrivateMemory())
	assert.Equal(t, 1, mem.Pool.MaxTotal)
	require.NoError(t, mem.Validate())

	shared := Backend{Driver: "sqlite", DSN: "file:app?mode=memory&cache=shared"}.WithDefaults()
	assert.False(t, shared.PrivateMemory())
	assert.Equal(t, DefaultMaxTotal, shared.Pool.MaxTotal)

	private := Backend{Driver: "sqlite", DSN: "file:app?mode=memory"}
	assert.True(t, private.PrivateMemory())
	assert.False(t, Backend{Driver: "sqlite", Path: "app.db"}.PrivateMemory())
	assert.False(t, Backend{Driver: "mysql", Path: ":memory:"}.PrivateMemory())
}

func TestValidate_DSNSkipsEndpoint(t *testing.T) {
	b := Backend{Driver: "postgres", DSN: "postgres://u:p@db/app"}.WithDefaults()
	assert.NoError(t, b.Validate())
}

func TestRedacted(t *testing.T) {
	b := Backend{Driver: "postgres", Password: "secret", DSN: "postgres://u:secret@db:5432/app"}
	r := b.Redacted()
	assert.Equal(t, "****", r.Password)
	assert.Equal(t, "postgres://u:****@db:5432/app", r.DSN)
	assert.Equal(t, "secret", b.Password)

	assert.Equal(t, "u:****@tcp(db:3306)/app", redactDSN("u:pw@tcp(db:3306)/app"))
	assert.Equal(t, "host=db password=**** user=u", redactDSN("host=db password=pw user=u"))
}

const sampleFile = `
apiVersion: dbkit/v1
kind: Backends
backends:
  - name: local
    driver: sqlite
    path: data/app.db
    pool:
      max_total: 4
      acquire_timeout: 250ms
  - name: reporting
    driver: postgres
    host: ${DBKIT_TEST_PGHOST}
    user: reporter
    keyring_service: dbkit-test
    params:
      sslmode: disable
      connect_timeout: 5
`

func TestLoadFile(t *testing.T) {
	t.Setenv("DBKIT_TEST_PGHOST", "pg.internal")

	dir := t.TempDir()
	path := filepath.Join(dir, "dbkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFile), 0o600))

	backends, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, backends, 2)

	local, err := Find(backends, "local")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "app.db"), local.Path)
	assert.Equal(t, 4, local.Pool.MaxTotal)
	assert.Equal(t, 250*time.Millisecond, local.Pool.AcquireTimeout)

	pg, err := Find(backends, "reporting")
	require.NoError(t, err)
	assert.Equal(t, "pg.internal", pg.Host)
	assert.Equal(t, 5432, pg.Port)
	assert.Equal(t, "5", pg.Params["connect_timeout"])

	_, err = Find(backends, "missing")
	assert.ErrorIs(t, err, sqlerr.ErrConfiguration)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := map[string]string{
		"wrong api version": "apiVersion: dbkit/v2\nbackends:\n  - driver: sqlite\n    path: a.db\n",
		"no backends":       "apiVersion: dbkit/v1\nbackends: []\n",
		"unknown field":     "apiVersion: dbkit/v1\nbackends:\n  - driver: sqlite\n    path: a.db\n    colour: blue\n",
		"bad duration":      "apiVersion: dbkit/v1\nbackends:\n  - driver: sqlite\n    path: a.db\n    pool:\n      acquire_timeout: 5\n",
		"bad driver":        "apiVersion: dbkit/v1\nbackends:\n  - driver: oracle\n",
		"not yaml":          "apiVersion: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(content)
			assert.ErrorIs(t, err, sqlerr.ErrConfiguration)
		})
	}
}

func TestParse_DuplicateNames(t *testing.T) {
	_, err := Parse("apiVersion: dbkit/v1\nbackends:\n  - {name: a, driver: sqlite, path: a.db}\n  - {name: a, driver: sqlite, path: b.db}\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate backend name")
}

func TestFind_SingleDefault(t *testing.T) {
	b, err := Find([]Backend{{Name: "only"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "only", b.Name)
}

func TestResolveCredentials(t *testing.T) {
	keyring.MockInit()

	b := Backend{Name: "reporting", Driver: "postgres", User: "reporter", KeyringService: "dbkit-test"}

	_, err := ResolveCredentials(b)
	assert.ErrorIs(t, err, sqlerr.ErrConfiguration)

	require.NoError(t, StoreCredentials(b, "s3cret"))
	resolved, err := ResolveCredentials(b)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", resolved.Password)
	assert.Empty(t, b.Password, "input must not be modified")

	// explicit passwords win over the keyring
	b.Password = "explicit"
	resolved, err = ResolveCredentials(b)
	require.NoError(t, err)
	assert.Equal(t, "explicit", resolved.Password)

	err = StoreCredentials(Backend{Name: "x"}, "pw")
	assert.ErrorIs(t, err, sqlerr.ErrConfiguration)
}
