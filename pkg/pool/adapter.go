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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"

	"github.com/teradata-labs/dbkit/internal/pgxdriver"
	"github.com/teradata-labs/dbkit/internal/sqlitedriver"
	"github.com/teradata-labs/dbkit/pkg/config"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Adapter turns a backend configuration into a database handle. It is the
// only place that knows a driver's DSN format. The provider uses the handle
// as a factory of physical connections and does all pooling itself.
type Adapter interface {
	Open(cfg config.Backend) (*sql.DB, error)
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(cfg config.Backend) (*sql.DB, error)

// Open calls f.
func (f AdapterFunc) Open(cfg config.Backend) (*sql.DB, error) { return f(cfg) }

var (
	adaptersMu sync.RWMutex
	adapters   = map[dialect.Kind]Adapter{
		dialect.KindSQLite:   AdapterFunc(openSQLite),
		dialect.KindMySQL:    AdapterFunc(openMySQL),
		dialect.KindMariaDB:  AdapterFunc(openMySQL),
		dialect.KindPostgres: AdapterFunc(pgxdriver.Open),
	}
)

// RegisterAdapter adds or replaces the adapter for a dialect kind. Together
// with dialect.Register and sqlerr.RegisterTable it is all a new backend needs.
func RegisterAdapter(kind dialect.Kind, a Adapter) {
	adaptersMu.Lock()
	defer adaptersMu.Unlock()
	adapters[kind] = a
}

func adapterFor(kind dialect.Kind) (Adapter, error) {
	adaptersMu.RLock()
	defer adaptersMu.RUnlock()
	a, ok := adapters[kind]
	if !ok {
		return nil, sqlerr.Newf(sqlerr.KindConfiguration, "open", "no provider adapter registered for %q", kind)
	}
	return a, nil
}

// openSQLite opens a file database through the driver registered by
// internal/sqlitedriver. Params become DSN query parameters.
func openSQLite(cfg config.Backend) (*sql.DB, error) {
	dsn, err := SQLiteDSN(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" && !isMemoryPath(cfg.Path) {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return sql.Open(sqlitedriver.DriverName, dsn)
}

// SQLiteDSN renders the sqlite data source name for a backend.
func SQLiteDSN(cfg config.Backend) (string, error) {
	if cfg.EncryptionKey != "" && !sqlitedriver.EncryptionSupported {
		return "", fmt.Errorf("encryption_key requires a cgo build (SQLCipher)")
	}
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	params := url.Values{}
	for k, v := range cfg.Params {
		params.Set(k, v)
	}
	if cfg.EncryptionKey != "" {
		params.Set("_pragma_key", cfg.EncryptionKey)
	}
	if len(params) == 0 {
		return cfg.Path, nil
	}
	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	return cfg.Path + sep + params.Encode(), nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file:")
}

// openMySQL serves mysql and mariadb. ParseTime is forced so DATETIME columns
// scan as time.Time.
func openMySQL(cfg config.Backend) (*sql.DB, error) {
	mc, err := MySQLConfig(cfg)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("failed to build mysql connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// MySQLConfig builds the driver configuration for a mysql or mariadb backend.
func MySQLConfig(cfg config.Backend) (*mysql.Config, error) {
	var mc *mysql.Config
	if cfg.DSN != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mysql DSN: %w", err)
		}
		mc = parsed
	} else {
		base := mysql.NewConfig()
		base.User = cfg.User
		base.Passwd = cfg.Password
		base.Net = "tcp"
		base.Addr = cfg.Address()
		base.DBName = cfg.Database

		// round-trip params through the DSN parser so driver options such as
		// charset or timeout are recognised and the rest become session vars
		dsn := base.FormatDSN()
		if len(cfg.Params) > 0 {
			keys := make([]string, 0, len(cfg.Params))
			for k := range cfg.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			q := make([]string, 0, len(keys))
			for _, k := range keys {
				q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(cfg.Params[k]))
			}
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + strings.Join(q, "&")
		}
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql params: %w", err)
		}
		mc = parsed
	}
	mc.ParseTime = true
	return mc, nil
}
