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
package pgxdriver

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/teradata-labs/dbkit/pkg/config"
)

// SchemaParam is the backend param selecting the search_path of new sessions.
const SchemaParam = "schema"

// Open returns a database handle for a postgres backend using the driver
// selected by PostgresDriver (pgx unless "pq").
func Open(b config.Backend) (*sql.DB, error) {
	if b.PostgresDriver == config.PostgresDriverPQ {
		return OpenPQ(b)
	}
	return OpenPgx(b)
}

// OpenPgx opens a handle through pgx's database/sql adapter. If the "schema"
// param is set, every new session runs SET search_path.
func OpenPgx(b config.Backend) (*sql.DB, error) {
	dsn, err := BuildDSN(b, false)
	if err != nil {
		return nil, err
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	var opts []stdlib.OptionOpenDB
	if schema := b.Params[SchemaParam]; schema != "" {
		opts = append(opts, stdlib.OptionAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}))
	}
	return stdlib.OpenDB(*connCfg, opts...), nil
}

// OpenPQ opens a handle through lib/pq. The schema param is sent as the
// search_path startup parameter.
func OpenPQ(b config.Backend) (*sql.DB, error) {
	dsn, err := BuildDSN(b, true)
	if err != nil {
		return nil, err
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// BuildDSN constructs a PostgreSQL connection string from a backend.
// Values are single-quoted per libpq keyword/value format to handle special
// characters (spaces, @, =, etc.) safely. See:
// https://www.postgresql.org/docs/current/libpq-connect.html#LIBPQ-CONNSTRING
//
// An explicit DSN is returned unchanged. With schemaAsParam the schema param
// becomes search_path; otherwise it is left to the AfterConnect hook.
func BuildDSN(b config.Backend, schemaAsParam bool) (string, error) {
	if b.DSN != "" {
		return b.DSN, nil
	}
	if b.Host == "" {
		return "", fmt.Errorf("postgres configuration requires either dsn or host")
	}

	port := b.Port
	if port == 0 {
		port = 5432
	}

	// sslmode is left to the driver default unless set in params
	params := make(map[string]string, len(b.Params))
	for k, v := range b.Params {
		params[k] = v
	}
	if schema, ok := params[SchemaParam]; ok {
		delete(params, SchemaParam)
		if schemaAsParam && schema != "" {
			params["search_path"] = schema
		}
	}

	parts := []string{
		"host=" + dsnQuoteValue(b.Host),
		fmt.Sprintf("port=%d", port),
	}
	if b.Database != "" {
		parts = append(parts, "dbname="+dsnQuoteValue(b.Database))
	}
	if b.User != "" {
		parts = append(parts, "user="+dsnQuoteValue(b.User))
	}
	if b.Password != "" {
		parts = append(parts, "password="+dsnQuoteValue(b.Password))
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+dsnQuoteValue(params[k]))
	}
	return strings.Join(parts, " "), nil
}

// dsnQuoteValue quotes a value for use in a libpq keyword/value connection string.
// Within quoted values, single quotes and backslashes are escaped with a
// backslash. All values are quoted.
func dsnQuoteValue(val string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(val)
	return "'" + escaped + "'"
}
