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
package sqlerr

import (
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/teradata-labs/dbkit/internal/sqlitedriver"
)

// Backend names match dialect kinds.
const (
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendMariaDB  = "mariadb"
	BackendPostgres = "postgres"
)

// SQLite primary result codes, see https://www.sqlite.org/rescode.html.
var sqliteTable = Table{
	{Kind: KindConstraintViolation, Codes: []string{"19"}, Messages: []string{"constraint failed"}},
	{Kind: KindTypeMismatch, Codes: []string{"20"}, Messages: []string{"datatype mismatch"}},
	{Kind: KindNotFound, Messages: []string{"no such table", "no such column"}},
	{Kind: KindConfiguration, Codes: []string{"14", "26"}, Messages: []string{"file is not a database", "unable to open database"}},
	{Kind: KindConnectionLost, Codes: []string{"10"}, Messages: []string{"sql: database is closed"}},
}

// MySQL and MariaDB share server error numbers for everything dbkit cares about.
var mysqlTable = Table{
	// duplicate entry, foreign keys, not null, check constraints
	{Kind: KindConstraintViolation, Codes: []string{"1062", "1169", "1216", "1217", "1451", "1452", "1048", "1557", "3819", "4025"}},
	// incorrect value, out of range, truncated
	{Kind: KindTypeMismatch, Codes: []string{"1264", "1292", "1366", "1367", "3140"}},
	// unknown table, column, database
	{Kind: KindNotFound, Codes: []string{"1146", "1054", "1049", "1109"}},
	// server gone, lost connection, shutdown, killed
	{Kind: KindConnectionLost, Codes: []string{"2006", "2013", "1053", "1927", "1152", "1158", "1159"}, Messages: []string{"invalid connection", "bad connection"}},
	// access denied
	{Kind: KindConfiguration, Codes: []string{"1044", "1045", "1698"}},
}

// PostgreSQL SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html.
var postgresTable = Table{
	{Kind: KindConstraintViolation, Prefixes: []string{"23"}},
	{Kind: KindTypeMismatch, Codes: []string{"22P02", "42804", "22003", "22007", "22008", "22018"}},
	{Kind: KindNotFound, Codes: []string{"42P01", "42703", "3D000", "3F000"}},
	{Kind: KindConnectionLost, Prefixes: []string{"08"}, Codes: []string{"57P01", "57P02", "57P03"}, Messages: []string{"conn closed", "connection reset"}},
	{Kind: KindConfiguration, Prefixes: []string{"28"}},
}

func init() {
	RegisterTable(BackendSQLite, sqliteTable, sqliteCode)
	RegisterTable(BackendMySQL, mysqlTable, mysqlCode)
	RegisterTable(BackendMariaDB, mysqlTable, mysqlCode)
	RegisterTable(BackendPostgres, postgresTable, postgresCode)
}

func sqliteCode(err error) (string, bool) {
	code, ok := sqlitedriver.ErrorCode(err)
	if !ok {
		return "", false
	}
	return strconv.Itoa(sqlitedriver.PrimaryCode(code)), true
}

func mysqlCode(err error) (string, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return strconv.Itoa(int(me.Number)), true
	}
	return "", false
}

// postgresCode understands both supported drivers: pgx and lib/pq.
func postgresCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}
