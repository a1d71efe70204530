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
package dialect

// The bundled SQLite of go-sqlcipher predates RETURNING (3.35), so sqlite
// falls back to LastInsertId like mysql.
var sqliteSpec = Spec{
	Kind:         KindSQLite,
	Quote:        '"',
	Placeholders: PlaceholderQuestion,
	Returning:    false,
	Types: map[Type]string{
		TypeText:      "TEXT",
		TypeInteger:   "INTEGER",
		TypeFloat:     "REAL",
		TypeBoolean:   "BOOLEAN",
		TypeTimestamp: "DATETIME",
		TypeBlob:      "BLOB",
	},
	AutoIncrement: "INTEGER PRIMARY KEY AUTOINCREMENT",
	InsertVerbs: map[Conflict]string{
		ConflictError:   "INSERT INTO",
		ConflictIgnore:  "INSERT OR IGNORE INTO",
		ConflictReplace: "INSERT OR REPLACE INTO",
	},
	UpdateIgnore: "UPDATE OR IGNORE",
	OffsetOnly:   "LIMIT -1",
	BoolAsInt:    true,
	SessionInit: []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	},
	Introspection: IntrospectPragma,
	ColumnsSQL:    `SELECT name, type, "notnull" = 0, pk > 0 FROM pragma_table_info(?) ORDER BY cid`,
}

var mysqlSpec = Spec{
	Kind:         KindMySQL,
	Quote:        '`',
	Placeholders: PlaceholderQuestion,
	Returning:    false,
	Types: map[Type]string{
		TypeText:      "VARCHAR(255)",
		TypeInteger:   "BIGINT",
		TypeFloat:     "DOUBLE",
		TypeBoolean:   "BOOLEAN",
		TypeTimestamp: "DATETIME(6)",
		TypeBlob:      "LONGBLOB",
	},
	AutoIncrement: "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY",
	InsertVerbs: map[Conflict]string{
		ConflictError:   "INSERT INTO",
		ConflictIgnore:  "INSERT IGNORE INTO",
		ConflictReplace: "REPLACE INTO",
	},
	UpdateIgnore: "UPDATE IGNORE",
	OffsetOnly:   "LIMIT 18446744073709551615",
	SessionInit: []string{
		"SET SESSION sql_mode = 'STRICT_ALL_TABLES,NO_ENGINE_SUBSTITUTION'",
	},
	Introspection: IntrospectInformationSchema,
	ColumnsSQL: "SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE = 'YES', COLUMN_KEY = 'PRI' " +
		"FROM information_schema.COLUMNS " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION",
}

var postgresSpec = Spec{
	Kind:         KindPostgres,
	Quote:        '"',
	Placeholders: PlaceholderDollar,
	Returning:    true,
	Types: map[Type]string{
		TypeText:      "TEXT",
		TypeInteger:   "BIGINT",
		TypeFloat:     "DOUBLE PRECISION",
		TypeBoolean:   "BOOLEAN",
		TypeTimestamp: "TIMESTAMPTZ",
		TypeBlob:      "BYTEA",
	},
	AutoIncrement: "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY",
	InsertVerbs: map[Conflict]string{
		ConflictError:  "INSERT INTO",
		ConflictIgnore: "INSERT INTO",
	},
	InsertSuffix: map[Conflict]string{
		ConflictIgnore: " ON CONFLICT DO NOTHING",
	},
	Introspection: IntrospectInformationSchema,
	ColumnsSQL: "SELECT c.column_name, c.data_type, c.is_nullable = 'YES', EXISTS (" +
		"SELECT 1 FROM information_schema.table_constraints tc " +
		"JOIN information_schema.key_column_usage k " +
		"ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema " +
		"WHERE tc.constraint_type = 'PRIMARY KEY' AND k.table_schema = c.table_schema " +
		"AND k.table_name = c.table_name AND k.column_name = c.column_name) " +
		"FROM information_schema.columns c " +
		"WHERE c.table_schema = current_schema() AND c.table_name = $1 ORDER BY c.ordinal_position",
}

func init() {
	Register(New(sqliteSpec))
	Register(New(mysqlSpec))

	// MariaDB speaks the MySQL dialect and has INSERT ... RETURNING since 10.5.
	maria := mysqlSpec
	maria.Kind = KindMariaDB
	maria.Returning = true
	Register(New(maria))

	Register(New(postgresSpec))
}

// SQLite returns the built-in sqlite descriptor.
func SQLite() Dialect { return mustFor(KindSQLite) }

// MySQL returns the built-in mysql descriptor.
func MySQL() Dialect { return mustFor(KindMySQL) }

// MariaDB returns the built-in mariadb descriptor.
func MariaDB() Dialect { return mustFor(KindMariaDB) }

// Postgres returns the built-in postgres descriptor.
func Postgres() Dialect { return mustFor(KindPostgres) }

func mustFor(kind Kind) Dialect {
	d, err := For(kind)
	if err != nil {
		panic(err)
	}
	return d
}
