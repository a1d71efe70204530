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
package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/dbkit/pkg/bind"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

func values(stmt Statement) []any {
	out := make([]any, len(stmt.Params))
	for i, p := range stmt.Params {
		out[i] = p.Value.V
	}
	return out
}

func TestSelect_PerDialect(t *testing.T) {
	tests := []struct {
		d    dialect.Dialect
		want string
	}{
		{dialect.SQLite(), `SELECT "name" FROM "users" WHERE "age" = ?`},
		{dialect.MySQL(), "SELECT `name` FROM `users` WHERE `age` = ?"},
		{dialect.MariaDB(), "SELECT `name` FROM `users` WHERE `age` = ?"},
		{dialect.Postgres(), `SELECT "name" FROM "users" WHERE "age" = $1`},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			stmt, err := NewBuilder(tt.d).Select("users", []string{"name"}, Eq("age", 36))
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
			assert.Equal(t, KindSelect, stmt.Kind)
			assert.Equal(t, "users", stmt.Table)
			require.Len(t, stmt.Params, 1)
			assert.Equal(t, bind.Param{Column: "age", Value: bind.Value{Type: dialect.TypeInteger, V: int64(36)}}, stmt.Params[0])
		})
	}
}

func TestBuildSelect_Full(t *testing.T) {
	stmt, err := NewBuilder(dialect.Postgres()).BuildSelect(SelectSpec{
		Table:   "users",
		Columns: []string{"users.name", "orders.total"},
		Joins:   []Join{LeftJoin("orders", "orders.user_id", "users.id")},
		Where: And(
			Gt("orders.total", 10),
			Or(IsNull("users.deleted"), Eq("users.active", true)),
		),
		OrderBy: []Order{Desc("orders.total"), Asc("users.name")},
		Limit:   5,
		Offset:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "users"."name", "orders"."total" FROM "users" `+
		`LEFT JOIN "orders" ON "orders"."user_id" = "users"."id" `+
		`WHERE ("orders"."total" > $1 AND ("users"."deleted" IS NULL OR "users"."active" = $2)) `+
		`ORDER BY "orders"."total" DESC, "users"."name" LIMIT 5 OFFSET 10`, stmt.SQL)
	assert.Equal(t, []any{int64(10), true}, values(stmt))
}

func TestBuildSelect_GroupByAndWildcard(t *testing.T) {
	stmt, err := NewBuilder(dialect.SQLite()).BuildSelect(SelectSpec{
		Table:   "orders",
		Columns: []string{"user_id"},
		GroupBy: []string{"user_id"},
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT "user_id" FROM "orders" GROUP BY "user_id"`, stmt.SQL)

	stmt, err = NewBuilder(dialect.SQLite()).Select("orders", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "orders"`, stmt.SQL)
	assert.Empty(t, stmt.Params)
}

func TestBuildSelect_OffsetWithoutLimit(t *testing.T) {
	tests := []struct {
		d    dialect.Dialect
		want string
	}{
		{dialect.SQLite(), `SELECT * FROM "t" LIMIT -1 OFFSET 3`},
		{dialect.MySQL(), "SELECT * FROM `t` LIMIT 18446744073709551615 OFFSET 3"},
		{dialect.Postgres(), `SELECT * FROM "t" OFFSET 3`},
	}
	for _, tt := range tests {
		stmt, err := NewBuilder(tt.d).BuildSelect(SelectSpec{Table: "t", Offset: 3})
		require.NoError(t, err)
		assert.Equal(t, tt.want, stmt.SQL, tt.d.Name())
	}
}

func TestInsert_Returning(t *testing.T) {
	vals := Values(map[string]any{"name": "Ada", "age": 36})
	tests := []struct {
		d    dialect.Dialect
		want string
	}{
		{dialect.SQLite(), `INSERT INTO "users" ("age", "name") VALUES (?, ?)`},
		{dialect.MySQL(), "INSERT INTO `users` (`age`, `name`) VALUES (?, ?)"},
		{dialect.MariaDB(), "INSERT INTO `users` (`age`, `name`) VALUES (?, ?) RETURNING `id`"},
		{dialect.Postgres(), `INSERT INTO "users" ("age", "name") VALUES ($1, $2) RETURNING "id"`},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			stmt, err := NewBuilder(tt.d).Insert("users", vals, "id")
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
			assert.Equal(t, "id", stmt.Returning)
			assert.Equal(t, []any{int64(36), "Ada"}, values(stmt))
		})
	}
}

func TestBuildInsert_MultiRowConflicts(t *testing.T) {
	spec := InsertSpec{
		Table:    "tags",
		Columns:  []string{"name"},
		Rows:     [][]any{{"go"}, {"sql"}},
		Conflict: dialect.ConflictIgnore,
	}

	stmt, err := NewBuilder(dialect.MySQL()).BuildInsert(spec)
	require.NoError(t, err)
	assert.Equal(t, "INSERT IGNORE INTO `tags` (`name`) VALUES (?), (?)", stmt.SQL)

	stmt, err = NewBuilder(dialect.SQLite()).BuildInsert(spec)
	require.NoError(t, err)
	assert.Equal(t, `INSERT OR IGNORE INTO "tags" ("name") VALUES (?), (?)`, stmt.SQL)

	stmt, err = NewBuilder(dialect.Postgres()).BuildInsert(spec)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "tags" ("name") VALUES ($1), ($2) ON CONFLICT DO NOTHING`, stmt.SQL)

	spec.Conflict = dialect.ConflictReplace
	stmt, err = NewBuilder(dialect.MySQL()).BuildInsert(spec)
	require.NoError(t, err)
	assert.Equal(t, "REPLACE INTO `tags` (`name`) VALUES (?), (?)", stmt.SQL)

	_, err = NewBuilder(dialect.Postgres()).BuildInsert(spec)
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
}

func TestBuildInsert_Invalid(t *testing.T) {
	b := NewBuilder(dialect.SQLite())

	_, err := b.BuildInsert(InsertSpec{Table: "t"})
	assert.ErrorIs(t, err, sqlerr.ErrValidation, "no columns")

	_, err = b.BuildInsert(InsertSpec{Table: "t", Columns: []string{"a"}})
	assert.ErrorIs(t, err, sqlerr.ErrValidation, "no rows")

	_, err = b.BuildInsert(InsertSpec{Table: "t", Columns: []string{"a", "b"}, Rows: [][]any{{1}}})
	assert.ErrorIs(t, err, sqlerr.ErrValidation, "short row")

	_, err = b.BuildInsert(InsertSpec{Table: "t", Columns: []string{"a"}, Rows: [][]any{{1}, {2}}, Returning: "id"})
	assert.ErrorIs(t, err, sqlerr.ErrValidation, "returning on multi-row insert")

	_, err = b.Insert("t", []Assignment{Set("a", struct{}{})}, "")
	assert.ErrorIs(t, err, sqlerr.ErrTypeMismatch)
}

func TestUpdate(t *testing.T) {
	stmt, err := NewBuilder(dialect.SQLite()).Update("users", []Assignment{Set("age", 37)}, Eq("name", "O'Brien"))
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "age" = ? WHERE "name" = ?`, stmt.SQL)
	assert.Equal(t, `UPDATE "users" SET "age" = 37 WHERE "name" = 'O''Brien'`, stmt.String())
	assert.Equal(t, KindUpdate, stmt.Kind)

	stmt, err = NewBuilder(dialect.MySQL()).BuildUpdate(UpdateSpec{Table: "users", Set: []Assignment{Set("email", "a@b.c")}, Ignore: true})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE IGNORE `users` SET `email` = ?", stmt.SQL)

	_, err = NewBuilder(dialect.Postgres()).BuildUpdate(UpdateSpec{Table: "users", Set: []Assignment{Set("email", "x")}, Ignore: true})
	assert.ErrorIs(t, err, sqlerr.ErrValidation)

	_, err = NewBuilder(dialect.SQLite()).Update("users", nil, nil)
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
}

func TestDelete(t *testing.T) {
	stmt, err := NewBuilder(dialect.Postgres()).Delete("users", In("id", 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" IN ($1, $2, $3)`, stmt.SQL)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" IN (1, 2, 3)`, stmt.String())

	stmt, err = NewBuilder(dialect.SQLite()).Delete("users", NotIn("id", 4))
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" NOT IN (?)`, stmt.SQL)

	stmt, err = NewBuilder(dialect.SQLite()).Delete("users", nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users"`, stmt.SQL)
}

func TestPredicates_Render(t *testing.T) {
	b := NewBuilder(dialect.SQLite())
	tests := []struct {
		name  string
		where Predicate
		want  string
	}{
		{"ne", Ne("a", 1), `"a" <> ?`},
		{"lt le", And(Lt("a", 1), Le("b", 2)), `("a" < ? AND "b" <= ?)`},
		{"ge", Ge("a", 1.5), `"a" >= ?`},
		{"like", Like("name", "A%"), `"name" LIKE ?`},
		{"not", Not(IsNotNull("a")), `NOT ("a" IS NOT NULL)`},
		{"compare parsed", Compare("a", mustOp(t, "!="), 1), `"a" <> ?`},
		{"where pairs", Where(Set("name", "Ada"), Set("deleted", nil)), `("name" = ? AND "deleted" IS NULL)`},
		{"where single", Where(Set("name", "Ada")), `"name" = ?`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := b.Delete("t", tt.where)
			require.NoError(t, err)
			assert.Equal(t, `DELETE FROM "t" WHERE `+tt.want, stmt.SQL)
		})
	}
	assert.Nil(t, Where())
}

func mustOp(t *testing.T, s string) Op {
	t.Helper()
	op, err := ParseOp(s)
	require.NoError(t, err)
	return op
}

func TestPredicates_InvalidShapes(t *testing.T) {
	b := NewBuilder(dialect.MySQL())
	tests := []struct {
		name  string
		where Predicate
	}{
		{"empty and", And()},
		{"empty or", Or()},
		{"nil child", And(Eq("a", 1), nil)},
		{"nil not", Not(nil)},
		{"empty in", In("a")},
		{"empty not in", NotIn("a")},
		{"unknown operator", Compare("a", Op("~~"), 1)},
		{"compare with nil", Eq("a", nil)},
		{"bad identifier", Eq("a..b", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Select("t", nil, tt.where)
			assert.ErrorIs(t, err, sqlerr.ErrValidation)
		})
	}

	_, err := ParseOp("~~")
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
	_, err = b.Select("", nil, nil)
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
	_, err = b.BuildSelect(SelectSpec{Table: "t", Limit: -1})
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
}

func TestIdentifiersAreQuotedNotInterpolated(t *testing.T) {
	stmt, err := NewBuilder(dialect.SQLite()).Select(`users"; DROP TABLE users; --`, []string{"name"}, Eq("name", "x' OR '1'='1"))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "name" FROM "users""; DROP TABLE users; --" WHERE "name" = ?`, stmt.SQL)
	assert.Equal(t, []any{"x' OR '1'='1"}, values(stmt))
}

func TestMarks_Apply(t *testing.T) {
	stmt, err := NewBuilder(dialect.Postgres()).Update("users",
		[]Assignment{Set("age", Mark(1))}, Eq("name", Mark(2)))
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "age" = $1 WHERE "name" = $2`, stmt.SQL)
	assert.Equal(t, 2, stmt.Marks())
	assert.Equal(t, `UPDATE "users" SET "age" = ?1 WHERE "name" = ?2`, stmt.String())

	applied, err := stmt.Apply(40, "Ada")
	require.NoError(t, err)
	assert.Equal(t, stmt.SQL, applied.SQL)
	assert.Equal(t, []any{int64(40), "Ada"}, values(applied))
	assert.Equal(t, 0, applied.Marks())
	assert.True(t, stmt.Params[0].Value.IsMark(), "the original statement keeps its marks")

	again, err := stmt.Apply(41, "Grace")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(41), "Grace"}, values(again))

	_, err = stmt.Apply(1)
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
	_, err = stmt.Apply(1, Mark(1))
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
}

func TestMarks_NumberedFromOne(t *testing.T) {
	b := NewBuilder(dialect.SQLite())
	for _, n := range []int{0, -2} {
		_, err := b.Update("users", []Assignment{Set("name", Mark(n))}, Eq("id", 1))
		assert.ErrorIs(t, err, sqlerr.ErrValidation, "mark %d", n)
	}

	stmt, err := b.Update("users", []Assignment{Set("name", Mark(1))}, nil)
	require.NoError(t, err)
	stmt.Params[0].Value = Mark(0)
	assert.Equal(t, 0, stmt.Marks())
	_, err = stmt.Apply()
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
}

func TestMarks_ReusedNumber(t *testing.T) {
	stmt, err := NewBuilder(dialect.SQLite()).Select("events", nil,
		Or(Eq("sender", Mark(1)), Eq("receiver", Mark(1))))
	require.NoError(t, err)
	assert.Equal(t, 1, stmt.Marks())

	applied, err := stmt.Apply("ada")
	require.NoError(t, err)
	assert.Equal(t, []any{"ada", "ada"}, values(applied))
}

func TestValues_Sorted(t *testing.T) {
	got := Values(map[string]any{"b": 2, "a": 1, "c": 3})
	assert.Equal(t, []Assignment{Set("a", 1), Set("b", 2), Set("c", 3)}, got)
}

func TestCreateTable(t *testing.T) {
	spec := TableSpec{
		Name:        "users",
		IfNotExists: true,
		Columns: []ColumnSpec{
			{Name: "id", AutoIncrement: true},
			{Name: "name", Type: dialect.TypeText, NotNull: true},
			{Name: "email", Type: dialect.TypeText, Unique: true},
			{Name: "age", Type: dialect.TypeInteger},
		},
	}
	tests := []struct {
		d    dialect.Dialect
		want string
	}{
		{dialect.SQLite(), `CREATE TABLE IF NOT EXISTS "users" ("id" INTEGER PRIMARY KEY AUTOINCREMENT, "name" TEXT NOT NULL, "email" TEXT UNIQUE, "age" INTEGER)`},
		{dialect.MySQL(), "CREATE TABLE IF NOT EXISTS `users` (`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, `name` VARCHAR(255) NOT NULL, `email` VARCHAR(255) UNIQUE, `age` BIGINT)"},
		{dialect.Postgres(), `CREATE TABLE IF NOT EXISTS "users" ("id" BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY, "name" TEXT NOT NULL, "email" TEXT UNIQUE, "age" BIGINT)`},
	}
	for _, tt := range tests {
		stmt, err := NewBuilder(tt.d).CreateTable(spec)
		require.NoError(t, err)
		assert.Equal(t, tt.want, stmt.SQL, tt.d.Name())
		assert.Equal(t, KindDDL, stmt.Kind)
	}
}

func TestCreateTable_CompositeKey(t *testing.T) {
	stmt, err := NewBuilder(dialect.Postgres()).CreateTable(TableSpec{
		Name: "pairs",
		Columns: []ColumnSpec{
			{Name: "a", Type: dialect.TypeInteger, PrimaryKey: true},
			{Name: "b", Type: dialect.TypeText, PrimaryKey: true, NotNull: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE "pairs" ("a" BIGINT, "b" TEXT NOT NULL, PRIMARY KEY ("a", "b"))`, stmt.SQL)
}

func TestCreateTable_Invalid(t *testing.T) {
	b := NewBuilder(dialect.SQLite())

	_, err := b.CreateTable(TableSpec{Name: "t"})
	assert.ErrorIs(t, err, sqlerr.ErrValidation)

	_, err = b.CreateTable(TableSpec{Name: "t", Columns: []ColumnSpec{{Name: "x", Type: dialect.TypeNull}}})
	assert.ErrorIs(t, err, sqlerr.ErrValidation, "null is not a column type")

	_, err = b.CreateTable(TableSpec{Name: "t", Columns: []ColumnSpec{
		{Name: "id", AutoIncrement: true},
		{Name: "k", Type: dialect.TypeText, PrimaryKey: true},
	}})
	assert.ErrorIs(t, err, sqlerr.ErrValidation)
}

func TestDropTable(t *testing.T) {
	stmt, err := NewBuilder(dialect.MySQL()).DropTable("users", true)
	require.NoError(t, err)
	assert.Equal(t, "DROP TABLE IF EXISTS `users`", stmt.SQL)

	stmt, err = NewBuilder(dialect.Postgres()).DropTable("users", false)
	require.NoError(t, err)
	assert.Equal(t, `DROP TABLE "users"`, stmt.SQL)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "select", KindSelect.String())
	assert.Equal(t, "ddl", KindDDL.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
