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
package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/dbkit/pkg/bind"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/query"
	"github.com/teradata-labs/dbkit/pkg/result"
	"github.com/teradata-labs/dbkit/pkg/schema"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
	"github.com/teradata-labs/dbkit/pkg/tx"
)

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the backend accepts connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			ctx, db, closeDB, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := db.Ping(ctx); err != nil {
				return err
			}
			cfg := db.Provider().Config()
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (%s) in %s\n", cfg.Name, db.Dialect().Name(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, db, closeDB, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			tbl, err := db.Table(ctx, args[0])
			if err != nil {
				return err
			}
			if !tbl.Known() {
				return sqlerr.Newf(sqlerr.KindNotFound, "schema", "table %q does not exist", args[0])
			}
			return printSchema(cmd.OutOrStdout(), tbl)
		},
	}
}

func printSchema(out io.Writer, tbl *schema.Table) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tDB TYPE\tNULLABLE\tKEY")
	for _, c := range tbl.Columns {
		key := ""
		if c.PrimaryKey {
			key = "PRI"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", c.Name, c.Type, c.DBType, c.Nullable, key)
	}
	return w.Flush()
}

// selectFlags are shared by select and render.
type selectFlags struct {
	columns []string
	where   []string
	order   []string
	limit   int
	offset  int
}

func (f *selectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.columns, "columns", "c", nil, "columns to return (default all)")
	cmd.Flags().StringArrayVarP(&f.where, "where", "w", nil, "equality filter col=value, repeatable; col=NULL matches NULL")
	cmd.Flags().StringSliceVar(&f.order, "order", nil, "order by columns; prefix with - for descending")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum rows (0 for no limit)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "rows to skip")
}

// spec builds the select description. typeOf reports the column type a
// filter value is parsed as; unknown columns compare as text. Without typeOf
// the type is inferred from the value itself.
func (f *selectFlags) spec(table string, typeOf func(string) (dialect.Type, bool)) (query.SelectSpec, error) {
	pairs, err := parseFilters(f.where, typeOf)
	if err != nil {
		return query.SelectSpec{}, err
	}
	var order []query.Order
	for _, o := range f.order {
		if col, desc := strings.CutPrefix(o, "-"); desc {
			order = append(order, query.Desc(col))
		} else {
			order = append(order, query.Asc(o))
		}
	}
	return query.SelectSpec{
		Table:   table,
		Columns: f.columns,
		Where:   query.Where(pairs...),
		OrderBy: order,
		Limit:   f.limit,
		Offset:  f.offset,
	}, nil
}

func parseFilters(filters []string, typeOf func(string) (dialect.Type, bool)) ([]query.Assignment, error) {
	pairs := make([]query.Assignment, 0, len(filters))
	for _, f := range filters {
		col, raw, ok := strings.Cut(f, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, sqlerr.Newf(sqlerr.KindValidation, "parse filter", "filter %q is not col=value", f)
		}
		if strings.EqualFold(raw, "NULL") {
			pairs = append(pairs, query.Set(col, nil))
			continue
		}
		var t dialect.Type
		if typeOf == nil {
			t = inferType(raw)
		} else if ct, known := typeOf(col); known {
			t = ct
		} else {
			t = dialect.TypeText
		}
		v, err := bind.Parse(raw, t)
		if err != nil {
			return nil, fmt.Errorf("filter on %s: %w", col, err)
		}
		pairs = append(pairs, query.Set(col, v))
	}
	return pairs, nil
}

func inferType(raw string) dialect.Type {
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return dialect.TypeInteger
	}
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return dialect.TypeFloat
	}
	switch strings.ToLower(raw) {
	case "true", "false":
		return dialect.TypeBoolean
	}
	return dialect.TypeText
}

func newSelectCmd(a *app) *cobra.Command {
	var f selectFlags
	cmd := &cobra.Command{
		Use:   "select <table>",
		Short: "Print rows of a table",
		Long: heredoc.Doc(`
			Print rows of a table as tab-separated columns.

			Filter values are parsed with the column's type, so --where age=36
			compares an integer column with an integer.
		`),
		Example: heredoc.Doc(`
			dbkit select users --columns id,name --where age=36 --limit 10
			dbkit -b reporting select orders --where status=open --order -created
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, db, closeDB, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			return db.TransactWith(ctx, &tx.Options{ReadOnly: db.Dialect().Kind() != dialect.KindSQLite}, func(s *tx.Scope) error {
				tbl, err := s.Table(ctx, args[0])
				if err != nil {
					return err
				}
				spec, err := f.spec(args[0], tbl.ColumnType)
				if err != nil {
					return err
				}
				stmt, err := s.Builder().BuildSelect(spec)
				if err != nil {
					return err
				}
				rows, err := s.Query(ctx, stmt)
				if err != nil {
					return err
				}
				defer rows.Close()
				return printRows(cmd.OutOrStdout(), rows)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func printRows(out io.Writer, rows *result.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))
	n := 0
	for rows.Next() {
		row := rows.Row()
		cells := make([]string, len(cols))
		for i, v := range row.Values() {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "(%d rows)\n", n)
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func newRenderCmd() *cobra.Command {
	var (
		f            selectFlags
		placeholders bool
	)
	cmd := &cobra.Command{
		Use:   "render <dialect> select|delete <table>",
		Short: "Print the SQL a statement renders to, without a backend",
		Long: heredoc.Doc(`
			Render a SELECT or DELETE for a dialect and print it.

			Without a backend there are no column types: filter values that look
			like integers, numbers or booleans are rendered as such, everything
			else as text. --placeholders prints the parameterized SQL and its
			arguments instead of the inlined form.
		`),
		Example: heredoc.Doc(`
			dbkit render postgres select users --where age=36 --limit 5
			dbkit render mysql delete sessions --where user_id=7 --placeholders
		`),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := dialect.ParseKind(args[0])
			if err != nil {
				return err
			}
			d, err := dialect.For(kind)
			if err != nil {
				return err
			}
			b := query.NewBuilder(d)

			spec, err := f.spec(args[2], nil)
			if err != nil {
				return err
			}
			var stmt query.Statement
			switch strings.ToLower(args[1]) {
			case "select":
				stmt, err = b.BuildSelect(spec)
			case "delete":
				if len(f.columns) > 0 || len(f.order) > 0 || f.limit != 0 || f.offset != 0 {
					return sqlerr.Newf(sqlerr.KindValidation, "render", "delete takes only --where")
				}
				stmt, err = b.Delete(spec.Table, spec.Where)
			default:
				return sqlerr.Newf(sqlerr.KindValidation, "render", "unknown statement %q (expected select or delete)", args[1])
			}
			if err != nil {
				return err
			}
			return printStatement(cmd.OutOrStdout(), stmt, placeholders)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&placeholders, "placeholders", false, "print parameterized SQL and arguments")
	return cmd
}

func printStatement(out io.Writer, stmt query.Statement, placeholders bool) error {
	if !placeholders {
		_, err := fmt.Fprintln(out, stmt.String())
		return err
	}
	fmt.Fprintln(out, stmt.SQL)
	for i, p := range stmt.Params {
		fmt.Fprintf(out, "  %d: %s\n", i+1, p.Value.Literal())
	}
	return nil
}
