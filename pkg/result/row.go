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
package result

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/teradata-labs/dbkit/pkg/bind"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Row is one result row: values in cursor order, addressable by column name
// regardless of case.
type Row struct {
	header *header
	values []any
}

// Columns returns the column names in cursor order.
func (r *Row) Columns() []string { return append([]string(nil), r.header.names...) }

// Values returns a copy of the values in cursor order.
func (r *Row) Values() []any { return append([]any(nil), r.values...) }

// Type returns the generic type the cursor declared for column.
func (r *Row) Type(column string) (dialect.Type, error) {
	i, err := r.index(column)
	if err != nil {
		return dialect.TypeNull, err
	}
	return r.header.types[i], nil
}

func (r *Row) index(column string) (int, error) {
	i, ok := r.header.lookup(column)
	if !ok {
		return 0, sqlerr.Newf(sqlerr.KindNotFound, "result", "unknown column %q", column)
	}
	return i, nil
}

// Get returns the normalized value of column.
func (r *Row) Get(column string) (any, error) {
	i, err := r.index(column)
	if err != nil {
		return nil, err
	}
	return r.values[i], nil
}

// IsNull reports whether column holds NULL.
func (r *Row) IsNull(column string) (bool, error) {
	v, err := r.Get(column)
	return v == nil, err
}

// Map returns the row keyed by column name as reported by the cursor.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, name := range r.header.names {
		if _, dup := m[name]; !dup {
			m[name] = r.values[i]
		}
	}
	return m
}

func (r *Row) notNull(column string) (any, error) {
	v, err := r.Get(column)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, sqlerr.Newf(sqlerr.KindTypeMismatch, "result", "column %q is NULL", column)
	}
	return v, nil
}

func mismatch(column string, v any, want string) error {
	return sqlerr.Newf(sqlerr.KindTypeMismatch, "result", "column %q holds %T, not %s", column, v, want)
}

// String returns column as text. Numbers, booleans and timestamps are
// formatted; blobs are returned as their bytes.
func (r *Row) String(column string) (string, error) {
	v, err := r.notNull(column)
	if err != nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	}
	return fmt.Sprint(v), nil
}

// Int64 returns column as an integer. Floats must be integral.
func (r *Row) Int64(column string) (int64, error) {
	v, err := r.notNull(column)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, nil
		}
	case []byte:
		if n, err := strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, mismatch(column, v, "an integer")
}

// Float64 returns column as a float.
func (r *Row) Float64(column string) (float64, error) {
	v, err := r.notNull(column)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, nil
		}
	case []byte:
		if f, err := strconv.ParseFloat(strings.TrimSpace(string(x)), 64); err == nil {
			return f, nil
		}
	}
	return 0, mismatch(column, v, "a number")
}

// Bool returns column as a boolean. Integers 0 and 1 are accepted since
// several backends store booleans that way.
func (r *Row) Bool(column string) (bool, error) {
	v, err := r.notNull(column)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
			return b, nil
		}
	case []byte:
		if b, err := strconv.ParseBool(strings.TrimSpace(string(x))); err == nil {
			return b, nil
		}
	}
	return false, mismatch(column, v, "a boolean")
}

// Time returns column as a timestamp in UTC.
func (r *Row) Time(column string) (time.Time, error) {
	v, err := r.notNull(column)
	if err != nil {
		return time.Time{}, err
	}
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		if ts, err := bind.ParseTime(x); err == nil {
			return ts, nil
		}
	case []byte:
		if ts, err := bind.ParseTime(string(x)); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, mismatch(column, v, "a timestamp")
}

// Bytes returns column as raw bytes. Text is returned as its UTF-8 bytes.
func (r *Row) Bytes(column string) ([]byte, error) {
	v, err := r.notNull(column)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...), nil
	case string:
		return []byte(x), nil
	}
	return nil, mismatch(column, v, "bytes")
}

// normalize maps a driver value onto the Go type of the declared column
// type. Values that do not convert are kept as the driver returned them.
func normalize(v any, t dialect.Type) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeText(string(x), x, t)
	case string:
		return normalizeText(x, nil, t)
	case int64:
		switch t {
		case dialect.TypeBoolean:
			if x == 0 || x == 1 {
				return x == 1
			}
		case dialect.TypeFloat:
			return float64(x)
		}
		return x
	case int32:
		return normalize(int64(x), t)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	}
	return v
}

// normalizeText converts a textual driver value, such as the MySQL text
// protocol or SQLite's typeless storage produce. raw is non-nil when the
// driver returned bytes.
func normalizeText(s string, raw []byte, t dialect.Type) any {
	switch t {
	case dialect.TypeInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case dialect.TypeFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case dialect.TypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case dialect.TypeTimestamp:
		if ts, err := bind.ParseTime(s); err == nil {
			return ts
		}
	case dialect.TypeBlob:
		if raw != nil {
			return raw
		}
		return []byte(s)
	}
	if raw != nil && t != dialect.TypeNull {
		return s
	}
	if raw != nil {
		return raw
	}
	return s
}
