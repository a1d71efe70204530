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

// Package bind maps Go values onto typed statement parameters and converts
// them to the representation each backend expects.
package bind

import (
	"database/sql/driver"
	"encoding/hex"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Value is a Go value tagged with its generic type. A Value with a non-zero
// Mark is a placeholder filled in later by Statement.Apply.
type Value struct {
	Type dialect.Type
	V    any
	Mark int
}

// Null is the SQL NULL value.
func Null() Value { return Value{Type: dialect.TypeNull} }

// Marked returns the late-bound placeholder number n (1-based). For n < 1 it
// returns an invalid mark that building, applying and binding reject.
func Marked(n int) Value {
	if n < 1 {
		return Value{Type: dialect.TypeNull, Mark: -1}
	}
	return Value{Type: dialect.TypeNull, Mark: n}
}

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.Mark == 0 && v.V == nil }

// IsMark reports whether v still waits for a value.
func (v Value) IsMark() bool { return v.Mark > 0 }

// IsInvalidMark reports whether v came from a mark number below 1.
func (v Value) IsInvalidMark() bool { return v.Mark < 0 }

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// ValueOf infers the generic type of a Go value. Supported are strings,
// signed and unsigned integers, floats, bools, time.Time, []byte, nil,
// pointers to those, driver.Valuer implementations and Value itself.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return Value{Type: dialect.TypeText, V: x}, nil
	case []byte:
		if x == nil {
			return Null(), nil
		}
		return Value{Type: dialect.TypeBlob, V: x}, nil
	case bool:
		return Value{Type: dialect.TypeBoolean, V: x}, nil
	case int64:
		return Value{Type: dialect.TypeInteger, V: x}, nil
	case int:
		return Value{Type: dialect.TypeInteger, V: int64(x)}, nil
	case float64:
		return Value{Type: dialect.TypeFloat, V: x}, nil
	case time.Time:
		return Value{Type: dialect.TypeTimestamp, V: x}, nil
	case driver.Valuer:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Null(), nil
		}
		dv, err := x.Value()
		if err != nil {
			return Value{}, sqlerr.New(sqlerr.KindTypeMismatch, "bind", err)
		}
		return ValueOf(dv)
	}
	return reflectValue(reflect.ValueOf(v))
}

func reflectValue(rv reflect.Value) (Value, error) {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Null(), nil
		}
		return ValueOf(rv.Elem().Interface())
	}

	if rv.Type().ConvertibleTo(timeType) && rv.Kind() == reflect.Struct {
		return Value{Type: dialect.TypeTimestamp, V: rv.Convert(timeType).Interface()}, nil
	}

	switch rv.Kind() {
	case reflect.String:
		return Value{Type: dialect.TypeText, V: rv.String()}, nil
	case reflect.Bool:
		return Value{Type: dialect.TypeBoolean, V: rv.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Value{Type: dialect.TypeInteger, V: rv.Int()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "bind", "unsigned value %d overflows a signed 64-bit integer", u)
		}
		return Value{Type: dialect.TypeInteger, V: int64(u)}, nil
	case reflect.Float32, reflect.Float64:
		return Value{Type: dialect.TypeFloat, V: rv.Float()}, nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.IsNil() {
				return Null(), nil
			}
			return Value{Type: dialect.TypeBlob, V: rv.Bytes()}, nil
		}
	}
	return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "bind", "unsupported Go type %s", rv.Type())
}

// Literal renders v as an SQL literal for debug output. It is never used to
// build executable statements.
func (v Value) Literal() string {
	if v.Mark > 0 {
		return "?" + strconv.Itoa(v.Mark)
	}
	if v.Mark < 0 {
		return "?"
	}
	switch x := v.V.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return "'" + x.UTC().Format(TimestampLayout) + "'"
	case []byte:
		return "X'" + strings.ToUpper(hex.EncodeToString(x)) + "'"
	}
	return "?"
}

// TimestampLayout is the text form of timestamps in debug output and in
// text-typed timestamp columns.
const TimestampLayout = "2006-01-02 15:04:05.999999"

// Parse converts a text value, for instance from a command line flag, into a
// Value of the given type. TypeNull keeps the text as is.
func Parse(s string, t dialect.Type) (Value, error) {
	switch t {
	case dialect.TypeNull, dialect.TypeText:
		return Value{Type: dialect.TypeText, V: s}, nil
	case dialect.TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "parse", "%q is not an integer", s)
		}
		return Value{Type: t, V: n}, nil
	case dialect.TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "parse", "%q is not a number", s)
		}
		return Value{Type: t, V: f}, nil
	case dialect.TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "parse", "%q is not a boolean", s)
		}
		return Value{Type: t, V: b}, nil
	case dialect.TypeTimestamp:
		ts, err := ParseTime(s)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, V: ts}, nil
	case dialect.TypeBlob:
		return Value{Type: t, V: []byte(s)}, nil
	}
	return Value{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "parse", "unknown type %s", t)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses the timestamp text forms the supported backends produce.
// Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, sqlerr.Newf(sqlerr.KindTypeMismatch, "parse", "%q is not a timestamp", s)
}
