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
package bind

import (
	"time"

	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Param is one positional statement parameter. Column names the target
// column the value is compared with or written to; it may be empty.
type Param struct {
	Column string
	Value  Value
}

// Columns reports the declared generic type of a table's columns. Names may
// carry a table qualifier. A false result means the column type is unknown
// and checks are skipped.
type Columns interface {
	ColumnType(name string) (dialect.Type, bool)
}

// Binder converts parameters to driver arguments for one dialect.
type Binder struct {
	d dialect.Dialect
}

// New returns a binder for d.
func New(d dialect.Dialect) Binder {
	return Binder{d: d}
}

// Bind checks every parameter against its column's declared type and returns
// the driver arguments in order. columns may be nil. All failures are
// reported before anything reaches the backend.
func (b Binder) Bind(params []Param, columns Columns) ([]any, error) {
	args := make([]any, len(params))
	for i, p := range params {
		if p.Value.IsInvalidMark() {
			return nil, sqlerr.Newf(sqlerr.KindValidation, "bind", "parameter %d is a mark numbered below 1", i+1)
		}
		if p.Value.IsMark() {
			return nil, sqlerr.Newf(sqlerr.KindValidation, "bind", "parameter %d is mark %d without a value", i+1, p.Value.Mark)
		}

		target := dialect.TypeNull
		if columns != nil && p.Column != "" {
			if t, ok := columns.ColumnType(p.Column); ok {
				target = t
			}
		}

		arg, err := b.convert(p.Value, target)
		if err != nil {
			if p.Column != "" {
				return nil, sqlerr.Newf(sqlerr.KindTypeMismatch, "bind", "column %q: %v", p.Column, err)
			}
			return nil, sqlerr.Newf(sqlerr.KindTypeMismatch, "bind", "parameter %d: %v", i+1, err)
		}
		args[i] = arg
	}
	return args, nil
}

// BindValues converts values without column checks.
func (b Binder) BindValues(values ...any) ([]any, error) {
	params := make([]Param, len(values))
	for i, v := range values {
		val, err := ValueOf(v)
		if err != nil {
			return nil, err
		}
		params[i] = Param{Value: val}
	}
	return b.Bind(params, nil)
}

type mismatchError struct {
	value, column dialect.Type
}

func (e mismatchError) Error() string {
	return "cannot bind " + e.value.String() + " to a " + e.column.String() + " column"
}

// convert returns the driver representation of v for a column of type target.
// TypeNull as target means unknown and only the dialect rules apply.
func (b Binder) convert(v Value, target dialect.Type) (any, error) {
	if v.IsNull() {
		return nil, nil
	}

	if target != dialect.TypeNull && !compatible(v.Type, target) {
		return nil, mismatchError{value: v.Type, column: target}
	}

	switch x := v.V.(type) {
	case bool:
		if b.d.BoolAsInt() || target == dialect.TypeInteger {
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return x, nil
	case int64:
		switch target {
		case dialect.TypeFloat:
			return float64(x), nil
		case dialect.TypeBoolean:
			if x != 0 && x != 1 {
				return nil, mismatchError{value: v.Type, column: target}
			}
			if b.d.BoolAsInt() {
				return x, nil
			}
			return x == 1, nil
		}
		return x, nil
	case time.Time:
		return x.UTC(), nil
	case []byte:
		return x, nil
	case string, float64:
		return x, nil
	}
	return v.V, nil
}

// compatible lists which value types a column type accepts. Integer and
// boolean are interchangeable because several backends store booleans as
// integers; text is accepted for timestamps and blobs since those are often
// stored or supplied as text.
func compatible(value, column dialect.Type) bool {
	if value == column {
		return true
	}
	switch column {
	case dialect.TypeInteger:
		return value == dialect.TypeBoolean
	case dialect.TypeFloat:
		return value == dialect.TypeInteger
	case dialect.TypeBoolean:
		return value == dialect.TypeInteger
	case dialect.TypeText:
		return value == dialect.TypeTimestamp
	case dialect.TypeTimestamp:
		return value == dialect.TypeText
	case dialect.TypeBlob:
		return value == dialect.TypeText
	}
	return false
}
