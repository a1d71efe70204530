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

// Package sqlerr defines the backend-independent error taxonomy of dbkit and
// the table-driven classifier that maps driver failures onto it.
//
// Every error leaving a dbkit package is an *Error carrying one Kind. Callers
// branch on the kind, never on driver types:
//
//	if errors.Is(err, sqlerr.ErrConstraintViolation) {
//		// duplicate key, foreign key, ...
//	}
package sqlerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one entry of the unified error taxonomy.
type Kind int

const (
	// KindUnclassified is a backend signal missing from the classifier's table.
	KindUnclassified Kind = iota
	// KindConfiguration is an invalid or incomplete backend configuration.
	KindConfiguration
	// KindConnectionTimeout means no connection became available in time.
	KindConnectionTimeout
	// KindConnectionLost means the physical connection broke during use.
	KindConnectionLost
	// KindValidation is a statement shape that cannot be rendered.
	KindValidation
	// KindTypeMismatch is a bound value incompatible with its column type.
	KindTypeMismatch
	// KindConstraintViolation is a write rejected by a declared constraint.
	KindConstraintViolation
	// KindNotFound is a missing column or relation.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnclassified:
		return "unclassified"
	case KindConfiguration:
		return "configuration"
	case KindConnectionTimeout:
		return "connection-timeout"
	case KindConnectionLost:
		return "connection-lost"
	case KindValidation:
		return "validation"
	case KindTypeMismatch:
		return "type-mismatch"
	case KindConstraintViolation:
		return "constraint-violation"
	case KindNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// Local reports whether errors of this kind are detected before any backend call.
func (k Kind) Local() bool {
	return k == KindValidation || k == KindTypeMismatch
}

// Error is a classified dbkit error.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "acquire", "exec"
	Backend string // dialect kind, empty for backend-independent failures
	Code    string // backend-native error code, if the driver reported one
	Err     error  // original error, kept for diagnostics
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrUnclassified        = &Error{Kind: KindUnclassified}
	ErrConfiguration       = &Error{Kind: KindConfiguration}
	ErrConnectionTimeout   = &Error{Kind: KindConnectionTimeout}
	ErrConnectionLost      = &Error{Kind: KindConnectionLost}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrTypeMismatch        = &Error{Kind: KindTypeMismatch}
	ErrConstraintViolation = &Error{Kind: KindConstraintViolation}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

// New creates a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("dbkit")
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Backend != "" || e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Backend)
		if e.Code != "" {
			if e.Backend != "" {
				b.WriteByte(' ')
			}
			b.WriteString(e.Code)
		}
		b.WriteByte(')')
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the original error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err == nil && t.Op == "" && t.Backend == "" && t.Code == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnclassified when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnclassified
}

// IsConnectionFailure reports whether err means the connection is unusable.
func IsConnectionFailure(err error) bool {
	return KindOf(err) == KindConnectionLost
}
