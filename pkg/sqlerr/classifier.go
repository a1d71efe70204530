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
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"slices"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Rule maps a set of backend signals onto one Kind. A rule matches when the
// extracted code equals one of Codes, starts with one of Prefixes, or the
// lower-cased error message contains one of Messages.
type Rule struct {
	Kind     Kind
	Codes    []string
	Prefixes []string
	Messages []string
}

// Table is an ordered list of rules; the first matching rule wins.
type Table []Rule

// Extractor pulls the backend-native error code out of a driver error.
type Extractor func(err error) (code string, ok bool)

type tableEntry struct {
	table   Table
	extract Extractor
}

var (
	tablesMu sync.RWMutex
	tables   = make(map[string]tableEntry)
)

// RegisterTable registers the classification table for a backend kind.
// Registering the same backend twice replaces the previous table.
func RegisterTable(backend string, table Table, extract Extractor) {
	tablesMu.Lock()
	defer tablesMu.Unlock()
	tables[backend] = tableEntry{table: slices.Clone(table), extract: extract}
}

// Backends returns the backend kinds that have a registered table.
func Backends() []string {
	tablesMu.RLock()
	defer tablesMu.RUnlock()
	out := make([]string, 0, len(tables))
	for name := range tables {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func lookupTable(backend string) (tableEntry, bool) {
	tablesMu.RLock()
	defer tablesMu.RUnlock()
	e, ok := tables[backend]
	return e, ok
}

// Classifier maps driver errors of one backend onto the taxonomy.
// It is safe for concurrent use.
type Classifier struct {
	backend string
	entry   tableEntry
	logger  *zap.Logger
}

// NewClassifier returns a classifier for the given backend kind. Backends
// without a registered table still get the backend-independent rules.
func NewClassifier(backend string, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	entry, _ := lookupTable(backend)
	return &Classifier{backend: backend, entry: entry, logger: logger}
}

// Backend returns the backend kind this classifier serves.
func (c *Classifier) Backend() string {
	return c.backend
}

// Classify wraps err into an *Error. Errors that are already classified are
// returned unchanged; nil stays nil.
func (c *Classifier) Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	kind, code := c.match(err)
	classified := &Error{Kind: kind, Op: op, Backend: c.backend, Code: code, Err: err}

	c.logger.Debug("classified backend error",
		zap.String("backend", c.backend),
		zap.String("op", op),
		zap.String("kind", kind.String()),
		zap.String("code", code),
		zap.Error(err))

	return classified
}

func (c *Classifier) match(err error) (Kind, string) {
	var code string
	var hasCode bool
	if c.entry.extract != nil {
		code, hasCode = c.entry.extract(err)
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range c.entry.table {
		if hasCode && (slices.Contains(rule.Codes, code) || hasAnyPrefix(code, rule.Prefixes)) {
			return rule.Kind, code
		}
		for _, m := range rule.Messages {
			if strings.Contains(msg, m) {
				return rule.Kind, code
			}
		}
	}

	if kind, ok := genericKind(err); ok {
		return kind, code
	}
	return KindUnclassified, code
}

func hasAnyPrefix(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// genericKind covers signals every driver reports the same way.
func genericKind(err error) (Kind, bool) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return KindNotFound, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// statement deadlines are the caller's policy, not a connection failure
		return KindUnclassified, false
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return KindConnectionLost, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectionLost, true
	}
	return KindUnclassified, false
}
