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
package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Conn is one pooled physical connection. While idle it is owned by the
// provider; while lent it belongs to exactly one caller, who must hand it
// back with Release.
type Conn struct {
	id       uuid.UUID
	raw      *sql.Conn
	provider *Provider
	created  time.Time
	lastUsed time.Time // guarded by provider.mu while idle
	lent     atomic.Bool
}

// ID identifies the connection in log events.
func (c *Conn) ID() string { return c.id.String() }

// Created returns when the physical connection was opened.
func (c *Conn) Created() time.Time { return c.created }

// BeginTx starts a transaction on the connection.
func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := c.raw.BeginTx(ctx, opts)
	if err != nil {
		return nil, c.provider.classifier.Classify("begin", err)
	}
	return tx, nil
}

// ExecContext runs a statement outside any transaction.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.raw.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, c.provider.classifier.Classify("exec", err)
	}
	return res, nil
}

// QueryContext runs a query outside any transaction.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.raw.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.provider.classifier.Classify("query", err)
	}
	return rows, nil
}

// Ping checks that the physical connection is alive.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.raw.PingContext(ctx); err != nil {
		return c.provider.classifier.Classify("ping", err)
	}
	return nil
}

// Release returns the connection to its provider. See Provider.Release.
func (c *Conn) Release(healthy bool) {
	c.provider.Release(c, healthy)
}

// discard closes the physical connection. Bad connections are flagged to
// database/sql first so the driver connection is never reused.
func (c *Conn) discard(bad bool) error {
	if bad {
		_ = c.raw.Raw(func(any) error { return driver.ErrBadConn })
	}
	err := c.raw.Close()
	if err == sql.ErrConnDone {
		return nil
	}
	return err
}
