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

// Package dbkit is the entry point for applications: it opens a backend,
// owns its connection provider and hands out transaction scopes.
//
//	db, err := dbkit.Open(ctx, config.Backend{Driver: "sqlite", Path: "app.db"})
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	err = db.Transact(ctx, func(s *tx.Scope) error {
//		stmt, err := s.Builder().Insert("users", query.Values(row), "id")
//		if err != nil {
//			return err
//		}
//		_, err = s.Insert(ctx, stmt)
//		return err
//	})
package dbkit

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/dbkit/internal/log"
	"github.com/teradata-labs/dbkit/pkg/config"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/embedded"
	"github.com/teradata-labs/dbkit/pkg/pool"
	"github.com/teradata-labs/dbkit/pkg/query"
	"github.com/teradata-labs/dbkit/pkg/schema"
	"github.com/teradata-labs/dbkit/pkg/tx"
)

// Option configures Open.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	adapter    pool.Adapter
	dockerHost string
}

// WithLogger sets the logger handed to every component. The global logger
// from internal/log is used otherwise.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithAdapter overrides the provider adapter registered for the backend kind.
func WithAdapter(a pool.Adapter) Option {
	return func(o *options) { o.adapter = a }
}

// WithDockerHost sets the Docker endpoint used for embedded servers.
func WithDockerHost(host string) Option {
	return func(o *options) { o.dockerHost = host }
}

// DB is an opened backend.
type DB struct {
	provider  *pool.Provider
	server    *embedded.Server
	inspector *schema.Inspector
	builder   query.Builder
	logger    *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open builds the connection provider for cfg. A MariaDB backend in
// embedded-server mode without a host gets its server started first; the
// server is removed again by Close.
func Open(ctx context.Context, cfg config.Backend, opts ...Option) (*DB, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := log.Or(o.logger)

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var server *embedded.Server
	if cfg.Mode == config.ModeEmbeddedServer && cfg.Host == "" {
		serverOpts := []embedded.Option{embedded.WithLogger(logger)}
		if o.dockerHost != "" {
			serverOpts = append(serverOpts, embedded.WithDockerHost(o.dockerHost))
		}
		s, err := embedded.New(cfg, serverOpts...)
		if err != nil {
			return nil, err
		}
		started, err := s.Start(ctx)
		if err != nil {
			return nil, err
		}
		server, cfg = s, started
	}

	poolOpts := []pool.Option{pool.WithLogger(logger)}
	if o.adapter != nil {
		poolOpts = append(poolOpts, pool.WithAdapter(o.adapter))
	}
	provider, err := pool.New(ctx, cfg, poolOpts...)
	if err != nil {
		if server != nil {
			if stopErr := server.Stop(context.WithoutCancel(ctx)); stopErr != nil {
				logger.Warn("failed to stop embedded server", zap.Error(stopErr))
			}
		}
		return nil, err
	}

	d := provider.Dialect()
	return &DB{
		provider:  provider,
		server:    server,
		inspector: schema.NewInspector(d, provider.Logger()),
		builder:   query.NewBuilder(d),
		logger:    provider.Logger(),
	}, nil
}

// OpenFile loads a backend list from a YAML file and opens the backend
// called name. An empty name selects the only backend of the file.
func OpenFile(ctx context.Context, path, name string, opts ...Option) (*DB, error) {
	backends, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Find(backends, name)
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg, opts...)
}

// Begin starts a transaction scope. Column metadata is shared between the
// scopes of one DB unless opts names another inspector.
func (db *DB) Begin(ctx context.Context, opts *tx.Options) (*tx.Scope, error) {
	return tx.Begin(ctx, db.provider, db.scopeOptions(opts))
}

// Transact runs fn in a scope: it commits when fn returns nil and rolls back
// on an error or panic.
func (db *DB) Transact(ctx context.Context, fn func(s *tx.Scope) error) error {
	return tx.Run(ctx, db.provider, db.scopeOptions(nil), fn)
}

// TransactWith is Transact with explicit scope options.
func (db *DB) TransactWith(ctx context.Context, opts *tx.Options, fn func(s *tx.Scope) error) error {
	return tx.Run(ctx, db.provider, db.scopeOptions(opts), fn)
}

func (db *DB) scopeOptions(opts *tx.Options) *tx.Options {
	out := tx.Options{}
	if opts != nil {
		out = *opts
	}
	if out.Inspector == nil {
		out.Inspector = db.inspector
	}
	return &out
}

// Table returns column metadata for a table, read in a short read-only scope.
func (db *DB) Table(ctx context.Context, name string) (*schema.Table, error) {
	var tbl *schema.Table
	err := db.TransactWith(ctx, &tx.Options{ReadOnly: db.Dialect().Kind() != dialect.KindSQLite}, func(s *tx.Scope) error {
		var err error
		tbl, err = s.Table(ctx, name)
		return err
	})
	return tbl, err
}

// Builder returns a statement builder for the backend's dialect.
func (db *DB) Builder() query.Builder { return db.builder }

// Dialect returns the backend's descriptor.
func (db *DB) Dialect() dialect.Dialect { return db.provider.Dialect() }

// Provider returns the connection provider.
func (db *DB) Provider() *pool.Provider { return db.provider }

// Inspector returns the metadata cache shared by this DB's scopes.
func (db *DB) Inspector() *schema.Inspector { return db.inspector }

// Ping borrows a connection and checks that the backend answers.
func (db *DB) Ping(ctx context.Context) error {
	conn, err := db.provider.Acquire(ctx, 0)
	if err != nil {
		return err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Release(false)
		return err
	}
	conn.Release(true)
	return nil
}

// Close shuts the provider down and stops an embedded server. Later calls
// return the first result.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		err := db.provider.Close()
		if db.server != nil {
			err = errors.Join(err, db.server.Stop(context.Background()))
		}
		db.closeErr = err
	})
	return db.closeErr
}
