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

// Package pool implements the connection provider: a bounded pool of physical
// connections to one configured backend.
//
// Capacity is a FIFO weighted semaphore sized to pool.max_total, so Acquire
// beyond the bound waits instead of opening more connections, and every
// Release wakes at most one waiter. The idle list is the only shared mutable
// state; its mutex is never held across a network round trip.
//
//	p, err := pool.New(ctx, cfg, pool.WithLogger(logger))
//	conn, err := p.Acquire(ctx, 5*time.Second)
//	defer conn.Release(true)
package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/teradata-labs/dbkit/internal/log"
	"github.com/teradata-labs/dbkit/pkg/config"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// ErrClosed is wrapped by errors from a closed provider.
var ErrClosed = errors.New("provider closed")

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the event sink. Defaults to the process logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithAdapter overrides the adapter registered for the backend's kind.
func WithAdapter(a Adapter) Option {
	return func(p *Provider) { p.adapter = a }
}

// Provider lends connections to one backend.
type Provider struct {
	cfg        config.Backend
	dialect    dialect.Dialect
	classifier *sqlerr.Classifier
	adapter    Adapter
	db         *sql.DB
	sem        *semaphore.Weighted
	breaker    *breaker
	logger     *zap.Logger

	mu     sync.Mutex
	idle   []*Conn // most recently released last
	inUse  int
	closed bool

	created   atomic.Int64
	destroyed atomic.Int64
	waits     atomic.Int64
	timeouts  atomic.Int64
	waitNanos atomic.Int64

	reaperCancel context.CancelFunc
	reaperDone   chan struct{}
}

// New validates cfg, opens the driver handle and pre-warms MinIdle
// connections. The configuration is copied; later changes to cfg have no
// effect on the provider.
func New(ctx context.Context, cfg config.Backend, opts ...Option) (*Provider, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolved, err := config.ResolveCredentials(cfg)
	if err != nil {
		return nil, err
	}
	cfg = resolved

	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}
	d, err := dialect.For(kind)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:     cfg,
		dialect: d,
		sem:     semaphore.NewWeighted(int64(cfg.Pool.MaxTotal)),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.Or(p.logger).With(zap.String("backend", cfg.Name), zap.String("dialect", d.Name()))
	p.classifier = sqlerr.NewClassifier(d.Name(), p.logger)
	p.breaker = newBreaker(cfg.Pool.BreakerThreshold, cfg.Pool.BreakerCooldown, d.Name(), p.logger)

	if p.adapter == nil {
		if p.adapter, err = adapterFor(kind); err != nil {
			return nil, err
		}
	}
	db, err := p.adapter.Open(cfg)
	if err != nil {
		if sqlerr.KindOf(err) != sqlerr.KindUnclassified {
			return nil, err
		}
		return nil, sqlerr.New(sqlerr.KindConfiguration, "open", err)
	}
	// database/sql keeps nothing idle; this provider is the pool
	db.SetMaxOpenConns(cfg.Pool.MaxTotal)
	db.SetMaxIdleConns(-1)
	db.SetConnMaxLifetime(0)
	p.db = db

	for i := 0; i < cfg.Pool.MinIdle; i++ {
		c, err := p.connect(ctx)
		if err != nil {
			p.closeIdle(p.drainIdle())
			_ = db.Close()
			return nil, err
		}
		c.lastUsed = time.Now()
		p.idle = append(p.idle, c)
	}

	p.startReaper()
	p.logger.Info("connection provider created",
		zap.Int("min_idle", cfg.Pool.MinIdle),
		zap.Int("max_total", cfg.Pool.MaxTotal),
		zap.Duration("acquire_timeout", cfg.Pool.AcquireTimeout))
	return p, nil
}

// Dialect returns the backend's descriptor.
func (p *Provider) Dialect() dialect.Dialect { return p.dialect }

// Classifier returns the backend's error classifier.
func (p *Provider) Classifier() *sqlerr.Classifier { return p.classifier }

// Config returns the (redacted) configuration the provider was built from.
func (p *Provider) Config() config.Backend { return p.cfg.Redacted() }

// Logger returns the provider's logger.
func (p *Provider) Logger() *zap.Logger { return p.logger }

// Acquire lends a connection, waiting up to timeout for capacity. A timeout
// of zero uses pool.acquire_timeout. Waiters are served in FIFO order.
func (p *Provider) Acquire(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if p.isClosed() {
		return nil, sqlerr.New(sqlerr.KindConnectionLost, "acquire", ErrClosed)
	}
	if timeout <= 0 {
		timeout = p.cfg.Pool.AcquireTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !p.sem.TryAcquire(1) {
		p.waits.Add(1)
		start := time.Now()
		err := p.sem.Acquire(waitCtx, 1)
		p.waitNanos.Add(int64(time.Since(start)))
		if err != nil {
			return nil, p.waitError(ctx, timeout, err)
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, sqlerr.New(sqlerr.KindConnectionLost, "acquire", ErrClosed)
	}
	p.inUse++
	p.mu.Unlock()

	c, err := p.take(waitCtx)
	if err != nil {
		p.mu.Lock()
		p.inUse--
		lastOut := p.closed && p.inUse == 0
		p.mu.Unlock()
		p.sem.Release(1)
		if lastOut {
			_ = p.closeDB()
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			p.timeouts.Add(1)
			return nil, sqlerr.Newf(sqlerr.KindConnectionTimeout, "acquire", "connect did not finish within %s: %w", timeout, err)
		}
		return nil, err
	}

	c.lent.Store(true)
	return c, nil
}

func (p *Provider) waitError(ctx context.Context, timeout time.Duration, err error) error {
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return sqlerr.New(sqlerr.KindUnclassified, "acquire", ctx.Err())
	}
	p.timeouts.Add(1)
	p.logger.Debug("acquire timed out", zap.Duration("timeout", timeout), zap.Int("max_total", p.cfg.Pool.MaxTotal))
	return &sqlerr.Error{
		Kind:    sqlerr.KindConnectionTimeout,
		Op:      "acquire",
		Backend: p.dialect.Name(),
		Err:     errors.Join(errors.New("no connection available within "+timeout.String()), err),
	}
}

// take pops an idle connection, health-checking stale ones, or opens a new
// one. The caller holds a semaphore slot.
func (p *Provider) take(ctx context.Context) (*Conn, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, sqlerr.New(sqlerr.KindConnectionLost, "acquire", ErrClosed)
		}
		n := len(p.idle)
		if n == 0 {
			p.mu.Unlock()
			return p.connect(ctx)
		}
		c := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		lastUsed := c.lastUsed
		p.mu.Unlock()

		if p.cfg.Pool.HealthCheckAfter > 0 && time.Since(lastUsed) > p.cfg.Pool.HealthCheckAfter {
			if err := c.Ping(ctx); err != nil {
				p.destroy(c, true, "failed health check")
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
		}
		return c, nil
	}
}

// connect opens a physical connection and runs the dialect's session setup.
func (p *Provider) connect(ctx context.Context) (*Conn, error) {
	if err := p.breaker.allow(); err != nil {
		return nil, err
	}

	raw, err := p.db.Conn(ctx)
	if err != nil {
		p.breaker.failure(err)
		return nil, p.connectError(ctx, err)
	}
	for _, stmt := range p.dialect.SessionInit() {
		if _, err := raw.ExecContext(ctx, stmt); err != nil {
			_ = raw.Raw(func(any) error { return driver.ErrBadConn })
			_ = raw.Close()
			p.breaker.failure(err)
			return nil, p.connectError(ctx, err)
		}
	}
	p.breaker.success()

	now := time.Now()
	c := &Conn{id: uuid.New(), raw: raw, provider: p, created: now, lastUsed: now}
	p.created.Add(1)
	p.logger.Debug("connection created", zap.String("conn_id", c.ID()))
	return c, nil
}

func (p *Provider) connectError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return p.classifier.Classify("connect", err)
}

// Release returns a lent connection. Healthy connections go back to the idle
// list; unhealthy ones are destroyed and replaced lazily by a later Acquire.
// Releasing the same lend twice is a logged no-op.
func (p *Provider) Release(c *Conn, healthy bool) {
	if c == nil {
		return
	}
	if !c.lent.CompareAndSwap(true, false) {
		p.logger.Warn("connection released twice", zap.String("conn_id", c.ID()))
		return
	}

	p.mu.Lock()
	p.inUse--
	closed := p.closed
	lastOut := closed && p.inUse == 0
	if healthy && !closed {
		c.lastUsed = time.Now()
		p.idle = append(p.idle, c)
		p.mu.Unlock()
	} else {
		p.mu.Unlock()
		reason := "released unhealthy"
		if closed {
			reason = "provider closed"
		}
		p.destroy(c, !healthy, reason)
	}
	p.sem.Release(1)

	if lastOut {
		_ = p.closeDB()
	}
}

func (p *Provider) destroy(c *Conn, bad bool, reason string) {
	if err := c.discard(bad); err != nil {
		p.logger.Debug("closing connection failed", zap.String("conn_id", c.ID()), zap.Error(err))
	}
	p.destroyed.Add(1)
	p.logger.Debug("connection destroyed",
		zap.String("conn_id", c.ID()),
		zap.String("reason", reason),
		zap.Duration("age", time.Since(c.created)))
}

// Close drains the idle connections. Connections currently lent stay usable
// and are closed when released. Close is idempotent.
func (p *Provider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	lent := p.inUse
	p.mu.Unlock()

	p.stopReaper()
	p.closeIdle(idle)
	p.logger.Info("connection provider closed", zap.Int("closed_idle", len(idle)), zap.Int("still_lent", lent))

	if lent == 0 {
		return p.closeDB()
	}
	return nil
}

func (p *Provider) closeIdle(idle []*Conn) {
	for _, c := range idle {
		p.destroy(c, false, "provider closed")
	}
}

func (p *Provider) drainIdle() []*Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := p.idle
	p.idle = nil
	return idle
}

func (p *Provider) closeDB() error {
	if err := p.db.Close(); err != nil {
		return p.classifier.Classify("close", err)
	}
	return nil
}

func (p *Provider) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
