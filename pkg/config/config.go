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

// Package config holds the structured backend configuration consumed by the
// connection provider, plus YAML file loading and keyring credential lookup.
//
// A Backend is a plain value. Providers copy it on construction, so changing a
// Backend afterwards has no effect on pools already built from it.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// Mode is how the backend process is reached.
type Mode string

const (
	// ModeFileEmbedded is an in-process engine over a local file (SQLite).
	ModeFileEmbedded Mode = "file-embedded"
	// ModeClientServer is a network server reached through host and port.
	ModeClientServer Mode = "client-server"
	// ModeEmbeddedServer is a server process started and owned by dbkit.
	ModeEmbeddedServer Mode = "embedded-server"
)

// Postgres driver choices.
const (
	PostgresDriverPgx = "pgx"
	PostgresDriverPQ  = "pq"
)

// Defaults applied by WithDefaults.
const (
	DefaultMaxTotal         = 10
	DefaultAcquireTimeout   = 30 * time.Second
	DefaultMaxIdleTime      = 5 * time.Minute
	DefaultHealthCheckAfter = 30 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 10 * time.Second
	DefaultMariaDBImage     = "mariadb:11.4"
)

// Pool bounds the connection provider.
type Pool struct {
	MinIdle          int           `yaml:"min_idle" mapstructure:"min_idle"`
	MaxTotal         int           `yaml:"max_total" mapstructure:"max_total"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout" mapstructure:"acquire_timeout"`
	MaxIdleTime      time.Duration `yaml:"max_idle_time" mapstructure:"max_idle_time"`
	HealthCheckAfter time.Duration `yaml:"health_check_after" mapstructure:"health_check_after"`
	BreakerThreshold int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// Embedded configures a server started by pkg/embedded.
type Embedded struct {
	Image        string        `yaml:"image" mapstructure:"image"`
	RootPassword string        `yaml:"root_password" mapstructure:"root_password"`
	StartTimeout time.Duration `yaml:"start_timeout" mapstructure:"start_timeout"`
	KeepRunning  bool          `yaml:"keep_running" mapstructure:"keep_running"`
}

// Backend identifies one target database.
type Backend struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Mode     Mode   `yaml:"mode" mapstructure:"mode"`
	Path     string `yaml:"path" mapstructure:"path"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`

	// DSN overrides the endpoint fields when set.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
	// Params are driver connection parameters (sslmode, charset, _pragma ...).
	Params map[string]string `yaml:"params" mapstructure:"params"`

	PostgresDriver string `yaml:"postgres_driver" mapstructure:"postgres_driver"`
	KeyringService string `yaml:"keyring_service" mapstructure:"keyring_service"`
	// EncryptionKey opens an encrypted SQLite file (requires the cgo build).
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`

	Pool     Pool     `yaml:"pool" mapstructure:"pool"`
	Embedded Embedded `yaml:"embedded" mapstructure:"embedded"`
}

// Kind returns the dialect kind named by Driver.
func (b Backend) Kind() (dialect.Kind, error) {
	return dialect.ParseKind(b.Driver)
}

// Address returns host:port for networked modes.
func (b Backend) Address() string {
	return net.JoinHostPort(b.Host, fmt.Sprint(b.Port))
}

// PrivateMemory reports whether b is an in-memory sqlite database that every
// connection would open as its own empty database.
func (b Backend) PrivateMemory() bool {
	if kind, err := b.Kind(); err != nil || kind != dialect.KindSQLite {
		return false
	}
	loc := b.Path
	if b.DSN != "" {
		loc = b.DSN
	}
	if loc == ":memory:" || strings.HasPrefix(loc, ":memory:?") {
		return true
	}
	return strings.HasPrefix(loc, "file:") && strings.Contains(loc, "mode=memory") && !strings.Contains(loc, "cache=shared")
}

// WithDefaults returns a copy with unset fields filled in. A private
// in-memory sqlite database defaults to a single connection.
func (b Backend) WithDefaults() Backend {
	out := b.clone()
	kind, err := b.Kind()
	if err == nil {
		out.Driver = string(kind)
	}

	if out.Mode == "" {
		switch kind {
		case dialect.KindSQLite:
			out.Mode = ModeFileEmbedded
		default:
			out.Mode = ModeClientServer
		}
	}
	if out.Port == 0 && out.Host != "" {
		switch kind {
		case dialect.KindMySQL, dialect.KindMariaDB:
			out.Port = 3306
		case dialect.KindPostgres:
			out.Port = 5432
		}
	}
	if kind == dialect.KindPostgres && out.PostgresDriver == "" {
		out.PostgresDriver = PostgresDriverPgx
	}
	if out.Name == "" {
		out.Name = string(kind)
	}

	p := &out.Pool
	if p.MaxTotal == 0 {
		p.MaxTotal = DefaultMaxTotal
		if out.PrivateMemory() {
			p.MaxTotal = 1
		}
	}
	if p.AcquireTimeout == 0 {
		p.AcquireTimeout = DefaultAcquireTimeout
	}
	if p.MaxIdleTime == 0 {
		p.MaxIdleTime = DefaultMaxIdleTime
	}
	if p.HealthCheckAfter == 0 {
		p.HealthCheckAfter = DefaultHealthCheckAfter
	}
	if p.BreakerThreshold == 0 {
		p.BreakerThreshold = DefaultBreakerThreshold
	}
	if p.BreakerCooldown == 0 {
		p.BreakerCooldown = DefaultBreakerCooldown
	}

	if out.Mode == ModeEmbeddedServer {
		if out.Embedded.Image == "" {
			out.Embedded.Image = DefaultMariaDBImage
		}
		if out.Embedded.StartTimeout == 0 {
			out.Embedded.StartTimeout = 2 * time.Minute
		}
	}
	return out
}

// Validate checks the configuration. Every failure is a Configuration error.
func (b Backend) Validate() error {
	kind, err := b.Kind()
	if err != nil {
		return err
	}

	var problems []string
	switch b.Mode {
	case ModeFileEmbedded:
		if kind != dialect.KindSQLite {
			problems = append(problems, fmt.Sprintf("mode %s is only available for sqlite, not %s", b.Mode, kind))
		}
		if b.Path == "" && b.DSN == "" {
			problems = append(problems, "path is required for file-embedded backends")
		}
		if b.PrivateMemory() && b.Pool.MaxTotal > 1 {
			problems = append(problems, fmt.Sprintf("pool.max_total must be 1 for a private in-memory database, got %d (use file::memory:?cache=shared to share it)", b.Pool.MaxTotal))
		}
	case ModeClientServer:
		if kind == dialect.KindSQLite {
			problems = append(problems, "sqlite has no client-server mode")
		}
		problems = append(problems, b.endpointProblems()...)
	case ModeEmbeddedServer:
		if kind != dialect.KindMariaDB {
			problems = append(problems, fmt.Sprintf("mode %s is only available for mariadb, not %s", b.Mode, kind))
		}
		// the endpoint is filled in once the server runs
		if b.Host != "" {
			problems = append(problems, b.endpointProblems()...)
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q", b.Mode))
	}

	if kind == dialect.KindPostgres {
		switch b.PostgresDriver {
		case "", PostgresDriverPgx, PostgresDriverPQ:
		default:
			problems = append(problems, fmt.Sprintf("unknown postgres_driver %q (expected pgx or pq)", b.PostgresDriver))
		}
	}
	problems = append(problems, b.Pool.problems()...)

	if len(problems) > 0 {
		return sqlerr.Newf(sqlerr.KindConfiguration, "validate config", "backend %q: %s", b.Name, strings.Join(problems, "; "))
	}
	return nil
}

func (b Backend) endpointProblems() []string {
	if b.DSN != "" {
		return nil
	}
	var problems []string
	if b.Host == "" {
		problems = append(problems, "host is required")
	} else if strings.ContainsAny(b.Host, " /?#@") {
		problems = append(problems, fmt.Sprintf("malformed host %q", b.Host))
	}
	if b.Port < 0 || b.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", b.Port))
	}
	if b.User == "" {
		problems = append(problems, "user is required")
	}
	if b.Password == "" && b.KeyringService == "" {
		problems = append(problems, "password or keyring_service is required")
	}
	return problems
}

func (p Pool) problems() []string {
	var problems []string
	if p.MaxTotal < 1 {
		problems = append(problems, fmt.Sprintf("pool.max_total must be at least 1, got %d", p.MaxTotal))
	}
	if p.MinIdle < 0 {
		problems = append(problems, fmt.Sprintf("pool.min_idle must not be negative, got %d", p.MinIdle))
	}
	if p.MinIdle > p.MaxTotal {
		problems = append(problems, fmt.Sprintf("pool.min_idle (%d) exceeds pool.max_total (%d)", p.MinIdle, p.MaxTotal))
	}
	if p.AcquireTimeout < 0 || p.MaxIdleTime < 0 || p.HealthCheckAfter < 0 || p.BreakerCooldown < 0 {
		problems = append(problems, "pool durations must not be negative")
	}
	if p.BreakerThreshold < 0 {
		problems = append(problems, "pool.breaker_threshold must not be negative")
	}
	return problems
}

func (b Backend) clone() Backend {
	out := b
	if b.Params != nil {
		out.Params = make(map[string]string, len(b.Params))
		for k, v := range b.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Redacted returns a copy safe for logging.
func (b Backend) Redacted() Backend {
	out := b.clone()
	if out.Password != "" {
		out.Password = "****"
	}
	if out.EncryptionKey != "" {
		out.EncryptionKey = "****"
	}
	if out.DSN != "" {
		out.DSN = redactDSN(out.DSN)
	}
	if out.Embedded.RootPassword != "" {
		out.Embedded.RootPassword = "****"
	}
	return out
}

// redactDSN hides the password in user:pass@ and password=... forms.
func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		head := dsn[:at]
		start := 0
		if i := strings.LastIndex(head, "//"); i >= 0 {
			start = i + 2
		}
		if colon := strings.Index(head[start:], ":"); colon >= 0 {
			return head[:start+colon+1] + "****" + dsn[at:]
		}
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=****"
		}
	}
	return strings.Join(fields, " ")
}
