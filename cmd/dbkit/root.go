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
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/dbkit/internal/log"
	"github.com/teradata-labs/dbkit/internal/version"
	"github.com/teradata-labs/dbkit/pkg/config"
	"github.com/teradata-labs/dbkit/pkg/dbkit"
)

// Settings holds the CLI configuration. Priority: flags > DBKIT_* env vars >
// backends file > defaults.
type Settings struct {
	ConfigFile string        `mapstructure:"config"`
	Backend    string        `mapstructure:"backend"`
	Driver     string        `mapstructure:"driver"`
	Path       string        `mapstructure:"path"`
	DSN        string        `mapstructure:"dsn"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	Database   string        `mapstructure:"database"`
	Timeout    time.Duration `mapstructure:"timeout"`
	LogLevel   string        `mapstructure:"log_level"`
	LogFormat  string        `mapstructure:"log_format"`
}

// app carries state shared by the subcommands of one invocation.
type app struct {
	v        *viper.Viper
	settings Settings
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "dbkit",
		Short: "Run SQL against SQLite, MySQL, MariaDB and PostgreSQL backends",
		Long: heredoc.Doc(`
			dbkit talks to one configured backend at a time.

			The backend comes from a backends file (--config, default
			$DBKIT_DATA_DIR/dbkit.yaml) selected by --backend, or entirely
			from flags when --driver is given. Flags override DBKIT_* environment
			variables, which override the file.
		`),
		Version:       version.Get(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", config.DefaultConfigFile(), "backends file")
	flags.StringP("backend", "b", "", "backend name in the backends file")
	flags.String("driver", "", "driver when the backend is given by flags (sqlite, mysql, mariadb, postgres)")
	flags.String("path", "", "SQLite database file")
	flags.String("dsn", "", "driver DSN, overrides the endpoint flags")
	flags.String("host", "", "server host")
	flags.Int("port", 0, "server port")
	flags.String("user", "", "user name")
	flags.String("password", "", "password (prefer DBKIT_PASSWORD or the keyring)")
	flags.String("database", "", "database name")
	flags.Duration("timeout", 30*time.Second, "overall command timeout")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	for _, name := range []string{"config", "backend", "driver", "path", "dsn", "host", "port", "user", "password", "database", "timeout"} {
		_ = a.v.BindPFlag(name, flags.Lookup(name))
	}
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log_format", flags.Lookup("log-format"))
	a.v.SetEnvPrefix("DBKIT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newPingCmd(a),
		newSchemaCmd(a),
		newSelectCmd(a),
		newRenderCmd(),
	)
	return root
}

func (a *app) init() error {
	if err := a.v.Unmarshal(&a.settings); err != nil {
		return err
	}
	logger, err := log.New(a.settings.LogLevel, a.settings.LogFormat)
	if err != nil {
		return err
	}
	a.logger = logger
	log.SetLogger(logger)
	return nil
}

// backend resolves the target backend from the settings.
func (a *app) backend() (config.Backend, error) {
	s := a.settings
	var b config.Backend
	if s.Driver != "" && s.Backend == "" {
		b = config.Backend{Name: "cli", Driver: s.Driver}
	} else {
		backends, err := config.LoadFile(s.ConfigFile)
		if err != nil {
			return config.Backend{}, err
		}
		if b, err = config.Find(backends, s.Backend); err != nil {
			return config.Backend{}, err
		}
	}

	if s.Path != "" {
		b.Path = s.Path
	}
	if s.DSN != "" {
		b.DSN = s.DSN
	}
	if s.Host != "" {
		b.Host = s.Host
	}
	if s.Port != 0 {
		b.Port = s.Port
	}
	if s.User != "" {
		b.User = s.User
	}
	if s.Password != "" {
		b.Password = s.Password
	}
	if s.Database != "" {
		b.Database = s.Database
	}
	return b, nil
}

// open connects to the configured backend. The returned context carries
// the command timeout.
func (a *app) open(cmd *cobra.Command) (context.Context, *dbkit.DB, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.settings.Timeout)
	b, err := a.backend()
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	db, err := dbkit.Open(ctx, b, dbkit.WithLogger(a.logger))
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, db, func() {
		if err := db.Close(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
		cancel()
	}, nil
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("Error:", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return 2
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(Execute(context.Background()))
}
