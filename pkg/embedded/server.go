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

// Package embedded runs a MariaDB server owned by the calling process, for
// backends configured in embedded-server mode.
//
// The server is a Docker container bound to a random loopback port. Start
// blocks until the server accepts connections and returns the backend
// configuration that reaches it; Stop removes the container.
package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/dbkit/internal/log"
	"github.com/teradata-labs/dbkit/pkg/config"
	"github.com/teradata-labs/dbkit/pkg/dialect"
	"github.com/teradata-labs/dbkit/pkg/pool"
	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

const (
	mariadbPort = "3306"
	loopback    = "127.0.0.1"

	// LabelBackend marks containers started by this package.
	LabelBackend = "dev.dbkit.backend"

	defaultUser     = "dbkit"
	defaultDatabase = "dbkit"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithDockerHost sets the daemon endpoint. DOCKER_HOST or the first existing
// local socket is used otherwise.
func WithDockerHost(host string) Option {
	return func(s *Server) { s.dockerHost = host }
}

// Server is one embedded MariaDB instance.
type Server struct {
	cfg        config.Backend
	dockerHost string
	logger     *zap.Logger

	mu          sync.Mutex
	cli         *client.Client
	containerID string
	running     config.Backend
}

// New prepares a server for cfg, which must be a MariaDB backend in
// embedded-server mode. Nothing is started until Start.
func New(cfg config.Backend, opts ...Option) (*Server, error) {
	cfg = cfg.WithDefaults()
	if kind, err := cfg.Kind(); err != nil {
		return nil, err
	} else if kind != dialect.KindMariaDB || cfg.Mode != config.ModeEmbeddedServer {
		return nil, sqlerr.Newf(sqlerr.KindConfiguration, "embedded", "backend %q is %s in %s mode, want mariadb in %s mode",
			cfg.Name, kind, cfg.Mode, config.ModeEmbeddedServer)
	}

	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Or(s.logger).With(zap.String("backend", cfg.Name))
	if s.dockerHost == "" {
		s.dockerHost = DetectDockerHost()
	}
	return s, nil
}

// Start launches the container and waits until MariaDB answers, at most
// embedded.start_timeout. It returns cfg with the endpoint and credentials
// of the running server filled in. Calling Start on a running server returns
// the same configuration.
func (s *Server) Start(ctx context.Context) (config.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.containerID != "" {
		return s.running, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Embedded.StartTimeout)
	defer cancel()

	cli, err := client.NewClientWithOpts(
		client.WithHost(s.dockerHost),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return config.Backend{}, sqlerr.New(sqlerr.KindConfiguration, "embedded", fmt.Errorf("failed to create Docker client: %w", err))
	}
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return config.Backend{}, sqlerr.New(sqlerr.KindConnectionLost, "embedded", fmt.Errorf("failed to ping Docker daemon at %s: %w", s.dockerHost, err))
	}
	s.cli = cli

	backend := s.credentials()
	if err := s.ensureImage(ctx); err != nil {
		s.closeClient()
		return config.Backend{}, err
	}
	id, port, err := s.run(ctx, backend)
	if err != nil {
		s.closeClient()
		return config.Backend{}, err
	}
	s.containerID = id
	backend.Host = loopback
	backend.Port = port

	if err := s.waitReady(ctx, backend); err != nil {
		s.logger.Error("embedded server did not become ready", zap.String("container_id", id), zap.Error(err))
		_ = s.removeLocked(context.WithoutCancel(ctx))
		return config.Backend{}, err
	}

	s.running = backend
	s.logger.Info("embedded server ready",
		zap.String("container_id", shortID(id)),
		zap.String("image", s.cfg.Embedded.Image),
		zap.Int("port", port))
	return backend, nil
}

// Backend returns the configuration of the running server, or the zero value
// before Start.
func (s *Server) Backend() config.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop removes the container, unless embedded.keep_running is set. It is a
// no-op on a server that is not running.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.containerID == "" {
		return nil
	}
	if s.cfg.Embedded.KeepRunning {
		s.logger.Info("leaving embedded server running", zap.String("container_id", shortID(s.containerID)))
		s.containerID = ""
		s.closeClient()
		return nil
	}
	return s.removeLocked(ctx)
}

// credentials fills user, password and database, generating what the
// configuration leaves empty.
func (s *Server) credentials() config.Backend {
	b := s.cfg
	if b.User == "" {
		b.User = defaultUser
	}
	if b.Password == "" {
		b.Password = uuid.NewString()
	}
	if b.Database == "" {
		b.Database = defaultDatabase
	}
	if b.Embedded.RootPassword == "" {
		b.Embedded.RootPassword = uuid.NewString()
	}
	return b
}

func (s *Server) ensureImage(ctx context.Context) error {
	ref := s.cfg.Embedded.Image
	if _, _, err := s.cli.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	} else if !errdefs.IsNotFound(err) {
		return sqlerr.New(sqlerr.KindConnectionLost, "embedded", fmt.Errorf("failed to inspect image %s: %w", ref, err))
	}

	s.logger.Info("pulling image", zap.String("image", ref))
	rc, err := s.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return sqlerr.New(sqlerr.KindConnectionLost, "embedded", fmt.Errorf("failed to pull image %s: %w", ref, err))
	}
	defer rc.Close()
	// the pull only completes once its progress stream is drained
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return sqlerr.New(sqlerr.KindConnectionLost, "embedded", fmt.Errorf("failed to pull image %s: %w", ref, err))
	}
	return nil
}

// run creates and starts the container and returns its id and host port.
func (s *Server) run(ctx context.Context, b config.Backend) (string, int, error) {
	port, err := nat.NewPort("tcp", mariadbPort)
	if err != nil {
		return "", 0, err
	}

	containerConfig := &container.Config{
		Image: s.cfg.Embedded.Image,
		Env: []string{
			"MARIADB_ROOT_PASSWORD=" + b.Embedded.RootPassword,
			"MARIADB_DATABASE=" + b.Database,
			"MARIADB_USER=" + b.User,
			"MARIADB_PASSWORD=" + b.Password,
		},
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       map[string]string{LabelBackend: s.cfg.Name},
	}
	hostConfig := &container.HostConfig{
		// an empty host port lets the daemon pick a free one
		PortBindings: nat.PortMap{port: []nat.PortBinding{{HostIP: loopback}}},
	}

	name := fmt.Sprintf("dbkit-%s-%s", s.cfg.Name, uuid.NewString()[:8])
	s.logger.Debug("creating container", zap.String("name", name))
	resp, err := s.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return "", 0, sqlerr.New(sqlerr.KindConnectionLost, "embedded", fmt.Errorf("failed to create container: %w", err))
	}
	for _, w := range resp.Warnings {
		s.logger.Warn("container create warning", zap.String("warning", w))
	}

	fail := func(err error) (string, int, error) {
		_ = s.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
		return "", 0, err
	}
	if err := s.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fail(sqlerr.New(sqlerr.KindConnectionLost, "embedded", fmt.Errorf("failed to start container: %w", err)))
	}

	inspect, err := s.cli.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return fail(sqlerr.New(sqlerr.KindConnectionLost, "embedded", fmt.Errorf("failed to inspect container: %w", err)))
	}
	hostPort, err := boundPort(inspect.NetworkSettings.Ports, port)
	if err != nil {
		return fail(sqlerr.New(sqlerr.KindConnectionLost, "embedded", err))
	}
	s.logger.Debug("container started", zap.String("container_id", shortID(resp.ID)), zap.Int("port", hostPort))
	return resp.ID, hostPort, nil
}

func boundPort(ports nat.PortMap, port nat.Port) (int, error) {
	for _, binding := range ports[port] {
		if binding.HostPort == "" {
			continue
		}
		n, err := nat.ParsePort(binding.HostPort)
		if err != nil {
			return 0, fmt.Errorf("container port %s bound to %q: %w", port, binding.HostPort, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("container port %s is not published", port)
}

// waitReady pings the server with exponential backoff until it answers or
// ctx ends.
func (s *Server) waitReady(ctx context.Context, b config.Backend) error {
	mcfg, err := pool.MySQLConfig(b)
	if err != nil {
		return err
	}
	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return sqlerr.New(sqlerr.KindConfiguration, "embedded", err)
	}
	db := sql.OpenDB(connector)
	defer db.Close()

	delay := 250 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		s.logger.Debug("embedded server not ready", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return sqlerr.Newf(sqlerr.KindConnectionTimeout, "embedded",
				"server not ready within %s: %w", s.cfg.Embedded.StartTimeout, err)
		}
		if delay < 4*time.Second {
			delay *= 2
		}
	}
}

func (s *Server) removeLocked(ctx context.Context) error {
	defer s.closeClient()
	id := s.containerID
	s.containerID = ""
	s.running = config.Backend{}

	s.logger.Debug("removing container", zap.String("container_id", shortID(id)))
	if err := s.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", shortID(id), err)
	}
	s.logger.Info("embedded server removed", zap.String("container_id", shortID(id)))
	return nil
}

func (s *Server) closeClient() {
	if s.cli != nil {
		_ = s.cli.Close()
		s.cli = nil
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// DefaultDockerSocketPaths lists the sockets probed by DetectDockerHost, in
// order.
func DefaultDockerSocketPaths() []string {
	paths := []string{"/var/run/docker.sock"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			home+"/.docker/run/docker.sock",
			home+"/.colima/default/docker.sock",
			home+"/.rd/docker.sock",
		)
	}
	return paths
}

// DetectDockerHost returns DOCKER_HOST when set, else the first existing
// socket of DefaultDockerSocketPaths.
func DetectDockerHost() string {
	return detectDockerHost(DefaultDockerSocketPaths())
}

func detectDockerHost(paths []string) string {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return host
	}
	for _, sock := range paths {
		if _, err := os.Stat(sock); err == nil {
			return "unix://" + sock
		}
	}
	return "unix:///var/run/docker.sock"
}
