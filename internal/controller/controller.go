// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/config"
	"github.com/tombee/bridgeshell/internal/controller/api"
	"github.com/tombee/bridgeshell/internal/controller/listener"
	"github.com/tombee/bridgeshell/internal/lifecycle"
	internallog "github.com/tombee/bridgeshell/internal/log"
	"github.com/tombee/bridgeshell/internal/tracing"
	"github.com/tombee/bridgeshell/internal/window"
)

// ServiceName identifies the host in traces and the lifecycle journal.
const ServiceName = "bridgeshell"

// Options contains controller options set at build time.
type Options struct {
	Version   string
	Commit    string
	BuildDate string

	// ConfigPath is the file the configuration was loaded from. When set
	// and watching is enabled, bridge changes are picked up on next launch.
	ConfigPath string

	// Args are recorded in the lifecycle journal on start.
	Args []string

	// Logger overrides the logger built from the log configuration.
	Logger *slog.Logger
}

// Controller is the bridgeshell host: it owns the bridge supervisor, the
// window delegate and the API server.
type Controller struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	journal    *lifecycle.Journal
	pidFile    *lifecycle.PIDFile
	launcher   *bridge.ExecLauncher
	store      *bridge.Store
	supervisor *bridge.Supervisor
	channel    *window.Channel
	server     *http.Server
	tracing    *tracing.Provider

	// streams is the base context of every request; cancelling it ends
	// event streams so that server shutdown does not wait on them.
	streams       context.Context
	cancelStreams context.CancelFunc

	fatal    chan error
	ready    chan struct{}
	addr     net.Addr
	stopOnce sync.Once
	ownsPID  bool

	mu        sync.Mutex
	started   bool
	startedAt time.Time
}

// New creates a controller. Nothing is launched or bound until Start.
func New(cfg *config.Config, opts Options) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	logger := opts.Logger
	if logger == nil {
		logCfg := internallog.FromEnv().WithFileDefaults(cfg.Log.Level, cfg.Log.Format, cfg.Log.AddSource)
		logger = internallog.New(logCfg)
	}
	logger = internallog.WithComponent(logger, "controller")

	c := &Controller{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		journal: lifecycle.NewJournal(cfg.Controller.LifecycleLog),
		pidFile: lifecycle.NewPIDFile(cfg.Controller.PIDFile),
		store:   bridge.NewStore(),
		fatal:   make(chan error, 1),
		ready:   make(chan struct{}),
	}
	c.streams, c.cancelStreams = context.WithCancel(context.Background())

	output := bridge.NewOutput(
		bridge.WithOutputLogger(internallog.WithComponent(logger, "bridge")),
		bridge.WithLogCapacity(cfg.Bridge.OutputBuffer),
		bridge.WithRecorder(c.journal),
	)
	c.launcher = bridge.NewExecLauncher(cfg.Bridge.LaunchConfig(), output)
	c.supervisor = bridge.NewSupervisor(c.store, c.launcher,
		bridge.WithLogger(internallog.WithComponent(logger, "supervisor")),
		bridge.WithOutput(output),
		bridge.WithTeardown(cfg.Bridge.Teardown()),
		bridge.WithFatalHandler(c.onFatal),
	)

	registry := window.NewRegistry()
	c.channel = window.NewChannel(registry, window.MainLabel)
	delegate := window.NewDelegate(registry, internallog.WithComponent(logger, "window"))

	var limiter *rate.Limiter
	if cfg.Controller.RestartRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Controller.RestartRate), cfg.Controller.RestartBurst)
	}

	router := api.NewRouter(api.RouterConfig{
		Version:        opts.Version,
		Commit:         opts.Commit,
		BuildDate:      opts.BuildDate,
		Bridge:         c.supervisor,
		Output:         output,
		Window:         delegate,
		Channel:        c.channel,
		Journal:        c.journal,
		RestartLimiter: limiter,
		Metrics:        cfg.Observability.Metrics == nil || *cfg.Observability.Metrics,
		Health:         c.healthHandler(),
		Logger:         logger,
	})

	c.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return c.streams },
	}
	return c, nil
}

// healthHandler serves /live and /ready. The host is live while its handle
// store is usable and ready while the bridge is running.
func (c *Controller) healthHandler() healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("bridge-store", func() error {
		if c.store.Poisoned() {
			return bridge.ErrStorePoisoned
		}
		return nil
	})
	h.AddReadinessCheck("bridge", func() error {
		st, err := c.supervisor.Status(context.Background())
		if err != nil {
			return err
		}
		if st.State != bridge.StateRunning {
			return fmt.Errorf("bridge is %s", st)
		}
		return nil
	})
	return h
}

// onFatal is the supervisor's fatal handler. It stops the host.
func (c *Controller) onFatal(err error) {
	select {
	case c.fatal <- err:
	default:
	}
}

// Supervisor returns the bridge supervisor.
func (c *Controller) Supervisor() *bridge.Supervisor {
	return c.supervisor
}

// Ready is closed once the API is accepting connections.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// Addr returns the bound listener address. It is nil before Ready.
func (c *Controller) Addr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Start acquires the PID file, launches the bridge, and serves the API until
// ctx is cancelled or the supervisor reports a fatal error. Call Shutdown
// afterwards to tear the bridge down.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("controller already started")
	}
	c.started = true
	c.startedAt = time.Now()
	c.mu.Unlock()

	pid := os.Getpid()

	provider, err := tracing.Setup(ctx, tracing.FromConfig(c.cfg.Observability.Tracing, ServiceName, c.opts.Version))
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	c.tracing = provider

	stale, err := c.pidFile.Acquire(pid)
	if err != nil {
		return fmt.Errorf("failed to acquire PID file: %w", err)
	}
	c.ownsPID = true
	if stale > 0 {
		c.logger.Warn("removed stale PID file", "stale_pid", stale, "path", c.pidFile.Path())
		c.recordJournal(c.journal.StalePID(stale, "process not running"))
	}
	c.recordJournal(c.journal.HostStarted(pid, c.opts.Version, c.opts.Args, c.opts.ConfigPath))

	ln, err := listener.New(c.cfg.Controller.Listen)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	c.mu.Lock()
	c.addr = ln.Addr()
	c.mu.Unlock()

	// A failed initial launch leaves the store empty; restart retries it.
	if err := c.supervisor.Start(ctx); err != nil {
		if errors.Is(err, bridge.ErrStorePoisoned) {
			ln.Close()
			return err
		}
		c.logger.Error("failed to spawn bridge", internallog.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})

	if c.watchConfig() {
		watcher, err := config.NewWatcher(config.WatcherConfig{
			Path:     c.opts.ConfigPath,
			OnReload: c.reload,
			Logger:   internallog.WithComponent(c.logger, "config"),
		})
		if err != nil {
			c.logger.Warn("config watcher disabled", internallog.Error(err))
		} else {
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	g.Go(func() error {
		var err error
		select {
		case <-gctx.Done():
		case err = <-c.fatal:
			c.logger.Error("stopping host after fatal bridge error", internallog.Error(err))
		}
		c.stopServer()
		return err
	})

	c.logger.Info("controller started",
		"address", ln.Addr().String(),
		"version", c.opts.Version,
		internallog.PIDKey, pid)
	c.recordJournal(c.journal.HostReady(pid, 1, time.Since(c.startedAt)))
	close(c.ready)

	return g.Wait()
}

func (c *Controller) watchConfig() bool {
	if c.opts.ConfigPath == "" {
		return false
	}
	w := c.cfg.Controller.WatchConfig
	return w == nil || *w
}

// reload applies a changed bridge section to the next launch. The running
// bridge is left alone until it is restarted.
func (c *Controller) reload(cfg *config.Config) {
	c.launcher.SetConfig(cfg.Bridge.LaunchConfig())
	c.logger.Info("bridge configuration reloaded, applies on next restart",
		"command", cfg.Bridge.Command)
}

// stopServer ends event streams and shuts the API server down.
func (c *Controller) stopServer() {
	c.stopOnce.Do(func() {
		c.cancelStreams()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Controller.ShutdownTimeout)
		defer cancel()
		if err := c.server.Shutdown(ctx); err != nil {
			c.logger.Error("HTTP server shutdown error", internallog.Error(err))
		}
	})
}

// Shutdown tears the bridge down and releases host resources. It is safe
// to call after Start has returned for any reason.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	start := time.Now()
	pid := os.Getpid()

	c.stopServer()

	err := c.supervisor.Shutdown(ctx)
	if err != nil {
		c.logger.Error("bridge teardown failed", internallog.Error(err))
	}

	if c.ownsPID {
		if rmErr := c.pidFile.Remove(); rmErr != nil {
			c.logger.Error("failed to remove PID file",
				internallog.Error(rmErr),
				slog.String("path", c.pidFile.Path()))
		}
		c.ownsPID = false
	}

	if path := c.cfg.Controller.Listen.SocketPath; c.addr != nil && path != "" && c.cfg.Controller.Listen.TCPAddr == "" {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			c.logger.Error("failed to remove socket file",
				internallog.Error(rmErr),
				slog.String("path", path))
		}
	}

	if c.tracing != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if ferr := c.tracing.ForceFlush(flushCtx); ferr != nil {
			c.logger.Warn("failed to flush pending spans", internallog.Error(ferr))
		}
		if serr := c.tracing.Shutdown(flushCtx); serr != nil {
			c.logger.Error("OpenTelemetry provider shutdown error", internallog.Error(serr))
		}
		cancel()
	}

	c.recordJournal(c.journal.HostStopped(pid, time.Since(start), err))
	c.started = false
	c.logger.Info("controller stopped", internallog.DurationKey, time.Since(start).Milliseconds())
	return err
}

func (c *Controller) recordJournal(err error) {
	if err != nil {
		c.logger.Warn("failed to write lifecycle journal", internallog.Error(err))
	}
}
