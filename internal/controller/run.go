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
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/bridgeshell/internal/config"
	"github.com/tombee/bridgeshell/internal/lifecycle"
	"github.com/tombee/bridgeshell/internal/log"
)

// RunOptions configures host execution.
type RunOptions struct {
	Version   string
	Commit    string
	BuildDate string

	// ConfigPath loads a specific file instead of the XDG default.
	ConfigPath string

	// Config overrides
	BridgeCommand string
	BridgeArgs    []string
	SocketPath    string
	TCPAddr       string
	AllowRemote   bool
}

// Run starts the host and blocks until it is signalled or fails. It is the
// entry point for both `bridgeshell serve` and bridgeshelld.
func Run(opts RunOptions) error {
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, path, err := loadConfig(opts.ConfigPath)
	if err != nil {
		logger.Error("failed to load config", log.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}
	ApplyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Controller.Listen.AllowRemote && cfg.Controller.Listen.TCPAddr != "" {
		logger.Warn("allow_remote is enabled; the API accepts connections from any network address and has no authentication")
	}

	logger = log.New(log.FromEnv().WithFileDefaults(cfg.Log.Level, cfg.Log.Format, cfg.Log.AddSource))
	slog.SetDefault(logger)

	c, err := New(cfg, Options{
		Version:    opts.Version,
		Commit:     opts.Commit,
		BuildDate:  opts.BuildDate,
		ConfigPath: path,
		Args:       os.Args[1:],
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := c.Start(ctx)
	if ctx.Err() != nil {
		logger.Info("received shutdown signal")
	}

	// Teardown gets its own budget on top of the API drain.
	budget := cfg.Controller.ShutdownTimeout + cfg.Bridge.StopTimeout + cfg.Bridge.KillTimeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	shutdownErr := c.Shutdown(shutdownCtx)

	if runErr != nil {
		logger.Error("host error", log.Error(runErr))
		return fmt.Errorf("host error: %w", runErr)
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown error: %w", shutdownErr)
	}
	return nil
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	return config.LoadDefault()
}

// ApplyOverrides applies flag values on top of the loaded config.
func ApplyOverrides(cfg *config.Config, opts RunOptions) {
	if opts.BridgeCommand != "" {
		cfg.Bridge.Command = opts.BridgeCommand
	}
	if len(opts.BridgeArgs) > 0 {
		cfg.Bridge.Args = opts.BridgeArgs
	}
	if opts.SocketPath != "" {
		cfg.Controller.Listen.SocketPath = opts.SocketPath
		cfg.Controller.Listen.TCPAddr = ""
	}
	if opts.TCPAddr != "" {
		cfg.Controller.Listen.TCPAddr = opts.TCPAddr
	}
	if opts.AllowRemote {
		cfg.Controller.Listen.AllowRemote = true
	}
}

// IsAlreadyRunning reports whether err means another host holds the PID file.
func IsAlreadyRunning(err error) bool {
	return errors.Is(err, lifecycle.ErrAlreadyRunning)
}
