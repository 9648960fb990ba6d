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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tombee/bridgeshell/internal/bridge"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// ConfigError describes a configuration problem at a specific key.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g. "bridge.command").
	Key string
	// Reason explains what's wrong.
	Reason string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Key, e.Reason, e.Cause)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Config is the complete bridgeshell configuration.
type Config struct {
	Bridge        BridgeConfig        `yaml:"bridge"`
	Controller    ControllerConfig    `yaml:"controller"`
	Log           LogConfig           `yaml:"log"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// BridgeConfig describes how the bridge process is launched and stopped.
type BridgeConfig struct {
	// Command is the bridge executable name or path.
	// Environment: BRIDGESHELL_BRIDGE_COMMAND
	Command string `yaml:"command"`

	// Args are passed to the bridge.
	// Environment: BRIDGESHELL_BRIDGE_ARGS (space separated)
	Args []string `yaml:"args,omitempty"`

	// Env is added to the bridge environment.
	Env map[string]string `yaml:"env,omitempty"`

	// Dir is the bridge working directory.
	Dir string `yaml:"dir,omitempty"`

	// InheritEnv passes the host environment to the bridge.
	// Default: true
	InheritEnv *bool `yaml:"inherit_env,omitempty"`

	// StopSignal is sent first on restart and shutdown.
	// Default: SIGTERM
	StopSignal string `yaml:"stop_signal,omitempty"`

	// StopTimeout bounds the wait after StopSignal before SIGKILL.
	// Environment: BRIDGESHELL_STOP_TIMEOUT
	// Default: 5s
	StopTimeout time.Duration `yaml:"stop_timeout,omitempty"`

	// KillTimeout bounds the wait after SIGKILL.
	// Default: 2s
	KillTimeout time.Duration `yaml:"kill_timeout,omitempty"`

	// OutputBuffer is the number of recent output lines retained.
	// Default: 1000
	OutputBuffer int `yaml:"output_buffer,omitempty"`
}

// ControllerConfig configures the host daemon.
type ControllerConfig struct {
	Listen ListenConfig `yaml:"listen"`

	// PIDFile is the path to the PID file. Empty means the default location.
	PIDFile string `yaml:"pid_file,omitempty"`

	// LifecycleLog is the JSON-lines journal of bridge lifecycle events.
	LifecycleLog string `yaml:"lifecycle_log,omitempty"`

	// DataDir holds the lifecycle log and daemon output.
	DataDir string `yaml:"data_dir,omitempty"`

	// ShutdownTimeout bounds graceful shutdown of the API server.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// RestartRate is the sustained number of restarts per second accepted
	// through the API. Zero disables the limit.
	// Default: 2
	RestartRate float64 `yaml:"restart_rate,omitempty"`

	// RestartBurst is the restart limiter burst.
	// Default: 4
	RestartBurst int `yaml:"restart_burst,omitempty"`

	// WatchConfig reloads the bridge section when the config file changes.
	// Default: true
	WatchConfig *bool `yaml:"watch_config,omitempty"`
}

// ListenConfig configures the controller API listener.
type ListenConfig struct {
	// SocketPath is the Unix socket path.
	// Environment: BRIDGESHELL_SOCKET
	SocketPath string `yaml:"socket_path,omitempty"`

	// TCPAddr listens on TCP instead of the socket.
	// Environment: BRIDGESHELL_TCP_ADDR
	TCPAddr string `yaml:"tcp_addr,omitempty"`

	// AllowRemote permits binding TCP to non-loopback addresses.
	AllowRemote bool `yaml:"allow_remote,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source,omitempty"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	// Metrics exposes /metrics on the controller API.
	// Default: true
	Metrics *bool         `yaml:"metrics,omitempty"`
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is console or otlp-http.
	Exporter string `yaml:"exporter,omitempty"`
	// Endpoint is the OTLP HTTP endpoint host:port.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Insecure disables TLS for the OTLP exporter.
	Insecure bool `yaml:"insecure,omitempty"`
	// SampleRate is the fraction of traces kept, 0 to 1.
	// Default: 1
	SampleRate *float64 `yaml:"sample_rate,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// Default returns a configuration with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from the given path, applies defaults and
// environment overrides, and validates the result. An empty path loads
// defaults plus environment only. A missing file at the default path is
// not an error.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// LoadDefault loads the config file at the XDG location if it exists.
func LoadDefault() (*Config, string, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg, err := Load("")
		return cfg, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func (c *Config) applyDefaults() {
	if c.Bridge.InheritEnv == nil {
		c.Bridge.InheritEnv = boolPtr(true)
	}
	if c.Bridge.StopSignal == "" {
		c.Bridge.StopSignal = "SIGTERM"
	}
	if c.Bridge.StopTimeout == 0 {
		c.Bridge.StopTimeout = bridge.DefaultStopTimeout
	}
	if c.Bridge.KillTimeout == 0 {
		c.Bridge.KillTimeout = bridge.DefaultKillTimeout
	}
	if c.Bridge.OutputBuffer == 0 {
		c.Bridge.OutputBuffer = bridge.DefaultLogLines
	}

	if c.Controller.Listen.SocketPath == "" && c.Controller.Listen.TCPAddr == "" {
		c.Controller.Listen.SocketPath = defaultSocketPath()
	}
	if c.Controller.DataDir == "" {
		c.Controller.DataDir = defaultDataDir()
	}
	if c.Controller.PIDFile == "" {
		c.Controller.PIDFile = filepath.Join(c.Controller.DataDir, "bridgeshell.pid")
	}
	if c.Controller.LifecycleLog == "" {
		c.Controller.LifecycleLog = filepath.Join(c.Controller.DataDir, "lifecycle.log")
	}
	if c.Controller.ShutdownTimeout == 0 {
		c.Controller.ShutdownTimeout = 10 * time.Second
	}
	if c.Controller.RestartRate == 0 {
		c.Controller.RestartRate = 2
	}
	if c.Controller.RestartBurst == 0 {
		c.Controller.RestartBurst = 4
	}
	if c.Controller.WatchConfig == nil {
		c.Controller.WatchConfig = boolPtr(true)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Observability.Metrics == nil {
		c.Observability.Metrics = boolPtr(true)
	}
	if c.Observability.Tracing.Exporter == "" {
		c.Observability.Tracing.Exporter = "console"
	}
	if c.Observability.Tracing.SampleRate == nil {
		rate := 1.0
		c.Observability.Tracing.SampleRate = &rate
	}
}

func (c *Config) loadFromFile(path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("BRIDGESHELL_BRIDGE_COMMAND"); val != "" {
		c.Bridge.Command = val
	}
	if val := os.Getenv("BRIDGESHELL_BRIDGE_ARGS"); val != "" {
		c.Bridge.Args = strings.Fields(val)
	}
	if val := os.Getenv("BRIDGESHELL_BRIDGE_DIR"); val != "" {
		c.Bridge.Dir = val
	}
	if val := os.Getenv("BRIDGESHELL_STOP_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Bridge.StopTimeout = duration
		}
	}
	if val := os.Getenv("BRIDGESHELL_OUTPUT_BUFFER"); val != "" {
		if lines, err := strconv.Atoi(val); err == nil {
			c.Bridge.OutputBuffer = lines
		}
	}

	if val := os.Getenv("BRIDGESHELL_SOCKET"); val != "" {
		c.Controller.Listen.SocketPath = val
	}
	if val := os.Getenv("BRIDGESHELL_TCP_ADDR"); val != "" {
		c.Controller.Listen.TCPAddr = val
	}
	if val := os.Getenv("BRIDGESHELL_PID_FILE"); val != "" {
		c.Controller.PIDFile = val
	}
	if val := os.Getenv("BRIDGESHELL_SHUTDOWN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Controller.ShutdownTimeout = duration
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	if val := os.Getenv("BRIDGESHELL_TRACING"); val != "" {
		c.Observability.Tracing.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Observability.Tracing.Endpoint = val
		c.Observability.Tracing.Exporter = "otlp-http"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	// An empty bridge.command is allowed: the launch fails and the host
	// keeps running with no bridge, the same as any other spawn error.
	if _, err := ParseSignal(c.Bridge.StopSignal); err != nil {
		errs = append(errs, fmt.Sprintf("bridge.stop_signal: %v", err))
	}
	if c.Bridge.StopTimeout < 0 {
		errs = append(errs, fmt.Sprintf("bridge.stop_timeout must be positive, got %v", c.Bridge.StopTimeout))
	}
	if c.Bridge.KillTimeout < 0 {
		errs = append(errs, fmt.Sprintf("bridge.kill_timeout must be positive, got %v", c.Bridge.KillTimeout))
	}
	if c.Bridge.OutputBuffer < 0 {
		errs = append(errs, fmt.Sprintf("bridge.output_buffer must not be negative, got %d", c.Bridge.OutputBuffer))
	}

	if c.Controller.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("controller.shutdown_timeout must be positive, got %v", c.Controller.ShutdownTimeout))
	}
	if c.Controller.RestartRate < 0 {
		errs = append(errs, fmt.Sprintf("controller.restart_rate must not be negative, got %v", c.Controller.RestartRate))
	}
	if c.Controller.RestartBurst < 1 {
		errs = append(errs, fmt.Sprintf("controller.restart_burst must be at least 1, got %d", c.Controller.RestartBurst))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	validExporters := map[string]bool{"console": true, "otlp-http": true}
	if c.Observability.Tracing.Enabled {
		if !validExporters[c.Observability.Tracing.Exporter] {
			errs = append(errs, fmt.Sprintf("observability.tracing.exporter must be one of [console, otlp-http], got %q", c.Observability.Tracing.Exporter))
		}
		if c.Observability.Tracing.Exporter == "otlp-http" && c.Observability.Tracing.Endpoint == "" {
			errs = append(errs, "observability.tracing.endpoint is required for the otlp-http exporter")
		}
		if r := c.Observability.Tracing.SampleRate; r != nil && (*r < 0 || *r > 1) {
			errs = append(errs, fmt.Sprintf("observability.tracing.sample_rate must be between 0 and 1, got %v", *r))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// LaunchConfig converts the bridge section for the launcher.
func (b BridgeConfig) LaunchConfig() bridge.LaunchConfig {
	inherit := true
	if b.InheritEnv != nil {
		inherit = *b.InheritEnv
	}
	return bridge.LaunchConfig{
		Command:    b.Command,
		Args:       b.Args,
		Env:        b.Env,
		Dir:        b.Dir,
		InheritEnv: inherit,
	}
}

// Teardown converts the stop settings for the supervisor.
func (b BridgeConfig) Teardown() bridge.Teardown {
	sig, err := ParseSignal(b.StopSignal)
	if err != nil {
		sig = syscall.SIGTERM
	}
	return bridge.Teardown{
		Signal:      sig,
		StopTimeout: b.StopTimeout,
		KillTimeout: b.KillTimeout,
	}
}

// ParseSignal accepts names like "SIGTERM", "term" or "INT".
func ParseSignal(name string) (syscall.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "SIG")
	switch n {
	case "", "TERM":
		return syscall.SIGTERM, nil
	case "INT":
		return syscall.SIGINT, nil
	case "HUP":
		return syscall.SIGHUP, nil
	case "QUIT":
		return syscall.SIGQUIT, nil
	case "KILL":
		return syscall.SIGKILL, nil
	default:
		return 0, fmt.Errorf("unsupported signal %q", name)
	}
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// defaultSocketPath returns the default Unix socket path.
func defaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "bridgeshell", "bridgeshell.sock")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bridgeshell.sock")
	}
	return filepath.Join(homeDir, ".bridgeshell", "bridgeshell.sock")
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "bridgeshell")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bridgeshell-data")
	}
	return filepath.Join(homeDir, ".bridgeshell", "data")
}

// DefaultSocketPath returns the socket path used when none is configured.
func DefaultSocketPath() string {
	return defaultSocketPath()
}

// Save writes cfg as YAML to path with 0600 permissions.
func Save(cfg *Config, path string) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
