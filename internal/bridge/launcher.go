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

package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Launcher starts a new bridge process.
type Launcher interface {
	Launch(ctx context.Context) (*Handle, error)
}

// LaunchConfig describes how to start the bridge.
type LaunchConfig struct {
	// Command is an executable name or path.
	Command string
	Args    []string
	// Env is added to the child environment, overriding inherited values.
	Env map[string]string
	// Dir is the working directory. Relative command paths resolve against it.
	Dir string
	// InheritEnv passes the host environment through to the child.
	InheritEnv bool
}

// environ builds the child environment in a stable order.
func (c LaunchConfig) environ() []string {
	var env []string
	if c.InheritEnv {
		env = os.Environ()
	}
	if len(c.Env) == 0 {
		return env
	}

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	env = slices.DeleteFunc(env, func(kv string) bool {
		name, _, _ := strings.Cut(kv, "=")
		_, override := c.Env[name]
		return override
	})
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// ExecLauncher starts the bridge with os/exec. Its stdin is a pipe owned by
// the returned handle; stdout and stderr are drained into an Output for the
// whole life of the process.
type ExecLauncher struct {
	mu         sync.RWMutex
	cfg        LaunchConfig
	output     *Output
	generation atomic.Uint64
}

// NewExecLauncher creates a launcher. A nil output gets a default one.
func NewExecLauncher(cfg LaunchConfig, output *Output) *ExecLauncher {
	if output == nil {
		output = NewOutput()
	}
	return &ExecLauncher{cfg: cfg, output: output}
}

// Config returns the configuration the next launch will use.
func (l *ExecLauncher) Config() LaunchConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// SetConfig replaces the configuration. It takes effect on the next launch;
// a running bridge is not touched.
func (l *ExecLauncher) SetConfig(cfg LaunchConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

// Launch starts a new bridge process.
func (l *ExecLauncher) Launch(ctx context.Context) (*Handle, error) {
	cfg := l.Config()

	_, span := tracer.Start(ctx, "bridge.launch",
		trace.WithAttributes(attribute.String("bridge.command", cfg.Command)))
	defer span.End()

	path, err := ResolveExecutable(cfg.Command, cfg.Dir)
	if err != nil {
		endSpan(span, err)
		return nil, spawnError(err)
	}

	h, err := l.start(path, cfg)
	if err != nil {
		endSpan(span, err)
		return nil, spawnError(err)
	}

	span.SetAttributes(
		attribute.Int("bridge.pid", h.pid),
		attribute.Int64("bridge.generation", int64(h.generation)),
	)
	return h, nil
}

func (l *ExecLauncher) start(path string, cfg LaunchConfig) (*Handle, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW)
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd := exec.Command(path, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = cfg.environ()
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeAll(stdinR, stdinW, stdoutR, stdoutW, stderrR, stderrW)
		return nil, err
	}

	// The child holds its own copies now.
	closeAll(stdinR, stdoutW, stderrW)

	h := &Handle{
		cmd:        cmd,
		pid:        cmd.Process.Pid,
		path:       path,
		generation: l.generation.Add(1),
		launchID:   uuid.NewString(),
		startedAt:  time.Now(),
		stdin:      stdinW,
		writer:     bufio.NewWriter(stdinW),
		done:       make(chan struct{}),
	}

	h.pumps.Add(2)
	go l.output.pump(h, stdoutR, StreamStdout)
	go l.output.pump(h, stderrR, StreamStderr)
	go h.reap(l.output.exited)

	return h, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// ResolveExecutable finds the bridge executable.
//
// Absolute paths are used as-is. Paths with a separator resolve against dir
// and are made absolute, since the child also runs with dir as its cwd.
// Bare names are looked up next to the running host executable first, then
// on PATH.
func ResolveExecutable(command, dir string) (string, error) {
	if command == "" {
		return "", errors.New("bridge command is empty")
	}
	if filepath.IsAbs(command) {
		return command, nil
	}
	if strings.ContainsRune(command, '/') || strings.ContainsRune(command, filepath.Separator) {
		if dir != "" {
			return filepath.Abs(filepath.Join(dir, command))
		}
		return filepath.Abs(command)
	}

	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), command)
		if runtime.GOOS == "windows" && filepath.Ext(candidate) == "" {
			candidate += ".exe"
		}
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("bridge executable %q not found: %w", command, err)
	}
	return path, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
