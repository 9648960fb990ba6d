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

package lifecycle

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// DetachedCommand describes a background host process.
type DetachedCommand struct {
	// Binary is the executable to run.
	Binary string
	// Args are passed to Binary.
	Args []string
	// Env is the full child environment. Nil inherits the caller's.
	Env []string
	// LogPath receives the child's stdout and stderr.
	LogPath string
}

// SpawnDetached starts cmd in its own session with stdin closed and output
// appended to LogPath, then releases it. Returns the child PID.
func SpawnDetached(cmd DetachedCommand) (int, error) {
	if cmd.Binary == "" {
		return 0, fmt.Errorf("no binary to spawn")
	}
	if cmd.LogPath == "" {
		return 0, fmt.Errorf("no log path for %s", cmd.Binary)
	}

	if err := os.MkdirAll(filepath.Dir(cmd.LogPath), 0700); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(cmd.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	c := exec.Command(cmd.Binary, cmd.Args...)
	c.Env = cmd.Env
	if c.Env == nil {
		c.Env = os.Environ()
	}
	c.Stdout = logFile
	c.Stderr = logFile
	c.Stdin = nil
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := c.Start(); err != nil {
		return 0, fmt.Errorf("failed to start process: %w", err)
	}

	pid := c.Process.Pid
	if err := c.Process.Release(); err != nil {
		return pid, fmt.Errorf("process started but failed to release: %w", err)
	}
	return pid, nil
}
