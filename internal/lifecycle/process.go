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
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrNotHostProcess is returned when a PID does not belong to a bridgeshell host.
	ErrNotHostProcess = errors.New("process is not a bridgeshell host")

	// ErrShutdownTimeout is returned when the process doesn't exit within the timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

	errStillRunning = errors.New("process still running")
)

// HostMarker is the substring that identifies a host process command line.
const HostMarker = "bridgeshell"

// ProcessInfo describes a running process.
type ProcessInfo struct {
	PID     int       `json:"pid"`
	Running bool      `json:"running"`
	Command string    `json:"command,omitempty"`
	Started time.Time `json:"started,omitempty"`
}

// IsProcessRunning reports whether pid exists and has not exited.
// Zombies count as exited.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	if err != nil || !running {
		return false
	}
	if status, err := p.Status(); err == nil {
		for _, s := range status {
			if s == process.Zombie {
				return false
			}
		}
	}
	return true
}

// IsHostProcess reports whether pid is a running bridgeshell host. It keeps
// a stale PID file from directing signals at an unrelated process.
func IsHostProcess(pid int) bool {
	if !IsProcessRunning(pid) {
		return false
	}
	cmd, err := processCommand(pid)
	if err != nil {
		return false
	}
	return strings.Contains(cmd, HostMarker)
}

// SendSignal sends a signal to the given process.
func SendSignal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("failed to send signal %v to process %d: %w", sig, pid, err)
	}

	return nil
}

// WaitForExit polls until the process is gone, backing off between checks.
// Returns ErrShutdownTimeout if it is still running after timeout.
func WaitForExit(ctx context.Context, pid int, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = timeout

	err := backoff.Retry(func() error {
		if IsProcessRunning(pid) {
			return errStillRunning
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrShutdownTimeout
}

// GracefulShutdown sends SIGTERM to a process and waits for it to exit.
// If force is true and the timeout is exceeded, it sends SIGKILL.
func GracefulShutdown(ctx context.Context, pid int, timeout time.Duration, force bool) error {
	if !IsProcessRunning(pid) {
		return ErrProcessNotRunning
	}

	if err := SendSignal(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	err := WaitForExit(ctx, pid, timeout)
	if err == nil || !force {
		return err
	}

	if err := SendSignal(pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}
	if err := WaitForExit(context.Background(), pid, 5*time.Second); err != nil {
		return fmt.Errorf("process did not die after SIGKILL: %w", err)
	}
	return nil
}

// GetProcessInfo returns information about the process with the given PID.
func GetProcessInfo(pid int) (*ProcessInfo, error) {
	info := &ProcessInfo{
		PID:     pid,
		Running: IsProcessRunning(pid),
	}
	if !info.Running {
		return info, nil
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return info, nil
	}
	if cmd, err := processCommand(pid); err == nil {
		info.Command = cmd
	} else {
		info.Command = "<unknown>"
	}
	if ms, err := p.CreateTime(); err == nil {
		info.Started = time.UnixMilli(ms)
	}
	return info, nil
}

func processCommand(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	cmd, err := p.Cmdline()
	if err != nil {
		return "", fmt.Errorf("failed to read cmdline: %w", err)
	}
	return strings.TrimSpace(cmd), nil
}
