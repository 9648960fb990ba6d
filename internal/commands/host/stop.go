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

package host

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/commands/shared"
	"github.com/tombee/bridgeshell/internal/lifecycle"
)

// NewStopCommand creates the stop command.
func NewStopCommand() *cobra.Command {
	var (
		timeout time.Duration
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the bridgeshell host",
		Long: `Stop the background bridgeshell host gracefully.

Sends SIGTERM and waits for the host to stop the bridge and exit. With
--force, SIGKILL is sent if the timeout is exceeded.

The stop command is idempotent: if the host is not running, it exits
successfully after cleaning up a stale PID file.`,
		Example: `  # Stop gracefully
  bridgeshell stop

  # Kill the host if it has not stopped within 10s
  bridgeshell stop --timeout 10s --force`,
		Annotations: map[string]string{
			"group": "host",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd, timeout, force)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Graceful shutdown timeout")
	cmd.Flags().BoolVar(&force, "force", false, "Send SIGKILL if the timeout is exceeded")

	return cmd
}

func runStop(cmd *cobra.Command, timeout time.Duration, force bool) error {
	cfg, _, err := shared.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	journal := lifecycle.NewJournal(cfg.Controller.LifecycleLog)
	pidFile := pidFileFor(cfg)

	pid, err := pidFile.Running()
	switch {
	case err == nil:
	case isNotRunning(err) && pid == 0:
		if !shared.GetQuiet() {
			fmt.Fprintln(out, "bridgeshell host is not running")
		}
		return nil
	case isNotRunning(err):
		if logErr := journal.StalePID(pid, "process not running"); logErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to write lifecycle log: %v\n", logErr)
		}
		if !shared.GetQuiet() {
			fmt.Fprintf(out, "bridgeshell host %d is not running (removing stale PID file)\n", pid)
		}
		if err := pidFile.Remove(); err != nil {
			return fmt.Errorf("failed to remove stale PID file: %w", err)
		}
		return nil
	case errors.Is(err, lifecycle.ErrNotHostProcess):
		return fmt.Errorf("PID %d is not a bridgeshell process (refusing to stop)", pid)
	default:
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	if !shared.GetQuiet() {
		fmt.Fprintf(out, "Stopping bridgeshell host (PID %d)...\n", pid)
	}
	start := time.Now()
	if err := lifecycle.GracefulShutdown(cmd.Context(), pid, timeout, force); err != nil {
		return fmt.Errorf("failed to stop host: %w", err)
	}

	// A host that exited on its own has already removed the file.
	if err := pidFile.Remove(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to remove PID file: %v\n", err)
	}

	if shared.GetJSON() {
		return shared.EmitResult(out, "stop", map[string]any{
			"pid":         pid,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(out, shared.RenderOK("bridgeshell host stopped"))
	}
	return nil
}
