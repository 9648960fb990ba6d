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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/client"
	"github.com/tombee/bridgeshell/internal/commands/shared"
	"github.com/tombee/bridgeshell/internal/config"
	"github.com/tombee/bridgeshell/internal/controller"
	"github.com/tombee/bridgeshell/internal/lifecycle"
)

// HostLogName is the file in the data directory that receives a
// background host's output.
const HostLogName = "host.log"

// NewStartCommand creates the start command.
func NewStartCommand() *cobra.Command {
	var (
		flags   hostFlags
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start [-- bridge-args...]",
		Short: "Start the bridgeshell host in the background",
		Long: `Start the bridgeshell host in the background.

The host is spawned in its own session with its output appended to
host.log in the data directory. The command returns once the control
API answers.

The start command is idempotent: if a host is already running it exits
successfully without starting another.`,
		Example: `  # Start in the background
  bridgeshell start

  # Start with a longer readiness timeout
  bridgeshell start --timeout 30s`,
		Annotations: map[string]string{
			"group": "host",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, flags, timeout, args)
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", client.DefaultStartTimeout, "Readiness timeout")

	return cmd
}

func runStart(cmd *cobra.Command, flags hostFlags, timeout time.Duration, bridgeArgs []string) error {
	cfg, _, err := shared.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	controller.ApplyOverrides(cfg, flags.runOptions(bridgeArgs))

	out := cmd.OutOrStdout()
	if pid, err := pidFileFor(cfg).Running(); err == nil {
		if !shared.GetQuiet() {
			fmt.Fprintf(out, "bridgeshell host is already running (PID %d)\n", pid)
		}
		return nil
	}

	c, err := client.FromConfig(cfg.Controller.Listen)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	binary, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate bridgeshell binary: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
	defer cancel()

	logPath := filepath.Join(cfg.Controller.DataDir, HostLogName)
	pid, err := c.StartHost(ctx, client.StartConfig{
		Binary:  binary,
		Args:    serveArgs(flags, bridgeArgs),
		LogPath: logPath,
		Timeout: timeout,
	})
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitResult(out, "start", map[string]any{
			"pid":     pid,
			"address": c.Address(),
			"log":     logPath,
		})
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("bridgeshell host started (PID %d)", pid)))
		fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("Listening:"), c.Address())
		fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("Log:"), logPath)
	}
	return nil
}

// serveArgs rebuilds the serve command line for the detached host.
func serveArgs(flags hostFlags, bridgeArgs []string) []string {
	args := []string{"serve"}
	if p := shared.GetConfigPath(); p != "" {
		args = append(args, "--config", p)
	}
	if flags.bridgeCommand != "" {
		args = append(args, "--bridge-command", flags.bridgeCommand)
	}
	if flags.socket != "" {
		args = append(args, "--socket", flags.socket)
	}
	if flags.tcpAddr != "" {
		args = append(args, "--tcp", flags.tcpAddr)
	}
	if flags.allowRemote {
		args = append(args, "--allow-remote")
	}
	if len(bridgeArgs) > 0 {
		args = append(append(args, "--"), bridgeArgs...)
	}
	return args
}

// pidFileFor returns the PID file of the host described by the loaded
// config.
func pidFileFor(cfg *config.Config) *lifecycle.PIDFile {
	return lifecycle.NewPIDFile(cfg.Controller.PIDFile)
}

// isNotRunning reports whether err means no live host owns the PID file.
func isNotRunning(err error) bool {
	return errors.Is(err, lifecycle.ErrProcessNotRunning) || errors.Is(err, os.ErrNotExist)
}
