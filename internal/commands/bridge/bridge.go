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
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/client"
	"github.com/tombee/bridgeshell/internal/commands/shared"
)

const (
	// requestTimeout bounds unary API calls.
	requestTimeout = 30 * time.Second

	// restartTimeout covers a graceful stop, a kill and a relaunch.
	restartTimeout = 2 * time.Minute
)

// connect returns a client for the host selected by the global flags and a
// context bounded by timeout.
func connect(cmd *cobra.Command, timeout time.Duration) (*client.Client, context.Context, context.CancelFunc, error) {
	c, err := shared.NewClient()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create client: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	return c, ctx, cancel, nil
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the bridge status",
		Long: `Show whether the bridge process is running.

The status is one of not_started, running or exited:<detail>.`,
		Example: `  # Show the bridge status
  bridgeshell status

  # Use in scripts
  bridgeshell status --json | jq -r .state`,
		Annotations: map[string]string{
			"group": "bridge",
		},
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, ctx, cancel, err := connect(cmd, requestTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	st, err := c.Status(ctx)
	if err != nil {
		return shared.Classify("failed to get bridge status", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, st)
	}
	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("Bridge:"), shared.RenderBridgeStatus(st.Status))
	return nil
}

// NewInfoCommand creates the info command.
func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show details of the running bridge",
		Long: `Show the bridge process id, launch generation, uptime, restart count
and resource usage.`,
		Annotations: map[string]string{
			"group": "bridge",
		},
		Args: cobra.NoArgs,
		RunE: runInfo,
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	c, ctx, cancel, err := connect(cmd, requestTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	info, err := c.Info(ctx)
	if err != nil {
		return shared.Classify("failed to get bridge info", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, info)
	}

	rows := [][2]string{{"Status", shared.RenderBridgeStatus(info.Status.String())}}
	if info.PID != 0 {
		rows = append(rows,
			[2]string{"PID", strconv.Itoa(info.PID)},
			[2]string{"Path", info.Path},
			[2]string{"Generation", strconv.FormatUint(info.Generation, 10)},
			[2]string{"Launch ID", info.LaunchID},
		)
	}
	if info.StartedAt != nil {
		rows = append(rows, [2]string{"Started", info.StartedAt.Local().Format(time.RFC3339)})
	}
	if info.UptimeSeconds > 0 {
		uptime := time.Duration(info.UptimeSeconds * float64(time.Second)).Round(time.Second)
		rows = append(rows, [2]string{"Uptime", uptime.String()})
	}
	if info.Ready != nil {
		rows = append(rows, [2]string{"Ready", info.Ready.At.Local().Format(time.RFC3339)})
	}
	rows = append(rows, [2]string{"Restarts", strconv.FormatUint(info.Restarts, 10)})
	if info.LastLaunchError != "" {
		rows = append(rows, [2]string{"Last error", shared.StatusError.Render(info.LastLaunchError)})
	}
	if r := info.Resources; r != nil {
		rows = append(rows,
			[2]string{"Memory", fmt.Sprintf("%.1f MiB", float64(r.RSSBytes)/(1<<20))},
			[2]string{"CPU", fmt.Sprintf("%.1f%%", r.CPUPercent)},
			[2]string{"Threads", strconv.Itoa(int(r.Threads))},
		)
	}

	fmt.Fprintln(out, shared.Header.Render("Bridge"))
	fmt.Fprint(out, shared.RenderKV(rows))
	return nil
}

// NewRestartCommand creates the restart command.
func NewRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Replace the bridge process",
		Long: `Stop the current bridge process, if any, and launch a new one.

The old process gets the configured stop signal and is killed if it does
not exit within bridge.stop_timeout.`,
		Annotations: map[string]string{
			"group": "bridge",
		},
		Args: cobra.NoArgs,
		RunE: runRestart,
	}
}

func runRestart(cmd *cobra.Command, args []string) error {
	c, ctx, cancel, err := connect(cmd, restartTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	msg, err := c.Restart(ctx)
	if err != nil {
		return shared.Classify("failed to restart bridge", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitResult(out, "restart", map[string]string{"message": msg})
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(out, shared.RenderOK(msg))
	}
	return nil
}
