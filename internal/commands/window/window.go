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

package window

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/client"
	"github.com/tombee/bridgeshell/internal/commands/shared"
)

const requestTimeout = 10 * time.Second

// NewDevtoolsCommand creates the devtools command group.
func NewDevtoolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devtools",
		Short: "Control the main window's developer tools",
		Long: `Open, close or query the developer tools of the main window.

The main window must be attached to the host.`,
		Annotations: map[string]string{
			"group": "window",
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "open",
		Short: "Open developer tools",
		Args:  cobra.NoArgs,
		RunE: windowAction("devtools open", "Developer tools opened", func(ctx context.Context, c *client.Client) error {
			return c.OpenDevtools(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "close",
		Short: "Close developer tools",
		Args:  cobra.NoArgs,
		RunE: windowAction("devtools close", "Developer tools closed", func(ctx context.Context, c *client.Client) error {
			return c.CloseDevtools(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether developer tools are open",
		Args:  cobra.NoArgs,
		RunE:  runDevtoolsStatus,
	})

	return cmd
}

func runDevtoolsStatus(cmd *cobra.Command, args []string) error {
	c, err := shared.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	open, err := c.DevtoolsOpen(ctx)
	if err != nil {
		return shared.Classify("failed to query developer tools", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, map[string]bool{"open": open})
	}
	state := "closed"
	if open {
		state = "open"
	}
	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("Developer tools:"), state)
	return nil
}

// NewReloadCommand creates the reload command.
func NewReloadCommand() *cobra.Command {
	return navigationCommand("reload", "Reload the main window", "Reloaded", func(ctx context.Context, c *client.Client) error {
		return c.Reload(ctx)
	})
}

// NewBackCommand creates the back command.
func NewBackCommand() *cobra.Command {
	return navigationCommand("back", "Navigate the main window back", "Navigated back", func(ctx context.Context, c *client.Client) error {
		return c.Back(ctx)
	})
}

// NewForwardCommand creates the forward command.
func NewForwardCommand() *cobra.Command {
	return navigationCommand("forward", "Navigate the main window forward", "Navigated forward", func(ctx context.Context, c *client.Client) error {
		return c.Forward(ctx)
	})
}

func navigationCommand(use, short, done string, action func(context.Context, *client.Client) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Annotations: map[string]string{
			"group": "window",
		},
		Args: cobra.NoArgs,
		RunE: windowAction(use, done, action),
	}
}

// windowAction runs a fire-and-forget window operation against the host.
func windowAction(name, done string, action func(context.Context, *client.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := shared.NewClient()
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()

		if err := action(ctx, c); err != nil {
			return shared.Classify(name+" failed", err)
		}

		out := cmd.OutOrStdout()
		if shared.GetJSON() {
			return shared.EmitResult(out, name, map[string]bool{"ok": true})
		}
		if !shared.GetQuiet() {
			fmt.Fprintln(out, shared.RenderOK(done))
		}
		return nil
	}
}
