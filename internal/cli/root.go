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

package cli

import (
	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/commands/shared"
)

// Command groups shown in help output, in order.
var groups = []*cobra.Group{
	{ID: "host", Title: "Host Commands:"},
	{ID: "bridge", Title: "Bridge Commands:"},
	{ID: "window", Title: "Window Commands:"},
	{ID: "config", Title: "Configuration Commands:"},
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for bridgeshell
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridgeshell",
		Short: "bridgeshell - supervise a bridge process and its window",
		Long: `bridgeshell runs a host that launches a bridge process, relays lines to
its stdin, classifies its output and restarts it on demand. The host also
forwards developer tools and navigation commands to the main window.

Run 'bridgeshell start' to launch the host in the background, then
'bridgeshell status' to check the bridge.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}
	cmd.AddGroup(groups...)

	flags := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVarP(flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(flags.Quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(flags.JSON, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(flags.Config, "config", "", "Path to config file (default: ~/.config/bridgeshell/config.yaml)")
	cmd.PersistentFlags().StringVar(flags.Host, "host", "", "Host address (default: $BRIDGESHELL_HOST or the configured listener)")

	return cmd
}

// AddCommands attaches cmds to root, assigning each to the help group
// named by its "group" annotation.
func AddCommands(root *cobra.Command, cmds ...*cobra.Command) {
	for _, c := range cmds {
		if g, ok := c.Annotations["group"]; ok && root.ContainsGroup(g) {
			c.GroupID = g
		}
		root.AddCommand(c)
	}
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
