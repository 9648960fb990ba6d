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
	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/commands/shared"
	"github.com/tombee/bridgeshell/internal/controller"
)

// hostFlags are the config overrides shared by serve and start.
type hostFlags struct {
	bridgeCommand string
	socket        string
	tcpAddr       string
	allowRemote   bool
}

func (f *hostFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.bridgeCommand, "bridge-command", "", "Bridge executable (overrides bridge.command)")
	cmd.Flags().StringVar(&f.socket, "socket", "", "Unix socket path")
	cmd.Flags().StringVar(&f.tcpAddr, "tcp", "", "TCP address to listen on")
	cmd.Flags().BoolVar(&f.allowRemote, "allow-remote", false, "Allow non-localhost TCP connections")
}

func (f *hostFlags) runOptions(bridgeArgs []string) controller.RunOptions {
	v, c, b := shared.GetVersion()
	return controller.RunOptions{
		Version:       v,
		Commit:        c,
		BuildDate:     b,
		ConfigPath:    shared.GetConfigPath(),
		BridgeCommand: f.bridgeCommand,
		BridgeArgs:    bridgeArgs,
		SocketPath:    f.socket,
		TCPAddr:       f.tcpAddr,
		AllowRemote:   f.allowRemote,
	}
}

// NewServeCommand creates the serve command, which runs the host in the
// foreground.
func NewServeCommand() *cobra.Command {
	var flags hostFlags

	cmd := &cobra.Command{
		Use:   "serve [-- bridge-args...]",
		Short: "Run the bridgeshell host in the foreground",
		Long: `Run the bridgeshell host in the foreground.

The host launches the bridge process, serves the control API and stays
attached to the terminal until interrupted. Arguments after -- replace
bridge.args from the configuration.

Use 'bridgeshell start' to run the host in the background instead.`,
		Example: `  # Serve with the configured bridge
  bridgeshell serve

  # Serve a specific bridge binary
  bridgeshell serve --bridge-command ./bridge -- --stdio

  # Listen on TCP instead of the Unix socket
  bridgeshell serve --tcp 127.0.0.1:7600`,
		Annotations: map[string]string{
			"group": "host",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			err := controller.Run(flags.runOptions(args))
			if controller.IsAlreadyRunning(err) {
				return &shared.ExitError{
					Code:       shared.ExitFailed,
					Message:    "another bridgeshell host is already running",
					Cause:      err,
					Suggestion: "Stop it with 'bridgeshell stop' or use a different pid_file.",
				}
			}
			return err
		},
	}
	flags.register(cmd)

	return cmd
}
