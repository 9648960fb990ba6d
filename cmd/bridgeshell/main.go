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

package main

import (
	"github.com/tombee/bridgeshell/internal/cli"
	"github.com/tombee/bridgeshell/internal/commands/bridge"
	"github.com/tombee/bridgeshell/internal/commands/completion"
	"github.com/tombee/bridgeshell/internal/commands/config"
	"github.com/tombee/bridgeshell/internal/commands/host"
	versioncmd "github.com/tombee/bridgeshell/internal/commands/version"
	"github.com/tombee/bridgeshell/internal/commands/window"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Host lifecycle
	cli.AddCommands(rootCmd,
		host.NewServeCommand(),
		host.NewStartCommand(),
		host.NewStopCommand(),
	)

	// Bridge process
	cli.AddCommands(rootCmd,
		bridge.NewStatusCommand(),
		bridge.NewInfoCommand(),
		bridge.NewWriteCommand(),
		bridge.NewRestartCommand(),
		bridge.NewLogsCommand(),
		bridge.NewEventsCommand(),
	)

	// Main window
	cli.AddCommands(rootCmd,
		window.NewDevtoolsCommand(),
		window.NewReloadCommand(),
		window.NewBackCommand(),
		window.NewForwardCommand(),
	)

	cli.AddCommands(rootCmd,
		config.NewConfigCommand(),
		completion.NewCommand(),
		versioncmd.NewVersionCommand(),
	)

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
