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

/*
Package cli provides the root command for the bridgeshell CLI.

The root command carries the global flags and the help command. The
commands themselves live in the internal/commands subpackages and are
attached by main.

# Command Tree

	bridgeshell
	├── serve         Run the host in the foreground
	├── start         Start the host in the background
	├── stop          Stop the host
	├── status        Bridge status
	├── info          Bridge process details
	├── write         Send lines to the bridge
	├── restart       Replace the bridge process
	├── logs          Recent bridge output or the lifecycle journal
	├── events        Stream classified bridge messages
	├── devtools      Open, close or query developer tools
	├── reload        Reload the main window
	├── back          Navigate back
	├── forward       Navigate forward
	├── config        Show configuration
	├── version       Show version
	└── help          Show help

# Global Flags

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Path to config file
	--host           Host address (unix:///path, tcp://host:port)
*/
package cli
