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

// Command bridgeshelld runs the bridgeshell host in the foreground. It is
// the same as 'bridgeshell serve' for service managers that expect a
// dedicated binary.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tombee/bridgeshell/internal/controller"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to config file")
		bridgeCommand = flag.String("bridge-command", "", "Bridge executable (overrides bridge.command)")
		socketPath    = flag.String("socket", "", "Unix socket path")
		tcpAddr       = flag.String("tcp", "", "TCP address to listen on")
		allowRemote   = flag.Bool("allow-remote", false, "Allow binding to non-localhost addresses (SECURITY WARNING)")
		showVersion   = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("bridgeshelld %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	err := controller.Run(controller.RunOptions{
		Version:       version,
		Commit:        commit,
		BuildDate:     buildDate,
		ConfigPath:    *configPath,
		BridgeCommand: *bridgeCommand,
		BridgeArgs:    flag.Args(),
		SocketPath:    *socketPath,
		TCPAddr:       *tcpAddr,
		AllowRemote:   *allowRemote,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bridgeshelld: %v\n", err)
		os.Exit(1)
	}
}
