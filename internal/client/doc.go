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
Package client provides an HTTP client for the bridgeshell host API.

CLI commands use it to drive the bridge and the main window over the host's
Unix socket (or TCP when the host listens there).

# Basic Usage

	c, err := client.FromHost("")
	if err != nil {
	    log.Fatal(err)
	}

	// Send one JSON-RPC line to the bridge
	_, err = c.Write(ctx, `{"jsonrpc":"2.0","method":"ping","id":1}`)

	// Replace the bridge process
	msg, err := c.Restart(ctx)

Errors returned by the host decode into *APIError, which matches the
bridge sentinels, so errors.Is(err, bridge.ErrUnavailable) works the same
remotely as it does in-process.

# Transport

The default transport connects to the socket from config.DefaultSocketPath.
Override it with BRIDGESHELL_HOST:

	export BRIDGESHELL_HOST=unix:///run/user/1000/bridgeshell/bridgeshell.sock
	export BRIDGESHELL_HOST=tcp://127.0.0.1:7480

# Streams

Events and Commands consume the host's Server-Sent Event streams. Commands
attaches the caller as the main window for as long as it runs.
*/
package client
