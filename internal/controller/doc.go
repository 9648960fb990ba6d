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
Package controller runs the bridgeshell host.

The Controller owns one bridge supervisor and exposes it, together with the
main-window delegate, over the HTTP API in the api subpackage. It binds a
Unix socket by default (or TCP, see the listener subpackage), holds a PID
file so that only one host runs per data directory, and appends host and
bridge lifecycle events to a JSON-lines journal.

# Usage

	cfg, path, _ := config.LoadDefault()
	c, err := controller.New(cfg, controller.Options{
	    Version:    "1.0.0",
	    ConfigPath: path,
	})
	if err != nil {
	    log.Fatal(err)
	}

	// Start blocks until ctx is cancelled or the supervisor fails fatally.
	err = c.Start(ctx)

	// Shutdown tears the bridge down with the configured stop policy.
	c.Shutdown(context.Background())

Run wraps the above with config loading, flag overrides and signal
handling, and is shared by `bridgeshell serve` and bridgeshelld.
*/
package controller
