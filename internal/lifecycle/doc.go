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
Package lifecycle manages the bridgeshell host process from the outside.

PID files are created with O_EXCL and held under flock while the host runs.
Acquire clears a file left behind by a dead host:

	pf := lifecycle.NewPIDFile(path)
	if _, err := pf.Acquire(os.Getpid()); err != nil {
	    return err
	}
	defer pf.Remove()

Signals are only sent after the recorded PID is confirmed to be a
bridgeshell host, so a stale file cannot target an unrelated process:

	pid, err := pf.Running()
	if err == nil {
	    err = lifecycle.GracefulShutdown(ctx, pid, 10*time.Second, force)
	}

SpawnDetached starts the host in its own session for background mode, and
Journal keeps an append-only JSON-lines record of host and bridge events.
*/
package lifecycle
