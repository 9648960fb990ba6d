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
Package bridge supervises the single long-lived bridge child process.

The bridge is an opaque program that reads line-delimited text on stdin.
A Store holds at most one Handle; every operation acquires the store for
its whole duration, so liveness checks and stdin writes never race a
restart.

# Operations

	sup := bridge.NewSupervisor(store, launcher, bridge.WithOutput(out))
	_ = sup.Start(ctx)                      // initial launch, failure is non-fatal
	err := sup.Write(ctx, `{"method":"ping"}`) // one line, flushed
	st, err := sup.Status(ctx)              // not_started | running | exited:<status>
	msg, err := sup.Restart(ctx)            // terminate, reap, launch

Status never heals an exited bridge; only Restart replaces the handle.

# Teardown

Restart and Shutdown send the stop signal, wait, escalate to SIGKILL and
wait again. A process that still has not been reaped is put back in the
store and the operation fails with RESTART_TIMEOUT, so there is never more
than one live bridge.

# Output

stdout and stderr are drained for the life of the process. Lines are kept
in a LogBuffer and published on a Hub, classified as JSON-RPC
notification, request or response where they parse.
*/
package bridge
