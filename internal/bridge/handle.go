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

package bridge

import (
	"bufio"
	"errors"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

var errNoProcessState = errors.New("process state unavailable")

// ReadyInfo is reported by the bridge in its bridge.ready notification.
type ReadyInfo struct {
	PID int       `json:"pid"`
	At  time.Time `json:"at"`
}

// Handle is a launched bridge process. It is owned by the Store and must
// only be used from inside Store.With.
type Handle struct {
	cmd        *exec.Cmd
	pid        int
	path       string
	generation uint64
	launchID   string
	startedAt  time.Time

	stdin  *os.File
	writer *bufio.Writer

	// done is closed by the reaper once cmd.Wait returns; state and
	// waitErr are only read after that.
	done    chan struct{}
	state   *os.ProcessState
	waitErr error

	pumps sync.WaitGroup
	ready atomic.Pointer[ReadyInfo]
}

// PID returns the OS process id.
func (h *Handle) PID() int { return h.pid }

// Path returns the resolved executable path.
func (h *Handle) Path() string { return h.path }

// Generation returns the launch sequence number, starting at 1.
func (h *Handle) Generation() uint64 { return h.generation }

// LaunchID returns a unique id for this launch.
func (h *Handle) LaunchID() string { return h.launchID }

// StartedAt returns when the process was started.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Ready returns the bridge's ready notification, or nil if none was seen.
func (h *Handle) Ready() *ReadyInfo { return h.ready.Load() }

// reap waits for the process and publishes its termination.
func (h *Handle) reap(onExit func(*Handle)) {
	err := h.cmd.Wait()
	h.state = h.cmd.ProcessState
	h.waitErr = err
	if onExit != nil {
		onExit(h)
	}
	close(h.done)
}

// poll reports the termination status without blocking.
func (h *Handle) poll() (Status, error) {
	select {
	case <-h.done:
		if h.state == nil {
			if h.waitErr != nil {
				return Status{}, h.waitErr
			}
			return Status{}, errNoProcessState
		}
		return Exited(h.state.String()), nil
	default:
		return Running(), nil
	}
}

// writeLine writes data followed by a newline and flushes.
func (h *Handle) writeLine(data string) error {
	if _, err := h.writer.WriteString(data); err != nil {
		h.writer.Reset(h.stdin)
		return err
	}
	if err := h.writer.WriteByte('\n'); err != nil {
		h.writer.Reset(h.stdin)
		return err
	}
	if err := h.writer.Flush(); err != nil {
		// Drop whatever is left so the next write starts on a clean line.
		h.writer.Reset(h.stdin)
		return err
	}
	return nil
}

func (h *Handle) signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

// waitExit waits up to d for the reaper.
func (h *Handle) waitExit(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.done:
		return true
	case <-timer.C:
		return false
	}
}

// release closes stdin and waits up to d for the output pumps to drain.
func (h *Handle) release(d time.Duration) {
	_ = h.stdin.Close()

	drained := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(drained)
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
	}
}
