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
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"
)

const (
	// DefaultStopTimeout is how long the bridge gets to exit after the stop signal.
	DefaultStopTimeout = 5 * time.Second
	// DefaultKillTimeout is how long to wait for the kernel after SIGKILL.
	DefaultKillTimeout = 2 * time.Second
	// DefaultDrainTimeout bounds the wait for output pumps after exit.
	DefaultDrainTimeout = time.Second
)

// Teardown terminates a bridge process before it is discarded. Signal
// delivery errors are ignored; the only failure is a process that is still
// not reaped after the kill timeout.
type Teardown struct {
	// Signal is sent first. Nil means SIGTERM.
	Signal os.Signal
	// StopTimeout bounds the graceful wait.
	StopTimeout time.Duration
	// KillTimeout bounds the wait after SIGKILL.
	KillTimeout time.Duration
	// DrainTimeout bounds the wait for output pumps once the process is gone.
	DrainTimeout time.Duration
}

// DefaultTeardown returns the SIGTERM, 5s, SIGKILL, 2s policy.
func DefaultTeardown() Teardown {
	return Teardown{
		Signal:       syscall.SIGTERM,
		StopTimeout:  DefaultStopTimeout,
		KillTimeout:  DefaultKillTimeout,
		DrainTimeout: DefaultDrainTimeout,
	}
}

func (t Teardown) withDefaults() Teardown {
	d := DefaultTeardown()
	if t.Signal == nil {
		t.Signal = d.Signal
	}
	if t.StopTimeout <= 0 {
		t.StopTimeout = d.StopTimeout
	}
	if t.KillTimeout <= 0 {
		t.KillTimeout = d.KillTimeout
	}
	if t.DrainTimeout <= 0 {
		t.DrainTimeout = d.DrainTimeout
	}
	return t
}

// Terminate stops h and reports whether it was reaped.
func (t Teardown) Terminate(ctx context.Context, h *Handle, logger *slog.Logger) bool {
	t = t.withDefaults()
	start := time.Now()

	if err := h.signal(t.Signal); err != nil {
		logger.Debug("stop signal not delivered", "pid", h.pid, "signal", t.Signal.String(), "error", err)
	}
	// Neither wait follows ctx: a caller that goes away does not shorten
	// the graceful stop or skip reaping.
	if h.waitExit(t.StopTimeout) {
		h.release(t.DrainTimeout)
		bridgeTeardownSeconds.WithLabelValues("graceful").Observe(time.Since(start).Seconds())
		return true
	}

	logger.WarnContext(ctx, "bridge did not stop in time, killing", "pid", h.pid, "timeout", t.StopTimeout)
	if err := h.signal(os.Kill); err != nil {
		logger.Debug("kill signal not delivered", "pid", h.pid, "error", err)
	}
	if h.waitExit(t.KillTimeout) {
		h.release(t.DrainTimeout)
		bridgeTeardownSeconds.WithLabelValues("killed").Observe(time.Since(start).Seconds())
		return true
	}

	bridgeTeardownSeconds.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
	return false
}
