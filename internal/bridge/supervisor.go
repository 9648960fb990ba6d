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
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RestartedMessage is returned by a successful Restart.
const RestartedMessage = "Bridge restarted successfully"

var tracer = otel.Tracer("github.com/tombee/bridgeshell/internal/bridge")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("bridge.error_code", string(code)))
		}
	}
}

// Supervisor serializes every operation on the bridge through a Store.
type Supervisor struct {
	store    *Store
	launcher Launcher
	output   *Output
	teardown Teardown
	logger   *slog.Logger

	onFatal   func(error)
	fatalOnce sync.Once

	restarts      atomic.Uint64
	lastLaunchErr atomic.Pointer[string]
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the supervisor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = logger }
}

// WithOutput shares an Output with the launcher so lifecycle events and
// child output land on the same hub.
func WithOutput(o *Output) Option {
	return func(s *Supervisor) { s.output = o }
}

// WithTeardown sets the termination policy used by Restart and Shutdown.
func WithTeardown(t Teardown) Option {
	return func(s *Supervisor) { s.teardown = t }
}

// WithFatalHandler is called once when the store is found poisoned.
func WithFatalHandler(fn func(error)) Option {
	return func(s *Supervisor) { s.onFatal = fn }
}

// NewSupervisor creates a supervisor over store using launcher for every
// launch.
func NewSupervisor(store *Store, launcher Launcher, opts ...Option) *Supervisor {
	s := &Supervisor{
		store:    store,
		launcher: launcher,
		teardown: DefaultTeardown(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.output == nil {
		s.output = NewOutput(WithOutputLogger(s.logger))
	}
	return s
}

// Output returns the supervisor's output collector.
func (s *Supervisor) Output() *Output { return s.output }

// Start performs the initial launch if the store is empty. A launch failure
// leaves the store empty and is returned for the caller to log.
func (s *Supervisor) Start(ctx context.Context) error {
	err := s.store.With(func(slot *Slot) error {
		if !slot.Empty() {
			return nil
		}
		h, err := s.launch(ctx)
		if err != nil {
			return err
		}
		slot.Install(h)
		return nil
	})
	return s.guard(err)
}

// Write sends data plus a newline to the bridge stdin and flushes.
func (s *Supervisor) Write(ctx context.Context, data string) (err error) {
	_, span := tracer.Start(ctx, "bridge.write",
		trace.WithAttributes(attribute.Int("bridge.bytes", len(data)+1)))
	defer func() {
		endSpan(span, err)
		span.End()
		recordOperation("write", err)
	}()

	err = s.store.With(func(slot *Slot) error {
		h := slot.Handle()
		if h == nil {
			return unavailableError()
		}
		st, err := h.poll()
		if err != nil {
			return pollError(err)
		}
		if st.State == StateExited {
			return exitedError(st.Detail)
		}
		if err := h.writeLine(data); err != nil {
			return ioError(err)
		}
		bridgeBytesWritten.Add(float64(len(data) + 1))
		return nil
	})
	return s.guard(err)
}

// Status reports the bridge state without blocking or changing the store.
func (s *Supervisor) Status(ctx context.Context) (st Status, err error) {
	_, span := tracer.Start(ctx, "bridge.status")
	defer func() {
		if err == nil {
			span.SetAttributes(attribute.String("bridge.status", st.String()))
		}
		endSpan(span, err)
		span.End()
		recordOperation("status", err)
	}()

	st, err = Query(s.store, func(slot *Slot) (Status, error) {
		h := slot.Handle()
		if h == nil {
			return NotStarted(), nil
		}
		st, err := h.poll()
		if err != nil {
			return Status{}, pollError(err)
		}
		return st, nil
	})
	return st, s.guard(err)
}

// Restart terminates the current process, if any, and launches a new one.
// If the launch fails the store is left empty. If the old process cannot
// be reaped it stays in the store and nothing new is launched.
func (s *Supervisor) Restart(ctx context.Context) (msg string, err error) {
	ctx, span := tracer.Start(ctx, "bridge.restart")
	defer func() {
		endSpan(span, err)
		span.End()
		recordOperation("restart", err)
	}()

	err = s.store.With(func(slot *Slot) error {
		if old := slot.Take(); old != nil {
			s.output.lifecycle(old, EventRestarting, "")
			if !s.teardown.Terminate(ctx, old, s.logger) {
				slot.Install(old)
				s.output.lifecycle(old, EventTeardownTimeout, "")
				return restartTimeoutError(old.pid)
			}
		}

		h, err := s.launch(ctx)
		if err != nil {
			return err
		}
		slot.Install(h)
		return nil
	})
	if err = s.guard(err); err != nil {
		return "", err
	}

	s.restarts.Add(1)
	return RestartedMessage, nil
}

// Shutdown terminates the bridge for host exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	err := s.store.With(func(slot *Slot) error {
		h := slot.Take()
		if h == nil {
			return nil
		}
		if !s.teardown.Terminate(ctx, h, s.logger) {
			slot.Install(h)
			return restartTimeoutError(h.pid)
		}
		return nil
	})
	return s.guard(err)
}

func (s *Supervisor) launch(ctx context.Context) (*Handle, error) {
	h, err := s.launcher.Launch(ctx)
	recordLaunch(err)
	if err != nil {
		var be *Error
		if !errors.As(err, &be) {
			err = spawnError(err)
		}
		msg := err.Error()
		s.lastLaunchErr.Store(&msg)
		s.output.lifecycle(nil, EventLaunchFailed, msg)
		return nil, err
	}

	s.lastLaunchErr.Store(nil)
	bridgeUp.Set(1)
	s.output.lifecycle(h, EventLaunched, h.path)
	return h, nil
}

// guard escalates a poisoned store to the fatal handler.
func (s *Supervisor) guard(err error) error {
	if err != nil && errors.Is(err, ErrStorePoisoned) {
		s.fatalOnce.Do(func() {
			s.logger.Error("bridge handle store poisoned", "error", err)
			if s.onFatal != nil {
				s.onFatal(err)
			}
		})
	}
	return err
}

// Info is a point-in-time description of the bridge.
type Info struct {
	Status          Status     `json:"status"`
	PID             int        `json:"pid,omitempty"`
	Path            string     `json:"path,omitempty"`
	Generation      uint64     `json:"generation,omitempty"`
	LaunchID        string     `json:"launch_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	UptimeSeconds   float64    `json:"uptime_seconds,omitempty"`
	Ready           *ReadyInfo `json:"ready,omitempty"`
	Restarts        uint64     `json:"restarts"`
	LastLaunchError string     `json:"last_launch_error,omitempty"`
	Resources       *Resources `json:"resources,omitempty"`
}

// Info describes the current bridge. Resource usage is sampled after the
// store is released and is best effort.
func (s *Supervisor) Info(ctx context.Context) (Info, error) {
	info, err := Query(s.store, func(slot *Slot) (Info, error) {
		var info Info
		h := slot.Handle()
		if h == nil {
			info.Status = NotStarted()
			return info, nil
		}
		st, err := h.poll()
		if err != nil {
			return info, pollError(err)
		}
		started := h.startedAt
		info.Status = st
		info.PID = h.pid
		info.Path = h.path
		info.Generation = h.generation
		info.LaunchID = h.launchID
		info.StartedAt = &started
		info.Ready = h.Ready()
		if st.State == StateRunning {
			info.UptimeSeconds = time.Since(started).Seconds()
		}
		return info, nil
	})
	if err = s.guard(err); err != nil {
		return Info{}, err
	}

	info.Restarts = s.restarts.Load()
	if msg := s.lastLaunchErr.Load(); msg != nil {
		info.LastLaunchError = *msg
	}
	if info.Status.State == StateRunning {
		if res, err := SampleResources(ctx, info.PID); err == nil {
			info.Resources = res
		} else {
			s.logger.Debug("failed to sample bridge resources", "pid", info.PID, "error", err)
		}
	}
	return info, nil
}
