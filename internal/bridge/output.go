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
	"io"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
)

const maxLineSize = 1 << 20

// EventRecorder persists supervisor lifecycle events.
type EventRecorder interface {
	Record(event string, details map[string]any) error
}

// Output collects everything observable about the bridge that is not
// guarded by the store: child output lines and lifecycle events.
type Output struct {
	hub      *Hub
	logs     *LogBuffer
	logger   *slog.Logger
	recorder EventRecorder
}

// OutputOption configures an Output.
type OutputOption func(*Output)

// WithOutputLogger sets the logger used for stderr lines and lifecycle events.
func WithOutputLogger(logger *slog.Logger) OutputOption {
	return func(o *Output) { o.logger = logger }
}

// WithLogCapacity sets how many recent lines are retained.
func WithLogCapacity(lines int) OutputOption {
	return func(o *Output) { o.logs = NewLogBuffer(lines) }
}

// WithRecorder persists lifecycle events to r.
func WithRecorder(r EventRecorder) OutputOption {
	return func(o *Output) { o.recorder = r }
}

// NewOutput creates an Output with an empty hub and log buffer.
func NewOutput(opts ...OutputOption) *Output {
	o := &Output{
		hub:    NewHub(),
		logs:   NewLogBuffer(DefaultLogLines),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Hub returns the message hub.
func (o *Output) Hub() *Hub { return o.hub }

// Logs returns the recent output buffer.
func (o *Output) Logs() *LogBuffer { return o.logs }

// pump reads lines from r until EOF.
func (o *Output) pump(h *Handle, r io.ReadCloser, stream string) {
	defer h.pumps.Done()
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		o.line(h, stream, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			o.logger.Warn("bridge output line too long, discarding rest of stream",
				"stream", stream,
				"generation", h.generation)
		}
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (o *Output) line(h *Handle, stream, text string) {
	now := time.Now()
	kind, method, id := classify(text)

	o.logs.Add(LogLine{
		Timestamp:  now,
		Stream:     stream,
		Generation: h.generation,
		Text:       text,
	})
	bridgeOutputLines.WithLabelValues(stream, string(kind)).Inc()

	if stream == StreamStderr {
		o.logger.Info("bridge stderr", "line", text, "generation", h.generation)
	}

	if kind == KindNotification && method == ReadyMethod && h.ready.Load() == nil {
		pid := int(gjson.Get(text, "params.pid").Int())
		h.ready.Store(&ReadyInfo{PID: pid, At: now})
		o.logger.Info("bridge ready", "pid", pid, "generation", h.generation)
	}

	o.hub.Publish(Message{
		Time:       now,
		Generation: h.generation,
		Stream:     stream,
		Kind:       kind,
		Method:     method,
		ID:         id,
		Line:       text,
	})
}

// lifecycle logs, publishes and records a supervisor event. h may be nil.
func (o *Output) lifecycle(h *Handle, event, detail string) {
	var generation uint64
	details := map[string]any{}
	if h != nil {
		generation = h.generation
		details["pid"] = h.pid
		details["generation"] = h.generation
		details["launch_id"] = h.launchID
	}
	if detail != "" {
		details["detail"] = detail
	}

	attrs := []any{"event", event}
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	o.logger.Info("bridge event", attrs...)

	o.hub.Publish(Message{
		Time:       time.Now(),
		Generation: generation,
		Stream:     StreamSupervisor,
		Kind:       KindLifecycle,
		Method:     event,
		Line:       detail,
	})

	if o.recorder != nil {
		if err := o.recorder.Record(event, details); err != nil {
			o.logger.Warn("failed to record bridge event", "event", event, "error", err)
		}
	}
}

// exited is the reaper hook for every launched handle.
func (o *Output) exited(h *Handle) {
	bridgeUp.Set(0)
	detail := ""
	if h.state != nil {
		detail = h.state.String()
	} else if h.waitErr != nil {
		detail = h.waitErr.Error()
	}
	o.lifecycle(h, EventExited, detail)
}
