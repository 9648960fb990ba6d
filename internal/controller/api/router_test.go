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

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/lifecycle"
	internallog "github.com/tombee/bridgeshell/internal/log"
	"github.com/tombee/bridgeshell/internal/window"
)

type fakeBridge struct {
	mu         sync.Mutex
	written    []string
	failAfter  int
	writeErr   error
	status     bridge.Status
	statusErr  error
	restartMsg string
	restartErr error
	restarts   int
	generation uint64
}

func (f *fakeBridge) Write(_ context.Context, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil && len(f.written) >= f.failAfter {
		return f.writeErr
	}
	f.written = append(f.written, data)
	return nil
}

func (f *fakeBridge) Status(context.Context) (bridge.Status, error) {
	return f.status, f.statusErr
}

func (f *fakeBridge) Restart(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	return f.restartMsg, f.restartErr
}

func (f *fakeBridge) Info(context.Context) (bridge.Info, error) {
	if f.generation == 0 {
		return bridge.Info{Status: bridge.NotStarted()}, f.statusErr
	}
	return bridge.Info{
		Status:     f.status,
		PID:        42,
		Path:       "/opt/bridge/db-bridge",
		Generation: f.generation,
		Ready:      &bridge.ReadyInfo{PID: 42},
	}, f.statusErr
}

type fakeJournal struct {
	entries []lifecycle.Entry
	asked   int
}

func (f *fakeJournal) Tail(n int) ([]lifecycle.Entry, error) {
	f.asked = n
	return f.entries, nil
}

type fixture struct {
	router   *Router
	bridge   *fakeBridge
	output   *bridge.Output
	registry *window.Registry
	channel  *window.Channel
	journal  *fakeJournal
}

func newFixture(t *testing.T, mutate func(*RouterConfig)) *fixture {
	t.Helper()
	f := &fixture{
		bridge:   &fakeBridge{status: bridge.Running(), restartMsg: "Bridge restarted successfully", generation: 3},
		output:   bridge.NewOutput(bridge.WithLogCapacity(10)),
		registry: window.NewRegistry(),
		journal:  &fakeJournal{},
	}
	f.channel = window.NewChannel(f.registry, window.MainLabel)
	cfg := RouterConfig{
		Version:   "1.2.3",
		Commit:    "abc123",
		BuildDate: "2025-01-01",
		Bridge:    f.bridge,
		Output:    f.output,
		Window:    window.NewDelegate(f.registry, internallog.Discard()),
		Channel:   f.channel,
		Journal:   f.journal,
		Heartbeat: 50 * time.Millisecond,
		Logger:    internallog.Discard(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.router = NewRouter(cfg)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestWrite(t *testing.T) {
	t.Run("single data line", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/v1/bridge/write", `{"data":"{\"id\":1}"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[WriteResponse](t, rec).Written)
		assert.Equal(t, []string{`{"id":1}`}, f.bridge.written)
	})

	t.Run("empty data is a valid line", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/v1/bridge/write", `{"data":""}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{""}, f.bridge.written)
	})

	t.Run("batch stops at first failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.bridge.failAfter = 1
		f.bridge.writeErr = &bridge.Error{Code: bridge.CodeIO, Message: "failed to write to bridge: broken pipe"}

		rec := f.do(t, http.MethodPost, "/v1/bridge/write", `{"lines":["a","b","c"]}`)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "IO", resp.Code)
		assert.Equal(t, 1, resp.Written)
		assert.Equal(t, []string{"a"}, f.bridge.written)
	})

	t.Run("rejects bad bodies", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, body := range []string{`{}`, `{"data":"a","lines":["b"]}`, `{"extra":1}`, `not json`} {
			rec := f.do(t, http.MethodPost, "/v1/bridge/write", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Equal(t, CodeBadRequest, decode[ErrorResponse](t, rec).Code)
		}
		assert.Empty(t, f.bridge.written)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unavailable", bridge.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"exited", &bridge.Error{Code: bridge.CodeProcessExited, Message: "bridge process exited with status: exit status 1", Status: "exit status 1"}, http.StatusConflict, "PROCESS_EXITED"},
		{"poll", bridge.ErrStatusPoll, http.StatusInternalServerError, "STATUS_POLL"},
		{"spawn", bridge.ErrSpawn, http.StatusBadGateway, "SPAWN"},
		{"restart timeout", bridge.ErrRestartTimeout, http.StatusGatewayTimeout, "RESTART_TIMEOUT"},
		{"poisoned", bridge.ErrStorePoisoned, http.StatusInternalServerError, "POISONED"},
		{"window", window.ErrWindowNotFound, http.StatusNotFound, CodeWindowNotFound},
		{"not delivered", fmt.Errorf("reload: %w", window.ErrNotDelivered), http.StatusInternalServerError, CodeNotDelivered},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, CodeCanceled},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorBody(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}

	status, body := errorBody(&bridge.Error{Code: bridge.CodeProcessExited, Message: "exited", Status: "signal: killed"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "signal: killed", body.Status)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	f.bridge.status = bridge.Exited("exit status 2")

	rec := f.do(t, http.MethodGet, "/v1/bridge/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[StatusResponse](t, rec)
	assert.Equal(t, "exited:exit status 2", resp.Status)
	assert.Equal(t, bridge.StateExited, resp.State)
	assert.Equal(t, "exit status 2", resp.Detail)
}

func TestRestart(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/v1/bridge/restart", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Bridge restarted successfully", decode[RestartResponse](t, rec).Message)
	})

	t.Run("spawn failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.bridge.restartErr = &bridge.Error{Code: bridge.CodeSpawn, Message: "failed to spawn bridge: not found"}
		rec := f.do(t, http.MethodPost, "/v1/bridge/restart", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "SPAWN", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t, func(c *RouterConfig) {
			c.RestartLimiter = rate.NewLimiter(rate.Every(time.Hour), 1)
		})
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/bridge/restart", "").Code)

		rec := f.do(t, http.MethodPost, "/v1/bridge/restart", "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Equal(t, 1, f.bridge.restarts)
	})
}

func TestInfo(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/v1/bridge/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[bridge.Info](t, rec)
	assert.Equal(t, 42, info.PID)
	assert.Equal(t, bridge.StateRunning, info.Status.State)
}

func TestLogs(t *testing.T) {
	f := newFixture(t, nil)
	base := time.Now().Add(-time.Minute).UTC()
	for i, stream := range []string{"stdout", "stderr", "stdout"} {
		f.output.Logs().Add(bridge.LogLine{
			Timestamp: base.Add(time.Duration(i) * 10 * time.Second),
			Stream:    stream,
			Text:      stream,
		})
	}

	resp := decode[LogsResponse](t, f.do(t, http.MethodGet, "/v1/bridge/logs?lines=2", ""))
	assert.Equal(t, 2, resp.Count)

	resp = decode[LogsResponse](t, f.do(t, http.MethodGet, "/v1/bridge/logs?stream=stdout", ""))
	assert.Equal(t, 2, resp.Count)

	since := base.Add(5 * time.Second).Format(time.RFC3339)
	resp = decode[LogsResponse](t, f.do(t, http.MethodGet, "/v1/bridge/logs?since="+since, ""))
	assert.Equal(t, 2, resp.Count)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/bridge/logs?lines=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/bridge/logs?since=yesterday", "").Code)
}

func TestLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.journal.entries = []lifecycle.Entry{{Event: bridge.EventLaunched, PID: 7}}

	rec := f.do(t, http.MethodGet, "/v1/lifecycle?lines=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LifecycleResponse](t, rec)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 5, f.journal.asked)
	assert.Equal(t, bridge.EventLaunched, resp.Entries[0].Event)
}

func TestWindowActions(t *testing.T) {
	t.Run("no window attached", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, path := range []string{"/v1/window/devtools/open", "/v1/window/reload", "/v1/window/back", "/v1/window/forward"} {
			rec := f.do(t, http.MethodPost, path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code, path)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "main window not found", resp.Error)
		}
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/window/devtools", "").Code)
	})

	t.Run("attached window receives commands", func(t *testing.T) {
		f := newFixture(t, nil)
		cmds, detach := f.channel.Attach(8)
		defer detach()

		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/window/devtools/open", "").Code)
		assert.True(t, decode[DevtoolsResponse](t, f.do(t, http.MethodGet, "/v1/window/devtools", "")).Open)
		assert.Equal(t, window.ActionOpenDevtools, (<-cmds).Action)

		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/window/reload", "").Code)
		cmd := <-cmds
		assert.Equal(t, window.ActionEval, cmd.Action)
		assert.Equal(t, window.ScriptReload, cmd.Script)

		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/window/devtools/close", "").Code)
		assert.False(t, decode[DevtoolsResponse](t, f.do(t, http.MethodGet, "/v1/window/devtools", "")).Open)
	})
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "running", resp.Checks["bridge"])
	assert.Equal(t, "detached", resp.Checks["window"])

	f.bridge.statusErr = bridge.ErrStorePoisoned
	rec = f.do(t, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode[HealthResponse](t, rec).Status)
}

func TestVersion(t *testing.T) {
	f := newFixture(t, nil)
	resp := decode[VersionResponse](t, f.do(t, http.MethodGet, "/v1/version", ""))
	assert.Equal(t, "bridgeshell", resp.Name)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "abc123", resp.Commit)
	assert.Equal(t, APIVersion, resp.APIVersion)
	require.NotNil(t, resp.Bridge)
	assert.Equal(t, "/opt/bridge/db-bridge", resp.Bridge.Path)
	assert.Equal(t, uint64(3), resp.Bridge.Generation)
	assert.Equal(t, 42, resp.Bridge.ReportedPID)

	f.bridge.generation = 0
	resp = decode[VersionResponse](t, f.do(t, http.MethodGet, "/v1/version", ""))
	assert.Nil(t, resp.Bridge)
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/v1/version", "")
	assert.NotEmpty(t, rec.Header().Get(internallog.RequestIDHeader))
}

// readEvent returns the next named event from an SSE stream.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && name != "":
			return name, strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, srv *httptest.Server, path string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)
	return r
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	r := openStream(t, srv, "/v1/bridge/events?kind=notification")

	f.output.Hub().Publish(bridge.Message{Kind: bridge.KindRaw, Line: "skipped"})
	f.output.Hub().Publish(bridge.Message{Kind: bridge.KindNotification, Method: "progress", Line: `{"method":"progress"}`})

	name, data := readEvent(t, r)
	assert.Equal(t, "notification", name)
	var msg bridge.Message
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, "progress", msg.Method)
}

func TestEventsStream_UnknownKind(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/bridge/events?kind=bogus", "").Code)
}

func TestCommandsStream(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	r := openStream(t, srv, "/v1/window/commands")
	assert.Equal(t, 1, f.channel.Attached())

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/window/back", "").Code)

	name, data := readEvent(t, r)
	assert.Equal(t, window.ActionEval, name)
	var cmd window.Command
	require.NoError(t, json.Unmarshal([]byte(data), &cmd))
	assert.Equal(t, window.ScriptBack, cmd.Script)
}
