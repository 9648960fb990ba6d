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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/lifecycle"
)

const (
	maxWriteBody    = 1 << 20
	defaultLogLines = 100
	eventsBuffer    = 256
)

// WriteRequest is the body of POST /v1/bridge/write. Exactly one of Data
// or Lines must be set.
type WriteRequest struct {
	Data  *string  `json:"data,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

// WriteResponse reports how many lines were written.
type WriteResponse struct {
	Written int `json:"written"`
}

// StatusResponse is the body of GET /v1/bridge/status.
type StatusResponse struct {
	// Status is "not_started", "running" or "exited:<status>".
	Status string       `json:"status"`
	State  bridge.State `json:"state"`
	Detail string       `json:"detail,omitempty"`
}

// RestartResponse is the body of a successful restart.
type RestartResponse struct {
	Message string `json:"message"`
}

// LogsResponse is the body of GET /v1/bridge/logs.
type LogsResponse struct {
	Lines []bridge.LogLine `json:"lines"`
	Count int              `json:"count"`
}

// LifecycleResponse is the body of GET /v1/lifecycle.
type LifecycleResponse struct {
	Entries []lifecycle.Entry `json:"entries"`
	Count   int               `json:"count"`
}

// handleWrite handles POST /v1/bridge/write.
func (r *Router) handleWrite(w http.ResponseWriter, req *http.Request) {
	var body WriteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxWriteBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	lines := body.Lines
	switch {
	case body.Data != nil && len(body.Lines) > 0:
		writeBadRequest(w, "data and lines are mutually exclusive")
		return
	case body.Data != nil:
		lines = []string{*body.Data}
	case len(lines) == 0:
		writeBadRequest(w, "data or lines is required")
		return
	}

	for i, line := range lines {
		if err := r.config.Bridge.Write(req.Context(), line); err != nil {
			status, resp := errorBody(err)
			resp.Written = i
			writeJSON(w, status, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, WriteResponse{Written: len(lines)})
}

// handleStatus handles GET /v1/bridge/status.
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) {
	st, err := r.config.Bridge.Status(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status: st.String(),
		State:  st.State,
		Detail: st.Detail,
	})
}

// handleRestart handles POST /v1/bridge/restart.
func (r *Router) handleRestart(w http.ResponseWriter, req *http.Request) {
	if l := r.config.RestartLimiter; l != nil && !l.Allow() {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error: "restart rate limit exceeded",
			Code:  CodeRateLimited,
		})
		return
	}

	msg, err := r.config.Bridge.Restart(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RestartResponse{Message: msg})
}

// handleInfo handles GET /v1/bridge/info.
func (r *Router) handleInfo(w http.ResponseWriter, req *http.Request) {
	info, err := r.config.Bridge.Info(req.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleLogs handles GET /v1/bridge/logs?lines=N&since=RFC3339&stream=stdout.
// lines=0 returns the whole buffer.
func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	logs := r.config.Output.Logs()

	var lines []bridge.LogLine
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeBadRequest(w, "invalid since parameter")
			return
		}
		lines = logs.Since(since)
	} else {
		n := defaultLogLines
		if s := q.Get("lines"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 0 {
				writeBadRequest(w, "invalid lines parameter")
				return
			}
			n = v
		}
		lines = logs.Last(n)
	}

	if stream := q.Get("stream"); stream != "" {
		filtered := lines[:0:0]
		for _, l := range lines {
			if l.Stream == stream {
				filtered = append(filtered, l)
			}
		}
		lines = filtered
	}
	if lines == nil {
		lines = []bridge.LogLine{}
	}

	writeJSON(w, http.StatusOK, LogsResponse{Lines: lines, Count: len(lines)})
}

// handleEvents handles GET /v1/bridge/events as Server-Sent Events.
// ?kind=notification,lifecycle restricts the message kinds sent.
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	kinds := map[bridge.MessageKind]bool{}
	if k := req.URL.Query().Get("kind"); k != "" {
		for _, part := range strings.Split(k, ",") {
			kind := bridge.MessageKind(strings.TrimSpace(part))
			if !kind.Valid() {
				writeBadRequest(w, "unknown message kind: "+string(kind))
				return
			}
			kinds[kind] = true
		}
	}

	msgs, cancel := r.config.Output.Hub().Subscribe(eventsBuffer)
	defer cancel()

	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, errors.New("streaming not supported"))
		return
	}

	heartbeat := time.NewTicker(r.config.Heartbeat)
	defer heartbeat.Stop()

	ctx := req.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := sse.comment("keepalive"); err != nil {
				return
			}
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if len(kinds) > 0 && !kinds[m.Kind] {
				continue
			}
			if err := sse.event(string(m.Kind), m); err != nil {
				r.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}

// handleLifecycle handles GET /v1/lifecycle?lines=N.
func (r *Router) handleLifecycle(w http.ResponseWriter, req *http.Request) {
	n := defaultLogLines
	if s := req.URL.Query().Get("lines"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeBadRequest(w, "invalid lines parameter")
			return
		}
		n = v
	}

	entries, err := r.config.Journal.Tail(n)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []lifecycle.Entry{}
	}
	writeJSON(w, http.StatusOK, LifecycleResponse{Entries: entries, Count: len(entries)})
}
