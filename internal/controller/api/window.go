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
	"errors"
	"net/http"
	"time"
)

const commandsBuffer = 32

// DevtoolsResponse reports the devtools state of the main window.
type DevtoolsResponse struct {
	Open bool `json:"open"`
}

// ActionResponse acknowledges a window action.
type ActionResponse struct {
	OK bool `json:"ok"`
}

// handleOpenDevtools handles POST /v1/window/devtools/open.
func (r *Router) handleOpenDevtools(w http.ResponseWriter, req *http.Request) {
	if err := r.config.Window.OpenDevtools(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DevtoolsResponse{Open: true})
}

// handleCloseDevtools handles POST /v1/window/devtools/close.
func (r *Router) handleCloseDevtools(w http.ResponseWriter, req *http.Request) {
	if err := r.config.Window.CloseDevtools(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DevtoolsResponse{Open: false})
}

// handleDevtoolsState handles GET /v1/window/devtools.
func (r *Router) handleDevtoolsState(w http.ResponseWriter, req *http.Request) {
	open, err := r.config.Window.IsDevtoolsOpen()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DevtoolsResponse{Open: open})
}

// handleNavigate returns a handler for reload, back and forward.
func (r *Router) handleNavigate(action func(WindowService) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := action(r.config.Window); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ActionResponse{OK: true})
	}
}

// handleCommands handles GET /v1/window/commands. The caller becomes the
// UI for the main window until it disconnects and receives every command
// as a Server-Sent Event.
func (r *Router) handleCommands(w http.ResponseWriter, req *http.Request) {
	cmds, detach := r.config.Channel.Attach(commandsBuffer)
	defer detach()

	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, errors.New("streaming not supported"))
		return
	}
	r.logger.Info("window attached", "remote", req.RemoteAddr)
	defer r.logger.Info("window detached", "remote", req.RemoteAddr)

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
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			if err := sse.event(cmd.Action, cmd); err != nil {
				return
			}
		}
	}
}
