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
	"net/http"
	"runtime"
	"time"
)

// APIVersion is the revision of the host API served under /v1.
const APIVersion = "v1"

// VersionResponse is the response format for /v1/version.
type VersionResponse struct {
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	Commit     string         `json:"commit"`
	BuildDate  string         `json:"build_date"`
	GoVersion  string         `json:"go_version"`
	APIVersion string         `json:"api_version"`
	Uptime     string         `json:"uptime"`
	Bridge     *BridgeVersion `json:"bridge,omitempty"`
}

// BridgeVersion identifies the bridge the host is running.
type BridgeVersion struct {
	Path        string `json:"path"`
	Generation  uint64 `json:"generation"`
	ReportedPID int    `json:"reported_pid,omitempty"`
}

// handleVersion handles GET /v1/version. The bridge block is omitted until
// a launch has succeeded or when the store cannot be read.
func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	resp := VersionResponse{
		Name:       "bridgeshell",
		Version:    r.config.Version,
		Commit:     r.config.Commit,
		BuildDate:  r.config.BuildDate,
		GoVersion:  runtime.Version(),
		APIVersion: APIVersion,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
	}
	if info, err := r.config.Bridge.Info(req.Context()); err == nil && info.Generation > 0 {
		resp.Bridge = &BridgeVersion{Path: info.Path, Generation: info.Generation}
		if info.Ready != nil {
			resp.Bridge.ReportedPID = info.Ready.PID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
