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
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/tombee/bridgeshell/internal/bridge"
)

// HealthResponse is the response format for /v1/health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// handleHealth handles GET /v1/health. The host is unhealthy only when the
// supervisor's handle store has been poisoned.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	checks := map[string]string{
		"api":     "ok",
		"runtime": runtime.Version(),
	}
	status := "healthy"
	code := http.StatusOK

	if r.config.Bridge != nil {
		st, err := r.config.Bridge.Status(req.Context())
		switch {
		case errors.Is(err, bridge.ErrStorePoisoned):
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			checks["bridge"] = err.Error()
		case err != nil:
			checks["bridge"] = err.Error()
		default:
			checks["bridge"] = st.String()
		}
	}
	if r.config.Channel != nil {
		checks["window"] = formatWindowStatus(r.config.Channel.Attached())
	}
	if r.config.Output != nil {
		checks["event_subscribers"] = fmt.Sprintf("%d", r.config.Output.Hub().Subscribers())
	}

	writeJSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(r.started).Round(time.Second).String(),
		Checks:    checks,
	})
}

func formatWindowStatus(attached int) string {
	if attached == 0 {
		return "detached"
	}
	return fmt.Sprintf("%d attached", attached)
}
