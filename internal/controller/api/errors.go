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
	"context"
	"errors"
	"net/http"

	"github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/window"
)

// Error codes that do not come from the supervisor.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeRateLimited    = "RATE_LIMITED"
	CodeWindowNotFound = "WINDOW_NOT_FOUND"
	CodeNotDelivered   = "NOT_DELIVERED"
	CodeCanceled       = "CANCELED"
	CodeInternal       = "INTERNAL"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Status is the bridge exit status for PROCESS_EXITED.
	Status string `json:"status,omitempty"`
	// Written counts lines accepted before a batch write failed.
	Written int `json:"written,omitempty"`
}

// httpStatus maps a supervisor error code to an HTTP status.
func httpStatus(code bridge.ErrorCode) int {
	switch code {
	case bridge.CodeUnavailable:
		return http.StatusServiceUnavailable
	case bridge.CodeProcessExited:
		return http.StatusConflict
	case bridge.CodeIO, bridge.CodeSpawn:
		return http.StatusBadGateway
	case bridge.CodeRestartTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody converts err to a status and response body.
func errorBody(err error) (int, ErrorResponse) {
	var be *bridge.Error
	switch {
	case errors.As(err, &be):
		return httpStatus(be.Code), ErrorResponse{Error: be.Message, Code: string(be.Code), Status: be.Status}
	case errors.Is(err, window.ErrWindowNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeWindowNotFound}
	case errors.Is(err, window.ErrNotDelivered):
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeNotDelivered}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: CodeCanceled}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: CodeBadRequest})
}
