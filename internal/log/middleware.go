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

package log

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the request id set by Middleware, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// APIRequest is an API request for logging purposes.
type APIRequest struct {
	Method     string
	Path       string
	RequestID  string
	RemoteAddr string
}

// APIResponse is an API response for logging purposes.
type APIResponse struct {
	Status     int
	DurationMs int64
}

// LogAPIRequest logs an incoming API request at debug level.
func LogAPIRequest(logger *slog.Logger, req *APIRequest) {
	logger.Debug("api request received",
		"event", "api_request",
		"method", req.Method,
		"path", req.Path,
		RequestIDKey, req.RequestID,
		"remote", req.RemoteAddr,
	)
}

// LogAPIResponse logs a completed API request. Server errors log at error
// level, client errors at warn.
func LogAPIResponse(logger *slog.Logger, req *APIRequest, resp *APIResponse) {
	level := slog.LevelInfo
	message := "api request completed"
	switch {
	case resp.Status >= 500:
		level = slog.LevelError
		message = "api request failed"
	case resp.Status >= 400:
		level = slog.LevelWarn
		message = "api request rejected"
	}

	logger.Log(context.Background(), level, message,
		"event", "api_response",
		"method", req.Method,
		"path", req.Path,
		"status", resp.Status,
		DurationKey, resp.DurationMs,
		RequestIDKey, req.RequestID,
	)
}

// Middleware assigns a request id and logs every request and response.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

			req := &APIRequest{
				Method:     r.Method,
				Path:       r.URL.Path,
				RequestID:  id,
				RemoteAddr: r.RemoteAddr,
			}
			LogAPIRequest(logger, req)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			LogAPIResponse(logger, req, &APIResponse{
				Status:     sw.status,
				DurationMs: time.Since(start).Milliseconds(),
			})
		})
	}
}

// statusWriter records the response status. It forwards Flush so that
// streaming handlers keep working behind the middleware.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijack not supported")
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
