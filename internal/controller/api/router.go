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

// Package api implements the controller HTTP API: bridge operations, window
// actions, event streams and health endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/lifecycle"
	internallog "github.com/tombee/bridgeshell/internal/log"
	"github.com/tombee/bridgeshell/internal/window"
)

var tracer = otel.Tracer("github.com/tombee/bridgeshell/internal/controller/api")

// DefaultHeartbeat is the keepalive interval on event streams.
const DefaultHeartbeat = 15 * time.Second

// BridgeService is the supervisor surface used by the API.
type BridgeService interface {
	Write(ctx context.Context, data string) error
	Status(ctx context.Context) (bridge.Status, error)
	Restart(ctx context.Context) (string, error)
	Info(ctx context.Context) (bridge.Info, error)
}

// WindowService performs actions on the main window.
type WindowService interface {
	OpenDevtools() error
	CloseDevtools() error
	IsDevtoolsOpen() (bool, error)
	Reload() error
	Back() error
	Forward() error
}

// JournalReader reads recent lifecycle journal entries.
type JournalReader interface {
	Tail(n int) ([]lifecycle.Entry, error)
}

// RouterConfig configures the API router.
type RouterConfig struct {
	Version   string
	Commit    string
	BuildDate string

	Bridge BridgeService
	Output *bridge.Output

	Window  WindowService
	Channel *window.Channel

	Journal JournalReader

	// RestartLimiter throttles POST /v1/bridge/restart. Nil means unlimited.
	RestartLimiter *rate.Limiter

	// Metrics exposes /metrics.
	Metrics bool

	// Health serves /live and /ready. Nil creates an empty handler.
	Health healthcheck.Handler

	// Heartbeat is the keepalive interval on event streams.
	Heartbeat time.Duration

	Logger *slog.Logger
}

// Router serves the controller API.
type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	config  RouterConfig
	logger  *slog.Logger
	started time.Time
}

// NewRouter registers every route and wraps the mux in the request logging
// and tracing middleware.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Health == nil {
		cfg.Health = healthcheck.NewHandler()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}

	r := &Router{
		mux:     http.NewServeMux(),
		config:  cfg,
		logger:  internallog.WithComponent(cfg.Logger, "api"),
		started: time.Now(),
	}

	r.mux.HandleFunc("GET /v1/health", r.handleHealth)
	r.mux.HandleFunc("GET /v1/version", r.handleVersion)
	r.mux.Handle("GET /live", cfg.Health)
	r.mux.Handle("GET /ready", cfg.Health)
	if cfg.Metrics {
		r.mux.Handle("GET /metrics", promhttp.Handler())
	}

	if cfg.Bridge != nil {
		r.mux.HandleFunc("POST /v1/bridge/write", r.handleWrite)
		r.mux.HandleFunc("GET /v1/bridge/status", r.handleStatus)
		r.mux.HandleFunc("POST /v1/bridge/restart", r.handleRestart)
		r.mux.HandleFunc("GET /v1/bridge/info", r.handleInfo)
	}
	if cfg.Output != nil {
		r.mux.HandleFunc("GET /v1/bridge/logs", r.handleLogs)
		r.mux.HandleFunc("GET /v1/bridge/events", r.handleEvents)
	}
	if cfg.Journal != nil {
		r.mux.HandleFunc("GET /v1/lifecycle", r.handleLifecycle)
	}

	if cfg.Window != nil {
		r.mux.HandleFunc("POST /v1/window/devtools/open", r.handleOpenDevtools)
		r.mux.HandleFunc("POST /v1/window/devtools/close", r.handleCloseDevtools)
		r.mux.HandleFunc("GET /v1/window/devtools", r.handleDevtoolsState)
		r.mux.HandleFunc("POST /v1/window/reload", r.handleNavigate(WindowService.Reload))
		r.mux.HandleFunc("POST /v1/window/back", r.handleNavigate(WindowService.Back))
		r.mux.HandleFunc("POST /v1/window/forward", r.handleNavigate(WindowService.Forward))
	}
	if cfg.Channel != nil {
		r.mux.HandleFunc("GET /v1/window/commands", r.handleCommands)
	}

	r.handler = internallog.Middleware(r.logger)(traced(r.mux))
	return r
}

// Mux returns the underlying mux for additional routes.
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// traced continues any incoming trace and wraps the request in a server span.
func traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(ctx, req.Method+" "+req.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("url.path", req.URL.Path),
			),
		)
		defer span.End()
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
