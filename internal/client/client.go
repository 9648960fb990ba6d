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

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/lifecycle"
	"github.com/tombee/bridgeshell/internal/window"
)

// Client is a client for the bridgeshell host API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	address    string
}

// New creates a new client with the given options. Without a transport
// option it connects to the default socket.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: "http://bridgeshell",
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		transport, err := ParseHost("")
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		c.httpClient = &http.Client{Transport: transport}
		c.address = transport.Address()
	}

	return c, nil
}

// Address returns the host address the client talks to.
func (c *Client) Address() string {
	return c.address
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport *Transport) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Transport: transport}
		c.address = transport.Address()
		return nil
	}
}

// WithBaseURL sets the URL prefix of every request.
func WithBaseURL(u string) Option {
	return func(c *Client) error {
		c.baseURL = u
		if c.address == "" {
			c.address = u
		}
		return nil
	}
}

// APIError is a non-2xx response from the host.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Status is the bridge exit status for PROCESS_EXITED.
	Status string
	// Written counts lines accepted before a batch write failed.
	Written int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("host returned error %d", e.StatusCode)
	}
	return e.Message
}

// Is matches bridge error sentinels by code and window.ErrWindowNotFound,
// so callers can use errors.Is on remote errors as they would locally.
func (e *APIError) Is(target error) bool {
	if be, ok := target.(*bridge.Error); ok {
		return string(be.Code) == e.Code
	}
	return target == window.ErrWindowNotFound && e.Code == "WINDOW_NOT_FOUND"
}

// HealthResponse is the response from /v1/health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// APIVersion is the host API revision this client speaks.
const APIVersion = "v1"

// VersionResponse is the response from /v1/version.
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

// BridgeVersion identifies the bridge a host is running.
type BridgeVersion struct {
	Path        string `json:"path"`
	Generation  uint64 `json:"generation"`
	ReportedPID int    `json:"reported_pid,omitempty"`
}

// Compatible reports whether the host serves the API revision this client
// speaks. Hosts that predate api_version are assumed compatible.
func (v *VersionResponse) Compatible() bool {
	return v.APIVersion == "" || v.APIVersion == APIVersion
}

// StatusResponse is the response from /v1/bridge/status.
type StatusResponse struct {
	Status string       `json:"status"`
	State  bridge.State `json:"state"`
	Detail string       `json:"detail,omitempty"`
}

// LogsOptions selects buffered output lines.
type LogsOptions struct {
	// Lines is the number of most recent lines. Zero means the host default.
	Lines int
	// Since returns lines at or after this time instead of the last N.
	Since time.Time
	// Stream restricts to stdout, stderr or supervisor.
	Stream string
}

type writeRequest struct {
	Data  *string  `json:"data,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

// Health returns the host health status.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Version returns the host version information.
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	var version VersionResponse
	if err := c.do(ctx, http.MethodGet, "/v1/version", nil, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// Ping checks if the host is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// Write sends each line to the bridge stdin in order. It returns how many
// lines were written, which is less than len(lines) on error.
func (c *Client) Write(ctx context.Context, lines ...string) (int, error) {
	req := writeRequest{Lines: lines}
	if len(lines) == 1 {
		req = writeRequest{Data: &lines[0]}
	}
	var resp struct {
		Written int `json:"written"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/bridge/write", req, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.Written, err
		}
		return 0, err
	}
	return resp.Written, nil
}

// Status returns the bridge status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var st StatusResponse
	if err := c.do(ctx, http.MethodGet, "/v1/bridge/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Restart replaces the bridge process and returns the host's message.
func (c *Client) Restart(ctx context.Context) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/bridge/restart", nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Info returns a description of the current bridge.
func (c *Client) Info(ctx context.Context) (*bridge.Info, error) {
	var info bridge.Info
	if err := c.do(ctx, http.MethodGet, "/v1/bridge/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Logs returns buffered bridge output.
func (c *Client) Logs(ctx context.Context, opts LogsOptions) ([]bridge.LogLine, error) {
	q := url.Values{}
	if opts.Lines > 0 {
		q.Set("lines", strconv.Itoa(opts.Lines))
	}
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if opts.Stream != "" {
		q.Set("stream", opts.Stream)
	}

	var resp struct {
		Lines []bridge.LogLine `json:"lines"`
	}
	if err := c.do(ctx, http.MethodGet, withQuery("/v1/bridge/logs", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// Lifecycle returns the last n lifecycle journal entries.
func (c *Client) Lifecycle(ctx context.Context, n int) ([]lifecycle.Entry, error) {
	q := url.Values{}
	if n > 0 {
		q.Set("lines", strconv.Itoa(n))
	}
	var resp struct {
		Entries []lifecycle.Entry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, withQuery("/v1/lifecycle", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// OpenDevtools opens the main window's developer tools.
func (c *Client) OpenDevtools(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/window/devtools/open", nil, nil)
}

// CloseDevtools closes the main window's developer tools.
func (c *Client) CloseDevtools(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/window/devtools/close", nil, nil)
}

// DevtoolsOpen reports whether the main window's developer tools are open.
func (c *Client) DevtoolsOpen(ctx context.Context) (bool, error) {
	var resp struct {
		Open bool `json:"open"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/window/devtools", nil, &resp); err != nil {
		return false, err
	}
	return resp.Open, nil
}

// Reload reloads the main window.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/window/reload", nil, nil)
}

// Back navigates the main window back.
func (c *Client) Back(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/window/back", nil, nil)
}

// Forward navigates the main window forward.
func (c *Client) Forward(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/window/forward", nil, nil)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	resp, err := c.send(ctx, method, path, bodyReader, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send performs a request and returns the response for 2xx statuses.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if IsDaemonNotRunning(err) {
			return nil, &DaemonNotRunningError{Address: c.address, Err: err}
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Status  string `json:"status"`
		Written int    `json:"written"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
		apiErr.Status = body.Status
		apiErr.Written = body.Written
	} else {
		apiErr.Message = fmt.Sprintf("host returned error %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return apiErr
}
