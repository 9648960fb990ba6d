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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tombee/bridgeshell/internal/lifecycle"
)

// DefaultStartTimeout bounds how long StartHost waits for the API.
const DefaultStartTimeout = 10 * time.Second

// StartConfig describes how to launch a background host.
type StartConfig struct {
	// Binary is the host executable, usually the running bridgeshell binary.
	Binary string
	// Args select foreground serving, e.g. ["serve"].
	Args []string
	// LogPath receives the host's stdout and stderr.
	LogPath string
	// Timeout bounds the wait for the API. Zero uses DefaultStartTimeout.
	Timeout time.Duration
}

// StartHost spawns a detached host and waits until c can reach it. It
// returns the host PID.
func (c *Client) StartHost(ctx context.Context, cfg StartConfig) (int, error) {
	pid, err := lifecycle.SpawnDetached(lifecycle.DetachedCommand{
		Binary:  cfg.Binary,
		Args:    cfg.Args,
		LogPath: cfg.LogPath,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to start host: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	if err := c.WaitReady(ctx, timeout); err != nil {
		return pid, fmt.Errorf("host %d did not become ready (see %s): %w", pid, cfg.LogPath, err)
	}
	return pid, nil
}

// WaitReady polls /v1/health with exponential backoff until the host
// answers or timeout elapses.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = timeout

	var lastErr error
	err := backoff.Retry(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		_, lastErr = c.Health(attemptCtx)
		if lastErr != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return lastErr
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if lastErr != nil && !errors.Is(err, context.Canceled) {
			return lastErr
		}
		return err
	}
	return nil
}
