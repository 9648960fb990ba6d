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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "bridge:\n  command: first\n")

	reloads := make(chan *Config, 4)
	w, err := NewWatcher(WatcherConfig{
		Path:          path,
		OnReload:      func(c *Config) { reloads <- c },
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x"), 0600))

	// Invalid content is skipped.
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  stop_signal: NOPE\n"), 0600))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  command: second\n"), 0600))

	select {
	case cfg := <-reloads:
		assert.Equal(t, "second", cfg.Bridge.Command)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{OnReload: func(*Config) {}})
	assert.Error(t, err)

	_, err = NewWatcher(WatcherConfig{Path: "config.yaml"})
	assert.Error(t, err)
}
