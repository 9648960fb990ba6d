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

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_Record(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "data", "lifecycle.log"))
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	require.NoError(t, j.Record("bridge.launched", map[string]any{
		"pid":        4242,
		"generation": uint64(3),
		"detail":     "/usr/bin/db-bridge",
	}))

	entries, err := j.Tail(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "bridge.launched", e.Event)
	assert.Equal(t, 4242, e.PID)
	assert.Equal(t, "/usr/bin/db-bridge", e.Message)
	assert.Equal(t, float64(3), e.Details["generation"])
	assert.True(t, e.Timestamp.Equal(fixed))

	info, err := os.Stat(j.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestJournal_HostEvents(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "lifecycle.log"))

	require.NoError(t, j.HostStarted(100, "v1.2.3", []string{"serve", "--config", "/etc/b.yaml", "--verbose", "--host=unix:///tmp/s"}, "/etc/b.yaml"))
	require.NoError(t, j.HostReady(100, 3, 150*time.Millisecond))
	require.NoError(t, j.StalePID(99, "process not running"))
	require.NoError(t, j.HostStopped(100, time.Second, nil))
	require.NoError(t, j.HostStopped(100, time.Second, errors.New("timeout")))

	entries, err := j.Tail(0)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	start := entries[0]
	assert.Equal(t, EventHostStart, start.Event)
	assert.Equal(t, "v1.2.3", start.Version)
	assert.Equal(t, map[string]string{
		"config":  "/etc/b.yaml",
		"verbose": "true",
		"host":    "unix:///tmp/s",
	}, start.Flags)

	assert.Equal(t, EventHostReady, entries[1].Event)
	assert.Contains(t, entries[1].Message, "health checks: 3")
	assert.Equal(t, EventStalePID, entries[2].Event)
	assert.Equal(t, EventHostStop, entries[3].Event)
	assert.Equal(t, EventHostStopError, entries[4].Event)
	assert.Equal(t, "timeout", entries[4].Error)
}

func TestJournal_Tail(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "lifecycle.log"))

	entries, err := j.Tail(5)
	require.NoError(t, err)
	assert.Empty(t, entries)

	for i := 0; i < 10; i++ {
		require.NoError(t, j.Record(fmt.Sprintf("event-%d", i), nil))
	}
	f, err := os.OpenFile(j.Path(), os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, _ = f.WriteString("not json\n")
	require.NoError(t, f.Close())

	entries, err = j.Tail(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "event-7", entries[0].Event)
	assert.Equal(t, "event-9", entries[2].Event)
}

func TestJournal_ConcurrentRecord(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "lifecycle.log"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = j.Record("bridge.exited", map[string]any{"pid": i})
		}(i)
	}
	wg.Wait()

	entries, err := j.Tail(0)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}
