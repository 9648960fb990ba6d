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
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Host events written alongside the bridge events recorded by the supervisor.
const (
	EventHostStart     = "host.start"
	EventHostReady     = "host.ready"
	EventHostStop      = "host.stop"
	EventHostStopError = "host.stop_failure"
	EventStalePID      = "host.stale_pid"
)

// Entry is one line of the lifecycle journal.
type Entry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Event      string            `json:"event"`
	PID        int               `json:"pid,omitempty"`
	Version    string            `json:"version,omitempty"`
	Message    string            `json:"message,omitempty"`
	Flags      map[string]string `json:"flags,omitempty"`
	ConfigFile string            `json:"config_file,omitempty"`
	Details    map[string]any    `json:"details,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Journal appends lifecycle entries to a JSON-lines file. It is safe for
// concurrent use; bridge exits are recorded from reaper goroutines.
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewJournal returns a journal writing to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path, now: time.Now}
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}

// Record appends a bridge event. It satisfies bridge.EventRecorder.
func (j *Journal) Record(event string, details map[string]any) error {
	entry := Entry{Event: event}
	if len(details) > 0 {
		entry.Details = make(map[string]any, len(details))
		for k, v := range details {
			switch k {
			case "pid":
				if pid, ok := v.(int); ok {
					entry.PID = pid
					continue
				}
			case "detail":
				if s, ok := v.(string); ok {
					entry.Message = s
					continue
				}
			}
			entry.Details[k] = v
		}
	}
	return j.write(entry)
}

// HostStarted records that a host process began serving.
func (j *Journal) HostStarted(pid int, version string, args []string, configFile string) error {
	return j.write(Entry{
		Event:      EventHostStart,
		PID:        pid,
		Version:    version,
		Message:    "host started",
		Flags:      parseFlags(args),
		ConfigFile: configFile,
	})
}

// HostReady records that a detached host answered its health check.
func (j *Journal) HostReady(pid int, attempts int, took time.Duration) error {
	return j.write(Entry{
		Event:   EventHostReady,
		PID:     pid,
		Message: fmt.Sprintf("host ready (health checks: %d, duration: %v)", attempts, took),
	})
}

// HostStopped records a host shutdown. A nil err means it stopped cleanly.
func (j *Journal) HostStopped(pid int, took time.Duration, err error) error {
	entry := Entry{
		Event:   EventHostStop,
		PID:     pid,
		Message: fmt.Sprintf("host stopped (duration: %v)", took),
	}
	if err != nil {
		entry.Event = EventHostStopError
		entry.Message = "host failed to stop"
		entry.Error = err.Error()
	}
	return j.write(entry)
}

// StalePID records removal of a PID file left by a dead host.
func (j *Journal) StalePID(pid int, reason string) error {
	return j.write(Entry{
		Event:   EventStalePID,
		PID:     pid,
		Message: fmt.Sprintf("stale PID file removed: %s", reason),
	})
}

// Tail returns the last n entries, oldest first. Lines that do not decode
// are skipped. A missing journal yields no entries.
func (j *Journal) Tail(n int) ([]Entry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open lifecycle journal: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
		if n > 0 && len(entries) > n {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to read lifecycle journal: %w", err)
	}
	return entries, nil
}

func (j *Journal) write(entry Entry) error {
	entry.Timestamp = j.now()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// parseFlags turns command-line arguments into a flag map for the journal.
func parseFlags(args []string) map[string]string {
	if len(args) == 0 {
		return nil
	}
	flags := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		key := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(key, "="); ok {
			flags[k] = v
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			flags[key] = args[i+1]
			i++
		} else {
			flags[key] = "true"
		}
	}
	return flags
}
