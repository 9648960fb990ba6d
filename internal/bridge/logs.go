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

package bridge

import (
	"sync"
	"time"
)

// DefaultLogLines is the number of output lines kept when no size is configured.
const DefaultLogLines = 1000

// LogLine is a single line read from the bridge's stdout or stderr.
type LogLine struct {
	Timestamp  time.Time `json:"timestamp"`
	Stream     string    `json:"stream"`
	Generation uint64    `json:"generation"`
	Text       string    `json:"text"`
}

// LogBuffer keeps the most recent output lines across bridge generations.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogLine
	head    int
	tail    int
	size    int
	count   int
}

// NewLogBuffer creates a buffer holding up to capacity lines.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogLines
	}
	return &LogBuffer{
		entries: make([]LogLine, capacity),
		size:    capacity,
	}
}

// Add appends a line, evicting the oldest when full.
func (b *LogBuffer) Add(line LogLine) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.tail] = line
	b.tail = (b.tail + 1) % b.size

	if b.count < b.size {
		b.count++
	} else {
		b.head = (b.head + 1) % b.size
	}
}

// Last returns up to n lines, oldest first. n <= 0 returns everything.
func (b *LogBuffer) Last(n int) []LogLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || n > b.count {
		n = b.count
	}

	out := make([]LogLine, n)
	start := b.count - n
	for i := 0; i < n; i++ {
		out[i] = b.entries[(b.head+start+i)%b.size]
	}
	return out
}

// Since returns lines at or after t, oldest first.
func (b *LogBuffer) Since(t time.Time) []LogLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []LogLine
	for i := 0; i < b.count; i++ {
		line := b.entries[(b.head+i)%b.size]
		if !line.Timestamp.Before(t) {
			out = append(out, line)
		}
	}
	return out
}

// Len returns the number of buffered lines.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
