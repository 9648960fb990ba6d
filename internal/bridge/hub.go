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

	"github.com/tidwall/gjson"
)

// MessageKind classifies a line read from the bridge.
type MessageKind string

const (
	// KindNotification is a JSON-RPC message with a method and no id.
	KindNotification MessageKind = "notification"
	// KindRequest is a JSON-RPC message with both a method and an id.
	KindRequest MessageKind = "request"
	// KindResponse is a JSON-RPC message with an id and no method.
	KindResponse MessageKind = "response"
	// KindRaw is any other line.
	KindRaw MessageKind = "raw"
	// KindLifecycle is a supervisor event rather than child output.
	KindLifecycle MessageKind = "lifecycle"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case KindNotification, KindRequest, KindResponse, KindRaw, KindLifecycle:
		return true
	}
	return false
}

// Stream names used in messages and log lines.
const (
	StreamStdout     = "stdout"
	StreamStderr     = "stderr"
	StreamSupervisor = "supervisor"
)

// Lifecycle event methods published by the supervisor.
const (
	EventLaunched        = "bridge.launched"
	EventLaunchFailed    = "bridge.launch_failed"
	EventExited          = "bridge.exited"
	EventRestarting      = "bridge.restarting"
	EventTeardownTimeout = "bridge.teardown_timeout"
)

// ReadyMethod is the notification the bridge emits once it accepts input.
const ReadyMethod = "bridge.ready"

// Message is one unit published on the hub.
type Message struct {
	Time       time.Time   `json:"time"`
	Generation uint64      `json:"generation"`
	Stream     string      `json:"stream"`
	Kind       MessageKind `json:"kind"`
	Method     string      `json:"method,omitempty"`
	ID         string      `json:"id,omitempty"`
	Line       string      `json:"line"`
}

// classify inspects a line without decoding it fully.
func classify(line string) (MessageKind, string, string) {
	if !gjson.Valid(line) {
		return KindRaw, "", ""
	}
	res := gjson.GetMany(line, "method", "id")
	method, id := res[0], res[1]
	switch {
	case method.Exists() && id.Exists():
		return KindRequest, method.String(), id.String()
	case method.Exists():
		return KindNotification, method.String(), ""
	case id.Exists():
		return KindResponse, "", id.String()
	default:
		return KindRaw, "", ""
	}
}

// Hub fans messages out to subscribers. Publishing never blocks: a
// subscriber whose channel is full misses the message.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]chan Message
	next uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Message)}
}

// Subscribe registers a subscriber with the given channel capacity. The
// returned function unsubscribes and closes the channel.
func (h *Hub) Subscribe(capacity int) (<-chan Message, func()) {
	if capacity <= 0 {
		capacity = 64
	}
	ch := make(chan Message, capacity)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers m to every subscriber with room for it and returns the
// number of subscribers that received it.
func (h *Hub) Publish(m Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, ch := range h.subs {
		select {
		case ch <- m:
			delivered++
		default:
			bridgeMessagesDropped.Inc()
		}
	}
	return delivered
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
