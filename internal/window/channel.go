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

package window

import (
	"errors"
	"sync"
)

// Command actions sent to an attached UI.
const (
	ActionOpenDevtools  = "open_devtools"
	ActionCloseDevtools = "close_devtools"
	ActionEval          = "eval"
)

// ErrNotDelivered is returned when no attached UI accepted an eval.
var ErrNotDelivered = errors.New("window did not accept command")

// Command is an instruction for the UI process that renders the window.
type Command struct {
	Action string `json:"action"`
	Script string `json:"script,omitempty"`
}

// Channel is a Window rendered by an out-of-process UI that attaches over
// the controller API. It is registered under its label only while at least
// one UI is attached.
type Channel struct {
	label    string
	registry *Registry

	mu         sync.Mutex
	subs       map[uint64]chan Command
	next       uint64
	devtools   bool
	unregister func()
}

// NewChannel creates a channel that registers itself in registry under label.
func NewChannel(registry *Registry, label string) *Channel {
	return &Channel{
		label:    label,
		registry: registry,
		subs:     make(map[uint64]chan Command),
	}
}

// Attach connects a UI. The returned function detaches it.
func (c *Channel) Attach(capacity int) (<-chan Command, func()) {
	if capacity <= 0 {
		capacity = 16
	}
	ch := make(chan Command, capacity)

	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	if len(c.subs) == 1 {
		c.unregister = c.registry.Register(c.label, c)
	}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
			if len(c.subs) == 0 && c.unregister != nil {
				c.unregister()
				c.unregister = nil
				c.devtools = false
			}
		})
	}
}

// Attached returns the number of connected UIs.
func (c *Channel) Attached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Channel) sendLocked(cmd Command) int {
	delivered := 0
	for _, ch := range c.subs {
		select {
		case ch <- cmd:
			delivered++
		default:
		}
	}
	return delivered
}

// OpenDevtools implements Window.
func (c *Channel) OpenDevtools() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devtools = true
	c.sendLocked(Command{Action: ActionOpenDevtools})
}

// CloseDevtools implements Window.
func (c *Channel) CloseDevtools() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devtools = false
	c.sendLocked(Command{Action: ActionCloseDevtools})
}

// IsDevtoolsOpen implements Window.
func (c *Channel) IsDevtoolsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devtools
}

// Eval implements Window.
func (c *Channel) Eval(script string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendLocked(Command{Action: ActionEval, Script: script}) == 0 {
		return ErrNotDelivered
	}
	return nil
}
