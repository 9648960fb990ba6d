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
	"fmt"
	"strings"
)

// State is the observable lifecycle state of the bridge.
type State string

const (
	// StateNotStarted means the store holds no handle.
	StateNotStarted State = "not_started"
	// StateRunning means the held process has not terminated.
	StateRunning State = "running"
	// StateExited means the held process has terminated.
	StateExited State = "exited"
)

// Status is the result of a status query.
type Status struct {
	State State
	// Detail is the exit status text when State is StateExited.
	Detail string
}

// NotStarted returns the status of an empty store.
func NotStarted() Status { return Status{State: StateNotStarted} }

// Running returns the status of a live process.
func Running() Status { return Status{State: StateRunning} }

// Exited returns the status of a terminated process.
func Exited(detail string) Status { return Status{State: StateExited, Detail: detail} }

// String renders the status as "not_started", "running" or "exited:<status>".
func (s Status) String() string {
	if s.State == StateExited {
		return string(StateExited) + ":" + s.Detail
	}
	return string(s.State)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses the textual form produced by Status.String.
func ParseStatus(text string) (Status, error) {
	switch {
	case text == string(StateNotStarted):
		return NotStarted(), nil
	case text == string(StateRunning):
		return Running(), nil
	case strings.HasPrefix(text, string(StateExited)+":"):
		return Exited(strings.TrimPrefix(text, string(StateExited)+":")), nil
	default:
		return Status{}, fmt.Errorf("unknown bridge status %q", text)
	}
}
