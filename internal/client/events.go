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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/window"
)

// ErrStopStream may be returned by a stream callback to end the stream
// without error.
var ErrStopStream = errors.New("stop stream")

// Event is one Server-Sent Event.
type Event struct {
	Name string
	Data []byte
}

// Events streams bridge messages until ctx is cancelled, the host closes
// the stream, or fn returns an error. kinds restricts the message kinds
// the host sends.
func (c *Client) Events(ctx context.Context, kinds []string, fn func(bridge.Message) error) error {
	q := url.Values{}
	if len(kinds) > 0 {
		q.Set("kind", strings.Join(kinds, ","))
	}
	return c.stream(ctx, withQuery("/v1/bridge/events", q), func(ev Event) error {
		var m bridge.Message
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		return fn(m)
	})
}

// Commands attaches as the main window and streams the commands the host
// sends it. The window stays attached until the stream ends.
func (c *Client) Commands(ctx context.Context, fn func(window.Command) error) error {
	return c.stream(ctx, "/v1/window/commands", func(ev Event) error {
		var cmd window.Command
		if err := json.Unmarshal(ev.Data, &cmd); err != nil {
			return fmt.Errorf("failed to decode command: %w", err)
		}
		return fn(cmd)
	})
}

func (c *Client) stream(ctx context.Context, path string, fn func(Event) error) error {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	err = ReadEvents(resp.Body, fn)
	switch {
	case errors.Is(err, ErrStopStream):
		return nil
	case err != nil && ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

// ReadEvents parses a Server-Sent Events stream and calls fn for every
// event. Comments and unnamed events are skipped.
func ReadEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var ev Event
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Name != "" || len(data) > 0 {
				ev.Data = []byte(strings.Join(data, "\n"))
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev, data = Event{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return scanner.Err()
}
