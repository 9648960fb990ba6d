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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
	bridgepkg "github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/client"
	"github.com/tombee/bridgeshell/internal/commands/completion"
	"github.com/tombee/bridgeshell/internal/commands/shared"
)

type eventsOptions struct {
	kinds  []string
	filter string
	count  int
}

// NewEventsCommand creates the events command.
func NewEventsCommand() *cobra.Command {
	var opts eventsOptions

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream messages from the bridge",
		Long: `Stream bridge output as classified messages.

Every stdout line is classified as a JSON-RPC notification, request or
response, or as raw text. Lifecycle messages report launches, exits and
restarts. Use --filter to apply a jq expression to each message; messages
for which it yields null or false are skipped.`,
		Example: `  # All notifications
  bridgeshell events --kind notification

  # Method names of incoming requests
  bridgeshell events --kind request --filter .method

  # Wait for the next response, then exit
  bridgeshell events --kind response --count 1`,
		Annotations: map[string]string{
			"group": "bridge",
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.kinds, "kind", nil, "Message kinds: notification, request, response, raw, lifecycle")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "jq expression applied to each message")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Exit after this many messages (0 streams until interrupted)")
	_ = cmd.RegisterFlagCompletionFunc("kind", completion.CompleteMessageKinds)

	return cmd
}

func runEvents(cmd *cobra.Command, opts eventsOptions) error {
	for _, k := range opts.kinds {
		if !bridgepkg.MessageKind(k).Valid() {
			return shared.NewUsageError(fmt.Sprintf("invalid --kind %q", k))
		}
	}

	var code *gojq.Code
	if opts.filter != "" {
		query, err := gojq.Parse(opts.filter)
		if err != nil {
			return shared.NewUsageError(fmt.Sprintf("invalid --filter: %v", err))
		}
		if code, err = gojq.Compile(query); err != nil {
			return shared.NewUsageError(fmt.Sprintf("invalid --filter: %v", err))
		}
	}

	c, err := shared.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	out := cmd.OutOrStdout()
	seen := 0
	err = c.Events(cmd.Context(), opts.kinds, func(m bridgepkg.Message) error {
		printed, err := printMessage(cmd.Context(), out, m, code)
		if err != nil {
			return err
		}
		if printed {
			seen++
		}
		if opts.count > 0 && seen >= opts.count {
			return client.ErrStopStream
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return shared.Classify("event stream failed", err)
}

// printMessage writes m, or the results of code applied to m. It reports
// whether anything was written.
func printMessage(ctx context.Context, w io.Writer, m bridgepkg.Message, code *gojq.Code) (bool, error) {
	if code == nil {
		if shared.GetJSON() {
			return true, json.NewEncoder(w).Encode(m)
		}
		label := string(m.Kind)
		if m.Method != "" {
			label += " " + m.Method
		}
		fmt.Fprintf(w, "%s %s %s\n",
			shared.Muted.Render(m.Time.Local().Format("15:04:05.000")),
			shared.Bold.Render(label),
			m.Line)
		return true, nil
	}

	input, err := toJQInput(m)
	if err != nil {
		return false, err
	}
	printed := false
	iter := code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return printed, fmt.Errorf("filter failed: %w", err)
		}
		if v == nil || v == false {
			continue
		}
		if s, ok := v.(string); ok && !shared.GetJSON() {
			fmt.Fprintln(w, s)
		} else if err := json.NewEncoder(w).Encode(v); err != nil {
			return printed, err
		}
		printed = true
	}
	return printed, nil
}

// toJQInput converts m to the plain maps gojq operates on. A line holding
// JSON is exposed decoded under "message".
func toJQInput(m bridgepkg.Message) (map[string]any, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	var body any
	if m.Kind != bridgepkg.KindRaw && m.Kind != bridgepkg.KindLifecycle && json.Unmarshal([]byte(m.Line), &body) == nil {
		v["message"] = body
	}
	return v, nil
}
