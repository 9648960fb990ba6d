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
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	bridgepkg "github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/client"
	"github.com/tombee/bridgeshell/internal/commands/completion"
	"github.com/tombee/bridgeshell/internal/commands/shared"
	"github.com/tombee/bridgeshell/internal/lifecycle"
)

type logsOptions struct {
	lines   int
	since   string
	stream  string
	follow  bool
	journal bool
}

// NewLogsCommand creates the logs command.
func NewLogsCommand() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent bridge output",
		Long: `Show output lines the host has captured from the bridge.

The host keeps the most recent lines across restarts. Use --since to select
lines by age instead of count, --follow to keep printing new output, and
--journal to show the lifecycle journal (launches, exits, restarts)
instead.`,
		Example: `  # Last 50 lines
  bridgeshell logs --lines 50

  # Stderr from the last five minutes
  bridgeshell logs --since 5m --stream stderr

  # Follow new output
  bridgeshell logs -f

  # Lifecycle journal
  bridgeshell logs --journal`,
		Annotations: map[string]string{
			"group": "bridge",
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 0, "Number of lines (0 uses the host default)")
	cmd.Flags().StringVar(&opts.since, "since", "", "Only lines newer than a duration (5m) or RFC3339 time")
	cmd.Flags().StringVar(&opts.stream, "stream", "", "Only one stream: stdout, stderr or supervisor")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Keep printing new output")
	cmd.Flags().BoolVar(&opts.journal, "journal", false, "Show the lifecycle journal")
	_ = cmd.RegisterFlagCompletionFunc("stream", completion.CompleteStreams)

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	switch opts.stream {
	case "", bridgepkg.StreamStdout, bridgepkg.StreamStderr, bridgepkg.StreamSupervisor:
	default:
		return shared.NewUsageError(fmt.Sprintf("invalid --stream %q", opts.stream))
	}
	since, err := parseSince(opts.since, time.Now())
	if err != nil {
		return shared.NewUsageError(err.Error())
	}

	c, err := shared.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	out := cmd.OutOrStdout()

	reqCtx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	if opts.journal {
		entries, err := c.Lifecycle(reqCtx, opts.lines)
		if err != nil {
			return shared.Classify("failed to read lifecycle journal", err)
		}
		if shared.GetJSON() {
			return shared.EmitJSON(out, entries)
		}
		for _, e := range entries {
			printEntry(out, e)
		}
		return nil
	}

	lines, err := c.Logs(reqCtx, client.LogsOptions{Lines: opts.lines, Since: since, Stream: opts.stream})
	if err != nil {
		return shared.Classify("failed to read bridge logs", err)
	}
	if shared.GetJSON() && !opts.follow {
		return shared.EmitJSON(out, lines)
	}
	for _, l := range lines {
		printLogLine(out, l)
	}
	if !opts.follow {
		return nil
	}

	err = c.Events(cmd.Context(), nil, func(m bridgepkg.Message) error {
		if m.Kind == bridgepkg.KindLifecycle || (opts.stream != "" && m.Stream != opts.stream) {
			return nil
		}
		printLogLine(out, bridgepkg.LogLine{Timestamp: m.Time, Stream: m.Stream, Generation: m.Generation, Text: m.Line})
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return shared.Classify("log stream failed", err)
}

// parseSince accepts a duration relative to now or an absolute RFC3339 time.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: use a duration like 5m or an RFC3339 time", s)
	}
	return t, nil
}

func printLogLine(w io.Writer, l bridgepkg.LogLine) {
	if shared.GetJSON() {
		_ = shared.EmitJSON(w, l)
		return
	}
	stream := l.Stream
	if stream == bridgepkg.StreamStderr {
		stream = shared.StatusWarn.Render(stream)
	} else {
		stream = shared.Muted.Render(stream)
	}
	fmt.Fprintf(w, "%s %s %s\n", shared.Muted.Render(l.Timestamp.Local().Format("15:04:05.000")), stream, l.Text)
}

func printEntry(w io.Writer, e lifecycle.Entry) {
	var detail []string
	if e.PID != 0 {
		detail = append(detail, fmt.Sprintf("pid=%d", e.PID))
	}
	for _, k := range []string{"generation", "status", "reason", "path"} {
		if v, ok := e.Details[k]; ok {
			detail = append(detail, fmt.Sprintf("%s=%v", k, v))
		}
	}
	if e.Error != "" {
		detail = append(detail, shared.StatusError.Render("error="+e.Error))
	}
	fmt.Fprintf(w, "%s %s %s\n",
		shared.Muted.Render(e.Timestamp.Local().Format(time.RFC3339)),
		shared.Bold.Render(e.Event),
		strings.Join(detail, " "))
}
