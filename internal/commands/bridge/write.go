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
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/commands/shared"
	"golang.org/x/term"
)

// maxLineSize bounds a single line read from stdin.
const maxLineSize = 1 << 20

// NewWriteCommand creates the write command.
func NewWriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "write [line...]",
		Short: "Send lines to the bridge's stdin",
		Long: `Send one or more lines to the bridge process's standard input.

Each argument is sent as one line. With no arguments, lines are read from
stdin until EOF. A newline is appended to every line.`,
		Example: `  # Send a JSON-RPC request
  bridgeshell write '{"jsonrpc":"2.0","id":1,"method":"ping"}'

  # Send the contents of a file
  bridgeshell write < requests.jsonl`,
		Annotations: map[string]string{
			"group": "bridge",
		},
		RunE: runWrite,
	}
}

func runWrite(cmd *cobra.Command, args []string) error {
	lines := args
	if len(lines) == 0 {
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return shared.NewUsageError("no lines given; pass them as arguments or pipe them on stdin")
		}
		var err error
		if lines, err = readLines(in); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		if len(lines) == 0 {
			return nil
		}
	}

	c, ctx, cancel, err := connect(cmd, requestTimeout)
	if err != nil {
		return err
	}
	defer cancel()

	n, err := c.Write(ctx, lines...)
	if err != nil {
		if n > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d of %d lines were written before the failure\n", n, len(lines))
		}
		return shared.Classify("failed to write to bridge", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitResult(out, "write", map[string]int{"written": n})
	}
	if shared.GetVerbose() {
		fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("wrote %d line(s)", n)))
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
