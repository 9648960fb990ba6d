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

package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/commands/shared"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "bridgeshell" {
		t.Errorf("expected use 'bridgeshell', got %q", cmd.Use)
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("expected descriptions to be set")
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"verbose", "quiet", "json", "config", "host"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("%s flag not registered", name)
		}
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2025-12-22")
	defer SetVersion("dev", "unknown", "unknown")

	v, c, b := GetVersion()
	if v != "1.2.3" || c != "abc123" || b != "2025-12-22" {
		t.Errorf("unexpected version %q %q %q", v, c, b)
	}
}

func TestAddCommands_Groups(t *testing.T) {
	root := NewRootCommand()
	grouped := &cobra.Command{Use: "status", Annotations: map[string]string{"group": "bridge"}, Run: func(*cobra.Command, []string) {}}
	ungrouped := &cobra.Command{Use: "version", Run: func(*cobra.Command, []string) {}}
	unknown := &cobra.Command{Use: "odd", Annotations: map[string]string{"group": "nope"}, Run: func(*cobra.Command, []string) {}}

	AddCommands(root, grouped, ungrouped, unknown)

	if grouped.GroupID != "bridge" {
		t.Errorf("expected bridge group, got %q", grouped.GroupID)
	}
	if ungrouped.GroupID != "" || unknown.GroupID != "" {
		t.Errorf("expected no group, got %q and %q", ungrouped.GroupID, unknown.GroupID)
	}
}

func TestHelpCommandJSON(t *testing.T) {
	defer shared.ResetFlagsForTest()

	root := NewRootCommand()
	sample := &cobra.Command{
		Use:         "sample",
		Short:       "Sample subcommand",
		Example:     "  bridgeshell sample --flag value",
		Annotations: map[string]string{"group": "bridge"},
		Run:         func(*cobra.Command, []string) {},
	}
	sample.Flags().String("flag", "", "A sample flag")
	AddCommands(root, sample)
	root.SetHelpCommand(NewHelpCommand(root))

	t.Run("all commands", func(t *testing.T) {
		var buf bytes.Buffer
		root.SetOut(&buf)
		root.SetArgs([]string{"help", "--json"})
		if err := root.Execute(); err != nil {
			t.Fatalf("help failed: %v", err)
		}

		var resp HelpResponse
		if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if len(resp.GlobalFlags) != 5 {
			t.Errorf("expected 5 global flags, got %d", len(resp.GlobalFlags))
		}
		found := false
		for _, c := range resp.Commands {
			if c.Name == "sample" && c.Group == "bridge" {
				found = true
			}
		}
		if !found {
			t.Errorf("sample command missing from %+v", resp.Commands)
		}
	})

	t.Run("one command", func(t *testing.T) {
		var buf bytes.Buffer
		root.SetOut(&buf)
		root.SetArgs([]string{"help", "sample", "--json"})
		if err := root.Execute(); err != nil {
			t.Fatalf("help failed: %v", err)
		}

		var resp HelpResponse
		if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if resp.Command == nil || resp.Command.Name != "sample" {
			t.Fatalf("expected sample command, got %+v", resp.Command)
		}
		if len(resp.Command.Flags) != 1 || resp.Command.Flags[0].Name != "flag" {
			t.Errorf("unexpected flags %+v", resp.Command.Flags)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		root.SetArgs([]string{"help", "missing"})
		if err := root.Execute(); err == nil {
			t.Error("expected error for unknown command")
		}
	})
}
