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

package completion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			root := &cobra.Command{Use: "bridgeshell"}
			root.AddCommand(NewCommand())

			var buf bytes.Buffer
			root.SetOut(&buf)
			root.SetArgs([]string{"completion", shell})
			if err := root.Execute(); err != nil {
				t.Fatalf("completion %s failed: %v", shell, err)
			}
			if !strings.Contains(buf.String(), "bridgeshell") {
				t.Errorf("expected script to mention bridgeshell")
			}
		})
	}

	root := &cobra.Command{Use: "bridgeshell"}
	root.AddCommand(NewCommand())
	root.SetArgs([]string{"completion", "tcsh"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestCompleteStreams(t *testing.T) {
	got, directive := CompleteStreams(nil, nil, "")
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("unexpected directive %v", directive)
	}
	if len(got) != 3 || !strings.HasPrefix(got[0], "stdout\t") {
		t.Errorf("unexpected completions %v", got)
	}
}

func TestCompleteMessageKinds(t *testing.T) {
	got, _ := CompleteMessageKinds(nil, nil, "")
	if len(got) != 5 {
		t.Errorf("expected 5 kinds, got %v", got)
	}
}

func TestSafeCompletionWrapper(t *testing.T) {
	got, directive := SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		panic("boom")
	})
	if len(got) != 0 || directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("expected empty completion after panic, got %v %v", got, directive)
	}

	got, _ = SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveDefault
	})
	if got == nil {
		t.Error("expected non-nil empty slice")
	}
}
