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
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/commands/shared"
	windowpkg "github.com/tombee/bridgeshell/internal/window"
)

type fakeWindow struct {
	mu       sync.Mutex
	attached bool
	devtools bool
	calls    []string
}

func (f *fakeWindow) handler() http.Handler {
	mux := http.NewServeMux()
	action := func(name string, apply func()) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			if !f.attached {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "main window not found", "code": "WINDOW_NOT_FOUND"})
				return
			}
			f.calls = append(f.calls, name)
			if apply != nil {
				apply()
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "open": f.devtools})
		}
	}
	mux.HandleFunc("POST /v1/window/devtools/open", action("open", func() { f.devtools = true }))
	mux.HandleFunc("POST /v1/window/devtools/close", action("close", func() { f.devtools = false }))
	mux.HandleFunc("GET /v1/window/devtools", action("state", nil))
	mux.HandleFunc("POST /v1/window/reload", action("reload", nil))
	mux.HandleFunc("POST /v1/window/back", action("back", nil))
	mux.HandleFunc("POST /v1/window/forward", action("forward", nil))
	return mux
}

func run(t *testing.T, url string, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)

	root := &cobra.Command{Use: "bridgeshell", SilenceUsage: true, SilenceErrors: true}
	flags := shared.RegisterFlagPointers()
	root.PersistentFlags().BoolVar(flags.JSON, "json", false, "")
	root.PersistentFlags().StringVar(flags.Host, "host", "", "")
	root.AddCommand(cmd)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--host", url))
	err := root.Execute()
	return out.String(), err
}

func TestDevtools(t *testing.T) {
	f := &fakeWindow{attached: true}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	if _, err := run(t, srv.URL, NewDevtoolsCommand(), "devtools", "open"); err != nil {
		t.Fatalf("devtools open: %v", err)
	}

	out, err := run(t, srv.URL, NewDevtoolsCommand(), "devtools", "status", "--json")
	if err != nil {
		t.Fatalf("devtools status: %v", err)
	}
	var state map[string]bool
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !state["open"] {
		t.Errorf("expected devtools open, got %q", out)
	}

	if _, err := run(t, srv.URL, NewDevtoolsCommand(), "devtools", "close"); err != nil {
		t.Fatalf("devtools close: %v", err)
	}
	out, _ = run(t, srv.URL, NewDevtoolsCommand(), "devtools", "status")
	if !strings.Contains(out, "closed") {
		t.Errorf("expected closed, got %q", out)
	}
}

func TestNavigation(t *testing.T) {
	f := &fakeWindow{attached: true}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	for _, tc := range []struct {
		cmd  *cobra.Command
		want string
	}{
		{NewReloadCommand(), "reload"},
		{NewBackCommand(), "back"},
		{NewForwardCommand(), "forward"},
	} {
		if _, err := run(t, srv.URL, tc.cmd, tc.cmd.Name()); err != nil {
			t.Fatalf("%s: %v", tc.want, err)
		}
	}

	want := []string{"reload", "back", "forward"}
	if strings.Join(f.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", f.calls, want)
	}
}

func TestWindowNotFound(t *testing.T) {
	srv := httptest.NewServer((&fakeWindow{}).handler())
	defer srv.Close()

	_, err := run(t, srv.URL, NewReloadCommand(), "reload")
	if !errors.Is(err, windowpkg.ErrWindowNotFound) {
		t.Fatalf("expected ErrWindowNotFound, got %v", err)
	}
	var exitErr *shared.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != shared.ExitWindowNotFound {
		t.Errorf("expected exit code %d, got %v", shared.ExitWindowNotFound, err)
	}
}
