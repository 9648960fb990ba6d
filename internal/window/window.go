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

// Package window forwards devtools and navigation actions to the UI window
// labelled "main".
package window

import (
	"errors"
	"fmt"
	"log/slog"
)

// MainLabel is the label of the window all actions target.
const MainLabel = "main"

// ErrWindowNotFound is returned when no main window is registered.
var ErrWindowNotFound = errors.New("main window not found")

// Navigation scripts evaluated in the window.
const (
	ScriptReload  = "window.location.reload()"
	ScriptBack    = "window.history.back()"
	ScriptForward = "window.history.forward()"
)

// Window is a UI window that can be driven by the host.
type Window interface {
	OpenDevtools()
	CloseDevtools()
	IsDevtoolsOpen() bool
	Eval(script string) error
}

// Host looks up windows by label.
type Host interface {
	Window(label string) (Window, bool)
}

// Delegate performs window actions on the main window.
type Delegate struct {
	host   Host
	logger *slog.Logger
}

// NewDelegate creates a delegate over host.
func NewDelegate(host Host, logger *slog.Logger) *Delegate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delegate{host: host, logger: logger}
}

func (d *Delegate) main() (Window, error) {
	w, ok := d.host.Window(MainLabel)
	if !ok {
		return nil, ErrWindowNotFound
	}
	return w, nil
}

// OpenDevtools opens the developer tools.
func (d *Delegate) OpenDevtools() error {
	w, err := d.main()
	if err != nil {
		return err
	}
	w.OpenDevtools()
	return nil
}

// CloseDevtools closes the developer tools.
func (d *Delegate) CloseDevtools() error {
	w, err := d.main()
	if err != nil {
		return err
	}
	w.CloseDevtools()
	return nil
}

// IsDevtoolsOpen reports whether the developer tools are open.
func (d *Delegate) IsDevtoolsOpen() (bool, error) {
	w, err := d.main()
	if err != nil {
		return false, err
	}
	return w.IsDevtoolsOpen(), nil
}

// Reload reloads the page.
func (d *Delegate) Reload() error { return d.eval("reload", ScriptReload) }

// Back navigates back in history.
func (d *Delegate) Back() error { return d.eval("back", ScriptBack) }

// Forward navigates forward in history.
func (d *Delegate) Forward() error { return d.eval("forward", ScriptForward) }

func (d *Delegate) eval(action, script string) error {
	w, err := d.main()
	if err != nil {
		return err
	}
	if err := w.Eval(script); err != nil {
		d.logger.Warn("window action failed", "action", action, "error", err)
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}
