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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/bridgeshell/internal/bridge"
	"github.com/tombee/bridgeshell/internal/client"
	"github.com/tombee/bridgeshell/internal/window"
)

// Exit codes for bridgeshell commands
const (
	ExitSuccess           = 0
	ExitFailed            = 1
	ExitUsage             = 2
	ExitHostNotRunning    = 3
	ExitBridgeUnavailable = 4
	ExitWindowNotFound    = 5
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code       int
	Message    string
	Cause      error
	Suggestion string
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUsageError creates an error for invalid arguments
func NewUsageError(msg string) *ExitError {
	return &ExitError{Code: ExitUsage, Message: msg}
}

// Classify maps err to the exit error a command should return. Host
// connection failures and the bridge and window error kinds get their own
// exit codes.
func Classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	var dnr *client.DaemonNotRunningError
	switch {
	case errors.As(err, &dnr):
		return &ExitError{Code: ExitHostNotRunning, Message: dnr.Error(), Suggestion: dnr.Guidance()}
	case errors.Is(err, bridge.ErrUnavailable):
		return &ExitError{Code: ExitBridgeUnavailable, Message: msg, Cause: err,
			Suggestion: "The bridge is not running. Try 'bridgeshell restart'."}
	case errors.Is(err, bridge.ErrProcessExited):
		return &ExitError{Code: ExitBridgeUnavailable, Message: msg, Cause: err,
			Suggestion: "Check 'bridgeshell logs', then run 'bridgeshell restart'."}
	case errors.Is(err, window.ErrWindowNotFound):
		return &ExitError{Code: ExitWindowNotFound, Message: msg, Cause: err}
	default:
		return &ExitError{Code: ExitFailed, Message: msg, Cause: err}
	}
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(PrintExitError(os.Stderr, err))
}

// PrintExitError writes err and any suggestion to w and returns the exit
// code for it.
func PrintExitError(w io.Writer, err error) int {
	code := ExitFailed
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.Code
	}

	fmt.Fprintln(w, RenderError("Error: "+err.Error()))
	if exitErr != nil && exitErr.Suggestion != "" {
		fmt.Fprintf(w, "\n%s\n", exitErr.Suggestion)
	}
	return code
}
