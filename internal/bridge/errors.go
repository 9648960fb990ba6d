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
	"errors"
	"fmt"
)

// ErrorCode represents a category of bridge error.
type ErrorCode string

const (
	// CodeUnavailable indicates no bridge handle is held.
	CodeUnavailable ErrorCode = "UNAVAILABLE"
	// CodeProcessExited indicates the bridge process has terminated.
	CodeProcessExited ErrorCode = "PROCESS_EXITED"
	// CodeIO indicates a write or flush to the bridge stdin failed.
	CodeIO ErrorCode = "IO"
	// CodeSpawn indicates the bridge process could not be started.
	CodeSpawn ErrorCode = "SPAWN"
	// CodeStatusPoll indicates the liveness query itself failed.
	CodeStatusPoll ErrorCode = "STATUS_POLL"
	// CodeRestartTimeout indicates the old process could not be reaped.
	CodeRestartTimeout ErrorCode = "RESTART_TIMEOUT"
	// CodePoisoned indicates the handle store was left inconsistent by a panic.
	CodePoisoned ErrorCode = "POISONED"
)

// Error is returned by all supervisor operations.
type Error struct {
	// Code is the error category.
	Code ErrorCode
	// Message is the caller-facing message.
	Message string
	// Status is the exit status text for CodeProcessExited.
	Status string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a bridge error with the same code.
// This lets errors.Is(err, ErrUnavailable) match any unavailable error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for use with errors.Is.
var (
	ErrUnavailable    = &Error{Code: CodeUnavailable, Message: "bridge not available"}
	ErrProcessExited  = &Error{Code: CodeProcessExited, Message: "bridge process exited"}
	ErrIO             = &Error{Code: CodeIO, Message: "failed to write to bridge"}
	ErrSpawn          = &Error{Code: CodeSpawn, Message: "failed to spawn bridge"}
	ErrStatusPoll     = &Error{Code: CodeStatusPoll, Message: "failed to check bridge status"}
	ErrRestartTimeout = &Error{Code: CodeRestartTimeout, Message: "bridge did not exit before restart timeout"}
	ErrStorePoisoned  = &Error{Code: CodePoisoned, Message: "bridge handle store poisoned"}
)

func unavailableError() *Error {
	return &Error{Code: CodeUnavailable, Message: "bridge not available"}
}

func exitedError(status string) *Error {
	return &Error{
		Code:    CodeProcessExited,
		Message: fmt.Sprintf("bridge process exited with status: %s", status),
		Status:  status,
	}
}

func ioError(err error) *Error {
	return &Error{
		Code:    CodeIO,
		Message: fmt.Sprintf("failed to write to bridge: %v", err),
		Cause:   err,
	}
}

func spawnError(err error) *Error {
	return &Error{
		Code:    CodeSpawn,
		Message: fmt.Sprintf("failed to spawn bridge: %v", err),
		Cause:   err,
	}
}

func pollError(err error) *Error {
	return &Error{
		Code:    CodeStatusPoll,
		Message: fmt.Sprintf("failed to check bridge status: %v", err),
		Cause:   err,
	}
}

func restartTimeoutError(pid int) *Error {
	return &Error{
		Code:    CodeRestartTimeout,
		Message: fmt.Sprintf("bridge process %d did not exit before restart timeout", pid),
	}
}

// CodeOf returns the bridge error code carried by err, or "" if err is not a
// bridge error.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
