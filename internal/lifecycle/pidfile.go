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

package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrPIDFileExists is returned when the PID file already exists.
	ErrPIDFileExists = errors.New("PID file already exists")

	// ErrPIDFileLocked is returned when another process holds the PID file lock.
	ErrPIDFileLocked = errors.New("PID file is locked by another process")

	// ErrInvalidPID is returned when the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid PID in file")

	// ErrUnsafeDirectory is returned when the PID file parent is world-writable.
	ErrUnsafeDirectory = errors.New("PID file directory is world-writable")

	// ErrAlreadyRunning is returned when a live host already owns the PID file.
	ErrAlreadyRunning = errors.New("bridgeshell host already running")
)

// PIDFile guards a host PID file. The file is created with O_EXCL and kept
// open under an exclusive flock for as long as the host runs.
type PIDFile struct {
	path     string
	lockFile *os.File
}

// NewPIDFile returns a PID file handle for path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the file location.
func (m *PIDFile) Path() string {
	return m.path
}

// Create writes pid to the file and holds an exclusive lock on it.
// Returns ErrPIDFileExists if the file is already there.
func (m *PIDFile) Create(pid int) error {
	dir := filepath.Dir(m.path)
	if err := verifyDirectorySafety(dir); err != nil {
		return fmt.Errorf("unsafe PID file location: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	// O_EXCL refuses to follow a planted symlink.
	f, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return ErrPIDFileExists
		}
		return fmt.Errorf("failed to create PID file: %w", err)
	}

	fail := func(err error) error {
		f.Close()
		os.Remove(m.path)
		return err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fail(ErrPIDFileLocked)
		}
		return fail(fmt.Errorf("failed to lock PID file: %w", err))
	}
	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		return fail(fmt.Errorf("failed to write PID: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync PID file: %w", err))
	}

	m.lockFile = f
	return nil
}

// Acquire creates the PID file for pid. A leftover file whose process is
// no longer a running host is removed first; stale reports the pid it held
// (zero when there was none).
func (m *PIDFile) Acquire(pid int) (stale int, err error) {
	err = m.Create(pid)
	if !errors.Is(err, ErrPIDFileExists) {
		return 0, err
	}

	old, readErr := m.Read()
	if readErr == nil && IsHostProcess(old) {
		return 0, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, old)
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("failed to remove stale PID file: %w", err)
	}
	return old, m.Create(pid)
}

// Read returns the PID stored in the file.
// Returns ErrInvalidPID if the file contains non-numeric data.
func (m *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPID, raw)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}
	return pid, nil
}

// Running returns the PID of the live host recorded in the file.
// A file pointing at anything else yields ErrProcessNotRunning.
func (m *PIDFile) Running() (int, error) {
	pid, err := m.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrProcessNotRunning
		}
		return 0, err
	}
	if !IsProcessRunning(pid) {
		return pid, ErrProcessNotRunning
	}
	if !IsHostProcess(pid) {
		return pid, ErrNotHostProcess
	}
	return pid, nil
}

// Remove releases the lock and deletes the file.
func (m *PIDFile) Remove() error {
	if m.lockFile != nil {
		syscall.Flock(int(m.lockFile.Fd()), syscall.LOCK_UN)
		m.lockFile.Close()
		m.lockFile = nil
	}

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Exists reports whether the file is present.
func (m *PIDFile) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// verifyDirectorySafety rejects world-writable parents, where another user
// could swap the file for a symlink.
func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if mode := info.Mode(); mode&0002 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, mode&os.ModePerm)
	}
	return nil
}
