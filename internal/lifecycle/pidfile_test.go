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
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFile_Create(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("creates PID file with correct content", func(t *testing.T) {
		pidPath := filepath.Join(tmpDir, "test.pid")
		m := NewPIDFile(pidPath)
		defer m.Remove()

		if err := m.Create(1234); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if !m.Exists() {
			t.Error("PID file does not exist after Create()")
		}

		pid, err := m.Read()
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if pid != 1234 {
			t.Errorf("Read() = %d, want 1234", pid)
		}

		info, err := os.Stat(pidPath)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if mode := info.Mode() & os.ModePerm; mode != 0600 {
			t.Errorf("PID file mode = %04o, want 0600", mode)
		}
	})

	t.Run("returns error if file already exists", func(t *testing.T) {
		pidPath := filepath.Join(tmpDir, "duplicate.pid")
		m1 := NewPIDFile(pidPath)
		m2 := NewPIDFile(pidPath)
		defer m1.Remove()

		if err := m1.Create(1234); err != nil {
			t.Fatalf("First Create() error = %v", err)
		}
		if err := m2.Create(5678); !errors.Is(err, ErrPIDFileExists) {
			t.Errorf("Second Create() error = %v, want ErrPIDFileExists", err)
		}
	})

	t.Run("creates parent directory if missing", func(t *testing.T) {
		pidPath := filepath.Join(tmpDir, "nested", "dir", "host.pid")
		m := NewPIDFile(pidPath)
		defer m.Remove()

		if err := m.Create(42); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		info, err := os.Stat(filepath.Dir(pidPath))
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if mode := info.Mode() & os.ModePerm; mode != 0700 {
			t.Errorf("directory mode = %04o, want 0700", mode)
		}
	})

	t.Run("rejects world-writable directory", func(t *testing.T) {
		dir := filepath.Join(tmpDir, "open")
		if err := os.Mkdir(dir, 0700); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(dir, 0777); err != nil {
			t.Fatal(err)
		}
		err := NewPIDFile(filepath.Join(dir, "host.pid")).Create(1)
		if !errors.Is(err, ErrUnsafeDirectory) {
			t.Errorf("Create() error = %v, want ErrUnsafeDirectory", err)
		}
	})
}

func TestPIDFile_Read(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    int
		wantErr error
	}{
		{name: "valid with newline", content: "4321\n", want: 4321},
		{name: "surrounding whitespace", content: "  77 \n", want: 77},
		{name: "not a number", content: "abc", wantErr: ErrInvalidPID},
		{name: "zero", content: "0", wantErr: ErrInvalidPID},
		{name: "negative", content: "-5", wantErr: ErrInvalidPID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name+".pid")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			got, err := NewPIDFile(path).Read()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Read() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Read() = %d, %v; want %d", got, err, tt.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPIDFile(filepath.Join(tmpDir, "missing.pid")).Read()
		if !os.IsNotExist(err) {
			t.Errorf("Read() error = %v, want not-exist", err)
		}
	})
}

func TestPIDFile_Acquire(t *testing.T) {
	t.Run("fresh file", func(t *testing.T) {
		m := NewPIDFile(filepath.Join(t.TempDir(), "host.pid"))
		defer m.Remove()

		stale, err := m.Acquire(os.Getpid())
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if stale != 0 {
			t.Errorf("Acquire() stale = %d, want 0", stale)
		}
	})

	t.Run("replaces file of dead process", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "host.pid")
		if err := os.WriteFile(path, []byte("999999\n"), 0600); err != nil {
			t.Fatal(err)
		}

		m := NewPIDFile(path)
		defer m.Remove()

		stale, err := m.Acquire(os.Getpid())
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if stale != 999999 {
			t.Errorf("Acquire() stale = %d, want 999999", stale)
		}
		if pid, _ := m.Read(); pid != os.Getpid() {
			t.Errorf("Read() = %d, want %d", pid, os.Getpid())
		}
	})

	t.Run("replaces garbage file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "host.pid")
		if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
			t.Fatal(err)
		}

		m := NewPIDFile(path)
		defer m.Remove()

		if _, err := m.Acquire(1234); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	})
}

func TestPIDFile_Running(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewPIDFile(filepath.Join(dir, "none.pid")).Running()
		if !errors.Is(err, ErrProcessNotRunning) {
			t.Errorf("Running() error = %v, want ErrProcessNotRunning", err)
		}
	})

	t.Run("dead process", func(t *testing.T) {
		path := filepath.Join(dir, "dead.pid")
		if err := os.WriteFile(path, []byte("999999"), 0600); err != nil {
			t.Fatal(err)
		}
		pid, err := NewPIDFile(path).Running()
		if !errors.Is(err, ErrProcessNotRunning) || pid != 999999 {
			t.Errorf("Running() = %d, %v; want 999999, ErrProcessNotRunning", pid, err)
		}
	})

	t.Run("unrelated process", func(t *testing.T) {
		// The test binary is alive but is not a bridgeshell host.
		path := filepath.Join(dir, "other.pid")
		if err := os.WriteFile(path, []byte("1"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewPIDFile(path).Running(); err == nil {
			t.Error("Running() should reject pid 1")
		}
	})
}

func TestPIDFile_Remove(t *testing.T) {
	m := NewPIDFile(filepath.Join(t.TempDir(), "host.pid"))
	if err := m.Create(1); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if m.Exists() {
		t.Error("PID file still exists after Remove()")
	}
	if err := m.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}
