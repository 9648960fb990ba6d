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
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"
)

// skipOnSpawnError skips when the environment blocks fork/exec.
func skipOnSpawnError(t *testing.T, err error) {
	t.Helper()
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("Skipping: spawn not permitted in this environment: %v", err)
	}
}

func startSleep(t *testing.T) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("sleep", "60")
	err := cmd.Start()
	skipOnSpawnError(t, err)
	if err != nil {
		t.Fatalf("Failed to start sleep process: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("IsProcessRunning(os.Getpid()) = false, want true")
	}
	if IsProcessRunning(999999) {
		t.Error("IsProcessRunning(999999) = true, want false")
	}
	if IsProcessRunning(0) || IsProcessRunning(-1) {
		t.Error("non-positive pids should never be running")
	}
}

func TestIsProcessRunning_Zombie(t *testing.T) {
	cmd := exec.Command("sh", "-c", "exit 0")
	err := cmd.Start()
	skipOnSpawnError(t, err)
	if err != nil {
		t.Fatal(err)
	}
	defer cmd.Wait()

	// Unreaped children linger as zombies until Wait.
	deadline := time.Now().Add(2 * time.Second)
	for IsProcessRunning(cmd.Process.Pid) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if IsProcessRunning(cmd.Process.Pid) {
		t.Error("exited child still reported as running")
	}
}

func TestIsHostProcess(t *testing.T) {
	cmd := startSleep(t)
	if IsHostProcess(cmd.Process.Pid) {
		t.Error("sleep should not be treated as a host process")
	}
	if IsHostProcess(999999) {
		t.Error("missing process should not be a host")
	}
}

func TestSendSignal(t *testing.T) {
	cmd := startSleep(t)
	if err := SendSignal(cmd.Process.Pid, syscall.Signal(0)); err != nil {
		t.Errorf("SendSignal() error = %v", err)
	}
	if err := SendSignal(999999, syscall.SIGTERM); err == nil {
		t.Error("SendSignal() to non-existent process succeeded, want error")
	}
}

func TestWaitForExit(t *testing.T) {
	t.Run("returns nil when process exits", func(t *testing.T) {
		cmd := exec.Command("sh", "-c", "exit 0")
		err := cmd.Start()
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("Failed to start process: %v", err)
		}
		pid := cmd.Process.Pid
		_ = cmd.Wait()

		if err := WaitForExit(context.Background(), pid, 2*time.Second); err != nil {
			t.Errorf("WaitForExit() error = %v, want nil", err)
		}
	})

	t.Run("returns timeout error for long-running process", func(t *testing.T) {
		cmd := startSleep(t)
		err := WaitForExit(context.Background(), cmd.Process.Pid, 200*time.Millisecond)
		if !errors.Is(err, ErrShutdownTimeout) {
			t.Errorf("WaitForExit() error = %v, want ErrShutdownTimeout", err)
		}
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		cmd := startSleep(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WaitForExit(ctx, cmd.Process.Pid, time.Minute)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("WaitForExit() error = %v, want context.Canceled", err)
		}
	})
}

func TestGracefulShutdown(t *testing.T) {
	t.Run("stops process with SIGTERM", func(t *testing.T) {
		cmd := exec.Command("sleep", "60")
		err := cmd.Start()
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatal(err)
		}
		go cmd.Wait()

		if err := GracefulShutdown(context.Background(), cmd.Process.Pid, 5*time.Second, false); err != nil {
			t.Errorf("GracefulShutdown() error = %v", err)
		}
	})

	t.Run("force kills process that ignores SIGTERM", func(t *testing.T) {
		cmd := exec.Command("sh", "-c", "trap '' TERM; while :; do sleep 0.05; done")
		err := cmd.Start()
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatal(err)
		}
		go cmd.Wait()
		time.Sleep(100 * time.Millisecond)

		err = GracefulShutdown(context.Background(), cmd.Process.Pid, 300*time.Millisecond, true)
		if err != nil {
			t.Errorf("GracefulShutdown() error = %v", err)
		}
	})

	t.Run("returns error for non-existent process", func(t *testing.T) {
		err := GracefulShutdown(context.Background(), 999999, time.Second, false)
		if !errors.Is(err, ErrProcessNotRunning) {
			t.Errorf("GracefulShutdown() error = %v, want ErrProcessNotRunning", err)
		}
	})
}

func TestGetProcessInfo(t *testing.T) {
	cmd := startSleep(t)

	info, err := GetProcessInfo(cmd.Process.Pid)
	if err != nil {
		t.Fatalf("GetProcessInfo() error = %v", err)
	}
	if !info.Running {
		t.Error("expected running")
	}
	if !strings.Contains(info.Command, "sleep") {
		t.Errorf("unexpected command %q", info.Command)
	}

	info, err = GetProcessInfo(999999)
	if err != nil || info.Running {
		t.Errorf("GetProcessInfo(999999) = %+v, %v", info, err)
	}
}
