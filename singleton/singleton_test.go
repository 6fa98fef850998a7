//go:build !windows

package singleton

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "voxtype.pid")
}

func readPid(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		t.Fatalf("lock file contains %q, want a pid", data)
	}
	return pid
}

func TestAcquireWritesOwnPid(t *testing.T) {
	path := lockPath(t)
	lease, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release()

	if got := readPid(t, path); got != os.Getpid() {
		t.Errorf("lock pid = %d, want %d", got, os.Getpid())
	}
}

func TestReleaseRemovesLock(t *testing.T) {
	path := lockPath(t)
	lease, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	lease.Release()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("lock file should be gone, stat err = %v", err)
	}
	lease.Release() // idempotent
}

func TestAcquireOverStaleLock(t *testing.T) {
	path := lockPath(t)

	// A pid that certainly is not running: spawn a process and let it exit.
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	deadPid := cmd.Process.Pid
	cmd.Wait()

	if err := os.WriteFile(path, []byte(strconv.Itoa(deadPid)), 0644); err != nil {
		t.Fatal(err)
	}

	lease, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release()
	if got := readPid(t, path); got != os.Getpid() {
		t.Errorf("lock pid = %d, want %d", got, os.Getpid())
	}
}

func TestAcquireOverGarbageLock(t *testing.T) {
	path := lockPath(t)
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0644); err != nil {
		t.Fatal(err)
	}
	lease, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release()
}

func TestAcquirePreemptsLiveProcess(t *testing.T) {
	path := lockPath(t)

	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	oldPid := cmd.Process.Pid
	defer cmd.Process.Kill()

	if err := os.WriteFile(path, []byte(strconv.Itoa(oldPid)), 0644); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	lease, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	defer lease.Release()

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("preemption took %v, want bounded wait", elapsed)
	}
	if got := readPid(t, path); got != os.Getpid() {
		t.Errorf("lock pid = %d, want %d", got, os.Getpid())
	}

	// The older process must actually be gone.
	err = cmd.Wait()
	var exitErr *exec.ExitError
	if err == nil || !errors.As(err, &exitErr) {
		t.Errorf("old process wait = %v, want signal-driven exit", err)
	}
}

func TestAcquireFailsWhenUnwritable(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root can write anywhere")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0755)

	if _, err := Acquire(filepath.Join(dir, "voxtype.pid")); err == nil {
		t.Error("expected error when lock file cannot be written")
	}
}

func TestReleaseLeavesTakenOverLock(t *testing.T) {
	path := lockPath(t)
	lease, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a newer instance overwriting the lock.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid()+1)), 0644); err != nil {
		t.Fatal(err)
	}
	lease.Release()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("taken-over lock must not be removed, stat err = %v", err)
	}
}
