//go:build unix

package gitsync

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPathLocker_AcquireRelease(t *testing.T) {
	work := filepath.Join(t.TempDir(), "work")
	locker := newPathLocker(work)

	// The working copy does not exist yet; the lock sits beside it
	if err := locker.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	data, err := os.ReadFile(locker.lockPath)
	if err != nil {
		t.Fatalf("read lock file: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid:") {
		t.Errorf("lock file should contain holder info, got %q", data)
	}
	if filepath.Dir(locker.lockPath) != filepath.Dir(work) {
		t.Errorf("lock path %s not beside %s", locker.lockPath, work)
	}

	locker.release()
	data, _ = os.ReadFile(locker.lockPath)
	if len(data) != 0 {
		t.Errorf("release should clear holder info, got %q", data)
	}
}

func TestPathLocker_HeldLockTimesOut(t *testing.T) {
	work := filepath.Join(t.TempDir(), "work")
	holder := newPathLocker(work)
	if err := holder.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer holder.release()

	// flock is per open file, so a second locker in this process contends
	other := newPathLocker(work)
	start := time.Now()
	err := other.acquire(50 * time.Millisecond)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if !strings.Contains(err.Error(), "pid:") {
		t.Errorf("error should name the holder: %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("acquire gave up before the timeout")
	}

	holder.release()
	if err := other.acquire(500 * time.Millisecond); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	other.release()
}

func TestPathLocker_StaleHolder(t *testing.T) {
	locker := newPathLocker(filepath.Join(t.TempDir(), "work"))
	if err := os.WriteFile(locker.lockPath, []byte("pid:999999999\ntime:2026-01-02T03:04:05Z\n"), 0600); err != nil {
		t.Fatalf("write lock file: %v", err)
	}

	got := locker.readHolder()
	if got != "pid:999999999 since 2026-01-02T03:04:05Z (stale)" {
		t.Errorf("readHolder = %q", got)
	}
	if !isProcessAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
}
