//go:build windows

package gitsync

import (
	"golang.org/x/sys/windows"
)

// tryLock takes an exclusive byte-range lock on the lock file without
// waiting. Returns nil once held, an error if another process already holds it.
func (l *pathLocker) tryLock() error {
	// FAIL_IMMEDIATELY makes LockFileEx the non-blocking equivalent of
	// flock(LOCK_EX|LOCK_NB); the first byte stands for the whole file
	ol := new(windows.Overlapped)
	return windows.LockFileEx(
		windows.Handle(l.lockFile.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, // reserved
		1, // bytes locked, low word
		0, // bytes locked, high word
		ol,
	)
}

// unlock releases the byte-range lock taken by tryLock.
func (l *pathLocker) unlock() {
	if l.lockFile != nil {
		ol := new(windows.Overlapped)
		windows.UnlockFileEx(
			windows.Handle(l.lockFile.Fd()),
			0, // reserved
			1, // bytes unlocked, low word
			0, // bytes unlocked, high word
			ol,
		)
	}
}

// isProcessAlive reports whether the process that wrote a lock holder line
// is still running.
func isProcessAlive(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}

	// Exit code 259 is STILL_ACTIVE: the process has not exited yet
	return exitCode == 259
}
