//go:build unix

package gitsync

import (
	"os"
	"syscall"
)

// tryLock takes an exclusive flock on the lock file without waiting.
// Returns nil once held, an error if another process already holds it.
func (l *pathLocker) tryLock() error {
	return syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

// unlock drops the flock. Closing the file would release it too.
func (l *pathLocker) unlock() {
	if l.lockFile != nil {
		syscall.Flock(int(l.lockFile.Fd()), syscall.LOCK_UN)
	}
}

// isProcessAlive reports whether the process that wrote a lock holder line
// still exists.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess never fails on Unix; signal 0 checks the pid without delivering anything
	return process.Signal(syscall.Signal(0)) == nil
}
