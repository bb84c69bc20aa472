// Package filelock provides the blocking, exclusive, process-granularity
// mutex that serializes setup, clean and reboot-cause invocations across
// independently launched processes.
package filelock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mutex is the lock contract the lifecycle code depends on. Tests substitute
// an instrumented implementation to verify mutual exclusion.
type Mutex interface {
	// Acquire blocks until the lock is held. There is no timeout: a stuck
	// holder blocks all future invocations, which is the intended behavior.
	Acquire() error

	// Release drops the lock. The kernel also drops it on process exit, so
	// a crashed holder cannot wedge the system.
	Release() error
}

// FileLock is a Mutex keyed by a filesystem path, built on flock(2).
type FileLock struct {
	path string
	f    *os.File
}

var _ Mutex = (*FileLock)(nil)

// New returns an unheld FileLock for the given path. The file is created on
// first acquisition and never removed.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire opens the lock file and blocks in flock until the exclusive lock
// is granted.
func (l *FileLock) Acquire() error {
	if l.f != nil {
		return fmt.Errorf("lock %s already held by this process", l.path)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("opening lock file %s: %w", l.path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return fmt.Errorf("locking %s: %w", l.path, err)
	}
	l.f = f
	return nil
}

// Release unlocks and closes the lock file.
func (l *FileLock) Release() error {
	if l.f == nil {
		return fmt.Errorf("lock %s not held", l.path)
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	closeErr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("unlocking %s: %w", l.path, err)
	}
	return closeErr
}
