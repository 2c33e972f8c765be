package stream

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/955Gmy/libnetconf/errors"
)

// fileLock is a scoped advisory whole-file lock on an events file. It
// serializes writers and readers on the same file across processes, and
// across independent descriptors inside one process. The acquisition
// blocks, but every hold is short: one record append or one record read.
type fileLock struct {
	fd     int
	locked bool
}

func newFileLock(f *os.File) *fileLock {
	return &fileLock{fd: int(f.Fd())}
}

// Lock acquires an exclusive lock over the whole file, blocking until it
// is available. EINTR is retried.
func (l *fileLock) Lock() error {
	for {
		err := unix.Flock(l.fd, unix.LOCK_EX)
		if err == nil {
			l.locked = true
			return nil
		}
		if err == unix.EINTR {
			continue
		}
		return errors.WrapTransient(errors.ErrLockFailed, "fileLock", "Lock", "acquire file lock")
	}
}

// Unlock releases the lock. Safe to call when the lock was never acquired.
func (l *fileLock) Unlock() {
	if !l.locked {
		return
	}
	// Releasing can only fail on a stale descriptor; the process exit
	// releases the lock anyway.
	_ = unix.Flock(l.fd, unix.LOCK_UN)
	l.locked = false
}
