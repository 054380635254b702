package index

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/curia-rag/curia/internal/errors"
)

// LockFileName is the single-writer lock inside the db directory.
const LockFileName = ".curia.lock"

// buildLock serializes builds on one db directory across processes. The
// holder's pid is written into the lock file so a second build can say
// who is running.
type buildLock struct {
	fl *flock.Flock
}

// acquireBuildLock takes the lock without waiting. A held lock is the
// retryable ErrCodeIndexLocked.
func acquireBuildLock(dir string, log *slog.Logger) (*buildLock, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	path := filepath.Join(dir, LockFileName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.IOError("cannot create db directory", err).WithDetail("path", dir)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.IOError("cannot create build lock", err).WithDetail("path", path)
	}
	if !ok {
		e := errors.New(errors.ErrCodeIndexLocked, "another build is running on this database", nil).
			WithDetail("path", path)
		if pid := lockHolder(path); pid > 0 {
			e = e.WithDetail("pid", strconv.Itoa(pid))
		}
		return nil, e
	}

	// The lock holds without the pid; only the busy message loses it.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		log.Debug("build_lock_pid_unwritten",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return &buildLock{fl: fl}, nil
}

// Unlock releases the lock. Calling it twice is harmless.
func (l *buildLock) Unlock() error {
	if l == nil || !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return errors.IOError("cannot release build lock", err).WithDetail("path", l.fl.Path())
	}
	return nil
}

func lockHolder(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
