package incc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Locker guards regeneration of the persisted series so that at most one
// process fetches from the publisher at a time.
type Locker interface {
	// TryLock attempts to take the lock without blocking. When acquired is
	// true the caller must call unlock.
	TryLock(ctx context.Context) (unlock func(), acquired bool, err error)

	// Locked reports whether some holder currently owns the lock
	Locked(ctx context.Context) (bool, error)
}

// FileLock is an exclusive-create lock file next to the snapshot. The file
// holds an owner token. A lock file older than staleAfter is treated as
// abandoned and taken over.
type FileLock struct {
	path       string
	staleAfter time.Duration
	now        func() time.Time
}

// NewFileLock creates a lock at path; staleAfter <= 0 disables takeover
func NewFileLock(path string, staleAfter time.Duration) *FileLock {
	return &FileLock{path: path, staleAfter: staleAfter, now: time.Now}
}

// LockPathFor returns the lock file used for a snapshot path
func LockPathFor(seriesPath string) string {
	return seriesPath + ".lock"
}

// TryLock creates the lock file with O_EXCL
func (l *FileLock) TryLock(_ context.Context) (func(), bool, error) {
	token := uuid.NewString()

	for attempt := 0; attempt < 2; attempt++ {
		created, err := l.create(token)
		if err != nil {
			return nil, false, err
		}
		if created {
			return l.release(token), true, nil
		}

		exists, stale, err := l.inspect(l.path)
		if err != nil {
			return nil, false, err
		}
		if !exists {
			continue
		}
		if !stale {
			return nil, false, nil
		}

		took, err := l.takeOver(token)
		if err != nil {
			return nil, false, err
		}
		if took {
			return l.release(token), true, nil
		}
		return nil, false, nil
	}
	return nil, false, nil
}

// Locked reports whether a live lock file exists
func (l *FileLock) Locked(_ context.Context) (bool, error) {
	exists, stale, err := l.inspect(l.path)
	if err != nil {
		return false, err
	}
	return exists && !stale, nil
}

// create makes the lock file holding token; false means it already exists
func (l *FileLock) create(token string) (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock file: %w", err)
	}
	_, werr := fmt.Fprintf(f, "%s %d %s\n", token, os.Getpid(), l.now().UTC().Format(time.RFC3339))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(l.path)
		return false, fmt.Errorf("write lock file: %w", werr)
	}
	return true, nil
}

// takeOver replaces an abandoned lock file. Contenders serialize on a guard
// file, so the stale check, the removal and the new create happen as one
// step and a fresh lock is never removed.
func (l *FileLock) takeOver(token string) (bool, error) {
	guard := l.path + ".takeover"

	g, err := os.OpenFile(guard, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !errors.Is(err, os.ErrExist) {
			return false, fmt.Errorf("create takeover guard: %w", err)
		}
		// A guard left by a crashed process is cleared once it is stale
		if exists, stale, _ := l.inspect(guard); exists && stale {
			_ = os.Remove(guard)
		}
		return false, nil
	}
	g.Close()
	defer os.Remove(guard)

	exists, stale, err := l.inspect(l.path)
	if err != nil {
		return false, err
	}
	if exists && !stale {
		return false, nil
	}
	if exists {
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("remove stale lock file: %w", err)
		}
	}
	return l.create(token)
}

// release returns the unlock func: the file is removed only while it still
// holds token, so a holder that was taken over leaves the new lock alone.
func (l *FileLock) release(token string) func() {
	return func() {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return
		}
		if owner, _, _ := strings.Cut(string(data), " "); owner == token {
			_ = os.Remove(l.path)
		}
	}
}

func (l *FileLock) inspect(path string) (exists, stale bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("stat lock file: %w", err)
	}
	if l.staleAfter <= 0 {
		return true, false, nil
	}
	return true, l.now().Sub(info.ModTime()) > l.staleAfter, nil
}
