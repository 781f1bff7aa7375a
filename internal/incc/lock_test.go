package incc

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_Exclusive(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "series.csv.lock")

	first := NewFileLock(path, time.Minute)
	second := NewFileLock(path, time.Minute)

	unlock, ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire a live lock")

	locked, err := second.Locked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)

	unlock()

	locked, err = second.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)

	unlock2, ok, err := second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	unlock2()
}

func TestFileLock_StaleTakeover(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "series.csv.lock")
	require.NoError(t, os.WriteFile(path, []byte("12345 abandoned\n"), 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	lock := NewFileLock(path, 2*time.Minute)

	locked, err := lock.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked, "stale lock file does not count as held")

	unlock, ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	locked, err = lock.Locked(ctx)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestFileLock_ConcurrentTakeoverHasOneHolder(t *testing.T) {
	ctx := context.Background()
	const contenders = 8

	for run := 0; run < 50; run++ {
		path := filepath.Join(t.TempDir(), "series.csv.lock")
		require.NoError(t, os.WriteFile(path, []byte("abandoned 1 2024-01-01T00:00:00Z\n"), 0o644))
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(path, old, old))

		var (
			holders atomic.Int32
			start   = make(chan struct{})
			wg      sync.WaitGroup
		)
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, ok, err := NewFileLock(path, 2*time.Minute).TryLock(ctx)
				assert.NoError(t, err)
				if ok {
					holders.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, int32(1), holders.Load(), "run %d", run)
		_, err := os.Stat(path + ".takeover")
		assert.True(t, os.IsNotExist(err), "takeover guard is removed")
	}
}

func TestFileLock_UnlockAfterTakeoverKeepsNewOwner(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "series.csv.lock")

	unlockOld, ok, err := NewFileLock(path, 2*time.Minute).TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// the first holder overruns staleAfter and is taken over
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	next := NewFileLock(path, 2*time.Minute)
	unlockNew, ok, err := next.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	unlockOld()

	locked, err := next.Locked(ctx)
	require.NoError(t, err)
	assert.True(t, locked, "stale holder must not remove the new lock")

	unlockNew()
	locked, err = next.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestFileLock_NoTakeoverWhenDisabled(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "series.csv.lock")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	old := time.Now().Add(-24 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, ok, err := NewFileLock(path, 0).TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockPathFor(t *testing.T) {
	assert.Equal(t, "data/dados_dia01_indice.csv.lock", LockPathFor("data/dados_dia01_indice.csv"))
}
