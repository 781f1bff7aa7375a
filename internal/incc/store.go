package incc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/incc/backend/pkg/logger"
)

// Mirror receives every successfully saved series (e.g. a database copy)
type Mirror interface {
	ReplaceSeries(ctx context.Context, series Series) error
}

// StoreOptions tunes a Store. Zero values take the defaults below.
type StoreOptions struct {
	FetchTimeout time.Duration    // bound on one publisher fetch, default 20s
	LockWait     time.Duration    // how long a loser waits for the winner, default 10s
	PollInterval time.Duration    // loser poll period, default 200ms
	Now          func() time.Time // clock, default time.Now
	Mirror       Mirror           // optional
}

// Store owns the persisted INCC series: it reads the snapshot, decides when
// it is stale and regenerates it from the publisher under a lock.
// ⭐ SSOT: INCC 시계열 파일은 이 저장소에서만 읽고 씀
type Store struct {
	path   string
	source Source
	locker Locker
	mirror Mirror
	logger *logger.Logger

	fetchTimeout time.Duration
	lockWait     time.Duration
	pollInterval time.Duration
	now          func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	subscribers []func(Series)
}

// NewStore creates a store for the snapshot at path
func NewStore(path string, source Source, locker Locker, log *logger.Logger, opts StoreOptions) *Store {
	s := &Store{
		path:         path,
		source:       source,
		locker:       locker,
		mirror:       opts.Mirror,
		logger:       log.Component("incc_store"),
		fetchTimeout: opts.FetchTimeout,
		lockWait:     opts.LockWait,
		pollInterval: opts.PollInterval,
		now:          opts.Now,
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = 20 * time.Second
	}
	if s.lockWait <= 0 {
		s.lockWait = 10 * time.Second
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 200 * time.Millisecond
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Path returns the snapshot location
func (s *Store) Path() string {
	return s.path
}

// Subscribe registers fn to be called after every successful save
func (s *Store) Subscribe(fn func(Series)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Snapshot reads the persisted series without regenerating
func (s *Store) Snapshot() (Series, error) {
	return ReadSnapshot(s.path)
}

// IsStale applies the staleness rule against the store clock
func (s *Store) IsStale(series Series) bool {
	return IsStale(series, s.now())
}

// Save atomically replaces the snapshot, then mirrors and notifies
func (s *Store) Save(ctx context.Context, series Series) error {
	if err := WriteSnapshot(s.path, series); err != nil {
		return err
	}

	latest, _ := series.Latest()
	s.logger.WithFields(map[string]interface{}{
		"path":   s.path,
		"points": series.Len(),
		"latest": latest.Date.Format("2006-01"),
	}).Info("INCC series saved")

	if s.mirror != nil {
		if err := s.mirror.ReplaceSeries(ctx, series); err != nil {
			s.logger.WithError(err).Warn("INCC mirror update failed")
		}
	}

	s.mu.RLock()
	subscribers := append([]func(Series){}, s.subscribers...)
	s.mu.RUnlock()
	for _, fn := range subscribers {
		fn(series)
	}
	return nil
}

// Load returns a usable series. A fresh snapshot is returned as is; a stale
// or missing one triggers regeneration, and when that fails the last
// snapshot is used. ErrUnavailable is returned only when no series exists.
func (s *Store) Load(ctx context.Context) (Series, error) {
	snapshot, err := s.Snapshot()
	switch {
	case err == nil && !s.IsStale(snapshot):
		return snapshot, nil
	case err != nil && !errors.Is(err, ErrNoSnapshot):
		s.logger.WithError(err).Warn("INCC snapshot unreadable, regenerating")
	}

	series, regenErr := s.regenerateShared(ctx, "load", false)
	if regenErr == nil && !series.IsEmpty() {
		return series, nil
	}

	if regenErr != nil {
		s.logger.WithError(regenErr).Warn("INCC regeneration failed, using last snapshot")
	}
	if !snapshot.IsEmpty() {
		return snapshot, nil
	}
	if regenErr != nil {
		return Series{}, fmt.Errorf("%w: %v", ErrUnavailable, regenErr)
	}
	return Series{}, ErrUnavailable
}

// Refresh regenerates the snapshot even when it is fresh. Unlike Load it
// reports the failure instead of falling back.
func (s *Store) Refresh(ctx context.Context) (Series, error) {
	return s.regenerateShared(ctx, "refresh", true)
}

// regenerateShared collapses concurrent callers in this process into one run.
// The run is detached from the caller that started it, so one cancelled
// request does not fail the others; fetchTimeout still bounds it. Each caller
// stops waiting when its own ctx is done.
func (s *Store) regenerateShared(ctx context.Context, key string, force bool) (Series, error) {
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.regenerate(runCtx, force)
	})

	select {
	case <-ctx.Done():
		return Series{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Series{}, res.Err
		}
		return res.Val.(Series), nil
	}
}

func (s *Store) regenerate(ctx context.Context, force bool) (Series, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Series{}, fmt.Errorf("create snapshot dir: %w", err)
	}

	unlock, acquired, err := s.locker.TryLock(ctx)
	if err != nil {
		return Series{}, fmt.Errorf("acquire regeneration lock: %w", err)
	}
	if !acquired {
		return s.awaitWinner(ctx)
	}
	defer unlock()

	// Another process may have finished between our read and the lock
	if !force {
		if snapshot, err := s.Snapshot(); err == nil && !s.IsStale(snapshot) {
			return snapshot, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := s.now()
	markup, err := s.source.Fetch(fetchCtx)
	if err != nil {
		return Series{}, fmt.Errorf("fetch publisher: %w", err)
	}

	series, err := Parse(markup)
	if err != nil {
		return Series{}, err
	}

	if err := s.Save(ctx, series); err != nil {
		return Series{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"points":   series.Len(),
		"duration": s.now().Sub(start),
		"forced":   force,
	}).Info("INCC series regenerated")
	return series, nil
}

// awaitWinner waits (bounded by lockWait) for the lock holder to finish and
// then re-reads the snapshot instead of racing it.
func (s *Store) awaitWinner(ctx context.Context) (Series, error) {
	s.logger.Debug("INCC regeneration in progress elsewhere, waiting")

	deadline := time.NewTimer(s.lockWait)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			return Series{}, ctx.Err()
		case <-deadline.C:
			s.logger.Warn("Timed out waiting for INCC regeneration")
			break wait
		case <-ticker.C:
			locked, err := s.locker.Locked(ctx)
			if err != nil {
				return Series{}, fmt.Errorf("check regeneration lock: %w", err)
			}
			if !locked {
				break wait
			}
		}
	}

	snapshot, err := s.Snapshot()
	if err != nil {
		return Series{}, err
	}
	if snapshot.IsEmpty() {
		return Series{}, ErrNoSnapshot
	}
	return snapshot, nil
}
