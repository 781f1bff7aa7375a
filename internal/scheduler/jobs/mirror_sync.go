package jobs

import (
	"context"
	"errors"

	"github.com/wonny/incc/backend/internal/incc"
	"github.com/wonny/incc/backend/pkg/logger"
)

// MirrorSyncJob copies the persisted snapshot into the database mirror, so a
// mirror write that failed after a save is repaired on the next run.
type MirrorSyncJob struct {
	snapshot func() (incc.Series, error)
	mirror   incc.Mirror
	logger   *logger.Logger
}

// NewMirrorSyncJob creates the sync job; snapshot is usually Store.Snapshot
func NewMirrorSyncJob(snapshot func() (incc.Series, error), mirror incc.Mirror, log *logger.Logger) *MirrorSyncJob {
	return &MirrorSyncJob{
		snapshot: snapshot,
		mirror:   mirror,
		logger:   log.Component("incc_mirror_job"),
	}
}

// Name returns the job name
func (j *MirrorSyncJob) Name() string {
	return "incc_mirror_sync"
}

// Schedule returns the cron schedule (hourly)
func (j *MirrorSyncJob) Schedule() string {
	return "0 15 * * * *"
}

// Run replaces the mirror with the current snapshot
func (j *MirrorSyncJob) Run(ctx context.Context) error {
	series, err := j.snapshot()
	if errors.Is(err, incc.ErrNoSnapshot) {
		j.logger.Debug("No INCC snapshot yet, skipping mirror sync")
		return nil
	}
	if err != nil {
		return err
	}

	if err := j.mirror.ReplaceSeries(ctx, series); err != nil {
		return err
	}

	j.logger.WithField("points", series.Len()).Debug("INCC mirror synced")
	return nil
}
