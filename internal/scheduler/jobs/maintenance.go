package jobs

import (
	"context"

	"github.com/wonny/debtview/internal/snapshot"
	"github.com/wonny/debtview/pkg/logger"
)

// StatusReader reports producer health. *snapshot.Store satisfies it.
type StatusReader interface {
	Status() snapshot.Status
}

// StaleSnapshotJob warns while the published snapshot is stale
type StaleSnapshotJob struct {
	status StatusReader
	logger *logger.Logger
}

// NewStaleSnapshotJob creates a new staleness watchdog
func NewStaleSnapshotJob(status StatusReader, log *logger.Logger) *StaleSnapshotJob {
	return &StaleSnapshotJob{
		status: status,
		logger: log,
	}
}

// Name returns the job name
func (j *StaleSnapshotJob) Name() string {
	return "stale_snapshot_watchdog"
}

// Schedule returns the cron schedule (every minute)
func (j *StaleSnapshotJob) Schedule() string {
	return "0 * * * * *"
}

// Run logs a warning when the snapshot is stale. It never fails; staleness
// is a condition to report, not a job error.
func (j *StaleSnapshotJob) Run(ctx context.Context) error {
	st := j.status.Status()
	if !st.Ready || !st.Stale {
		return nil
	}

	j.logger.WithFields(map[string]interface{}{
		"last_success":         st.LastSuccess,
		"consecutive_failures": st.ConsecutiveFailures,
		"last_error":           st.LastError,
		"state":                st.State,
	}).Warn("Snapshot is stale")
	return nil
}
