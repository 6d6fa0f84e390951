package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/debtview/internal/metrics"
	"github.com/wonny/debtview/internal/reference"
	"github.com/wonny/debtview/pkg/logger"
)

// Rebuilder rebuilds the reference table. *reference.Provider satisfies it.
type Rebuilder interface {
	Refresh(ctx context.Context, now time.Time) (*reference.Table, error)
}

// Invalidator drops a cached master list. *reference.CachedSource satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// TableMirror publishes a rebuilt table for other processes.
type TableMirror interface {
	MirrorReferences(ctx context.Context, table *reference.Table) error
}

// ReferenceRefreshJob rebuilds the reference table once a day, shortly after
// the exchange date rolls. The refresh loop also rebuilds on demand when it
// sees a new settlement date; this job makes the daily reload independent of
// feed traffic and picks up master list changes published during the day.
// ⭐ SSOT: 기준정보 일일 재구성 스케줄은 이 Job에서만
type ReferenceRefreshJob struct {
	provider Rebuilder
	cache    Invalidator
	mirror   TableMirror
	metrics  *metrics.Registry
	schedule string
	now      func() time.Time
	logger   *logger.Logger
}

// NewReferenceRefreshJob creates the job. cache, mirror and reg may be nil.
func NewReferenceRefreshJob(provider Rebuilder, cache Invalidator, mirror TableMirror, reg *metrics.Registry, schedule string, log *logger.Logger) *ReferenceRefreshJob {
	if schedule == "" {
		schedule = "0 5 0 * * *"
	}
	return &ReferenceRefreshJob{
		provider: provider,
		cache:    cache,
		mirror:   mirror,
		metrics:  reg,
		schedule: schedule,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *ReferenceRefreshJob) Name() string {
	return "reference_refresh"
}

// Schedule returns the cron schedule
func (j *ReferenceRefreshJob) Schedule() string {
	return j.schedule
}

// Run reloads the master list from its origin and rebuilds the table
func (j *ReferenceRefreshJob) Run(ctx context.Context) error {
	if j.cache != nil {
		if err := j.cache.Invalidate(ctx); err != nil {
			j.logger.WithError(err).Warn("Failed to invalidate cached master list")
		}
	}

	table, err := j.provider.Refresh(ctx, j.now())
	if err != nil {
		return fmt.Errorf("reference refresh: %w", err)
	}
	j.metrics.ObserveReference(table.Len(), len(table.Rejected()))

	if j.mirror != nil {
		if err := j.mirror.MirrorReferences(ctx, table); err != nil {
			j.logger.WithError(err).Warn("Failed to mirror reference table")
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"settlement":  table.SettlementDate().Format("2006-01-02"),
		"instruments": table.Len(),
	}).Info("Reference table refreshed")
	return nil
}
