package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/debtview/pkg/logger"
)

type testJob struct {
	name     string
	schedule string
	failures int32
	runs     atomic.Int32
	done     chan struct{}
}

func (j *testJob) Name() string     { return j.name }
func (j *testJob) Schedule() string { return j.schedule }

func (j *testJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if n <= j.failures {
		return errors.New("transient")
	}
	if j.done != nil {
		close(j.done)
	}
	return nil
}

func TestAddAndRemoveJob(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)

	job := &testJob{name: "reference_refresh", schedule: "0 5 0 * * *"}
	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job), "duplicate names are rejected")
	assert.Equal(t, []string{"reference_refresh"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("reference_refresh"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("reference_refresh"))
}

func TestAddJobInvalidSchedule(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	assert.Error(t, s.AddJob(&testJob{name: "bad", schedule: "every day"}))
}

func TestNextRun(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	require.NoError(t, s.AddJob(&testJob{name: "daily", schedule: "0 5 0 * * *"}))

	s.Start()
	defer s.Stop()

	next, ok := s.NextRun("daily")
	require.True(t, ok)
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 5, next.Second())

	_, ok = s.NextRun("missing")
	assert.False(t, ok)
}

func TestRunJobRetriesAndRecordsHistory(t *testing.T) {
	s := New(logger.NewNop(), time.UTC).WithRetry(3, time.Millisecond)
	job := &testJob{name: "flaky", schedule: "@every 1h", failures: 2, done: make(chan struct{})}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed")
	}

	require.Eventually(t, func() bool {
		h, _ := s.GetJobHistory("flaky")
		return len(h) == 1
	}, time.Second, 5*time.Millisecond)

	h, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	assert.True(t, h[0].Success)
	assert.Equal(t, 3, h[0].Attempts)
	assert.Equal(t, int32(3), job.runs.Load())

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.Equal(t, h[0].StartTime, stats.LastSuccess)
	assert.Equal(t, stats.LastSuccess, stats.LastRun)
	assert.True(t, stats.LastFailure.IsZero())
	assert.True(t, stats.NextRun.IsZero(), "not started")

	assert.Error(t, s.RunJob("missing"))
}

func TestJobHistoryKeepsNewestResults(t *testing.T) {
	h := &jobHistory{}
	base := time.Date(2024, 5, 10, 0, 0, 5, 0, time.UTC)
	for i := 0; i < historySize+10; i++ {
		h.add(JobResult{JobName: "j", StartTime: base.Add(time.Duration(i) * time.Hour), Success: i%2 == 0})
	}

	results := h.results()
	require.Len(t, results, historySize)
	assert.Equal(t, base.Add(10*time.Hour), results[0].StartTime, "oldest ten evicted")
	assert.Equal(t, base.Add(time.Duration(historySize+9)*time.Hour), results[historySize-1].StartTime)

	st := h.stats("j", "@daily")
	assert.Equal(t, historySize+10, st.TotalRuns, "totals survive eviction")
	assert.Equal(t, (historySize+10)/2, st.FailureCount)
	assert.Equal(t, 0.5, st.SuccessRate)
	assert.Equal(t, results[historySize-1].StartTime, st.LastRun)
	assert.Equal(t, 1, st.ConsecutiveFailures)
}

func TestJobHistoryConsecutiveFailures(t *testing.T) {
	h := &jobHistory{}
	assert.Empty(t, h.results())
	_, ok := h.latest()
	assert.False(t, ok)
	assert.Equal(t, 0.0, h.stats("j", "@daily").SuccessRate)

	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 5, 0, time.UTC) }
	h.add(JobResult{StartTime: day(1), Success: true})
	h.add(JobResult{StartTime: day(2), Error: "master list unreachable"})
	h.add(JobResult{StartTime: day(3), Error: "master list timeout"})

	st := h.stats("reference_refresh", "0 5 0 * * *")
	assert.Equal(t, 2, st.ConsecutiveFailures)
	assert.Equal(t, day(1), st.LastSuccess)
	assert.Equal(t, day(3), st.LastFailure)
	assert.Equal(t, "master list timeout", st.LastError)

	h.add(JobResult{StartTime: day(4), Success: true})
	st = h.stats("reference_refresh", "0 5 0 * * *")
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Equal(t, "master list timeout", st.LastError, "last error is kept for the record")
	assert.Equal(t, 4, st.TotalRuns)
}

func TestJobStatsAfterStart(t *testing.T) {
	s := New(logger.NewNop(), time.UTC)
	require.NoError(t, s.AddJob(&testJob{name: "daily", schedule: "0 5 0 * * *"}))

	s.Start()
	defer s.Stop()

	st := s.GetJobStats()["daily"]
	assert.Equal(t, "0 5 0 * * *", st.Schedule)
	assert.Equal(t, 0, st.TotalRuns)
	assert.False(t, st.NextRun.IsZero())
	assert.True(t, st.LastRun.IsZero())
}

func TestReaddedJobKeepsHistory(t *testing.T) {
	s := New(logger.NewNop(), time.UTC).WithRetry(0, time.Millisecond)
	job := &testJob{name: "once", schedule: "@every 1h", done: make(chan struct{})}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("once"))
	<-job.done

	require.Eventually(t, func() bool {
		h, _ := s.GetJobHistory("once")
		return len(h) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.RemoveJob("once"))
	require.NoError(t, s.AddJob(&testJob{name: "once", schedule: "@every 2h"}))

	h, err := s.GetJobHistory("once")
	require.NoError(t, err)
	assert.Len(t, h, 1)
	assert.Equal(t, 1, s.GetJobStats()["once"].TotalRuns)
}
