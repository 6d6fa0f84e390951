package scheduler

import (
	"context"
	"time"
)

// Job is a unit of scheduled work.
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run does one execution. The context carries the per-attempt timeout
	// and is cancelled when the scheduler stops.
	Run(ctx context.Context) error

	// Schedule is a cron expression with a leading seconds field,
	// e.g. "0 5 0 * * *" (00:00:05 every day) or "@every 1m".
	Schedule() string
}

// JobResult is one execution of a job, retries included.
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobStats summarises a job over every run since it was added.
type JobStats struct {
	JobName             string    `json:"job_name"`
	Schedule            string    `json:"schedule"`
	TotalRuns           int       `json:"total_runs"`
	SuccessCount        int       `json:"success_count"`
	FailureCount        int       `json:"failure_count"`
	SuccessRate         float64   `json:"success_rate"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastRun             time.Time `json:"last_run,omitzero"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	NextRun             time.Time `json:"next_run,omitzero"`
}

// historySize is the number of results retained per job
const historySize = 100

// jobHistory keeps the newest historySize results in a ring plus running
// totals that survive eviction. Guarded by the scheduler's lock.
type jobHistory struct {
	ring  [historySize]JobResult
	next  int
	count int

	total               int
	failures            int
	consecutiveFailures int
	lastSuccess         time.Time
	lastFailure         time.Time
	lastError           string
}

func (h *jobHistory) add(r JobResult) {
	h.ring[h.next] = r
	h.next = (h.next + 1) % historySize
	if h.count < historySize {
		h.count++
	}

	h.total++
	if r.Success {
		h.consecutiveFailures = 0
		h.lastSuccess = r.StartTime
		return
	}
	h.failures++
	h.consecutiveFailures++
	h.lastFailure = r.StartTime
	h.lastError = r.Error
}

// results returns the retained results, oldest first.
func (h *jobHistory) results() []JobResult {
	out := make([]JobResult, 0, h.count)
	start := (h.next - h.count + historySize) % historySize
	for i := 0; i < h.count; i++ {
		out = append(out, h.ring[(start+i)%historySize])
	}
	return out
}

func (h *jobHistory) latest() (JobResult, bool) {
	if h.count == 0 {
		return JobResult{}, false
	}
	return h.ring[(h.next-1+historySize)%historySize], true
}

func (h *jobHistory) stats(name, schedule string) JobStats {
	st := JobStats{
		JobName:             name,
		Schedule:            schedule,
		TotalRuns:           h.total,
		SuccessCount:        h.total - h.failures,
		FailureCount:        h.failures,
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccess:         h.lastSuccess,
		LastFailure:         h.lastFailure,
		LastError:           h.lastError,
	}
	if h.total > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(h.total)
	}
	if last, ok := h.latest(); ok {
		st.LastRun = last.StartTime
	}
	return st
}
