package handlers

import (
	"net/http"
	"sort"

	"github.com/wonny/debtview/internal/scheduler"
	"github.com/wonny/debtview/pkg/logger"
)

// JobSource reports scheduled job runs. *scheduler.Scheduler satisfies it.
type JobSource interface {
	GetJobStats() map[string]scheduler.JobStats
	GetJobHistory(jobName string) ([]scheduler.JobResult, error)
}

// JobsHandler serves the state of the scheduled maintenance jobs
type JobsHandler struct {
	jobs   JobSource
	logger *logger.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(jobs JobSource, log *logger.Logger) *JobsHandler {
	return &JobsHandler{jobs: jobs, logger: log}
}

// GetJobs returns the statistics of every job, by name
// GET /api/jobs
func (h *JobsHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	stats := h.jobs.GetJobStats()

	out := make([]scheduler.JobStats, 0, len(stats))
	for _, st := range stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobName < out[j].JobName })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(out),
		"jobs":  out,
	})
}

// GetJob returns one job's statistics and retained run history
// GET /api/jobs/{name}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	name := muxVar(r, "name")

	st, ok := h.jobs.GetJobStats()[name]
	if !ok {
		respondError(w, http.StatusNotFound, "job not found: "+name)
		return
	}
	history, err := h.jobs.GetJobHistory(name)
	if err != nil {
		h.logger.WithError(err).WithField("job", name).Warn("job history unavailable")
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":   st,
		"history": history,
	})
}
