package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Registry holds the Prometheus collectors for the service. Each Registry
// owns its own prometheus.Registry so tests can create as many as they like.
// ⭐ SSOT: 메트릭 정의는 여기서만
type Registry struct {
	reg *prometheus.Registry

	// Refresh cycle
	Cycles              *prometheus.CounterVec
	CycleDuration       *prometheus.HistogramVec
	CycleErrors         *prometheus.CounterVec
	ConsecutiveFailures prometheus.Gauge
	BreakerOpen         prometheus.Gauge

	// Snapshot contents
	SnapshotRows      prometheus.Gauge
	SnapshotTimestamp prometheus.Gauge
	JoinGaps          prometheus.Counter
	Nonconverged      prometheus.Counter

	// Reference data
	ReferenceInstruments prometheus.Gauge
	ReferenceRejected    prometheus.Gauge

	// API
	WSClients prometheus.Gauge
}

// New creates and registers all collectors, plus the Go and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "debtview_refresh_cycles_total",
				Help: "Refresh cycles by result",
			},
			[]string{"result"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "debtview_refresh_cycle_duration_seconds",
				Help:    "Duration of a refresh cycle in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 15, 30},
			},
			[]string{"result"},
		),
		CycleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "debtview_refresh_errors_total",
				Help: "Failed refresh cycles by error kind",
			},
			[]string{"kind"},
		),
		ConsecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "debtview_refresh_consecutive_failures",
			Help: "Failed cycles since the last published snapshot",
		}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "debtview_feed_breaker_open",
			Help: "1 while the feed circuit breaker is not closed",
		}),

		SnapshotRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "debtview_snapshot_rows",
			Help: "Quote rows in the latest snapshot",
		}),
		SnapshotTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "debtview_snapshot_timestamp_seconds",
			Help: "Capture time of the latest snapshot",
		}),
		JoinGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "debtview_join_gaps_total",
			Help: "Quote rows dropped for lack of reference data",
		}),
		Nonconverged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "debtview_yield_unsolved_total",
			Help: "Quoted sides whose yield could not be solved",
		}),

		ReferenceInstruments: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "debtview_reference_instruments",
			Help: "Instruments in the current reference table",
		}),
		ReferenceRejected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "debtview_reference_rejected_rows",
			Help: "Master rows excluded from the current reference table",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "debtview_ws_clients",
			Help: "Connected websocket clients",
		}),
	}

	r.reg.MustRegister(
		r.Cycles, r.CycleDuration, r.CycleErrors, r.ConsecutiveFailures, r.BreakerOpen,
		r.SnapshotRows, r.SnapshotTimestamp, r.JoinGaps, r.Nonconverged,
		r.ReferenceInstruments, r.ReferenceRejected, r.WSClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveSuccess records a published cycle.
func (r *Registry) ObserveSuccess(d time.Duration, rows, gaps, unsolved int, captured time.Time) {
	if r == nil {
		return
	}
	r.Cycles.WithLabelValues(ResultSuccess).Inc()
	r.CycleDuration.WithLabelValues(ResultSuccess).Observe(d.Seconds())
	r.ConsecutiveFailures.Set(0)
	r.SnapshotRows.Set(float64(rows))
	r.SnapshotTimestamp.Set(float64(captured.Unix()))
	r.JoinGaps.Add(float64(gaps))
	r.Nonconverged.Add(float64(unsolved))
}

// ObserveFailure records a failed cycle.
func (r *Registry) ObserveFailure(d time.Duration, kind string, consecutive int) {
	if r == nil {
		return
	}
	r.Cycles.WithLabelValues(ResultFailure).Inc()
	r.CycleDuration.WithLabelValues(ResultFailure).Observe(d.Seconds())
	r.CycleErrors.WithLabelValues(kind).Inc()
	r.ConsecutiveFailures.Set(float64(consecutive))
}

// ObserveReference records a rebuilt reference table.
func (r *Registry) ObserveReference(instruments, rejected int) {
	if r == nil {
		return
	}
	r.ReferenceInstruments.Set(float64(instruments))
	r.ReferenceRejected.Set(float64(rejected))
}

// SetBreakerOpen mirrors the breaker state.
func (r *Registry) SetBreakerOpen(open bool) {
	if r == nil {
		return
	}
	if open {
		r.BreakerOpen.Set(1)
	} else {
		r.BreakerOpen.Set(0)
	}
}
