package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/wonny/debtview/internal/enrich"
	"github.com/wonny/debtview/internal/feed"
	"github.com/wonny/debtview/internal/metrics"
	"github.com/wonny/debtview/internal/reference"
	"github.com/wonny/debtview/internal/snapshot"
	"github.com/wonny/debtview/pkg/config"
	"github.com/wonny/debtview/pkg/logger"
)

// Fetcher retrieves one order book. *feed.Client satisfies it.
type Fetcher interface {
	FetchObserved(ctx context.Context, onPhase feed.PhaseFunc) ([]feed.QuoteLevel, error)
}

// References hands out the reference table for the current settlement date.
// *reference.Provider satisfies it.
type References interface {
	EnsureCurrent(ctx context.Context, now time.Time) (*reference.Table, error)
}

// Option customises a Publisher.
type Option func(*Publisher)

// WithMirror copies every published snapshot to m. Mirror failures are logged
// and never fail the cycle.
func WithMirror(m snapshot.Mirror) Option {
	return func(p *Publisher) { p.mirror = m }
}

// WithMetrics records cycle metrics in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(p *Publisher) { p.metrics = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithStateHook is called on every state transition, from the producer goroutine.
func WithStateHook(fn func(State)) Option {
	return func(p *Publisher) { p.onState = fn }
}

// Publisher is the single producer: every cycle it makes the reference table
// current, fetches the order book, enriches it and publishes a snapshot.
// A failed cycle leaves the previous snapshot in place.
// ⭐ SSOT: 스냅샷 생산은 이 루프에서만
type Publisher struct {
	fetcher Fetcher
	refs    References
	engine  *enrich.Engine
	store   *snapshot.Store
	mirror  snapshot.Mirror
	metrics *metrics.Registry
	logger  *logger.Logger

	interval time.Duration
	backoff  *backoff.ExponentialBackOff
	breaker  *gobreaker.CircuitBreaker

	state     atomic.Int32
	lastTable *reference.Table
	now       func() time.Time
	onState   func(State)
}

// New creates a publisher from the refresh configuration.
func New(fetcher Fetcher, refs References, engine *enrich.Engine, store *snapshot.Store, cfg config.RefreshConfig, log *logger.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		fetcher:  fetcher,
		refs:     refs,
		engine:   engine,
		store:    store,
		logger:   log.Component("refresh"),
		interval: cfg.Interval,
		now:      time.Now,
	}
	if p.interval <= 0 {
		p.interval = 5 * time.Second
	}
	for _, opt := range opts {
		opt(p)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	b.MaxInterval = cfg.MaxBackoff
	if b.MaxInterval < p.interval {
		b.MaxInterval = p.interval
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	p.backoff = b

	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = 5
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "feed",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			// cancellation says nothing about the exchange
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("feed circuit breaker state changed")
			p.metrics.SetBreakerOpen(to != gobreaker.StateClosed)
		},
	})

	return p
}

// State returns the current state.
func (p *Publisher) State() State {
	return State(p.state.Load())
}

func (p *Publisher) setState(s State) {
	p.state.Store(int32(s))
	p.store.SetState(s.String())
	if p.onState != nil {
		p.onState(s)
	}
}

// transition moves to s unless ctx is done.
func (p *Publisher) transition(ctx context.Context, s State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.setState(s)
	return nil
}

// Run cycles until ctx is cancelled. Every cycle enters Idle and starts one
// interval after the previous start, failed or not; after repeated failures
// the gap grows exponentially up to MaxBackoff.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.WithField("interval", p.interval.String()).Info("refresh loop started")
	defer func() {
		p.setState(StateIdle)
		p.logger.Info("refresh loop stopped")
	}()

	for {
		p.setState(StateIdle)
		start := p.now()
		err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := p.nextDelay(err != nil) - p.now().Sub(start)
		if wait < 0 {
			wait = 0
		}

		p.setState(StateSleeping)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// nextDelay is the gap between cycle starts after a cycle.
func (p *Publisher) nextDelay(failed bool) time.Duration {
	if !failed {
		p.backoff.Reset()
		return p.interval
	}
	d := p.backoff.NextBackOff()
	if d == backoff.Stop {
		return p.backoff.MaxInterval
	}
	return d
}

// RunOnce performs a single cycle and returns its error. A cancelled cycle
// is not recorded as a failure.
func (p *Publisher) RunOnce(ctx context.Context) error {
	start := p.now()

	snap, err := p.cycle(ctx, start)
	elapsed := p.now().Sub(start)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		kind := ErrorKind(err)
		n := p.store.RecordFailure(start, err)
		p.metrics.ObserveFailure(elapsed, kind, n)
		p.logger.WithFields(map[string]interface{}{
			"kind":                 kind,
			"consecutive_failures": n,
			"duration":             elapsed.String(),
		}).WithError(err).Warn("refresh cycle failed")
		return err
	}

	p.metrics.ObserveSuccess(elapsed, len(snap.Quotes), snap.Stats.JoinGaps, snap.Stats.Nonconverged, snap.CapturedAt)
	p.logger.WithFields(map[string]interface{}{
		"snapshot_id": snap.ID.String(),
		"rows":        len(snap.Quotes),
		"join_gaps":   snap.Stats.JoinGaps,
		"unsolved":    snap.Stats.Nonconverged,
		"duration":    elapsed.String(),
	}).Debug("snapshot published")
	return nil
}

func (p *Publisher) cycle(ctx context.Context, start time.Time) (*snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := p.refs.EnsureCurrent(ctx, start)
	if err != nil {
		return nil, &referenceError{err: err}
	}
	if table != p.lastTable {
		p.lastTable = table
		p.metrics.ObserveReference(table.Len(), len(table.Rejected()))
	}

	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetcher.FetchObserved(ctx, func(ph feed.Phase) { p.setState(stateOf(ph)) })
	})
	if err != nil {
		return nil, err
	}
	levels, ok := out.([]feed.QuoteLevel)
	if !ok {
		return nil, fmt.Errorf("unexpected fetch result %T", out)
	}

	if err := p.transition(ctx, StateEnriching); err != nil {
		return nil, err
	}
	res := p.engine.Enrich(levels, table)

	if err := p.transition(ctx, StatePublishing); err != nil {
		return nil, err
	}
	snap := snapshot.New(start, table.SettlementDate(), res)
	p.store.Publish(snap)

	if p.mirror != nil {
		if err := p.mirror.Mirror(ctx, snap); err != nil {
			p.logger.WithError(err).Warn("snapshot mirror failed")
		}
	}
	return snap, nil
}
