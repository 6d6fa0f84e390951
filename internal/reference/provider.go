package reference

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/debtview/internal/bond"
	"github.com/wonny/debtview/pkg/logger"
)

// Provider owns the current reference table. Readers get the table through
// an atomic pointer; rebuilds are serialised.
type Provider struct {
	source Source
	loc    *time.Location
	logger *logger.Logger

	mu    sync.Mutex
	table atomic.Pointer[Table]
}

// NewProvider creates a provider; no table is loaded until Refresh.
func NewProvider(source Source, loc *time.Location, log *logger.Logger) *Provider {
	if loc == nil {
		loc = time.UTC
	}
	return &Provider{
		source: source,
		loc:    loc,
		logger: log.Component("reference"),
	}
}

// Table returns the current table, or nil before the first successful build.
func (p *Provider) Table() *Table {
	return p.table.Load()
}

// Location is the exchange zone used for settlement dates.
func (p *Provider) Location() *time.Location {
	return p.loc
}

// Refresh reloads the master list and rebuilds the table for the settlement
// date of now. On failure the previous table stays in place.
func (p *Provider) Refresh(ctx context.Context, now time.Time) (*Table, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx, now)
}

// EnsureCurrent rebuilds only when the settlement date has rolled since the
// last build (or nothing has been built yet).
func (p *Provider) EnsureCurrent(ctx context.Context, now time.Time) (*Table, error) {
	want := bond.SettlementDate(now, p.loc)
	if t := p.table.Load(); t != nil && t.SettlementDate().Equal(want) {
		return t, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// another caller may have rebuilt while we waited
	if t := p.table.Load(); t != nil && t.SettlementDate().Equal(want) {
		return t, nil
	}
	return p.refreshLocked(ctx, now)
}

func (p *Provider) refreshLocked(ctx context.Context, now time.Time) (*Table, error) {
	start := time.Now()
	settlement := bond.SettlementDate(now, p.loc)

	master, err := p.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reference master from %s: %w", p.source.Name(), err)
	}

	t, err := Build(master, settlement, now)
	if err != nil {
		return nil, fmt.Errorf("build reference table: %w", err)
	}

	for _, rej := range t.Rejected() {
		p.logger.WithFields(map[string]interface{}{
			"line":   rej.Line,
			"symbol": rej.Symbol,
			"reason": rej.Reason,
		}).Debug("reference row excluded")
	}

	prev := p.table.Swap(t)

	fields := map[string]interface{}{
		"source":      p.source.Name(),
		"settlement":  settlement.Format("2006-01-02"),
		"instruments": t.Len(),
		"rejected":    len(t.Rejected()),
		"duration":    time.Since(start).String(),
	}
	if prev != nil {
		fields["previous_settlement"] = prev.SettlementDate().Format("2006-01-02")
	}
	p.logger.WithFields(fields).Info("reference table rebuilt")

	return t, nil
}
