package snapshot

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/debtview/internal/enrich"
)

// ErrNotReady is returned before the first snapshot is published.
var ErrNotReady = errors.New("no snapshot published yet")

// Snapshot is one complete enriched order book. Immutable after publication.
type Snapshot struct {
	ID             uuid.UUID              `json:"id"`
	CapturedAt     time.Time              `json:"captured_at"`
	SettlementDate time.Time              `json:"settlement_date"`
	Quotes         []enrich.EnrichedQuote `json:"quotes"`
	Stats          enrich.Stats           `json:"stats"`
}

// New wraps an enrichment result. Quotes are expected in symbol, level order.
func New(capturedAt, settlement time.Time, res enrich.Result) *Snapshot {
	return &Snapshot{
		ID:             uuid.New(),
		CapturedAt:     capturedAt,
		SettlementDate: settlement,
		Quotes:         res.Quotes,
		Stats:          res.Stats,
	}
}

// Symbols returns the distinct symbols in quote order.
func (s *Snapshot) Symbols() []string {
	var out []string
	for i, q := range s.Quotes {
		if i == 0 || s.Quotes[i-1].Symbol != q.Symbol {
			out = append(out, q.Symbol)
		}
	}
	return out
}

// Filter selects quotes from a snapshot without copying the snapshot.
type Filter struct {
	Series  map[string]bool // empty = all
	Symbols map[string]bool // empty = all
	NonZero bool            // drop levels with no bid and no ask quantity
}

// Apply returns the quotes matching f.
func (f Filter) Apply(quotes []enrich.EnrichedQuote) []enrich.EnrichedQuote {
	out := make([]enrich.EnrichedQuote, 0, len(quotes))
	for _, q := range quotes {
		if len(f.Series) > 0 && !f.Series[q.Series] {
			continue
		}
		if len(f.Symbols) > 0 && !f.Symbols[q.Symbol] {
			continue
		}
		if f.NonZero && q.BidQty == 0 && q.AskQty == 0 {
			continue
		}
		out = append(out, q)
	}
	return out
}
