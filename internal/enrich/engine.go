package enrich

import (
	"sort"

	"github.com/wonny/debtview/internal/bond"
	"github.com/wonny/debtview/internal/feed"
	"github.com/wonny/debtview/internal/reference"
	"github.com/wonny/debtview/pkg/logger"
)

// =============================================================================
// Enrichment Engine - 순수 계산기 (I/O 없음)
// =============================================================================

// Engine joins quote levels with the reference table and prices each side.
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates an engine. log may be a no-op logger.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{logger: log.Component("enrich")}
}

// Enrich is an inner join of levels with table. Levels without a reference
// record are dropped and counted as join gaps. The output is ordered by
// symbol, then level. Quoted sides whose yield cannot be solved are counted
// in Stats.Nonconverged.
func (e *Engine) Enrich(levels []feed.QuoteLevel, table *reference.Table) Result {
	res := Result{
		Quotes: make([]EnrichedQuote, 0, len(levels)),
		Stats:  Stats{RowsIn: len(levels)},
	}

	gaps := map[string]struct{}{}
	for _, q := range levels {
		var (
			inst reference.Instrument
			ok   bool
		)
		if table != nil {
			inst, ok = table.Lookup(q.Symbol)
		}
		if !ok {
			res.Stats.JoinGaps++
			gaps[q.Symbol] = struct{}{}
			continue
		}

		eq := Quote(q, inst)
		for _, p := range []Pricing{eq.Bid, eq.Ask, eq.Avg} {
			if p.Quoted != 0 && !p.Available {
				res.Stats.Nonconverged++
			}
		}
		res.Quotes = append(res.Quotes, eq)
	}
	res.Stats.Joined = len(res.Quotes)

	for s := range gaps {
		res.Stats.GapSymbols = append(res.Stats.GapSymbols, s)
	}
	sort.Strings(res.Stats.GapSymbols)
	if len(gaps) > 0 {
		e.logger.WithFields(map[string]interface{}{
			"rows":    res.Stats.JoinGaps,
			"symbols": res.Stats.GapSymbols,
		}).Debug("quotes without reference data dropped")
	}

	sort.SliceStable(res.Quotes, func(i, j int) bool {
		a, b := res.Quotes[i], res.Quotes[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Level < b.Level
	})
	return res
}

// Quote prices the bid, ask and VWAP of one level against inst.
func Quote(q feed.QuoteLevel, inst reference.Instrument) EnrichedQuote {
	return EnrichedQuote{
		QuoteLevel: q,
		Reference:  inst,
		Bid:        Price(q.BidPrice, inst),
		Ask:        Price(q.AskPrice, inst),
		Avg:        Price(q.VWAP, inst),
	}
}

// Price derives the clean price and yield of a quoted (dirty) price.
//
// Coupon bonds: no quote when the quoted price is 0, otherwise the
// semiannual yield to maturity of the clean price. Zero coupon: no quote when
// the clean price is 0, otherwise the money market yield. A side whose yield
// cannot be solved keeps its prices with Available=false.
func Price(quoted float64, inst reference.Instrument) Pricing {
	p := Pricing{
		Quoted: quoted,
		Clean:  quoted - inst.AccruedInterest,
	}

	var (
		y   float64
		err error
	)
	if inst.ZeroCoupon() {
		if p.Clean == 0 {
			return p
		}
		y, err = bond.MoneyMarketYield(p.Clean, inst.DaysToMaturity)
	} else {
		if quoted == 0 {
			p.Clean = 0
			return p
		}
		y, err = bond.CouponYield(p.Clean, inst.CouponRate, inst.YearsToMaturity)
	}

	if err != nil {
		return p
	}
	p.Yield = y
	p.Available = true
	return p
}
