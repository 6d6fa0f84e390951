package snapshot

import (
	"time"

	"github.com/wonny/debtview/internal/enrich"
)

// NoCoupon is shown as the next coupon date of zero coupon instruments.
const NoCoupon = "DNE"

const dateLayout = "2006-01-02"

// QuoteView is the presentation form of an enriched quote. Yields are in
// percent; a nil yield means no quote or no solution.
type QuoteView struct {
	Symbol string `json:"symbol"`
	Series string `json:"series"`
	ISIN   string `json:"isin,omitempty"`
	Level  int    `json:"level"`

	BidQty      int64    `json:"bid_qty"`
	BidPrice    float64  `json:"bid_price"`
	BidClean    float64  `json:"bid_clean"`
	BidYieldPct *float64 `json:"bid_yield_pct"`

	AskPrice    float64  `json:"ask_price"`
	AskClean    float64  `json:"ask_clean"`
	AskYieldPct *float64 `json:"ask_yield_pct"`
	AskQty      int64    `json:"ask_qty"`

	TotalVolume int64    `json:"total_volume"`
	VWAP        float64  `json:"vwap"`
	AvgClean    float64  `json:"avg_clean"`
	AvgYieldPct *float64 `json:"avg_yield_pct"`

	CouponRate      float64 `json:"coupon_rate"`
	AccruedInterest float64 `json:"accrued_interest"`
	LastCoupon      string  `json:"last_coupon"`
	NextCoupon      string  `json:"next_coupon"`
	Redemption      string  `json:"redemption"`
	YearsToMaturity float64 `json:"years_to_maturity"`
}

// View is the presentation form of a snapshot.
type View struct {
	ID             string       `json:"id"`
	CapturedAt     time.Time    `json:"captured_at"`
	SettlementDate string       `json:"settlement_date"`
	Stats          enrich.Stats `json:"stats"`
	Quotes         []QuoteView  `json:"quotes"`
}

// NewView converts quotes, typically a filtered subset of snap.Quotes.
func NewView(snap *Snapshot, quotes []enrich.EnrichedQuote) View {
	v := View{
		ID:             snap.ID.String(),
		CapturedAt:     snap.CapturedAt,
		SettlementDate: snap.SettlementDate.Format(dateLayout),
		Stats:          snap.Stats,
		Quotes:         make([]QuoteView, 0, len(quotes)),
	}
	for _, q := range quotes {
		v.Quotes = append(v.Quotes, NewQuoteView(q))
	}
	return v
}

// NewQuoteView scales yields to percent.
func NewQuoteView(q enrich.EnrichedQuote) QuoteView {
	ref := q.Reference
	next := NoCoupon
	if ref.HasNextCoupon {
		next = ref.NextCouponDate.Format(dateLayout)
	}

	return QuoteView{
		Symbol: q.Symbol,
		Series: q.Series,
		ISIN:   q.ISIN,
		Level:  q.Level,

		BidQty:      q.BidQty,
		BidPrice:    q.BidPrice,
		BidClean:    q.Bid.Clean,
		BidYieldPct: pct(q.Bid),

		AskPrice:    q.AskPrice,
		AskClean:    q.Ask.Clean,
		AskYieldPct: pct(q.Ask),
		AskQty:      q.AskQty,

		TotalVolume: q.TotalVolume,
		VWAP:        q.VWAP,
		AvgClean:    q.Avg.Clean,
		AvgYieldPct: pct(q.Avg),

		CouponRate:      ref.CouponRate,
		AccruedInterest: ref.AccruedInterest,
		LastCoupon:      ref.LastCouponDate.Format(dateLayout),
		NextCoupon:      next,
		Redemption:      ref.RedemptionDate.Format(dateLayout),
		YearsToMaturity: ref.YearsToMaturity,
	}
}

func pct(p enrich.Pricing) *float64 {
	if !p.Available {
		return nil
	}
	v := p.Yield * 100
	return &v
}
