package enrich

import (
	"github.com/wonny/debtview/internal/feed"
	"github.com/wonny/debtview/internal/reference"
)

// Pricing is the clean price and yield of one side of a quote.
// Yield is a decimal fraction (0.0726 == 7.26%).
type Pricing struct {
	Quoted    float64 `json:"quoted"`
	Clean     float64 `json:"clean"`
	Yield     float64 `json:"yield"`
	Available bool    `json:"available"`
}

// EnrichedQuote is a quote level joined with its reference record.
type EnrichedQuote struct {
	feed.QuoteLevel
	Reference reference.Instrument `json:"reference"`

	Bid Pricing `json:"bid"`
	Ask Pricing `json:"ask"`
	Avg Pricing `json:"avg"`
}

// Stats summarises one enrichment pass.
type Stats struct {
	RowsIn       int      `json:"rows_in"`
	Joined       int      `json:"joined"`
	JoinGaps     int      `json:"join_gaps"`
	Nonconverged int      `json:"nonconverged"`
	GapSymbols   []string `json:"gap_symbols,omitempty"`
}

// Result is the output of Engine.Enrich.
type Result struct {
	Quotes []EnrichedQuote `json:"quotes"`
	Stats  Stats           `json:"stats"`
}
