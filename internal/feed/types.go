package feed

// Series codes published on the order book.
const (
	SeriesGSec  = "GS" // central government securities
	SeriesSDL   = "SG" // state development loans
	SeriesTBill = "TB" // treasury bills
)

// Levels is the order book depth published per instrument.
const Levels = 5

// QuoteLevel is one depth level of one instrument in one fetch.
// TotalVolume and VWAP are instrument-wide and repeat across levels.
type QuoteLevel struct {
	Symbol      string  `json:"symbol"`
	Series      string  `json:"series"`
	ISIN        string  `json:"isin"`
	Level       int     `json:"level"`
	BidPrice    float64 `json:"bid_price"`
	BidQty      int64   `json:"bid_qty"`
	AskPrice    float64 `json:"ask_price"`
	AskQty      int64   `json:"ask_qty"`
	TotalVolume int64   `json:"total_volume"`
	VWAP        float64 `json:"vwap"`
}

// Phase is a step of one fetch cycle.
type Phase int

const (
	PhaseAuthenticating Phase = iota + 1
	PhaseFetching
	PhaseParsing
)

func (p Phase) String() string {
	switch p {
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseFetching:
		return "fetching"
	case PhaseParsing:
		return "parsing"
	default:
		return "unknown"
	}
}

// PhaseFunc observes phase transitions inside Fetch.
type PhaseFunc func(Phase)
