package reference

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingSymbol     = errors.New("missing symbol")
	ErrMissingRedemption = errors.New("missing redemption date")
	ErrBadDate           = errors.New("unparseable date")
	ErrBadCoupon         = errors.New("unparseable coupon rate")
	ErrDuplicateSymbol   = errors.New("duplicate symbol")
	ErrEmptyMaster       = errors.New("master list has no usable rows")
)

// MasterRow is one line of the instrument master list.
type MasterRow struct {
	Symbol     string          `json:"symbol"`
	CouponRate decimal.Decimal `json:"coupon_rate"` // annual %, 0 = zero coupon
	Redemption time.Time       `json:"redemption"`
}

// Master is a loaded master list plus the lines that were rejected.
type Master struct {
	Source   string      `json:"source"`
	LoadedAt time.Time   `json:"loaded_at"`
	Rows     []MasterRow `json:"rows"`
	Rejected []RowError  `json:"rejected,omitempty"`
}

// RowError explains why a master row was excluded. It is local to that row.
type RowError struct {
	Line   int    `json:"line,omitempty"`
	Symbol string `json:"symbol,omitempty"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e RowError) Error() string {
	switch {
	case e.Symbol != "" && e.Line > 0:
		return fmt.Sprintf("line %d (%s): %s", e.Line, e.Symbol, e.Reason)
	case e.Symbol != "":
		return fmt.Sprintf("%s: %s", e.Symbol, e.Reason)
	default:
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
}

func (e RowError) Unwrap() error { return e.Err }

func newRowError(line int, symbol string, err error) RowError {
	return RowError{Line: line, Symbol: symbol, Reason: err.Error(), Err: err}
}

// Instrument is the per-symbol reference record for one settlement date.
// Immutable once built.
type Instrument struct {
	Symbol              string    `json:"symbol"`
	CouponRate          float64   `json:"coupon_rate"`
	RedemptionDate      time.Time `json:"redemption_date"`
	SettlementDate      time.Time `json:"settlement_date"`
	LastCouponDate      time.Time `json:"last_coupon_date"`
	NextCouponDate      time.Time `json:"next_coupon_date,omitzero"`
	HasNextCoupon       bool      `json:"has_next_coupon"` // false for zero coupon
	DaysSinceLastCoupon int       `json:"days_since_last_coupon"`
	AccruedInterest     float64   `json:"accrued_interest"`
	YearsToMaturity     float64   `json:"years_to_maturity"`
	DaysToMaturity      int       `json:"days_to_maturity"`
}

// ZeroCoupon reports whether the instrument pays no coupon (T-Bills).
func (i Instrument) ZeroCoupon() bool {
	return i.CouponRate == 0
}

// Table is the immutable symbol -> Instrument index for one settlement date.
type Table struct {
	settlement time.Time
	builtAt    time.Time
	bySymbol   map[string]Instrument
	symbols    []string
	rejected   []RowError
}

// SettlementDate is the date every record in the table was computed for.
func (t *Table) SettlementDate() time.Time { return t.settlement }

// BuiltAt is when the table was constructed.
func (t *Table) BuiltAt() time.Time { return t.builtAt }

// Len returns the number of instruments.
func (t *Table) Len() int { return len(t.symbols) }

// Lookup returns the instrument for symbol.
func (t *Table) Lookup(symbol string) (Instrument, bool) {
	inst, ok := t.bySymbol[symbol]
	return inst, ok
}

// Rejected lists the rows excluded while loading and building.
func (t *Table) Rejected() []RowError {
	out := make([]RowError, len(t.rejected))
	copy(out, t.rejected)
	return out
}

// All returns every instrument ordered by symbol.
func (t *Table) All() []Instrument {
	out := make([]Instrument, 0, len(t.symbols))
	for _, s := range t.symbols {
		out = append(out, t.bySymbol[s])
	}
	return out
}

func sortedKeys(m map[string]Instrument) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
