package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/debtview/internal/bond"
)

// Header names of the exchange master file. Matching is case-insensitive
// and ignores surrounding spaces (the file ships " IP RATE").
const (
	colSymbol     = "symbol"
	colCoupon     = "ip rate"
	colRedemption = "redemption date"
)

var dateLayouts = []string{
	"02-Jan-2006",
	"2-Jan-2006",
	"02-01-2006",
	"2006-01-02",
}

// ParseCSV reads a master list. Structural problems (no header, missing
// required columns) fail the whole load; bad rows are collected in
// Master.Rejected and skipped.
func ParseCSV(r io.Reader) (*Master, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty master file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	symIdx, ok1 := idx[colSymbol]
	redIdx, ok2 := idx[colRedemption]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("master header must contain %q and %q, got %v", "SYMBOL", "REDEMPTION DATE", header)
	}
	couponIdx, hasCoupon := idx[colCoupon]

	m := &Master{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			m.Rejected = append(m.Rejected, newRowError(line, "", err))
			continue
		}

		field := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		coupon := ""
		if hasCoupon {
			coupon = field(couponIdx)
		}
		row, err := parseRow(field(symIdx), coupon, field(redIdx))
		if err != nil {
			m.Rejected = append(m.Rejected, newRowError(line, field(symIdx), err))
			continue
		}
		m.Rows = append(m.Rows, row)
	}

	return m, nil
}

func parseRow(symbol, coupon, redemption string) (MasterRow, error) {
	if symbol == "" {
		return MasterRow{}, ErrMissingSymbol
	}
	if redemption == "" || redemption == "-" {
		return MasterRow{}, ErrMissingRedemption
	}

	red, err := ParseDate(redemption)
	if err != nil {
		return MasterRow{}, err
	}

	rate, err := ParseCoupon(coupon)
	if err != nil {
		return MasterRow{}, err
	}

	return MasterRow{Symbol: symbol, CouponRate: rate, Redemption: red}, nil
}

// ParseDate accepts the exchange's day-month-year forms and ISO dates.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return bond.CivilDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// ParseCoupon parses an annual coupon percentage. Missing values mean zero coupon.
func ParseCoupon(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrBadCoupon, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %q", ErrBadCoupon, s)
	}
	return d, nil
}
