package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// number accepts JSON numbers, numeric strings ("1,234.50") and the
// exchange's "-" placeholder, which means no quote.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}

	s := string(b)
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(str), ",", "")
		if s == "" || s == "-" {
			*n = 0
			return nil
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*n = number(f)
	return nil
}

// rawEntry holds one instrument of the payload. Level fields are
// buyPrice1..5, buyQuantity1..5, sellPrice1..5 and sellQuantity1..5.
type rawEntry map[string]json.RawMessage

type payload struct {
	Data *[]rawEntry `json:"data"`
}

// Parse decodes an order book payload into Levels rows per instrument.
func Parse(data []byte) ([]QuoteLevel, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &ParseError{Reason: "malformed json", Err: err}
	}
	if p.Data == nil {
		return nil, &ParseError{Reason: `missing "data" array`}
	}

	out := make([]QuoteLevel, 0, len(*p.Data)*Levels)
	for i, e := range *p.Data {
		rows, err := e.levels()
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("entry %d", i), Err: err}
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (e rawEntry) levels() ([]QuoteLevel, error) {
	symbol, err := e.str("symbol")
	if err != nil {
		return nil, err
	}
	if symbol == "" {
		return nil, fmt.Errorf("missing symbol")
	}
	series, err := e.str("series")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	isin, err := e.str("isinCode")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	volume, err := e.num("totalTradedVolume")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	vwap, err := e.num("averagePrice")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	rows := make([]QuoteLevel, 0, Levels)
	for lvl := 1; lvl <= Levels; lvl++ {
		var vals [4]float64
		for j, name := range []string{"buyPrice", "buyQuantity", "sellPrice", "sellQuantity"} {
			v, err := e.num(name + strconv.Itoa(lvl))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", symbol, err)
			}
			vals[j] = v
		}

		rows = append(rows, QuoteLevel{
			Symbol:      symbol,
			Series:      series,
			ISIN:        isin,
			Level:       lvl,
			BidPrice:    vals[0],
			BidQty:      int64(vals[1]),
			AskPrice:    vals[2],
			AskQty:      int64(vals[3]),
			TotalVolume: int64(volume),
			VWAP:        vwap,
		})
	}
	return rows, nil
}

func (e rawEntry) str(key string) (string, error) {
	raw, ok := e[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %s: %w", key, err)
	}
	return strings.TrimSpace(s), nil
}

// num reads a required numeric field; null and "-" read as zero (no quote).
func (e rawEntry) num(key string) (float64, error) {
	raw, ok := e[key]
	if !ok {
		return 0, fmt.Errorf("missing field %s", key)
	}
	var n number
	if err := n.UnmarshalJSON(raw); err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return float64(n), nil
}
