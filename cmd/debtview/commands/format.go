package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wonny/debtview/internal/feed"
	"github.com/wonny/debtview/internal/snapshot"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const ruleWidth = 59

// printHeader prints a boxed title with key/value lines under it
func printHeader(w io.Writer, title string, fields [][2]string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("═", ruleWidth))
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, strings.Repeat("─", ruleWidth))
	for _, f := range fields {
		fmt.Fprintf(w, "  %-14s: %s\n", f[0], f[1])
	}
	fmt.Fprintln(w, strings.Repeat("─", ruleWidth))
}

// printWarning prints a warning message
func printWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// printSuccess prints a success message
func printSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// printTableHeader prints column titles and an underline
func printTableHeader(w io.Writer, columns []string, widths []int) {
	printTableRow(w, columns, widths)

	total := 0
	for i, width := range widths {
		total += width
		if i < len(widths)-1 {
			total += 2
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", total))
}

// printTableRow prints one row; numeric-looking columns are right aligned
func printTableRow(w io.Writer, values []string, widths []int) {
	var b strings.Builder
	for i, val := range values {
		if i == 0 {
			fmt.Fprintf(&b, "%-*s", widths[i], val)
		} else {
			fmt.Fprintf(&b, "%*s", widths[i], val)
		}
		if i < len(values)-1 {
			b.WriteString("  ")
		}
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
}

var (
	quoteColumns = []string{"Symbol", "Bid Qty", "Bid Yld%", "Bid", "Ask", "Ask Yld%", "Ask Qty", "Volume", "VWAP", "Avg Yld%", "Next Cpn"}
	quoteWidths  = []int{12, 9, 8, 8, 8, 8, 9, 10, 8, 8, 10}
)

// seriesTitles orders the sections of the quote table
var seriesTitles = []struct {
	series string
	title  string
}{
	{feed.SeriesGSec, "Government Securities (GS)"},
	{feed.SeriesSDL, "State Development Loans (SG)"},
	{feed.SeriesTBill, "Treasury Bills (TB)"},
}

// printQuotes prints one section per series. Only the best level carries
// the symbol; deeper levels are indented under it.
func printQuotes(w io.Writer, view snapshot.View) {
	bySeries := make(map[string][]snapshot.QuoteView)
	for _, q := range view.Quotes {
		bySeries[q.Series] = append(bySeries[q.Series], q)
	}

	for _, s := range seriesTitles {
		quotes := bySeries[s.series]
		if len(quotes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s  [%d rows]\n", s.title, len(quotes))
		printTableHeader(w, quoteColumns, quoteWidths)
		for _, q := range quotes {
			printTableRow(w, quoteRow(q), quoteWidths)
		}
	}
}

func quoteRow(q snapshot.QuoteView) []string {
	symbol := q.Symbol
	if q.Level > 1 {
		symbol = "  L" + strconv.Itoa(q.Level)
	}
	return []string{
		symbol,
		formatQty(q.BidQty),
		formatYield(q.BidYieldPct),
		formatPrice(q.BidPrice),
		formatPrice(q.AskPrice),
		formatYield(q.AskYieldPct),
		formatQty(q.AskQty),
		formatQty(q.TotalVolume),
		formatPrice(q.VWAP),
		formatYield(q.AvgYieldPct),
		q.NextCoupon,
	}
}

// formatYield shows "-" when there is no quote or no solution
func formatYield(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func formatPrice(v float64) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatQty groups thousands: 1234567 -> 1,234,567
func formatQty(n int64) string {
	if n == 0 {
		return "-"
	}
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
