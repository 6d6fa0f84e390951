package bond

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Calendar - 결제일/이표일 계산 (순수 함수)
// =============================================================================

var (
	// ErrInvalidSchedule is returned when no coupon schedule satisfies
	// last <= settlement < next, e.g. for a matured instrument.
	ErrInvalidSchedule = errors.New("invalid coupon schedule")
)

// CouponMonths is the spacing between semiannual coupon dates.
const CouponMonths = 6

// Date returns the civil date y-m-d at midnight UTC.
// All calendar arithmetic in this package works on such dates so that
// day differences are exact.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CivilDate drops the clock and zone of t, keeping its wall-clock date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// SettlementDate returns the next-business-day settlement for a trade on t:
// Friday settles Monday (+3), Saturday settles Monday (+2), any other day +1.
// t is interpreted in loc (the exchange zone); nil loc keeps t's own zone.
func SettlementDate(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	d := CivilDate(t)

	switch d.Weekday() {
	case time.Friday:
		return d.AddDate(0, 0, 3)
	case time.Saturday:
		return d.AddDate(0, 0, 2)
	default:
		return d.AddDate(0, 0, 1)
	}
}

// AddMonths shifts a civil date by n months, clamping to the last day of the
// target month (31-Mar - 6M = 30-Sep, 31-Aug + 6M = 28/29-Feb).
func AddMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	total := int(m) - 1 + n
	ty := y + floorDiv(total, 12)
	tm := time.Month(floorMod(total, 12) + 1)

	if last := daysIn(ty, tm); day > last {
		day = last
	}
	return time.Date(ty, tm, day, 0, 0, 0, 0, d.Location())
}

// Schedule is the coupon window bracketing a settlement date.
type Schedule struct {
	LastCoupon time.Time
	NextCoupon time.Time
}

// CouponSchedule walks back from redemption in chained 6-month steps until
// the date is on or before settlement; the next coupon is six months after
// that. Each step clamps to the end of the target month, so a clamped day
// carries into earlier periods (30-Aug redemption: 28-Feb, 28-Aug, ...).
//
// Invariants: LastCoupon <= settlement < NextCoupon,
// NextCoupon = LastCoupon + 6 months and LastCoupon = NextCoupon - 6 months.
func CouponSchedule(redemption, settlement time.Time) (Schedule, error) {
	redemption = CivilDate(redemption)
	settlement = CivilDate(settlement)

	if redemption.Before(settlement) {
		return Schedule{}, fmt.Errorf("%w: redemption %s before settlement %s",
			ErrInvalidSchedule, redemption.Format("2006-01-02"), settlement.Format("2006-01-02"))
	}

	// 2 coupons a year plus slack; bounds the walk for any sane redemption
	years := redemption.Year() - settlement.Year()
	maxSteps := 2*years + 2

	last := redemption
	for k := 0; last.After(settlement); k++ {
		if k == maxSteps {
			return Schedule{}, fmt.Errorf("%w: no coupon window for redemption %s within %d steps",
				ErrInvalidSchedule, redemption.Format("2006-01-02"), maxSteps)
		}
		last = AddMonths(last, -CouponMonths)
	}

	next := AddMonths(last, CouponMonths)
	if !next.After(settlement) {
		// final period of a month-end redemption: 31-Aug steps back to 28-Feb,
		// and 28-Feb + 6M falls before a 29/30-Aug settlement
		last, next = next, AddMonths(next, CouponMonths)
	}
	// last is redemption itself when settling on it; 31-Mar + 6M = 30-Sep,
	// so take the window from next to keep it exactly six months wide
	last = AddMonths(next, -CouponMonths)

	return Schedule{LastCoupon: last, NextCoupon: next}, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isLastOfFebruary(d time.Time) bool {
	return d.Month() == time.February && d.Day() == daysIn(d.Year(), time.February)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
