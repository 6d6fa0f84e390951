package bond

import "time"

// Days360US counts days between start and end under the 30/360 US (NASD)
// convention:
//   - start and end both the last day of February: end day becomes 30
//   - start the last day of February: start day becomes 30
//   - end day 31 and start day 30 or 31: end day becomes 30
//   - start day 31: start day becomes 30
func Days360US(start, end time.Time) int {
	y1, m1, d1 := start.Date()
	y2, m2, d2 := end.Date()

	startLastFeb := isLastOfFebruary(start)
	if startLastFeb && isLastOfFebruary(end) {
		d2 = 30
	}
	if startLastFeb {
		d1 = 30
	}
	if d2 == 31 && d1 >= 30 {
		d2 = 30
	}
	if d1 == 31 {
		d1 = 30
	}

	return 360*(y2-y1) + 30*(int(m2)-int(m1)) + (d2 - d1)
}

// ActualDays returns the calendar day count from start to end (act/365 numerator).
func ActualDays(start, end time.Time) int {
	return int(CivilDate(end).Sub(CivilDate(start)).Hours() / 24)
}

// YearsAct365 returns the actual/365 year fraction between start and end.
func YearsAct365(start, end time.Time) float64 {
	return float64(ActualDays(start, end)) / 365
}
