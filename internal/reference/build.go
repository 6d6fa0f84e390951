package reference

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/debtview/internal/bond"
)

var daysInYear360 = decimal.NewFromInt(360)

// Build computes the reference table for settlement. Rows that cannot
// produce a valid schedule are excluded and reported, never defaulted.
// Duplicate symbols keep the first occurrence.
func Build(master *Master, settlement time.Time, builtAt time.Time) (*Table, error) {
	settlement = bond.CivilDate(settlement)

	t := &Table{
		settlement: settlement,
		builtAt:    builtAt,
		bySymbol:   make(map[string]Instrument, len(master.Rows)),
	}
	t.rejected = append(t.rejected, master.Rejected...)

	for _, row := range master.Rows {
		if _, dup := t.bySymbol[row.Symbol]; dup {
			t.rejected = append(t.rejected, newRowError(0, row.Symbol, ErrDuplicateSymbol))
			continue
		}

		inst, err := NewInstrument(row, settlement)
		if err != nil {
			t.rejected = append(t.rejected, newRowError(0, row.Symbol, err))
			continue
		}
		t.bySymbol[row.Symbol] = inst
	}

	if len(t.bySymbol) == 0 {
		return nil, fmt.Errorf("%w: %d rejected", ErrEmptyMaster, len(t.rejected))
	}

	t.symbols = sortedKeys(t.bySymbol)
	return t, nil
}

// NewInstrument derives the schedule, accrual and maturity fields for one row.
func NewInstrument(row MasterRow, settlement time.Time) (Instrument, error) {
	settlement = bond.CivilDate(settlement)

	sched, err := bond.CouponSchedule(row.Redemption, settlement)
	if err != nil {
		return Instrument{}, err
	}

	days := bond.Days360US(sched.LastCoupon, settlement)
	coupon := row.CouponRate

	inst := Instrument{
		Symbol:              row.Symbol,
		CouponRate:          coupon.InexactFloat64(),
		RedemptionDate:      bond.CivilDate(row.Redemption),
		SettlementDate:      settlement,
		LastCouponDate:      sched.LastCoupon,
		DaysSinceLastCoupon: days,
		AccruedInterest:     AccruedInterest(coupon, days).InexactFloat64(),
		DaysToMaturity:      bond.ActualDays(settlement, row.Redemption),
		YearsToMaturity:     bond.YearsAct365(settlement, row.Redemption),
	}

	if !coupon.IsZero() {
		inst.NextCouponDate = sched.NextCoupon
		inst.HasNextCoupon = true
	}

	return inst, nil
}

// AccruedInterest = coupon / 360 * days, per 100 face.
func AccruedInterest(couponRate decimal.Decimal, days int) decimal.Decimal {
	if days <= 0 || couponRate.IsZero() {
		return decimal.Zero
	}
	return couponRate.Mul(decimal.NewFromInt(int64(days))).Div(daysInYear360)
}
