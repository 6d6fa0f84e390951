package bond

import (
	"errors"
	"fmt"
	"math"
)

// =============================================================================
// Yield Solver - 순수 계산기
// =============================================================================

var (
	// ErrYieldNonconvergence is returned when the root finder cannot solve
	// the price equation within its iteration budget.
	ErrYieldNonconvergence = errors.New("yield solver did not converge")

	// ErrInvalidInput covers non-positive prices, periods or day counts.
	ErrInvalidInput = errors.New("invalid yield input")
)

// Solver limits
const (
	MaxIterations = 100
	Tolerance     = 1e-10

	bracketLow  = -0.99
	bracketHigh = 10.0
)

// Face is the redemption value per 100 nominal.
const Face = 100.0

// PriceAt returns the clean price of a bond paying couponRate (annual %,
// semiannual) at periodic rate r over n half-year periods. n may be fractional.
func PriceAt(r, couponRate, n float64) float64 {
	c := couponRate / 2
	v := math.Pow(1+r, -n)
	if math.Abs(r) < 1e-12 {
		return c*n + Face
	}
	return c*(1-v)/r + Face*v
}

// CouponYield solves for the annualised yield (decimal fraction, 2r) of a
// semiannual coupon bond with the given clean price, annual coupon rate in
// percent and actual/365 years to maturity.
//
// Newton-Raphson seeded at couponRate/200, falling back to bisection on
// [-0.99, 10] when Newton leaves the bracket or stalls.
func CouponYield(clean, couponRate, years float64) (float64, error) {
	if clean <= 0 || years <= 0 || math.IsNaN(clean) || math.IsNaN(years) {
		return 0, fmt.Errorf("%w: price=%g years=%g", ErrInvalidInput, clean, years)
	}

	n := 2 * years
	f := func(r float64) float64 { return PriceAt(r, couponRate, n) - clean }

	r := couponRate / 200
	for i := 0; i < MaxIterations; i++ {
		fr := f(r)
		if math.Abs(fr) < Tolerance {
			return 2 * r, nil
		}
		d := priceDerivative(r, couponRate, n)
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			break
		}
		next := r - fr/d
		if next <= bracketLow || next >= bracketHigh || math.IsNaN(next) {
			break
		}
		if math.Abs(next-r) < Tolerance {
			return 2 * next, nil
		}
		r = next
	}

	r, err := bisect(f, bracketLow, bracketHigh)
	if err != nil {
		return 0, err
	}
	return 2 * r, nil
}

// priceDerivative is dP/dr of PriceAt.
func priceDerivative(r, couponRate, n float64) float64 {
	c := couponRate / 2
	if math.Abs(r) < 1e-12 {
		// limit at r -> 0
		return -c*n*(n+1)/2 - Face*n
	}
	v := math.Pow(1+r, -n)
	dv := -n * math.Pow(1+r, -n-1)
	return c*(-dv*r-(1-v))/(r*r) + Face*dv
}

func bisect(f func(float64) float64, lo, hi float64) (float64, error) {
	flo, fhi := f(lo), f(hi)
	if math.IsNaN(flo) || math.IsNaN(fhi) || flo*fhi > 0 {
		return 0, fmt.Errorf("%w: root not bracketed in [%g, %g]", ErrYieldNonconvergence, lo, hi)
	}

	// bisection halves the bracket each step; 200 steps exhaust float64 precision
	for i := 0; i < 2*MaxIterations; i++ {
		mid := (lo + hi) / 2
		fm := f(mid)
		if math.Abs(fm) < Tolerance || (hi-lo)/2 < Tolerance {
			return mid, nil
		}
		if (fm < 0) == (flo < 0) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}
	return 0, fmt.Errorf("%w: bisection exhausted", ErrYieldNonconvergence)
}

// MoneyMarketYield is the simple annualised discount yield of a zero-coupon
// instrument: (100 - P) / P * 365 / days.
func MoneyMarketYield(clean float64, days int) (float64, error) {
	if clean <= 0 || days <= 0 {
		return 0, fmt.Errorf("%w: price=%g days=%d", ErrInvalidInput, clean, days)
	}
	return (Face - clean) / clean * (365 / float64(days)), nil
}
