// Package pricing derives the charge and included distance for a rental
// window from a vehicle's daily rate.
//
// Fractional days are computed with exact rationals so that boundary cases
// such as 1 day 8 hours (1 + 1/3 days) round the same way every time.
package pricing

import (
	"math/big"

	"bikerent/internal/interval"
)

// Rate is the per-day tariff of a vehicle.
type Rate struct {
	PerDay           int64
	IncludedKmPerDay int64
}

type Quote struct {
	Duration       interval.Duration `json:"duration"`
	FractionalDays *big.Rat          `json:"-"`
	Price          int64             `json:"price"`
	IncludedKm     int64             `json:"included_km"`
}

// FractionalDays returns days + hours/24 + minutes/1440.
func FractionalDays(d interval.Duration) *big.Rat {
	return big.NewRat(d.TotalMinutes(), interval.MinutesPerDay)
}

// Calculate quotes a window. Both amounts round up: a partial day is never
// under-charged or under-allocated.
func Calculate(w interval.Window, rate Rate) (Quote, error) {
	d, err := interval.Decompose(w)
	if err != nil {
		return Quote{}, err
	}
	days := FractionalDays(d)
	return Quote{
		Duration:       d,
		FractionalDays: days,
		Price:          ceilMul(days, rate.PerDay),
		IncludedKm:     ceilMul(days, rate.IncludedKmPerDay),
	}, nil
}

// WithinTolerance reports whether a client-supplied price is close enough to
// the computed one to be accepted.
func WithinTolerance(client, computed, tolerance int64) bool {
	diff := client - computed
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func ceilMul(r *big.Rat, n int64) int64 {
	p := new(big.Rat).Mul(r, new(big.Rat).SetInt64(n))
	num := p.Num()
	den := p.Denom()

	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	// QuoRem truncates toward zero; bump positive remainders up.
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}
