package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRate is one version of the platform fee, in force from EffectiveFrom until the
// next version starts.
type CommissionRate struct {
	EffectiveFrom time.Time
	Rate          decimal.Decimal
}

type CommissionSchedule struct {
	rates []CommissionRate
}

func NewCommissionSchedule(rates []CommissionRate) (CommissionSchedule, error) {
	if len(rates) == 0 {
		return CommissionSchedule{}, ErrInvalidInput
	}
	sorted := make([]CommissionRate, len(rates))
	copy(sorted, rates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom) })
	for _, r := range sorted {
		if r.Rate.IsNegative() || r.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return CommissionSchedule{}, ErrInvalidInput
		}
	}
	return CommissionSchedule{rates: sorted}, nil
}

// RateAt returns the rate in force at t. Before the first version the earliest rate applies.
func (s CommissionSchedule) RateAt(t time.Time) decimal.Decimal {
	if len(s.rates) == 0 {
		return decimal.Zero
	}
	current := s.rates[0].Rate
	for _, r := range s.rates {
		if r.EffectiveFrom.After(t) {
			break
		}
		current = r.Rate
	}
	return current
}

// SplitCommission rounds the commission half-up to cents and gives the remainder to the
// provider, so commission + payout always equals total.
func SplitCommission(total, rate decimal.Decimal) (commission, payout decimal.Decimal, err error) {
	if !total.IsPositive() || rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, decimal.Zero, ErrInvalidInput
	}
	commission = total.Mul(rate).Round(2)
	payout = total.Sub(commission)
	return commission, payout, nil
}
