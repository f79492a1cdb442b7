package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/maidsofhonourafrica/escrow-service/internal/domain"
)

// FlatCommission is a single-version schedule in force since the epoch.
func FlatCommission(rate string) domain.CommissionSchedule {
	schedule, err := domain.NewCommissionSchedule([]domain.CommissionRate{
		{EffectiveFrom: time.Unix(0, 0).UTC(), Rate: decimal.RequireFromString(rate)},
	})
	if err != nil {
		panic(err)
	}
	return schedule
}

func Amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
