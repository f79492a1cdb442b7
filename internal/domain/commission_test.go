package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionScheduleRateAt(t *testing.T) {
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	schedule, err := NewCommissionSchedule([]CommissionRate{
		{EffectiveFrom: jun, Rate: decimal.RequireFromString("0.12")},
		{EffectiveFrom: jan, Rate: decimal.RequireFromString("0.10")},
	})
	require.NoError(t, err)

	assert.Equal(t, "0.1", schedule.RateAt(jan.AddDate(-1, 0, 0)).String())
	assert.Equal(t, "0.1", schedule.RateAt(jan.AddDate(0, 2, 0)).String())
	assert.Equal(t, "0.12", schedule.RateAt(jun).String())
}

func TestCommissionScheduleRejectsInvalidRates(t *testing.T) {
	_, err := NewCommissionSchedule(nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewCommissionSchedule([]CommissionRate{{Rate: decimal.RequireFromString("1")}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSplitCommissionConservesTotal(t *testing.T) {
	cases := []struct {
		total, rate, commission string
	}{
		{"1000", "0.10", "100"},
		{"1999.99", "0.10", "200"},
		{"0.05", "0.10", "0.01"},
		{"333.33", "0.15", "50"},
	}
	for _, tc := range cases {
		total := decimal.RequireFromString(tc.total)
		commission, payout, err := SplitCommission(total, decimal.RequireFromString(tc.rate))
		require.NoError(t, err)
		assert.True(t, commission.Equal(decimal.RequireFromString(tc.commission)), "%s at %s: got %s", tc.total, tc.rate, commission)
		assert.True(t, commission.Add(payout).Equal(total))
	}
}
