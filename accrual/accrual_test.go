package accrual_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3piecechickendinner/LeinOS/accrual"
	"github.com/3piecechickendinner/LeinOS/types"
)

func TestAccruedInterest(t *testing.T) {
	tests := []struct {
		name         string
		principal    types.Money
		rate         types.Rate
		purchaseDate string
		asOf         string
		wantDays     int
		wantInterest int64
		wantTotal    int64
	}{
		{
			// $8,500 at 18% held exactly 365 days earns $1,530.00.
			name:         "full year at 18 percent",
			principal:    types.USD(850000),
			rate:         types.Percent(18),
			purchaseDate: "2024-05-15",
			asOf:         "2025-05-15",
			wantDays:     365,
			wantInterest: 153000,
			wantTotal:    1003000,
		},
		{
			name:         "same day is zero",
			principal:    types.USD(850000),
			rate:         types.Percent(18),
			purchaseDate: "2024-05-15",
			asOf:         "2024-05-15",
			wantDays:     0,
			wantInterest: 0,
			wantTotal:    850000,
		},
		{
			name:         "one day",
			principal:    types.USD(850000),
			rate:         types.Percent(18),
			purchaseDate: "2024-05-15",
			asOf:         "2024-05-16",
			wantDays:     1,
			// 850000 * 1800 / 3650000 = 419.18, rounds to 419.
			wantInterest: 419,
			wantTotal:    850419,
		},
		{
			name:         "zero rate accrues nothing",
			principal:    types.USD(1000000),
			rate:         0,
			purchaseDate: "2024-01-01",
			asOf:         "2025-01-01",
			wantDays:     366,
			wantInterest: 0,
			wantTotal:    1000000,
		},
		{
			name:         "half cent rounds up",
			principal:    types.USD(3650000),
			rate:         types.BasisPoints(1),
			purchaseDate: "2024-03-01",
			asOf:         "2024-03-06",
			wantDays:     5,
			// 3650000 * 1 * 5 / 3650000 = exactly 5.
			wantInterest: 5,
			wantTotal:    3650005,
		},
		{
			name:         "fractional percent rate",
			principal:    types.USD(1200000),
			rate:         types.BasisPoints(1250), // 12.5%
			purchaseDate: "2023-06-01",
			asOf:         "2024-06-01",
			wantDays:     366,
			// 1200000 * 1250 * 366 / 3650000 = 150410.958..., rounds to 150411.
			wantInterest: 150411,
			wantTotal:    1350411,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := accrual.AccruedInterest(
				tt.principal, tt.rate,
				types.MustParseDate(tt.purchaseDate),
				types.MustParseDate(tt.asOf),
			)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDays, got.DaysHeld)
			assert.Equal(t, tt.wantInterest, got.Interest.Amount)
			assert.Equal(t, tt.wantTotal, got.TotalValue.Amount)
			assert.Equal(t, tt.principal.Currency, got.Interest.Currency)
		})
	}
}

func TestAccruedInterestRejectsEarlyAsOf(t *testing.T) {
	_, err := accrual.AccruedInterest(
		types.USD(850000), types.Percent(18),
		types.MustParseDate("2024-05-15"),
		types.MustParseDate("2024-05-14"),
	)
	require.ErrorIs(t, err, accrual.ErrInvalidAsOfDate)
}

func TestAccruedInterestDeterministic(t *testing.T) {
	principal := types.USD(730000)
	rate := types.Percent(12)
	purchase := types.MustParseDate("2024-02-29")
	asOf := types.MustParseDate("2024-09-01")

	first, err := accrual.AccruedInterest(principal, rate, purchase, asOf)
	require.NoError(t, err)
	second, err := accrual.AccruedInterest(principal, rate, purchase, asOf)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAccruedInterestMonotonic(t *testing.T) {
	principal := types.USD(850000)
	rate := types.Percent(18)
	purchase := types.MustParseDate("2024-05-15")

	prev := int64(-1)
	for days := 0; days <= 400; days++ {
		got, err := accrual.AccruedInterest(principal, rate, purchase, purchase.AddDays(days))
		require.NoError(t, err)
		require.GreaterOrEqual(t, got.Interest.Amount, prev, "interest decreased at day %d", days)
		prev = got.Interest.Amount
	}
}
