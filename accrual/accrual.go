// Package accrual computes simple, non-compounding interest for a lien.
//
// The computation is a pure function of its inputs: no clock, no store,
// no hidden state. Given identical inputs it returns bit-for-bit
// identical output, which is what makes it safe to call concurrently
// from payment processing, sweeps, and portfolio rollups without any
// coordination.
package accrual

import (
	"errors"

	"github.com/3piecechickendinner/LeinOS/types"
)

// ErrInvalidAsOfDate is returned when asOf precedes the purchase date.
var ErrInvalidAsOfDate = errors.New("accrual: as-of date precedes purchase date")

// Result is the outcome of an interest computation.
type Result struct {
	DaysHeld   int         `json:"days_held"`
	Interest   types.Money `json:"accrued_interest"`
	TotalValue types.Money `json:"total_value"`
}

// basis is the divisor for simple annual interest in basis points:
// 10000 bp per whole rate, 365 days per year.
const basis = 10000 * 365

// AccruedInterest computes simple interest on principal at the given
// annual rate between purchaseDate and asOf, in whole days.
//
// All arithmetic is integer: interest minor units are
// round_half_up(principal × rate_bp × days / (10000 × 365)), so results
// are exact and replayable with no floating-point drift.
func AccruedInterest(principal types.Money, rate types.Rate, purchaseDate, asOf types.Date) (Result, error) {
	if asOf.Before(purchaseDate) {
		return Result{}, ErrInvalidAsOfDate
	}
	days := purchaseDate.DaysUntil(asOf)

	num := principal.Amount * rate.BasisPoints() * int64(days)
	cents := (num + basis/2) / basis

	interest := types.Cents(cents, principal.Currency)
	return Result{
		DaysHeld:   days,
		Interest:   interest,
		TotalValue: principal.Add(interest),
	}, nil
}
