// Package portfolio holds the read models produced by the aggregation
// queries. Nothing here mutates state.
package portfolio

import (
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/types"
)

// Summary is the headline rollup for one tenant's holdings.
// An empty portfolio yields the zero value, not an error.
type Summary struct {
	TotalValue            types.Money `json:"total_value"`
	ActiveCount           int         `json:"active_count"`
	TotalInterestEarned   types.Money `json:"total_interest_earned"`
	AvgReturnRate         types.Rate  `json:"avg_return_rate"`
	UpcomingDeadlineCount int         `json:"upcoming_deadline_count"`
}

// Analytics is the detailed breakdown behind Summary.
type Analytics struct {
	Summary

	LiensByStatus map[string]int `json:"liens_by_status"`
	LiensByCounty map[string]int `json:"liens_by_county"`

	TotalInvested      types.Money `json:"total_invested"`
	TotalRedeemedValue types.Money `json:"total_redeemed_value"`

	AverageHoldingPeriodDays int `json:"average_holding_period_days"`

	Liens []LienPerformance `json:"liens"`
}

// LienPerformance is the per-lien row in Analytics.
type LienPerformance struct {
	LienID            id.LienID   `json:"lien_id"`
	CertificateNumber string      `json:"certificate_number"`
	Status            string      `json:"status"`
	Principal         types.Money `json:"principal"`
	AccruedInterest   types.Money `json:"accrued_interest"`
	TotalValue        types.Money `json:"total_value"`
	CollectedAmount   types.Money `json:"collected_amount"`
	DaysHeld          int         `json:"days_held"`
	ReturnRate        types.Rate  `json:"return_rate"`
}
