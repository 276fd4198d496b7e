package lienos

import (
	"context"

	"github.com/3piecechickendinner/LeinOS/accrual"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/portfolio"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

// upcomingWindowDays is the horizon for the summary's upcoming
// deadline count.
const upcomingWindowDays = 30

// PortfolioSummary returns the headline rollup for a tenant's holdings.
// An empty portfolio yields zeros, not an error.
func (e *Engine) PortfolioSummary(ctx context.Context, tenantID tenant.ID) (*portfolio.Summary, error) {
	a, err := e.PortfolioAnalytics(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s := a.Summary
	return &s, nil
}

// PortfolioAnalytics returns the full breakdown behind PortfolioSummary:
// status and county histograms, invested and redeemed totals, holding
// period stats, and a per-lien performance row.
//
// Projected values accrue as of today for ACTIVE liens and as of the
// terminal transition date otherwise. TotalInterestEarned counts only
// realized interest, collections above principal on REDEEMED liens,
// never projections.
func (e *Engine) PortfolioAnalytics(ctx context.Context, tenantID tenant.ID) (*portfolio.Analytics, error) {
	if tenantID.IsZero() {
		return nil, ErrMissingTenant
	}

	liens, err := e.store.ListLiens(ctx, tenantID, lien.Filter{})
	if err != nil {
		return nil, err
	}

	currency := "usd"
	if len(liens) > 0 {
		currency = liens[0].Principal.Currency
	}

	a := &portfolio.Analytics{
		Summary: portfolio.Summary{
			TotalValue:          types.Zero(currency),
			TotalInterestEarned: types.Zero(currency),
		},
		LiensByStatus:      make(map[string]int),
		LiensByCounty:      make(map[string]int),
		TotalInvested:      types.Zero(currency),
		TotalRedeemedValue: types.Zero(currency),
	}

	today := e.today()
	var rateSum int64
	var holdingDaysSum int

	for _, l := range liens {
		a.LiensByStatus[string(l.Status)]++
		if l.County != "" {
			a.LiensByCounty[l.County]++
		}
		a.TotalInvested = a.TotalInvested.Add(l.Principal)

		payments, err := e.store.ListPaymentsByLien(ctx, tenantID, l.ID)
		if err != nil {
			return nil, err
		}
		collected := types.Zero(l.Principal.Currency)
		for _, p := range payments {
			collected = collected.Add(p.Amount)
		}

		// Terminal liens stop accruing at the transition date.
		asOf := today
		if l.Status.Terminal() {
			asOf = types.DateOf(l.UpdatedAt)
		}
		if asOf.Before(l.PurchaseDate) {
			asOf = l.PurchaseDate
		}
		res, err := accrual.AccruedInterest(l.Principal, l.AnnualRate, l.PurchaseDate, asOf)
		if err != nil {
			return nil, err
		}
		holdingDaysSum += res.DaysHeld

		switch l.Status {
		case lien.StatusActive:
			a.TotalValue = a.TotalValue.Add(res.TotalValue)
			a.ActiveCount++
			rateSum += l.AnnualRate.BasisPoints()
		case lien.StatusRedeemed:
			a.TotalRedeemedValue = a.TotalRedeemedValue.Add(collected)
			a.TotalInterestEarned = a.TotalInterestEarned.Add(collected.Subtract(l.Principal))
		}

		a.Liens = append(a.Liens, portfolio.LienPerformance{
			LienID:            l.ID,
			CertificateNumber: l.CertificateNumber,
			Status:            string(l.Status),
			Principal:         l.Principal,
			AccruedInterest:   res.Interest,
			TotalValue:        res.TotalValue,
			CollectedAmount:   collected,
			DaysHeld:          res.DaysHeld,
			ReturnRate:        returnRate(l, collected),
		})
	}

	if a.ActiveCount > 0 {
		a.AvgReturnRate = types.Rate(rateSum / int64(a.ActiveCount))
	}
	if len(liens) > 0 {
		a.AverageHoldingPeriodDays = holdingDaysSum / len(liens)
	}

	upcoming, err := e.ListUpcomingDeadlines(ctx, tenantID, upcomingWindowDays)
	if err != nil {
		return nil, err
	}
	a.UpcomingDeadlineCount = len(upcoming)

	return a, nil
}

// returnRate is the per-lien ROI row: realized basis points for
// terminal liens with collections, the contract rate otherwise.
func returnRate(l *lien.Lien, collected types.Money) types.Rate {
	if l.Status.Terminal() && !collected.IsZero() && l.Principal.IsPositive() {
		gain := collected.Subtract(l.Principal)
		return types.Rate(gain.Amount * 10000 / l.Principal.Amount)
	}
	return l.AnnualRate
}
