package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the tenant's portfolio summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, tenantID, cleanup, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			detailed, _ := cmd.Flags().GetBool("detailed")
			if !detailed {
				s, err := engine.PortfolioSummary(ctx, tenantID)
				if err != nil {
					return err
				}
				fmt.Printf("active liens:          %d\n", s.ActiveCount)
				fmt.Printf("total value:           %s\n", s.TotalValue)
				fmt.Printf("interest earned:       %s\n", s.TotalInterestEarned)
				fmt.Printf("avg return rate:       %s\n", s.AvgReturnRate)
				fmt.Printf("deadlines within 30d:  %d\n", s.UpcomingDeadlineCount)
				return nil
			}

			a, err := engine.PortfolioAnalytics(ctx, tenantID)
			if err != nil {
				return err
			}
			fmt.Printf("invested %s, active value %s, redeemed %s, earned %s\n",
				a.TotalInvested, a.TotalValue, a.TotalRedeemedValue, a.TotalInterestEarned)
			fmt.Printf("average holding period: %d days\n\n", a.AverageHoldingPeriodDays)

			statuses := sortedKeys(a.LiensByStatus)
			for _, s := range statuses {
				fmt.Printf("%-12s %d\n", s, a.LiensByStatus[s])
			}
			fmt.Println()
			for _, p := range a.Liens {
				fmt.Printf("%s  %-14s %-10s principal=%s accrued=%s collected=%s held=%dd roi=%s\n",
					p.LienID, p.CertificateNumber, p.Status,
					p.Principal, p.AccruedInterest, p.CollectedAmount, p.DaysHeld, p.ReturnRate)
			}
			return nil
		},
	}

	cmd.Flags().BoolP("detailed", "d", false, "Include per-lien analytics")
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
