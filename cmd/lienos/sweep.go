package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a deadline sweep for the tenant",
		Long: `Walk every pending redemption deadline for the tenant, fire any due
alert thresholds, and expire past-due liens. Safe to run repeatedly;
each (lien, threshold) pair alerts at most once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, tenantID, cleanup, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := engine.RunDeadlineSweep(ctx, tenantID)
			if err != nil {
				return err
			}

			for _, a := range res.Alerts {
				fmt.Printf("ALERT  %s  threshold=%dd  days_remaining=%d\n",
					a.LienID, a.Threshold, a.DaysRemaining)
			}
			for _, lienID := range res.Expired {
				fmt.Printf("EXPIRED  %s\n", lienID)
			}
			fmt.Printf("sweep complete: %d alert(s), %d expired, %s\n",
				len(res.Alerts), len(res.Expired), res.Elapsed)
			return nil
		},
	}
}
