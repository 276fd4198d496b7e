package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [lien-id]",
		Short: "Re-derive lien status from payment history",
		Long: `Repair liens whose status lags their payment history, for example
after a crash between committing a payment and updating the lien.
With no argument, every ACTIVE lien for the tenant is checked.
Reconciliation is idempotent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, tenantID, cleanup, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var targets []id.LienID
			if len(args) == 1 {
				lienID, err := id.ParseLienID(args[0])
				if err != nil {
					return fmt.Errorf("invalid lien id %q: %w", args[0], err)
				}
				targets = append(targets, lienID)
			} else {
				liens, err := engine.ListLiens(ctx, tenantID, lien.Filter{Status: lien.StatusActive})
				if err != nil {
					return err
				}
				for _, l := range liens {
					targets = append(targets, l.ID)
				}
			}

			repaired := 0
			for _, lienID := range targets {
				before, err := engine.GetLien(ctx, tenantID, lienID)
				if err != nil {
					return err
				}
				after, err := engine.ReconcileLien(ctx, tenantID, lienID)
				if err != nil {
					return err
				}
				if before.Status != after.Status {
					repaired++
					fmt.Printf("REPAIRED  %s  %s -> %s\n", lienID, before.Status, after.Status)
				}
			}
			fmt.Printf("reconcile complete: %d checked, %d repaired\n", len(targets), repaired)
			return nil
		},
	}
}
