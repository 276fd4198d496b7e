package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "lienos",
		Short:   "LeinOS - tax lien portfolio operations",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default $LIENOS_DB_PATH or lienos.db)")
	rootCmd.PersistentFlags().String("tenant", "", "tenant identifier, usually a county scope (default $LIENOS_TENANT)")

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
