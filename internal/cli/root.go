// Package cli implements the favorbank command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "favorbank",
	Short: "FavorBank community credit ledger",
	Long: `FavorBank is a community time-exchange ledger: members of a circle
post requests for help, book time slots, and exchange credits tracked through
a double-entry ledger with a circle treasury and insurance pool.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
