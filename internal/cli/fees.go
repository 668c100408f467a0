package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/favorbank/favorbank/internal/app/fees"
	"github.com/favorbank/favorbank/internal/daemon"
)

func init() {
	rootCmd.AddCommand(feesCmd)
	feesCmd.AddCommand(feesQuoteCmd)

	feesQuoteCmd.Flags().String("start", "", "Booking start time (RFC 3339); defaults to now")
	feesQuoteCmd.Flags().String("category", "", "Booking category (e.g. TUTORING)")
	feesQuoteCmd.Flags().String("type", "", "Transaction type (purchase, exchange)")
	feesQuoteCmd.Flags().String("requirements", "", "Free-text requirements")
	feesQuoteCmd.Flags().Bool("urgent", false, "Urgent booking")
	feesQuoteCmd.Flags().Bool("equipment", false, "Equipment or materials provided")
	feesQuoteCmd.Flags().Bool("cross-circle", false, "Provider from another circle")
	feesQuoteCmd.Flags().Bool("guaranteed", false, "Guaranteed completion")
	feesQuoteCmd.Flags().Bool("plus", false, "Requester has a Plus membership")
}

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Fee engine utilities",
}

var feesQuoteCmd = &cobra.Command{
	Use:   "quote BASE_CREDITS",
	Short: "Quote surcharges for a hypothetical booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid base amount %q", args[0])
		}

		cfg, err := daemon.Load()
		if err != nil {
			return err
		}
		loc, err := cfg.Fees.Location()
		if err != nil {
			return err
		}

		fc := fees.Context{Location: loc}
		if s, _ := cmd.Flags().GetString("start"); s != "" {
			start, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			fc.StartAt = start
		}
		fc.Category, _ = cmd.Flags().GetString("category")
		fc.TransactionType, _ = cmd.Flags().GetString("type")
		fc.Requirements, _ = cmd.Flags().GetString("requirements")
		fc.Urgent, _ = cmd.Flags().GetBool("urgent")
		fc.Equipment, _ = cmd.Flags().GetBool("equipment")
		fc.CrossCircle, _ = cmd.Flags().GetBool("cross-circle")
		fc.Guaranteed, _ = cmd.Flags().GetBool("guaranteed")

		calc := fees.Calculate(base, fc)
		if plus, _ := cmd.Flags().GetBool("plus"); plus &&
			(fc.TransactionType == "purchase" || fc.TransactionType == "exchange") {
			calc = fees.WaivePlatformFee(calc)
		}

		fmt.Fprintf(os.Stdout, "Base:       %d credits\n", calc.BaseAmount)
		for _, li := range calc.Items {
			fmt.Fprintf(os.Stdout, "  %-22s +%d (%.1f%%)\n", li.Label, li.Amount, li.Percent)
		}
		if calc.Capped {
			fmt.Fprintf(os.Stdout, "Surcharges capped: %s\n", calc.CapReason)
		}
		fmt.Fprintf(os.Stdout, "Surcharges: %d credits\n", calc.TotalSurcharge)
		fmt.Fprintf(os.Stdout, "Total:      %d credits\n", calc.FinalAmount)
		return nil
	},
}
