package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/favorbank/favorbank/internal/app/ledger"
	"github.com/favorbank/favorbank/internal/daemon"
	"github.com/favorbank/favorbank/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerBalanceCmd)
	ledgerCmd.AddCommand(ledgerEntriesCmd)
	ledgerCmd.AddCommand(ledgerAuditCmd)

	ledgerEntriesCmd.Flags().Int("limit", 20, "Maximum number of transfers to show")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the credit ledger",
}

// openLedger opens the configured database and wraps it in the ledger service.
func openLedger() (*ledger.Service, *sqlite.DB, error) {
	cfg, err := daemon.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return ledger.New(db), db, nil
}

// ─── ledger balance ─────────────────────────────────────────────────────────

var ledgerBalanceCmd = &cobra.Command{
	Use:   "balance CIRCLE_ID USER_ID",
	Short: "Show a member's credit balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		balance, err := svc.Balance(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s @ %s: %d credits\n", args[1], args[0], balance)
		return nil
	},
}

// ─── ledger entries ─────────────────────────────────────────────────────────

var ledgerEntriesCmd = &cobra.Command{
	Use:   "entries CIRCLE_ID",
	Short: "Show recent ledger entries for a circle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := svc.Entries(context.Background(), args[0], limit, 0)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stdout, "No ledger entries.")
			return nil
		}
		for _, e := range entries {
			party := e.FromUserID
			if e.Type == "CREDIT" {
				party = e.ToUserID
			}
			if party == "" {
				party = string(e.Counterparty)
			}
			fmt.Fprintf(os.Stdout, "%s  %-7s %-18s %6d  %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.Kind, e.Amount, party)
		}
		return nil
	},
}

// ─── ledger audit ───────────────────────────────────────────────────────────

var ledgerAuditCmd = &cobra.Command{
	Use:   "audit CIRCLE_ID",
	Short: "Reconcile stored balances against the transfer log",
	Long: `Replay the circle's transfer log from scratch and compare every stored
balance projection (members, treasury, reserved bucket, insurance pool, loans)
against the replayed values. Any drift indicates a bug and is listed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := svc.Reconcile(context.Background(), args[0])
		if err != nil {
			return err
		}
		if report.Consistent {
			fmt.Fprintf(os.Stdout, "Circle %s: all balances consistent with the transfer log.\n", report.CircleID)
			return nil
		}
		fmt.Fprintf(os.Stdout, "Circle %s: DRIFT DETECTED (%d credits total)\n", report.CircleID, report.DriftCredits)
		for _, d := range report.Discrepancies {
			fmt.Fprintf(os.Stdout, "  %-24s stored=%d replayed=%d\n", d.Account, d.Stored, d.Replayed)
		}
		return fmt.Errorf("ledger drift detected in circle %s", report.CircleID)
	},
}
