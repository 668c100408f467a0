package cli

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/favorbank/favorbank/internal/api"
	"github.com/favorbank/favorbank/internal/app/booking"
	"github.com/favorbank/favorbank/internal/app/ledger"
	"github.com/favorbank/favorbank/internal/app/matching"
	"github.com/favorbank/favorbank/internal/daemon"
	"github.com/favorbank/favorbank/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the FavorBank API server",
	Long:  `Start the HTTP API server backed by the configured SQLite database.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load()
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.API.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	loc, err := cfg.Fees.Location()
	if err != nil {
		return fmt.Errorf("fees timezone: %w", err)
	}

	ledgerSvc := ledger.New(db)
	matchEngine := matching.New(ledgerSvc)
	bookingSvc := booking.New(db, ledgerSvc, matchEngine, loc)

	server := api.NewServer(ledgerSvc, bookingSvc, db)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}

	log.Printf("[serve] listening on %s (db=%s, fees tz=%s)", cfg.API.Addr(), cfg.Database.Path, loc)
	return http.ListenAndServe(cfg.API.Addr(), server.Handler())
}
