// Package api provides the HTTP server for the FavorBank ledger core.
// It exposes the operation library, booking flows, fee quotes, and the
// reconciliation report over JSON; rendering, auth, and payment-gateway
// wiring live outside this service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/favorbank/favorbank/internal/app/booking"
	"github.com/favorbank/favorbank/internal/app/ledger"
	"github.com/favorbank/favorbank/internal/domain"
	"github.com/favorbank/favorbank/internal/infra/sqlite"
)

// Server is the FavorBank HTTP API server.
type Server struct {
	ledger         *ledger.Service
	bookings       *booking.Service
	db             *sqlite.DB
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(l *ledger.Service, b *booking.Service, db *sqlite.DB) *Server {
	return &Server{ledger: l, bookings: b, db: db}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": "0.1.0"})
	})

	r.Route("/api/circles/{circleID}", func(r chi.Router) {
		// Operation library
		r.Post("/deposit", s.handleDeposit)
		r.Post("/earn", s.handleEarn)
		r.Post("/spend", s.handleSpend)
		r.Post("/fees", s.handleApplyFee)
		r.Post("/treasury/deposit", s.handleTreasuryDeposit)
		r.Post("/treasury/policy", s.handleTreasuryPolicy)
		r.Post("/pool/fund", s.handlePoolFund)
		r.Post("/pool/payout", s.handlePoolPayout)
		r.Post("/pool/premium", s.handleInsurancePremium)
		r.Post("/loans", s.handleLoanIssue)
		r.Post("/loans/{loanID}/repay", s.handleLoanRepay)

		// Read side
		r.Get("/treasury", s.handleGetTreasury)
		r.Get("/pool", s.handleGetPool)
		r.Get("/loans/{loanID}", s.handleGetLoan)
		r.Get("/members/{userID}/balance", s.handleGetBalance)
		r.Get("/entries", s.handleListEntries)
		r.Get("/audit", s.handleAudit)
	})

	// Booking and claim flows
	r.Route("/api/bookings", func(r chi.Router) {
		r.Post("/", s.handleCreateBooking)
		r.Get("/{bookingID}", s.handleGetBooking)
		r.Post("/{bookingID}/accept", s.handleAcceptBooking)
		r.Post("/{bookingID}/start", s.handleStartBooking)
		r.Post("/{bookingID}/complete", s.handleCompleteBooking)
		r.Post("/{bookingID}/cancel", s.handleCancelBooking)
	})
	r.Route("/api/claims", func(r chi.Router) {
		r.Post("/", s.handleFileClaim)
		r.Post("/{claimID}/resolve", s.handleResolveClaim)
	})

	// Pure fee quotes — no persistence
	r.Post("/api/fees/quote", s.handleFeeQuote)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps the ledger error taxonomy onto HTTP statuses.
// The core never swallows a failure; this is the only translation layer.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrLoanNotFound),
		errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrClaimNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrLoanOverpayment),
		errors.Is(err, domain.ErrBookingNotOpen),
		errors.Is(err, domain.ErrBookingFinalized),
		errors.Is(err, domain.ErrClaimResolved):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflict):
		// Retryable: the whole operation rolled back.
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
