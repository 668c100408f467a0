// Package observability defines the Prometheus metrics for the ledger core.
// Exposed on /metrics when the API server has metrics enabled.
package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/favorbank/favorbank/internal/domain"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// TransfersTotal counts committed transfers by kind.
var TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "favorbank",
	Subsystem: "ledger",
	Name:      "transfers_total",
	Help:      "Total committed ledger transfers by kind.",
}, []string{"kind"})

// CreditsMoved counts credits moved by transfer kind.
var CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "favorbank",
	Subsystem: "ledger",
	Name:      "credits_moved_total",
	Help:      "Total credits moved by transfer kind.",
}, []string{"kind"})

// RejectionsTotal counts rejected operations by reason.
var RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "favorbank",
	Subsystem: "ledger",
	Name:      "rejections_total",
	Help:      "Total rejected ledger operations by reason.",
}, []string{"reason"})

// ─── Matching Metrics ───────────────────────────────────────────────────────

// MatchingTotal counts matching decisions by outcome.
var MatchingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "favorbank",
	Subsystem: "matching",
	Name:      "decisions_total",
	Help:      "Total treasury matching decisions by outcome.",
}, []string{"outcome"})

// MatchedCredits counts credits paid out by the matching engine.
var MatchedCredits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "favorbank",
	Subsystem: "matching",
	Name:      "credits_total",
	Help:      "Total credits paid out as treasury matches.",
})

// ─── Audit Metrics ──────────────────────────────────────────────────────────

// AuditDrift is the absolute credit drift found by the last reconciliation
// run, per circle. Nonzero means a projection disagrees with log replay.
var AuditDrift = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "favorbank",
	Subsystem: "audit",
	Name:      "drift_credits",
	Help:      "Absolute balance drift found by the last reconciliation run.",
}, []string{"circle_id"})

// ─── Recording Helpers ──────────────────────────────────────────────────────

// RecordTransfer records a committed transfer.
func RecordTransfer(kind string, amount int64) {
	TransfersTotal.WithLabelValues(kind).Inc()
	CreditsMoved.WithLabelValues(kind).Add(float64(amount))
}

// RecordRejection buckets a failed operation by its domain error.
func RecordRejection(err error) {
	RejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
}

// RecordMatch records a matching decision outcome ("matched", "skipped",
// "duplicate", "insufficient", "error").
func RecordMatch(outcome string, amount int64) {
	MatchingTotal.WithLabelValues(outcome).Inc()
	if outcome == "matched" {
		MatchedCredits.Add(float64(amount))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrLoanOverpayment):
		return "loan_overpayment"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrLoanNotFound):
		return "not_found"
	default:
		return "other"
	}
}
