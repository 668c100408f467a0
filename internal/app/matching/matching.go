// Package matching implements the treasury matching engine: an optional,
// policy-driven top-up of a provider's earnings from the circle treasury on
// booking completion.
//
// Matching is layered on top of the ledger operation library — a match is an
// ordinary paired transfer with the treasury as source — and is idempotent
// per booking: duplicate completion events are recorded no-ops.
package matching

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/favorbank/favorbank/internal/app/ledger"
	"github.com/favorbank/favorbank/internal/domain"
	"github.com/favorbank/favorbank/internal/infra/observability"
)

// Result reports what the engine decided for one completed booking.
// A no-op is not an error; Reason says why nothing was paid.
type Result struct {
	Matched bool   `json:"matched"`
	Amount  int64  `json:"amount"`
	Reason  string `json:"reason,omitempty"`
}

// Engine applies the matching policy.
type Engine struct {
	ledger *ledger.Service
}

// New creates a matching engine over the ledger service.
func New(l *ledger.Service) *Engine {
	return &Engine{ledger: l}
}

// ApplyMatch computes and applies the treasury match for a completed
// booking. totalCredits is what the provider earned from the booking itself.
//
// The policy read happens up front; the balance check is the guarded debit
// inside the transaction, so a racing treasury spend downgrades the match to
// an insufficient-funds no-op instead of a partial write.
func (e *Engine) ApplyMatch(ctx context.Context, circleID, bookingID, providerID string, totalCredits int64) (Result, error) {
	res, err := e.apply(ctx, circleID, bookingID, providerID, totalCredits)
	if err != nil {
		observability.RecordMatch("error", 0)
		return res, err
	}
	outcome := "skipped"
	if res.Matched {
		outcome = "matched"
	} else if res.Reason == "already matched for this booking" {
		outcome = "duplicate"
	} else if res.Reason == "insufficient treasury balance" {
		outcome = "insufficient"
	}
	observability.RecordMatch(outcome, res.Amount)
	return res, nil
}

func (e *Engine) apply(ctx context.Context, circleID, bookingID, providerID string, totalCredits int64) (Result, error) {
	treasury, err := e.ledger.DB().GetTreasury(circleID)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{Reason: "circle has no treasury"}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if !treasury.MatchingActive {
		return Result{Reason: "matching is not active"}, nil
	}
	if treasury.MatchRatio <= 0 {
		return Result{Reason: "match ratio is zero"}, nil
	}

	amount := int64(math.Floor(float64(totalCredits) * treasury.MatchRatio))
	if treasury.MaxMatchPerBooking > 0 && amount > treasury.MaxMatchPerBooking {
		amount = treasury.MaxMatchPerBooking
	}
	if amount <= 0 {
		return Result{Reason: "computed match amount is zero"}, nil
	}

	// Cheap pre-check for the common case; the authoritative check is the
	// guarded debit inside the transaction below.
	if treasury.BalanceCredits < amount {
		return Result{Amount: amount, Reason: "insufficient treasury balance"}, nil
	}

	var result Result
	var match domain.Transfer
	err = e.ledger.DB().InTx(ctx, func(tx *sql.Tx) error {
		inserted, err := e.ledger.DB().InsertTreasuryMatch(tx, bookingID, circleID, providerID, amount)
		if err != nil {
			return err
		}
		if !inserted {
			result = Result{Reason: "already matched for this booking"}
			return nil
		}
		match, err = e.ledger.TreasuryMatchTx(tx, circleID, providerID, amount, bookingID)
		if err != nil {
			return err
		}
		result = Result{Matched: true, Amount: amount}
		return nil
	})
	if errors.Is(err, domain.ErrInsufficientBalance) {
		// Lost the race to a concurrent treasury spend. Reported, not retried.
		return Result{Amount: amount, Reason: "insufficient treasury balance"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if result.Matched {
		ledger.RecordCommitted(match)
	}
	return result, nil
}
