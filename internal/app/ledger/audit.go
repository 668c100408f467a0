package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/favorbank/favorbank/internal/domain"
	"github.com/favorbank/favorbank/internal/infra/observability"
)

// ─── Reconciliation ─────────────────────────────────────────────────────────
// The stored projections are increment-maintained for fast reads; this
// operational invariant-checker replays the transfer log from scratch and
// compares. Any drift is a bug or partial failure and must surface loudly.

// Discrepancy is one projection that disagrees with log replay.
type Discrepancy struct {
	Account  string `json:"account"`
	Stored   int64  `json:"stored"`
	Replayed int64  `json:"replayed"`
}

// AuditReport is the result of reconciling one circle.
type AuditReport struct {
	CircleID      string        `json:"circle_id"`
	Consistent    bool          `json:"consistent"`
	DriftCredits  int64         `json:"drift_credits"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
}

// Reconcile replays a circle's transfer log and compares every projection
// (member balances, treasury, reserved bucket, insurance pool, loan
// remainders) against stored state.
func (s *Service) Reconcile(ctx context.Context, circleID string) (*AuditReport, error) {
	snap, err := s.db.ReplayBalances(circleID)
	if err != nil {
		return nil, fmt.Errorf("replay circle %s: %w", circleID, err)
	}

	report := &AuditReport{CircleID: circleID, Consistent: true}
	record := func(account string, stored, replayed int64) {
		if stored == replayed {
			return
		}
		report.Consistent = false
		drift := stored - replayed
		if drift < 0 {
			drift = -drift
		}
		report.DriftCredits += drift
		report.Discrepancies = append(report.Discrepancies, Discrepancy{
			Account: account, Stored: stored, Replayed: replayed,
		})
	}

	for userID, replayed := range snap.Members {
		stored := int64(0)
		m, err := s.db.GetMembership(circleID, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if m != nil {
			stored = m.BalanceCredits
		}
		record("member:"+userID, stored, replayed)
	}

	var treasuryStored, reservedStored int64
	if t, err := s.db.GetTreasury(circleID); err == nil {
		treasuryStored = t.BalanceCredits
		reservedStored = t.ReservedCredits
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	record("treasury", treasuryStored, snap.Treasury)
	record("treasury_reserved", reservedStored, snap.Reserved)

	var poolStored int64
	if p, err := s.db.GetPool(circleID); err == nil {
		poolStored = p.BalanceCredits
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	record("insurance_pool", poolStored, snap.Pool)

	for loanID, replayed := range snap.Loans {
		stored := int64(0)
		l, err := s.db.GetLoan(loanID)
		if err != nil && !errors.Is(err, domain.ErrLoanNotFound) {
			return nil, err
		}
		if l != nil {
			stored = l.Remaining
		}
		record("loan:"+loanID, stored, replayed)
	}

	observability.AuditDrift.WithLabelValues(circleID).Set(float64(report.DriftCredits))
	return report, nil
}

// ─── Read Side ──────────────────────────────────────────────────────────────

// Balance returns a member's current balance. A member the ledger has never
// touched reports zero rather than not-found.
func (s *Service) Balance(ctx context.Context, circleID, userID string) (int64, error) {
	m, err := s.db.GetMembership(circleID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.BalanceCredits, nil
}

// Entries returns a circle's ledger entries (paired legs projected from the
// transfer log), newest transfer first, debit leg before credit leg.
func (s *Service) Entries(ctx context.Context, circleID string, limit, offset int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	transfers, err := s.db.ListTransfers(circleID, limit, offset)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LedgerEntry, 0, len(transfers)*2)
	for _, t := range transfers {
		debit, credit := t.Legs()
		entries = append(entries, debit, credit)
	}
	return entries, nil
}
