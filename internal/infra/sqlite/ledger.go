package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/favorbank/favorbank/internal/domain"
)

// ─── Transfer Log ───────────────────────────────────────────────────────────

// InsertTransfer appends one transfer row. Never called outside a larger
// transaction — the row and its balance deltas land together or not at all.
func (db *DB) InsertTransfer(tx *sql.Tx, t domain.Transfer) error {
	_, err := tx.Exec(`
		INSERT INTO transfers (id, circle_id, kind, amount, source_type, source_user, sink_type, sink_user, booking_id, loan_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.CircleID, string(t.Kind), t.Amount,
		string(t.Source.Type), t.Source.UserID,
		string(t.Sink.Type), t.Sink.UserID,
		t.BookingID, t.LoanID, t.Note, t.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// ─── Membership Balances ────────────────────────────────────────────────────

// EnsureMembership lazily creates a membership row with role MEMBER and a
// zero balance. A no-op if the membership already exists.
func (db *DB) EnsureMembership(tx *sql.Tx, circleID, userID string) error {
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO memberships (circle_id, user_id) VALUES (?, ?)
	`, circleID, userID)
	return err
}

// CreditMember increments a member's balance, creating the membership first
// if needed.
func (db *DB) CreditMember(tx *sql.Tx, circleID, userID string, amount int64) error {
	if err := db.EnsureMembership(tx, circleID, userID); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE memberships
		SET balance_credits = balance_credits + ?, updated_at = datetime('now')
		WHERE circle_id = ? AND user_id = ?
	`, amount, circleID, userID)
	return err
}

// DebitMember decrements a member's balance. The balance check and the
// mutation are one guarded statement: zero rows affected means the member
// cannot cover the amount.
func (db *DB) DebitMember(tx *sql.Tx, circleID, userID string, amount int64) error {
	if err := db.EnsureMembership(tx, circleID, userID); err != nil {
		return err
	}
	res, err := tx.Exec(`
		UPDATE memberships
		SET balance_credits = balance_credits - ?, updated_at = datetime('now')
		WHERE circle_id = ? AND user_id = ? AND balance_credits >= ?
	`, amount, circleID, userID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("member %s in circle %s: %w", userID, circleID, domain.ErrInsufficientBalance)
	}
	return nil
}

// ─── Treasury Balances ──────────────────────────────────────────────────────

// EnsureTreasury lazily creates the circle's treasury row.
func (db *DB) EnsureTreasury(tx *sql.Tx, circleID string) error {
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO treasuries (circle_id) VALUES (?)
	`, circleID)
	return err
}

// CreditTreasury increments the treasury's spendable balance.
func (db *DB) CreditTreasury(tx *sql.Tx, circleID string, amount int64) error {
	if err := db.EnsureTreasury(tx, circleID); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE treasuries
		SET balance_credits = balance_credits + ?, updated_at = datetime('now')
		WHERE circle_id = ?
	`, amount, circleID)
	return err
}

// DebitTreasury decrements the treasury's spendable balance, guarded against
// going negative.
func (db *DB) DebitTreasury(tx *sql.Tx, circleID string, amount int64) error {
	if err := db.EnsureTreasury(tx, circleID); err != nil {
		return err
	}
	res, err := tx.Exec(`
		UPDATE treasuries
		SET balance_credits = balance_credits - ?, updated_at = datetime('now')
		WHERE circle_id = ? AND balance_credits >= ?
	`, amount, circleID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("treasury of circle %s: %w", circleID, domain.ErrInsufficientBalance)
	}
	return nil
}

// ReserveCredits moves escrow-locked credits into the reserved bucket.
// The reserved bucket is an obligation, not spendable treasury cash.
func (db *DB) ReserveCredits(tx *sql.Tx, circleID string, amount int64) error {
	if err := db.EnsureTreasury(tx, circleID); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE treasuries
		SET reserved_credits = reserved_credits + ?, updated_at = datetime('now')
		WHERE circle_id = ?
	`, amount, circleID)
	return err
}

// ReleaseReserved takes escrow-locked credits back out of the reserved
// bucket, guarded against releasing more than is held.
func (db *DB) ReleaseReserved(tx *sql.Tx, circleID string, amount int64) error {
	res, err := tx.Exec(`
		UPDATE treasuries
		SET reserved_credits = reserved_credits - ?, updated_at = datetime('now')
		WHERE circle_id = ? AND reserved_credits >= ?
	`, amount, circleID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("reserved credits of circle %s: %w", circleID, domain.ErrInsufficientBalance)
	}
	return nil
}

// AddTreasuryTotals bumps the treasury's lifetime counters.
func (db *DB) AddTreasuryTotals(tx *sql.Tx, circleID string, funded, distributed, matched int64) error {
	if err := db.EnsureTreasury(tx, circleID); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE treasuries
		SET total_funded      = total_funded + ?,
		    total_distributed = total_distributed + ?,
		    total_matched     = total_matched + ?,
		    updated_at        = datetime('now')
		WHERE circle_id = ?
	`, funded, distributed, matched, circleID)
	return err
}

// ─── Insurance Pool Balances ────────────────────────────────────────────────

// EnsurePool lazily creates the circle's insurance pool row.
func (db *DB) EnsurePool(tx *sql.Tx, circleID string) error {
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO insurance_pools (circle_id) VALUES (?)
	`, circleID)
	return err
}

// CreditPool increments the insurance pool's balance.
func (db *DB) CreditPool(tx *sql.Tx, circleID string, amount int64) error {
	if err := db.EnsurePool(tx, circleID); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE insurance_pools
		SET balance_credits = balance_credits + ?, updated_at = datetime('now')
		WHERE circle_id = ?
	`, amount, circleID)
	return err
}

// DebitPool decrements the insurance pool's balance, guarded against going
// negative.
func (db *DB) DebitPool(tx *sql.Tx, circleID string, amount int64) error {
	if err := db.EnsurePool(tx, circleID); err != nil {
		return err
	}
	res, err := tx.Exec(`
		UPDATE insurance_pools
		SET balance_credits = balance_credits - ?, updated_at = datetime('now')
		WHERE circle_id = ? AND balance_credits >= ?
	`, amount, circleID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("insurance pool of circle %s: %w", circleID, domain.ErrInsufficientBalance)
	}
	return nil
}

// ─── Loans ──────────────────────────────────────────────────────────────────

// UpsertLoanIssue creates a loan or tops up an existing one: principal and
// remaining both grow by the issued amount. A loan id is bound to its circle
// and borrower; issuing against it from any other circle or for any other
// borrower is rejected rather than silently growing someone else's debt.
func (db *DB) UpsertLoanIssue(tx *sql.Tx, loanID, circleID, borrowerID string, amount int64) error {
	res, err := tx.Exec(`
		INSERT INTO loans (id, circle_id, borrower_id, principal, remaining)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			principal  = principal + excluded.principal,
			remaining  = remaining + excluded.remaining,
			updated_at = datetime('now')
		WHERE loans.circle_id = excluded.circle_id AND loans.borrower_id = excluded.borrower_id
	`, loanID, circleID, borrowerID, amount, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("loan %s: %w", loanID, domain.ErrLoanNotFound)
	}
	return nil
}

// RepayLoan decrements a loan's remaining balance, guarded against
// over-repayment. Only the loan's borrower can repay it; a loan held by
// anyone else looks like a missing loan to the caller.
func (db *DB) RepayLoan(tx *sql.Tx, loanID, circleID, borrowerID string, amount int64) error {
	res, err := tx.Exec(`
		UPDATE loans
		SET remaining = remaining - ?, updated_at = datetime('now')
		WHERE id = ? AND circle_id = ? AND borrower_id = ? AND remaining >= ?
	`, amount, loanID, circleID, borrowerID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM loans WHERE id = ? AND circle_id = ? AND borrower_id = ?`, loanID, circleID, borrowerID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("loan %s: %w", loanID, domain.ErrLoanNotFound)
	}
	return fmt.Errorf("loan %s: %w", loanID, domain.ErrLoanOverpayment)
}

// ─── Treasury Match Guard ───────────────────────────────────────────────────

// InsertTreasuryMatch records a match for a booking. Returns false without
// error when the booking was already matched — the caller treats a duplicate
// completion event as a no-op.
func (db *DB) InsertTreasuryMatch(tx *sql.Tx, bookingID, circleID, providerID string, amount int64) (bool, error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO treasury_matches (booking_id, circle_id, provider_id, amount)
		VALUES (?, ?, ?, ?)
	`, bookingID, circleID, providerID, amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
