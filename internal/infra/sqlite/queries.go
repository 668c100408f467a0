package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/favorbank/favorbank/internal/domain"
)

// ─── Read Side ──────────────────────────────────────────────────────────────
// Reads run outside operation transactions; SQLite's snapshot isolation means
// a reader never sees a half-applied operation.

const sqliteTimeLayout = "2006-01-02 15:04:05"

// GetMembership retrieves a member's balance record within a circle.
func (db *DB) GetMembership(circleID, userID string) (*domain.Membership, error) {
	var m domain.Membership
	var role, createdStr, updatedStr string
	err := db.db.QueryRow(`
		SELECT circle_id, user_id, role, balance_credits, created_at, updated_at
		FROM memberships WHERE circle_id = ? AND user_id = ?
	`, circleID, userID).Scan(&m.CircleID, &m.UserID, &role, &m.BalanceCredits, &createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("membership %s/%s: %w", circleID, userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.Role = domain.MemberRole(role)
	m.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdStr)
	m.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedStr)
	return &m, nil
}

// GetTreasury retrieves the circle's treasury state.
func (db *DB) GetTreasury(circleID string) (*domain.TreasuryState, error) {
	var t domain.TreasuryState
	var matchingInt, allowanceInt int
	var updatedStr string
	err := db.db.QueryRow(`
		SELECT circle_id, balance_credits, reserved_credits, total_funded, total_distributed,
		       total_matched, match_ratio, max_match_per_booking, matching_active,
		       allowance_active, allowance_per_member, monthly_allowance_total, updated_at
		FROM treasuries WHERE circle_id = ?
	`, circleID).Scan(&t.CircleID, &t.BalanceCredits, &t.ReservedCredits, &t.TotalFunded,
		&t.TotalDistributed, &t.TotalMatched, &t.MatchRatio, &t.MaxMatchPerBooking,
		&matchingInt, &allowanceInt, &t.AllowancePerMember, &t.MonthlyAllowance, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("treasury of circle %s: %w", circleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	t.MatchingActive = matchingInt == 1
	t.AllowanceActive = allowanceInt == 1
	t.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedStr)
	return &t, nil
}

// SetTreasuryPolicy updates the circle's matching and allowance settings,
// creating the treasury row if needed.
func (db *DB) SetTreasuryPolicy(circleID string, matchRatio float64, maxMatchPerBooking int64, matchingActive, allowanceActive bool, allowancePerMember, monthlyAllowance int64) error {
	boolToInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	_, err := db.db.Exec(`
		INSERT INTO treasuries (circle_id, match_ratio, max_match_per_booking, matching_active, allowance_active, allowance_per_member, monthly_allowance_total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(circle_id) DO UPDATE SET
			match_ratio             = excluded.match_ratio,
			max_match_per_booking   = excluded.max_match_per_booking,
			matching_active         = excluded.matching_active,
			allowance_active        = excluded.allowance_active,
			allowance_per_member    = excluded.allowance_per_member,
			monthly_allowance_total = excluded.monthly_allowance_total,
			updated_at              = datetime('now')
	`, circleID, matchRatio, maxMatchPerBooking, boolToInt(matchingActive), boolToInt(allowanceActive), allowancePerMember, monthlyAllowance)
	return err
}

// GetPool retrieves the circle's insurance pool.
func (db *DB) GetPool(circleID string) (*domain.InsurancePool, error) {
	var p domain.InsurancePool
	var updatedStr string
	err := db.db.QueryRow(`
		SELECT circle_id, balance_credits, updated_at FROM insurance_pools WHERE circle_id = ?
	`, circleID).Scan(&p.CircleID, &p.BalanceCredits, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("insurance pool of circle %s: %w", circleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedStr)
	return &p, nil
}

// GetLoan retrieves a loan by id.
func (db *DB) GetLoan(loanID string) (*domain.Loan, error) {
	var l domain.Loan
	var createdStr, updatedStr string
	err := db.db.QueryRow(`
		SELECT id, circle_id, borrower_id, principal, remaining, created_at, updated_at
		FROM loans WHERE id = ?
	`, loanID).Scan(&l.ID, &l.CircleID, &l.BorrowerID, &l.Principal, &l.Remaining, &createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan %s: %w", loanID, domain.ErrLoanNotFound)
	}
	if err != nil {
		return nil, err
	}
	l.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdStr)
	l.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedStr)
	return &l, nil
}

// ListTransfers returns a circle's transfers, newest first.
func (db *DB) ListTransfers(circleID string, limit, offset int) ([]domain.Transfer, error) {
	rows, err := db.db.Query(`
		SELECT id, circle_id, kind, amount, source_type, source_user, sink_type, sink_user, booking_id, loan_id, note, created_at
		FROM transfers WHERE circle_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?
	`, circleID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransfers(rows)
}

// TransfersByBooking returns all transfers recorded against a booking.
func (db *DB) TransfersByBooking(bookingID string) ([]domain.Transfer, error) {
	rows, err := db.db.Query(`
		SELECT id, circle_id, kind, amount, source_type, source_user, sink_type, sink_user, booking_id, loan_id, note, created_at
		FROM transfers WHERE booking_id = ? ORDER BY created_at, id
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func scanTransfers(rows *sql.Rows) ([]domain.Transfer, error) {
	var result []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var kind, srcType, sinkType, createdStr string
		if err := rows.Scan(&t.ID, &t.CircleID, &kind, &t.Amount, &srcType, &t.Source.UserID,
			&sinkType, &t.Sink.UserID, &t.BookingID, &t.LoanID, &t.Note, &createdStr); err != nil {
			return nil, err
		}
		t.Kind = domain.TransferKind(kind)
		t.Source.Type = domain.AccountType(srcType)
		t.Sink.Type = domain.AccountType(sinkType)
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		result = append(result, t)
	}
	return result, rows.Err()
}

// ─── Replay ─────────────────────────────────────────────────────────────────

// ReplaySnapshot holds balances recomputed from the transfer log alone.
// Comparing it against the stored projections catches drift.
type ReplaySnapshot struct {
	Members  map[string]int64 // user id → balance
	Treasury int64
	Reserved int64
	Pool     int64
	Loans    map[string]int64 // loan id → remaining
}

// ReplayBalances recomputes every projection for a circle by replaying the
// transfer log from scratch. Not part of the hot path.
func (db *DB) ReplayBalances(circleID string) (*ReplaySnapshot, error) {
	snap := &ReplaySnapshot{
		Members: make(map[string]int64),
		Loans:   make(map[string]int64),
	}

	rows, err := db.db.Query(`
		SELECT user_id, SUM(delta) FROM (
			SELECT sink_user AS user_id, amount AS delta
			FROM transfers WHERE circle_id = ? AND sink_type = 'member'
			UNION ALL
			SELECT source_user, -amount
			FROM transfers WHERE circle_id = ? AND source_type = 'member'
		) GROUP BY user_id
	`, circleID, circleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		var balance int64
		if err := rows.Scan(&userID, &balance); err != nil {
			return nil, err
		}
		snap.Members[userID] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, acct := range []struct {
		accountType string
		dest        *int64
	}{
		{"treasury", &snap.Treasury},
		{"treasury_reserved", &snap.Reserved},
		{"insurance_pool", &snap.Pool},
	} {
		err := db.db.QueryRow(`
			SELECT COALESCE(SUM(CASE WHEN sink_type = ?1 THEN amount ELSE 0 END), 0)
			     - COALESCE(SUM(CASE WHEN source_type = ?1 THEN amount ELSE 0 END), 0)
			FROM transfers WHERE circle_id = ?2 AND (sink_type = ?1 OR source_type = ?1)
		`, acct.accountType, circleID).Scan(acct.dest)
		if err != nil {
			return nil, err
		}
	}

	loanRows, err := db.db.Query(`
		SELECT loan_id,
		       COALESCE(SUM(CASE WHEN kind = 'LOAN_ISSUE' THEN amount ELSE -amount END), 0)
		FROM transfers
		WHERE circle_id = ? AND loan_id != '' AND kind IN ('LOAN_ISSUE', 'LOAN_REPAY')
		GROUP BY loan_id
	`, circleID)
	if err != nil {
		return nil, err
	}
	defer loanRows.Close()
	for loanRows.Next() {
		var loanID string
		var remaining int64
		if err := loanRows.Scan(&loanID, &remaining); err != nil {
			return nil, err
		}
		snap.Loans[loanID] = remaining
	}
	return snap, loanRows.Err()
}
