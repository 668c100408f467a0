package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/favorbank/favorbank/internal/domain"
)

// ─── Booking Operations ─────────────────────────────────────────────────────
// Booking rows are written inside the same transaction as their escrow
// transfer, so a failed escrow never leaves a dangling booking.

// InsertBooking creates a booking row.
func (db *DB) InsertBooking(tx *sql.Tx, b domain.Booking) error {
	boolToInt := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	_, err := tx.Exec(`
		INSERT INTO bookings (id, circle_id, requester_id, provider_id, credits, status, category, start_at, urgent, guaranteed, cross_circle, equipment, requirements)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.CircleID, b.RequesterID, b.ProviderID, b.Credits, string(b.Status), b.Category,
		b.StartAt.UTC().Format(time.RFC3339), boolToInt(b.Urgent), boolToInt(b.Guaranteed),
		boolToInt(b.CrossCircle), boolToInt(b.Equipment), b.Requirements)
	return err
}

// TransitionBooking moves a booking from one of the given states to another.
// Zero rows affected means the booking is missing or in the wrong state —
// this is what makes completion and cancellation safe to deliver twice.
func (db *DB) TransitionBooking(tx *sql.Tx, bookingID string, from []domain.BookingStatus, to domain.BookingStatus) error {
	q := `UPDATE bookings SET status = ?, updated_at = datetime('now') WHERE id = ? AND status IN (`
	args := []any{string(to), bookingID}
	for i, s := range from {
		if i > 0 {
			q += `, `
		}
		q += `?`
		args = append(args, string(s))
	}
	q += `)`

	res, err := tx.Exec(q, args...)
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
	if err := tx.QueryRow(`SELECT COUNT(*) FROM bookings WHERE id = ?`, bookingID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("booking %s: %w", bookingID, domain.ErrBookingNotFound)
	}
	return fmt.Errorf("booking %s: %w", bookingID, domain.ErrBookingFinalized)
}

// SetBookingProvider assigns the provider when a booking is accepted.
func (db *DB) SetBookingProvider(tx *sql.Tx, bookingID, providerID string) error {
	_, err := tx.Exec(`
		UPDATE bookings SET provider_id = ?, updated_at = datetime('now') WHERE id = ?
	`, providerID, bookingID)
	return err
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// GetBooking retrieves a booking by id.
func (db *DB) GetBooking(bookingID string) (*domain.Booking, error) {
	return getBooking(db.db, bookingID)
}

// GetBookingTx retrieves a booking inside an open transaction. Completion
// reads through this so the provider it pays is the one the transaction
// sees, not a snapshot taken before it began.
func (db *DB) GetBookingTx(tx *sql.Tx, bookingID string) (*domain.Booking, error) {
	return getBooking(tx, bookingID)
}

func getBooking(q rowQuerier, bookingID string) (*domain.Booking, error) {
	var b domain.Booking
	var status, startStr, createdStr, updatedStr string
	var urgent, guaranteed, crossCircle, equipment int
	err := q.QueryRow(`
		SELECT id, circle_id, requester_id, provider_id, credits, status, category, start_at,
		       urgent, guaranteed, cross_circle, equipment, requirements, created_at, updated_at
		FROM bookings WHERE id = ?
	`, bookingID).Scan(&b.ID, &b.CircleID, &b.RequesterID, &b.ProviderID, &b.Credits, &status,
		&b.Category, &startStr, &urgent, &guaranteed, &crossCircle, &equipment,
		&b.Requirements, &createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking %s: %w", bookingID, domain.ErrBookingNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.Status = domain.BookingStatus(status)
	b.Urgent = urgent == 1
	b.Guaranteed = guaranteed == 1
	b.CrossCircle = crossCircle == 1
	b.Equipment = equipment == 1
	b.StartAt, _ = time.Parse(time.RFC3339, startStr)
	b.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdStr)
	b.UpdatedAt, _ = time.Parse(sqliteTimeLayout, updatedStr)
	return &b, nil
}

// ─── Claim Operations ───────────────────────────────────────────────────────

// InsertClaim files a claim against a booking.
func (db *DB) InsertClaim(c domain.Claim) error {
	_, err := db.db.Exec(`
		INSERT INTO claims (id, circle_id, booking_id, claimant_id, amount, bonus_credits, type, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.CircleID, c.BookingID, c.ClaimantID, c.Amount, c.BonusCredits, string(c.Type), string(c.Status))
	return err
}

// GetClaim retrieves a claim by id.
func (db *DB) GetClaim(claimID string) (*domain.Claim, error) {
	var c domain.Claim
	var claimType, status, createdStr string
	var resolvedStr sql.NullString
	err := db.db.QueryRow(`
		SELECT id, circle_id, booking_id, claimant_id, amount, bonus_credits, type, status, created_at, resolved_at
		FROM claims WHERE id = ?
	`, claimID).Scan(&c.ID, &c.CircleID, &c.BookingID, &c.ClaimantID, &c.Amount, &c.BonusCredits,
		&claimType, &status, &createdStr, &resolvedStr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("claim %s: %w", claimID, domain.ErrClaimNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Type = domain.ClaimType(claimType)
	c.Status = domain.ClaimStatus(status)
	c.CreatedAt, _ = time.Parse(sqliteTimeLayout, createdStr)
	if resolvedStr.Valid {
		c.ResolvedAt, _ = time.Parse(sqliteTimeLayout, resolvedStr.String)
	}
	return &c, nil
}

// ResolveClaim marks a pending claim approved or denied. Zero rows affected
// means the claim is missing or was already resolved.
func (db *DB) ResolveClaim(tx *sql.Tx, claimID string, status domain.ClaimStatus) error {
	res, err := tx.Exec(`
		UPDATE claims SET status = ?, resolved_at = datetime('now')
		WHERE id = ? AND status = 'PENDING'
	`, string(status), claimID)
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
	if err := tx.QueryRow(`SELECT COUNT(*) FROM claims WHERE id = ?`, claimID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("claim %s: %w", claimID, domain.ErrClaimNotFound)
	}
	return fmt.Errorf("claim %s: %w", claimID, domain.ErrClaimResolved)
}
