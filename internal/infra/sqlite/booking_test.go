package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/favorbank/favorbank/internal/domain"
)

func testBooking(id string) domain.Booking {
	return domain.Booking{
		ID:          id,
		CircleID:    "c1",
		RequesterID: "alice",
		Credits:     30,
		Status:      domain.BookingOpen,
		Category:    "TUTORING",
		StartAt:     time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
		Urgent:      true,
	}
}

// ─── Booking Rows ───────────────────────────────────────────────────────────

func TestBooking_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.InsertBooking(tx, testBooking("b1"))
	})

	b, err := db.GetBooking("b1")
	if err != nil {
		t.Fatalf("GetBooking() error: %v", err)
	}
	if b.RequesterID != "alice" || b.Credits != 30 || b.Status != domain.BookingOpen {
		t.Errorf("round-trip mismatch: %+v", b)
	}
	if !b.Urgent || b.Guaranteed {
		t.Errorf("flags = urgent %v guaranteed %v, want true false", b.Urgent, b.Guaranteed)
	}
	if !b.StartAt.Equal(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("StartAt = %v, want 2025-03-04T10:00:00Z", b.StartAt)
	}
}

func TestGetBooking_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetBooking("missing")
	if !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("error = %v, want ErrBookingNotFound", err)
	}
}

func TestTransitionBooking(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.InsertBooking(tx, testBooking("b1"))
	})

	inTx(t, db, func(tx *sql.Tx) error {
		if err := db.TransitionBooking(tx, "b1", []domain.BookingStatus{domain.BookingOpen}, domain.BookingBooked); err != nil {
			return err
		}
		return db.SetBookingProvider(tx, "b1", "bob")
	})

	b, _ := db.GetBooking("b1")
	if b.Status != domain.BookingBooked || b.ProviderID != "bob" {
		t.Errorf("after accept: status %s provider %q", b.Status, b.ProviderID)
	}
}

func TestTransitionBooking_WrongState(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.InsertBooking(tx, testBooking("b1"))
	})

	// OPEN booking cannot complete.
	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.TransitionBooking(tx, "b1",
			[]domain.BookingStatus{domain.BookingBooked, domain.BookingInProgress}, domain.BookingCompleted)
	})
	if !errors.Is(err, domain.ErrBookingFinalized) {
		t.Errorf("error = %v, want ErrBookingFinalized", err)
	}

	err = db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.TransitionBooking(tx, "missing", []domain.BookingStatus{domain.BookingOpen}, domain.BookingBooked)
	})
	if !errors.Is(err, domain.ErrBookingNotFound) {
		t.Errorf("error = %v, want ErrBookingNotFound", err)
	}
}

func TestGetBookingTx_SeesTransactionState(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.InsertBooking(tx, testBooking("b1"))
	})

	// A provider assigned earlier in the same transaction must be visible
	// to an in-transaction read.
	inTx(t, db, func(tx *sql.Tx) error {
		if err := db.SetBookingProvider(tx, "b1", "carol"); err != nil {
			return err
		}
		b, err := db.GetBookingTx(tx, "b1")
		if err != nil {
			return err
		}
		if b.ProviderID != "carol" {
			t.Errorf("ProviderID = %q, want carol", b.ProviderID)
		}
		return nil
	})
}

// ─── Claims ─────────────────────────────────────────────────────────────────

func testClaim(id string) domain.Claim {
	return domain.Claim{
		ID:         id,
		CircleID:   "c1",
		BookingID:  "b1",
		ClaimantID: "alice",
		Amount:     25,
		Type:       domain.ClaimGuaranteed,
		Status:     domain.ClaimPending,
	}
}

func TestClaim_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	if err := db.InsertClaim(testClaim("cl1")); err != nil {
		t.Fatalf("InsertClaim() error: %v", err)
	}

	c, err := db.GetClaim("cl1")
	if err != nil {
		t.Fatalf("GetClaim() error: %v", err)
	}
	if c.Amount != 25 || c.Type != domain.ClaimGuaranteed || c.Status != domain.ClaimPending {
		t.Errorf("round-trip mismatch: %+v", c)
	}
}

func TestResolveClaim_OnlyOnce(t *testing.T) {
	db := newTestDB(t)
	if err := db.InsertClaim(testClaim("cl1")); err != nil {
		t.Fatalf("InsertClaim() error: %v", err)
	}

	inTx(t, db, func(tx *sql.Tx) error {
		return db.ResolveClaim(tx, "cl1", domain.ClaimApproved)
	})

	c, _ := db.GetClaim("cl1")
	if c.Status != domain.ClaimApproved {
		t.Errorf("Status = %s, want APPROVED", c.Status)
	}
	if c.ResolvedAt.IsZero() {
		t.Error("ResolvedAt not set")
	}

	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.ResolveClaim(tx, "cl1", domain.ClaimDenied)
	})
	if !errors.Is(err, domain.ErrClaimResolved) {
		t.Errorf("second resolve error = %v, want ErrClaimResolved", err)
	}
}

func TestResolveClaim_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.ResolveClaim(tx, "missing", domain.ClaimApproved)
	})
	if !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("error = %v, want ErrClaimNotFound", err)
	}
}
