// Package booking glues the booking lifecycle to the ledger: escrow on
// creation, release plus fees and matching on completion, refund on
// cancellation, and claim resolution.
//
// The booking row and its escrow commit in one transaction — a failed escrow
// never leaves a dangling booking. Matching failure is non-fatal to the
// completion that triggered it.
package booking

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/favorbank/favorbank/internal/app/fees"
	"github.com/favorbank/favorbank/internal/app/ledger"
	"github.com/favorbank/favorbank/internal/app/matching"
	"github.com/favorbank/favorbank/internal/domain"
	"github.com/favorbank/favorbank/internal/infra/sqlite"
)

// Service coordinates bookings, claims, escrow, fees, and matching.
type Service struct {
	db       *sqlite.DB
	ledger   *ledger.Service
	matching *matching.Engine
	// feeLocation is the wall-clock timezone for peak/weekend detection.
	feeLocation *time.Location
}

// New creates the booking service. loc may be nil for UTC.
func New(db *sqlite.DB, l *ledger.Service, m *matching.Engine, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, ledger: l, matching: m, feeLocation: loc}
}

// ─── Creation ───────────────────────────────────────────────────────────────

// CreateParams describes a new booking request.
type CreateParams struct {
	CircleID     string
	RequesterID  string
	Credits      int64
	Category     string
	StartAt      time.Time
	Urgent       bool
	Guaranteed   bool
	CrossCircle  bool
	Equipment    bool
	Requirements string
	// PlusMember with a purchase/exchange transaction type waives the
	// platform fee line item.
	PlusMember      bool
	TransactionType string
}

// CreateResult is a created booking with its fee breakdown.
type CreateResult struct {
	Booking domain.Booking   `json:"booking"`
	Fees    fees.Calculation `json:"fees"`
}

// feeContext builds the fee engine context for a booking.
func (s *Service) feeContext(b domain.Booking, txType string) fees.Context {
	return fees.Context{
		StartAt:         b.StartAt,
		Location:        s.feeLocation,
		Category:        b.Category,
		TransactionType: txType,
		Requirements:    b.Requirements,
		Urgent:          b.Urgent,
		Equipment:       b.Equipment,
		CrossCircle:     b.CrossCircle,
		Guaranteed:      b.Guaranteed,
	}
}

// Quote computes the fee breakdown for a prospective booking without
// touching storage.
func (s *Service) Quote(p CreateParams) fees.Calculation {
	b := bookingFromParams(p)
	calc := fees.Calculate(p.Credits, s.feeContext(b, p.TransactionType))
	if p.PlusMember && (p.TransactionType == "purchase" || p.TransactionType == "exchange") {
		calc = fees.WaivePlatformFee(calc)
	}
	return calc
}

func bookingFromParams(p CreateParams) domain.Booking {
	return domain.Booking{
		ID:           uuid.NewString(),
		CircleID:     p.CircleID,
		RequesterID:  p.RequesterID,
		Credits:      p.Credits,
		Status:       domain.BookingOpen,
		Category:     p.Category,
		StartAt:      p.StartAt,
		Urgent:       p.Urgent,
		Guaranteed:   p.Guaranteed,
		CrossCircle:  p.CrossCircle,
		Equipment:    p.Equipment,
		Requirements: p.Requirements,
	}
}

// Create persists a booking, escrows the offered credits, and records the
// fee transfer, all in one transaction. The requester must cover the final
// amount (credits plus surcharges) or nothing happens at all.
func (s *Service) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if p.Credits <= 0 {
		return nil, fmt.Errorf("booking credits: %w", domain.ErrInvalidAmount)
	}
	b := bookingFromParams(p)
	calc := s.Quote(p)

	var moved []domain.Transfer
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		moved = moved[:0]
		if err := s.db.InsertBooking(tx, b); err != nil {
			return err
		}
		lock, err := s.ledger.EscrowLockTx(tx, b.CircleID, b.RequesterID, b.Credits, b.ID)
		if err != nil {
			return err
		}
		moved = append(moved, lock)
		if calc.TotalSurcharge > 0 {
			fee, err := s.ledger.ApplyFeeTx(tx, b.CircleID, b.RequesterID, calc.TotalSurcharge, b.ID, "booking surcharges")
			if err != nil {
				return err
			}
			moved = append(moved, fee)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ledger.RecordCommitted(moved...)
	return &CreateResult{Booking: b, Fees: calc}, nil
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Accept assigns a provider and moves the booking to BOOKED.
func (s *Service) Accept(ctx context.Context, bookingID, providerID string) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.db.TransitionBooking(tx, bookingID, []domain.BookingStatus{domain.BookingOpen}, domain.BookingBooked); err != nil {
			return err
		}
		return s.db.SetBookingProvider(tx, bookingID, providerID)
	})
}

// Start moves a booked booking to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, bookingID string) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		return s.db.TransitionBooking(tx, bookingID, []domain.BookingStatus{domain.BookingBooked}, domain.BookingInProgress)
	})
}

// CompletionResult reports what a completion moved.
type CompletionResult struct {
	Booking  domain.Booking  `json:"booking"`
	Released int64           `json:"released"`
	Match    matching.Result `json:"match"`
}

// Complete releases the booking's escrow to the provider and then applies
// treasury matching. The primary transaction never fails because of
// matching; a matching error is logged and reported as unmatched.
func (s *Service) Complete(ctx context.Context, bookingID string) (*CompletionResult, error) {
	// The booking row is read inside the transaction so the provider that
	// gets paid is the one visible at commit, not a stale pre-transaction
	// snapshot racing a concurrent Accept.
	var b *domain.Booking
	var release domain.Transfer
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		b, err = s.db.GetBookingTx(tx, bookingID)
		if err != nil {
			return err
		}
		if b.ProviderID == "" {
			return fmt.Errorf("booking %s has no provider: %w", bookingID, domain.ErrBookingNotOpen)
		}
		if err := s.db.TransitionBooking(tx, bookingID,
			[]domain.BookingStatus{domain.BookingBooked, domain.BookingInProgress}, domain.BookingCompleted); err != nil {
			return err
		}
		release, err = s.ledger.EscrowReleaseTx(tx, b.CircleID, b.ProviderID, b.Credits, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	ledger.RecordCommitted(release)
	b.Status = domain.BookingCompleted

	match, err := s.matching.ApplyMatch(ctx, b.CircleID, b.ID, b.ProviderID, b.Credits)
	if err != nil {
		log.Printf("[booking] matching failed for booking %s: %v", b.ID, err)
		match = matching.Result{Reason: "matching error: " + err.Error()}
	}

	return &CompletionResult{Booking: *b, Released: b.Credits, Match: match}, nil
}

// Cancel refunds the escrowed credits to the requester and moves the
// booking to CANCELLED. Surcharges already collected are not refunded.
func (s *Service) Cancel(ctx context.Context, bookingID string) error {
	b, err := s.db.GetBooking(bookingID)
	if err != nil {
		return err
	}
	var refund domain.Transfer
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.db.TransitionBooking(tx, bookingID,
			[]domain.BookingStatus{domain.BookingOpen, domain.BookingBooked, domain.BookingInProgress}, domain.BookingCancelled); err != nil {
			return err
		}
		refund, err = s.ledger.EscrowRefundTx(tx, b.CircleID, b.RequesterID, b.Credits, b.ID)
		return err
	})
	if err != nil {
		return err
	}
	ledger.RecordCommitted(refund)
	return nil
}

// ─── Claims ─────────────────────────────────────────────────────────────────

// FileClaim records a guaranteed-booking protection claim against a booking.
func (s *Service) FileClaim(ctx context.Context, circleID, bookingID, claimantID string, amount, bonus int64, claimType domain.ClaimType) (*domain.Claim, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("claim amount: %w", domain.ErrInvalidAmount)
	}
	if _, err := s.db.GetBooking(bookingID); err != nil {
		return nil, err
	}
	c := domain.Claim{
		ID:           uuid.NewString(),
		CircleID:     circleID,
		BookingID:    bookingID,
		ClaimantID:   claimantID,
		Amount:       amount,
		BonusCredits: bonus,
		Type:         claimType,
		Status:       domain.ClaimPending,
	}
	if err := s.db.InsertClaim(c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ResolveClaim approves or denies a pending claim. Approval pays the
// claimant from the insurance pool (guaranteed claims) or releases the
// booking's escrow (escrow claims), atomically with the status change. The
// optional bonus top-up is paid from the pool afterwards, best-effort.
func (s *Service) ResolveClaim(ctx context.Context, claimID string, approve bool) (*domain.Claim, error) {
	c, err := s.db.GetClaim(claimID)
	if err != nil {
		return nil, err
	}

	if !approve {
		err := s.db.InTx(ctx, func(tx *sql.Tx) error {
			return s.db.ResolveClaim(tx, claimID, domain.ClaimDenied)
		})
		if err != nil {
			return nil, err
		}
		c.Status = domain.ClaimDenied
		return c, nil
	}

	var payout domain.Transfer
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.db.ResolveClaim(tx, claimID, domain.ClaimApproved); err != nil {
			return err
		}
		switch c.Type {
		case domain.ClaimEscrow:
			payout, err = s.ledger.EscrowReleaseTx(tx, c.CircleID, c.ClaimantID, c.Amount, c.BookingID)
			return err
		default:
			payout, err = s.ledger.PoolPayoutTx(tx, c.CircleID, c.ClaimantID, c.Amount, c.BookingID)
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	ledger.RecordCommitted(payout)
	c.Status = domain.ClaimApproved

	if c.BonusCredits > 0 {
		if _, err := s.ledger.InsurancePayout(ctx, c.CircleID, c.ClaimantID, c.BonusCredits, c.BookingID); err != nil {
			log.Printf("[booking] claim %s bonus payout failed: %v", c.ID, err)
		}
	}
	return c, nil
}
