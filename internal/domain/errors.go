package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Every ledger
// operation either completes fully or fails with one of these; there is no
// partially-applied state for a caller to observe.

var (
	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient credit balance")
	ErrInvalidAmount       = errors.New("amount must be a positive number of credits")
	ErrNotFound            = errors.New("record not found")
	// ErrConflict means the underlying store detected a conflicting
	// concurrent write; the whole operation can be retried.
	ErrConflict = errors.New("transaction conflict, retry the operation")

	// Loan errors
	ErrLoanNotFound    = errors.New("loan not found")
	ErrLoanOverpayment = errors.New("repayment exceeds remaining loan balance")

	// Booking errors
	ErrBookingNotFound  = errors.New("booking not found")
	ErrBookingNotOpen   = errors.New("booking is not open")
	ErrBookingFinalized = errors.New("booking already completed or cancelled")

	// Claim errors
	ErrClaimNotFound = errors.New("claim not found")
	ErrClaimResolved = errors.New("claim already resolved")
)
