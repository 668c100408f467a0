// Package ledger implements the credit operation library.
// Architecture: every operation is one atomic transaction that appends a
// single transfer row and applies all balance-projection deltas together —
// both or neither. Balances stay a pure function of the transfer log and can
// be rebuilt from scratch by replay (see audit.go).
//
// Credits are conserved: only DEPOSIT and TREASURY_DEPOSIT inject credits
// from outside the system, and no operation destroys them.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/favorbank/favorbank/internal/domain"
	"github.com/favorbank/favorbank/internal/infra/observability"
	"github.com/favorbank/favorbank/internal/infra/sqlite"
)

// Service is the operation library over the sqlite store.
// All mutation of balances goes through here — no other code path writes
// membership, treasury, pool, or loan balances.
type Service struct {
	db *sqlite.DB
}

// New creates the ledger service.
func New(db *sqlite.DB) *Service {
	return &Service{db: db}
}

// DB exposes the underlying store so collaborating flows (bookings, claims,
// matching) can compose ledger writes with their own rows in one transaction.
func (s *Service) DB() *sqlite.DB { return s.db }

// newTransfer stamps a transfer with a fresh id and timestamp.
func newTransfer(circleID string, kind domain.TransferKind, amount int64, source, sink domain.Account) domain.Transfer {
	return domain.Transfer{
		ID:        uuid.NewString(),
		CircleID:  circleID,
		Kind:      kind,
		Amount:    amount,
		Source:    source,
		Sink:      sink,
		CreatedAt: time.Now().UTC(),
	}
}

func validAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%d credits: %w", amount, domain.ErrInvalidAmount)
	}
	return nil
}

// run wraps a tx-scoped operation in its own transaction and records metrics.
func (s *Service) run(ctx context.Context, kind domain.TransferKind, fn func(tx *sql.Tx) (domain.Transfer, error)) (domain.Transfer, error) {
	var out domain.Transfer
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	if err != nil {
		observability.RecordRejection(err)
		return domain.Transfer{}, err
	}
	observability.RecordTransfer(string(kind), out.Amount)
	return out, nil
}

// RecordCommitted publishes transfer metrics for Tx-variant operations. The
// Tx variants cannot see their enclosing transaction commit, so the caller
// that owns the transaction reports the transfers once it has committed.
func RecordCommitted(transfers ...domain.Transfer) {
	for _, t := range transfers {
		observability.RecordTransfer(string(t.Kind), t.Amount)
	}
}

// ─── External Injection ─────────────────────────────────────────────────────

// Deposit injects credits into a member's balance from outside the system.
// This is the only source-less credit creation for members.
func (s *Service) Deposit(ctx context.Context, circleID, userID string, amount int64) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindDeposit, func(tx *sql.Tx) (domain.Transfer, error) {
		t := newTransfer(circleID, domain.KindDeposit, amount, domain.External(), domain.Member(userID))
		if err := s.db.InsertTransfer(tx, t); err != nil {
			return t, err
		}
		return t, s.db.CreditMember(tx, circleID, userID, amount)
	})
}

// TreasuryDeposit injects credits into the circle treasury from outside the
// system, on confirmed external funding.
func (s *Service) TreasuryDeposit(ctx context.Context, circleID string, amount int64) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindTreasuryDeposit, func(tx *sql.Tx) (domain.Transfer, error) {
		t := newTransfer(circleID, domain.KindTreasuryDeposit, amount, domain.External(), domain.Treasury())
		if err := s.db.InsertTransfer(tx, t); err != nil {
			return t, err
		}
		if err := s.db.CreditTreasury(tx, circleID, amount); err != nil {
			return t, err
		}
		return t, s.db.AddTreasuryTotals(tx, circleID, amount, 0, 0)
	})
}

// ─── Member Transfers ───────────────────────────────────────────────────────

// Earn transfers credits directly between two members, settling a favor.
func (s *Service) Earn(ctx context.Context, circleID, fromUser, toUser string, amount int64, note string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	if fromUser == toUser {
		return domain.Transfer{}, fmt.Errorf("self-transfer: %w", domain.ErrInvalidAmount)
	}
	return s.run(ctx, domain.KindEarn, func(tx *sql.Tx) (domain.Transfer, error) {
		t := newTransfer(circleID, domain.KindEarn, amount, domain.Member(fromUser), domain.Member(toUser))
		t.Note = note
		if err := s.db.InsertTransfer(tx, t); err != nil {
			return t, err
		}
		if err := s.db.DebitMember(tx, circleID, fromUser, amount); err != nil {
			return t, err
		}
		return t, s.db.CreditMember(tx, circleID, toUser, amount)
	})
}

// Spend moves a member's credits into the circle treasury.
func (s *Service) Spend(ctx context.Context, circleID, userID string, amount int64, note string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindSpend, func(tx *sql.Tx) (domain.Transfer, error) {
		t := newTransfer(circleID, domain.KindSpend, amount, domain.Member(userID), domain.Treasury())
		t.Note = note
		if err := s.db.InsertTransfer(tx, t); err != nil {
			return t, err
		}
		if err := s.db.DebitMember(tx, circleID, userID, amount); err != nil {
			return t, err
		}
		return t, s.db.CreditTreasury(tx, circleID, amount)
	})
}

// ApplyFee is the same shape as Spend but tagged FEE for reporting.
// Always flows member → treasury.
func (s *Service) ApplyFee(ctx context.Context, circleID, userID string, amount int64, bookingID, note string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindFee, func(tx *sql.Tx) (domain.Transfer, error) {
		t, err := s.ApplyFeeTx(tx, circleID, userID, amount, bookingID, note)
		return t, err
	})
}

// ApplyFeeTx records a fee inside a caller-owned transaction.
func (s *Service) ApplyFeeTx(tx *sql.Tx, circleID, userID string, amount int64, bookingID, note string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	t := newTransfer(circleID, domain.KindFee, amount, domain.Member(userID), domain.Treasury())
	t.BookingID = bookingID
	t.Note = note
	if err := s.db.InsertTransfer(tx, t); err != nil {
		return t, err
	}
	if err := s.db.DebitMember(tx, circleID, userID, amount); err != nil {
		return t, err
	}
	return t, s.db.CreditTreasury(tx, circleID, amount)
}

// ─── Escrow ─────────────────────────────────────────────────────────────────
// Lock moves the requester's credits into the treasury's reserved bucket —
// in flight, not treasury-owned. Release pays the provider; refund returns
// them to the requester. Lock+release and lock+refund both net to zero
// change in the treasury's spendable balance.

// EscrowLock debits the requester and reserves the credits against a booking.
// The balance check happens inside the transaction; a racing spend fails
// here atomically with no partial mutation.
func (s *Service) EscrowLock(ctx context.Context, circleID, userID string, amount int64, bookingID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindEscrowLock, func(tx *sql.Tx) (domain.Transfer, error) {
		return s.EscrowLockTx(tx, circleID, userID, amount, bookingID)
	})
}

// EscrowLockTx locks escrow inside a caller-owned transaction.
func (s *Service) EscrowLockTx(tx *sql.Tx, circleID, userID string, amount int64, bookingID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	t := newTransfer(circleID, domain.KindEscrowLock, amount, domain.Member(userID), domain.Reserved())
	t.BookingID = bookingID
	if err := s.db.InsertTransfer(tx, t); err != nil {
		return t, err
	}
	if err := s.db.DebitMember(tx, circleID, userID, amount); err != nil {
		return t, err
	}
	return t, s.db.ReserveCredits(tx, circleID, amount)
}

// EscrowRelease moves locked credits out of the reserved bucket to the
// provider on booking completion.
func (s *Service) EscrowRelease(ctx context.Context, circleID, toUser string, amount int64, bookingID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindEscrowRelease, func(tx *sql.Tx) (domain.Transfer, error) {
		return s.EscrowReleaseTx(tx, circleID, toUser, amount, bookingID)
	})
}

// EscrowReleaseTx releases escrow inside a caller-owned transaction.
func (s *Service) EscrowReleaseTx(tx *sql.Tx, circleID, toUser string, amount int64, bookingID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	t := newTransfer(circleID, domain.KindEscrowRelease, amount, domain.Reserved(), domain.Member(toUser))
	t.BookingID = bookingID
	if err := s.db.InsertTransfer(tx, t); err != nil {
		return t, err
	}
	if err := s.db.ReleaseReserved(tx, circleID, amount); err != nil {
		return t, err
	}
	return t, s.db.CreditMember(tx, circleID, toUser, amount)
}

// EscrowRefundTx returns locked credits to the requester on cancellation,
// inside a caller-owned transaction.
func (s *Service) EscrowRefundTx(tx *sql.Tx, circleID, toUser string, amount int64, bookingID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	t := newTransfer(circleID, domain.KindEscrowRefund, amount, domain.Reserved(), domain.Member(toUser))
	t.BookingID = bookingID
	if err := s.db.InsertTransfer(tx, t); err != nil {
		return t, err
	}
	if err := s.db.ReleaseReserved(tx, circleID, amount); err != nil {
		return t, err
	}
	return t, s.db.CreditMember(tx, circleID, toUser, amount)
}

// ─── Insurance Pool ─────────────────────────────────────────────────────────

// GuaranteePoolFund moves credits from the treasury into the insurance pool.
func (s *Service) GuaranteePoolFund(ctx context.Context, circleID string, amount int64) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindPoolFund, func(tx *sql.Tx) (domain.Transfer, error) {
		t := newTransfer(circleID, domain.KindPoolFund, amount, domain.Treasury(), domain.Pool())
		if err := s.db.InsertTransfer(tx, t); err != nil {
			return t, err
		}
		if err := s.db.DebitTreasury(tx, circleID, amount); err != nil {
			return t, err
		}
		if err := s.db.CreditPool(tx, circleID, amount); err != nil {
			return t, err
		}
		return t, s.db.AddTreasuryTotals(tx, circleID, 0, amount, 0)
	})
}

// GuaranteePoolPayout pays a member from the insurance pool on claim approval.
func (s *Service) GuaranteePoolPayout(ctx context.Context, circleID, userID string, amount int64, bookingID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindPoolPayout, func(tx *sql.Tx) (domain.Transfer, error) {
		return s.poolPayoutTx(tx, circleID, userID, amount, bookingID, domain.KindPoolPayout)
	})
}

// PoolPayoutTx pays a member from the pool inside a caller-owned transaction.
func (s *Service) PoolPayoutTx(tx *sql.Tx, circleID, userID string, amount int64, bookingID string) (domain.Transfer, error) {
	return s.poolPayoutTx(tx, circleID, userID, amount, bookingID, domain.KindPoolPayout)
}

func (s *Service) poolPayoutTx(tx *sql.Tx, circleID, userID string, amount int64, bookingID string, kind domain.TransferKind) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	t := newTransfer(circleID, kind, amount, domain.Pool(), domain.Member(userID))
	t.BookingID = bookingID
	if err := s.db.InsertTransfer(tx, t); err != nil {
		return t, err
	}
	if err := s.db.DebitPool(tx, circleID, amount); err != nil {
		return t, err
	}
	return t, s.db.CreditMember(tx, circleID, userID, amount)
}

// InsurancePremium collects a member's premium into the insurance pool.
func (s *Service) InsurancePremium(ctx context.Context, circleID, userID string, amount int64) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindInsurancePremium, func(tx *sql.Tx) (domain.Transfer, error) {
		t := newTransfer(circleID, domain.KindInsurancePremium, amount, domain.Member(userID), domain.Pool())
		if err := s.db.InsertTransfer(tx, t); err != nil {
			return t, err
		}
		if err := s.db.DebitMember(tx, circleID, userID, amount); err != nil {
			return t, err
		}
		return t, s.db.CreditPool(tx, circleID, amount)
	})
}

// InsurancePayout is a pool payout with a distinguishing kind tag.
func (s *Service) InsurancePayout(ctx context.Context, circleID, userID string, amount int64, bookingID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	return s.run(ctx, domain.KindInsurancePayout, func(tx *sql.Tx) (domain.Transfer, error) {
		return s.poolPayoutTx(tx, circleID, userID, amount, bookingID, domain.KindInsurancePayout)
	})
}

// ─── Loans ──────────────────────────────────────────────────────────────────

// LoanIssue moves credits from the treasury to a borrower and creates or
// tops up the loan. Supply a loanID to augment an existing loan; leave it
// empty to create a new one. Returns the transfer and the loan id.
func (s *Service) LoanIssue(ctx context.Context, circleID, borrowerID string, amount int64, loanID string) (domain.Transfer, string, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, "", err
	}
	if loanID == "" {
		loanID = uuid.NewString()
	}
	t, err := s.run(ctx, domain.KindLoanIssue, func(tx *sql.Tx) (domain.Transfer, error) {
		t := newTransfer(circleID, domain.KindLoanIssue, amount, domain.Treasury(), domain.Member(borrowerID))
		t.LoanID = loanID
		if err := s.db.InsertTransfer(tx, t); err != nil {
			return t, err
		}
		if err := s.db.DebitTreasury(tx, circleID, amount); err != nil {
			return t, err
		}
		if err := s.db.CreditMember(tx, circleID, borrowerID, amount); err != nil {
			return t, err
		}
		if err := s.db.UpsertLoanIssue(tx, loanID, circleID, borrowerID, amount); err != nil {
			return t, err
		}
		return t, s.db.AddTreasuryTotals(tx, circleID, 0, amount, 0)
	})
	return t, loanID, err
}

// LoanRepay moves credits from the borrower back to the treasury and reduces
// the loan's remaining balance. Repaying more than remains is rejected.
func (s *Service) LoanRepay(ctx context.Context, circleID, borrowerID string, amount int64, loanID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	if loanID == "" {
		return domain.Transfer{}, fmt.Errorf("loan id required: %w", domain.ErrLoanNotFound)
	}
	return s.run(ctx, domain.KindLoanRepay, func(tx *sql.Tx) (domain.Transfer, error) {
		t := newTransfer(circleID, domain.KindLoanRepay, amount, domain.Member(borrowerID), domain.Treasury())
		t.LoanID = loanID
		if err := s.db.InsertTransfer(tx, t); err != nil {
			return t, err
		}
		if err := s.db.RepayLoan(tx, loanID, circleID, borrowerID, amount); err != nil {
			return t, err
		}
		if err := s.db.DebitMember(tx, circleID, borrowerID, amount); err != nil {
			return t, err
		}
		return t, s.db.CreditTreasury(tx, circleID, amount)
	})
}

// ─── Treasury Match ─────────────────────────────────────────────────────────

// TreasuryMatchTx records a treasury-funded match for a provider inside a
// caller-owned transaction. Same paired-transfer shape as every other
// operation, so conservation stays machine-checkable without special cases.
func (s *Service) TreasuryMatchTx(tx *sql.Tx, circleID, providerID string, amount int64, bookingID string) (domain.Transfer, error) {
	if err := validAmount(amount); err != nil {
		return domain.Transfer{}, err
	}
	t := newTransfer(circleID, domain.KindTreasuryMatch, amount, domain.Treasury(), domain.Member(providerID))
	t.BookingID = bookingID
	if err := s.db.InsertTransfer(tx, t); err != nil {
		return t, err
	}
	if err := s.db.DebitTreasury(tx, circleID, amount); err != nil {
		return t, err
	}
	if err := s.db.CreditMember(tx, circleID, providerID, amount); err != nil {
		return t, err
	}
	return t, s.db.AddTreasuryTotals(tx, circleID, 0, 0, amount)
}
