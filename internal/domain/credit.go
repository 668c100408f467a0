package domain

import "time"

// ─── Credit Transfers ───────────────────────────────────────────────────────
// The transfer log is the source of truth. One immutable row per logical
// operation, with a tagged source and sink account. The classic double-entry
// debit/credit legs are a pure projection of a transfer (see Legs), never
// stored independently — so one leg can never exist without the other.

// TransferKind is the business reason for a credit movement.
type TransferKind string

const (
	KindDeposit          TransferKind = "DEPOSIT"
	KindTreasuryDeposit  TransferKind = "TREASURY_DEPOSIT"
	KindEarn             TransferKind = "EARN"
	KindSpend            TransferKind = "SPEND"
	KindFee              TransferKind = "FEE"
	KindEscrowLock       TransferKind = "ESCROW_LOCK"
	KindEscrowRelease    TransferKind = "ESCROW_RELEASE"
	KindEscrowRefund     TransferKind = "ESCROW_REFUND"
	KindPoolFund         TransferKind = "POOL_FUND"
	KindPoolPayout       TransferKind = "POOL_PAYOUT"
	KindLoanIssue        TransferKind = "LOAN_ISSUE"
	KindLoanRepay        TransferKind = "LOAN_REPAY"
	KindInsurancePremium TransferKind = "INSURANCE_PREMIUM"
	KindInsurancePayout  TransferKind = "INSURANCE_PAYOUT"
	KindTreasuryMatch    TransferKind = "TREASURY_MATCH"
)

// Transfer is one logical credit movement between two accounts in a circle.
// Amount is always a positive integer number of credits.
type Transfer struct {
	ID        string       `json:"id"`
	CircleID  string       `json:"circle_id"`
	Kind      TransferKind `json:"kind"`
	Amount    int64        `json:"amount"`
	Source    Account      `json:"source"`
	Sink      Account      `json:"sink"`
	BookingID string       `json:"booking_id,omitempty"`
	LoanID    string       `json:"loan_id,omitempty"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// EntryType is the accounting side of a projected ledger entry.
type EntryType string

const (
	EntryDebit      EntryType = "DEBIT"
	EntryCredit     EntryType = "CREDIT"
	EntryFee        EntryType = "FEE"
	EntryAdjustment EntryType = "ADJUSTMENT"
)

// LedgerEntry is one leg of a transfer, in classic double-entry form.
// FromUserID is set on the debit leg, ToUserID on the credit leg; both are
// empty when the account on that side is a system account or external.
type LedgerEntry struct {
	ID           string       `json:"id"`
	TransferID   string       `json:"transfer_id"`
	CircleID     string       `json:"circle_id"`
	Type         EntryType    `json:"type"`
	Kind         TransferKind `json:"kind"`
	Amount       int64        `json:"amount"`
	FromUserID   string       `json:"from_user_id,omitempty"`
	ToUserID     string       `json:"to_user_id,omitempty"`
	Counterparty AccountType  `json:"counterparty"`
	BookingID    string       `json:"booking_id,omitempty"`
	LoanID       string       `json:"loan_id,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Legs projects a transfer into its paired debit and credit entries.
// Fee transfers keep the FEE tag on the debit leg for reporting.
func (t Transfer) Legs() (debit, credit LedgerEntry) {
	debitType := EntryDebit
	if t.Kind == KindFee {
		debitType = EntryFee
	}
	debit = LedgerEntry{
		ID:           t.ID + ":d",
		TransferID:   t.ID,
		CircleID:     t.CircleID,
		Type:         debitType,
		Kind:         t.Kind,
		Amount:       t.Amount,
		FromUserID:   t.Source.UserID,
		Counterparty: t.Sink.Type,
		BookingID:    t.BookingID,
		LoanID:       t.LoanID,
		Timestamp:    t.CreatedAt,
	}
	credit = LedgerEntry{
		ID:           t.ID + ":c",
		TransferID:   t.ID,
		CircleID:     t.CircleID,
		Type:         EntryCredit,
		Kind:         t.Kind,
		Amount:       t.Amount,
		ToUserID:     t.Sink.UserID,
		Counterparty: t.Source.Type,
		BookingID:    t.BookingID,
		LoanID:       t.LoanID,
		Timestamp:    t.CreatedAt,
	}
	return debit, credit
}
