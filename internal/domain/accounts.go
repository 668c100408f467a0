// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import "time"

// ─── Accounts ───────────────────────────────────────────────────────────────
// Every credit movement happens between two accounts. An account is a tagged
// union: a member within a circle, one of the circle's system accounts, or the
// external world (the only place credits are created or destroyed).

// AccountType tags one side of a transfer.
type AccountType string

const (
	AccountExternal AccountType = "external"
	AccountMember   AccountType = "member"
	AccountTreasury AccountType = "treasury"
	// AccountReserved is the treasury's escrow bucket: credits locked for a
	// booking, owed but not yet spendable by anyone.
	AccountReserved AccountType = "treasury_reserved"
	AccountPool     AccountType = "insurance_pool"
)

// Account identifies one side of a transfer within a circle.
// UserID is set only when Type == AccountMember.
type Account struct {
	Type   AccountType `json:"type"`
	UserID string      `json:"user_id,omitempty"`
}

// External is the outside world — the source for deposits.
func External() Account { return Account{Type: AccountExternal} }

// Member addresses a member's balance within the circle.
func Member(userID string) Account { return Account{Type: AccountMember, UserID: userID} }

// Treasury addresses the circle's spendable treasury balance.
func Treasury() Account { return Account{Type: AccountTreasury} }

// Reserved addresses the treasury's escrow-locked bucket.
func Reserved() Account { return Account{Type: AccountReserved} }

// Pool addresses the circle's insurance pool.
func Pool() Account { return Account{Type: AccountPool} }

// ─── Projections ────────────────────────────────────────────────────────────
// Denormalized balances kept in lock-step with the transfer log. They exist
// for fast reads only; each must equal a replay of the log at all times.

// MemberRole is a membership's role within a circle.
type MemberRole string

const (
	RoleMember MemberRole = "MEMBER"
	RoleAdmin  MemberRole = "ADMIN"
)

// Membership is a user's participation record and balance within one circle.
// Created lazily (role MEMBER) the first time any operation touches the user.
type Membership struct {
	CircleID       string     `json:"circle_id"`
	UserID         string     `json:"user_id"`
	Role           MemberRole `json:"role"`
	BalanceCredits int64      `json:"balance_credits"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TreasuryState is a circle's pooled account, lazily created.
// BalanceCredits and ReservedCredits never go negative.
type TreasuryState struct {
	CircleID         string    `json:"circle_id"`
	BalanceCredits   int64     `json:"balance_credits"`
	ReservedCredits  int64     `json:"reserved_credits"`
	TotalFunded      int64     `json:"total_funded"`
	TotalDistributed int64     `json:"total_distributed"`
	TotalMatched     int64     `json:"total_matched"`
	MatchRatio       float64   `json:"match_ratio"`
	// MaxMatchPerBooking caps a single booking's match; 0 means uncapped.
	MaxMatchPerBooking int64 `json:"max_match_per_booking"`
	MatchingActive     bool  `json:"matching_active"`
	AllowanceActive    bool  `json:"allowance_active"`
	AllowancePerMember int64 `json:"allowance_per_member"`
	MonthlyAllowance   int64 `json:"monthly_allowance_total"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// InsurancePool is a circle's claim-payout fund. Balance never goes negative.
type InsurancePool struct {
	CircleID       string    `json:"circle_id"`
	BalanceCredits int64     `json:"balance_credits"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Loan tracks treasury credit extended to a member.
// Remaining decreases with repayments and never goes negative.
type Loan struct {
	ID         string    `json:"id"`
	CircleID   string    `json:"circle_id"`
	BorrowerID string    `json:"borrower_id"`
	Principal  int64     `json:"principal"`
	Remaining  int64     `json:"remaining"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ─── Bookings & Claims ──────────────────────────────────────────────────────
// Bookings own their own lifecycle; the ledger core only sees their IDs on
// escrow transfers. Completion and claim resolution are the events that drive
// escrow release, fees, matching, and pool payouts.

// BookingStatus is a booking's lifecycle state.
type BookingStatus string

const (
	BookingOpen       BookingStatus = "OPEN"
	BookingBooked     BookingStatus = "BOOKED"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// Booking is a request for help with credits escrowed against it.
type Booking struct {
	ID           string        `json:"id"`
	CircleID     string        `json:"circle_id"`
	RequesterID  string        `json:"requester_id"`
	ProviderID   string        `json:"provider_id,omitempty"`
	Credits      int64         `json:"credits"`
	Status       BookingStatus `json:"status"`
	Category     string        `json:"category,omitempty"`
	StartAt      time.Time     `json:"start_at"`
	Urgent       bool          `json:"urgent,omitempty"`
	Guaranteed   bool          `json:"guaranteed,omitempty"`
	CrossCircle  bool          `json:"cross_circle,omitempty"`
	Equipment    bool          `json:"equipment,omitempty"`
	Requirements string        `json:"requirements,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ClaimType selects how an approved claim is paid.
type ClaimType string

const (
	// ClaimGuaranteed pays the claimant from the insurance pool.
	ClaimGuaranteed ClaimType = "GUARANTEED"
	// ClaimEscrow releases the booking's escrowed credits to the claimant.
	ClaimEscrow ClaimType = "ESCROW"
)

// ClaimStatus is a claim's lifecycle state.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "PENDING"
	ClaimApproved ClaimStatus = "APPROVED"
	ClaimDenied   ClaimStatus = "DENIED"
)

// Claim is a guaranteed-booking protection claim against a booking.
type Claim struct {
	ID         string      `json:"id"`
	CircleID   string      `json:"circle_id"`
	BookingID  string      `json:"booking_id"`
	ClaimantID string      `json:"claimant_id"`
	Amount     int64       `json:"amount"`
	// BonusCredits is an optional goodwill top-up paid from the insurance pool on approval.
	BonusCredits int64       `json:"bonus_credits,omitempty"`
	Type         ClaimType   `json:"type"`
	Status       ClaimStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	ResolvedAt   time.Time   `json:"resolved_at,omitempty"`
}
