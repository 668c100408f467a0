package domain

import (
	"testing"
	"time"
)

// ─── Account Tests ──────────────────────────────────────────────────────────

func TestAccountConstructors(t *testing.T) {
	tests := []struct {
		name     string
		account  Account
		wantType AccountType
		wantUser string
	}{
		{"external", External(), AccountExternal, ""},
		{"member", Member("alice"), AccountMember, "alice"},
		{"treasury", Treasury(), AccountTreasury, ""},
		{"reserved", Reserved(), AccountReserved, ""},
		{"pool", Pool(), AccountPool, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.account.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.account.Type, tt.wantType)
			}
			if tt.account.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", tt.account.UserID, tt.wantUser)
			}
		})
	}
}

// ─── Legs Projection Tests ──────────────────────────────────────────────────

func TestTransfer_Legs(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := Transfer{
		ID:        "t1",
		CircleID:  "c1",
		Kind:      KindEarn,
		Amount:    30,
		Source:    Member("alice"),
		Sink:      Member("bob"),
		BookingID: "b1",
		CreatedAt: now,
	}

	debit, credit := tr.Legs()

	if debit.ID != "t1:d" || credit.ID != "t1:c" {
		t.Errorf("leg IDs = %q, %q, want t1:d, t1:c", debit.ID, credit.ID)
	}
	if debit.Type != EntryDebit {
		t.Errorf("debit.Type = %q, want %q", debit.Type, EntryDebit)
	}
	if credit.Type != EntryCredit {
		t.Errorf("credit.Type = %q, want %q", credit.Type, EntryCredit)
	}
	if debit.Amount != credit.Amount || debit.Amount != 30 {
		t.Errorf("leg amounts = %d, %d, want both 30", debit.Amount, credit.Amount)
	}
	if debit.FromUserID != "alice" {
		t.Errorf("debit.FromUserID = %q, want alice", debit.FromUserID)
	}
	if credit.ToUserID != "bob" {
		t.Errorf("credit.ToUserID = %q, want bob", credit.ToUserID)
	}
	if debit.Counterparty != AccountMember || credit.Counterparty != AccountMember {
		t.Errorf("counterparties = %q, %q, want member", debit.Counterparty, credit.Counterparty)
	}
	if debit.BookingID != "b1" || credit.BookingID != "b1" {
		t.Errorf("booking IDs = %q, %q, want b1", debit.BookingID, credit.BookingID)
	}
	if !debit.Timestamp.Equal(now) || !credit.Timestamp.Equal(now) {
		t.Error("leg timestamps should equal the transfer timestamp")
	}
}

func TestTransfer_Legs_FeeDebit(t *testing.T) {
	tr := Transfer{ID: "t2", Kind: KindFee, Amount: 5, Source: Member("alice"), Sink: Treasury()}
	debit, credit := tr.Legs()
	if debit.Type != EntryFee {
		t.Errorf("fee debit.Type = %q, want %q", debit.Type, EntryFee)
	}
	if credit.Type != EntryCredit {
		t.Errorf("fee credit.Type = %q, want %q", credit.Type, EntryCredit)
	}
	if credit.Counterparty != AccountMember {
		t.Errorf("credit.Counterparty = %q, want member", credit.Counterparty)
	}
}

func TestTransfer_Legs_SystemAccounts(t *testing.T) {
	tr := Transfer{ID: "t3", Kind: KindPoolFund, Amount: 10, Source: Treasury(), Sink: Pool()}
	debit, credit := tr.Legs()
	if debit.FromUserID != "" || credit.ToUserID != "" {
		t.Errorf("system-account legs should carry no user IDs, got %q and %q",
			debit.FromUserID, credit.ToUserID)
	}
	if debit.Counterparty != AccountPool {
		t.Errorf("debit.Counterparty = %q, want insurance_pool", debit.Counterparty)
	}
	if credit.Counterparty != AccountTreasury {
		t.Errorf("credit.Counterparty = %q, want treasury", credit.Counterparty)
	}
}
