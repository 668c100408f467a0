package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/favorbank/favorbank/internal/domain"
)

// newTestDB opens a fresh in-memory database with migrations applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// inTx runs fn in a transaction and fails the test on error.
func inTx(t *testing.T, db *DB, fn func(tx *sql.Tx) error) {
	t.Helper()
	if err := db.InTx(context.Background(), fn); err != nil {
		t.Fatalf("InTx() error: %v", err)
	}
}

// ─── Membership Balances ────────────────────────────────────────────────────

func TestCreditMember_LazyMembership(t *testing.T) {
	db := newTestDB(t)

	inTx(t, db, func(tx *sql.Tx) error {
		return db.CreditMember(tx, "c1", "alice", 50)
	})

	m, err := db.GetMembership("c1", "alice")
	if err != nil {
		t.Fatalf("GetMembership() error: %v", err)
	}
	if m.BalanceCredits != 50 {
		t.Errorf("BalanceCredits = %d, want 50", m.BalanceCredits)
	}
	if m.Role != domain.RoleMember {
		t.Errorf("Role = %q, want MEMBER", m.Role)
	}
}

func TestDebitMember_Insufficient(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.CreditMember(tx, "c1", "alice", 10)
	})

	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.DebitMember(tx, "c1", "alice", 11)
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("error = %v, want ErrInsufficientBalance", err)
	}

	// Balance untouched.
	m, _ := db.GetMembership("c1", "alice")
	if m.BalanceCredits != 10 {
		t.Errorf("BalanceCredits = %d, want 10", m.BalanceCredits)
	}
}

func TestDebitMember_ExactBalance(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		if err := db.CreditMember(tx, "c1", "alice", 10); err != nil {
			return err
		}
		return db.DebitMember(tx, "c1", "alice", 10)
	})

	m, _ := db.GetMembership("c1", "alice")
	if m.BalanceCredits != 0 {
		t.Errorf("BalanceCredits = %d, want 0", m.BalanceCredits)
	}
}

func TestGetMembership_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetMembership("c1", "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// ─── Treasury ───────────────────────────────────────────────────────────────

func TestTreasury_GuardedDebit(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.CreditTreasury(tx, "c1", 100)
	})

	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.DebitTreasury(tx, "c1", 101)
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("error = %v, want ErrInsufficientBalance", err)
	}

	inTx(t, db, func(tx *sql.Tx) error {
		return db.DebitTreasury(tx, "c1", 100)
	})
	ts, err := db.GetTreasury("c1")
	if err != nil {
		t.Fatalf("GetTreasury() error: %v", err)
	}
	if ts.BalanceCredits != 0 {
		t.Errorf("BalanceCredits = %d, want 0", ts.BalanceCredits)
	}
}

func TestReserved_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.ReserveCredits(tx, "c1", 40)
	})
	inTx(t, db, func(tx *sql.Tx) error {
		return db.ReleaseReserved(tx, "c1", 40)
	})

	ts, _ := db.GetTreasury("c1")
	if ts.ReservedCredits != 0 {
		t.Errorf("ReservedCredits = %d, want 0", ts.ReservedCredits)
	}

	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.ReleaseReserved(tx, "c1", 1)
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("over-release error = %v, want ErrInsufficientBalance", err)
	}
}

func TestAddTreasuryTotals(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.AddTreasuryTotals(tx, "c1", 100, 20, 5)
	})
	inTx(t, db, func(tx *sql.Tx) error {
		return db.AddTreasuryTotals(tx, "c1", 50, 0, 5)
	})

	ts, _ := db.GetTreasury("c1")
	if ts.TotalFunded != 150 || ts.TotalDistributed != 20 || ts.TotalMatched != 10 {
		t.Errorf("totals = %d/%d/%d, want 150/20/10",
			ts.TotalFunded, ts.TotalDistributed, ts.TotalMatched)
	}
}

func TestSetTreasuryPolicy_Upsert(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetTreasuryPolicy("c1", 0.5, 25, true, false, 0, 0); err != nil {
		t.Fatalf("SetTreasuryPolicy() error: %v", err)
	}
	ts, err := db.GetTreasury("c1")
	if err != nil {
		t.Fatalf("GetTreasury() error: %v", err)
	}
	if ts.MatchRatio != 0.5 || ts.MaxMatchPerBooking != 25 || !ts.MatchingActive {
		t.Errorf("policy = %v/%d/%v, want 0.5/25/true",
			ts.MatchRatio, ts.MaxMatchPerBooking, ts.MatchingActive)
	}

	// Policy update must not clobber balances.
	inTx(t, db, func(tx *sql.Tx) error {
		return db.CreditTreasury(tx, "c1", 100)
	})
	if err := db.SetTreasuryPolicy("c1", 1.0, 0, true, true, 10, 500); err != nil {
		t.Fatalf("SetTreasuryPolicy() update error: %v", err)
	}
	ts, _ = db.GetTreasury("c1")
	if ts.BalanceCredits != 100 {
		t.Errorf("BalanceCredits = %d, want 100 after policy update", ts.BalanceCredits)
	}
	if ts.MatchRatio != 1.0 || !ts.AllowanceActive || ts.AllowancePerMember != 10 {
		t.Errorf("updated policy not applied: %+v", ts)
	}
}

// ─── Insurance Pool ─────────────────────────────────────────────────────────

func TestPool_GuardedDebit(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.CreditPool(tx, "c1", 30)
	})

	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.DebitPool(tx, "c1", 31)
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("error = %v, want ErrInsufficientBalance", err)
	}

	p, err := db.GetPool("c1")
	if err != nil {
		t.Fatalf("GetPool() error: %v", err)
	}
	if p.BalanceCredits != 30 {
		t.Errorf("BalanceCredits = %d, want 30", p.BalanceCredits)
	}
}

// ─── Loans ──────────────────────────────────────────────────────────────────

func TestLoan_UpsertTopUp(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.UpsertLoanIssue(tx, "l1", "c1", "bob", 50)
	})
	inTx(t, db, func(tx *sql.Tx) error {
		return db.UpsertLoanIssue(tx, "l1", "c1", "bob", 20)
	})

	l, err := db.GetLoan("l1")
	if err != nil {
		t.Fatalf("GetLoan() error: %v", err)
	}
	if l.Principal != 70 || l.Remaining != 70 {
		t.Errorf("loan = %d/%d, want 70/70", l.Principal, l.Remaining)
	}
}

func TestRepayLoan_Overpayment(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.UpsertLoanIssue(tx, "l1", "c1", "bob", 50)
	})

	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.RepayLoan(tx, "l1", "c1", "bob", 60)
	})
	if !errors.Is(err, domain.ErrLoanOverpayment) {
		t.Errorf("error = %v, want ErrLoanOverpayment", err)
	}

	inTx(t, db, func(tx *sql.Tx) error {
		return db.RepayLoan(tx, "l1", "c1", "bob", 50)
	})
	l, _ := db.GetLoan("l1")
	if l.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", l.Remaining)
	}
}

func TestRepayLoan_NotFound(t *testing.T) {
	db := newTestDB(t)
	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.RepayLoan(tx, "missing", "c1", "bob", 10)
	})
	if !errors.Is(err, domain.ErrLoanNotFound) {
		t.Errorf("error = %v, want ErrLoanNotFound", err)
	}
}

func TestRepayLoan_WrongBorrower(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.UpsertLoanIssue(tx, "l1", "c1", "bob", 50)
	})

	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.RepayLoan(tx, "l1", "c1", "eve", 10)
	})
	if !errors.Is(err, domain.ErrLoanNotFound) {
		t.Errorf("error = %v, want ErrLoanNotFound", err)
	}
	l, _ := db.GetLoan("l1")
	if l.Remaining != 50 {
		t.Errorf("Remaining = %d, want 50", l.Remaining)
	}
}

func TestUpsertLoanIssue_BoundToCircleAndBorrower(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		return db.UpsertLoanIssue(tx, "l1", "c1", "bob", 50)
	})

	// Reusing the loan id from another circle, or for another borrower,
	// must fail instead of growing bob's loan.
	cases := []struct {
		name     string
		circle   string
		borrower string
	}{
		{"other circle", "c2", "eve"},
		{"other borrower", "c1", "eve"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := db.InTx(context.Background(), func(tx *sql.Tx) error {
				return db.UpsertLoanIssue(tx, "l1", tc.circle, tc.borrower, 20)
			})
			if !errors.Is(err, domain.ErrLoanNotFound) {
				t.Errorf("error = %v, want ErrLoanNotFound", err)
			}
		})
	}

	l, err := db.GetLoan("l1")
	if err != nil {
		t.Fatalf("GetLoan() error: %v", err)
	}
	if l.Principal != 50 || l.Remaining != 50 {
		t.Errorf("loan = %d/%d, want 50/50", l.Principal, l.Remaining)
	}
}

// ─── Transfers and Replay ───────────────────────────────────────────────────

func testTransfer(id string, kind domain.TransferKind, amount int64, source, sink domain.Account) domain.Transfer {
	return domain.Transfer{
		ID:        id,
		CircleID:  "c1",
		Kind:      kind,
		Amount:    amount,
		Source:    source,
		Sink:      sink,
		CreatedAt: time.Now().UTC(),
	}
}

func TestListTransfers_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	inTx(t, db, func(tx *sql.Tx) error {
		for i, id := range []string{"t1", "t2", "t3"} {
			tr := testTransfer(id, domain.KindDeposit, 10, domain.External(), domain.Member("alice"))
			tr.CreatedAt = base.Add(time.Duration(i) * time.Second)
			if err := db.InsertTransfer(tx, tr); err != nil {
				return err
			}
		}
		return nil
	})

	got, err := db.ListTransfers("c1", 2, 0)
	if err != nil {
		t.Fatalf("ListTransfers() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "t3" || got[1].ID != "t2" {
		t.Errorf("order = %s, %s, want t3, t2", got[0].ID, got[1].ID)
	}
	if got[0].Kind != domain.KindDeposit || got[0].Sink.UserID != "alice" {
		t.Errorf("round-trip mismatch: %+v", got[0])
	}
}

func TestTransfersByBooking(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		lock := testTransfer("t1", domain.KindEscrowLock, 30, domain.Member("alice"), domain.Reserved())
		lock.BookingID = "b1"
		if err := db.InsertTransfer(tx, lock); err != nil {
			return err
		}
		other := testTransfer("t2", domain.KindDeposit, 10, domain.External(), domain.Member("bob"))
		return db.InsertTransfer(tx, other)
	})

	got, err := db.TransfersByBooking("b1")
	if err != nil {
		t.Fatalf("TransfersByBooking() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("got %d transfers, want exactly t1", len(got))
	}
}

func TestReplayBalances(t *testing.T) {
	db := newTestDB(t)
	inTx(t, db, func(tx *sql.Tx) error {
		transfers := []domain.Transfer{
			testTransfer("t1", domain.KindDeposit, 100, domain.External(), domain.Member("alice")),
			testTransfer("t2", domain.KindEarn, 30, domain.Member("alice"), domain.Member("bob")),
			testTransfer("t3", domain.KindSpend, 20, domain.Member("alice"), domain.Treasury()),
			testTransfer("t4", domain.KindEscrowLock, 10, domain.Member("bob"), domain.Reserved()),
			testTransfer("t5", domain.KindPoolFund, 5, domain.Treasury(), domain.Pool()),
		}
		loan := testTransfer("t6", domain.KindLoanIssue, 15, domain.Treasury(), domain.Member("bob"))
		loan.LoanID = "l1"
		transfers = append(transfers, loan)
		repay := testTransfer("t7", domain.KindLoanRepay, 4, domain.Member("bob"), domain.Treasury())
		repay.LoanID = "l1"
		transfers = append(transfers, repay)

		for _, tr := range transfers {
			if err := db.InsertTransfer(tx, tr); err != nil {
				return err
			}
		}
		return nil
	})

	snap, err := db.ReplayBalances("c1")
	if err != nil {
		t.Fatalf("ReplayBalances() error: %v", err)
	}
	if snap.Members["alice"] != 50 {
		t.Errorf("alice = %d, want 50", snap.Members["alice"])
	}
	if snap.Members["bob"] != 31 {
		t.Errorf("bob = %d, want 31", snap.Members["bob"])
	}
	if snap.Treasury != 4 {
		t.Errorf("treasury = %d, want 4", snap.Treasury)
	}
	if snap.Reserved != 10 {
		t.Errorf("reserved = %d, want 10", snap.Reserved)
	}
	if snap.Pool != 5 {
		t.Errorf("pool = %d, want 5", snap.Pool)
	}
	if snap.Loans["l1"] != 11 {
		t.Errorf("loan l1 = %d, want 11", snap.Loans["l1"])
	}
}

func TestInsertTransfer_RejectsNonPositiveAmount(t *testing.T) {
	db := newTestDB(t)
	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		return db.InsertTransfer(tx, testTransfer("t1", domain.KindDeposit, 0, domain.External(), domain.Member("alice")))
	})
	if err == nil {
		t.Error("zero-amount transfer accepted, want CHECK violation")
	}
}

// ─── Treasury Match Guard ───────────────────────────────────────────────────

func TestInsertTreasuryMatch_Idempotent(t *testing.T) {
	db := newTestDB(t)

	var first, second bool
	inTx(t, db, func(tx *sql.Tx) error {
		var err error
		first, err = db.InsertTreasuryMatch(tx, "b1", "c1", "bob", 10)
		return err
	})
	inTx(t, db, func(tx *sql.Tx) error {
		var err error
		second, err = db.InsertTreasuryMatch(tx, "b1", "c1", "bob", 10)
		return err
	})

	if !first {
		t.Error("first insert = false, want true")
	}
	if second {
		t.Error("second insert = true, want false")
	}
}

// ─── Rollback ───────────────────────────────────────────────────────────────

func TestInTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)

	sentinel := errors.New("boom")
	err := db.InTx(context.Background(), func(tx *sql.Tx) error {
		if err := db.CreditMember(tx, "c1", "alice", 100); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("error = %v, want sentinel", err)
	}

	if _, err := db.GetMembership("c1", "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("membership survived rollback: %v", err)
	}
}
