package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ─── Operation Requests ─────────────────────────────────────────────────────

type amountRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Note   string `json:"note,omitempty"`
}

type earnRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note,omitempty"`
}

type feeRequest struct {
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	BookingID string `json:"booking_id,omitempty"`
	Note      string `json:"note,omitempty"`
}

type treasuryAmountRequest struct {
	Amount int64 `json:"amount"`
}

type policyRequest struct {
	MatchRatio         float64 `json:"match_ratio"`
	MaxMatchPerBooking int64   `json:"max_match_per_booking"`
	MatchingActive     bool    `json:"matching_active"`
	AllowanceActive    bool    `json:"allowance_active"`
	AllowancePerMember int64   `json:"allowance_per_member"`
	MonthlyAllowance   int64   `json:"monthly_allowance_total"`
}

type loanIssueRequest struct {
	BorrowerID string `json:"borrower_id"`
	Amount     int64  `json:"amount"`
	LoanID     string `json:"loan_id,omitempty"`
}

type loanRepayRequest struct {
	BorrowerID string `json:"borrower_id"`
	Amount     int64  `json:"amount"`
}

type payoutRequest struct {
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	BookingID string `json:"booking_id,omitempty"`
}

// ─── Operation Handlers ─────────────────────────────────────────────────────

// POST /api/circles/{circleID}/deposit
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.Deposit(r.Context(), circleID, req.UserID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /api/circles/{circleID}/earn
func (s *Server) handleEarn(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req earnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.Earn(r.Context(), circleID, req.FromUserID, req.ToUserID, req.Amount, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /api/circles/{circleID}/spend
func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.Spend(r.Context(), circleID, req.UserID, req.Amount, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /api/circles/{circleID}/fees
func (s *Server) handleApplyFee(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req feeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.ApplyFee(r.Context(), circleID, req.UserID, req.Amount, req.BookingID, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /api/circles/{circleID}/treasury/deposit
func (s *Server) handleTreasuryDeposit(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req treasuryAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.TreasuryDeposit(r.Context(), circleID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /api/circles/{circleID}/treasury/policy
func (s *Server) handleTreasuryPolicy(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req policyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	err := s.db.SetTreasuryPolicy(circleID, req.MatchRatio, req.MaxMatchPerBooking,
		req.MatchingActive, req.AllowanceActive, req.AllowancePerMember, req.MonthlyAllowance)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	treasury, err := s.db.GetTreasury(circleID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treasury)
}

// POST /api/circles/{circleID}/pool/fund
func (s *Server) handlePoolFund(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req treasuryAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.GuaranteePoolFund(r.Context(), circleID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /api/circles/{circleID}/pool/payout
func (s *Server) handlePoolPayout(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req payoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.GuaranteePoolPayout(r.Context(), circleID, req.UserID, req.Amount, req.BookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /api/circles/{circleID}/pool/premium
func (s *Server) handleInsurancePremium(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.InsurancePremium(r.Context(), circleID, req.UserID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// POST /api/circles/{circleID}/loans
func (s *Server) handleLoanIssue(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	var req loanIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, loanID, err := s.ledger.LoanIssue(r.Context(), circleID, req.BorrowerID, req.Amount, req.LoanID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"loan_id":  loanID,
		"transfer": t,
	})
}

// POST /api/circles/{circleID}/loans/{loanID}/repay
func (s *Server) handleLoanRepay(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	loanID := chi.URLParam(r, "loanID")
	var req loanRepayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.ledger.LoanRepay(r.Context(), circleID, req.BorrowerID, req.Amount, loanID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ─── Read Handlers ──────────────────────────────────────────────────────────

// GET /api/circles/{circleID}/treasury
func (s *Server) handleGetTreasury(w http.ResponseWriter, r *http.Request) {
	treasury, err := s.db.GetTreasury(chi.URLParam(r, "circleID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treasury)
}

// GET /api/circles/{circleID}/pool
func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.db.GetPool(chi.URLParam(r, "circleID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// GET /api/circles/{circleID}/loans/{loanID}
func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := s.db.GetLoan(chi.URLParam(r, "loanID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// GET /api/circles/{circleID}/members/{userID}/balance
func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	userID := chi.URLParam(r, "userID")
	balance, err := s.ledger.Balance(r.Context(), circleID, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"circle_id":       circleID,
		"user_id":         userID,
		"balance_credits": balance,
	})
}

// GET /api/circles/{circleID}/entries?limit=&offset=
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	circleID := chi.URLParam(r, "circleID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := s.ledger.Entries(r.Context(), circleID, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// GET /api/circles/{circleID}/audit
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.Reconcile(r.Context(), chi.URLParam(r, "circleID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
