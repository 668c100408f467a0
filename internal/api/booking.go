package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/favorbank/favorbank/internal/app/booking"
	"github.com/favorbank/favorbank/internal/domain"
)

// ─── Booking Requests ───────────────────────────────────────────────────────

type createBookingRequest struct {
	CircleID        string    `json:"circle_id"`
	RequesterID     string    `json:"requester_id"`
	Credits         int64     `json:"credits"`
	Category        string    `json:"category,omitempty"`
	StartAt         time.Time `json:"start_at"`
	Urgent          bool      `json:"urgent,omitempty"`
	Guaranteed      bool      `json:"guaranteed,omitempty"`
	CrossCircle     bool      `json:"cross_circle,omitempty"`
	Equipment       bool      `json:"equipment,omitempty"`
	Requirements    string    `json:"requirements,omitempty"`
	PlusMember      bool      `json:"plus_member,omitempty"`
	TransactionType string    `json:"transaction_type,omitempty"`
}

func (req createBookingRequest) params() booking.CreateParams {
	return booking.CreateParams{
		CircleID:        req.CircleID,
		RequesterID:     req.RequesterID,
		Credits:         req.Credits,
		Category:        req.Category,
		StartAt:         req.StartAt,
		Urgent:          req.Urgent,
		Guaranteed:      req.Guaranteed,
		CrossCircle:     req.CrossCircle,
		Equipment:       req.Equipment,
		Requirements:    req.Requirements,
		PlusMember:      req.PlusMember,
		TransactionType: req.TransactionType,
	}
}

type acceptBookingRequest struct {
	ProviderID string `json:"provider_id"`
}

type fileClaimRequest struct {
	CircleID     string `json:"circle_id"`
	BookingID    string `json:"booking_id"`
	ClaimantID   string `json:"claimant_id"`
	Amount       int64  `json:"amount"`
	BonusCredits int64  `json:"bonus_credits,omitempty"`
	Type         string `json:"type"`
}

type resolveClaimRequest struct {
	Approve bool `json:"approve"`
}

// ─── Booking Handlers ───────────────────────────────────────────────────────

// POST /api/bookings
// Creates the booking and escrows the offered credits atomically: an
// insufficient balance means no booking row is created at all.
func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	result, err := s.bookings.Create(r.Context(), req.params())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GET /api/bookings/{bookingID}
func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.db.GetBooking(chi.URLParam(r, "bookingID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// POST /api/bookings/{bookingID}/accept
func (s *Server) handleAcceptBooking(w http.ResponseWriter, r *http.Request) {
	var req acceptBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.bookings.Accept(r.Context(), chi.URLParam(r, "bookingID"), req.ProviderID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "booked"})
}

// POST /api/bookings/{bookingID}/start
func (s *Server) handleStartBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.bookings.Start(r.Context(), chi.URLParam(r, "bookingID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "in_progress"})
}

// POST /api/bookings/{bookingID}/complete
// Releases escrow to the provider; matching runs afterwards and never blocks
// the completion itself.
func (s *Server) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	result, err := s.bookings.Complete(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /api/bookings/{bookingID}/cancel
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.bookings.Cancel(r.Context(), chi.URLParam(r, "bookingID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ─── Claim Handlers ─────────────────────────────────────────────────────────

// POST /api/claims
func (s *Server) handleFileClaim(w http.ResponseWriter, r *http.Request) {
	var req fileClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	claimType := domain.ClaimType(req.Type)
	if claimType != domain.ClaimGuaranteed && claimType != domain.ClaimEscrow {
		writeError(w, http.StatusBadRequest, "claim type must be GUARANTEED or ESCROW")
		return
	}
	claim, err := s.bookings.FileClaim(r.Context(), req.CircleID, req.BookingID, req.ClaimantID,
		req.Amount, req.BonusCredits, claimType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

// POST /api/claims/{claimID}/resolve
func (s *Server) handleResolveClaim(w http.ResponseWriter, r *http.Request) {
	var req resolveClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	claim, err := s.bookings.ResolveClaim(r.Context(), chi.URLParam(r, "claimID"), req.Approve)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// ─── Fee Quote Handler ──────────────────────────────────────────────────────

// POST /api/fees/quote
// Pure computation: quotes the surcharge breakdown without writing anything.
func (s *Server) handleFeeQuote(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.bookings.Quote(req.params()))
}
