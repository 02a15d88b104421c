package api

import (
	"net/http"

	"studiobook/internal/booking"

	"github.com/go-chi/chi/v5"
)

// handleStartDraft opens a booking draft.
// POST /api/v1/drafts
func (s *Server) handleStartDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.bookings.Start(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GET /api/v1/drafts/{id}
func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.bookings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// DELETE /api/v1/drafts/{id}
func (s *Server) handleCancelDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.bookings.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/drafts/{id}/back
func (s *Server) handleDraftBack(w http.ResponseWriter, r *http.Request) {
	d, err := s.bookings.Back(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GET /api/v1/drafts/{id}/quote
func (s *Server) handleDraftQuote(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookings.Quote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(b))
}

// handleDraftStep applies one step's input.
// PATCH /api/v1/drafts/{id}/{step}
func (s *Server) handleDraftStep(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	step, ok := booking.ParseStep(chi.URLParam(r, "step"))
	if !ok {
		s.respondErr(w, r, badRequest("unknown step %q", chi.URLParam(r, "step")))
		return
	}

	var (
		d   *booking.Draft
		err error
	)
	switch step {
	case booking.StepStaff:
		var in booking.StaffInput
		if err = s.readJSON(r, &in); err == nil {
			d, err = s.bookings.SetStaff(r.Context(), id, in)
		}
	case booking.StepTime:
		var in booking.TimeInput
		if err = s.readJSON(r, &in); err == nil {
			d, err = s.bookings.SetTime(r.Context(), id, in)
		}
	case booking.StepRoom:
		var in booking.RoomInput
		if err = s.readJSON(r, &in); err == nil {
			d, err = s.bookings.SetRoom(r.Context(), id, in)
		}
	case booking.StepContact:
		var in booking.ContactInput
		if err = s.readJSON(r, &in); err == nil {
			d, err = s.bookings.SetContact(r.Context(), id, in)
		}
	}
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleSubmitDraft turns a confirmed draft into a pending booking.
// POST /api/v1/drafts/{id}/submit
func (s *Server) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	b, err := s.bookings.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"booking": b,
		"message": "Booking submitted! Awaiting admin approval. You will receive a confirmation email/SMS once approved.",
	})
}
