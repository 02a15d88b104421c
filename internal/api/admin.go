package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"studiobook/internal/availability"
	"studiobook/internal/export"
	"studiobook/internal/model"
	"studiobook/internal/pricing"
	"studiobook/internal/slots"

	"github.com/go-chi/chi/v5"
)

// DecisionRequest is the body for approve and reject.
type DecisionRequest struct {
	Note   string `json:"note"`
	Notify string `json:"notify" validate:"omitempty,oneof=email sms both"`
}

// RangeRequest adds or replaces a slot range in the slot-config editor.
type RangeRequest struct {
	availability.Target
	Range slots.Range `json:"range"`
}

// BookedOutRequest replaces the booked-out dates.
type BookedOutRequest struct {
	Dates []string `json:"dates" validate:"dive,datetime=2006-01-02"`
}

func (s *Server) filterParam(r *http.Request) (model.Filter, error) {
	f, ok := model.ParseFilter(r.URL.Query().Get("status"))
	if !ok {
		return "", badRequest("status must be one of all, pending, approved, rejected")
	}
	return f, nil
}

// GET /api/v1/admin/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Dashboard(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /api/v1/admin/bookings?status=all|pending|approved|rejected
func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := s.filterParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	list, err := s.manager.ListBookings(r.Context(), filter)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if list == nil {
		list = []*model.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"filter": filter, "bookings": list})
}

// GET /api/v1/admin/bookings/{id}
func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.manager.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /api/v1/admin/bookings/export.xlsx?status=...
func (s *Server) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	filter, err := s.filterParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	list, err := s.manager.ListBookings(r.Context(), filter)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	stats, err := s.manager.Dashboard(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, list, stats); err != nil {
		s.respondErr(w, r, fmt.Errorf("export bookings: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(filter, s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) decision(r *http.Request) (DecisionRequest, model.NotifyMethod, error) {
	var req DecisionRequest
	if err := s.decode(r, &req); err != nil {
		return req, "", err
	}
	method, _ := model.ParseNotifyMethod(req.Notify)
	return req, method, nil
}

// POST /api/v1/admin/bookings/{id}/approve
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, method, err := s.decision(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	b, err := s.manager.ApproveBooking(r.Context(), chi.URLParam(r, "id"), req.Note, method)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// POST /api/v1/admin/bookings/{id}/reject
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	req, method, err := s.decision(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	b, err := s.manager.RejectBooking(r.Context(), chi.URLParam(r, "id"), req.Note, method)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /api/v1/admin/slot-config
func (s *Server) handleGetSlotConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Snapshot(r.Context()))
}

// PUT /api/v1/admin/slot-config
func (s *Server) handlePutSlotConfig(w http.ResponseWriter, r *http.Request) {
	var snap availability.Snapshot
	if err := s.readJSON(r, &snap); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if snap.DayConfigs == nil {
		snap.DayConfigs = map[string]availability.DayConfig{}
	}
	if snap.DateConfigs == nil {
		snap.DateConfigs = map[string]availability.DayConfig{}
	}
	if err := s.settings.SaveSnapshot(r.Context(), snap); err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// editSlotConfig applies fn to the stored configuration and saves the result.
func (s *Server) editSlotConfig(w http.ResponseWriter, r *http.Request, fn func(*availability.Editor) error) {
	snap, err := s.settings.EditSnapshot(r.Context(), fn)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func targetFromQuery(r *http.Request) availability.Target {
	q := r.URL.Query()
	return availability.Target{Day: q.Get("day"), Date: q.Get("date")}
}

func indexParam(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, badRequest("index must be an integer")
	}
	return i, nil
}

// POST /api/v1/admin/slot-config/ranges
func (s *Server) handleAddRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if err := s.readJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.editSlotConfig(w, r, func(ed *availability.Editor) error {
		return ed.AddRange(req.Target, req.Range)
	})
}

// PUT /api/v1/admin/slot-config/ranges/{index}
func (s *Server) handleUpdateRange(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	var req RangeRequest
	if err := s.readJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.editSlotConfig(w, r, func(ed *availability.Editor) error {
		return ed.UpdateRange(req.Target, i, req.Range)
	})
}

// DELETE /api/v1/admin/slot-config/ranges/{index}?day=monday|date=YYYY-MM-DD
func (s *Server) handleRemoveRange(w http.ResponseWriter, r *http.Request) {
	i, err := indexParam(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	target := targetFromQuery(r)
	s.editSlotConfig(w, r, func(ed *availability.Editor) error {
		return ed.RemoveRange(target, i)
	})
}

// POST /api/v1/admin/slot-config/toggle
func (s *Server) handleToggleDay(w http.ResponseWriter, r *http.Request) {
	var target availability.Target
	if err := s.readJSON(r, &target); err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.editSlotConfig(w, r, func(ed *availability.Editor) error {
		return ed.ToggleEnabled(target)
	})
}

// DELETE /api/v1/admin/slot-config/dates/{date}
func (s *Server) handleClearDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	s.editSlotConfig(w, r, func(ed *availability.Editor) error {
		return ed.ClearDate(date)
	})
}

// GET /api/v1/admin/rate-cards
func (s *Server) handleGetRateCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.RateCard(r.Context()))
}

// PUT /api/v1/admin/rate-cards
func (s *Server) handlePutRateCard(w http.ResponseWriter, r *http.Request) {
	var card pricing.RateCard
	if err := s.readJSON(r, &card); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := s.settings.SaveRateCard(r.Context(), card); err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// GET /api/v1/admin/booked-out-dates
func (s *Server) handleGetBookedOut(w http.ResponseWriter, r *http.Request) {
	dates := s.settings.BookedOutDates(r.Context())
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, http.StatusOK, BookedOutRequest{Dates: dates})
}

// PUT /api/v1/admin/booked-out-dates
func (s *Server) handlePutBookedOut(w http.ResponseWriter, r *http.Request) {
	var req BookedOutRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := s.settings.SaveBookedOutDates(r.Context(), req.Dates); err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BookedOutRequest{Dates: s.settings.BookedOutDates(r.Context())})
}
