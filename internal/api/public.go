package api

import (
	"net/http"
	"strconv"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/clock"
	"studiobook/internal/metrics"
	"studiobook/internal/model"
	"studiobook/internal/pricing"
	"studiobook/internal/slots"
)

// AvailabilityResponse is the response for GET /api/v1/availability.
type AvailabilityResponse struct {
	Date     string            `json:"date"`
	Weekday  string            `json:"weekday"`
	Source   string            `json:"source,omitempty"`
	Bookable bool              `json:"bookable"`
	Slots    []clock.TimeOfDay `json:"slots"`
}

// CalendarDay is one entry of GET /api/v1/availability/calendar.
type CalendarDay struct {
	Date      string `json:"date"`
	Bookable  bool   `json:"bookable"`
	SlotCount int    `json:"slotCount"`
}

// EndTimesResponse is the response for GET /api/v1/end-times.
type EndTimesResponse struct {
	Date      string            `json:"date"`
	StartTime clock.TimeOfDay   `json:"startTime"`
	EndTimes  []clock.TimeOfDay `json:"endTimes"`
}

// QuoteRequest is the request body for POST /api/v1/quote.
type QuoteRequest struct {
	StartTime string   `json:"startTime" validate:"required"`
	EndTime   string   `json:"endTime"   validate:"required"`
	RoomID    string   `json:"roomId"`
	Room      string   `json:"room"`
	Services  []string `json:"services"`
}

// QuoteResponse is the response for POST /api/v1/quote.
type QuoteResponse struct {
	pricing.Breakdown
	FormattedTotal    string `json:"formattedTotal"`
	FormattedDuration string `json:"formattedDuration"`
}

// CatalogResponse is the response for GET /api/v1/catalog.
type CatalogResponse struct {
	Staff    []model.StaffMember     `json:"staff"`
	Rooms    []pricing.RateCardEntry `json:"rooms"`
	Services []pricing.RateCardEntry `json:"services"`
}

func parseDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, badRequest("%s is required", field)
	}
	d, err := time.ParseInLocation(model.DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, badRequest("invalid %s format; expected YYYY-MM-DD", field)
	}
	return d, nil
}

// handleAvailability returns the bookable slots for one date.
// GET /api/v1/availability?date=YYYY-MM-DD
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), "date")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	view := s.settings.View(r.Context())
	list, err := availability.Resolve(date, view.Availability, view.BookedOut)
	if err != nil {
		metrics.IncAvailabilityLookup("error")
		s.respondErr(w, r, err)
		return
	}

	resp := AvailabilityResponse{
		Date:     availability.DateKey(date),
		Weekday:  availability.WeekdayKey(date),
		Bookable: len(list) > 0,
		Slots:    list,
	}
	if resp.Slots == nil {
		resp.Slots = []clock.TimeOfDay{}
	}
	if _, src, ok := availability.ConfigFor(date, view.Availability); ok && !view.BookedOut.Contains(date) {
		resp.Source = string(src)
	}
	if resp.Bookable {
		metrics.IncAvailabilityLookup("open")
	} else {
		metrics.IncAvailabilityLookup("closed")
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar returns per-date bookability for a range.
// GET /api/v1/availability/calendar?from=YYYY-MM-DD&days=N
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"), "from")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	days := 31
	if v := q.Get("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 || days > MaxCalendarDays {
			s.respondErr(w, r, badRequest("days must be between 1 and %d", MaxCalendarDays))
			return
		}
	}

	view := s.settings.View(r.Context())
	result, err := availability.ResolveRange(from, days, view.Availability, view.BookedOut)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	out := make([]CalendarDay, 0, len(result))
	for _, d := range result {
		out = append(out, CalendarDay{Date: d.Date, Bookable: d.Bookable(), SlotCount: len(d.Slots)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": out})
}

// handleEndTimes returns valid end choices for a start slot.
// GET /api/v1/end-times?date=YYYY-MM-DD&start=9:00 AM
func (s *Server) handleEndTimes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := parseDate(q.Get("date"), "date")
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	start, err := clock.Parse(q.Get("start"))
	if err != nil {
		s.respondErr(w, r, badRequest("invalid start; expected a time like 9:00 AM"))
		return
	}

	view := s.settings.View(r.Context())
	list, err := availability.Resolve(date, view.Availability, view.BookedOut)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	ends := slots.EndTimes(start, list)
	if ends == nil {
		ends = []clock.TimeOfDay{}
	}
	writeJSON(w, http.StatusOK, EndTimesResponse{Date: availability.DateKey(date), StartTime: start, EndTimes: ends})
}

// handleQuote prices an ad hoc selection.
// POST /api/v1/quote
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	sel := pricing.Selection{RoomID: req.RoomID, RoomName: req.Room, Services: req.Services}
	breakdown, err := pricing.Quote(clock.TimeOfDay(req.StartTime), clock.TimeOfDay(req.EndTime), sel, s.settings.View(r.Context()).RateCard)
	if err != nil {
		s.respondErr(w, r, badRequest("%v", err))
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(breakdown))
}

func newQuoteResponse(b pricing.Breakdown) QuoteResponse {
	return QuoteResponse{
		Breakdown:         b,
		FormattedTotal:    b.FormatTotal(),
		FormattedDuration: slots.FormatDuration(b.DurationHours),
	}
}

// handleCatalog lists staff, rooms and services.
// GET /api/v1/catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	view := s.settings.View(r.Context())
	writeJSON(w, http.StatusOK, CatalogResponse{
		Staff:    view.Staff,
		Rooms:    view.RateCard.Rooms,
		Services: view.RateCard.Services,
	})
}
