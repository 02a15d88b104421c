package model

import (
	"time"

	"studiobook/internal/clock"
	"studiobook/internal/pricing"
)

// Status is the approval state of a booking.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// DateLayout is the storage format of Booking.Date.
const DateLayout = "2006-01-02"

// DisplayDateLayout renders dates the way customers see them.
const DisplayDateLayout = "Monday, January 2, 2006"

// Booking is a submitted studio booking request.
type Booking struct {
	ID            string            `json:"bookingId"`
	Staff         string            `json:"staff,omitempty"`
	Services      []string          `json:"services,omitempty"`
	Date          string            `json:"date"`
	StartTime     clock.TimeOfDay   `json:"startTime"`
	EndTime       clock.TimeOfDay   `json:"endTime"`
	RoomID        string            `json:"roomId,omitempty"`
	Room          string            `json:"room,omitempty"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerPhone string            `json:"customerPhone"`
	Status        Status            `json:"status"`
	Price         pricing.Breakdown `json:"price"`
	AdminNote     string            `json:"adminNote,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	DecidedAt     *time.Time        `json:"decidedAt,omitempty"`
}

// IsPending reports whether the booking still awaits a decision.
func (b *Booking) IsPending() bool {
	return b.Status == StatusPendingApproval
}

// DisplayDate returns Date as "Monday, November 3, 2025". Unparseable dates
// are returned unchanged.
func (b *Booking) DisplayDate() string {
	d, err := time.ParseInLocation(DateLayout, b.Date, time.Local)
	if err != nil {
		return b.Date
	}
	return d.Format(DisplayDateLayout)
}

// Filter selects bookings in the admin list.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterPending  Filter = "pending"
	FilterApproved Filter = "approved"
	FilterRejected Filter = "rejected"
)

// ParseFilter maps a query value to a Filter. Empty means pending.
func ParseFilter(s string) (Filter, bool) {
	switch f := Filter(s); f {
	case "":
		return FilterPending, true
	case FilterAll, FilterPending, FilterApproved, FilterRejected:
		return f, true
	}
	return "", false
}

// Status returns the status selected by f, or "" for all.
func (f Filter) Status() Status {
	switch f {
	case FilterPending:
		return StatusPendingApproval
	case FilterApproved:
		return StatusApproved
	case FilterRejected:
		return StatusRejected
	}
	return ""
}

// Matches reports whether b passes the filter.
func (f Filter) Matches(b *Booking) bool {
	st := f.Status()
	return st == "" || b.Status == st
}

// Stats are the admin dashboard counters.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Today    int `json:"today"`
}

// Count tallies bookings, counting those created on the same local day as now.
func Count(bookings []*Booking, now time.Time) Stats {
	var s Stats
	y, m, d := now.Date()
	for _, b := range bookings {
		s.Total++
		switch b.Status {
		case StatusPendingApproval:
			s.Pending++
		case StatusApproved:
			s.Approved++
		case StatusRejected:
			s.Rejected++
		}
		by, bm, bd := b.CreatedAt.In(now.Location()).Date()
		if by == y && bm == m && bd == d {
			s.Today++
		}
	}
	return s
}

// NotifyMethod selects how a customer hears about a decision.
type NotifyMethod string

const (
	NotifyEmail NotifyMethod = "email"
	NotifySMS   NotifyMethod = "sms"
	NotifyBoth  NotifyMethod = "both"
)

// ParseNotifyMethod maps a request value to a method. Empty means both.
func ParseNotifyMethod(s string) (NotifyMethod, bool) {
	switch m := NotifyMethod(s); m {
	case "":
		return NotifyBoth, true
	case NotifyEmail, NotifySMS, NotifyBoth:
		return m, true
	}
	return "", false
}

// Email reports whether the method includes email.
func (m NotifyMethod) Email() bool { return m == NotifyEmail || m == NotifyBoth }

// SMS reports whether the method includes SMS.
func (m NotifyMethod) SMS() bool { return m == NotifySMS || m == NotifyBoth }
