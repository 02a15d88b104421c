package booking

import (
	"time"

	"studiobook/internal/clock"
	"studiobook/internal/model"
	"studiobook/internal/pricing"
)

// Draft accumulates a customer's selections until submission.
type Draft struct {
	ID            string          `json:"id"`
	Step          Step            `json:"step"`
	StaffID       string          `json:"staffId,omitempty"`
	Staff         string          `json:"staff,omitempty"`
	Services      []string        `json:"services,omitempty"`
	Date          string          `json:"date,omitempty"`
	StartTime     clock.TimeOfDay `json:"startTime,omitempty"`
	EndTime       clock.TimeOfDay `json:"endTime,omitempty"`
	RoomID        string          `json:"roomId,omitempty"`
	Room          string          `json:"room,omitempty"`
	CustomerName  string          `json:"customerName,omitempty"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	CustomerPhone string          `json:"customerPhone,omitempty"`
	BookingID     string          `json:"bookingId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Selection is the priced part of the draft.
func (d *Draft) Selection() pricing.Selection {
	return pricing.Selection{
		RoomID:   d.RoomID,
		RoomName: d.Room,
		Services: d.Services,
	}
}

// HasTime reports whether the time step has been completed.
func (d *Draft) HasTime() bool {
	return d.Date != "" && d.StartTime != "" && d.EndTime != ""
}

// complete reports whether every field a booking needs is present.
func (d *Draft) complete() bool {
	return d.StaffID != "" && d.HasTime() && d.RoomID != "" &&
		d.CustomerName != "" && d.CustomerEmail != "" && d.CustomerPhone != ""
}

// toBooking converts the draft into a pending booking.
func (d *Draft) toBooking(id string, price pricing.Breakdown, now time.Time) *model.Booking {
	return &model.Booking{
		ID:            id,
		Staff:         d.Staff,
		Services:      append([]string(nil), d.Services...),
		Date:          d.Date,
		StartTime:     d.StartTime,
		EndTime:       d.EndTime,
		RoomID:        d.RoomID,
		Room:          d.Room,
		CustomerName:  d.CustomerName,
		CustomerEmail: d.CustomerEmail,
		CustomerPhone: d.CustomerPhone,
		Status:        model.StatusPendingApproval,
		Price:         price,
		CreatedAt:     now,
	}
}
