package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"studiobook/internal/model"
)

var bookingColumns = []string{
	"Booking ID", "Status", "Date", "Start", "End", "Hours", "Room", "Staff",
	"Services", "Customer", "Email", "Phone", "Total", "Admin Note", "Created", "Decided",
}

// Filename returns the download name for an export taken at t.
func Filename(filter model.Filter, t time.Time) string {
	return fmt.Sprintf("bookings_%s_%s.xlsx", filter, t.Format("2006-01-02"))
}

// WriteBookings renders bookings and their counters as an xlsx workbook.
func WriteBookings(wr io.Writer, bookings []*model.Booking, stats model.Stats) error {
	w := NewWriter()
	defer w.Close()

	if err := w.AddSheet("Bookings"); err != nil {
		return err
	}
	if err := w.WriteHeader(bookingColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, b := range bookings {
		if err := w.WriteRow(bookingRow(b)); err != nil {
			return fmt.Errorf("write booking %s: %w", b.ID, err)
		}
	}

	if err := w.AddSheet("Summary"); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Metric", "Count"}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, row := range [][]any{
		{"Total", stats.Total},
		{"Pending", stats.Pending},
		{"Approved", stats.Approved},
		{"Rejected", stats.Rejected},
		{"Submitted today", stats.Today},
	} {
		if err := w.WriteRow(row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	return w.Save(wr)
}

func bookingRow(b *model.Booking) []any {
	decided := ""
	if b.DecidedAt != nil {
		decided = b.DecidedAt.Format(time.DateTime)
	}
	return []any{
		b.ID,
		string(b.Status),
		b.Date,
		b.StartTime.String(),
		b.EndTime.String(),
		b.Price.DurationHours,
		b.Room,
		b.Staff,
		strings.Join(b.Services, ", "),
		b.CustomerName,
		b.CustomerEmail,
		b.CustomerPhone,
		b.Price.Total,
		b.AdminNote,
		b.CreatedAt.Format(time.DateTime),
		decided,
	}
}
