// Package slots expands configured open ranges into 30-minute slot starts
// and filters the end times that can follow a chosen start.
package slots

import (
	"fmt"

	"studiobook/internal/clock"
)

// Range is one configured open interval of a day.
// An EndTime of "12:00 AM" means "until end of day".
type Range struct {
	StartTime clock.TimeOfDay `json:"startTime" yaml:"start_time"`
	EndTime   clock.TimeOfDay `json:"endTime"   yaml:"end_time"`
}

// String returns "8:00 AM-12:00 AM".
func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.StartTime, r.EndTime)
}

// Validate checks both ends parse.
func (r Range) Validate() error {
	if _, err := clock.ToMinutes(r.StartTime); err != nil {
		return fmt.Errorf("start time: %w", err)
	}
	if _, err := clock.ToMinutes(r.EndTime); err != nil {
		return fmt.Errorf("end time: %w", err)
	}
	return nil
}

// Generate returns the slot starts of r at 30-minute spacing, strictly before
// the effective end. Ranges never wrap within themselves: an end at or before
// the start yields no slots. A range ending at midnight gets a trailing
// "12:00 AM" slot for the last half hour of the day.
func Generate(r Range) ([]clock.TimeOfDay, error) {
	start, err := clock.ToMinutes(r.StartTime)
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}

	end, err := clock.EndMinutes(r.EndTime)
	if err != nil {
		return nil, fmt.Errorf("parse end time: %w", err)
	}

	if end <= start {
		return nil, nil
	}

	slots := make([]clock.TimeOfDay, 0, (end-start)/clock.SlotMinutes+1)
	for cursor := start; cursor < end; cursor += clock.SlotMinutes {
		slots = append(slots, clock.FromMinutes(cursor))
	}

	if r.EndTime.IsMidnight() {
		slots = append(slots, clock.Midnight)
	}

	return slots, nil
}

// FormatDuration formats hours as "1 hr", "2 hrs" or "1 hr 30 min".
func FormatDuration(hours float64) string {
	minutes := int(hours*60 + 0.5)
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	h := minutes / 60
	m := minutes % 60
	unit := "hrs"
	if h == 1 {
		unit = "hr"
	}
	if m == 0 {
		return fmt.Sprintf("%d %s", h, unit)
	}
	return fmt.Sprintf("%d %s %d min", h, unit, m)
}
