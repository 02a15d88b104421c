// Package clock converts between display times of day ("9:30 PM") and
// minutes since midnight.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// SlotMinutes is the spacing between bookable slot starts.
	SlotMinutes = 30
	// EndOfDay is the exclusive end-of-day marker in minutes.
	EndOfDay = 24 * 60

	// Midnight is both the first slot of the day and the "until end of day" range end.
	Midnight TimeOfDay = "12:00 AM"
)

// ErrMalformedTime is returned for strings that are not in "H:MM AM/PM" form.
var ErrMalformedTime = errors.New("malformed time of day")

// TimeOfDay is a canonical half-hour time of day such as "8:00 AM".
type TimeOfDay string

// String implements fmt.Stringer.
func (t TimeOfDay) String() string {
	return string(t)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() (int, error) {
	return ToMinutes(t)
}

// IsMidnight reports whether t is "12:00 AM".
func (t TimeOfDay) IsMidnight() bool {
	return t == Midnight
}

// Parse validates s and returns it as a TimeOfDay.
func Parse(s string) (TimeOfDay, error) {
	t := TimeOfDay(s)
	if _, err := ToMinutes(t); err != nil {
		return "", err
	}
	return t, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ToMinutes parses "H:MM AM/PM" into minutes since midnight.
// "12:MM AM" is the first hour of the day, "12:MM PM" is noon.
func ToMinutes(t TimeOfDay) (int, error) {
	clock, meridiem, ok := strings.Cut(string(t), " ")
	if !ok {
		return 0, malformed(t)
	}

	hourStr, minuteStr, ok := strings.Cut(clock, ":")
	if !ok || hourStr == "" || len(minuteStr) != 2 {
		return 0, malformed(t)
	}
	// No leading zero on the hour.
	if len(hourStr) > 2 || hourStr[0] == '0' {
		return 0, malformed(t)
	}

	hour, err := strconv.Atoi(hourStr)
	if err != nil || hour < 1 || hour > 12 {
		return 0, malformed(t)
	}

	minute, err := strconv.Atoi(minuteStr)
	if err != nil || minute%SlotMinutes != 0 || minute >= 60 {
		return 0, malformed(t)
	}

	switch meridiem {
	case "AM":
		if hour == 12 {
			return minute, nil
		}
		return hour*60 + minute, nil
	case "PM":
		if hour == 12 {
			return 12*60 + minute, nil
		}
		return (hour+12)*60 + minute, nil
	default:
		return 0, malformed(t)
	}
}

// FromMinutes formats minutes since midnight in canonical form.
// Values are folded into a single day, so 1440 renders as "12:00 AM".
func FromMinutes(m int) TimeOfDay {
	m %= EndOfDay
	if m < 0 {
		m += EndOfDay
	}

	hours := m / 60
	mins := m % 60

	switch {
	case hours == 0:
		return TimeOfDay(fmt.Sprintf("12:%02d AM", mins))
	case hours < 12:
		return TimeOfDay(fmt.Sprintf("%d:%02d AM", hours, mins))
	case hours == 12:
		return TimeOfDay(fmt.Sprintf("12:%02d PM", mins))
	default:
		return TimeOfDay(fmt.Sprintf("%d:%02d PM", hours-12, mins))
	}
}

// All returns the 48 canonical half-hour values from "12:00 AM" to "11:30 PM".
func All() []TimeOfDay {
	out := make([]TimeOfDay, 0, EndOfDay/SlotMinutes)
	for m := 0; m < EndOfDay; m += SlotMinutes {
		out = append(out, FromMinutes(m))
	}
	return out
}

// EndMinutes returns the effective end of a range ending at t: midnight
// means end of day (1440), anything else is ToMinutes(t).
func EndMinutes(t TimeOfDay) (int, error) {
	m, err := ToMinutes(t)
	if err != nil {
		return 0, err
	}
	if t.IsMidnight() {
		return EndOfDay, nil
	}
	return m, nil
}

func malformed(t TimeOfDay) error {
	return fmt.Errorf("%w: %q", ErrMalformedTime, string(t))
}
