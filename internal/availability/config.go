package availability

import (
	"fmt"
	"strings"
	"time"

	"studiobook/internal/clock"
	"studiobook/internal/slots"
)

// DateLayout is the key format for date overrides and booked-out dates.
const DateLayout = "2006-01-02"

// Weekday keys plus the fallback key.
const (
	KeyMonday    = "monday"
	KeyTuesday   = "tuesday"
	KeyWednesday = "wednesday"
	KeyThursday  = "thursday"
	KeyFriday    = "friday"
	KeySaturday  = "saturday"
	KeySunday    = "sunday"
	KeyDefault   = "default"
)

// DayKeys lists every valid day config key in display order.
var DayKeys = []string{
	KeyMonday, KeyTuesday, KeyWednesday, KeyThursday, KeyFriday, KeySaturday, KeySunday, KeyDefault,
}

// SlotRange is an alias kept for callers that only import availability.
type SlotRange = slots.Range

// DayConfig is the admin-defined opening for a weekday or a specific date.
type DayConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Slots   []slots.Range `json:"slots"   yaml:"slots"`
}

// Snapshot is an immutable view of the slot configuration.
// Date configs fully replace the weekday config for their date.
type Snapshot struct {
	DayConfigs  map[string]DayConfig `json:"dayConfigs"  yaml:"day_configs"`
	DateConfigs map[string]DayConfig `json:"dateConfigs" yaml:"date_configs"`
}

// DefaultRange is the opening used when nothing else is configured.
var DefaultRange = slots.Range{StartTime: "8:00 AM", EndTime: clock.Midnight}

// DefaultDayConfig returns an enabled day open from 8:00 AM until midnight.
func DefaultDayConfig() DayConfig {
	return DayConfig{Enabled: true, Slots: []slots.Range{DefaultRange}}
}

// DefaultSnapshot is the configuration used when the store has none or it is unreadable.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		DayConfigs:  map[string]DayConfig{KeyDefault: DefaultDayConfig()},
		DateConfigs: map[string]DayConfig{},
	}
}

// WeekdayKey returns the day config key for t's weekday.
func WeekdayKey(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// DateKey returns the date config key for t.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// IsDayKey reports whether key names a weekday or the default.
func IsDayKey(key string) bool {
	for _, k := range DayKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Validate checks keys and every configured range.
func (s Snapshot) Validate() error {
	for key, cfg := range s.DayConfigs {
		if !IsDayKey(key) {
			return fmt.Errorf("day_configs: unknown day %q", key)
		}
		if err := cfg.validate(); err != nil {
			return fmt.Errorf("day_configs.%s: %w", key, err)
		}
	}
	for key, cfg := range s.DateConfigs {
		if _, err := time.Parse(DateLayout, key); err != nil {
			return fmt.Errorf("date_configs: invalid date %q, expected YYYY-MM-DD", key)
		}
		if err := cfg.validate(); err != nil {
			return fmt.Errorf("date_configs.%s: %w", key, err)
		}
	}
	return nil
}

func (c DayConfig) validate() error {
	for i, r := range c.Slots {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("slots[%d]: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy that can be edited without touching s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		DayConfigs:  make(map[string]DayConfig, len(s.DayConfigs)),
		DateConfigs: make(map[string]DayConfig, len(s.DateConfigs)),
	}
	for k, v := range s.DayConfigs {
		out.DayConfigs[k] = v.clone()
	}
	for k, v := range s.DateConfigs {
		out.DateConfigs[k] = v.clone()
	}
	return out
}

func (c DayConfig) clone() DayConfig {
	return DayConfig{Enabled: c.Enabled, Slots: append([]slots.Range(nil), c.Slots...)}
}

// DateSet is a set of calendar dates keyed by YYYY-MM-DD.
type DateSet map[string]struct{}

// NewDateSet builds a set from YYYY-MM-DD strings.
func NewDateSet(dates ...string) DateSet {
	set := make(DateSet, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// Contains reports whether t's calendar date is in the set. A nil set is empty.
func (d DateSet) Contains(t time.Time) bool {
	_, ok := d[DateKey(t)]
	return ok
}
