// Package availability turns the slot configuration into the bookable slot
// starts of a calendar date.
package availability

import (
	"fmt"
	"sort"
	"time"

	"studiobook/internal/clock"
	"studiobook/internal/slots"
)

// Source tells which rule supplied a date's config.
type Source string

const (
	SourceDate    Source = "date"
	SourceWeekday Source = "weekday"
	SourceDefault Source = "default"
	SourceNone    Source = "none"
)

// ConfigFor resolves the config for date: a date override wins outright,
// then the weekday config, then the default. ok is false when none exists.
func ConfigFor(date time.Time, snap Snapshot) (cfg DayConfig, src Source, ok bool) {
	if cfg, ok := snap.DateConfigs[DateKey(date)]; ok {
		return cfg, SourceDate, true
	}
	if cfg, ok := snap.DayConfigs[WeekdayKey(date)]; ok {
		return cfg, SourceWeekday, true
	}
	if cfg, ok := snap.DayConfigs[KeyDefault]; ok {
		return cfg, SourceDefault, true
	}
	return DayConfig{}, SourceNone, false
}

// Resolve returns the sorted, de-duplicated slot starts bookable on date.
// An empty result means the date is not bookable. Only malformed time strings
// in the configuration produce an error.
func Resolve(date time.Time, snap Snapshot, bookedOut DateSet) ([]clock.TimeOfDay, error) {
	if bookedOut.Contains(date) {
		return nil, nil
	}

	cfg, _, ok := ConfigFor(date, snap)
	if !ok || !cfg.Enabled {
		return nil, nil
	}

	seen := make(map[clock.TimeOfDay]struct{})
	var all []clock.TimeOfDay
	for _, r := range cfg.Slots {
		generated, err := slots.Generate(r)
		if err != nil {
			return nil, fmt.Errorf("resolve %s range %s: %w", DateKey(date), r, err)
		}
		for _, s := range generated {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			all = append(all, s)
		}
	}

	// Every entry came out of Generate, so it parses.
	minutes := make(map[clock.TimeOfDay]int, len(all))
	for _, s := range all {
		m, _ := clock.ToMinutes(s)
		minutes[s] = m
	}
	sort.SliceStable(all, func(i, j int) bool {
		return minutes[all[i]] < minutes[all[j]]
	})

	return all, nil
}

// DayAvailability is one date's result inside a calendar range.
type DayAvailability struct {
	Date  string            `json:"date"`
	Slots []clock.TimeOfDay `json:"slots"`
}

// Bookable reports whether the date has at least one slot.
func (d DayAvailability) Bookable() bool {
	return len(d.Slots) > 0
}

// ResolveRange resolves days consecutive dates starting at from.
func ResolveRange(from time.Time, days int, snap Snapshot, bookedOut DateSet) ([]DayAvailability, error) {
	if days <= 0 {
		return nil, nil
	}

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	out := make([]DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		s, err := Resolve(date, snap, bookedOut)
		if err != nil {
			return nil, err
		}
		out = append(out, DayAvailability{Date: DateKey(date), Slots: s})
	}
	return out, nil
}
