package availability

import (
	"fmt"
	"time"

	"studiobook/internal/slots"
)

// Target addresses either a weekday key or a specific date.
type Target struct {
	Day  string `json:"day,omitempty"`
	Date string `json:"date,omitempty"`
}

func (t Target) validate() error {
	switch {
	case t.Day != "" && t.Date != "":
		return fmt.Errorf("target: set either day or date, not both")
	case t.Day != "":
		if !IsDayKey(t.Day) {
			return fmt.Errorf("target: unknown day %q", t.Day)
		}
	case t.Date != "":
		if _, err := time.Parse(DateLayout, t.Date); err != nil {
			return fmt.Errorf("target: invalid date %q, expected YYYY-MM-DD", t.Date)
		}
	default:
		return fmt.Errorf("target: day or date is required")
	}
	return nil
}

// Editor applies admin edits to a copy of a snapshot.
type Editor struct {
	snap Snapshot
}

// NewEditor starts editing a deep copy of snap.
func NewEditor(snap Snapshot) *Editor {
	return &Editor{snap: snap.Clone()}
}

// Snapshot returns the edited configuration after validating it.
func (e *Editor) Snapshot() (Snapshot, error) {
	if err := e.snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return e.snap.Clone(), nil
}

// get returns the config at t. A missing config starts empty and enabled.
func (e *Editor) get(t Target) DayConfig {
	if t.Date != "" {
		if cfg, ok := e.snap.DateConfigs[t.Date]; ok {
			return cfg
		}
		return DayConfig{Enabled: true}
	}
	if cfg, ok := e.snap.DayConfigs[t.Day]; ok {
		return cfg
	}
	return DayConfig{Enabled: true}
}

func (e *Editor) put(t Target, cfg DayConfig) {
	if t.Date != "" {
		e.snap.DateConfigs[t.Date] = cfg
		return
	}
	e.snap.DayConfigs[t.Day] = cfg
}

// AddRange appends r, defaulting to 8:00 AM until midnight when r is zero.
func (e *Editor) AddRange(t Target, r slots.Range) error {
	if err := t.validate(); err != nil {
		return err
	}
	if r == (slots.Range{}) {
		r = DefaultRange
	}
	if err := r.Validate(); err != nil {
		return err
	}
	cfg := e.get(t)
	cfg.Slots = append(cfg.Slots, r)
	e.put(t, cfg)
	return nil
}

// UpdateRange replaces the range at index.
func (e *Editor) UpdateRange(t Target, index int, r slots.Range) error {
	if err := t.validate(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	cfg := e.get(t)
	if index < 0 || index >= len(cfg.Slots) {
		return fmt.Errorf("slot index %d out of range", index)
	}
	cfg.Slots[index] = r
	e.put(t, cfg)
	return nil
}

// RemoveRange deletes the range at index.
func (e *Editor) RemoveRange(t Target, index int) error {
	if err := t.validate(); err != nil {
		return err
	}
	cfg := e.get(t)
	if index < 0 || index >= len(cfg.Slots) {
		return fmt.Errorf("slot index %d out of range", index)
	}
	cfg.Slots = append(cfg.Slots[:index], cfg.Slots[index+1:]...)
	e.put(t, cfg)
	return nil
}

// ToggleEnabled flips the enabled flag. Toggling a date without an override
// creates one from the default opening, so the first toggle closes the date.
func (e *Editor) ToggleEnabled(t Target) error {
	if err := t.validate(); err != nil {
		return err
	}
	cfg := e.get(t)
	if t.Date != "" {
		if _, ok := e.snap.DateConfigs[t.Date]; !ok {
			cfg = DefaultDayConfig()
		}
	}
	cfg.Enabled = !cfg.Enabled
	e.put(t, cfg)
	return nil
}

// ClearDate removes a date override so the weekday rule applies again.
func (e *Editor) ClearDate(date string) error {
	if err := (Target{Date: date}).validate(); err != nil {
		return err
	}
	delete(e.snap.DateConfigs, date)
	return nil
}
