// Package pricing computes booking durations and itemized price estimates
// from the room and service rate cards.
package pricing

import (
	"fmt"
	"math"

	"studiobook/internal/clock"
)

// MinDurationHours is the business floor applied to every booking.
const MinDurationHours = 1.0

// RateCardEntry is one priced room or service.
type RateCardEntry struct {
	ID        string  `json:"id"        yaml:"id"         validate:"required"`
	Name      string  `json:"name"      yaml:"name"       validate:"required"`
	BasePrice float64 `json:"basePrice" yaml:"base_price" validate:"gte=0"`
	PerHour   bool    `json:"perHour"   yaml:"per_hour"`
}

// Price returns the charge for hours of use.
func (e RateCardEntry) Price(hours float64) float64 {
	if e.PerHour {
		return e.BasePrice * hours
	}
	return e.BasePrice
}

// RateCard holds both catalogs. It is read-only to pricing.
type RateCard struct {
	Rooms    []RateCardEntry `json:"rooms"    yaml:"rooms"`
	Services []RateCardEntry `json:"services" yaml:"services"`
}

// DefaultRateCard is used when no pricing has been saved.
func DefaultRateCard() RateCard {
	return RateCard{
		Rooms: []RateCardEntry{
			{ID: "studio-a", Name: "Studio A", BasePrice: 50, PerHour: true},
			{ID: "studio-b", Name: "Studio B", BasePrice: 75, PerHour: true},
			{ID: "studio-c", Name: "Studio C", BasePrice: 100, PerHour: true},
		},
		Services: []RateCardEntry{
			{ID: "mixing", Name: "Mixing", BasePrice: 100, PerHour: true},
			{ID: "mastering", Name: "Mastering", BasePrice: 150, PerHour: true},
			{ID: "recording", Name: "Recording", BasePrice: 200, PerHour: true},
		},
	}
}

// Validate rejects negative prices and missing or duplicate ids.
func (c RateCard) Validate() error {
	if err := validateEntries("rooms", c.Rooms); err != nil {
		return err
	}
	return validateEntries("services", c.Services)
}

func validateEntries(kind string, entries []RateCardEntry) error {
	ids := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("%s[%d]: id is required", kind, i)
		}
		if ids[e.ID] {
			return fmt.Errorf("%s[%d]: duplicate id %q", kind, i, e.ID)
		}
		ids[e.ID] = true
		if e.Name == "" {
			return fmt.Errorf("%s[%d]: name is required", kind, i)
		}
		if e.BasePrice < 0 || math.IsNaN(e.BasePrice) || math.IsInf(e.BasePrice, 0) {
			return fmt.Errorf("%s[%d]: base price must be a non-negative number", kind, i)
		}
	}
	return nil
}

// RoomByID looks a room up by id.
func (c RateCard) RoomByID(id string) (RateCardEntry, bool) {
	for _, r := range c.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return RateCardEntry{}, false
}

// ServiceByName looks a service up by its display name.
func (c RateCard) ServiceByName(name string) (RateCardEntry, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s, true
		}
	}
	return RateCardEntry{}, false
}

// DurationHours returns the hours between start and end. An end before the
// start is an overnight booking and an end equal to the start is zero hours.
// The result is never below one hour.
func DurationHours(start, end clock.TimeOfDay) (float64, error) {
	startM, err := clock.ToMinutes(start)
	if err != nil {
		return 0, fmt.Errorf("parse start time: %w", err)
	}
	endM, err := clock.ToMinutes(end)
	if err != nil {
		return 0, fmt.Errorf("parse end time: %w", err)
	}

	var hours float64
	switch {
	case endM == startM:
		hours = 0
	case endM < startM:
		hours = float64(clock.EndOfDay-startM+endM) / 60
	default:
		hours = float64(endM-startM) / 60
	}

	return math.Max(MinDurationHours, hours), nil
}
