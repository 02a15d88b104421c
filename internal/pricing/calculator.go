package pricing

import (
	"fmt"

	"studiobook/internal/clock"
)

// Selection is what the customer picked.
type Selection struct {
	RoomID string `json:"roomId,omitempty"`
	// RoomName overrides the rate card name in the breakdown when set.
	RoomName string   `json:"room,omitempty"`
	Services []string `json:"services,omitempty"`
}

// ServicePrice is one service line of a breakdown.
type ServicePrice struct {
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	PerHour bool    `json:"perHour"`
}

// Breakdown is an itemized estimate. Subtotal and Total are equal until
// discounts or taxes exist.
type Breakdown struct {
	RoomPrice     float64        `json:"roomPrice"`
	RoomName      string         `json:"roomName"`
	RoomPerHour   bool           `json:"roomPerHour"`
	ServicePrices []ServicePrice `json:"servicePrices"`
	DurationHours float64        `json:"durationHours"`
	Subtotal      float64        `json:"subtotal"`
	Total         float64        `json:"total"`
}

// Calculate prices sel for durationHours. Unknown rooms and services are
// skipped rather than reported.
func Calculate(sel Selection, card RateCard, durationHours float64) Breakdown {
	b := Breakdown{
		ServicePrices: []ServicePrice{},
		DurationHours: durationHours,
	}

	var total float64
	if sel.RoomID != "" {
		if room, ok := card.RoomByID(sel.RoomID); ok {
			b.RoomPrice = room.Price(durationHours)
			b.RoomName = room.Name
			if sel.RoomName != "" {
				b.RoomName = sel.RoomName
			}
			b.RoomPerHour = room.PerHour
			total += b.RoomPrice
		}
	}

	for _, name := range sel.Services {
		svc, ok := card.ServiceByName(name)
		if !ok {
			continue
		}
		price := svc.Price(durationHours)
		b.ServicePrices = append(b.ServicePrices, ServicePrice{
			Name:    name,
			Price:   price,
			PerHour: svc.PerHour,
		})
		total += price
	}

	b.Subtotal = total
	b.Total = total
	return b
}

// Quote computes the duration of start..end and prices sel for it.
func Quote(start, end clock.TimeOfDay, sel Selection, card RateCard) (Breakdown, error) {
	hours, err := DurationHours(start, end)
	if err != nil {
		return Breakdown{}, err
	}
	return Calculate(sel, card, hours), nil
}

// FormatAmount renders an amount with two decimals.
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// FormatTotal renders the total as "$300.00".
func (b Breakdown) FormatTotal() string {
	return "$" + FormatAmount(b.Total)
}
