package events

import (
	"sync"
	"time"

	"studiobook/internal/model"

	"github.com/rs/zerolog"
)

// Type names a booking lifecycle event.
type Type string

const (
	BookingSubmitted Type = "booking.submitted"
	BookingApproved  Type = "booking.approved"
	BookingRejected  Type = "booking.rejected"
)

// Event is a booking lifecycle event. Booking is a copy taken at publish time.
type Event struct {
	Type      Type
	Booking   model.Booking
	Method    model.NotifyMethod
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for booking events.
type EventBus struct {
	subscribers map[Type][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[Type][]EventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType Type, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns how many handlers failed.
func (b *EventBus) Publish(event Event) int {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	failed := 0
	for _, handler := range handlers {
		// Handlers run synchronously; slow work belongs in the handler's own queue.
		if err := handler(event); err != nil {
			failed++
			if b.logger != nil {
				b.logger.Warn().Err(err).
					Str("event", string(event.Type)).
					Str("booking_id", event.Booking.ID).
					Msg("Event handler failed")
			}
		}
	}
	return failed
}
