package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"studiobook/internal/database"
	"studiobook/internal/events"
	"studiobook/internal/metrics"
	"studiobook/internal/model"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound       = errors.New("booking not found")
	ErrAlreadyDecided = errors.New("booking already decided")
	ErrNoteRequired   = errors.New("a note is required to reject a booking")
)

// BookingRepository provides booking operations.
type BookingRepository interface {
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, status model.Status) ([]*model.Booking, error)
	DecideBooking(ctx context.Context, id string, status model.Status, note string, at time.Time) error
}

// Publisher receives booking events.
type Publisher interface {
	Publish(event events.Event) int
}

// Service provides admin operations over submitted bookings.
type Service struct {
	bookings BookingRepository
	events   Publisher
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a new manager service.
func NewService(bookings BookingRepository, pub Publisher, logger zerolog.Logger) *Service {
	return &Service{
		bookings: bookings,
		events:   pub,
		now:      time.Now,
		logger:   logger.With().Str("component", "manager").Logger(),
	}
}

// ListBookings returns bookings matching filter, newest first.
func (s *Service) ListBookings(ctx context.Context, filter model.Filter) ([]*model.Booking, error) {
	return s.bookings.ListBookings(ctx, filter.Status())
}

// GetBooking returns a booking by ID.
func (s *Service) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return b, nil
}

// Dashboard returns booking counters for the admin overview.
func (s *Service) Dashboard(ctx context.Context) (model.Stats, error) {
	all, err := s.bookings.ListBookings(ctx, "")
	if err != nil {
		return model.Stats{}, err
	}
	return model.Count(all, s.now()), nil
}

// ApproveBooking approves a pending booking and notifies the customer.
func (s *Service) ApproveBooking(ctx context.Context, id, note string, method model.NotifyMethod) (*model.Booking, error) {
	return s.decide(ctx, id, model.StatusApproved, strings.TrimSpace(note), method)
}

// RejectBooking rejects a pending booking. A note explaining why is required.
func (s *Service) RejectBooking(ctx context.Context, id, note string, method model.NotifyMethod) (*model.Booking, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrNoteRequired
	}
	return s.decide(ctx, id, model.StatusRejected, note, method)
}

func (s *Service) decide(ctx context.Context, id string, status model.Status, note string, method model.NotifyMethod) (*model.Booking, error) {
	if method == "" {
		method = model.NotifyBoth
	}

	now := s.now()
	if err := s.bookings.DecideBooking(ctx, id, status, note, now); err != nil {
		return nil, mapErr(err)
	}

	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload booking: %w", mapErr(err))
	}

	metrics.IncAdminDecision(string(status))
	s.logger.Info().
		Str("booking_id", id).
		Str("status", string(status)).
		Str("notify", string(method)).
		Msg("Booking decided")

	// Notification is fire-and-forget; a failed send does not undo the decision.
	if s.events != nil {
		evType := events.BookingApproved
		if status == model.StatusRejected {
			evType = events.BookingRejected
		}
		if failed := s.events.Publish(events.Event{Type: evType, Booking: *b, Method: method, CreatedAt: now}); failed > 0 {
			s.logger.Warn().Str("booking_id", id).Int("failed", failed).Msg("Some notifications were not queued")
		}
	}

	return b, nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, database.ErrStatusConflict):
		return fmt.Errorf("%w: %v", ErrAlreadyDecided, err)
	}
	return err
}
