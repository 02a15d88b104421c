package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/clock"
	"studiobook/internal/database"
	"studiobook/internal/events"
	"studiobook/internal/metrics"
	"studiobook/internal/model"
	"studiobook/internal/pricing"
	"studiobook/internal/repository"
	"studiobook/internal/settings"
	"studiobook/internal/slots"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound    = errors.New("draft not found")
	ErrInvalidStep = errors.New("step not allowed in current state")
	ErrIncomplete  = errors.New("draft is incomplete")
	ErrUnavailable = errors.New("selected time is not available")
)

const draftKeyPrefix = "draft:"

// SettingsSource supplies the current staff, availability and rate card.
type SettingsSource interface {
	View(ctx context.Context) settings.View
}

// BookingRepository persists submitted bookings.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
}

// Publisher receives booking events.
type Publisher interface {
	Publish(event events.Event) int
}

// Options tune the booking flow.
type Options struct {
	DraftTTL       time.Duration
	MaxAdvanceDays int
}

// Service drives drafts through the booking flow.
type Service struct {
	drafts   repository.Store
	settings SettingsSource
	bookings BookingRepository
	events   Publisher
	fsm      *FSM
	validate *validator.Validate
	opts     Options
	now      func() time.Time
	logger   zerolog.Logger

	submitMu sync.Mutex
}

func NewService(
	drafts repository.Store,
	src SettingsSource,
	bookings BookingRepository,
	pub Publisher,
	opts Options,
	logger zerolog.Logger,
) *Service {
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = 30 * time.Minute
	}
	if opts.MaxAdvanceDays <= 0 {
		opts.MaxAdvanceDays = 90
	}
	return &Service{
		drafts:   drafts,
		settings: src,
		bookings: bookings,
		events:   pub,
		fsm:      NewFSM(),
		validate: NewValidator(),
		opts:     opts,
		now:      time.Now,
		logger:   logger.With().Str("component", "booking").Logger(),
	}
}

// Start opens a new draft at the staff step.
func (s *Service) Start(ctx context.Context) (*Draft, error) {
	now := s.now()
	d := &Draft{
		ID:        uuid.NewString(),
		Step:      StepStaff,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns a draft by id.
func (s *Service) Get(ctx context.Context, id string) (*Draft, error) {
	var d Draft
	if err := repository.GetJSON(ctx, s.drafts, draftKeyPrefix+id, &d); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load draft: %w", err)
	}
	return &d, nil
}

// Cancel discards a draft.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, draftKeyPrefix+id)
}

// Back moves the draft to the previous step, keeping its selections.
func (s *Service) Back(ctx context.Context, id string) (*Draft, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev, ok := s.fsm.Prev(d.Step)
	if !ok {
		return nil, fmt.Errorf("%w: cannot go back from %s", ErrInvalidStep, d.Step)
	}
	d.Step = prev
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SetStaff completes the staff step.
func (s *Service) SetStaff(ctx context.Context, id string, in StaffInput) (*Draft, error) {
	return s.apply(ctx, id, StepStaff, func(d *Draft, view settings.View) error {
		if err := Validate(s.validate, in); err != nil {
			return err
		}
		member, ok := model.FindStaff(view.Staff, in.StaffID)
		if !ok {
			return fieldError("staffId", fmt.Sprintf("unknown staff %q", in.StaffID))
		}
		for _, name := range in.Services {
			if _, ok := view.RateCard.ServiceByName(name); !ok {
				return fieldError("services", fmt.Sprintf("unknown service %q", name))
			}
		}
		d.StaffID = member.ID
		d.Staff = member.Name
		d.Services = append([]string(nil), in.Services...)
		return nil
	})
}

// SetTime completes the time step after checking the window against availability.
func (s *Service) SetTime(ctx context.Context, id string, in TimeInput) (*Draft, error) {
	return s.apply(ctx, id, StepTime, func(d *Draft, view settings.View) error {
		if err := Validate(s.validate, in); err != nil {
			return err
		}
		start, end := clock.TimeOfDay(in.StartTime), clock.TimeOfDay(in.EndTime)
		if err := s.checkWindow(in.Date, start, end, view); err != nil {
			return err
		}
		d.Date = in.Date
		d.StartTime = start
		d.EndTime = end
		return nil
	})
}

// SetRoom completes the room step.
func (s *Service) SetRoom(ctx context.Context, id string, in RoomInput) (*Draft, error) {
	return s.apply(ctx, id, StepRoom, func(d *Draft, view settings.View) error {
		if err := Validate(s.validate, in); err != nil {
			return err
		}
		room, ok := view.RateCard.RoomByID(in.RoomID)
		if !ok {
			return fieldError("roomId", fmt.Sprintf("unknown room %q", in.RoomID))
		}
		d.RoomID = room.ID
		d.Room = room.Name
		return nil
	})
}

// SetContact completes the contact step and moves the draft to confirmation.
func (s *Service) SetContact(ctx context.Context, id string, in ContactInput) (*Draft, error) {
	in.normalize()
	return s.apply(ctx, id, StepContact, func(d *Draft, _ settings.View) error {
		if err := Validate(s.validate, in); err != nil {
			return err
		}
		d.CustomerName = in.Name
		d.CustomerEmail = in.Email
		d.CustomerPhone = in.Phone
		return nil
	})
}

// Quote prices the draft's current selections.
func (s *Service) Quote(ctx context.Context, id string) (pricing.Breakdown, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	if !d.HasTime() {
		return pricing.Breakdown{}, fmt.Errorf("%w: time not selected", ErrIncomplete)
	}
	return pricing.Quote(d.StartTime, d.EndTime, d.Selection(), s.settings.View(ctx).RateCard)
}

// Submit converts a confirmed draft into a pending booking. Submitting an
// already submitted draft returns the same booking.
//
// The booking id is saved on the draft before the insert, so a retry after a
// partial failure finds the stored booking instead of creating a second one.
func (s *Service) Submit(ctx context.Context, id string) (*model.Booking, error) {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.Step == StepSubmitted {
		return s.bookings.GetBooking(ctx, d.BookingID)
	}
	if d.Step != StepConfirm || !d.complete() {
		return nil, fmt.Errorf("%w: draft is at step %s", ErrIncomplete, d.Step)
	}
	if d.BookingID != "" {
		if b, err := s.bookings.GetBooking(ctx, d.BookingID); err == nil {
			s.markSubmitted(ctx, d)
			return b, nil
		}
	}

	view := s.settings.View(ctx)
	if err := s.checkWindow(d.Date, d.StartTime, d.EndTime, view); err != nil {
		return nil, err
	}

	price, err := pricing.Quote(d.StartTime, d.EndTime, d.Selection(), view.RateCard)
	if err != nil {
		return nil, fmt.Errorf("price booking: %w", err)
	}

	now := s.now()
	if d.BookingID == "" {
		d.BookingID = NewBookingID(now)
		if err := s.save(ctx, d); err != nil {
			return nil, err
		}
	}

	b := d.toBooking(d.BookingID, price, now)
	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		if !errors.Is(err, database.ErrDuplicateID) {
			return nil, fmt.Errorf("create booking: %w", err)
		}
		existing, getErr := s.bookings.GetBooking(ctx, d.BookingID)
		if getErr != nil {
			return nil, fmt.Errorf("create booking: %w", err)
		}
		s.markSubmitted(ctx, d)
		return existing, nil
	}

	s.markSubmitted(ctx, d)

	metrics.IncBookingSubmitted()
	if s.events != nil {
		s.events.Publish(events.Event{Type: events.BookingSubmitted, Booking: *b, CreatedAt: now})
	}

	s.logger.Info().
		Str("booking_id", b.ID).
		Str("date", b.Date).
		Str("start", b.StartTime.String()).
		Str("end", b.EndTime.String()).
		Str("total", b.Price.FormatTotal()).
		Msg("Booking submitted")
	return b, nil
}

func (s *Service) markSubmitted(ctx context.Context, d *Draft) {
	d.Step = StepSubmitted
	if err := s.save(ctx, d); err != nil {
		s.logger.Warn().Err(err).Str("draft_id", d.ID).Str("booking_id", d.BookingID).Msg("Failed to mark draft submitted")
	}
}

// NewBookingID returns "BK-<unix millis>-<8 hex chars>".
func NewBookingID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("BK-%d-%s", now.UnixMilli(), suffix)
}

func (s *Service) save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = s.now()
	if err := repository.SetJSON(ctx, s.drafts, draftKeyPrefix+d.ID, d, s.opts.DraftTTL); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, id string, step Step, fn func(*Draft, settings.View) error) (*Draft, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Step != step {
		return nil, fmt.Errorf("%w: draft is at step %s, not %s", ErrInvalidStep, d.Step, step)
	}
	next, ok := s.fsm.Next(step)
	if !ok || !s.fsm.CanTransition(step, next) {
		return nil, fmt.Errorf("%w: no step after %s", ErrInvalidStep, step)
	}

	if err := fn(d, s.settings.View(ctx)); err != nil {
		return nil, err
	}

	d.Step = next
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// checkWindow verifies date, start and end against the current availability.
func (s *Service) checkWindow(date string, start, end clock.TimeOfDay, view settings.View) error {
	day, err := time.ParseInLocation(model.DateLayout, date, time.Local)
	if err != nil {
		return fieldError("date", "date must be in YYYY-MM-DD format")
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	if day.Before(today) {
		return fieldError("date", "date is in the past")
	}
	if day.After(today.AddDate(0, 0, s.opts.MaxAdvanceDays)) {
		return fieldError("date", fmt.Sprintf("date is more than %d days ahead", s.opts.MaxAdvanceDays))
	}

	available, err := availability.Resolve(day, view.Availability, view.BookedOut)
	if err != nil {
		metrics.IncAvailabilityLookup("error")
		return fmt.Errorf("resolve availability: %w", err)
	}
	if len(available) == 0 {
		metrics.IncAvailabilityLookup("closed")
		return fmt.Errorf("%w: no slots on %s", ErrUnavailable, date)
	}
	metrics.IncAvailabilityLookup("open")

	if !containsTime(available, start) {
		return fmt.Errorf("%w: start %s", ErrUnavailable, start)
	}
	if !slots.IsValidEnd(start, end, available) {
		return fmt.Errorf("%w: end %s must be at least %d minutes after %s", ErrUnavailable, end, slots.MinBookingMinutes, start)
	}
	return nil
}

func containsTime(list []clock.TimeOfDay, t clock.TimeOfDay) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
