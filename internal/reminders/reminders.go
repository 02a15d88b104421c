// Package reminders sends customers a reminder ahead of approved sessions.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"studiobook/internal/clock"
	"studiobook/internal/metrics"
	"studiobook/internal/model"
	"studiobook/internal/notify"
	"studiobook/internal/repository"

	"github.com/rs/zerolog"
)

// Config holds configuration for the reminder service.
type Config struct {
	// CheckInterval is how often approved bookings are scanned. Default: 15 minutes.
	CheckInterval time.Duration
	// HoursBefore is how long before the session the reminder goes out. Default: 24.
	HoursBefore int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 15 * time.Minute,
		HoursBefore:   24,
	}
}

// BookingStore lists bookings by status.
type BookingStore interface {
	ListBookings(ctx context.Context, status model.Status) ([]*model.Booking, error)
}

// Notifier queues outbound messages.
type Notifier interface {
	Enqueue(msg notify.Message) error
}

const keyPrefix = "reminder:"

// Service scans approved bookings and queues one reminder per booking.
// Sent markers live in the key-value store so restarts do not resend.
type Service struct {
	config   Config
	bookings BookingStore
	sent     repository.Store
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewService(cfg Config, bookings BookingStore, sent repository.Store, notifier Notifier, logger zerolog.Logger) *Service {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 15 * time.Minute
	}
	if cfg.HoursBefore <= 0 {
		cfg.HoursBefore = 24
	}
	return &Service{
		config:   cfg,
		bookings: bookings,
		sent:     sent,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With().Str("component", "reminders").Logger(),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the check loop. It runs one check immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Int("hours_before", s.config.HoursBefore).
		Msg("Reminder service started")
}

// Stop waits for the loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("Reminder service stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	s.CheckNow(ctx)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

// CheckNow queues reminders that are due and returns how many bookings were reminded.
func (s *Service) CheckNow(ctx context.Context) int {
	list, err := s.bookings.ListBookings(ctx, model.StatusApproved)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list approved bookings")
		return 0
	}

	now := s.now()
	lead := time.Duration(s.config.HoursBefore) * time.Hour
	count := 0
	for _, b := range list {
		start, err := SessionStart(b)
		if err != nil {
			s.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("Skipping booking with unreadable start")
			continue
		}
		if now.After(start) || now.Before(start.Add(-lead)) {
			continue
		}
		if s.alreadySent(ctx, b.ID) {
			continue
		}
		if err := s.send(ctx, b, start); err != nil {
			metrics.IncReminder("failed")
			s.logger.Error().Err(err).Str("booking_id", b.ID).Msg("Failed to queue reminder")
			continue
		}
		metrics.IncReminder("queued")
		count++
	}
	return count
}

func (s *Service) alreadySent(ctx context.Context, id string) bool {
	_, err := s.sent.Get(ctx, keyPrefix+id)
	if err == nil {
		return true
	}
	if !errors.Is(err, repository.ErrNotFound) {
		// Unknown state; skip rather than risk a duplicate.
		s.logger.Warn().Err(err).Str("booking_id", id).Msg("Failed to read reminder marker")
		return true
	}
	return false
}

func (s *Service) send(ctx context.Context, b *model.Booking, start time.Time) error {
	msgs := Messages(b)
	if len(msgs) == 0 {
		return fmt.Errorf("booking %s has no contact address", b.ID)
	}
	var errs []error
	for _, msg := range msgs {
		if err := s.notifier.Enqueue(msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(msgs) {
		return errors.Join(errs...)
	}

	// Keep the marker until well after the session.
	ttl := start.Sub(s.now()) + 48*time.Hour
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	if err := s.sent.Set(ctx, keyPrefix+b.ID, []byte(s.now().Format(time.RFC3339)), ttl); err != nil {
		s.logger.Error().Err(err).Str("booking_id", b.ID).Msg("Failed to mark reminder as sent (reminder was queued)")
	}
	s.logger.Info().Str("booking_id", b.ID).Time("session_start", start).Msg("Reminder queued")
	return nil
}

// SessionStart returns the local start time of a booking.
func SessionStart(b *model.Booking) (time.Time, error) {
	day, err := time.ParseInLocation(model.DateLayout, b.Date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", b.Date, err)
	}
	minutes, err := clock.ToMinutes(b.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(minutes) * time.Minute), nil
}

// Text is the reminder body.
func Text(b *model.Booking) string {
	room := b.Room
	if room == "" {
		room = "the studio"
	}
	return fmt.Sprintf("Reminder: your session (booking %s) is on %s from %s to %s in %s.",
		b.ID, b.DisplayDate(), b.StartTime, b.EndTime, room)
}

// Messages builds the email and SMS reminders for b, skipping empty addresses.
func Messages(b *model.Booking) []notify.Message {
	body := Text(b)
	var out []notify.Message
	if b.CustomerEmail != "" {
		out = append(out, notify.Message{
			Channel:   notify.ChannelEmail,
			To:        b.CustomerEmail,
			Subject:   "Your studio session is coming up",
			Body:      body,
			BookingID: b.ID,
		})
	}
	if b.CustomerPhone != "" {
		out = append(out, notify.Message{
			Channel:   notify.ChannelSMS,
			To:        b.CustomerPhone,
			Body:      body,
			BookingID: b.ID,
		})
	}
	return out
}
