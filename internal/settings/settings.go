// Package settings supplies the slot configuration, rate cards, staff and
// booked-out dates to the engine as immutable snapshots.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/config"
	"studiobook/internal/model"
	"studiobook/internal/pricing"
	"studiobook/internal/repository"

	"github.com/rs/zerolog"
)

// Store keys.
const (
	KeySlotConfig = "settings:slot_config"
	KeyRateCard   = "settings:rate_card"
	KeyBookedOut  = "settings:booked_out_dates"
)

// View is everything a booking needs to resolve availability and price.
type View struct {
	Staff        []model.StaffMember
	Availability availability.Snapshot
	BookedOut    availability.DateSet
	RateCard     pricing.RateCard
}

// Service reads admin-saved settings from the store, falling back to the
// studio.yaml seed and then to built-in defaults.
type Service struct {
	store  repository.Store
	seed   atomic.Pointer[config.StudioConfig]
	logger zerolog.Logger

	// editMu serializes read-modify-write of the slot configuration.
	editMu sync.Mutex
}

func NewService(store repository.Store, seed *config.StudioConfig, logger zerolog.Logger) *Service {
	s := &Service{
		store:  store,
		logger: logger.With().Str("component", "settings").Logger(),
	}
	s.SetSeed(seed)
	return s
}

// SetSeed replaces the studio.yaml seed. A nil seed restores built-in defaults.
func (s *Service) SetSeed(seed *config.StudioConfig) {
	if seed == nil {
		seed = config.DefaultStudioConfig()
	}
	s.seed.Store(seed)
}

func (s *Service) seedConfig() *config.StudioConfig {
	return s.seed.Load()
}

// View returns the current settings.
func (s *Service) View(ctx context.Context) View {
	return View{
		Staff:        s.Staff(),
		Availability: s.Snapshot(ctx),
		BookedOut:    availability.NewDateSet(s.BookedOutDates(ctx)...),
		RateCard:     s.RateCard(ctx),
	}
}

// Staff returns the bookable staff roster.
func (s *Service) Staff() []model.StaffMember {
	return s.seedConfig().Staff
}

// Snapshot returns the slot configuration. Read or decode failures yield the seed.
func (s *Service) Snapshot(ctx context.Context) availability.Snapshot {
	var snap availability.Snapshot
	if s.load(ctx, KeySlotConfig, &snap) {
		if snap.DayConfigs == nil {
			snap.DayConfigs = map[string]availability.DayConfig{}
		}
		if snap.DateConfigs == nil {
			snap.DateConfigs = map[string]availability.DayConfig{}
		}
		return snap
	}
	return s.seedConfig().Availability.Clone()
}

// SaveSnapshot validates and stores the slot configuration.
func (s *Service) SaveSnapshot(ctx context.Context, snap availability.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	return s.save(ctx, KeySlotConfig, snap)
}

// EditSnapshot applies fn to the current slot configuration and stores the
// result. Edits run one at a time.
func (s *Service) EditSnapshot(ctx context.Context, fn func(*availability.Editor) error) (availability.Snapshot, error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	ed := availability.NewEditor(s.Snapshot(ctx))
	if err := fn(ed); err != nil {
		return availability.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	snap, err := ed.Snapshot()
	if err != nil {
		return availability.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.save(ctx, KeySlotConfig, snap); err != nil {
		return availability.Snapshot{}, err
	}
	return snap, nil
}

// RateCard returns the room and service prices.
func (s *Service) RateCard(ctx context.Context) pricing.RateCard {
	var card pricing.RateCard
	if s.load(ctx, KeyRateCard, &card) {
		return card
	}
	return s.seedConfig().RateCard
}

// SaveRateCard validates and stores the rate card.
func (s *Service) SaveRateCard(ctx context.Context, card pricing.RateCard) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return s.save(ctx, KeyRateCard, card)
}

// BookedOutDates returns the sorted booked-out dates.
func (s *Service) BookedOutDates(ctx context.Context) []string {
	var dates []string
	if s.load(ctx, KeyBookedOut, &dates) {
		return dates
	}
	return append([]string(nil), s.seedConfig().BookedOutDates...)
}

// SaveBookedOutDates validates, de-duplicates and stores the booked-out dates.
func (s *Service) SaveBookedOutDates(ctx context.Context, dates []string) error {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if _, err := time.Parse(availability.DateLayout, d); err != nil {
			return fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrInvalid, d)
		}
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return s.save(ctx, KeyBookedOut, out)
}

// ErrInvalid wraps validation failures of saved settings.
var ErrInvalid = errors.New("invalid settings")

func (s *Service) load(ctx context.Context, key string, out any) bool {
	err := repository.GetJSON(ctx, s.store, key, out)
	switch {
	case err == nil:
		return true
	case errors.Is(err, repository.ErrNotFound):
	default:
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to load settings, using defaults")
	}
	return false
}

func (s *Service) save(ctx context.Context, key string, val any) error {
	if err := repository.SetJSON(ctx, s.store, key, val, 0); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	s.logger.Info().Str("key", key).Msg("Settings saved")
	return nil
}
