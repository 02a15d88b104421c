package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"studiobook/internal/database"
	"studiobook/internal/events"
	"studiobook/internal/model"
	"studiobook/internal/repository"
	"studiobook/internal/settings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memBookings struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
}

func newMemBookings() *memBookings {
	return &memBookings{bookings: make(map[string]*model.Booking)}
}

func (m *memBookings) CreateBooking(_ context.Context, b *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; ok {
		return database.ErrDuplicateID
	}
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *memBookings) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(event events.Event) int {
	args := m.Called(event)
	return args.Int(0)
}

// Monday, November 3, 2025 at 10:00 local time.
var testNow = time.Date(2025, 11, 3, 10, 0, 0, 0, time.Local)

type fixture struct {
	svc      *Service
	settings *settings.Service
	bookings *memBookings
	pub      *mockPublisher
}

func newFixture(t *testing.T, drafts repository.Store) *fixture {
	t.Helper()
	if drafts == nil {
		drafts = repository.NewMemoryStore()
	}
	st := settings.NewService(repository.NewMemoryStore(), nil, zerolog.Nop())
	bookings := newMemBookings()
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything).Return(0).Maybe()

	svc := NewService(drafts, st, bookings, pub, Options{MaxAdvanceDays: 30}, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return &fixture{svc: svc, settings: st, bookings: bookings, pub: pub}
}

func validTime() TimeInput {
	return TimeInput{Date: "2025-11-04", StartTime: "9:00 AM", EndTime: "11:00 AM"}
}

func validContact() ContactInput {
	return ContactInput{Name: "Jane Doe", Email: "jane@example.com", Phone: "123-456-7890"}
}

// toConfirm walks a new draft to the confirm step.
func (f *fixture) toConfirm(t *testing.T) *Draft {
	t.Helper()
	ctx := context.Background()

	d, err := f.svc.Start(ctx)
	require.NoError(t, err)
	_, err = f.svc.SetStaff(ctx, d.ID, StaffInput{StaffID: "tt", Services: []string{"Mixing"}})
	require.NoError(t, err)
	_, err = f.svc.SetTime(ctx, d.ID, validTime())
	require.NoError(t, err)
	_, err = f.svc.SetRoom(ctx, d.ID, RoomInput{RoomID: "studio-a"})
	require.NoError(t, err)
	d, err = f.svc.SetContact(ctx, d.ID, validContact())
	require.NoError(t, err)
	require.Equal(t, StepConfirm, d.Step)
	return d
}

func TestService_FullFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	d := f.toConfirm(t)
	assert.Equal(t, "TT", d.Staff)
	assert.Equal(t, "Studio A", d.Room)

	quote, err := f.svc.Quote(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "$300.00", quote.FormatTotal())

	b, err := f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b.ID, fmt.Sprintf("BK-%d-", testNow.UnixMilli())))
	assert.Equal(t, model.StatusPendingApproval, b.Status)
	assert.Equal(t, 300.0, b.Price.Total)
	assert.Equal(t, 2.0, b.Price.DurationHours)
	assert.Equal(t, "jane@example.com", b.CustomerEmail)
	assert.Equal(t, testNow, b.CreatedAt)

	f.pub.AssertCalled(t, "Publish", mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.BookingSubmitted && e.Booking.ID == b.ID
	}))

	stored, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StepSubmitted, stored.Step)
	assert.Equal(t, b.ID, stored.BookingID)

	again, err := f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)
	f.pub.AssertNumberOfCalls(t, "Publish", 1)
}

// failingSubmitStore rejects the write that marks a draft submitted.
type failingSubmitStore struct {
	*repository.MemoryStore
	mu    sync.Mutex
	fails int
}

func (s *failingSubmitStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 && strings.Contains(string(value), `"step":"submitted"`) {
		s.fails--
		return errors.New("store unavailable")
	}
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func TestService_SubmitConcurrent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := f.toConfirm(t)

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := f.svc.Submit(ctx, d.ID)
			if assert.NoError(t, err) {
				ids[i] = b.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, f.bookings.bookings, 1)
	f.pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestService_SubmitRetryAfterSaveFailure(t *testing.T) {
	drafts := &failingSubmitStore{MemoryStore: repository.NewMemoryStore(), fails: 1}
	f := newFixture(t, drafts)
	ctx := context.Background()
	d := f.toConfirm(t)

	first, err := f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, stored.Step)
	assert.Equal(t, first.ID, stored.BookingID)

	again, err := f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, f.bookings.bookings, 1)
	f.pub.AssertNumberOfCalls(t, "Publish", 1)

	stored, err = f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StepSubmitted, stored.Step)
}

func TestService_SubmitReservedIDAlreadyStored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	d := f.toConfirm(t)

	// A booking row with the draft's reserved id exists from an earlier attempt.
	d.BookingID = "BK-1-deadbeef"
	require.NoError(t, f.svc.save(ctx, d))
	require.NoError(t, f.bookings.CreateBooking(ctx, &model.Booking{ID: d.BookingID, Status: model.StatusPendingApproval}))

	b, err := f.svc.Submit(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "BK-1-deadbeef", b.ID)
	assert.Len(t, f.bookings.bookings, 1)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestNewBookingID(t *testing.T) {
	id := NewBookingID(time.UnixMilli(1762160400000))
	assert.Regexp(t, `^BK-1762160400000-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, NewBookingID(time.UnixMilli(1762160400000)))
}

func TestService_StepOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	d, err := f.svc.Start(ctx)
	require.NoError(t, err)

	_, err = f.svc.SetTime(ctx, d.ID, validTime())
	assert.ErrorIs(t, err, ErrInvalidStep)

	_, err = f.svc.Back(ctx, d.ID)
	assert.ErrorIs(t, err, ErrInvalidStep)

	_, err = f.svc.Submit(ctx, d.ID)
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = f.svc.Quote(ctx, d.ID)
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = f.svc.SetStaff(ctx, d.ID, StaffInput{StaffID: "naif"})
	require.NoError(t, err)

	back, err := f.svc.Back(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StepStaff, back.Step)
	assert.Equal(t, "naif", back.StaffID, "going back keeps selections")

	_, err = f.svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SetStaffValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input StaffInput
		field string
	}{
		{"missing staff", StaffInput{}, "staffId"},
		{"unknown staff", StaffInput{StaffID: "nobody"}, "staffId"},
		{"unknown service", StaffInput{StaffID: "tt", Services: []string{"Karaoke"}}, "services"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.svc.Start(ctx)
			require.NoError(t, err)

			_, err = f.svc.SetStaff(ctx, d.ID, tt.input)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestService_SetTimeValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.settings.SaveBookedOutDates(ctx, []string{"2025-11-05"}))

	tests := []struct {
		name        string
		input       TimeInput
		unavailable bool
	}{
		{"end too soon", TimeInput{Date: "2025-11-04", StartTime: "9:00 AM", EndTime: "9:30 AM"}, true},
		{"start before opening", TimeInput{Date: "2025-11-04", StartTime: "7:00 AM", EndTime: "9:00 AM"}, true},
		{"booked out", TimeInput{Date: "2025-11-05", StartTime: "9:00 AM", EndTime: "11:00 AM"}, true},
		{"past date", TimeInput{Date: "2025-11-02", StartTime: "9:00 AM", EndTime: "11:00 AM"}, false},
		{"too far ahead", TimeInput{Date: "2026-01-10", StartTime: "9:00 AM", EndTime: "11:00 AM"}, false},
		{"quarter hour", TimeInput{Date: "2025-11-04", StartTime: "9:15 AM", EndTime: "11:00 AM"}, false},
		{"bad date", TimeInput{Date: "11/04/2025", StartTime: "9:00 AM", EndTime: "11:00 AM"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.svc.Start(ctx)
			require.NoError(t, err)
			_, err = f.svc.SetStaff(ctx, d.ID, StaffInput{StaffID: "tt"})
			require.NoError(t, err)

			_, err = f.svc.SetTime(ctx, d.ID, tt.input)
			require.Error(t, err)
			if tt.unavailable {
				assert.ErrorIs(t, err, ErrUnavailable)
				return
			}
			var verrs ValidationErrors
			assert.ErrorAs(t, err, &verrs)

			stored, err := f.svc.Get(ctx, d.ID)
			require.NoError(t, err)
			assert.Equal(t, StepTime, stored.Step, "failed input does not advance the draft")
		})
	}
}

func TestService_SetContactValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   ContactInput
		field   string
		message string
	}{
		{"blank name", ContactInput{Name: "  ", Email: "jane@example.com", Phone: "123-456-7890"}, "name", "Name is required"},
		{"missing email", ContactInput{Name: "Jane", Phone: "123-456-7890"}, "email", "Email is required"},
		{"bad email", ContactInput{Name: "Jane", Email: "jane@example", Phone: "123-456-7890"}, "email", "Invalid email format"},
		{"missing phone", ContactInput{Name: "Jane", Email: "jane@example.com"}, "phone", "Phone number is required"},
		{"bad phone", ContactInput{Name: "Jane", Email: "jane@example.com", Phone: "12345"}, "phone", "Invalid phone format (e.g., 123-456-7890)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.svc.Start(ctx)
			require.NoError(t, err)
			_, err = f.svc.SetStaff(ctx, d.ID, StaffInput{StaffID: "tt"})
			require.NoError(t, err)
			_, err = f.svc.SetTime(ctx, d.ID, validTime())
			require.NoError(t, err)
			_, err = f.svc.SetRoom(ctx, d.ID, RoomInput{RoomID: "studio-b"})
			require.NoError(t, err)

			_, err = f.svc.SetContact(ctx, d.ID, tt.input)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
			assert.Equal(t, tt.message, verrs[0].Message)
		})
	}

	for _, phone := range []string{"(123) 456-7890", "123.456.7890", "1234567890"} {
		assert.True(t, phoneRegex.MatchString(phone), phone)
	}
}

func TestService_SubmitRechecksAvailability(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	d := f.toConfirm(t)
	require.NoError(t, f.settings.SaveBookedOutDates(ctx, []string{"2025-11-04"}))

	_, err := f.svc.Submit(ctx, d.ID)
	assert.ErrorIs(t, err, ErrUnavailable)
	f.pub.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestService_DraftExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, repository.NewRedisStore(client, "studiobook:"))
	ctx := context.Background()

	d, err := f.svc.Start(ctx)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, d.ID)
	require.NoError(t, err)

	mr.FastForward(31 * time.Minute)
	_, err = f.svc.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	d, err := f.svc.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(ctx, d.ID))
	assert.ErrorIs(t, f.svc.Cancel(ctx, d.ID), ErrNotFound)
}

func TestFSM(t *testing.T) {
	fsm := NewFSM()

	tests := []struct {
		name        string
		from        Step
		to          Step
		shouldAllow bool
	}{
		{"staff to time", StepStaff, StepTime, true},
		{"time to room", StepTime, StepRoom, true},
		{"room to contact", StepRoom, StepContact, true},
		{"contact to confirm", StepContact, StepConfirm, true},
		{"confirm to submitted", StepConfirm, StepSubmitted, true},
		{"time back to staff", StepTime, StepStaff, true},
		{"confirm back to contact", StepConfirm, StepContact, true},
		{"staff to confirm", StepStaff, StepConfirm, false},
		{"submitted to confirm", StepSubmitted, StepConfirm, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shouldAllow, fsm.CanTransition(tt.from, tt.to))
		})
	}

	_, ok := fsm.Prev(StepStaff)
	assert.False(t, ok)
	_, ok = fsm.Next(StepSubmitted)
	assert.False(t, ok)

	step, ok := ParseStep("room")
	assert.True(t, ok)
	assert.Equal(t, StepRoom, step)
	_, ok = ParseStep("confirm")
	assert.False(t, ok)
}
