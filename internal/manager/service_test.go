package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"studiobook/internal/database"
	"studiobook/internal/events"
	"studiobook/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*model.Booking)
	return b, args.Error(1)
}

func (m *mockRepo) ListBookings(ctx context.Context, status model.Status) ([]*model.Booking, error) {
	args := m.Called(ctx, status)
	list, _ := args.Get(0).([]*model.Booking)
	return list, args.Error(1)
}

func (m *mockRepo) DecideBooking(ctx context.Context, id string, status model.Status, note string, at time.Time) error {
	args := m.Called(ctx, id, status, note, at)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(event events.Event) int {
	args := m.Called(event)
	return args.Int(0)
}

var testNow = time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC)

func newTestService(repo *mockRepo, pub *mockPublisher) *Service {
	svc := NewService(repo, pub, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestApproveBooking(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	pub := new(mockPublisher)

	approved := &model.Booking{ID: "BK-1", Status: model.StatusApproved, DecidedAt: &testNow}
	repo.On("DecideBooking", ctx, "BK-1", model.StatusApproved, "", testNow).Return(nil)
	repo.On("GetBooking", ctx, "BK-1").Return(approved, nil)
	pub.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.BookingApproved && e.Method == model.NotifyBoth && e.Booking.ID == "BK-1"
	})).Return(0)

	b, err := newTestService(repo, pub).ApproveBooking(ctx, "BK-1", "  ", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, b.Status)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRejectBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("requires note", func(t *testing.T) {
		repo := new(mockRepo)
		pub := new(mockPublisher)

		_, err := newTestService(repo, pub).RejectBooking(ctx, "BK-1", " ", model.NotifyEmail)
		assert.ErrorIs(t, err, ErrNoteRequired)
		repo.AssertNotCalled(t, "DecideBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		pub.AssertNotCalled(t, "Publish", mock.Anything)
	})

	t.Run("rejects with note", func(t *testing.T) {
		repo := new(mockRepo)
		pub := new(mockPublisher)

		rejected := &model.Booking{ID: "BK-2", Status: model.StatusRejected, AdminNote: "Fully booked"}
		repo.On("DecideBooking", ctx, "BK-2", model.StatusRejected, "Fully booked", testNow).Return(nil)
		repo.On("GetBooking", ctx, "BK-2").Return(rejected, nil)
		pub.On("Publish", mock.MatchedBy(func(e events.Event) bool {
			return e.Type == events.BookingRejected && e.Method == model.NotifySMS
		})).Return(1)

		b, err := newTestService(repo, pub).RejectBooking(ctx, "BK-2", "Fully booked ", model.NotifySMS)
		require.NoError(t, err, "notification failures do not fail the decision")
		assert.Equal(t, "Fully booked", b.AdminNote)
		pub.AssertExpectations(t)
	})
}

func TestDecideErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		repoErr error
		want    error
	}{
		{"unknown booking", database.ErrNotFound, ErrNotFound},
		{"already decided", database.ErrStatusConflict, ErrAlreadyDecided},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockRepo)
			pub := new(mockPublisher)
			repo.On("DecideBooking", ctx, "BK-9", model.StatusApproved, "", testNow).Return(tt.repoErr)

			_, err := newTestService(repo, pub).ApproveBooking(ctx, "BK-9", "", model.NotifyEmail)
			assert.ErrorIs(t, err, tt.want)
			pub.AssertNotCalled(t, "Publish", mock.Anything)
		})
	}

	repo := new(mockRepo)
	repo.On("DecideBooking", ctx, "BK-9", model.StatusApproved, "", testNow).Return(errors.New("disk I/O error"))
	_, err := newTestService(repo, new(mockPublisher)).ApproveBooking(ctx, "BK-9", "", model.NotifyEmail)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestListAndDashboard(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)

	all := []*model.Booking{
		{ID: "BK-3", Status: model.StatusPendingApproval, CreatedAt: testNow.Add(-time.Hour)},
		{ID: "BK-2", Status: model.StatusApproved, CreatedAt: testNow.AddDate(0, 0, -2)},
		{ID: "BK-1", Status: model.StatusRejected, CreatedAt: testNow.AddDate(0, 0, -3)},
	}
	repo.On("ListBookings", ctx, model.Status("")).Return(all, nil)
	repo.On("ListBookings", ctx, model.StatusPendingApproval).Return(all[:1], nil)

	svc := newTestService(repo, nil)

	pending, err := svc.ListBookings(ctx, model.FilterPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	everything, err := svc.ListBookings(ctx, model.FilterAll)
	require.NoError(t, err)
	assert.Len(t, everything, 3)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 3, Pending: 1, Approved: 1, Rejected: 1, Today: 1}, stats)

	repo.On("GetBooking", ctx, "nope").Return(nil, database.ErrNotFound)
	_, err = svc.GetBooking(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
