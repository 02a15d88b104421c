package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.True(t, StatusPendingApproval.Valid())
	assert.False(t, StatusPendingApproval.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, Status("canceled").Valid())
}

func TestBooking_DisplayDate(t *testing.T) {
	b := Booking{Date: "2025-11-03"}
	assert.Equal(t, "Monday, November 3, 2025", b.DisplayDate())

	b.Date = "soon"
	assert.Equal(t, "soon", b.DisplayDate())
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in     string
		want   Filter
		status Status
		ok     bool
	}{
		{"", FilterPending, StatusPendingApproval, true},
		{"all", FilterAll, "", true},
		{"pending", FilterPending, StatusPendingApproval, true},
		{"approved", FilterApproved, StatusApproved, true},
		{"rejected", FilterRejected, StatusRejected, true},
		{"pending_approval", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, ok := ParseFilter(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, f)
			assert.Equal(t, tt.status, f.Status())
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	approved := &Booking{Status: StatusApproved}
	assert.True(t, FilterAll.Matches(approved))
	assert.True(t, FilterApproved.Matches(approved))
	assert.False(t, FilterPending.Matches(approved))
}

func TestCount(t *testing.T) {
	now := time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC)
	bookings := []*Booking{
		{Status: StatusPendingApproval, CreatedAt: now.Add(-time.Hour)},
		{Status: StatusPendingApproval, CreatedAt: now.AddDate(0, 0, -1)},
		{Status: StatusApproved, CreatedAt: now.Add(-2 * time.Hour)},
		{Status: StatusRejected, CreatedAt: now.AddDate(0, -1, 0)},
	}

	assert.Equal(t, Stats{Total: 4, Pending: 2, Approved: 1, Rejected: 1, Today: 2}, Count(bookings, now))
	assert.Equal(t, Stats{}, Count(nil, now))
}

func TestFindStaff(t *testing.T) {
	s, ok := FindStaff(DefaultStaff(), "as-if")
	assert.True(t, ok)
	assert.Equal(t, "AS IF!", s.Name)

	_, ok = FindStaff(DefaultStaff(), "nobody")
	assert.False(t, ok)
}

func TestParseNotifyMethod(t *testing.T) {
	m, ok := ParseNotifyMethod("")
	assert.True(t, ok)
	assert.Equal(t, NotifyBoth, m)
	assert.True(t, m.Email())
	assert.True(t, m.SMS())

	m, ok = ParseNotifyMethod("email")
	assert.True(t, ok)
	assert.True(t, m.Email())
	assert.False(t, m.SMS())

	_, ok = ParseNotifyMethod("pigeon")
	assert.False(t, ok)
}
