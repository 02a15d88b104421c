package export

import (
	"bytes"
	"testing"
	"time"

	"studiobook/internal/clock"
	"studiobook/internal/model"
	"studiobook/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteBookings(t *testing.T) {
	created := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	decided := created.Add(2 * time.Hour)
	bookings := []*model.Booking{
		{
			ID:            "BK-2",
			Status:        model.StatusApproved,
			Date:          "2025-11-04",
			StartTime:     clock.MustParse("9:00 AM"),
			EndTime:       clock.MustParse("11:00 AM"),
			Room:          "Studio A",
			Staff:         "TT",
			Services:      []string{"Mixing", "Mastering"},
			CustomerName:  "Jane Doe",
			CustomerEmail: "jane@example.com",
			CustomerPhone: "123-456-7890",
			Price:         pricing.Breakdown{DurationHours: 2, Total: 600},
			CreatedAt:     created,
			DecidedAt:     &decided,
		},
		{ID: "BK-1", Status: model.StatusPendingApproval, CreatedAt: created},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBookings(&buf, bookings, model.Stats{Total: 2, Pending: 1, Approved: 1}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Bookings", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, bookingColumns, rows[0])
	assert.Equal(t, "BK-2", rows[1][0])
	assert.Equal(t, "Mixing, Mastering", rows[1][8])
	assert.Equal(t, "600", rows[1][12])
	assert.Equal(t, "2025-11-03 11:30:00", rows[1][15])
	assert.Equal(t, "pending_approval", rows[2][1])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Total", "2"}, summary[1])
}

func TestWriter_NoSheet(t *testing.T) {
	w := NewWriter()
	defer w.Close()
	assert.Error(t, w.WriteRow([]any{"x"}))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "bookings_pending_2025-11-03.xlsx",
		Filename(model.FilterPending, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)))
}
