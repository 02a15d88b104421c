package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"studiobook/internal/clock"
	"studiobook/internal/model"
)

const bookingColumns = `id, staff, services, date, start_time, end_time, room_id, room,
	customer_name, customer_email, customer_phone, status, price, admin_note,
	created_at, decided_at`

// CreateBooking inserts a new booking.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking) error {
	services, err := json.Marshal(b.Services)
	if err != nil {
		return fmt.Errorf("marshal services: %w", err)
	}
	price, err := json.Marshal(b.Price)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}

	var decidedAt sql.NullTime
	if b.DecidedAt != nil {
		decidedAt = sql.NullTime{Time: *b.DecidedAt, Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Staff, string(services), b.Date, b.StartTime.String(), b.EndTime.String(),
		b.RoomID, b.Room, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		string(b.Status), string(price), b.AdminNote, b.CreatedAt, decidedAt, time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListBookings returns bookings newest first. An empty status lists all.
func (db *DB) ListBookings(ctx context.Context, status model.Status) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DecideBooking moves a pending booking to status. It returns ErrNotFound for
// unknown ids and ErrStatusConflict when the booking was already decided.
func (db *DB) DecideBooking(ctx context.Context, id string, status model.Status, note string, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, admin_note = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(status), note, at, time.Now(), id, string(model.StatusPendingApproval))
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := db.GetBooking(ctx, id); err != nil {
		return err
	}
	return ErrStatusConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*model.Booking, error) {
	var (
		b                  model.Booking
		services, price    string
		start, end, status string
		decidedAt          sql.NullTime
	)
	err := s.Scan(&b.ID, &b.Staff, &services, &b.Date, &start, &end, &b.RoomID, &b.Room,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &status, &price, &b.AdminNote,
		&b.CreatedAt, &decidedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(services), &b.Services); err != nil {
		return nil, fmt.Errorf("unmarshal services of %s: %w", b.ID, err)
	}
	if err := json.Unmarshal([]byte(price), &b.Price); err != nil {
		return nil, fmt.Errorf("unmarshal price of %s: %w", b.ID, err)
	}

	b.StartTime = clock.TimeOfDay(start)
	b.EndTime = clock.TimeOfDay(end)
	b.Status = model.Status(status)
	if decidedAt.Valid {
		t := decidedAt.Time
		b.DecidedAt = &t
	}
	return &b, nil
}
