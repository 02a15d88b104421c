package repository

import (
	"context"
	"errors"
	"time"

	"studiobook/internal/database"
)

// SQLiteStore keeps values in the kv table of the application database.
type SQLiteStore struct {
	db *database.DB
}

func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.db.GetValue(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.SetValue(ctx, key, value, ttl)
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return s.db.DeleteValue(ctx, key)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.db.PurgeExpired(ctx)
}
