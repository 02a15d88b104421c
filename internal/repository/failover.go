package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverStore routes calls to primary and switches to fallback while primary
// is failing. A recovery attempt against primary is made once per retryInterval.
//
// Values without a TTL are written to both stores. Keys written or deleted
// during an outage are copied back to primary before it is used again, and a
// primary miss is answered from fallback.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown        atomic.Bool
	mu            sync.Mutex
	lastCheck     time.Time
	retryInterval time.Duration
	// dirty maps keys changed on fallback during an outage to their expiry.
	dirty map[string]time.Time
	now   func() time.Time
}

func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		logger:        logger,
		retryInterval: time.Minute,
		dirty:         make(map[string]time.Time),
		now:           time.Now,
	}
}

// Degraded reports whether calls currently go to the fallback.
func (s *FailoverStore) Degraded() bool {
	return s.isDown.Load()
}

// usePrimary reports whether primary should serve the next call. While down,
// a due recovery attempt pings primary and replays outage writes first.
func (s *FailoverStore) usePrimary(ctx context.Context) bool {
	if !s.isDown.Load() {
		return true
	}
	s.mu.Lock()
	if s.now().Sub(s.lastCheck) < s.retryInterval {
		s.mu.Unlock()
		return false
	}
	s.lastCheck = s.now()
	s.mu.Unlock()

	if err := s.primary.Ping(ctx); err != nil {
		return false
	}
	if err := s.resync(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to copy outage writes to primary store")
		return false
	}
	s.markUp()
	return true
}

func (s *FailoverStore) markDown(op string, err error) {
	if !s.isDown.Swap(true) {
		s.logger.Warn().Err(err).Str("op", op).Msg("Primary store failed, switching to fallback")
	}
	s.mu.Lock()
	s.lastCheck = s.now()
	s.mu.Unlock()
}

func (s *FailoverStore) markUp() {
	if s.isDown.Swap(false) {
		s.logger.Info().Msg("Primary store recovered")
	}
}

func (s *FailoverStore) markDirty(key string, ttl time.Duration) {
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.dirty[key] = expires
	s.mu.Unlock()
}

// resync copies every key changed during the outage from fallback to primary.
func (s *FailoverStore) resync(ctx context.Context) error {
	s.mu.Lock()
	pending := make(map[string]time.Time, len(s.dirty))
	for k, v := range s.dirty {
		pending[k] = v
	}
	s.mu.Unlock()

	for key, expires := range pending {
		if err := s.copyToPrimary(ctx, key, expires); err != nil {
			return fmt.Errorf("resync %s: %w", key, err)
		}
		s.mu.Lock()
		if cur, ok := s.dirty[key]; ok && cur.Equal(expires) {
			delete(s.dirty, key)
		}
		s.mu.Unlock()
	}
	if len(pending) > 0 {
		s.logger.Info().Int("keys", len(pending)).Msg("Copied outage writes to primary store")
	}
	return nil
}

func (s *FailoverStore) copyToPrimary(ctx context.Context, key string, expires time.Time) error {
	val, err := s.fallback.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return s.primary.Delete(ctx, key)
	}
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !expires.IsZero() {
		ttl = expires.Sub(s.now())
		if ttl <= 0 {
			return s.primary.Delete(ctx, key)
		}
	}
	return s.primary.Set(ctx, key, val, ttl)
}

func (s *FailoverStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.usePrimary(ctx) {
		val, err := s.primary.Get(ctx, key)
		if err == nil {
			s.markUp()
			return val, nil
		}
		if errors.Is(err, ErrNotFound) {
			s.markUp()
			return s.fallback.Get(ctx, key)
		}
		s.markDown("get", err)
	}
	return s.fallback.Get(ctx, key)
}

func (s *FailoverStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.usePrimary(ctx) {
		err := s.primary.Set(ctx, key, value, ttl)
		if err == nil {
			s.markUp()
			if ttl <= 0 {
				if err := s.fallback.Set(ctx, key, value, ttl); err != nil {
					s.logger.Warn().Err(err).Str("key", key).Msg("Failed to copy value to fallback store")
				}
			}
			return nil
		}
		s.markDown("set", err)
	}
	if err := s.fallback.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	s.markDirty(key, ttl)
	return nil
}

func (s *FailoverStore) Delete(ctx context.Context, key string) error {
	if s.usePrimary(ctx) {
		err := s.primary.Delete(ctx, key)
		if err == nil {
			s.markUp()
			// Clear any copy written during an outage.
			_ = s.fallback.Delete(ctx, key)
			return nil
		}
		s.markDown("delete", err)
	}
	if err := s.fallback.Delete(ctx, key); err != nil {
		return err
	}
	s.markDirty(key, 0)
	return nil
}

// Ping succeeds while either store is reachable.
func (s *FailoverStore) Ping(ctx context.Context) error {
	if err := s.primary.Ping(ctx); err == nil {
		return nil
	}
	return s.fallback.Ping(ctx)
}

// PurgeExpired removes expired entries from the fallback. Primary expires keys itself.
func (s *FailoverStore) PurgeExpired(ctx context.Context) (int64, error) {
	p, ok := s.fallback.(Purger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx)
}
