package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RunPurger removes expired entries from p every interval until ctx is done.
func RunPurger(ctx context.Context, p Purger, interval time.Duration, logger *zerolog.Logger) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to purge expired keys")
				continue
			}
			if n > 0 {
				logger.Info().Int64("removed", n).Msg("Purged expired keys")
			}
		}
	}
}
