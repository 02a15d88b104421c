package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// WatchStudio reloads studio.yaml on change and calls onUpdate with the latest config.
// It performs an initial load before entering the watch loop.
func WatchStudio(ctx context.Context, path string, interval time.Duration, logger *zerolog.Logger, onUpdate func(*StudioConfig)) error {
	if path == "" {
		path = "configs/studio.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	cfg, err := LoadStudioConfig(path)
	if err != nil {
		return err
	}
	if onUpdate != nil {
		onUpdate(cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				cfg, err := LoadStudioConfig(path)
				if err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("Studio config reload failed, keeping previous")
					continue
				}
				lastMod = info.ModTime()
				logger.Info().Str("config", cfg.String()).Msg("Studio config reloaded")
				if onUpdate != nil {
					onUpdate(cfg)
				}
			}
		}
	}()

	return nil
}
