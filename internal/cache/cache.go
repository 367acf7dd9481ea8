// Package cache holds short-lived reference data (brawler catalog, event
// rotation) so scheduler cycles do not refetch static documents. Match and
// player traffic is never cached here.
package cache

import (
	"context"
	"time"

	"brawlmeta/internal/config"

	"github.com/rs/zerolog"
)

// Store is the reference-data cache boundary.
type Store interface {
	GetBrawlers(ctx context.Context) ([]byte, bool)
	SetBrawlers(ctx context.Context, data []byte, ttl time.Duration)
	GetEvents(ctx context.Context) ([]byte, bool)
	SetEvents(ctx context.Context, data []byte, ttl time.Duration)
}

// New selects the Redis store when enabled, the in-memory store otherwise.
func New(cfg *config.Config, logger zerolog.Logger) (Store, error) {
	if cfg.RedisEnabled {
		store, err := NewRedisStore(cfg.RedisURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, falling back to in-memory cache")
			return NewMemoryStore(), nil
		}
		return store, nil
	}
	return NewMemoryStore(), nil
}
