package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyBrawlers = "brawlmeta:ref:brawlers"
	keyEvents   = "brawlmeta:ref:events"
)

// RedisStore backs the reference cache with Redis so multiple instances share
// one copy of the static documents.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisStore(redisURL string, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logger.Info().Str("addr", opts.Addr).Msg("reference cache connected to redis")
	return &RedisStore{client: client, logger: logger}, nil
}

func (s *RedisStore) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	return data, true
}

func (s *RedisStore) set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

func (s *RedisStore) GetBrawlers(ctx context.Context) ([]byte, bool) {
	return s.get(ctx, keyBrawlers)
}

func (s *RedisStore) SetBrawlers(ctx context.Context, data []byte, ttl time.Duration) {
	s.set(ctx, keyBrawlers, data, ttl)
}

func (s *RedisStore) GetEvents(ctx context.Context) ([]byte, bool) {
	return s.get(ctx, keyEvents)
}

func (s *RedisStore) SetEvents(ctx context.Context, data []byte, ttl time.Duration) {
	s.set(ctx, keyEvents, data, ttl)
}
