package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/location-tracker/internal/constants"
	"github.com/benmeehan/location-tracker/internal/observability"
	"github.com/benmeehan/location-tracker/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisClient is the subset of the go-redis client used by RedisCodec.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisCodec keeps the snapshot as a single Redis string value.
type RedisCodec struct {
	client RedisClient
	key    string
	logger zerolog.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedisCodec creates a RedisCodec storing the snapshot under key.
func NewRedisCodec(client RedisClient, key string, logger zerolog.Logger) *RedisCodec {
	if key == "" {
		key = constants.DefaultRedisKey
	}
	return &RedisCodec{
		client: client,
		key:    key,
		logger: logger.With().Str("component", "redis_codec").Str("key", key).Logger(),
	}
}

// Name returns the backend name.
func (c *RedisCodec) Name() string {
	return constants.StorageBackendRedis
}

// Init stores an empty snapshot unless one exists.
func (c *RedisCodec) Init(ctx context.Context) error {
	data, err := encodeSnapshot(store.New())
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", store.ErrPersistence, err)
	}
	created, err := c.client.SetNX(ctx, c.key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: initialize snapshot: %v", store.ErrPersistence, err)
	}
	if created {
		c.logger.Info().Msg("Snapshot not found, created empty snapshot")
	}
	return nil
}

// Load reads and decodes the snapshot.
func (c *RedisCodec) Load(ctx context.Context) (*store.Store, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Warn().Msg("Snapshot does not exist, starting with an empty store")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeMissing).Inc()
		return store.New(), nil
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to read snapshot")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeError).Inc()
		return nil, fmt.Errorf("%w: read snapshot: %v", store.ErrPersistence, err)
	}

	s, err := decodeSnapshot(data)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to parse snapshot, starting with an empty store")
		observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeCorrupt).Inc()
		return store.New(), nil
	}

	c.logger.Info().Int("devices", s.Len()).Msg("Snapshot loaded")
	observability.SnapshotLoads.WithLabelValues(c.Name(), outcomeOK).Inc()
	return s, nil
}

// Save overwrites the snapshot value.
func (c *RedisCodec) Save(ctx context.Context, s *store.Store) error {
	data, err := encodeSnapshot(s)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", store.ErrPersistence, err)
	}
	if err := c.client.Set(ctx, c.key, data, 0).Err(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to write snapshot")
		return fmt.Errorf("%w: write snapshot: %v", store.ErrPersistence, err)
	}
	return nil
}
