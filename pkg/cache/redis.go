package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// purgeBatchSize bounds the number of keys per SCAN page and DEL call.
const purgeBatchSize = 100

// RedisStore stores preview entries in Redis as JSON, without TTL.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a new store with Redis backend.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if !entry.Valid() {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidEntry)
	}

	return &entry, nil
}

// Set stores an entry without expiration.
// A Redis OOM reply (maxmemory reached) is reported as ErrStoreFull.
func (s *RedisStore) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, key.String(), data, 0).Err(); err != nil {
		if isOutOfMemory(err) {
			return fmt.Errorf("%w: %v", ErrStoreFull, err)
		}
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Purge deletes every entry of the given schema version (all versions when
// empty) and returns the number of deleted keys.
func (s *RedisStore) Purge(ctx context.Context, schemaVersion string) (int, error) {
	deleted, err := s.purge(ctx, schemaVersion)
	if err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
	}
	return deleted, err
}

func (s *RedisStore) purge(ctx context.Context, schemaVersion string) (int, error) {
	iter := s.redis.Scan(ctx, 0, Pattern(schemaVersion), purgeBatchSize).Iterator()

	deleted := 0
	batch := make([]string, 0, purgeBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.redis.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == purgeBatchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	if err := flush(); err != nil {
		return deleted, err
	}

	return deleted, nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// isOutOfMemory reports whether err is a Redis "OOM command not allowed" reply.
func isOutOfMemory(err error) bool {
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return strings.HasPrefix(redisErr.Error(), "OOM")
	}
	return false
}
