package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces rate-limit records in a shared Redis.
const redisKeyPrefix = "quoorum:ratelimit:"

// Records idle longer than this expire from Redis on their own.
const redisRecordTTL = 48 * time.Hour

// RedisStore is a Store backed by Redis for multi-node deployments.
// Updates use optimistic transactions so concurrent writers on different
// nodes do not lose increments.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed record store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns one user's record.
func (s *RedisStore) Get(ctx context.Context, userID string) (Record, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis get failed: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("corrupt rate-limit record for %s: %w", userID, err)
	}
	return rec, nil
}

// Update applies fn inside a WATCH-based optimistic transaction, retrying
// on contention.
func (s *RedisStore) Update(ctx context.Context, userID string, fn func(*Record)) (Record, error) {
	key := redisKeyPrefix + userID
	var result Record

	const maxRetries = 5
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			var rec Record
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil && err != redis.Nil {
				return fmt.Errorf("redis get failed: %w", err)
			}
			if err == nil {
				if uerr := json.Unmarshal(data, &rec); uerr != nil {
					return fmt.Errorf("corrupt rate-limit record for %s: %w", userID, uerr)
				}
			}

			fn(&rec)
			result = rec

			payload, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to encode record: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, redisRecordTTL)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return Record{}, err
		}
		return result, nil
	}

	return Record{}, fmt.Errorf("rate-limit update for %s kept conflicting after %d attempts", userID, maxRetries)
}
