package override

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps override flags in Redis so every instance of a shared QA
// environment sees the same toggle.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed override store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func overrideKey(userID string) string {
	return fmt.Sprintf("override:premium:%s", userID)
}

// Enabled reports the flag; a missing key reads as false.
func (s *RedisStore) Enabled(ctx context.Context, userID string) (bool, error) {
	val, err := s.client.Get(ctx, overrideKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read override flag: %w", err)
	}

	return val == "1", nil
}

// SetEnabled stores the flag; disabling deletes the key.
func (s *RedisStore) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	if !enabled {
		if err := s.client.Del(ctx, overrideKey(userID)).Err(); err != nil {
			return fmt.Errorf("failed to clear override flag: %w", err)
		}
		return nil
	}

	if err := s.client.Set(ctx, overrideKey(userID), "1", 0).Err(); err != nil {
		return fmt.Errorf("failed to set override flag: %w", err)
	}

	return nil
}
