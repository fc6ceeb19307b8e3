package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "alerts:last:"

// RedisStore keeps alert state in redis so the dispatcher can restart
// without re-raising every active alert.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) LastAlertAt(ctx context.Context, service string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+service).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, err
	}

	return t, true, nil
}

func (s *RedisStore) SetLastAlertAt(ctx context.Context, service string, t time.Time) error {
	return s.client.Set(ctx, keyPrefix+service, t.Format(time.RFC3339Nano), 0).Err()
}

func (s *RedisStore) Clear(ctx context.Context, service string) error {
	return s.client.Del(ctx, keyPrefix+service).Err()
}
