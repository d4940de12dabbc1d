package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisCodeStore keeps one-time codes in Redis so they survive process
// restarts and are shared across replicas.
type RedisCodeStore struct {
	client *redis.Client
}

func NewRedisCodeStore(addr string, password string, db int) *RedisCodeStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisCodeStore) Close() error {
	return s.client.Close()
}

func (s *RedisCodeStore) Set(ctx context.Context, key string, code string, ttl time.Duration) error {
	return s.client.Set(ctx, "code:"+key, code, ttl).Err()
}

func (s *RedisCodeStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, "code:"+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, "code:"+key).Err()
}
