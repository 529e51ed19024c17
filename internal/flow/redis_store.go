package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"turnitinbot/internal/redis"
)

// RedisStore keeps sessions in redis so the prompt sequence survives a
// process restart. TTL eviction comes from redis itself.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("flow:session:%d", userID)
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(userID))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return NewSession(), nil
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		// A corrupt entry should not wedge the user forever.
		return NewSession(), nil
	}
	return s, nil
}

func (r *RedisStore) Put(ctx context.Context, userID int64, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(userID), data, r.ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}
