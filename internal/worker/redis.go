package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"turnitinbot/internal/models"
	"turnitinbot/internal/redis"
)

const (
	statusKeyPrefix = "worker:submission:"
	statusCacheTTL  = 30 * time.Minute
)

// ErrStatusMiss is returned when a submission has no cached status.
var ErrStatusMiss = errors.New("submission status not cached")

// StatusCache keeps recent submission states in redis so status lookups do
// not hit the database. A nil cache is valid and caches nothing.
type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	if client == nil {
		return nil
	}
	return &StatusCache{client: client}
}

// Store caches the submission keyed by its durable id. Errors are swallowed,
// the cache is advisory.
func (c *StatusCache) Store(ctx context.Context, sub *models.Submission) {
	if c == nil || sub == nil {
		return
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, statusKey(sub.ID), string(data), statusCacheTTL)
}

// Load fetches a cached submission, ErrStatusMiss when absent.
func (c *StatusCache) Load(ctx context.Context, id int64) (*models.Submission, error) {
	if c == nil {
		return nil, ErrStatusMiss
	}
	raw, err := c.client.Get(ctx, statusKey(id))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, ErrStatusMiss
		}
		return nil, err
	}
	var sub models.Submission
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return nil, ErrStatusMiss
	}
	return &sub, nil
}

func statusKey(id int64) string {
	return fmt.Sprintf("%s%d", statusKeyPrefix, id)
}
