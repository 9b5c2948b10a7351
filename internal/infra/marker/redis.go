// Package marker persists the per-tenant last-run marker in Redis. The
// marker guards the recurring trigger against firing twice within the
// same minute; it is advisory, not a distributed lock.
package marker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements port.RunMarkerStore.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a marker store. Markers expire after ttl so a
// stale entry never blocks a future run forever.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func markerKey(tenantID string) string {
	return fmt.Sprintf("billing:lastrun:%s", tenantID)
}

// LastRun returns the tenant's last run marker ("YYYY-MM-DD HH:MM"), or
// an empty string when no run has been recorded.
func (s *RedisStore) LastRun(ctx context.Context, tenantID string) (string, error) {
	val, err := s.rdb.Get(ctx, markerKey(tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// SetLastRun records the marker for the tenant.
func (s *RedisStore) SetLastRun(ctx context.Context, tenantID, marker string) error {
	return s.rdb.Set(ctx, markerKey(tenantID), marker, s.ttl).Err()
}
