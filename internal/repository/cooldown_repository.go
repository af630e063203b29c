package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/delivery-ops-api/pkg/cache"
)

// CooldownRepository stores time-boxed suppression markers in Redis. The marker
// value is the unix-millisecond deadline, so callers with an injected clock can
// judge expiry themselves while Redis TTL keeps the key space clean.
type CooldownRepository struct {
	client    *redis.Client
	namespace string
}

// NewCooldownRepository constructs a repository for one marker namespace, e.g. "support" or "sent".
func NewCooldownRepository(client *redis.Client, namespace string) *CooldownRepository {
	return &CooldownRepository{client: client, namespace: namespace}
}

func (r *CooldownRepository) key(id string) string {
	return cache.Key(r.namespace, "cooldown", id)
}

// Acquire sets the marker for id until now+ttl unless an unexpired marker exists.
// It returns whether the marker was acquired and the deadline currently in force.
func (r *CooldownRepository) Acquire(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, time.Time, error) {
	until := now.Add(ttl)
	value := strconv.FormatInt(until.UnixMilli(), 10)

	ok, err := r.client.SetNX(ctx, r.key(id), value, ttl).Result()
	if err != nil {
		return false, time.Time{}, fmt.Errorf("acquire cooldown: %w", err)
	}
	if ok {
		return true, until, nil
	}

	current, err := r.Until(ctx, id)
	if err != nil {
		return false, time.Time{}, err
	}
	if current.After(now) {
		return false, current, nil
	}
	// Redis still holds a marker the caller's clock considers expired.
	if err := r.client.Set(ctx, r.key(id), value, ttl).Err(); err != nil {
		return false, time.Time{}, fmt.Errorf("refresh cooldown: %w", err)
	}
	return true, until, nil
}

// Until returns the stored deadline for id, or the zero time when none is set.
func (r *CooldownRepository) Until(ctx context.Context, id string) (time.Time, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read cooldown: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms), nil
}
