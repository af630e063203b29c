package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/delivery-ops-api/pkg/config"
)

const keyPrefix = "delivery-ops"

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Key joins segments under the service prefix. Segments are sanitised so identities
// containing ':' or whitespace cannot collide with other key spaces.
func Key(segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, keyPrefix)
	for _, segment := range segments {
		parts = append(parts, sanitizeSegment(segment))
	}
	return strings.Join(parts, ":")
}

func sanitizeSegment(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ':' || r == ' ' || r == '\t' || r == '\n' || r == '*':
			return '_'
		default:
			return r
		}
	}, value)
}
