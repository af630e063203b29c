package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/cache"
)

const (
	fieldProblemKey   = "last_problem_key"
	fieldTimeLimitKey = "last_time_limit_key"
)

// LedgerRepository persists per-user notification state in Redis.
// Dismissals live in a set that is only ever added to; hour markers live in a hash.
type LedgerRepository struct {
	client *redis.Client
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(client *redis.Client) *LedgerRepository {
	return &LedgerRepository{client: client}
}

func dismissedKey(user string) string { return cache.Key("ledger", user, "dismissed") }
func markersKey(user string) string   { return cache.Key("ledger", user, "markers") }

// Load reads the ledger for a user. A user without state gets an empty ledger.
func (r *LedgerRepository) Load(ctx context.Context, user string) (models.NotificationLedger, error) {
	ledger := models.NotificationLedger{Dismissed: map[string]bool{}}

	pipe := r.client.Pipeline()
	dismissedCmd := pipe.SMembers(ctx, dismissedKey(user))
	markersCmd := pipe.HGetAll(ctx, markersKey(user))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return ledger, fmt.Errorf("load ledger: %w", err)
	}

	for _, id := range dismissedCmd.Val() {
		ledger.Dismissed[id] = true
	}
	markers := markersCmd.Val()
	ledger.LastProblemKey = markers[fieldProblemKey]
	ledger.LastTimeLimitKey = markers[fieldTimeLimitKey]
	return ledger, nil
}

// SaveMarkers persists the last-fired hour markers. Dismissals are written by AddDismissal only.
func (r *LedgerRepository) SaveMarkers(ctx context.Context, user string, ledger models.NotificationLedger) error {
	values := map[string]interface{}{
		fieldProblemKey:   ledger.LastProblemKey,
		fieldTimeLimitKey: ledger.LastTimeLimitKey,
	}
	if err := r.client.HSet(ctx, markersKey(user), values).Err(); err != nil {
		return fmt.Errorf("save ledger markers: %w", err)
	}
	return nil
}

// AddDismissal records a dismissed alert id. Adding an existing id is a no-op.
func (r *LedgerRepository) AddDismissal(ctx context.Context, user, alertID string) error {
	if err := r.client.SAdd(ctx, dismissedKey(user), alertID).Err(); err != nil {
		return fmt.Errorf("add dismissal: %w", err)
	}
	return nil
}
