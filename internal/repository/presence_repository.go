package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/delivery-ops-api/internal/models"
)

// PresenceRepository stores one location row per user email.
type PresenceRepository struct {
	db *sqlx.DB
}

// NewPresenceRepository constructs a PresenceRepository.
func NewPresenceRepository(db *sqlx.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Upsert writes the ping. Older captures never overwrite a newer row, so late offline flushes stay harmless.
func (r *PresenceRepository) Upsert(ctx context.Context, ping models.LocationPing) error {
	ping.UserEmail = models.NormalizeEmail(ping.UserEmail)
	ping.LastUpdate = ping.LastUpdate.UTC()
	const query = `INSERT INTO driver_locations (user_email, user_name, latitude, longitude, is_online, last_update)
	VALUES (:user_email, :user_name, :latitude, :longitude, :is_online, :last_update)
	ON CONFLICT (user_email) DO UPDATE SET
		user_name = EXCLUDED.user_name,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		is_online = EXCLUDED.is_online,
		last_update = EXCLUDED.last_update
	WHERE driver_locations.last_update <= EXCLUDED.last_update`
	if _, err := r.db.NamedExecContext(ctx, query, ping); err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

// List returns all stored pings, newest first.
func (r *PresenceRepository) List(ctx context.Context) ([]models.LocationPing, error) {
	const query = `SELECT user_email, user_name, latitude, longitude, is_online, last_update
	FROM driver_locations ORDER BY last_update DESC`
	pings := []models.LocationPing{}
	if err := r.db.SelectContext(ctx, &pings, query); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return pings, nil
}
