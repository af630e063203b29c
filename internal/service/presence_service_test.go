package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

type presenceStoreStub struct {
	upserts   []models.LocationPing
	pings     []models.LocationPing
	upsertErr error
	listErr   error
}

func (s *presenceStoreStub) Upsert(ctx context.Context, ping models.LocationPing) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, ping)
	return nil
}

func (s *presenceStoreStub) List(ctx context.Context) ([]models.LocationPing, error) {
	return s.pings, s.listErr
}

func floatPtr(v float64) *float64 { return &v }

func TestPresenceUpsert(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	store := &presenceStoreStub{}
	svc := NewPresenceService(store, nil, clock.NewFake(now), time.Minute, nil, nil)
	ctx := context.Background()

	captured := now.Add(-2 * time.Minute)
	ping, err := svc.Upsert(ctx, models.Identity{Email: " A@Example.com ", Name: "Ana"}, dto.UpsertLocationRequest{
		Latitude: floatPtr(-23.5), Longitude: floatPtr(-46.6), CapturedAt: &captured,
	})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", ping.UserEmail)
	assert.Equal(t, "Ana", ping.UserName)
	assert.True(t, ping.IsOnline)
	assert.True(t, captured.Equal(ping.LastUpdate))

	future := now.Add(time.Hour)
	ping, err = svc.Upsert(ctx, driverA, dto.UpsertLocationRequest{Latitude: floatPtr(0), Longitude: floatPtr(0), CapturedAt: &future})
	require.NoError(t, err)
	assert.True(t, now.Equal(ping.LastUpdate), "future capture times are clamped")

	_, err = svc.Upsert(ctx, driverA, dto.UpsertLocationRequest{Latitude: floatPtr(91), Longitude: floatPtr(0)})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Upsert(ctx, driverA, dto.UpsertLocationRequest{Longitude: floatPtr(0)})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	store.upsertErr = errors.New("offline")
	_, err = svc.Upsert(ctx, driverA, dto.UpsertLocationRequest{Latitude: floatPtr(1), Longitude: floatPtr(1)})
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
	assert.Len(t, store.upserts, 2)
}

func TestPresenceListOnlineDedupsAndMarksStale(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	store := &presenceStoreStub{pings: []models.LocationPing{
		{UserEmail: "a@example.com", Latitude: 1, IsOnline: true, LastUpdate: now.Add(-2 * time.Minute)},
		{UserEmail: "A@example.com", Latitude: 2, IsOnline: true, LastUpdate: now.Add(-30 * time.Second)},
		{UserEmail: "b@example.com", Latitude: 3, IsOnline: true, LastUpdate: now.Add(-10 * time.Minute)},
	}}
	svc := NewPresenceService(store, nil, clock.NewFake(now), 5*time.Minute, nil, nil)

	pings, err := svc.ListOnline(context.Background(), supervisor)
	require.NoError(t, err)
	require.Len(t, pings, 2)
	assert.Equal(t, 2.0, pings[0].Latitude, "newest duplicate wins")
	assert.True(t, pings[0].IsOnline)
	assert.Equal(t, "b@example.com", pings[1].UserEmail)
	assert.False(t, pings[1].IsOnline)

	_, err = svc.ListOnline(context.Background(), driverA)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	store.listErr = errors.New("down")
	_, err = svc.ListOnline(context.Background(), supervisor)
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
}
