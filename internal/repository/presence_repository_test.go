package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/delivery-ops-api/internal/models"
)

func TestPresenceRepositoryUpsertNormalizesEmail(t *testing.T) {
	db, mock, cleanup := newDeliveryRepoMock(t)
	defer cleanup()
	repo := NewPresenceRepository(db)

	ts := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_email) DO UPDATE SET")).
		WithArgs("dan@example.com", "Dan", -23.5, -46.6, true, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), models.LocationPing{
		UserEmail: " Dan@Example.com ", UserName: "Dan", Latitude: -23.5, Longitude: -46.6, IsOnline: true, LastUpdate: ts,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPresenceRepositoryUpsertError(t *testing.T) {
	db, mock, cleanup := newDeliveryRepoMock(t)
	defer cleanup()
	repo := NewPresenceRepository(db)

	mock.ExpectExec("INSERT INTO driver_locations").WillReturnError(errors.New("connection reset"))

	err := repo.Upsert(context.Background(), models.LocationPing{UserEmail: "dan@example.com", LastUpdate: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert location")
}

func TestPresenceRepositoryList(t *testing.T) {
	db, mock, cleanup := newDeliveryRepoMock(t)
	defer cleanup()
	repo := NewPresenceRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM driver_locations ORDER BY last_update DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"user_email", "user_name", "latitude", "longitude", "is_online", "last_update"}).
			AddRow("dan@example.com", "Dan", 1.5, 2.5, true, now).
			AddRow("eve@example.com", "Eve", 3.5, 4.5, true, now.Add(-time.Hour)))

	pings, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, pings, 2)
	assert.Equal(t, "eve@example.com", pings[1].UserEmail)
}
