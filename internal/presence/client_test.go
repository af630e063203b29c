package presence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

func TestHTTPStoreUpsert(t *testing.T) {
	var got dto.UpsertLocationRequest
	var auth, method, path string
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, auth = r.Method, r.URL.Path, r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL+"/api/v1/", func() string { return "tok" }, time.Second)
	at := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	ping := models.LocationPing{UserEmail: "d@example.com", UserName: "Dana", Latitude: -23.5, Longitude: -46.6, LastUpdate: at}

	require.NoError(t, store.Upsert(context.Background(), ping))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/api/v1/presence", path)
	assert.Equal(t, "Bearer tok", auth)
	require.NotNil(t, got.Latitude)
	assert.Equal(t, -23.5, *got.Latitude)
	assert.True(t, at.Equal(*got.CapturedAt))

	status = http.StatusServiceUnavailable
	assert.True(t, appErrors.IsCode(store.Upsert(context.Background(), ping), appErrors.ErrUnavailable))

	status = http.StatusBadRequest
	assert.True(t, appErrors.IsCode(store.Upsert(context.Background(), ping), appErrors.ErrValidation))

	status = http.StatusUnauthorized
	assert.True(t, appErrors.IsCode(store.Upsert(context.Background(), ping), appErrors.ErrUnauthorized))

	srv.Close()
	assert.True(t, appErrors.IsCode(store.Upsert(context.Background(), ping), appErrors.ErrUnavailable))
}
