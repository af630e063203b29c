package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/service"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

type alertServiceMock struct {
	feed      models.AlertFeed
	dismissed []string
}

func (m *alertServiceMock) Active(ctx context.Context, actor models.Identity) (models.AlertFeed, error) {
	if !service.IsElevated(actor) {
		return models.AlertFeed{}, appErrors.ErrForbidden
	}
	return m.feed, nil
}

func (m *alertServiceMock) Dismiss(ctx context.Context, actor models.Identity, alertID string) error {
	m.dismissed = append(m.dismissed, alertID)
	return nil
}

var supervisorClaims = &models.JWTClaims{UserID: "u2", Email: "sup@example.com", Role: models.RoleSupervisor}

func TestAlertHandlerList(t *testing.T) {
	now := time.Date(2024, 5, 2, 11, 5, 0, 0, time.UTC)
	alert := models.Alert{ID: "time_wait:r1", Kind: models.AlertTimeWait, RelatedRecords: []string{"r1"}, GeneratedAt: now}
	handler := NewAlertHandler(&alertServiceMock{feed: models.AlertFeed{Alerts: []models.Alert{alert}, Toast: &alert}})

	c, w := newTestContext(http.MethodGet, "/alerts", nil, supervisorClaims)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"time_wait:r1"`)
	assert.Contains(t, w.Body.String(), `"toast"`)

	c, w = newTestContext(http.MethodGet, "/alerts", nil, driverClaims)
	handler.List(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAlertHandlerDismiss(t *testing.T) {
	svc := &alertServiceMock{}
	handler := NewAlertHandler(svc)

	c, w := newTestContext(http.MethodPost, "/alerts/problem_group:2024-05-02_hour_14/dismiss", nil, supervisorClaims)
	c.Params = gin.Params{{Key: "id", Value: "problem_group:2024-05-02_hour_14"}}
	handler.Dismiss(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"problem_group:2024-05-02_hour_14"}, svc.dismissed)
}
