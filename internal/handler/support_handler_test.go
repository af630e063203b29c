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
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

type supportServiceMock struct {
	clock *clock.Fake
	until time.Time
}

func (m *supportServiceMock) RequestSupport(ctx context.Context, recordID string, actor models.Identity) (*models.SupportRequest, error) {
	now := m.clock.Now()
	if m.until.After(now) {
		return &models.SupportRequest{DeliveryID: recordID, CooldownUntil: m.until}, appErrors.Clone(appErrors.ErrCooldown, "cooling down")
	}
	m.until = now.Add(30 * time.Minute)
	return &models.SupportRequest{DeliveryID: recordID, WhatsAppURL: "https://wa.me/5511999999999?text=help", CooldownUntil: m.until}, nil
}

func (m *supportServiceMock) CanRequest(ctx context.Context, recordID string, actor models.Identity) (*models.SupportAvailability, error) {
	available := !m.until.After(m.clock.Now())
	return &models.SupportAvailability{DeliveryID: recordID, Available: available}, nil
}

func TestSupportHandlerCooldown(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC))
	svc := &supportServiceMock{clock: clk}
	handler := NewSupportHandler(svc, clk)

	request := func() (int, string, string) {
		c, w := newTestContext(http.MethodPost, "/deliveries/r1/support", nil, driverClaims)
		c.Params = gin.Params{{Key: "id", Value: "r1"}}
		handler.Request(c)
		return w.Code, w.Header().Get("Retry-After"), w.Body.String()
	}

	code, retry, body := request()
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, retry)
	assert.Contains(t, body, "wa.me")

	clk.Advance(10 * time.Minute)
	code, retry, body = request()
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "1200", retry)
	assert.Contains(t, body, "COOLDOWN_ACTIVE")

	c, w := newTestContext(http.MethodGet, "/deliveries/r1/support", nil, driverClaims)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}
	handler.Availability(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":false`)

	clk.Advance(20 * time.Minute)
	code, _, _ = request()
	assert.Equal(t, http.StatusOK, code)
}
