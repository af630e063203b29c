package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/notify"
	"github.com/noah-isme/delivery-ops-api/internal/repository"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

func newSupportFixture(t *testing.T, now time.Time, records ...*models.DeliveryRecord) (*SupportService, *clock.Fake, *sinkStub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clk := clock.NewFake(now)
	lifecycle := NewLifecycleService(newDeliveryStoreStub(records...), nil, clk, nil, nil)
	sink := &sinkStub{}
	svc := NewSupportService(lifecycle, repository.NewCooldownRepository(client, "support"), sink, clk, "+55 (11) 99999-0000", 30*time.Minute, nil, nil)
	return svc, clk, sink, mr
}

func TestSupportCooldownScenarioE(t *testing.T) {
	t0 := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	record := withProblem(openRecord("r1", driverA.Email, t0.Add(-time.Hour)), "Closed gate")
	record.ClientName = "Acme & Co"
	svc, clk, sink, _ := newSupportFixture(t, t0, record)
	ctx := context.Background()

	req, err := svc.RequestSupport(ctx, "r1", driverA)
	require.NoError(t, err)
	assert.Contains(t, req.WhatsAppURL, "https://wa.me/5511999990000?text=")
	assert.Contains(t, req.WhatsAppURL, "Acme%20%26%20Co")
	assert.Contains(t, req.Message, "Problem: Closed gate")
	assert.True(t, t0.Add(30*time.Minute).Equal(req.CooldownUntil))
	require.Len(t, sink.sent, 1)
	assert.Equal(t, notify.ChannelWhatsApp, sink.sent[0].Channel)

	clk.Advance(10 * time.Minute)
	req, err = svc.RequestSupport(ctx, "r1", driverA)
	assert.True(t, errors.Is(err, appErrors.ErrCooldown))
	require.NotNil(t, req)
	assert.Equal(t, 1200, RetryAfter(clk.Now(), req.CooldownUntil))

	availability, err := svc.CanRequest(ctx, "r1", driverA)
	require.NoError(t, err)
	assert.False(t, availability.Available)
	require.NotNil(t, availability.CooldownUntil)

	clk.Set(t0.Add(31 * time.Minute))
	availability, err = svc.CanRequest(ctx, "r1", driverA)
	require.NoError(t, err)
	assert.True(t, availability.Available)

	_, err = svc.RequestSupport(ctx, "r1", driverA)
	require.NoError(t, err)
	assert.Len(t, sink.sent, 2)
}

func TestSupportRules(t *testing.T) {
	t0 := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	closed := openRecord("r2", driverA.Email, t0.Add(-time.Hour))
	closed.Status = models.DeliveryFinalized
	svc, _, _, mr := newSupportFixture(t, t0, openRecord("r1", driverA.Email, t0), closed)
	ctx := context.Background()

	_, err := svc.RequestSupport(ctx, "r1", driverB)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.RequestSupport(ctx, "r2", driverA)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	_, err = svc.RequestSupport(ctx, "r1", supervisor)
	require.NoError(t, err, "supervisors can request support for any delivery")

	mr.Close()
	_, err = svc.RequestSupport(ctx, "r1", driverA)
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, RetryAfter(now, now.Add(-time.Second)))
	assert.Equal(t, 2, RetryAfter(now, now.Add(1500*time.Millisecond)))
}
