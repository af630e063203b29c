package service

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/notify"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

type deliveryReader interface {
	Get(ctx context.Context, id string, actor models.Identity) (*models.DeliveryView, error)
}

type cooldownStore interface {
	Acquire(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, time.Time, error)
	Until(ctx context.Context, id string) (time.Time, error)
}

// SupportService builds support requests for a delivery and rate limits them per record.
type SupportService struct {
	deliveries deliveryReader
	cooldowns  cooldownStore
	sink       notify.Sink
	clock      clock.Clock
	phone      string
	cooldown   time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewSupportService constructs a SupportService.
func NewSupportService(deliveries deliveryReader, cooldowns cooldownStore, sink notify.Sink, clk clock.Clock, phone string, cooldown time.Duration, metrics *MetricsService, logger *zap.Logger) *SupportService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupportService{
		deliveries: deliveries,
		cooldowns:  cooldowns,
		sink:       sink,
		clock:      clk,
		phone:      phone,
		cooldown:   cooldown,
		metrics:    metrics,
		logger:     logger,
	}
}

// RetryAfter returns the whole seconds left until the deadline, rounded up.
func RetryAfter(now, until time.Time) int {
	if !until.After(now) {
		return 0
	}
	return int(math.Ceil(until.Sub(now).Seconds()))
}

// RequestSupport starts a cooldown for the record and returns the WhatsApp deep link.
// Within the cooldown it returns the active deadline together with ErrCooldown.
func (s *SupportService) RequestSupport(ctx context.Context, recordID string, actor models.Identity) (*models.SupportRequest, error) {
	view, err := s.deliveries.Get(ctx, recordID, actor)
	if err != nil {
		return nil, err
	}
	record := view.DeliveryRecord
	if record.Status != models.DeliveryInProgress {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "support is only available for deliveries in progress")
	}

	now := s.clock.Now()
	ok, until, err := s.cooldowns.Acquire(ctx, record.ID, now, s.cooldown)
	if err != nil {
		s.metrics.ObserveSupport("unavailable")
		return nil, appErrors.Unavailable(err, "failed to check support cooldown")
	}
	if !ok {
		s.metrics.ObserveSupport("cooldown")
		return &models.SupportRequest{DeliveryID: record.ID, CooldownUntil: until},
			appErrors.Clone(appErrors.ErrCooldown, fmt.Sprintf("support was already requested, try again in %ds", RetryAfter(now, until)))
	}

	message := supportMessage(record, actor)
	req := &models.SupportRequest{
		DeliveryID:    record.ID,
		Message:       message,
		WhatsAppURL:   WhatsAppLink(s.phone, message),
		CooldownUntil: until,
	}

	if s.sink != nil {
		err := s.sink.Send(ctx, notify.Message{
			Channel:   notify.ChannelWhatsApp,
			Recipient: actor.NormalizedEmail(),
			Text:      message,
			DedupKey:  "support:" + record.ID,
		})
		if err != nil {
			s.logger.Warn("support copy not delivered", zap.String("delivery_id", record.ID), zap.Error(err))
		}
	}
	s.metrics.ObserveSupport("ok")
	s.logger.Info("support requested", zap.String("delivery_id", record.ID), zap.String("actor", actor.Email), zap.Time("cooldown_until", until))
	return req, nil
}

// CanRequest reports whether the support shortcut is available for the record.
func (s *SupportService) CanRequest(ctx context.Context, recordID string, actor models.Identity) (*models.SupportAvailability, error) {
	view, err := s.deliveries.Get(ctx, recordID, actor)
	if err != nil {
		return nil, err
	}
	until, err := s.cooldowns.Until(ctx, view.ID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to read support cooldown")
	}
	availability := &models.SupportAvailability{
		DeliveryID: view.ID,
		Available:  view.Status == models.DeliveryInProgress,
	}
	if until.After(s.clock.Now()) {
		availability.Available = false
		availability.CooldownUntil = &until
	}
	return availability, nil
}

// WhatsAppLink builds a click-to-chat URL. Non-digits are stripped from the phone number.
func WhatsAppLink(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return fmt.Sprintf("https://wa.me/%s?text=%s", digits, strings.ReplaceAll(url.QueryEscape(text), "+", "%20"))
}

func supportMessage(record *models.DeliveryRecord, actor models.Identity) string {
	var b strings.Builder
	name := actor.Name
	if name == "" {
		name = actor.Email
	}
	fmt.Fprintf(&b, "Hello, this is %s. I need support with the delivery at %s (ref %s).", name, clientOrID(record), record.ID)
	if record.HasOpenProblem() {
		fmt.Fprintf(&b, " Problem: %s.", record.ProblemLabel())
	}
	if record.ProblemNote != nil && strings.TrimSpace(*record.ProblemNote) != "" {
		fmt.Fprintf(&b, " Note: %s", strings.TrimSpace(*record.ProblemNote))
	}
	return b.String()
}

func clientOrID(record *models.DeliveryRecord) string {
	if record.ClientName != "" {
		return record.ClientName
	}
	return record.ID
}
