package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/notify"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

type openDeliveryLoader interface {
	OpenDeliveries(ctx context.Context) ([]models.DeliveryRecord, error)
}

type ledgerStore interface {
	Load(ctx context.Context, user string) (models.NotificationLedger, error)
	SaveMarkers(ctx context.Context, user string, ledger models.NotificationLedger) error
	AddDismissal(ctx context.Context, user, alertID string) error
}

type markerStore interface {
	Acquire(ctx context.Context, id string, now time.Time, ttl time.Duration) (bool, time.Time, error)
}

// NotificationServiceConfig carries the tunables of the alert loop.
type NotificationServiceConfig struct {
	Rules         AlertRules
	Subscribers   []string
	SentMarkerTTL time.Duration
}

// NotificationService evaluates alerts for every subscribed supervisor and keeps their feeds.
type NotificationService struct {
	deliveries openDeliveryLoader
	ledgers    ledgerStore
	sent       markerStore
	sink       notify.Sink
	clock      clock.Clock
	cfg        NotificationServiceConfig
	metrics    *MetricsService
	logger     *zap.Logger

	mu          sync.Mutex
	subscribers map[string]struct{}
	feeds       map[string]models.AlertFeed
	// pending holds dismissals not yet written to the ledger store.
	pending map[string]map[string]struct{}
	// surfaced stands in for the sent marker store when none is configured.
	surfaced map[string]struct{}
	// userLocks serialise evaluation and dismissal per user.
	userLocks map[string]*sync.Mutex
}

// NewNotificationService constructs the service.
func NewNotificationService(deliveries openDeliveryLoader, ledgers ledgerStore, sent markerStore, sink notify.Sink, clk clock.Clock, cfg NotificationServiceConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SentMarkerTTL <= 0 {
		cfg.SentMarkerTTL = 24 * time.Hour
	}
	if cfg.Rules.TimeWaitThreshold <= 0 {
		cfg.Rules = DefaultAlertRules()
	}
	svc := &NotificationService{
		deliveries:  deliveries,
		ledgers:     ledgers,
		sent:        sent,
		sink:        sink,
		clock:       clk,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger,
		subscribers: make(map[string]struct{}),
		feeds:       make(map[string]models.AlertFeed),
		pending:     make(map[string]map[string]struct{}),
		surfaced:    make(map[string]struct{}),
		userLocks:   make(map[string]*sync.Mutex),
	}
	for _, s := range cfg.Subscribers {
		svc.Subscribe(s)
	}
	return svc
}

// Subscribe adds a user to the evaluation loop.
func (s *NotificationService) Subscribe(email string) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return
	}
	s.mu.Lock()
	s.subscribers[email] = struct{}{}
	s.mu.Unlock()
}

// Subscribers returns the subscribed users in a stable order.
func (s *NotificationService) Subscribers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subscribers))
	for email := range s.subscribers {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

// Tick runs one evaluation for every subscriber. A failed delivery read skips the tick.
func (s *NotificationService) Tick(ctx context.Context) error {
	start := s.clock.Now()
	records, err := s.deliveries.OpenDeliveries(ctx)
	if err != nil {
		s.metrics.ObserveEvaluation("skipped", s.clock.Now().Sub(start))
		s.logger.Warn("alert tick skipped", zap.Error(err))
		return err
	}

	for _, user := range s.Subscribers() {
		unlock := s.lockUser(user)
		err := s.evaluateUser(ctx, user, records, start)
		unlock()
		if err != nil {
			s.logger.Warn("alert evaluation failed", zap.String("user", user), zap.Error(err))
		}
	}
	s.metrics.ObserveEvaluation("ok", s.clock.Now().Sub(start))
	return nil
}

// lockUser serialises work on one user's ledger and feed.
func (s *NotificationService) lockUser(user string) func() {
	s.mu.Lock()
	l, ok := s.userLocks[user]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[user] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// evaluateUser rebuilds the user's feed. Callers hold the user lock.
func (s *NotificationService) evaluateUser(ctx context.Context, user string, records []models.DeliveryRecord, now time.Time) error {
	s.mu.Lock()
	pending := make([]string, 0, len(s.pending[user]))
	for id := range s.pending[user] {
		pending = append(pending, id)
	}
	s.mu.Unlock()

	ledger, err := s.ledgers.Load(ctx, user)
	if err != nil {
		return appErrors.Unavailable(err, "failed to load notification ledger")
	}
	if ledger.Dismissed == nil {
		ledger.Dismissed = map[string]bool{}
	}
	for _, id := range pending {
		ledger.Dismissed[id] = true
	}

	eval, next := Evaluate(records, ledger, now, s.cfg.Rules)
	if !sameMarkers(ledger, next) {
		if err := s.ledgers.SaveMarkers(ctx, user, next); err != nil {
			s.logger.Warn("failed to persist alert markers", zap.String("user", user), zap.Error(err))
		}
	}
	if len(eval.Alerts) > 0 {
		s.logger.Debug("alerts emitted", zap.String("user", user), zap.Strings("alert_ids", alertIDs(eval.Alerts)))
	}

	evaluatedAt := now
	feed := models.AlertFeed{Alerts: eval.Active, EvaluatedAt: &evaluatedAt}
	if feed.Alerts == nil {
		feed.Alerts = []models.Alert{}
	}
	feed.Toast = s.promote(ctx, user, feed.Alerts, now)

	s.mu.Lock()
	s.feeds[user] = s.withoutPending(user, feed)
	s.mu.Unlock()
	return nil
}

// promote picks the tick's toast: the first active alert, in evaluation order, that was not
// surfaced to the user before. The chosen alert is marked and pushed; the others stay passive
// and become eligible on later ticks.
func (s *NotificationService) promote(ctx context.Context, user string, candidates []models.Alert, now time.Time) *models.Alert {
	for i := range candidates {
		alert := candidates[i]
		fresh, err := s.markSurfaced(ctx, user, alert.ID, now)
		if err != nil {
			s.metrics.ObserveDispatch(s.sinkName(), "marker_error")
			s.logger.Warn("sent marker unavailable, no toast this tick", zap.String("alert_id", alert.ID), zap.Error(err))
			return nil
		}
		if !fresh {
			continue
		}
		s.metrics.ObserveAlert(string(alert.Kind))
		s.push(ctx, user, alert)
		return &alert
	}
	return nil
}

func (s *NotificationService) markSurfaced(ctx context.Context, user, alertID string, now time.Time) (bool, error) {
	key := user + "|" + alertID
	if s.sent != nil {
		ok, _, err := s.sent.Acquire(ctx, key, now, s.cfg.SentMarkerTTL)
		return ok, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.surfaced[key]; seen {
		return false, nil
	}
	s.surfaced[key] = struct{}{}
	return true, nil
}

func (s *NotificationService) sinkName() string {
	if s.sink == nil {
		return "none"
	}
	return s.sink.Name()
}

func (s *NotificationService) push(ctx context.Context, user string, alert models.Alert) {
	if s.sink == nil {
		return
	}
	err := s.sink.Send(ctx, notify.Message{
		Channel:   notify.ChannelPush,
		Recipient: user,
		Text:      alert.Message,
		DedupKey:  alert.ID,
	})
	if err != nil {
		s.metrics.ObserveDispatch(s.sink.Name(), "failed")
		s.logger.Warn("push failed", zap.String("alert_id", alert.ID), zap.String("user", user), zap.Error(err))
		return
	}
	s.metrics.ObserveDispatch(s.sink.Name(), "sent")
}

// Active returns the feed of an elevated user, evaluating on demand on first access.
func (s *NotificationService) Active(ctx context.Context, actor models.Identity) (models.AlertFeed, error) {
	if !IsElevated(actor) {
		return models.AlertFeed{}, appErrors.Clone(appErrors.ErrForbidden, "alerts are available to supervisors only")
	}
	user := actor.NormalizedEmail()
	s.Subscribe(user)
	unlock := s.lockUser(user)
	defer unlock()
	s.retryPending(ctx, user)

	s.mu.Lock()
	feed, ok := s.feeds[user]
	s.mu.Unlock()
	if ok {
		return feed, nil
	}

	records, err := s.deliveries.OpenDeliveries(ctx)
	if err != nil {
		return models.AlertFeed{}, appErrors.Unavailable(err, "failed to evaluate alerts")
	}
	if err := s.evaluateUser(ctx, user, records, s.clock.Now()); err != nil {
		return models.AlertFeed{}, err
	}
	s.mu.Lock()
	feed = s.feeds[user]
	s.mu.Unlock()
	return feed, nil
}

// Dismiss hides an alert for the user. It is idempotent and never fails on store errors:
// a failed write is retried on the user's next action.
func (s *NotificationService) Dismiss(ctx context.Context, actor models.Identity, alertID string) error {
	if !IsElevated(actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "alerts are available to supervisors only")
	}
	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "alert id is required")
	}
	user := actor.NormalizedEmail()
	unlock := s.lockUser(user)
	defer unlock()

	s.mu.Lock()
	if s.pending[user] == nil {
		s.pending[user] = make(map[string]struct{})
	}
	s.pending[user][alertID] = struct{}{}
	if feed, ok := s.feeds[user]; ok {
		s.feeds[user] = s.withoutPending(user, feed)
	}
	s.mu.Unlock()

	s.retryPending(ctx, user)
	return nil
}

// PendingDismissals reports how many dismissals await a durable write for the user.
func (s *NotificationService) PendingDismissals(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[models.NormalizeEmail(user)])
}

// retryPending writes queued dismissals in order. Callers hold the user lock.
func (s *NotificationService) retryPending(ctx context.Context, user string) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending[user]))
	for id := range s.pending[user] {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := s.ledgers.AddDismissal(ctx, user, id); err != nil {
			s.logger.Warn("dismissal write deferred", zap.String("user", user), zap.String("alert_id", id), zap.Error(err))
			return
		}
		s.mu.Lock()
		delete(s.pending[user], id)
		if len(s.pending[user]) == 0 {
			delete(s.pending, user)
		}
		s.mu.Unlock()
	}
}

// withoutPending filters locally dismissed alerts out of a feed. Callers hold s.mu.
func (s *NotificationService) withoutPending(user string, feed models.AlertFeed) models.AlertFeed {
	pending := s.pending[user]
	if len(pending) == 0 {
		return feed
	}
	filtered := make([]models.Alert, 0, len(feed.Alerts))
	for _, alert := range feed.Alerts {
		if _, dismissed := pending[alert.ID]; !dismissed {
			filtered = append(filtered, alert)
		}
	}
	feed.Alerts = filtered
	if feed.Toast != nil {
		if _, dismissed := pending[feed.Toast.ID]; dismissed {
			feed.Toast = nil
		}
	}
	return feed
}
