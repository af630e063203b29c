package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

type presenceStore interface {
	Upsert(ctx context.Context, ping models.LocationPing) error
	List(ctx context.Context) ([]models.LocationPing, error)
}

// PresenceService is the server side of location sync.
type PresenceService struct {
	store      presenceStore
	validator  *validator.Validate
	clock      clock.Clock
	staleAfter time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewPresenceService constructs a PresenceService.
func NewPresenceService(store presenceStore, validate *validator.Validate, clk clock.Clock, staleAfter time.Duration, metrics *MetricsService, logger *zap.Logger) *PresenceService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{store: store, validator: validate, clock: clk, staleAfter: staleAfter, metrics: metrics, logger: logger}
}

// Upsert stores the caller's position. The identity always comes from the session.
func (s *PresenceService) Upsert(ctx context.Context, actor models.Identity, req dto.UpsertLocationRequest) (*models.LocationPing, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location payload")
	}
	email := actor.NormalizedEmail()
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "identity has no email")
	}

	now := s.clock.Now().UTC()
	captured := now
	if req.CapturedAt != nil && !req.CapturedAt.IsZero() && !req.CapturedAt.After(now) {
		captured = req.CapturedAt.UTC()
	}
	name := strings.TrimSpace(req.UserName)
	if name == "" {
		name = actor.Name
	}

	ping := models.LocationPing{
		UserEmail:  email,
		UserName:   name,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		IsOnline:   true,
		LastUpdate: captured,
	}
	if err := s.store.Upsert(ctx, ping); err != nil {
		s.metrics.ObservePresence("unavailable")
		return nil, appErrors.Unavailable(err, "failed to store location")
	}
	s.metrics.ObservePresence("ok")
	return &ping, nil
}

// ListOnline returns one ping per user, newest first. Pings older than the stale window are reported offline.
func (s *PresenceService) ListOnline(ctx context.Context, actor models.Identity) ([]models.LocationPing, error) {
	if !IsElevated(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "presence map is available to supervisors only")
	}
	pings, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list locations")
	}

	now := s.clock.Now()
	latest := make(map[string]models.LocationPing, len(pings))
	for _, p := range pings {
		key := models.NormalizeEmail(p.UserEmail)
		if current, ok := latest[key]; ok && !p.LastUpdate.After(current.LastUpdate) {
			continue
		}
		latest[key] = p
	}

	out := make([]models.LocationPing, 0, len(latest))
	for _, p := range latest {
		if now.Sub(p.LastUpdate) > s.staleAfter {
			p.IsOnline = false
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUpdate.Equal(out[j].LastUpdate) {
			return out[i].LastUpdate.After(out[j].LastUpdate)
		}
		return out[i].UserEmail < out[j].UserEmail
	})
	return out, nil
}
