package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/repository"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

type deliveryStore interface {
	FindByID(ctx context.Context, id string) (*models.DeliveryRecord, error)
	List(ctx context.Context, filter models.DeliveryFilter) ([]models.DeliveryRecord, int, error)
	ListInProgress(ctx context.Context) ([]models.DeliveryRecord, error)
	Update(ctx context.Context, id string, params repository.DeliveryUpdateParams) error
	AppendComment(ctx context.Context, comment *models.Comment) error
}

// LifecycleService applies delivery state transitions.
type LifecycleService struct {
	store     deliveryStore
	validator *validator.Validate
	clock     clock.Clock
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewLifecycleService constructs a LifecycleService.
func NewLifecycleService(store deliveryStore, validate *validator.Validate, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *LifecycleService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{store: store, validator: validate, clock: clk, metrics: metrics, logger: logger}
}

// Get returns a delivery visible to the actor together with the actor's permissions.
func (s *LifecycleService) Get(ctx context.Context, id string, actor models.Identity) (*models.DeliveryView, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsElevated(actor) && !record.IsOwnedBy(actor.Email) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "delivery belongs to another driver")
	}
	return &models.DeliveryView{DeliveryRecord: record, Permissions: Permissions(actor, record)}, nil
}

// List returns deliveries; drivers only see their own.
func (s *LifecycleService) List(ctx context.Context, query dto.DeliveryListQuery, actor models.Identity) ([]models.DeliveryView, *models.Pagination, error) {
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, nil, err
	}
	if !IsElevated(actor) {
		filter.OwnerEmail = actor.Email
	}
	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Unavailable(err, "failed to list deliveries")
	}
	views := make([]models.DeliveryView, 0, len(records))
	for i := range records {
		record := &records[i]
		views = append(views, models.DeliveryView{DeliveryRecord: record, Permissions: Permissions(actor, record)})
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// OpenDeliveries returns every in-progress delivery for alert evaluation.
func (s *LifecycleService) OpenDeliveries(ctx context.Context) ([]models.DeliveryRecord, error) {
	records, err := s.store.ListInProgress(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to load open deliveries")
	}
	return records, nil
}

// ReportProblem flags a problem on an open delivery. An existing monitoring flag is kept:
// a new report only replaces the description of a delivery a supervisor is already watching.
func (s *LifecycleService) ReportProblem(ctx context.Context, id string, req dto.ReportProblemRequest, actor models.Identity) (*models.DeliveryRecord, error) {
	req.ProblemType = strings.TrimSpace(req.ProblemType)
	req.Note = strings.TrimSpace(req.Note)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid problem payload")
	}

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsElevated(actor) && !record.IsOwnedBy(actor.Email) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or a supervisor can report a problem")
	}
	if record.Status != models.DeliveryInProgress {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "problems can only be reported on deliveries in progress")
	}

	if err := s.apply(ctx, id, "report_problem", repository.DeliveryUpdateParams{
		ProblemType: &req.ProblemType,
		ProblemNote: &req.Note,
	}); err != nil {
		return nil, err
	}
	record.ProblemType = &req.ProblemType
	record.ProblemNote = &req.Note
	s.logger.Info("problem reported",
		zap.String("delivery_id", id),
		zap.String("problem_type", req.ProblemType),
		zap.String("actor", actor.Email),
		zap.Bool("being_monitored", record.BeingMonitored))
	return record, nil
}

// MarkAsMonitored acknowledges an open problem.
func (s *LifecycleService) MarkAsMonitored(ctx context.Context, id string, actor models.Identity) (*models.DeliveryRecord, error) {
	if !IsElevated(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only supervisors can monitor deliveries")
	}
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.DeliveryInProgress {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "delivery is no longer in progress")
	}
	if !record.HasOpenProblem() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "delivery has no open problem")
	}
	if record.BeingMonitored {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "delivery is already being monitored")
	}

	monitored := true
	if err := s.apply(ctx, id, "monitor", repository.DeliveryUpdateParams{BeingMonitored: &monitored}); err != nil {
		return nil, err
	}
	record.BeingMonitored = true
	s.logger.Info("delivery monitored", zap.String("delivery_id", id), zap.String("actor", actor.Email))
	return record, nil
}

// AddComment appends a comment at any status.
func (s *LifecycleService) AddComment(ctx context.Context, id, text string, actor models.Identity) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxCommentLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment exceeds 500 characters")
	}

	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanComment(actor, record) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or a supervisor can comment")
	}

	comment := &models.Comment{
		DeliveryID:  id,
		AuthorEmail: actor.Email,
		AuthorName:  actor.Name,
		Text:        text,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.store.AppendComment(ctx, comment); err != nil {
		s.metrics.ObserveTransition("comment", "unavailable")
		return nil, appErrors.Unavailable(err, "failed to save comment")
	}
	s.metrics.ObserveTransition("comment", "ok")
	return comment, nil
}

// Finalize closes a delivery as completed.
func (s *LifecycleService) Finalize(ctx context.Context, id string, checkout *time.Time, actor models.Identity) (*models.DeliveryRecord, error) {
	return s.close(ctx, id, models.DeliveryFinalized, checkout, actor)
}

// Return closes a delivery as returned to the depot.
func (s *LifecycleService) Return(ctx context.Context, id string, checkout *time.Time, actor models.Identity) (*models.DeliveryRecord, error) {
	return s.close(ctx, id, models.DeliveryReturned, checkout, actor)
}

func (s *LifecycleService) close(ctx context.Context, id string, target models.DeliveryStatus, checkout *time.Time, actor models.Identity) (*models.DeliveryRecord, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsElevated(actor) && !record.IsOwnedBy(actor.Email) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or a supervisor can close a delivery")
	}
	if record.Status != models.DeliveryInProgress {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "delivery is already "+string(record.Status))
	}
	if record.CheckinTime == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "delivery has no check-in time")
	}

	at := s.clock.Now().UTC()
	if checkout != nil && !checkout.IsZero() {
		at = checkout.UTC()
	}
	if at.Before(*record.CheckinTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "checkout cannot precede check-in")
	}
	minutes := int(at.Sub(*record.CheckinTime) / time.Minute)

	if err := s.apply(ctx, id, string(target), repository.DeliveryUpdateParams{
		Status:          &target,
		CheckoutTime:    &at,
		DurationMinutes: &minutes,
	}); err != nil {
		return nil, err
	}
	record.Status = target
	record.CheckoutTime = &at
	record.DurationMinutes = &minutes
	s.logger.Info("delivery closed",
		zap.String("delivery_id", id),
		zap.String("status", string(target)),
		zap.Int("duration_minutes", minutes),
		zap.String("actor", actor.Email))
	return record, nil
}

// apply writes a transition guarded on the in-progress status.
func (s *LifecycleService) apply(ctx context.Context, id, transition string, params repository.DeliveryUpdateParams) error {
	expect := models.DeliveryInProgress
	params.ExpectStatus = &expect
	err := s.store.Update(ctx, id, params)
	switch {
	case err == nil:
		s.metrics.ObserveTransition(transition, "ok")
		return nil
	case errors.Is(err, sql.ErrNoRows):
		s.metrics.ObserveTransition(transition, "conflict")
		return appErrors.Clone(appErrors.ErrInvalidState, "delivery changed while the action was applied")
	default:
		s.metrics.ObserveTransition(transition, "unavailable")
		return appErrors.Unavailable(err, "failed to update delivery")
	}
}

func (s *LifecycleService) load(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "delivery id is required")
	}
	record, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "delivery not found")
		}
		return nil, appErrors.Unavailable(err, "failed to load delivery")
	}
	return record, nil
}

func (s *LifecycleService) buildFilter(query dto.DeliveryListQuery) (models.DeliveryFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.DeliveryFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list query")
	}
	filter := models.DeliveryFilter{
		HasProblem: query.HasProblem,
		Search:     strings.TrimSpace(query.Search),
		Page:       query.Page,
		PageSize:   query.PageSize,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	}
	if query.Status != "" {
		status := models.DeliveryStatus(query.Status)
		filter.Status = &status
	}
	from, err := parseDateParam(query.From, false)
	if err != nil {
		return models.DeliveryFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid from date")
	}
	to, err := parseDateParam(query.To, true)
	if err != nil {
		return models.DeliveryFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid to date")
	}
	filter.From, filter.To = from, to
	return filter, nil
}

// parseDateParam accepts YYYY-MM-DD or RFC3339. A plain end date covers the whole day.
func parseDateParam(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
