package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/delivery-ops-api/internal/models"
)

const deliveryColumns = `id, client_name, driver_name, owner_email, status, problem_type, problem_note, being_monitored,
	checkin_time, checkout_time, duration_minutes, attachments, created_at, updated_at`

// DeliveryRepository is the Postgres backed delivery store.
type DeliveryRepository struct {
	db *sqlx.DB
}

// NewDeliveryRepository constructs a DeliveryRepository.
func NewDeliveryRepository(db *sqlx.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// FindByID loads a delivery with its comments.
func (r *DeliveryRepository) FindByID(ctx context.Context, id string) (*models.DeliveryRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM deliveries WHERE id = $1`, deliveryColumns)
	var record models.DeliveryRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	comments, err := r.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Comments = comments
	return &record, nil
}

// List returns deliveries matching the filter along with the total count.
func (r *DeliveryRepository) List(ctx context.Context, filter models.DeliveryFilter) ([]models.DeliveryRecord, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if filter.OwnerEmail != "" {
		args = append(args, models.NormalizeEmail(filter.OwnerEmail))
		conditions = append(conditions, fmt.Sprintf("LOWER(d.owner_email) = $%d", len(args)))
	}
	if filter.HasProblem != nil {
		if *filter.HasProblem {
			conditions = append(conditions, "COALESCE(d.problem_type, '') <> ''")
		} else {
			conditions = append(conditions, "COALESCE(d.problem_type, '') = ''")
		}
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("d.checkin_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("d.checkin_time < $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(d.client_name) LIKE $%d OR LOWER(d.driver_name) LIKE $%d)", len(args), len(args)))
	}

	base := fmt.Sprintf("FROM deliveries d WHERE %s", strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"checkin_time": "d.checkin_time",
		"created_at":   "d.created_at",
		"client_name":  "d.client_name",
		"status":       "d.status",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "d.checkin_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s NULLS LAST, d.id LIMIT %d OFFSET %d`,
		prefixColumns("d", deliveryColumns), base, column, order, size, offset)

	var records []models.DeliveryRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list deliveries: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}
	return records, total, nil
}

// ListInProgress returns every open delivery without comments; used by the alert loop.
func (r *DeliveryRepository) ListInProgress(ctx context.Context) ([]models.DeliveryRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM deliveries WHERE status = $1 ORDER BY checkin_time ASC NULLS LAST, id`, deliveryColumns)
	var records []models.DeliveryRecord
	if err := r.db.SelectContext(ctx, &records, query, string(models.DeliveryInProgress)); err != nil {
		return nil, fmt.Errorf("list open deliveries: %w", err)
	}
	return records, nil
}

// DeliveryUpdateParams is a partial update. Nil fields are left untouched.
type DeliveryUpdateParams struct {
	Status          *models.DeliveryStatus
	ProblemType     *string
	ProblemNote     *string
	BeingMonitored  *bool
	CheckoutTime    *time.Time
	DurationMinutes *int
	// ExpectStatus guards the write; when set, zero affected rows yields sql.ErrNoRows.
	ExpectStatus *models.DeliveryStatus
}

// Update applies a partial update in a single statement.
func (r *DeliveryRepository) Update(ctx context.Context, id string, params DeliveryUpdateParams) error {
	sets := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", string(*params.Status))
	}
	if params.ProblemType != nil {
		add("problem_type", *params.ProblemType)
	}
	if params.ProblemNote != nil {
		add("problem_note", *params.ProblemNote)
	}
	if params.BeingMonitored != nil {
		add("being_monitored", *params.BeingMonitored)
	}
	if params.CheckoutTime != nil {
		add("checkout_time", params.CheckoutTime.UTC())
	}
	if params.DurationMinutes != nil {
		add("duration_minutes", *params.DurationMinutes)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE deliveries SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if params.ExpectStatus != nil {
		args = append(args, string(*params.ExpectStatus))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update delivery rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendComment inserts a comment for a delivery.
func (r *DeliveryRepository) AppendComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO delivery_comments (id, delivery_id, author_email, author_name, body, created_at)
	VALUES (:id, :delivery_id, :author_email, :author_name, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("append comment: %w", err)
	}
	return nil
}

// ListComments returns comments oldest first.
func (r *DeliveryRepository) ListComments(ctx context.Context, deliveryID string) ([]models.Comment, error) {
	const query = `SELECT id, delivery_id, author_email, author_name, body, created_at
	FROM delivery_comments WHERE delivery_id = $1 ORDER BY created_at ASC, id ASC`
	comments := []models.Comment{}
	if err := r.db.SelectContext(ctx, &comments, query, deliveryID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
