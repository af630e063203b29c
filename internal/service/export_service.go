package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
	"github.com/noah-isme/delivery-ops-api/pkg/export"
)

const (
	exportPageSize = 100
	maxExportRows  = 5000
)

type deliveryLister interface {
	List(ctx context.Context, query dto.DeliveryListQuery, actor models.Identity) ([]models.DeliveryView, *models.Pagination, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders delivery listings as CSV or PDF.
type ExportService struct {
	deliveries deliveryLister
	renderers  map[string]renderer
	clock      clock.Clock
	logger     *zap.Logger
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(deliveries deliveryLister, clk clock.Clock, logger *zap.Logger) *ExportService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		deliveries: deliveries,
		renderers: map[string]renderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		clock:  clk,
		logger: logger,
	}
}

var exportHeaders = []string{"ID", "Client", "Driver", "Status", "Problem", "Monitored", "Check-in", "Check-out", "Duration (min)", "Comments"}

// ExportDeliveries renders every delivery matching the query that the actor may see.
func (s *ExportService) ExportDeliveries(ctx context.Context, query dto.DeliveryListQuery, actor models.Identity) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = "csv"
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	var records []*models.DeliveryRecord
	query.PageSize = exportPageSize
	for page := 1; len(records) < maxExportRows; page++ {
		query.Page = page
		views, pagination, err := s.deliveries.List(ctx, query, actor)
		if err != nil {
			return nil, err
		}
		for _, v := range views {
			records = append(records, v.DeliveryRecord)
		}
		if len(views) < exportPageSize || (pagination != nil && len(records) >= pagination.TotalCount) {
			break
		}
	}
	if len(records) > maxExportRows {
		records = records[:maxExportRows]
	}

	now := s.clock.Now()
	dataset := buildDeliveryDataset(records, now)
	data, err := r.Render(dataset)
	if err != nil {
		s.logger.Error("export render failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("deliveries-%s.%s", now.UTC().Format("20060102-150405"), r.Extension()),
		ContentType: r.ContentType(),
		Data:        data,
		Rows:        len(records),
	}, nil
}

func buildDeliveryDataset(records []*models.DeliveryRecord, now time.Time) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	var problems, closed, totalMinutes int
	for _, r := range records {
		if r.HasOpenProblem() {
			problems++
		}
		duration := ""
		if r.DurationMinutes != nil {
			closed++
			totalMinutes += *r.DurationMinutes
			duration = strconv.Itoa(*r.DurationMinutes)
		}
		monitored := "no"
		if r.BeingMonitored {
			monitored = "yes"
		}
		rows = append(rows, map[string]string{
			"ID":             r.ID,
			"Client":         r.ClientName,
			"Driver":         r.DriverName,
			"Status":         string(r.Status),
			"Problem":        r.ProblemLabel(),
			"Monitored":      monitored,
			"Check-in":       formatExportTime(r.CheckinTime),
			"Check-out":      formatExportTime(r.CheckoutTime),
			"Duration (min)": duration,
			"Comments":       strconv.Itoa(len(r.Comments)),
		})
	}

	summary := []string{
		fmt.Sprintf("Deliveries: %d", len(records)),
		fmt.Sprintf("With problems: %d", problems),
	}
	if closed > 0 {
		summary = append(summary, fmt.Sprintf("Average duration: %d min", totalMinutes/closed))
	}
	summary = append(summary, "Generated at "+now.UTC().Format(time.RFC3339))

	return export.Dataset{
		Title:   "Deliveries",
		Headers: exportHeaders,
		Rows:    rows,
		Summary: summary,
	}
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
