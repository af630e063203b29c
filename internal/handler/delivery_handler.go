package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/middleware"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/service"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
	"github.com/noah-isme/delivery-ops-api/pkg/response"
)

type lifecycleService interface {
	Get(ctx context.Context, id string, actor models.Identity) (*models.DeliveryView, error)
	List(ctx context.Context, query dto.DeliveryListQuery, actor models.Identity) ([]models.DeliveryView, *models.Pagination, error)
	ReportProblem(ctx context.Context, id string, req dto.ReportProblemRequest, actor models.Identity) (*models.DeliveryRecord, error)
	MarkAsMonitored(ctx context.Context, id string, actor models.Identity) (*models.DeliveryRecord, error)
	AddComment(ctx context.Context, id, text string, actor models.Identity) (*models.Comment, error)
	Finalize(ctx context.Context, id string, checkout *time.Time, actor models.Identity) (*models.DeliveryRecord, error)
	Return(ctx context.Context, id string, checkout *time.Time, actor models.Identity) (*models.DeliveryRecord, error)
}

type exportService interface {
	ExportDeliveries(ctx context.Context, query dto.DeliveryListQuery, actor models.Identity) (*service.ExportFile, error)
}

// DeliveryHandler exposes delivery lifecycle endpoints.
type DeliveryHandler struct {
	lifecycle lifecycleService
	exports   exportService
}

// NewDeliveryHandler builds a new handler.
func NewDeliveryHandler(lifecycle lifecycleService, exports exportService) *DeliveryHandler {
	return &DeliveryHandler{lifecycle: lifecycle, exports: exports}
}

// List godoc
// @Summary List deliveries
// @Description Drivers only see their own deliveries.
// @Tags Deliveries
// @Produce json
// @Param status query string false "in_progress, finalized or returned"
// @Param has_problem query bool false "Only records with an open problem"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /deliveries [get]
func (h *DeliveryHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.DeliveryListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.lifecycle.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	scope := "own"
	if service.IsElevated(actor) {
		scope = "all"
	}
	middleware.SetMeta(c, "scope", scope)
	response.JSON(c, http.StatusOK, items, pagination, middleware.ResponseMeta(c))
}

// Get godoc
// @Summary Get delivery
// @Tags Deliveries
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /deliveries/{id} [get]
func (h *DeliveryHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.lifecycle.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Export godoc
// @Summary Export deliveries
// @Tags Deliveries
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /deliveries/export [get]
func (h *DeliveryHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.DeliveryListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.exports.ExportDeliveries(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Data)
}

// ReportProblem godoc
// @Summary Report a problem
// @Tags Deliveries
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body dto.ReportProblemRequest true "Problem payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /deliveries/{id}/problem [post]
func (h *DeliveryHandler) ReportProblem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReportProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid problem payload"))
		return
	}
	record, err := h.lifecycle.ReportProblem(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Monitor godoc
// @Summary Mark a problem as monitored
// @Tags Deliveries
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /deliveries/{id}/monitor [post]
func (h *DeliveryHandler) Monitor(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	record, err := h.lifecycle.MarkAsMonitored(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// AddComment godoc
// @Summary Comment on a delivery
// @Tags Deliveries
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body dto.AddCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Router /deliveries/{id}/comments [post]
func (h *DeliveryHandler) AddComment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}
	comment, err := h.lifecycle.AddComment(c.Request.Context(), c.Param("id"), req.Text, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// Finalize godoc
// @Summary Finalize a delivery
// @Tags Deliveries
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body dto.CheckoutRequest false "Checkout time"
// @Success 200 {object} response.Envelope
// @Router /deliveries/{id}/finalize [post]
func (h *DeliveryHandler) Finalize(c *gin.Context) {
	h.close(c, h.lifecycle.Finalize)
}

// Return godoc
// @Summary Return a delivery
// @Tags Deliveries
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param payload body dto.CheckoutRequest false "Checkout time"
// @Success 200 {object} response.Envelope
// @Router /deliveries/{id}/return [post]
func (h *DeliveryHandler) Return(c *gin.Context) {
	h.close(c, h.lifecycle.Return)
}

type closeFunc func(ctx context.Context, id string, checkout *time.Time, actor models.Identity) (*models.DeliveryRecord, error)

func (h *DeliveryHandler) close(c *gin.Context, fn closeFunc) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CheckoutRequest
	// The body is optional; a chunked request may still carry none.
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid checkout payload"))
			return
		}
	}
	record, err := fn(c.Request.Context(), c.Param("id"), req.CheckoutTime, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
