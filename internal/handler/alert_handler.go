package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/response"
)

type alertService interface {
	Active(ctx context.Context, actor models.Identity) (models.AlertFeed, error)
	Dismiss(ctx context.Context, actor models.Identity, alertID string) error
}

// AlertHandler serves the supervisor alert feed.
type AlertHandler struct {
	alerts alertService
}

// NewAlertHandler builds a new handler.
func NewAlertHandler(alerts alertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// List godoc
// @Summary Active alerts
// @Description Passive alerts plus the interruptive alert of the last evaluation.
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	feed, err := h.alerts.Active(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feed, nil)
}

// Dismiss godoc
// @Summary Dismiss an alert
// @Tags Alerts
// @Param id path string true "Alert ID"
// @Success 204
// @Router /alerts/{id}/dismiss [post]
func (h *AlertHandler) Dismiss(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.alerts.Dismiss(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
