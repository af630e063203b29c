package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/service"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
	"github.com/noah-isme/delivery-ops-api/pkg/response"
)

type supportService interface {
	RequestSupport(ctx context.Context, recordID string, actor models.Identity) (*models.SupportRequest, error)
	CanRequest(ctx context.Context, recordID string, actor models.Identity) (*models.SupportAvailability, error)
}

// SupportHandler exposes the support shortcut.
type SupportHandler struct {
	support supportService
	clock   clock.Clock
}

// NewSupportHandler builds a new handler.
func NewSupportHandler(support supportService, clk clock.Clock) *SupportHandler {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &SupportHandler{support: support, clock: clk}
}

// Request godoc
// @Summary Request support for a delivery
// @Description Returns a WhatsApp link. Repeated requests within the cooldown get 429 with Retry-After.
// @Tags Support
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /deliveries/{id}/support [post]
func (h *SupportHandler) Request(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	req, err := h.support.RequestSupport(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		if errors.Is(err, appErrors.ErrCooldown) && req != nil {
			response.TooManyRequests(c, err, service.RetryAfter(h.clock.Now(), req.CooldownUntil))
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Availability godoc
// @Summary Support availability
// @Tags Support
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} response.Envelope
// @Router /deliveries/{id}/support [get]
func (h *SupportHandler) Availability(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	availability, err := h.support.CanRequest(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}
