package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/delivery-ops-api/internal/dto"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
	"github.com/noah-isme/delivery-ops-api/pkg/response"
)

type presenceService interface {
	Upsert(ctx context.Context, actor models.Identity, req dto.UpsertLocationRequest) (*models.LocationPing, error)
	ListOnline(ctx context.Context, actor models.Identity) ([]models.LocationPing, error)
}

// PresenceHandler exposes live driver locations.
type PresenceHandler struct {
	presence presenceService
}

// NewPresenceHandler builds a new handler.
func NewPresenceHandler(presence presenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// Upsert godoc
// @Summary Report the caller's location
// @Tags Presence
// @Accept json
// @Produce json
// @Param payload body dto.UpsertLocationRequest true "Location"
// @Success 200 {object} response.Envelope
// @Router /presence [put]
func (h *PresenceHandler) Upsert(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpsertLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid location payload"))
		return
	}
	ping, err := h.presence.Upsert(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ping, nil)
}

// List godoc
// @Summary Online drivers
// @Tags Presence
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /presence [get]
func (h *PresenceHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	pings, err := h.presence.ListOnline(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pings, nil)
}
