package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/delivery-ops-api/internal/middleware"
	"github.com/noah-isme/delivery-ops-api/internal/models"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
	"github.com/noah-isme/delivery-ops-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext writes a 401 and returns false when no authenticated user is attached.
func actorFromContext(c *gin.Context) (models.Identity, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Email == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	return claims.Identity(), true
}
