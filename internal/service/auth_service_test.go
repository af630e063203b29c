package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

func TestAuthServiceIssueAndValidate(t *testing.T) {
	clk := clock.NewFake(time.Now())
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "delivery-ops"}, clk, nil)

	token, expiresAt, err := svc.IssueToken(models.Identity{Email: "Sup@Example.com", Name: "Sam", Role: models.RoleSupervisor}, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, clk.Now().Add(time.Hour), expiresAt, time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sup@example.com", claims.Email)
	assert.Equal(t, models.Identity{Email: "sup@example.com", Name: "Sam", Role: models.RoleSupervisor}, claims.Identity())

	clk.Advance(2 * time.Hour)
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), "expired tokens are rejected")
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Issuer: "delivery-ops"}, nil, nil)
	other := NewAuthService(AuthConfig{AccessTokenSecret: "other", Issuer: "delivery-ops"}, nil, nil)

	token, _, err := other.IssueToken(driverA, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := NewAuthService(AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"}, nil, nil)
	token, _, err = wrongIssuer.IssueToken(driverA, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	unknownRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		Email: "x@example.com",
		Role:  "TEACHER",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "delivery-ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := unknownRole.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, _, err = svc.IssueToken(models.Identity{Role: models.RoleDriver}, 0)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
