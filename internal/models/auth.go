package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Identity projects the claims onto the identity consumed by services.
func (c *JWTClaims) Identity() Identity {
	if c == nil {
		return Identity{}
	}
	return Identity{Email: c.Email, Name: c.FullName, Role: c.Role}
}
