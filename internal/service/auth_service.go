package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	appErrors "github.com/noah-isme/delivery-ops-api/pkg/errors"
)

// AuthConfig defines how access tokens are signed and checked.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService validates and issues HS256 access tokens. Accounts live in the identity
// provider; this service only trusts tokens signed with the shared secret.
type AuthService struct {
	config AuthConfig
	clock  clock.Clock
	logger *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(config AuthConfig, clk clock.Clock, logger *zap.Logger) *AuthService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	return &AuthService{config: config, clock: clk, logger: logger}
}

// ValidateToken parses the token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no email")
	}
	if !knownRole(claims.Role) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has an unknown role")
	}
	return claims, nil
}

// IssueToken signs an access token for the identity. A zero ttl uses the configured expiry.
func (s *AuthService) IssueToken(identity models.Identity, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(identity.Email) == "" || !knownRole(identity.Role) {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "identity requires an email and a known role")
	}
	if ttl <= 0 {
		ttl = s.config.AccessTokenExpiry
	}
	issuedAt := s.clock.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	email := models.NormalizeEmail(identity.Email)
	claims := &models.JWTClaims{
		UserID:   email,
		Role:     identity.Role,
		Email:    email,
		FullName: identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	s.logger.Debug("access token issued", zap.String("email", email), zap.Time("expires_at", expiresAt))
	return signed, expiresAt, nil
}

func knownRole(role models.UserRole) bool {
	if role == models.RoleDriver {
		return true
	}
	for _, r := range models.ElevatedRoles {
		if r == role {
			return true
		}
	}
	return false
}
