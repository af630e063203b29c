package presence

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/pkg/clock"
)

// ErrNoToken is returned when neither a token nor a token file is configured.
var ErrNoToken = errors.New("presence: an agent token or token file is required")

// TokenSource supplies the bearer token for HTTPStore. A file-backed source is re-read on
// every request so an operator can rotate the token without restarting the agent.
type TokenSource struct {
	static string
	path   string
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	last   string
	warned string
}

// NewTokenSource builds a source from a fixed token, a token file, or both; the file wins
// while it is readable.
func NewTokenSource(token, path string, clk clock.Clock, logger *zap.Logger) (*TokenSource, error) {
	token, path = strings.TrimSpace(token), strings.TrimSpace(path)
	if token == "" && path == "" {
		return nil, ErrNoToken
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TokenSource{static: token, path: path, clock: clk, logger: logger, last: token}
	if path != "" {
		if _, err := s.read(); err != nil && token == "" {
			return nil, err
		}
	}
	return s, nil
}

// Token returns the current token. An unreadable file falls back to the last token read.
func (s *TokenSource) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := s.last
	if s.path != "" {
		if fresh, err := s.read(); err != nil {
			s.logger.Warn("agent token file unreadable", zap.String("path", s.path), zap.Error(err))
		} else {
			token = fresh
		}
	}
	if exp, ok := TokenExpiry(token); ok && !s.clock.Now().Before(exp) && s.warned != token {
		s.warned = token
		s.logger.Error("agent token expired, locations stay queued until it is replaced", zap.Time("expired_at", exp))
	}
	return token
}

func (s *TokenSource) read() (string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", s.path)
	}
	s.last = token
	return token, nil
}

// TokenExpiry reads the exp claim without verifying the signature. The agent never holds
// the signing secret; the API remains the only verifier.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
