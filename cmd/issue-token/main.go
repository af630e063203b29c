// Command issue-token signs an access token with the API's JWT secret. It runs next to the
// API, and only the printed token is handed to a device as AGENT_TOKEN or AGENT_TOKEN_FILE.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/service"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	"github.com/noah-isme/delivery-ops-api/pkg/config"
	"github.com/noah-isme/delivery-ops-api/pkg/logger"
)

func main() {
	var (
		email string
		name  string
		role  string
		ttl   time.Duration
		out   string
	)
	flag.StringVar(&email, "email", "", "Email of the token subject")
	flag.StringVar(&name, "name", "", "Display name of the token subject")
	flag.StringVar(&role, "role", string(models.RoleDriver), "Role claim (DRIVER, COLLABORATOR, SUPERVISOR, ADMIN)")
	flag.DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	flag.StringVar(&out, "out", "", "Write the token to this file instead of stdout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	auth := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}, clock.NewReal(), logr)

	identity := models.Identity{Email: email, Name: name, Role: models.UserRole(strings.ToUpper(strings.TrimSpace(role)))}
	token, expires, err := auth.IssueToken(identity, ttl)
	if err != nil {
		logr.Fatal("issue token failed", zap.Error(err))
	}

	if out == "" {
		fmt.Println(token)
	} else if err := os.WriteFile(out, []byte(token+"\n"), 0o600); err != nil {
		logr.Fatal("write token file failed", zap.String("path", out), zap.Error(err))
	}
	logr.Info("token issued", zap.String("email", identity.NormalizedEmail()), zap.String("role", string(identity.Role)), zap.Time("expires_at", expires))
}
