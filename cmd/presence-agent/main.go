// Command presence-agent streams a driver's position to the API, queueing fixes on disk while
// the API is unreachable. Fixes are read as newline-delimited JSON from stdin.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/delivery-ops-api/internal/models"
	"github.com/noah-isme/delivery-ops-api/internal/presence"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	"github.com/noah-isme/delivery-ops-api/pkg/config"
	"github.com/noah-isme/delivery-ops-api/pkg/jobs"
	"github.com/noah-isme/delivery-ops-api/pkg/logger"
	"github.com/noah-isme/delivery-ops-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Sugar().Fatalw("presence agent failed", "error", err)
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	agent := cfg.Agent
	if agent.APIURL == "" || agent.Email == "" {
		return errors.New("AGENT_API_URL and AGENT_EMAIL are required")
	}
	identity := models.Identity{Email: agent.Email, Name: agent.Name, Role: models.RoleDriver}
	clk := clock.NewReal()

	tokens, err := presence.NewTokenSource(agent.Token, agent.TokenFile, clk, logr)
	if err != nil {
		return fmt.Errorf("AGENT_TOKEN or AGENT_TOKEN_FILE: %w", err)
	}
	if exp, ok := presence.TokenExpiry(tokens.Token()); ok {
		logr.Info("agent token loaded", zap.Time("expires_at", exp))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewLocalStore(agent.QueueDir)
	if err != nil {
		return err
	}
	queue := presence.NewFileQueue(store, logr)
	client := presence.NewHTTPStore(agent.APIURL, tokens.Token, agent.RequestTimeout)

	var tracker *presence.Tracker
	syncQueue := jobs.NewQueue("presence-sync", func(ctx context.Context, job jobs.Job) error {
		return presence.NewSyncHandler(tracker)(ctx, job)
	}, jobs.QueueConfig{
		Workers:       1,
		BufferSize:    1,
		MaxRetries:    agent.SyncMaxRetries,
		RetryDelay:    agent.SyncRetryDelay,
		MaxRetryDelay: 10 * agent.SyncRetryDelay,
		Logger:        logr,
	})
	registrar := presence.NewJobSyncRegistrar(syncQueue)
	opts := presence.WatchOptions{HighAccuracy: agent.HighAccuracy, MaxAge: agent.MaxFixAge, Timeout: agent.FixTimeout}
	tracker = presence.NewTracker(client, queue, registrar, clk, opts, logr)

	syncQueue.Start(ctx)
	defer syncQueue.Stop()

	if result, err := tracker.FlushPending(ctx); err != nil {
		logr.Warn("startup flush incomplete", zap.Int("remaining", result.Remaining), zap.Error(err))
		_ = registrar.RegisterSync(ctx)
	}

	if err := tracker.StartWatching(ctx, identity, presence.NewStreamLocator(os.Stdin, clk)); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-tracker.Done():
		logr.Info("position stream ended")
		if result, err := tracker.FlushPending(ctx); err != nil {
			logr.Warn("final flush incomplete", zap.Int("remaining", result.Remaining), zap.Error(err))
		}
	}
	tracker.StopWatching()

	if n, err := queue.Len(); err == nil && n > 0 {
		logr.Info("pending locations kept for next start", zap.Int("count", n))
	}
	return nil
}
