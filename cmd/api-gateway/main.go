package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/delivery-ops-api/api/swagger"
	"github.com/noah-isme/delivery-ops-api/internal/handler"
	"github.com/noah-isme/delivery-ops-api/internal/middleware"
	"github.com/noah-isme/delivery-ops-api/internal/notify"
	"github.com/noah-isme/delivery-ops-api/internal/repository"
	"github.com/noah-isme/delivery-ops-api/internal/scheduler"
	"github.com/noah-isme/delivery-ops-api/internal/service"
	"github.com/noah-isme/delivery-ops-api/pkg/cache"
	"github.com/noah-isme/delivery-ops-api/pkg/clock"
	"github.com/noah-isme/delivery-ops-api/pkg/config"
	"github.com/noah-isme/delivery-ops-api/pkg/database"
	"github.com/noah-isme/delivery-ops-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/delivery-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/delivery-ops-api/pkg/middleware/requestid"
)

// @title Delivery Ops API
// @version 0.1.0
// @description Delivery lifecycle, supervisor alerts and live driver presence
// @BasePath /api/v1
// @schemes http

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
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type handlers struct {
	deliveries *handler.DeliveryHandler
	alerts     *handler.AlertHandler
	support    *handler.SupportHandler
	presence   *handler.PresenceHandler
	metrics    *handler.MetricsHandler
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	clk := clock.NewReal()
	validate := validator.New()
	metrics := service.NewMetricsService()

	deliveryRepo := repository.NewDeliveryRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)
	ledgerRepo := repository.NewLedgerRepository(redisClient)
	supportCooldowns := repository.NewCooldownRepository(redisClient, "support")
	sentMarkers := repository.NewCooldownRepository(redisClient, "sent")

	dispatcher, err := newDispatcher(cfg, logr)
	if err != nil {
		return err
	}

	authSvc := service.NewAuthService(service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}, clk, logr)
	lifecycleSvc := service.NewLifecycleService(deliveryRepo, validate, clk, metrics, logr)
	exportSvc := service.NewExportService(lifecycleSvc, clk, logr)
	supportSvc := service.NewSupportService(lifecycleSvc, supportCooldowns, dispatcher, clk,
		cfg.Support.WhatsAppPhone, cfg.Support.Cooldown, metrics, logr)
	presenceSvc := service.NewPresenceService(presenceRepo, validate, clk, cfg.Presence.StaleAfter, metrics, logr)

	rules := service.AlertRules{
		TimeWaitThreshold: cfg.Notifications.TimeWaitThreshold,
		TimeLimitHour:     cfg.Notifications.TimeLimitHour,
		Location:          cfg.Notifications.Location(),
	}
	notificationSvc := service.NewNotificationService(lifecycleSvc, ledgerRepo, sentMarkers, dispatcher, clk,
		service.NotificationServiceConfig{
			Rules:         rules,
			Subscribers:   cfg.Notifications.Subscribers,
			SentMarkerTTL: cfg.Notifications.SentMarkerTTL,
		}, metrics, logr)

	if cfg.Notifications.Enabled {
		alertScheduler := scheduler.NewAlertScheduler(notificationSvc, cfg.Notifications.Schedule, rules.Location, clk, logr)
		if err := alertScheduler.Start(); err != nil {
			return err
		}
		defer alertScheduler.Stop()
	}

	h := handlers{
		deliveries: handler.NewDeliveryHandler(lifecycleSvc, exportSvc),
		alerts:     handler.NewAlertHandler(notificationSvc),
		support:    handler.NewSupportHandler(supportSvc, clk),
		presence:   handler.NewPresenceHandler(presenceSvc),
		metrics:    handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())
	registerRoutes(r, cfg, authSvc, h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func registerRoutes(r *gin.Engine, cfg *config.Config, auth *service.AuthService, h handlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(auth))

	deliveries := api.Group("/deliveries")
	deliveries.GET("", h.deliveries.List)
	deliveries.GET("/export", h.deliveries.Export)
	deliveries.GET("/:id", h.deliveries.Get)
	deliveries.POST("/:id/problem", h.deliveries.ReportProblem)
	deliveries.POST("/:id/monitor", middleware.RequireElevated(), h.deliveries.Monitor)
	deliveries.POST("/:id/comments", h.deliveries.AddComment)
	deliveries.POST("/:id/finalize", h.deliveries.Finalize)
	deliveries.POST("/:id/return", h.deliveries.Return)
	deliveries.POST("/:id/support", h.support.Request)
	deliveries.GET("/:id/support", h.support.Availability)

	alerts := api.Group("/alerts", middleware.RequireElevated())
	alerts.GET("", h.alerts.List)
	alerts.POST("/:id/dismiss", h.alerts.Dismiss)

	api.PUT("/presence", h.presence.Upsert)
	api.GET("/presence", middleware.RequireElevated(), h.presence.List)
	api.GET("/metrics/summary", middleware.RequireElevated(), h.metrics.Summary)
}

// newDispatcher routes push and toast messages to the log and, when configured, to Telegram.
func newDispatcher(cfg *config.Config, logr *zap.Logger) (*notify.Dispatcher, error) {
	dispatcher := notify.NewDispatcher(logr)
	dispatcher.Register(notify.NewLogSink(logr), notify.ChannelPush, notify.ChannelToast, notify.ChannelWhatsApp)
	if cfg.Telegram.Token == "" {
		return dispatcher, nil
	}
	bot, err := notify.NewTelegramBot(cfg.Telegram.Token, false)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	dispatcher.Register(notify.NewTelegramSink(bot, cfg.Telegram.ChatID), notify.ChannelPush, notify.ChannelWhatsApp)
	logr.Info("telegram push channel enabled", zap.Int64("chat_id", cfg.Telegram.ChatID))
	return dispatcher, nil
}

func readinessChecks(db *sqlx.DB, client *redis.Client) map[string]handler.ReadinessCheck {
	return map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
