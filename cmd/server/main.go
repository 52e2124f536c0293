// Package main runs the golf outing HTTP server with the team board WebSocket
// and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/golf-outing/backend/config"
	"github.com/golf-outing/backend/internal/admin"
	"github.com/golf-outing/backend/internal/auth"
	"github.com/golf-outing/backend/internal/middleware"
	"github.com/golf-outing/backend/internal/models"
	"github.com/golf-outing/backend/internal/payments"
	"github.com/golf-outing/backend/internal/realtime"
	"github.com/golf-outing/backend/internal/reconcile"
	"github.com/golf-outing/backend/internal/registrations"
	"github.com/golf-outing/backend/internal/sponsors"
	"github.com/golf-outing/backend/internal/teams"
	"github.com/golf-outing/backend/pkg/database"
	"github.com/golf-outing/backend/pkg/queue"
	"github.com/golf-outing/backend/pkg/redis"
	"github.com/golf-outing/backend/pkg/response"
	"github.com/golf-outing/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var logos sponsors.LogoStorage
	if cfg.AWS.Region != "" && cfg.AWS.LogosBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			LogosBucket:          cfg.AWS.LogosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled, logo uploads unavailable", zap.Error(err))
		} else {
			logos = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	stripe := payments.NewStripeClient(cfg.Stripe.APIBaseURL, cfg.Stripe.SecretKey, cfg.Stripe.Currency,
		time.Duration(cfg.Stripe.TimeoutSeconds)*time.Second, logger)
	if cfg.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, checkouts will fail")
	}

	// Team board feed
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	if err := hub.Start(hubCtx, pubsub); err != nil {
		logger.Fatal("subscribe team board", zap.Error(err))
	}
	defer hub.Close()

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, cfg.JWT.IsAdminEmail, logger)

	// Registrations and spots
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, stripe, registrations.Config{
		EventName:        cfg.Event.Name,
		SpotPriceCents:   cfg.Event.SpotPriceCents,
		MaxSpotsPerPayer: cfg.Event.MaxSpotsPerPayer,
		Redirects:        payments.NewRedirects(cfg.Event.PublicBaseURL, "registration"),
	}, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, logger)

	// Teams
	teamRepo := teams.NewRepository(pool)
	teamSvc := teams.NewService(teamRepo, registrationRepo, hub, logger)
	teamHandler := teams.NewHandler(teamSvc, logger)

	// Sponsors
	sponsorRepo := sponsors.NewRepository(pool)
	sponsorSvc := sponsors.NewService(sponsorRepo, stripe, logos, jobQueue, sponsors.Config{
		EventName: cfg.Event.Name,
		Redirects: payments.NewRedirects(cfg.Event.PublicBaseURL, "sponsor"),
	}, logger)
	sponsorHandler := sponsors.NewHandler(sponsorSvc, logger)

	// Payment webhook
	reconciler := reconcile.NewReconciler(reconcile.NewRepository(pool), jobQueue, cfg.Event.MaxSpotsPerPayer, logger)
	webhookHandler := reconcile.NewWebhookHandler(reconciler, rdb, reconcile.WebhookConfig{
		Secret:    cfg.Stripe.WebhookSecret,
		Tolerance: time.Duration(cfg.Stripe.ToleranceSeconds) * time.Second,
	}, logger)

	paymentHandler := payments.NewHandler(stripe, logger)
	adminHandler := admin.NewHandler(admin.NewRepository(pool), logger)

	jwtValidate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public
	public := router.Group("")
	sponsorHandler.RegisterPublic(public)

	// Webhooks (no JWT; the Stripe signature is verified in the handler)
	webhookHandler.Register(router)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		registrationHandler.Register(api)
		teamHandler.Register(api)
		sponsorHandler.Register(api)
		paymentHandler.Register(api)
		adminHandler.Register(api.Group("/admin", middleware.RequireRole(models.RoleAdmin)))
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws/teams", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	hubCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
