package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/qr-attendance-api/internal/config"
	"github.com/noah-isme/qr-attendance-api/internal/database"
	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/router"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelBoot()

	if err := database.SeedAdmin(bootCtx, db, database.AdminSeed{
		Username: cfg.BootstrapAdminUser,
		Password: cfg.BootstrapAdminPass,
		Name:     cfg.BootstrapAdminName,
	}, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed admin account")
	}

	var (
		redisClient *redis.Client
		tokens      service.TokenStore
		revocations middleware.RevocationChecker
	)
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(bootCtx, cfg.RedisURL, 5*time.Second)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()

		store := service.NewRedisTokenStore(redisClient, "attendance")
		tokens = store
		revocations = store
	} else {
		logger.Warn().Msg("redis url not configured, logout will not revoke tokens")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	validate := utils.NewValidator()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	hub := service.NewEventHub(natsConn, cfg.NATSSubject, logger)
	activityService := service.NewActivityService(activityRepo, logger)
	backfill := service.NewAbsenteeBackfill(userRepo, attendanceRepo, logger)
	authService := service.NewAuthService(userRepo, tokens, validate, service.AuthConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.JWTTTL,
	}, logger)
	userService := service.NewUserService(userRepo, activityService, validate, logger)
	summaryCache := service.NewSummaryCache(redisClient, cfg.SummaryCacheTTL, logger)
	sessionService := service.NewSessionService(sessionRepo, backfill, activityService, hub, summaryCache, validate, logger)
	attendanceService := service.NewCachedAttendanceService(
		service.NewAttendanceService(attendanceRepo, userRepo, sessionService, backfill, activityService, hub, validate, logger),
		summaryCache,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: handler.ErrorHandler(logger),
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      !cfg.IsProduction(),
	})

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(ctx context.Context) error {
			return natsConn.FlushWithContext(ctx)
		}
	}

	router.Register(app, cfg, router.Dependencies{
		AuthHandler: handler.NewAuthHandler(authService, handler.CookieOptions{
			Name:   cfg.CookieName,
			Secure: cfg.CookieSecure,
		}, logger),
		UserHandler:       handler.NewUserHandler(userService, logger),
		SessionHandler:    handler.NewSessionHandler(sessionService, attendanceService, hub, cfg.QRCodeSize, logger),
		AttendanceHandler: handler.NewAttendanceHandler(attendanceService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		JWTMiddleware: middleware.JWTProtected(middleware.JWTConfig{
			Secret:      cfg.JWTSecret,
			CookieName:  cfg.CookieName,
			Revocations: revocations,
			Accounts:    userRepo,
		}),
		LoginLimiter:      middleware.RateLimit("login", cfg.LoginRateLimit, cfg.RateLimitWindow),
		AttendanceLimiter: middleware.RateLimit("attendance", cfg.AttendanceRateLimit, cfg.RateLimitWindow),
		HealthProbes:      probes,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsProduction() {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
