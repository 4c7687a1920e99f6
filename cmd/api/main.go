package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/roster/internal/auth"
	"github.com/BradenHooton/roster/internal/background"
	"github.com/BradenHooton/roster/internal/config"
	"github.com/BradenHooton/roster/internal/database"
	"github.com/BradenHooton/roster/internal/events"
	"github.com/BradenHooton/roster/internal/handlers"
	middlewareCustom "github.com/BradenHooton/roster/internal/middleware"
	"github.com/BradenHooton/roster/internal/pagination"
	"github.com/BradenHooton/roster/internal/repositories"
	"github.com/BradenHooton/roster/internal/routes"
	"github.com/BradenHooton/roster/internal/schema"
	"github.com/BradenHooton/roster/internal/services"
	"github.com/BradenHooton/roster/internal/storage"
	pkghttp "github.com/BradenHooton/roster/pkg/http"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx, cfg.Schema.MigrationsDir); err != nil {
			logger.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	healthChecks := map[string]handlers.Pinger{"database": db}

	// Schema introspection, cached until the migrations directory changes
	var schemaCache schema.Cache
	switch cfg.Schema.CacheDriver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		schemaCache = schema.NewRedisCache(rdb)
		healthChecks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	default:
		memCache, err := schema.NewMemoryCache(cfg.Schema.CacheSize)
		if err != nil {
			logger.Error("failed to create schema cache", slog.Any("error", err))
			os.Exit(1)
		}
		schemaCache = memCache
	}

	schemaDB := db.SQLDB()
	defer schemaDB.Close()
	introspector := schema.NewIntrospector(
		schema.NewInformationSchemaSource(schemaDB),
		schemaCache,
		schema.DirFingerprint{Dir: cfg.Schema.MigrationsDir},
		logger,
	)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	countryRepo := repositories.NewCountryRepository(db)
	verificationRepo := repositories.NewEmailVerificationRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	// Mail goes through SES when enabled, otherwise to the log
	var mailer services.Mailer = services.NewLogMailer(logger)
	if cfg.Email.Enabled {
		sesMailer, err := services.NewSESMailer(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.AppURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	}

	// Profile pictures are disabled without a bucket
	var store services.ObjectStore
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Error("failed to initialize object storage", slog.Any("error", err))
			os.Exit(1)
		}
		store = s3Store
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic), logger)
	}
	defer publisher.Close()

	var notifier services.Notifier
	if cfg.Alerts.SlackWebhookURL != "" {
		notifier = services.NewSlackNotifier(cfg.Alerts.SlackWebhookURL, cfg.Alerts.SlackChannel)
	}

	// Initialize services
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.DefaultTimingConfig)

	auditService := services.NewAuditService(auditRepo, logger)
	alertService := services.NewAlertService(userRepo, mailer, notifier, logger)
	verificationService := services.NewEmailVerificationService(verificationRepo, userRepo, mailer, auditService, logger, cfg.Auth.VerificationExpiry)
	passwordService := services.NewPasswordService(resetRepo, userRepo, tokenRepo, mailer, auditService, timingDelay, logger, cfg.Auth.PasswordResetExpiry)
	authService := services.NewAuthService(userRepo, tokenRepo, countryRepo, tokenManager, verificationService, mailer, publisher, auditService, timingDelay, logger)
	userService := services.NewUserService(userRepo, countryRepo, introspector, publisher, auditService, logger)
	profileService := services.NewProfileService(userRepo, countryRepo, store, verificationService, publisher, auditService, logger, cfg.Storage.MaxBytes)
	countryService := services.NewCountryService(countryRepo, logger)

	// Bootstrap the super user if configured
	if err := userService.EnsureSuperUser(ctx, cfg.Auth.SuperUserEmail, cfg.Auth.SuperUserPassword); err != nil {
		logger.Error("failed to ensure super user", slog.Any("error", err))
	}
	cancel()

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	limits := pagination.Limits{Default: cfg.Pagination.DefaultPageSize, Max: cfg.Pagination.MaxPageSize}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.ClientInfo(ipConfig))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.Metrics)
	router.Use(middlewareCustom.Recoverer(logger, alertService))
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, verificationService, passwordService, profileService),
		Users:        handlers.NewUserHandler(userService, profileService, limits, ipConfig),
		Profile:      handlers.NewProfileHandler(profileService, cfg.Storage.MaxBytes),
		Availability: handlers.NewAvailabilityHandler(userService),
		Countries:    handlers.NewCountryHandler(countryService),
		Health:       handlers.NewHealthHandler(healthChecks),
	}, routes.Options{
		Authenticate: auth.Authenticate(tokenManager, tokenRepo, userRepo, logger),
		RateLimits:   middlewareCustom.DefaultRateLimits(),
		IPConfig:     ipConfig,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(map[string]background.ExpiredCleaner{
		"personal_access_tokens":    tokenRepo,
		"email_verification_tokens": verificationRepo,
		"password_reset_tokens":     resetRepo,
	}, auditRepo, cfg.Auth.AuditRetentionDays, logger, cfg.Auth.CleanupInterval)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
