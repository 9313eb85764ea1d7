package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/noteduco342/tourchat-backend/internal/cache"
	"github.com/noteduco342/tourchat-backend/internal/config"
	"github.com/noteduco342/tourchat-backend/internal/handlers"
	"github.com/noteduco342/tourchat-backend/internal/handlers/ws"
	"github.com/noteduco342/tourchat-backend/internal/logger"
	"github.com/noteduco342/tourchat-backend/internal/metrics"
	"github.com/noteduco342/tourchat-backend/internal/middleware"
	"github.com/noteduco342/tourchat-backend/internal/repository"
	"github.com/noteduco342/tourchat-backend/internal/service"
	"github.com/noteduco342/tourchat-backend/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.New("info").WithError(err).Warn("failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.New("info").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel)

	db, err := repository.InitDB(cfg.Database.DSN(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	// Redis holds OTP codes, so unlike the pull cache it is not optional.
	redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisCache.Ping(); err != nil {
		log.WithError(err).WithField("addr", cfg.Redis.Addr).Fatal("redis connection failed")
	}
	log.Info("redis cache connected")

	messageCache := cache.NewMessageCache(redisCache)
	userCache := cache.NewUserCache(redisCache)
	otpCache := cache.NewOTPCache(redisCache)
	m := metrics.New()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	inviteRepo := repository.NewInvitationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	logRepo := repository.NewSystemLogRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Services
	settingsService := service.NewSettingsService(settingRepo, log)
	if err := settingsService.EnsureDefaults(); err != nil {
		log.WithError(err).Fatal("failed to seed system settings")
	}
	logService := service.NewLogService(logRepo, log)
	notificationService := service.NewNotificationService(notificationRepo, settingsService, log)
	otpService := service.NewOTPService(otpCache, service.LogSender{Log: log}, settingsService, cfg.OTPTTL, log)
	authService := service.NewAuthService(userRepo, tokenRepo, otpService, logService, service.AuthConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}, log)
	userService := service.NewUserService(userRepo)
	groupService := service.NewGroupService(groupRepo, inviteRepo, userRepo, notificationService, settingsService, m, log)
	messageService := service.NewMessageService(messageRepo, groupRepo, messageCache, settingsService, m, log)
	adminService := service.NewAdminService(userRepo, tokenRepo, logService, log)

	// Object storage is best-effort; media endpoints return 503 without it.
	var store service.ObjectStore
	if s3cfg, err := storage.LoadS3ConfigFromEnv(); err != nil {
		log.WithError(err).Warn("S3 storage not configured")
	} else if st, err := storage.NewS3Storage(s3cfg); err != nil {
		log.WithError(err).Warn("failed to initialize S3 storage")
	} else {
		store = st
		log.WithField("bucket", s3cfg.Bucket).Info("S3 storage initialized")
	}
	mediaService := service.NewMediaService(store, groupRepo, log)

	hub := ws.NewHub(userCache, m, log)
	notificationService.SetPusher(hub)
	messageService.SetPusher(hub)

	app := fiber.New(fiber.Config{
		AppName:      "Tour Chat Backend",
		BodyLimit:    24 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(log, logService),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(m.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Supports-Gzip",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	router := &handlers.Router{
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUserHandler(userService),
		Groups:         handlers.NewGroupHandler(groupService),
		Messages:       handlers.NewMessageHandler(messageService),
		Media:          handlers.NewMediaHandler(mediaService, log),
		Notifications:  handlers.NewNotificationHandler(notificationService),
		Admin:          handlers.NewAdminHandler(adminService, logService, settingsService),
		WebSocket:      handlers.NewWebSocketHandler(hub, messageService, log),
		Tokens:         authService,
		Settings:       settingsService,
		Metrics:        m,
		AllowedOrigins: middleware.SplitCSV(cfg.AllowedOrigins),
		AuthRateLimit:  20,
	}
	router.Register(app)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := service.NewSweeper(inviteRepo, notificationRepo, logRepo, cfg.SweepInterval, log)
	go sweeper.Run(ctx)
	go hub.Run(ctx)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}

	notificationService.Wait()
	if err := redisCache.Close(); err != nil {
		log.WithError(err).Warn("failed to close redis")
	}
}
