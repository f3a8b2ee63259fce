package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alijaya/ispportal/internal/backup"
	"github.com/alijaya/ispportal/internal/config"
	"github.com/alijaya/ispportal/internal/database"
	"github.com/alijaya/ispportal/internal/genieacs"
	"github.com/alijaya/ispportal/internal/handlers"
	"github.com/alijaya/ispportal/internal/logger"
	"github.com/alijaya/ispportal/internal/metrics"
	"github.com/alijaya/ispportal/internal/middleware"
	"github.com/alijaya/ispportal/internal/mikrotik"
	"github.com/alijaya/ispportal/internal/models"
	"github.com/alijaya/ispportal/internal/monitor"
	"github.com/alijaya/ispportal/internal/notify"
	"github.com/alijaya/ispportal/internal/otp"
	"github.com/alijaya/ispportal/internal/settings"
	"github.com/alijaya/ispportal/internal/whatsapp"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log config: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent("api")
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := settings.NewStore(cfg.SettingsFile, logger.WithComponent("settings"))

	var db *gorm.DB
	if cfg.DBEnabled {
		var err error
		if db, err = database.OpenPostgres(ctx, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.ClosePostgres(db)
		if err := models.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	var rdb *redis.Client
	if cfg.RedisEnabled {
		var err error
		if rdb, err = database.OpenRedis(ctx, cfg, log); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory caches")
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	jwtSecret := database.EnsureJWTSecret(ctx, db, cfg.JWTSecret, log)
	expiry := time.Duration(cfg.JWTExpireHours) * time.Hour

	var (
		alertCache monitor.Cache      = monitor.NewMemoryCache()
		otpStore   otp.Store          = otp.NewMemoryStore()
		revoker    middleware.Revoker = middleware.NewMemoryRevoker()
		jsonCache  handlers.JSONCache
	)
	if rdb != nil {
		cache := database.NewCache(rdb)
		alertCache = monitor.NewRedisCache(rdb)
		otpStore = otp.NewRedisStore(rdb)
		revoker = middleware.NewCacheRevoker(cache)
		jsonCache = cache
	}

	gateway := whatsapp.NewGateway(whatsapp.GatewayConfig{
		Provider:   cfg.WhatsAppProvider,
		InstanceID: cfg.WhatsAppInstanceID,
		Token:      cfg.WhatsAppToken,
		APIURL:     cfg.WhatsAppAPIURL,
	}, logger.WithComponent("whatsapp"))
	if !gateway.Configured() {
		log.Warn().Str("provider", cfg.WhatsAppProvider).Msg("WhatsApp gateway not configured, messages will fail")
	}
	messenger := whatsapp.NewMessenger(gateway, store)

	var (
		deliveries notify.Log
		history    handlers.NotificationHistory
		vouchers   handlers.VoucherStore
		audits     handlers.AuditTrail
		backupLogs *database.BackupLogs
	)
	if db != nil {
		logs := database.NewNotificationLogs(db, logger.WithComponent("notify"))
		deliveries, history = logs, logs
		vouchers = database.NewVoucherBatches(db)
		audits = database.NewAuditLogs(db, logger.WithComponent("audit"))
		backupLogs = database.NewBackupLogs(db, logger.WithComponent("backup"))
	}
	dispatcher := notify.NewDispatcher(gateway, store, deliveries, logger.WithComponent("notify"))

	acsLogger := logger.WithComponent("genieacs")
	newACS := func(snap settings.Snapshot) *genieacs.Client {
		return genieacs.FromSettings(snap, acsLogger)
	}

	monitorLogger := logger.WithComponent("monitor")
	rxMonitor := monitor.New(monitor.Options{
		Settings: store,
		Sources: func(snap settings.Snapshot) monitor.DeviceSource {
			return newACS(snap)
		},
		Notifier: monitor.NewNotifier(alertCache, dispatcher, messenger.Format, nil, monitorLogger),
		Cache:    alertCache,
		Logger:   monitorLogger,
	})
	rxMonitor.Start(ctx)
	defer rxMonitor.Stop()

	var (
		backupHistory backup.History
		backupList    handlers.BackupHistory
	)
	if backupLogs != nil {
		backupHistory, backupList = backupLogs, backupLogs
	}
	backups := backup.New(store, backupHistory, logger.WithComponent("backup"))
	backups.Start(ctx, 24*time.Hour)

	routers := mikrotik.NewProvider(store, logger.WithComponent("mikrotik"))
	defer routers.Close()

	deps := &handlers.Deps{
		Settings: store,
		Auth:     middleware.NewAuth(jwtSecret, expiry, revoker),
		ACS: func(snap settings.Snapshot) handlers.Devices {
			return newACS(snap)
		},
		Router: func() handlers.Router {
			return routers.Client()
		},
		OTP: otp.NewService(otp.Options{
			Store:    otpStore,
			Sender:   messenger,
			Settings: store,
			Logger:   logger.WithComponent("otp"),
		}),
		Messenger:     messenger,
		Notifier:      dispatcher,
		Monitor:       rxMonitor,
		Cache:         jsonCache,
		Vouchers:      vouchers,
		Notifications: history,
		Backup:        backups,
		Backups:       backupList,
		Audit:         audits,
		Logger:        log,
	}

	app := fiber.New(fiber.Config{
		AppName:               "ISP Portal API",
		ServerHeader:          "ispportal",
		BodyLimit:             4 * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          handlers.ErrorHandler(log),
	})

	app.Use(middleware.Recovery(log))
	app.Use(compress.New())
	app.Use(middleware.Logger(logger.WithComponent("http")))
	app.Use(middleware.CORS())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"service":  "ispportal-api",
			"database": db != nil,
			"redis":    rdb != nil,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	handlers.Register(app, deps)

	port := cfg.APIPort
	if port == 0 {
		port = store.Snapshot().Int(settings.KeyWebPort, settings.DefaultWebPort)
	}
	addr := fmt.Sprintf(":%d", port)

	go func() {
		log.Info().Str("addr", addr).Msg("starting API server")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}
