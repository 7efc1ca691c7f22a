package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Lakshya1002/healthmate3-sub000/internal/api"
	"github.com/Lakshya1002/healthmate3-sub000/internal/auth"
	"github.com/Lakshya1002/healthmate3-sub000/internal/database"
	"github.com/Lakshya1002/healthmate3-sub000/internal/push"
	"github.com/Lakshya1002/healthmate3-sub000/internal/reminders"
	"github.com/Lakshya1002/healthmate3-sub000/internal/worker"
)

type ServeCmd struct{}

func (s *ServeCmd) Run(r *runContext) error {
	cfg, log, err := r.load()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := auth.Configure(auth.Settings{
		Secret:              cfg.Auth.JWTSecret,
		RefreshSecret:       cfg.Auth.RefreshSecret,
		AccessTokenMinutes:  cfg.Auth.AccessTokenMinutes,
		RefreshTokenDays:    cfg.Auth.RefreshTokenDays,
		RememberRefreshDays: cfg.Auth.RememberRefreshDays,
		CookieSecure:        cfg.Auth.CookieSecure,
	}); err != nil {
		return err
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database.Path, cfg.Database.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Run migrations only if explicitly enabled (opt-in for safety)
	if cfg.Database.RunMigrations {
		log.Info("running database migrations")
		if err := database.Migrate(db); err != nil {
			log.Error("migration failed", zap.Error(err))
		}
	} else {
		log.Info("migrations skipped (set RUN_MIGRATIONS=true to enable)")
	}

	pushClient := push.NewClient(push.Config{
		Subscriber:      cfg.Push.Subject,
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		TTL:             cfg.Push.TTL,
		Timeout:         cfg.Push.TimeoutDuration(),
	})
	payload := reminders.PayloadConfig{
		Icon:  cfg.Push.Icon,
		Badge: cfg.Push.Badge,
		URL:   cfg.Push.URL,
	}
	engine := reminders.New(reminders.NewSQLStore(db), pushClient, payload, log.Named("reminders"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := worker.New(ctx, log.Named("worker"), time.Local)
	if cfg.Workers.Enabled {
		if pushClient.Configured() {
			if err := runner.Every(cfg.Workers.ReminderSchedule, "reminders", func(ctx context.Context) error {
				return engine.Tick(ctx, time.Now())
			}); err != nil {
				return err
			}
		} else {
			log.Warn("VAPID keys not configured, reminder notifications disabled")
		}
		if cfg.Workers.CleanupSchedule != "" {
			if err := runner.Every(cfg.Workers.CleanupSchedule, "refresh-token-cleanup", func(ctx context.Context) error {
				_, err := api.PruneRefreshTokens(ctx, db, time.Now(), log.Named("housekeeping"))
				return err
			}); err != nil {
				return err
			}
		}
	} else {
		log.Info("background workers disabled (set ENABLE_WORKERS=true to enable)")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          api.ErrorHandler,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(fiberlogger.New())

	log.Info("CORS allowed origins", zap.String("origins", cfg.Server.AllowedOrigins))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: cfg.Server.AllowedOrigins != "*", // Required for cookies
	}))

	routeCfg := api.Config{
		DisableRegistration: cfg.Server.DisableRegistration,
		Payload:             payload,
		Log:                 log.Named("api"),
	}
	if pushClient.Configured() {
		routeCfg.VAPIDPublicKey = pushClient.PublicKey()
		routeCfg.Notifier = engine.Dispatcher()
	}
	api.SetupRoutes(app, db, routeCfg)

	if cfg.Workers.Enabled {
		runner.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("server starting", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		<-runner.Stop().Done()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	<-runner.Stop().Done()
	return nil
}
