package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/Lakshya1002/healthmate3-sub000/internal/config"
	"github.com/Lakshya1002/healthmate3-sub000/internal/database"
	"github.com/Lakshya1002/healthmate3-sub000/internal/logger"
	"github.com/Lakshya1002/healthmate3-sub000/internal/push"
)

var cli struct {
	Config string `help:"Path to a YAML config file." env:"HEALTHMATE_CONFIG" placeholder:"FILE"`

	Serve     ServeCmd     `cmd:"" default:"1" help:"Run the HTTP API and the reminder scheduler."`
	Migrate   MigrateCmd   `cmd:"" help:"Apply database migrations and exit."`
	VapidKeys VapidKeysCmd `cmd:"" help:"Generate a VAPID key pair for push notifications."`
}

// runContext is bound into every command's Run method.
type runContext struct {
	ConfigPath string
}

// load reads the configuration and builds the logger.
func (r *runContext) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(r.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

type MigrateCmd struct{}

func (m *MigrateCmd) Run(r *runContext) error {
	cfg, log, err := r.load()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.Initialize(cfg.Database.Path, cfg.Database.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info("migrations applied", zap.String("path", cfg.Database.Path))
	return nil
}

type VapidKeysCmd struct{}

func (v *VapidKeysCmd) Run() error {
	publicKey, privateKey, err := push.GenerateKeys()
	if err != nil {
		return err
	}
	fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("healthmate"),
		kong.Description("HealthMate API server and medication reminder scheduler"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&runContext{ConfigPath: cli.Config}))
}
