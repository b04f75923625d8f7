// Package app assembles the matchmaking engine from its parts: configuration,
// logging, storage, observability, and the service layer. The command surface
// (bot adapter, RPC layer) is expected to build on a wired App rather than
// constructing services by hand.
package app

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-anonchat-backend/internal/config"
	"github.com/tbourn/go-anonchat-backend/internal/observability"
	"github.com/tbourn/go-anonchat-backend/internal/ratelimit"
	"github.com/tbourn/go-anonchat-backend/internal/repo"
	"github.com/tbourn/go-anonchat-backend/internal/services"
	"github.com/tbourn/go-anonchat-backend/internal/sysutil"
)

// Version is reported as the service version on traces.
const Version = "0.1.0"

// App is the wired matchmaking engine.
type App struct {
	Cfg config.Config
	Log zerolog.Logger
	DB  *gorm.DB

	Eligibility *services.EligibilityService
	Requests    *services.RequestService
	Wizard      *services.FilterWizard
	Opener      services.GormChatOpener

	shutdownOTel func(context.Context) error
}

// New builds the engine: logger, tracing, database (migrated), and services.
// The profile store is the deployment's collaborator and must be supplied.
func New(ctx context.Context, cfg config.Config, profiles services.ProfileStore) (*App, error) {
	sysutil.SetLogLevel(cfg.LogLevel)
	out := zerolog.New(os.Stderr)
	if cfg.LogPretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log := out.With().Timestamp().Str("service", cfg.OTEL.ServiceName).Logger()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		return nil, err
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		_ = shutdownOTel(ctx)
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			_ = shutdownOTel(ctx)
			return nil, err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		_ = shutdownOTel(ctx)
		return nil, err
	}

	filters := services.GormFilterStore{DB: db}
	opener := services.GormChatOpener{DB: db}

	elig := services.NewEligibilityService(profiles, filters, log)
	requests := services.NewRequestService(db, elig, opener, log)
	requests.Cooldown = cfg.CooldownWindow
	requests.DefaultPageSize = cfg.PendingPageSize
	requests.Limiter = ratelimit.New(cfg.RateRPS, cfg.RateBurst)

	wizard := services.NewFilterWizard(filters, profiles, log)

	log.Info().
		Str("db_path", cfg.DBPath).
		Dur("cooldown", cfg.CooldownWindow).
		Bool("otel", cfg.OTEL.Enabled).
		Msg("matchmaking engine ready")

	return &App{
		Cfg:          cfg,
		Log:          log,
		DB:           db,
		Eligibility:  elig,
		Requests:     requests,
		Wizard:       wizard,
		Opener:       opener,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Close releases the database handle and flushes tracing.
func (a *App) Close(ctx context.Context) error {
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.shutdownOTel != nil {
		return a.shutdownOTel(ctx)
	}
	return nil
}
