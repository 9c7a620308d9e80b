// Command server runs the concierge booking API.
//
// @title                      Luvia Concierge API
// @version                    1.0
// @description                Booking intake, payment reconciliation against the external ledger, and the admin catalog.
// @BasePath                   /api
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/luvia-backend/docs"
	"github.com/tbourn/luvia-backend/internal/config"
	httpapi "github.com/tbourn/luvia-backend/internal/http"
	"github.com/tbourn/luvia-backend/internal/observability"
	"github.com/tbourn/luvia-backend/internal/repo"
	"github.com/tbourn/luvia-backend/internal/services"
	"github.com/tbourn/luvia-backend/internal/sysutil"
)

var version = "dev"

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := openDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database setup failed")
	}

	svcs := httpapi.NewServices(db, cfg, httpapi.IntegrationsFromConfig(cfg))
	if n, err := svcs.Catalog.SeedFromFile(ctx, cfg.ServicesSeedPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.ServicesSeedPath).Msg("service catalog seed failed")
	} else if n > 0 {
		log.Info().Int("services", n).Msg("service catalog seeded")
	}
	if !cfg.Ledger.Configured() {
		log.Warn().Msg("AIRTABLE_ACCESS_TOKEN or AIRTABLE_BASE_ID missing; payment checks will report configuration missing")
	}

	sched := startScheduler(db, cfg, svcs)

	r := gin.New()
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/uploads"})))
	httpapi.RegisterRoutes(r, db, cfg, svcs)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn().Msg("scheduled jobs still running at shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func setupLogging(cfg config.Config) {
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    sysutil.IsTruthy(os.Getenv("NO_COLOR")),
		})
	}
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.Instrument(db); err != nil {
			return nil, err
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// startScheduler runs the reconciliation sweep (when scheduled) and the
// hourly purge of expired idempotency keys.
func startScheduler(db *gorm.DB, cfg config.Config, svcs httpapi.Services) *cron.Cron {
	c := cron.New()

	if cfg.Sweep.Schedule != "" {
		job := &services.SweepJob{
			DB:      db,
			Checker: svcs.Reconcile,
			Window:  cfg.Sweep.Window,
			Batch:   cfg.Sweep.Batch,
		}
		if _, err := job.Schedule(c, cfg.Sweep.Schedule, 2*time.Minute); err != nil {
			log.Error().Err(err).Str("schedule", cfg.Sweep.Schedule).Msg("invalid sweep schedule; sweep disabled")
		} else {
			log.Info().Str("schedule", cfg.Sweep.Schedule).Msg("reconciliation sweep scheduled")
		}
	}

	if _, err := c.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := repo.DeleteExpiredIdempotency(ctx, db, time.Now().UTC())
		if err != nil {
			log.Error().Err(err).Msg("purge expired idempotency keys")
			return
		}
		if n > 0 {
			log.Debug().Int64("deleted", n).Msg("expired idempotency keys purged")
		}
	}); err != nil {
		log.Error().Err(err).Msg("schedule idempotency purge")
	}

	c.Start()
	return c
}
