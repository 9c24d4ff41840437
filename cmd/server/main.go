package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoiceflow/internal/config"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/infra"
	"invoiceflow/internal/logger"
	"invoiceflow/internal/repository"
	"invoiceflow/internal/router"
	"invoiceflow/internal/service"
	"invoiceflow/internal/worker"

	"github.com/rs/zerolog/log"
)

// @title        invoiceflow API
// @version      1.0
// @description  Invoice approval workflow: drafting, approvals, PDF rendering.
// @BasePath     /
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		log.Fatal().Err(err).Msg("invalid LOG_LEVEL")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBAutoMigrate)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	// Redis is optional: without it the audit fallback queue, transition
	// counters and partner emails are off.
	rdb := infra.NewOptionalRedis(cfg.RedisURL)

	engine, breaker, err := infra.NewPDFEngine(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure pdf engine")
	}
	storage, err := infra.NewStorage(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	provider, err := identity.NewProvider(cfg.AuthMode, cfg.JWTSecret, cfg.AuthDefaultRole, cfg.AuthDefaultEmail)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure identity provider")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	var pool *worker.Pool
	if rdb != nil {
		pool = worker.NewPool(rdb, cfg.WorkerPoolSize)
		pool.Register(worker.QueueAudit, worker.NewAuditWorker(repository.NewAuditRepository(db)))
		if cfg.SMTPEnabled() {
			renderer := service.NewPDFService(repository.NewInvoiceRepository(db), engine, storage,
				router.Company(cfg), time.Duration(cfg.SignedURLTTLHours)*time.Hour)
			pool.Register(worker.QueueEmail, worker.NewEmailWorker(renderer, infra.NewMailer(cfg), cfg.CompanyName))
		}
		pool.Start(ctx)
	}

	cleaner := service.NewCleanupService(storage, service.CleanupConfig{
		TTL:      time.Duration(cfg.CleanupTTLHours) * time.Hour,
		DryRun:   cfg.CleanupDryRun,
		Disabled: cfg.CleanupDisabled,
	})
	worker.StartCleanupCron(ctx, cleaner, time.Duration(cfg.CleanupIntervalHours)*time.Hour)

	r := router.New(ctx, cfg, router.Deps{
		DB:       db,
		Redis:    rdb,
		Engine:   engine,
		Breaker:  breaker,
		Storage:  storage,
		Identity: provider,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.PDFTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("auth_mode", cfg.AuthMode).
			Str("pdf_engine", engine.Name()).
			Bool("redis", rdb != nil).
			Msg("invoiceflow listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	cancel()
	if pool != nil {
		pool.Wait()
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server exited")
}
