package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"law_ledger_app_go/config"
	"law_ledger_app_go/db"
	"law_ledger_app_go/handlers"
	"law_ledger_app_go/logger"
	"law_ledger_app_go/middleware"
	"law_ledger_app_go/models"
	"law_ledger_app_go/services"
	"law_ledger_app_go/services/jobs"
	"law_ledger_app_go/services/ledger"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithComponent("server")

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.Environment); err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	// External ledger and the single-writer anchoring pipeline
	ledgerClient, err := ledger.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize ledger")
	}
	log.WithField("driver", cfg.LedgerDriver).Info("Ledger adapter ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer := services.NewAnchorFailureMailer(db.DB, cfg)
	anchor := services.NewHashAnchor(db.DB, ledgerClient, services.AnchorConfigFrom(cfg), mailer)
	anchor.Start(ctx)

	// Anything left pending by a previous run goes back on the queue immediately
	jobs.ReconcilePendingAnchors(db.DB, anchor, time.Now())
	reconciler, err := jobs.StartAnchorReconciler(db.DB, anchor, cfg.AnchorReconcileSpec, time.Minute)
	if err != nil {
		log.WithError(err).Fatal("Failed to schedule anchor reconciler")
	}

	machine := services.NewStatusMachine(db.DB)
	h := handlers.New(handlers.Deps{
		DB:       db.DB,
		Config:   cfg,
		Tokens:   services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
		Machine:  machine,
		Logs:     services.NewLogStore(db.DB, anchor, machine),
		Anchor:   anchor,
		Verifier: services.NewAuditVerifier(db.DB, ledgerClient),
		Reports:  services.NewReportStore(cfg),
		Monitor:  services.NewLoginMonitor(),
	})

	// Rate limit counters are shared through Redis when configured
	var counters middleware.CounterStore = middleware.NewMemoryStore()
	if cfg.RateLimitRedisURL != "" {
		redisStore, err := middleware.NewRedisStore(cfg.RateLimitRedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, using in-memory rate limits")
		} else {
			defer redisStore.Close()
			counters = redisStore
			log.Info("Rate limits shared through Redis")
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	// Middleware
	e.Use(middleware.RequestLogger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.NewAPIRateLimiter(counters).Middleware())

	h.Register(e, middleware.NewLoginRateLimiter(counters))

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.ServerPort, "environment": cfg.Environment}).Info("Starting server")
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shut down HTTP server")
	}
	<-reconciler.Stop().Done()
	anchor.Stop()
	if err := ledger.Close(ledgerClient); err != nil {
		log.WithError(err).Error("Failed to close ledger")
	}
}
