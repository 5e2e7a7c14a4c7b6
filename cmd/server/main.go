package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-tracker/internal/config"
	"github.com/aristath/portfolio-tracker/internal/database"
	"github.com/aristath/portfolio-tracker/internal/events"
	"github.com/aristath/portfolio-tracker/internal/modules/portfolio"
	"github.com/aristath/portfolio-tracker/internal/quotes"
	"github.com/aristath/portfolio-tracker/internal/refresh"
	"github.com/aristath/portfolio-tracker/internal/scheduler"
	"github.com/aristath/portfolio-tracker/internal/server"
	"github.com/aristath/portfolio-tracker/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting portfolio tracker")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Wire the store
	eventManager := events.NewManager(log)
	repo := portfolio.NewSQLiteRepository(db, log)
	store := portfolio.NewStore(repo, eventManager, log)
	if err := store.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load portfolio store")
	}

	// Wire the refresh cycle
	source := newQuoteSource(cfg, log)
	reconciler := refresh.New(store, source, eventManager, cfg.QuoteTimeout, log)
	job := scheduler.NewRefreshCycleJob(reconciler, log)

	sched := scheduler.New(cfg.RefreshInterval, job, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		Store:      store,
		Reconciler: reconciler,
		Scheduler:  sched,
		DevMode:    cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop ticking first; an in-flight pass is allowed to finish.
	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// newQuoteSource selects the configured quote provider. Both implement
// the same contract, so nothing downstream knows the difference.
func newQuoteSource(cfg *config.Config, log zerolog.Logger) quotes.Source {
	if cfg.QuoteProvider == config.ProviderSimulated {
		log.Info().Msg("Using simulated quote source")
		return quotes.NewSimulatedSource(10.0, 500.0, time.Now().UnixNano(), log)
	}
	return quotes.NewYahooClient(cfg.QuoteTimeout, log)
}
