package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"paisa/internal/advisor"
	"paisa/internal/amqp"
	"paisa/internal/config"
	apphttp "paisa/internal/http"
	"paisa/internal/log"
	"paisa/internal/services"
	"paisa/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewLedgerRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize ledger repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	// AMQP is optional; without it the periodic sweep still exports.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Ledger event stream unavailable, continuing without it", log.FieldError, err)
			events = nil
		} else {
			logger.Info("Ledger event stream connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	// The advisor is optional too; forecasts degrade to flat projections
	// and chat reports unavailability.
	var adv advisor.Advisor
	if client, err := advisor.NewClient(context.Background(), cfg.GenAIModel, cfg.AdvisorTimeout); err != nil {
		logger.Warn("Advisor unavailable, serving degraded forecasts", log.FieldError, err)
	} else {
		adv = client
		logger.Info("Advisor initialized", "model", cfg.GenAIModel)
	}

	ledger := services.NewLedgerService(repo, events)
	advice := services.NewAdviceService(repo, adv)

	// Write timeout must outlast the advisor call or advice requests get
	// cut off mid-generation.
	readTimeout := 10 * time.Second
	writeTimeout := cfg.AdvisorTimeout + 10*time.Second

	srv := apphttp.NewServer(":"+cfg.Port, ledger, advice, logger, readTimeout, writeTimeout)
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting paisa server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := ledger.Close(); err != nil {
			logger.Error("Close error", log.FieldError, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
