// Package main is the entry point of the background orchestration service.
//
// Startup order:
//  1. Load configuration (.env + environment)
//  2. Build the logger
//  3. Wire databases, clients and services (di.Wire)
//  4. Recover queue items orphaned by a previous crash
//  5. Start the market status stream, the scheduler, and the HTTP server
//  6. Wait for SIGINT/SIGTERM and shut down in reverse order
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/config"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/di"
	mhhandlers "github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/modules/market_hours/handlers"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/server"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting neural-ticker-core")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Single writer: anything still processing was abandoned by a previous process
	recovered, err := container.QueueManager.RecoverInterrupted(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to recover interrupted queue items")
	} else if recovered > 0 {
		log.Warn().Int("items", recovered).Msg("Recovered interrupted queue items")
	}

	if container.StatusStream != nil {
		if err := container.StatusStream.Start(); err != nil {
			log.Warn().Err(err).Msg("Market status stream unavailable, will keep retrying")
		}
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		TriggerToken: cfg.TriggerToken,
		Jobs:         container.Scheduler,
		Queue:        container.QueueManager,
		Tickets:      container.TicketManager,
		MarketHours:  mhhandlers.NewHandler(container.MarketGate, log),
		Databases:    []server.Pinger{container.CoreDB, container.HistoryDB},
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Running jobs see a cancelled context and return between targets
	container.Scheduler.Stop()
	cancel()

	log.Info().Msg("Server stopped")
}
