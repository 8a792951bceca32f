// Package main is the entry point for the sentinel-analytics portfolio
// optimization and risk-analytics service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/sentinel-analytics/internal/config"
	"github.com/aristath/sentinel-analytics/internal/database"
	"github.com/aristath/sentinel-analytics/internal/events"
	"github.com/aristath/sentinel-analytics/internal/metrics"
	analyticshandlers "github.com/aristath/sentinel-analytics/internal/modules/analytics/handlers"
	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/marketdata"
	marketdatahandlers "github.com/aristath/sentinel-analytics/internal/modules/marketdata/handlers"
	"github.com/aristath/sentinel-analytics/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/sentinel-analytics/internal/modules/optimization/handlers"
	rebalancinghandlers "github.com/aristath/sentinel-analytics/internal/modules/rebalancing/handlers"
	riskhandlers "github.com/aristath/sentinel-analytics/internal/modules/risk/handlers"
	"github.com/aristath/sentinel-analytics/internal/modules/session"
	sessionhandlers "github.com/aristath/sentinel-analytics/internal/modules/session/handlers"
	"github.com/aristath/sentinel-analytics/internal/server"
	"github.com/aristath/sentinel-analytics/pkg/logger"
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
		Pretty: cfg.LogPretty,
	})

	log.Info().Msg("Starting sentinel-analytics")

	reg := metrics.New(true)
	bus := events.NewBus(log)
	eventManager := events.NewManager(bus, log)

	// Price history is optional; without it the history-backed endpoints report 503
	var historyDB *database.DB
	var history *marketdata.HistoryDB
	if cfg.HistoryEnabled() {
		historyDB, err = database.New(database.Config{
			Path:    cfg.HistoryDBPath,
			Profile: database.ProfileReadOnly,
			Name:    "history",
		})
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.HistoryDBPath).Msg("Failed to open history database")
		}
		defer historyDB.Close()
		history = marketdata.NewHistoryDB(historyDB.Conn(), log)
		log.Info().Str("path", cfg.HistoryDBPath).Msg("History database opened")
	}

	holdingsSet, err := seedHoldings(cfg.SeedDemoHoldings)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed holdings")
	}

	optimizer := optimization.NewService(optimization.ServiceConfig{
		DefaultSolver: cfg.OptimizerSolver,
		Timeout:       cfg.OptimizerTimeout,
	}, reg, log)

	sessionCfg := session.Config{
		Holdings:  holdingsSet,
		Optimizer: optimizer,
		Events:    eventManager,
		Recorder:  reg,
	}
	// Interfaces stay nil, not typed-nil, when history is disabled
	var returns analyticshandlers.ReturnsProvider
	var prices marketdatahandlers.History
	var historyHealth server.HealthChecker
	if history != nil {
		sessionCfg.Covariance = session.NewHistoryCovariance(history, cfg.HistoryLookbackDays)
		returns = history
		prices = history
		historyHealth = historyDB
	}
	sess := session.New(sessionCfg, log)

	modules := []server.RouteRegistrar{
		riskhandlers.NewHandler(reg, log),
		optimizationhandlers.NewHandler(optimizer, cfg.DefaultRiskTolerance, log),
		rebalancinghandlers.NewHandler(log),
		analyticshandlers.NewHandler(returns, sess, cfg.HistoryLookbackDays, log),
		sessionhandlers.NewHandler(sess, reg, cfg.DefaultRiskTolerance, log),
		marketdatahandlers.NewHandler(prices, cfg.HistoryLookbackDays, cfg.BenchmarkSymbol, log),
	}

	srv := server.New(server.Config{
		Log:      log,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
		EventBus: bus,
		Metrics:  reg.Handler(),
		System:   server.NewSystemHandlers(sess, historyHealth, log),
		Modules:  modules,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sess.Close()
	log.Info().Msg("Server stopped")
}

func seedHoldings(demo bool) (*holdings.Holdings, error) {
	if demo {
		return holdings.New(holdings.DemoPositions())
	}
	return holdings.New(nil)
}

