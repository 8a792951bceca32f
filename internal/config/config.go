// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/optimization"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      int
	LogLevel  string
	LogPretty bool
	DevMode   bool

	HistoryDBPath       string // Empty disables history-backed analytics
	HistoryLookbackDays int
	BenchmarkSymbol     string // Default benchmark for beta and alpha

	OptimizerSolver      string
	OptimizerTimeout     time.Duration
	DefaultRiskTolerance int
	SeedDemoHoldings     bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvAsInt("PORT", 8001),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogPretty:            getEnvAsBool("LOG_PRETTY", true),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		HistoryDBPath:        getEnv("HISTORY_DB_PATH", ""),
		HistoryLookbackDays:  getEnvAsInt("HISTORY_LOOKBACK_DAYS", 252),
		BenchmarkSymbol:      strings.TrimSpace(getEnv("BENCHMARK_SYMBOL", "SPY")),
		OptimizerSolver:      strings.ToLower(getEnv("OPTIMIZER_SOLVER", optimization.SolverHeuristic)),
		OptimizerTimeout:     time.Duration(getEnvAsInt("OPTIMIZER_TIMEOUT_SECONDS", 10)) * time.Second,
		DefaultRiskTolerance: getEnvAsInt("DEFAULT_RISK_TOLERANCE", optimization.DefaultRiskTolerance),
		SeedDemoHoldings:     getEnvAsBool("SEED_DEMO_HOLDINGS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.HistoryLookbackDays < 2 {
		return fmt.Errorf("HISTORY_LOOKBACK_DAYS must be at least 2, got %d", c.HistoryLookbackDays)
	}
	if c.OptimizerTimeout <= 0 {
		return fmt.Errorf("OPTIMIZER_TIMEOUT_SECONDS must be positive")
	}
	if err := optimization.ValidateRiskTolerance(c.DefaultRiskTolerance); err != nil {
		return fmt.Errorf("DEFAULT_RISK_TOLERANCE: %w", err)
	}
	switch c.OptimizerSolver {
	case optimization.SolverHeuristic, optimization.SolverMeanVariance, optimization.SolverHRP:
	default:
		return fmt.Errorf("unknown OPTIMIZER_SOLVER %q", c.OptimizerSolver)
	}
	return nil
}

// HistoryEnabled reports whether a history database is configured.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDBPath != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
