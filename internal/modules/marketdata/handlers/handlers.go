// Package handlers provides HTTP handlers for history-derived estimates.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/analytics"
	"github.com/aristath/sentinel-analytics/internal/modules/marketdata"
	"github.com/aristath/sentinel-analytics/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// History is the subset of the history store the handlers need.
type History interface {
	GetDailyPrices(ctx context.Context, symbol string, limit int) ([]marketdata.DailyPrice, error)
	Estimate(ctx context.Context, symbol string, days int) (*marketdata.Estimate, error)
	CompareToBenchmark(ctx context.Context, symbols []string, benchmark string, days int) (*marketdata.BenchmarkReport, error)
}

// Handler handles market data HTTP requests
type Handler struct {
	history      History
	lookbackDays int
	benchmark    string
	log          zerolog.Logger
}

// NewHandler creates a new market data handler. A nil history makes every
// route answer 503. benchmark is the default for /benchmark and may be empty.
func NewHandler(history History, lookbackDays int, benchmark string, log zerolog.Logger) *Handler {
	return &Handler{
		history:      history,
		lookbackDays: lookbackDays,
		benchmark:    benchmark,
		log:          log.With().Str("handler", "marketdata").Logger(),
	}
}

// RegisterRoutes registers the market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/marketdata", func(r chi.Router) {
		r.Get("/estimates", h.HandleGetEstimates)
		r.Get("/prices/{symbol}", h.HandleGetPrices)
		r.Get("/benchmark", h.HandleGetBenchmark)
	})
}

// HandleGetEstimates handles GET /api/marketdata/estimates?symbols=A,B&days=N
func (h *Handler) HandleGetEstimates(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	symbols := utils.ParseSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}

	estimates := make([]*marketdata.Estimate, 0, len(symbols))
	for _, symbol := range symbols {
		est, err := h.history.Estimate(r.Context(), symbol, days)
		if err != nil {
			h.writeHistoryErr(w, err)
			return
		}
		estimates = append(estimates, est)
	}

	h.writeData(w, map[string]interface{}{
		"days":      days,
		"estimates": estimates,
	})
}

// HandleGetPrices handles GET /api/marketdata/prices/{symbol}?days=N
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	symbol := chi.URLParam(r, "symbol")

	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}

	prices, err := h.history.GetDailyPrices(r.Context(), symbol, days)
	if err != nil {
		h.writeHistoryErr(w, err)
		return
	}

	h.writeData(w, map[string]interface{}{
		"symbol": symbol,
		"prices": prices,
	})
}

// BenchmarkResponse is returned by GET /api/marketdata/benchmark
type BenchmarkResponse struct {
	*marketdata.BenchmarkReport
	Portfolio *marketdata.Relative `json:"portfolio,omitempty"`
}

// HandleGetBenchmark handles GET /api/marketdata/benchmark?symbols=A,B&benchmark=SPY&days=N&weights=60,40
//
// weights, when given, must have one percentage per symbol and adds the
// weighted portfolio beta and alpha.
func (h *Handler) HandleGetBenchmark(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	q := r.URL.Query()
	symbols := utils.ParseSymbols(q.Get("symbols"))
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}
	benchmark := strings.TrimSpace(q.Get("benchmark"))
	if benchmark == "" {
		benchmark = h.benchmark
	}
	if benchmark == "" {
		h.writeError(w, http.StatusBadRequest, "benchmark is required")
		return
	}

	var weights map[string]float64
	if raw := utils.ParseCSV(q.Get("weights")); raw != nil {
		if len(raw) != len(symbols) {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("weights has %d values for %d symbols", len(raw), len(symbols)))
			return
		}
		weights = make(map[string]float64, len(raw))
		for i, v := range raw {
			weight, err := strconv.ParseFloat(v, 64)
			if err != nil || weight < 0 || weight > 100 {
				h.writeError(w, http.StatusBadRequest, fmt.Sprintf("weight %q must be a number in 0..100", v))
				return
			}
			weights[symbols[i]] = weight
		}
	}

	days, ok := h.parseDays(w, r)
	if !ok {
		return
	}

	report, err := h.history.CompareToBenchmark(r.Context(), symbols, benchmark, days)
	if err != nil {
		h.writeHistoryErr(w, err)
		return
	}

	resp := BenchmarkResponse{BenchmarkReport: report}
	if weights != nil {
		p := report.Portfolio(weights)
		resp.Portfolio = &p
	}
	h.writeData(w, resp)
}

func (h *Handler) parseDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	days := h.lookbackDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2 {
			h.writeError(w, http.StatusBadRequest, "days must be an integer of at least 2")
			return 0, false
		}
		days = parsed
	}
	return days, true
}

func (h *Handler) available(w http.ResponseWriter) bool {
	if h.history == nil {
		h.writeHistoryErr(w, analytics.ErrHistoryUnavailable)
		return false
	}
	return true
}

func (h *Handler) writeHistoryErr(w http.ResponseWriter, err error) {
	if errors.Is(err, analytics.ErrHistoryUnavailable) {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":       err.Error(),
			"unavailable": true,
		})
		return
	}
	h.log.Error().Err(err).Msg("Failed to read price history")
	h.writeError(w, http.StatusInternalServerError, "Failed to read price history")
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
