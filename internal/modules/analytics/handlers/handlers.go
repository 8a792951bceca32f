// Package handlers provides HTTP handlers for portfolio analytics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/analytics"
	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/optimization"
	"github.com/aristath/sentinel-analytics/internal/utils"
	"github.com/rs/zerolog"
)

// ReturnsProvider loads aligned daily return series.
type ReturnsProvider interface {
	ReturnSeries(ctx context.Context, symbols []string, days int) (map[string][]float64, error)
}

// PortfolioView exposes the session holdings and its latest result.
type PortfolioView interface {
	Positions() []holdings.Position
	Latest() *optimization.Run
}

// Handler handles analytics HTTP requests
type Handler struct {
	returns      ReturnsProvider
	portfolio    PortfolioView
	lookbackDays int
	log          zerolog.Logger
}

// NewHandler creates a new analytics handler. returns may be nil when no
// price history is configured.
func NewHandler(returns ReturnsProvider, portfolio PortfolioView, lookbackDays int, log zerolog.Logger) *Handler {
	return &Handler{
		returns:      returns,
		portfolio:    portfolio,
		lookbackDays: lookbackDays,
		log:          log.With().Str("handler", "analytics").Logger(),
	}
}

// CorrelationRequest is the body of POST /api/analytics/correlation
type CorrelationRequest struct {
	Symbols   []string             `json:"symbols,omitempty"`
	Returns   map[string][]float64 `json:"returns"`
	Threshold float64              `json:"threshold,omitempty"`
}

// CorrelationResponse is returned by both correlation endpoints
type CorrelationResponse struct {
	Matrix           analytics.Matrix            `json:"matrix"`
	HighCorrelations []analytics.CorrelationPair `json:"high_correlations"`
	Threshold        float64                     `json:"threshold"`
}

// HandlePostCorrelation handles POST /api/analytics/correlation
func (h *Handler) HandlePostCorrelation(w http.ResponseWriter, r *http.Request) {
	var req CorrelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		for s := range req.Returns {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
	}

	h.respondCorrelation(w, symbols, req.Returns, req.Threshold)
}

// HandleGetCorrelation handles GET /api/analytics/correlation
func (h *Handler) HandleGetCorrelation(w http.ResponseWriter, r *http.Request) {
	if h.returns == nil {
		h.writeUnavailable(w, "price history is not configured")
		return
	}

	symbols := utils.ParseSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 && h.portfolio != nil {
		symbols = holdings.Symbols(h.portfolio.Positions())
	}
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "No symbols requested")
		return
	}

	days := h.lookbackDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2 {
			h.writeError(w, http.StatusBadRequest, "days must be an integer of at least 2")
			return
		}
		days = parsed
	}

	var threshold float64
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "threshold must be a number")
			return
		}
		threshold = parsed
	}

	returns, err := h.returns.ReturnSeries(r.Context(), symbols, days)
	if err != nil {
		if errors.Is(err, analytics.ErrHistoryUnavailable) {
			h.writeUnavailable(w, err.Error())
			return
		}
		h.log.Error().Err(err).Strs("symbols", symbols).Msg("Failed to load return series")
		h.writeError(w, http.StatusInternalServerError, "Failed to load return series")
		return
	}

	h.respondCorrelation(w, symbols, returns, threshold)
}

func (h *Handler) respondCorrelation(w http.ResponseWriter, symbols []string, returns map[string][]float64, threshold float64) {
	matrix, err := analytics.CorrelationMatrix(symbols, returns)
	if err != nil {
		h.writeUnavailable(w, err.Error())
		return
	}

	if threshold <= 0 {
		threshold = analytics.DefaultHighCorrelation
	}
	h.writeData(w, CorrelationResponse{
		Matrix:           matrix,
		HighCorrelations: analytics.HighCorrelations(matrix, threshold),
		Threshold:        threshold,
	})
}

// SentimentRequest is the body of POST /api/analytics/sentiment
type SentimentRequest struct {
	Scores []analytics.SentimentScore `json:"scores"`
}

// SentimentResponse is returned by POST /api/analytics/sentiment
type SentimentResponse struct {
	Sectors map[string]float64 `json:"sectors"`
	Overall float64            `json:"overall"`
	Mood    analytics.Mood     `json:"mood"`
	Breadth analytics.Breadth  `json:"breadth"`
}

// HandleSentiment handles POST /api/analytics/sentiment
func (h *Handler) HandleSentiment(w http.ResponseWriter, r *http.Request) {
	var req SentimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sectors, err := analytics.SectorSentiment(req.Scores)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	overall, err := analytics.OverallSentiment(req.Scores)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	breadth, err := analytics.SentimentBreadth(req.Scores)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeData(w, SentimentResponse{
		Sectors: sectors,
		Overall: overall,
		Mood:    analytics.MoodLabel(overall),
		Breadth: breadth,
	})
}

// AllocationResponse is returned by GET /api/analytics/allocation
type AllocationResponse struct {
	Current    []analytics.SectorWeight     `json:"current"`
	Optimized  []analytics.SectorWeight     `json:"optimized,omitempty"`
	Comparison []analytics.SectorComparison `json:"comparison,omitempty"`
	RunID      string                       `json:"run_id,omitempty"`
}

// HandleAllocation handles GET /api/analytics/allocation
func (h *Handler) HandleAllocation(w http.ResponseWriter, r *http.Request) {
	if h.portfolio == nil {
		h.writeUnavailable(w, "no holdings session")
		return
	}

	positions := h.portfolio.Positions()
	resp := AllocationResponse{Current: analytics.SectorAllocation(positions, nil)}

	if run := h.portfolio.Latest(); run != nil && len(run.Weights) == len(positions) {
		resp.Optimized = analytics.SectorAllocation(positions, run.Weights)
		resp.Comparison = analytics.CompareAllocations(positions, run.Weights)
		resp.RunID = run.ID
	}

	h.writeData(w, resp)
}

func (h *Handler) writeUnavailable(w http.ResponseWriter, reason string) {
	h.writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
		"error":       reason,
		"unavailable": true,
	})
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
