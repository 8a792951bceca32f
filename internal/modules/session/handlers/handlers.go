// Package handlers provides HTTP handlers for the holdings and optimization
// session workflow.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/analytics"
	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/optimization"
	opthandlers "github.com/aristath/sentinel-analytics/internal/modules/optimization/handlers"
	"github.com/aristath/sentinel-analytics/internal/modules/risk"
	"github.com/aristath/sentinel-analytics/internal/modules/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RejectionRecorder counts requests rejected by position validation.
type RejectionRecorder interface {
	ValidationRejected(endpoint string)
}

// Handler handles holdings and session HTTP requests
type Handler struct {
	session              *session.Session
	rejections           RejectionRecorder
	defaultRiskTolerance int
	log                  zerolog.Logger
}

// NewHandler creates a new session handler. rejections may be nil.
func NewHandler(s *session.Session, rejections RejectionRecorder, defaultRiskTolerance int, log zerolog.Logger) *Handler {
	if optimization.ValidateRiskTolerance(defaultRiskTolerance) != nil {
		defaultRiskTolerance = optimization.DefaultRiskTolerance
	}
	return &Handler{
		session:              s,
		rejections:           rejections,
		defaultRiskTolerance: defaultRiskTolerance,
		log:                  log.With().Str("handler", "session").Logger(),
	}
}

// HoldingsResponse describes the session holdings
type HoldingsResponse struct {
	Positions     []holdings.Position `json:"positions"`
	TotalWeight   float64             `json:"total_weight"`
	Balanced      bool                `json:"balanced"`
	Version       uint64              `json:"version"`
	Metrics       risk.Metrics        `json:"metrics"`
	Concentration risk.Concentration  `json:"concentration"`
}

// ReplaceHoldingsRequest is the body of PUT /api/holdings
type ReplaceHoldingsRequest struct {
	Positions []holdings.Position `json:"positions"`
}

// SetWeightRequest is the body of PATCH /api/holdings/{symbol}
type SetWeightRequest struct {
	Weight *float64 `json:"weight"`
}

// OptimizeRequest is the body of POST /api/session/optimize
type OptimizeRequest struct {
	Objective      string  `json:"objective,omitempty"`
	RiskTolerance  *int    `json:"risk_tolerance,omitempty"`
	Solver         string  `json:"solver,omitempty"`
	MaxWeight      float64 `json:"max_weight,omitempty"`
	UseHistory     bool    `json:"use_history,omitempty"`
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty"`
}

// ApplyRequest is the body of POST /api/session/apply
type ApplyRequest struct {
	RunID string `json:"run_id,omitempty"`
}

// HandleGetHoldings handles GET /api/holdings
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	h.writeData(w, http.StatusOK, h.describeHoldings())
}

// HandleReplaceHoldings handles PUT /api/holdings
func (h *Handler) HandleReplaceHoldings(w http.ResponseWriter, r *http.Request) {
	var req ReplaceHoldingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.session.Replace(req.Positions); err != nil {
		h.writeErr(w, "holdings_replace", err)
		return
	}

	h.writeData(w, http.StatusOK, h.describeHoldings())
}

// HandleSetWeight handles PATCH /api/holdings/{symbol}
func (h *Handler) HandleSetWeight(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req SetWeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Weight == nil {
		h.writeError(w, http.StatusBadRequest, "weight is required")
		return
	}

	if err := h.session.SetWeight(symbol, *req.Weight); err != nil {
		h.writeErr(w, "holdings_set_weight", err)
		return
	}

	h.writeData(w, http.StatusOK, h.describeHoldings())
}

// HandleOptimize handles POST /api/session/optimize. With ?wait=true the
// response carries the finished run; otherwise it returns 202 with the run id.
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	params, err := req.toParams(h.defaultRiskTolerance)
	if err != nil {
		h.writeErr(w, "", err)
		return
	}

	runID, err := h.session.Start(r.Context(), params)
	if err != nil {
		h.writeErr(w, "", err)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		h.writeData(w, http.StatusAccepted, map[string]interface{}{
			"run_id": runID,
			"state":  session.StateRunning,
		})
		return
	}

	run, err := h.session.Wait(r.Context(), runID)
	if err != nil {
		h.writeErr(w, "", err)
		return
	}
	h.writeData(w, http.StatusOK, run)
}

// HandleGetStatus handles GET /api/session/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeData(w, http.StatusOK, h.session.Status())
}

// HandleGetResult handles GET /api/session/result
func (h *Handler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	run := h.session.Latest()
	if run == nil {
		h.writeErr(w, "", session.ErrNoResult)
		return
	}
	h.writeData(w, http.StatusOK, run)
}

// HandleApply handles POST /api/session/apply
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	run, err := h.session.Apply(req.RunID)
	if err != nil {
		h.writeErr(w, "", err)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"run_id":   run.ID,
		"actions":  run.Actions,
		"holdings": h.describeHoldings(),
	})
}

func (r OptimizeRequest) toParams(defaultRiskTolerance int) (session.Params, error) {
	objective := optimization.MaxSharpe
	if r.Objective != "" {
		parsed, err := optimization.ParseObjective(r.Objective)
		if err != nil {
			return session.Params{}, err
		}
		objective = parsed
	}

	tol := defaultRiskTolerance
	if r.RiskTolerance != nil {
		tol = *r.RiskTolerance
	}

	return session.Params{
		Objective:     objective,
		RiskTolerance: tol,
		Solver:        r.Solver,
		MaxWeight:     r.MaxWeight,
		UseHistory:    r.UseHistory,
		Timeout:       time.Duration(r.TimeoutSeconds * float64(time.Second)),
	}, nil
}

func (h *Handler) describeHoldings() HoldingsResponse {
	positions, version := h.session.Holdings().Snapshot()
	total := holdings.TotalWeight(positions)
	return HoldingsResponse{
		Positions:     positions,
		TotalWeight:   total,
		Balanced:      math.Abs(total-100) <= holdings.WeightTolerance,
		Version:       version,
		Metrics:       risk.Compute(positions),
		Concentration: risk.ComputeConcentration(positions),
	}
}

// StatusCode maps session errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrNoResult), errors.Is(err, session.ErrStaleRun):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownRun), errors.Is(err, holdings.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrHistoryUnavailable), errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return opthandlers.StatusCode(err)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, endpoint string, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Session request failed")
	}

	body := map[string]interface{}{"error": err.Error()}
	var verr *holdings.ValidationError
	if errors.As(err, &verr) {
		body["issues"] = verr.Issues
		if endpoint != "" && h.rejections != nil {
			h.rejections.ValidationRejected(endpoint)
		}
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
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
