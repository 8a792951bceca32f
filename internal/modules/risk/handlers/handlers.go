// Package handlers provides HTTP handlers for risk metrics operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/risk"
	"github.com/rs/zerolog"
)

// RejectionRecorder counts requests rejected by validation.
type RejectionRecorder interface {
	ValidationRejected(endpoint string)
}

// Handler handles risk metrics HTTP requests
type Handler struct {
	rejections RejectionRecorder
	log        zerolog.Logger
}

// NewHandler creates a new risk metrics handler. rejections may be nil.
func NewHandler(rejections RejectionRecorder, log zerolog.Logger) *Handler {
	return &Handler{
		rejections: rejections,
		log:        log.With().Str("handler", "risk").Logger(),
	}
}

// MetricsRequest is the body of POST /api/risk/metrics
type MetricsRequest struct {
	Positions []holdings.Position `json:"positions"`
}

// MetricsResponse is returned by POST /api/risk/metrics
type MetricsResponse struct {
	Metrics       risk.Metrics       `json:"metrics"`
	Concentration risk.Concentration `json:"concentration"`
}

// HandleComputeMetrics handles POST /api/risk/metrics
func (h *Handler) HandleComputeMetrics(w http.ResponseWriter, r *http.Request) {
	var req MetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reject(w, "Invalid request body: "+err.Error(), nil)
		return
	}

	if err := holdings.Validate(req.Positions); err != nil {
		var verr *holdings.ValidationError
		if errors.As(err, &verr) {
			h.reject(w, err.Error(), verr.Issues)
			return
		}
		h.reject(w, err.Error(), nil)
		return
	}

	h.writeData(w, MetricsResponse{
		Metrics:       risk.Compute(req.Positions),
		Concentration: risk.ComputeConcentration(req.Positions),
	})
}

func (h *Handler) reject(w http.ResponseWriter, message string, issues []holdings.Issue) {
	if h.rejections != nil {
		h.rejections.ValidationRejected("risk_metrics")
	}
	h.log.Debug().Str("reason", message).Msg("Rejected risk metrics request")

	body := map[string]interface{}{"error": message}
	if len(issues) > 0 {
		body["issues"] = issues
	}
	h.writeJSON(w, http.StatusBadRequest, body)
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
