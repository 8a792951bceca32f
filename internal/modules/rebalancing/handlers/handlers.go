// Package handlers provides HTTP handlers for rebalancing recommendations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/rebalancing"
	"github.com/rs/zerolog"
)

// Handler handles rebalancing HTTP requests
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("handler", "rebalancing").Logger(),
	}
}

// DiffRequest is the body of POST /api/rebalancing/diff. Either TargetWeights
// (input order) or Allocation (by symbol) supplies the target.
type DiffRequest struct {
	Positions     []holdings.Position `json:"positions"`
	TargetWeights []float64           `json:"target_weights,omitempty"`
	Allocation    map[string]float64  `json:"allocation,omitempty"`
	Threshold     *float64            `json:"threshold,omitempty"`
}

// DiffResponse is returned by POST /api/rebalancing/diff
type DiffResponse struct {
	Actions []rebalancing.RebalanceAction `json:"actions"`
	Summary rebalancing.ActionSummary     `json:"summary"`
}

// HandleDiff handles POST /api/rebalancing/diff
func (h *Handler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	var req DiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := holdings.Validate(req.Positions); err != nil {
		var verr *holdings.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  err.Error(),
				"issues": verr.Issues,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.TargetWeights != nil && req.Allocation != nil {
		h.writeError(w, http.StatusBadRequest, "Provide either target_weights or allocation, not both")
		return
	}

	target := req.TargetWeights
	if req.Allocation != nil {
		target = make([]float64, len(req.Positions))
		for i, p := range req.Positions {
			target[i] = req.Allocation[p.Symbol]
		}
	}

	threshold := rebalancing.MaterialityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	actions := rebalancing.DiffWithThreshold(req.Positions, target, threshold)
	h.writeData(w, DiffResponse{
		Actions: actions,
		Summary: rebalancing.Summary(actions),
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
