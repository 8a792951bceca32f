// Package handlers provides HTTP handlers for stateless optimization runs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// Handler handles optimizer HTTP requests
type Handler struct {
	service              *optimization.Service
	defaultRiskTolerance int
	log                  zerolog.Logger
}

// NewHandler creates a new optimizer handler
func NewHandler(service *optimization.Service, defaultRiskTolerance int, log zerolog.Logger) *Handler {
	if optimization.ValidateRiskTolerance(defaultRiskTolerance) != nil {
		defaultRiskTolerance = optimization.DefaultRiskTolerance
	}
	return &Handler{
		service:              service,
		defaultRiskTolerance: defaultRiskTolerance,
		log:                  log.With().Str("handler", "optimizer").Logger(),
	}
}

// RunRequest is the body of POST /api/optimizer/run
type RunRequest struct {
	Positions      []holdings.Position `json:"positions"`
	Objective      string              `json:"objective"`
	RiskTolerance  *int                `json:"risk_tolerance,omitempty"`
	Solver         string              `json:"solver,omitempty"`
	Covariance     [][]float64         `json:"covariance,omitempty"`
	MaxWeight      float64             `json:"max_weight,omitempty"`
	TimeoutSeconds float64             `json:"timeout_seconds,omitempty"`
}

// ToRequest converts the body into a service request, applying defaults.
func (r RunRequest) ToRequest(defaultRiskTolerance int) (optimization.Request, error) {
	objective := optimization.MaxSharpe
	if r.Objective != "" {
		parsed, err := optimization.ParseObjective(r.Objective)
		if err != nil {
			return optimization.Request{}, err
		}
		objective = parsed
	}

	tol := defaultRiskTolerance
	if r.RiskTolerance != nil {
		tol = *r.RiskTolerance
	}

	return optimization.Request{
		Positions:     r.Positions,
		Objective:     objective,
		RiskTolerance: tol,
		Solver:        r.Solver,
		Covariance:    r.Covariance,
		MaxWeight:     r.MaxWeight,
		Timeout:       time.Duration(r.TimeoutSeconds * float64(time.Second)),
	}, nil
}

// HandleRun handles POST /api/optimizer/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := body.ToRequest(h.defaultRiskTolerance)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	run, err := h.service.Run(r.Context(), req)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	h.writeData(w, run)
}

// HandleGetSolvers handles GET /api/optimizer/solvers
func (h *Handler) HandleGetSolvers(w http.ResponseWriter, r *http.Request) {
	h.writeData(w, map[string]interface{}{
		"solvers": h.service.Solvers(),
		"default": h.service.DefaultSolver(),
	})
}

// StatusCode maps optimization errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, holdings.ErrInvalidPosition),
		errors.Is(err, optimization.ErrInvalidObjective),
		errors.Is(err, optimization.ErrInvalidRiskTolerance),
		errors.Is(err, optimization.ErrUnknownSolver),
		errors.Is(err, optimization.ErrCovarianceRequired),
		errors.Is(err, optimization.ErrInvalidCovariance):
		return http.StatusBadRequest
	case errors.Is(err, optimization.ErrNoFeasibleAllocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, optimization.ErrSolverTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Optimization failed")
	}

	body := map[string]interface{}{"error": err.Error()}
	var verr *holdings.ValidationError
	if errors.As(err, &verr) {
		body["issues"] = verr.Issues
	}
	h.writeJSON(w, status, body)
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
