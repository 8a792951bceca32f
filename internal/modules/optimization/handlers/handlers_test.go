package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter() *chi.Mux {
	service := optimization.NewService(optimization.ServiceConfig{Timeout: 5 * time.Second}, nil, zerolog.Nop())
	router := chi.NewRouter()
	NewHandler(service, 5, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func post(t *testing.T, router http.Handler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/optimizer/run", bytes.NewReader(data))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleRun_Defaults(t *testing.T) {
	w := post(t, setupRouter(), RunRequest{Positions: holdings.DemoPositions()})

	require.Equal(t, http.StatusOK, w.Code)
	var run optimization.Run
	decodeData(t, w, &run)

	assert.Equal(t, optimization.MaxSharpe, run.Objective)
	assert.Equal(t, 5, run.RiskTolerance)
	assert.Equal(t, optimization.SolverHeuristic, run.Solver)
	assert.Equal(t, 20.48, run.Result.Allocation["AAPL"])
	assert.NotEmpty(t, run.ID)
}

func TestHandleRun_AliasObjective(t *testing.T) {
	tol := 10
	w := post(t, setupRouter(), RunRequest{
		Positions:     holdings.DemoPositions(),
		Objective:     "return",
		RiskTolerance: &tol,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var run optimization.Run
	decodeData(t, w, &run)
	assert.Equal(t, optimization.MaxReturn, run.Objective)
	assert.Equal(t, 10, run.RiskTolerance)
}

func TestHandleRun_ErrorStatuses(t *testing.T) {
	zero := 0
	tests := []struct {
		name   string
		body   RunRequest
		status int
	}{
		{"bad objective", RunRequest{Positions: holdings.DemoPositions(), Objective: "moon"}, http.StatusBadRequest},
		{"bad tolerance", RunRequest{Positions: holdings.DemoPositions(), RiskTolerance: &zero}, http.StatusBadRequest},
		{"bad positions", RunRequest{Positions: []holdings.Position{{Symbol: "A", Weight: 101}}}, http.StatusBadRequest},
		{"covariance missing", RunRequest{Positions: holdings.DemoPositions(), Solver: "mean_variance"}, http.StatusBadRequest},
		{"unknown solver", RunRequest{Positions: holdings.DemoPositions(), Solver: "nope"}, http.StatusBadRequest},
	}

	router := setupRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestHandleGetSolvers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/optimizer/solvers", nil)
	w := httptest.NewRecorder()
	setupRouter().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Solvers []string `json:"solvers"`
		Default string   `json:"default"`
	}
	decodeData(t, w, &body)
	assert.Contains(t, body.Solvers, "hrp")
	assert.Equal(t, "heuristic", body.Default)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, StatusCode(optimization.ErrSolverTimeout))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusCode(fmt.Errorf("wrapped: %w", optimization.ErrNoFeasibleAllocation)))
	assert.Equal(t, http.StatusBadRequest, StatusCode(holdings.Validate([]holdings.Position{{}})))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Data     json.RawMessage        `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Contains(t, envelope.Metadata, "timestamp")
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}
