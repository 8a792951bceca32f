package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/rebalancing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doDiff(t *testing.T, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	NewHandler(zerolog.Nop()).RegisterRoutes(router)

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/rebalancing/diff", bytes.NewReader(data))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleDiff_TargetWeights(t *testing.T) {
	w := doDiff(t, DiffRequest{
		Positions:     holdings.DemoPositions(),
		TargetWeights: []float64{22, 20, 18, 20, 20},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp DiffResponse
	decodeData(t, w, &resp)

	require.Len(t, resp.Actions, 2)
	assert.Equal(t, "AAPL", resp.Actions[0].Symbol)
	assert.Equal(t, rebalancing.Sell, resp.Actions[0].Action)
	assert.Equal(t, "GOOGL", resp.Actions[1].Symbol)
	assert.Equal(t, rebalancing.Buy, resp.Actions[1].Action)
	assert.Equal(t, 3.0, resp.Summary.Turnover)
}

func TestHandleDiff_AllocationAndThreshold(t *testing.T) {
	threshold := 0.1
	w := doDiff(t, DiffRequest{
		Positions:  []holdings.Position{{Symbol: "A", Weight: 50}, {Symbol: "B", Weight: 50}},
		Allocation: map[string]float64{"A": 50.5, "B": 49.5},
		Threshold:  &threshold,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp DiffResponse
	decodeData(t, w, &resp)
	assert.Len(t, resp.Actions, 2)
	assert.Equal(t, 1, resp.Summary.Buys)
	assert.Equal(t, 1, resp.Summary.Sells)
}

func TestHandleDiff_NoActionsIsEmptyArray(t *testing.T) {
	w := doDiff(t, DiffRequest{
		Positions:     []holdings.Position{{Symbol: "A", Weight: 100}},
		TargetWeights: []float64{100},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"actions":[]`)
}

func TestHandleDiff_Rejections(t *testing.T) {
	w := doDiff(t, DiffRequest{
		Positions: []holdings.Position{{Symbol: "A", Weight: 150}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "issues")

	w = doDiff(t, DiffRequest{
		Positions:     []holdings.Position{{Symbol: "A", Weight: 100}},
		TargetWeights: []float64{100},
		Allocation:    map[string]float64{"A": 100},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
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
