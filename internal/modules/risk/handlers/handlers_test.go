package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	endpoints []string
}

func (c *countingRecorder) ValidationRejected(endpoint string) {
	c.endpoints = append(c.endpoints, endpoint)
}

func setupRouter(rec RejectionRecorder) *chi.Mux {
	router := chi.NewRouter()
	NewHandler(rec, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleComputeMetrics(t *testing.T) {
	router := setupRouter(nil)

	w := postJSON(t, router, "/risk/metrics", MetricsRequest{Positions: holdings.DemoPositions()})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp MetricsResponse
	decodeData(t, w, &resp)
	assert.InDelta(t, 11.205, resp.Metrics.ExpectedReturn, 1e-9)
	assert.InDelta(t, 10.06036, resp.Metrics.ExpectedRisk, 1e-5)
	assert.InDelta(t, resp.Metrics.ExpectedRisk*1.645, resp.Metrics.VaR95, 1e-9)
	assert.Equal(t, "AAPL", resp.Concentration.LargestPosition)
}

func TestHandleComputeMetrics_EmptyPositions(t *testing.T) {
	router := setupRouter(nil)

	w := postJSON(t, router, "/risk/metrics", MetricsRequest{})

	require.Equal(t, http.StatusOK, w.Code)
	var resp MetricsResponse
	decodeData(t, w, &resp)
	assert.Equal(t, 0.0, resp.Metrics.ExpectedReturn)
	assert.Equal(t, 0.0, resp.Metrics.SharpeRatio)
}

func TestHandleComputeMetrics_RejectsInvalidPositions(t *testing.T) {
	rec := &countingRecorder{}
	router := setupRouter(rec)

	positions := []holdings.Position{
		{Symbol: "AAPL", Weight: -5, ExpectedReturn: 10, Risk: 20},
		{Symbol: "", Weight: 10, ExpectedReturn: 10, Risk: -1},
	}
	w := postJSON(t, router, "/risk/metrics", MetricsRequest{Positions: positions})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error  string           `json:"error"`
		Issues []holdings.Issue `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "invalid position")
	assert.Len(t, body.Issues, 3)
	assert.Equal(t, []string{"risk_metrics"}, rec.endpoints)
}

func TestHandleComputeMetrics_MalformedBody(t *testing.T) {
	router := setupRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/risk/metrics", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestRegisterRoutes_MethodNotAllowed(t *testing.T) {
	router := setupRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/risk/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
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
