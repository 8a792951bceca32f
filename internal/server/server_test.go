package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/sentinel-analytics/internal/events"
	"github.com/aristath/sentinel-analytics/internal/modules/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

type fixedStatus struct{ st session.Status }

func (f fixedStatus) Status() session.Status { return f.st }

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) error { return f.err }

func newSystemHandlers(sess SessionStatus, history HealthChecker) *SystemHandlers {
	h := NewSystemHandlers(sess, history, zerolog.Nop())
	h.stats = func() (float64, float64) { return 12.5, 40 }
	return h
}

func TestHealth(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), DevMode: true})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "sentinel-analytics", body["service"])
}

func TestModulesMountedUnderAPI(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), Modules: []RouteRegistrar{pingModule{}}})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok_metric 1\n"))
	})
	s := New(Config{Log: zerolog.Nop(), DevMode: true, Metrics: metrics})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok_metric 1")

	bare := New(Config{Log: zerolog.Nop()})
	w = httptest.NewRecorder()
	bare.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), Modules: []RouteRegistrar{pingModule{}}})

	req := httptest.NewRequest(http.MethodOptions, "/api/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestSystemStatus(t *testing.T) {
	sys := newSystemHandlers(fixedStatus{st: session.Status{State: session.StateResultReady, Generation: 3}}, fakeHealth{})
	s := New(Config{Log: zerolog.Nop(), DevMode: true, System: sys})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 12.5, resp.CPUPercent)
	assert.Equal(t, 40.0, resp.RAMPercent)
	assert.Equal(t, "ok", resp.HistoryDB)
	assert.GreaterOrEqual(t, resp.UptimeSeconds, 0.0)
	assert.Positive(t, resp.Goroutines)
	require.NotNil(t, resp.Session)
	assert.Equal(t, session.StateResultReady, resp.Session.State)
	assert.Equal(t, uint64(3), resp.Session.Generation)
}

func TestSystemStatus_History(t *testing.T) {
	ctx := context.Background()

	degraded := newSystemHandlers(nil, fakeHealth{err: errors.New("disk I/O error")}).Snapshot(ctx)
	assert.Equal(t, "degraded", degraded.Status)
	assert.Equal(t, "error", degraded.HistoryDB)
	assert.Nil(t, degraded.Session)

	none := newSystemHandlers(nil, nil).Snapshot(ctx)
	assert.Equal(t, "healthy", none.Status)
	assert.Equal(t, "unavailable", none.HistoryDB)
}

func TestEventsStream(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	s := New(Config{Log: zerolog.Nop(), DevMode: true, EventBus: bus})

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events/stream?types=holdings_applied", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, first, `"connected"`)

	require.Eventually(t, func() bool {
		return bus.Subscribers(events.HoldingsApplied) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, bus.Subscribers(events.HoldingsChanged))

	bus.Emit(events.HoldingsChanged, "session", map[string]interface{}{"source": "replace"})
	bus.Emit(events.HoldingsApplied, "session", map[string]interface{}{"run_id": "abc"})

	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, "event: holdings_applied", lines[0])
	assert.Contains(t, lines[1], `"run_id":"abc"`)
	assert.Contains(t, lines[1], `"module":"session"`)

	cancel()
	require.Eventually(t, func() bool {
		return bus.Subscribers(events.HoldingsApplied) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEventsStream_Heartbeat(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	h := NewEventsStreamHandler(bus, zerolog.Nop())
	h.heartbeat = 10 * time.Millisecond

	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	found := false
	for i := 0; i < 10 && !found; i++ {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		found = strings.Contains(line, `"heartbeat"`)
	}
	assert.True(t, found)
}
