package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/session"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SessionStatus reports the optimization workflow state.
type SessionStatus interface {
	Status() session.Status
}

// HealthChecker verifies a backing store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	CPUPercent    float64         `json:"cpu_percent"`
	RAMPercent    float64         `json:"ram_percent"`
	Goroutines    int             `json:"goroutines"`
	GoVersion     string          `json:"go_version"`
	HistoryDB     string          `json:"history_db"`
	Session       *session.Status `json:"session,omitempty"`
}

// SystemHandlers serves process and workflow status.
type SystemHandlers struct {
	session   SessionStatus
	history   HealthChecker
	startedAt time.Time
	stats     func() (float64, float64)
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers. history may be nil when no
// price history is configured.
func NewSystemHandlers(sess SessionStatus, history HealthChecker, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		session:   sess,
		history:   history,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
	h.stats = h.getSystemStats
	return h
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")
	writeJSON(w, http.StatusOK, h.Snapshot(r.Context()), h.log)
}

// Snapshot collects the current system status.
func (h *SystemHandlers) Snapshot(ctx context.Context) SystemStatusResponse {
	cpuPercent, ramPercent := h.stats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		HistoryDB:     "unavailable",
	}

	if h.history != nil {
		if err := h.history.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Msg("History database health check failed")
			resp.HistoryDB = "error"
			resp.Status = "degraded"
		} else {
			resp.HistoryDB = "ok"
		}
	}

	if h.session != nil {
		st := h.session.Status()
		resp.Session = &st
	}

	return resp
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
