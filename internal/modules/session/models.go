// Package session owns one holdings set and drives optimization runs against
// it. The newest request always wins: results of superseded runs, or of runs
// whose holdings changed underneath them, are discarded.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/sentinel-analytics/internal/modules/optimization"
)

// State of the optimization workflow.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateResultReady State = "result_ready"
)

var (
	// ErrNoResult means there is no authoritative result to act on.
	ErrNoResult = errors.New("no optimization result available")
	// ErrStaleRun means the run was superseded or its holdings changed.
	ErrStaleRun = errors.New("optimization run is stale")
	// ErrUnknownRun means the run id was never issued or has been forgotten.
	ErrUnknownRun = errors.New("unknown optimization run")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("session closed")
)

// Optimizer runs one optimization request.
type Optimizer interface {
	Run(ctx context.Context, req optimization.Request) (*optimization.Run, error)
}

// CovarianceSource estimates an annualized covariance matrix (%²) for symbols.
type CovarianceSource interface {
	Covariance(ctx context.Context, symbols []string) ([][]float64, error)
}

// Recorder counts workflow outcomes.
type Recorder interface {
	RunDiscarded()
	ResultApplied()
}

// Params selects how a run optimizes the session holdings.
type Params struct {
	Objective     optimization.Objective `json:"objective"`
	RiskTolerance int                    `json:"risk_tolerance"`
	Solver        string                 `json:"solver,omitempty"`
	MaxWeight     float64                `json:"max_weight,omitempty"`
	// UseHistory estimates covariance from price history before solving.
	UseHistory bool          `json:"use_history"`
	Timeout    time.Duration `json:"-"`
}

// Status is a point-in-time view of the workflow.
type Status struct {
	State           State  `json:"state"`
	RunID           string `json:"run_id,omitempty"`
	ResultID        string `json:"result_id,omitempty"`
	Generation      uint64 `json:"generation"`
	HoldingsVersion uint64 `json:"holdings_version"`
	LastError       string `json:"last_error,omitempty"`
}

type pending struct {
	id         string
	generation uint64
	version    uint64
	params     Params
	started    time.Time
	cancel     context.CancelFunc
	done       chan struct{}

	run *optimization.Run
	err error
}

type noopRecorder struct{}

func (noopRecorder) RunDiscarded()  {}
func (noopRecorder) ResultApplied() {}
