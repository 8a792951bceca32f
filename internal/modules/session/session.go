package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/sentinel-analytics/internal/events"
	"github.com/aristath/sentinel-analytics/internal/modules/analytics"
	"github.com/aristath/sentinel-analytics/internal/modules/holdings"
	"github.com/aristath/sentinel-analytics/internal/modules/optimization"
	"github.com/aristath/sentinel-analytics/internal/modules/rebalancing"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const eventModule = "session"

// keepFinished bounds how many finished runs stay addressable by Wait.
const keepFinished = 16

// Config wires a session to its collaborators. Covariance, Events and
// Recorder are optional.
type Config struct {
	Holdings   *holdings.Holdings
	Optimizer  Optimizer
	Covariance CovarianceSource
	Events     *events.Manager
	Recorder   Recorder
}

// Session is the idle → running → result_ready workflow around one holdings
// set. It is safe for concurrent use.
type Session struct {
	holdings   *holdings.Holdings
	optimizer  Optimizer
	covariance CovarianceSource
	events     *events.Manager
	recorder   Recorder
	log        zerolog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu            sync.Mutex
	closed        bool
	state         State
	generation    uint64
	current       *pending
	runs          map[string]*pending
	finished      []string
	latest        *optimization.Run
	latestVersion uint64
	lastErr       error
}

// New creates an idle session.
func New(cfg Config, log zerolog.Logger) *Session {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Session{
		holdings:   cfg.Holdings,
		optimizer:  cfg.Optimizer,
		covariance: cfg.Covariance,
		events:     cfg.Events,
		recorder:   recorder,
		log:        log.With().Str("service", "session").Logger(),
		baseCtx:    ctx,
		stop:       stop,
		state:      StateIdle,
		runs:       make(map[string]*pending),
	}
}

// Start launches an optimization of the current holdings and returns its run
// id. The new run supersedes every earlier one.
func (s *Session) Start(ctx context.Context, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !params.Objective.Valid() {
		return "", fmt.Errorf("%w: %q", optimization.ErrInvalidObjective, params.Objective)
	}
	if err := optimization.ValidateRiskTolerance(params.RiskTolerance); err != nil {
		return "", err
	}
	if params.UseHistory && s.covariance == nil {
		return "", fmt.Errorf("%w: no price history configured", analytics.ErrHistoryUnavailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	if prev := s.current; prev != nil && !isDone(prev) {
		prev.cancel()
	}

	positions, version := s.holdings.Snapshot()
	runCtx, cancel := context.WithCancel(s.baseCtx)

	s.generation++
	p := &pending{
		id:         uuid.New().String(),
		generation: s.generation,
		version:    version,
		params:     params,
		started:    time.Now(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.current = p
	s.runs[p.id] = p
	s.state = StateRunning
	s.latest = nil
	s.lastErr = nil

	s.wg.Add(1)
	go s.execute(runCtx, p, positions)

	s.log.Info().
		Str("run_id", p.id).
		Uint64("generation", p.generation).
		Str("objective", string(params.Objective)).
		Int("risk_tolerance", params.RiskTolerance).
		Msg("Optimization started")

	return p.id, nil
}

func (s *Session) execute(ctx context.Context, p *pending, positions []holdings.Position) {
	defer s.wg.Done()
	defer p.cancel()

	req := optimization.Request{
		Positions:     positions,
		Objective:     p.params.Objective,
		RiskTolerance: p.params.RiskTolerance,
		Solver:        p.params.Solver,
		MaxWeight:     p.params.MaxWeight,
		Timeout:       p.params.Timeout,
	}

	var run *optimization.Run
	var err error
	if p.params.UseHistory {
		req.Covariance, err = s.covariance.Covariance(ctx, holdings.Symbols(positions))
		if err != nil {
			err = fmt.Errorf("estimate covariance: %w", err)
		}
	}
	if err == nil {
		run, err = s.optimizer.Run(ctx, req)
	}

	s.finish(p, run, err)
}

func (s *Session) finish(p *pending, run *optimization.Run, runErr error) {
	var emit events.EventData

	s.mu.Lock()
	superseded := p.generation != s.generation
	holdingsChanged := s.holdings.Version() != p.version

	switch {
	case superseded || holdingsChanged:
		reason := "superseded"
		if !superseded {
			reason = "holdings_changed"
			s.state = StateIdle
		}
		p.err = fmt.Errorf("%w: %s", ErrStaleRun, reason)
		s.recorder.RunDiscarded()
		s.log.Info().
			Str("run_id", p.id).
			Str("reason", reason).
			AnErr("run_error", runErr).
			Msg("Discarded optimization result")
		emit = &events.OptimizationDiscardedData{RunID: p.id, Reason: reason}

	case runErr != nil:
		p.err = runErr
		s.state = StateIdle
		s.lastErr = runErr
		s.log.Warn().Err(runErr).Str("run_id", p.id).Msg("Optimization run failed")
		emit = &events.ErrorEventData{
			Error:   runErr.Error(),
			Context: map[string]interface{}{"run_id": p.id},
		}

	default:
		run.ID = p.id
		p.run = run
		s.latest = run
		s.latestVersion = p.version
		s.state = StateResultReady
		emit = &events.OptimizationCompletedData{
			RunID:          run.ID,
			Solver:         run.Solver,
			Objective:      string(run.Objective),
			RiskTolerance:  run.RiskTolerance,
			ExpectedReturn: run.Result.ExpectedReturn,
			ExpectedRisk:   run.Result.ExpectedRisk,
			SharpeRatio:    run.Result.SharpeRatio,
			Actions:        len(run.Actions),
			DurationMs:     time.Since(p.started).Milliseconds(),
		}
	}

	s.remember(p.id)
	s.mu.Unlock()

	s.events.EmitTyped(eventModule, emit)
	close(p.done)
}

// remember keeps the last few finished runs addressable. Callers hold s.mu.
func (s *Session) remember(id string) {
	s.finished = append(s.finished, id)
	for len(s.finished) > keepFinished {
		old := s.finished[0]
		s.finished = s.finished[1:]
		if s.current == nil || s.current.id != old {
			delete(s.runs, old)
		}
	}
}

// Wait blocks until the run finishes and returns its result. Superseded runs
// return ErrStaleRun.
func (s *Session) Wait(ctx context.Context, runID string) (*optimization.Run, error) {
	s.mu.Lock()
	p, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	select {
	case <-p.done:
		return p.run, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status reports the workflow state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropStaleResult()
	st := Status{
		State:           s.state,
		Generation:      s.generation,
		HoldingsVersion: s.holdings.Version(),
	}
	if s.current != nil {
		st.RunID = s.current.id
	}
	if s.latest != nil {
		st.ResultID = s.latest.ID
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Latest returns the authoritative result, or nil.
func (s *Session) Latest() *optimization.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropStaleResult()
	return s.latest
}

// Positions returns a copy of the session holdings.
func (s *Session) Positions() []holdings.Position {
	return s.holdings.Positions()
}

// Holdings exposes read access to the owned holdings set.
func (s *Session) Holdings() *holdings.Holdings {
	return s.holdings
}

// dropStaleResult clears a result whose holdings moved on. Callers hold s.mu.
func (s *Session) dropStaleResult() {
	if s.latest != nil && s.holdings.Version() != s.latestVersion {
		s.latest = nil
		if s.state == StateResultReady {
			s.state = StateIdle
		}
	}
}

// Apply writes the latest result allocation into the holdings atomically and
// returns to idle. An empty runID applies whatever result is current.
func (s *Session) Apply(runID string) (*optimization.Run, error) {
	s.mu.Lock()

	s.dropStaleResult()
	if s.latest == nil {
		stale := runID != "" && s.isStale(runID)
		s.mu.Unlock()
		if stale {
			return nil, fmt.Errorf("%w: %s", ErrStaleRun, runID)
		}
		return nil, ErrNoResult
	}
	if runID != "" && runID != s.latest.ID {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is not the latest result", ErrStaleRun, runID)
	}

	applied := s.latest
	if err := s.holdings.ApplyAllocation(applied.Result.Allocation); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.latest = nil
	s.state = StateIdle
	s.recorder.ResultApplied()
	summary := rebalancing.Summary(applied.Actions)
	s.mu.Unlock()

	s.log.Info().
		Str("run_id", applied.ID).
		Float64("turnover", summary.Turnover).
		Msg("Applied optimization result")
	s.events.EmitTyped(eventModule, &events.HoldingsAppliedData{
		RunID:     applied.ID,
		Positions: len(applied.Weights),
		Turnover:  summary.Turnover,
	})

	return applied, nil
}

// isStale reports whether runID was issued but is no longer authoritative.
// Callers hold s.mu.
func (s *Session) isStale(runID string) bool {
	p, ok := s.runs[runID]
	if !ok {
		return false
	}
	if p.generation != s.generation {
		return true
	}
	return isDone(p) && errors.Is(p.err, ErrStaleRun)
}

// SetWeight edits one holding and invalidates any result.
func (s *Session) SetWeight(symbol string, weight float64) error {
	s.mu.Lock()
	if err := s.holdings.SetWeight(symbol, weight); err != nil {
		s.mu.Unlock()
		return err
	}
	version := s.invalidate()
	s.mu.Unlock()

	s.events.EmitTyped(eventModule, &events.HoldingsChangedData{
		Source:  "set_weight",
		Symbols: []string{symbol},
		Version: version,
	})
	return nil
}

// Replace swaps the whole holdings set and invalidates any result.
func (s *Session) Replace(positions []holdings.Position) error {
	s.mu.Lock()
	if err := s.holdings.Replace(positions); err != nil {
		s.mu.Unlock()
		return err
	}
	version := s.invalidate()
	s.mu.Unlock()

	s.events.EmitTyped(eventModule, &events.HoldingsChangedData{
		Source:  "replace",
		Symbols: holdings.Symbols(positions),
		Version: version,
	})
	return nil
}

// invalidate drops the current result after a holdings mutation. A run in
// flight finishes as stale. Callers hold s.mu.
func (s *Session) invalidate() uint64 {
	s.latest = nil
	if s.state == StateResultReady {
		s.state = StateIdle
	}
	s.lastErr = nil
	return s.holdings.Version()
}

// Close cancels runs in flight and waits for them to finish.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()
}

func isDone(p *pending) bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
