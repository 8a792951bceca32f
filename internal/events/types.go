// Package events provides in-process event publishing for the analytics engine.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	OptimizationCompleted EventType = "optimization_completed"
	OptimizationDiscarded EventType = "optimization_discarded"
	HoldingsApplied       EventType = "holdings_applied"
	HoldingsChanged       EventType = "holdings_changed"
	ErrorOccurred         EventType = "error_occurred"
)

// AllTypes lists every event type the engine emits.
func AllTypes() []EventType {
	return []EventType{
		OptimizationCompleted,
		OptimizationDiscarded,
		HoldingsApplied,
		HoldingsChanged,
		ErrorOccurred,
	}
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
