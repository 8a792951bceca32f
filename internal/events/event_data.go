package events

import "encoding/json"

// EventData is the interface that all event data types must implement
type EventData interface {
	EventType() EventType
}

// OptimizationCompletedData contains data for OptimizationCompleted events
type OptimizationCompletedData struct {
	RunID          string  `json:"run_id"`
	Solver         string  `json:"solver"`
	Objective      string  `json:"objective"`
	RiskTolerance  int     `json:"risk_tolerance"`
	ExpectedReturn float64 `json:"expected_return"`
	ExpectedRisk   float64 `json:"expected_risk"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	Actions        int     `json:"actions"`
	DurationMs     int64   `json:"duration_ms"`
}

// EventType returns the event type for OptimizationCompletedData
func (d *OptimizationCompletedData) EventType() EventType {
	return OptimizationCompleted
}

// OptimizationDiscardedData contains data for OptimizationDiscarded events
type OptimizationDiscardedData struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason"`
}

// EventType returns the event type for OptimizationDiscardedData
func (d *OptimizationDiscardedData) EventType() EventType {
	return OptimizationDiscarded
}

// HoldingsAppliedData contains data for HoldingsApplied events
type HoldingsAppliedData struct {
	RunID     string  `json:"run_id"`
	Positions int     `json:"positions"`
	Turnover  float64 `json:"turnover"`
}

// EventType returns the event type for HoldingsAppliedData
func (d *HoldingsAppliedData) EventType() EventType {
	return HoldingsApplied
}

// HoldingsChangedData contains data for HoldingsChanged events
type HoldingsChangedData struct {
	Source  string   `json:"source"`
	Symbols []string `json:"symbols"`
	Version uint64   `json:"version"`
}

// EventType returns the event type for HoldingsChangedData
func (d *HoldingsChangedData) EventType() EventType {
	return HoldingsChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// GetTypedData converts the event payload back to its typed form, or nil.
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	var data EventData
	switch e.Type {
	case OptimizationCompleted:
		data = &OptimizationCompletedData{}
	case OptimizationDiscarded:
		data = &OptimizationDiscardedData{}
	case HoldingsApplied:
		data = &HoldingsAppliedData{}
	case HoldingsChanged:
		data = &HoldingsChangedData{}
	case ErrorOccurred:
		data = &ErrorEventData{}
	default:
		return nil
	}

	if err := convertMapToStruct(e.Data, data); err != nil {
		return nil
	}
	return data
}

func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}

func convertEventDataToMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}
