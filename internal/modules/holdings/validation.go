package holdings

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidPosition is matched by every ValidationError.
	ErrInvalidPosition = errors.New("invalid position")
	// ErrUnknownSymbol is returned when an edit names a symbol that is not held.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Issue describes one rejected field. Index is -1 for set-level issues such as
// the total weight.
type Issue struct {
	Index  int    `json:"index"`
	Symbol string `json:"symbol,omitempty"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	if i.Index < 0 {
		return fmt.Sprintf("%s: %s", i.Field, i.Reason)
	}
	if i.Symbol != "" {
		return fmt.Sprintf("position %d (%s) %s: %s", i.Index, i.Symbol, i.Field, i.Reason)
	}
	return fmt.Sprintf("position %d %s: %s", i.Index, i.Field, i.Reason)
}

// ValidationError rejects a whole batch of positions.
type ValidationError struct {
	Issues []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidPosition, strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrInvalidPosition) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidPosition
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validatePosition(index int, p Position) []Issue {
	var issues []Issue
	add := func(field, reason string) {
		issues = append(issues, Issue{Index: index, Symbol: p.Symbol, Field: field, Reason: reason})
	}

	if strings.TrimSpace(p.Symbol) == "" {
		add("symbol", "must not be empty")
	}

	switch {
	case !finite(p.Weight):
		add("weight", "must be a finite number")
	case p.Weight < 0:
		add("weight", fmt.Sprintf("%.4f is below 0", p.Weight))
	case p.Weight > 100:
		add("weight", fmt.Sprintf("%.4f is above 100", p.Weight))
	}

	if !finite(p.ExpectedReturn) {
		add("expected_return", "must be a finite number")
	}

	switch {
	case !finite(p.Risk):
		add("risk", "must be a finite number")
	case p.Risk < 0:
		add("risk", fmt.Sprintf("%.4f is below 0", p.Risk))
	}

	return issues
}

// Validate checks every position and the set as a whole. It never clamps: any
// issue rejects the entire batch and all issues are reported at once.
func Validate(positions []Position) error {
	var issues []Issue
	seen := make(map[string]int, len(positions))

	for i, p := range positions {
		issues = append(issues, validatePosition(i, p)...)

		if p.Symbol == "" {
			continue
		}
		if first, dup := seen[p.Symbol]; dup {
			issues = append(issues, Issue{
				Index:  i,
				Symbol: p.Symbol,
				Field:  "symbol",
				Reason: fmt.Sprintf("duplicates position %d", first),
			})
			continue
		}
		seen[p.Symbol] = i
	}

	if len(issues) == 0 {
		if total := TotalWeight(positions); total > 100+WeightTolerance {
			issues = append(issues, Issue{
				Index:  -1,
				Field:  "total_weight",
				Reason: fmt.Sprintf("%.4f exceeds 100", total),
			})
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
