package holdings

import (
	"fmt"
	"math"
	"sync"
)

// Holdings is a caller-owned set of positions. It is safe for concurrent use;
// readers always receive copies.
type Holdings struct {
	mu        sync.RWMutex
	positions []Position
	index     map[string]int
	version   uint64
}

// New validates positions and returns a Holdings set holding a copy of them.
func New(positions []Position) (*Holdings, error) {
	if err := Validate(positions); err != nil {
		return nil, err
	}
	h := &Holdings{}
	h.store(positions)
	return h, nil
}

func (h *Holdings) store(positions []Position) {
	h.positions = append([]Position(nil), positions...)
	h.index = make(map[string]int, len(positions))
	for i, p := range h.positions {
		h.index[p.Symbol] = i
	}
	h.version++
}

// Positions returns a copy of the positions in their original order.
func (h *Holdings) Positions() []Position {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Position(nil), h.positions...)
}

// Snapshot returns the positions together with the version they belong to.
func (h *Holdings) Snapshot() ([]Position, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Position(nil), h.positions...), h.version
}

// Len returns the number of positions.
func (h *Holdings) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.positions)
}

// Version increments on every successful mutation.
func (h *Holdings) Version() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version
}

// TotalWeight sums all weights.
func (h *Holdings) TotalWeight() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return TotalWeight(h.positions)
}

// Balanced reports whether the weights sum to 100 within WeightTolerance.
func (h *Holdings) Balanced() bool {
	return math.Abs(h.TotalWeight()-100) <= WeightTolerance
}

// Sectors returns the distinct sectors in first-seen order.
func (h *Holdings) Sectors() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var sectors []string
	seen := make(map[string]bool)
	for _, p := range h.positions {
		if !seen[p.Sector] {
			seen[p.Sector] = true
			sectors = append(sectors, p.Sector)
		}
	}
	return sectors
}

// SetWeight edits a single weight. The edit is rejected, leaving the set
// untouched, when the new weight is invalid or pushes the total above 100.
func (h *Holdings) SetWeight(symbol string, weight float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	i, ok := h.index[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	next := append([]Position(nil), h.positions...)
	next[i].Weight = weight
	if err := Validate(next); err != nil {
		return err
	}
	h.store(next)
	return nil
}

// Replace swaps the whole set after validating it.
func (h *Holdings) Replace(positions []Position) error {
	if err := Validate(positions); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.store(positions)
	return nil
}

// ApplyAllocation replaces every weight with the allocation entry for its
// symbol; symbols absent from the allocation drop to 0. The replacement is
// atomic: either all weights change or none do.
func (h *Holdings) ApplyAllocation(allocation map[string]float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := append([]Position(nil), h.positions...)
	for i := range next {
		next[i].Weight = allocation[next[i].Symbol]
	}
	if err := Validate(next); err != nil {
		return fmt.Errorf("apply allocation: %w", err)
	}
	h.store(next)
	return nil
}
