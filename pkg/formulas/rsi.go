package formulas

import (
	"github.com/markcheno/go-talib"
)

// DefaultRSILength is the usual Wilder period.
const DefaultRSILength = 14

// CalculateRSI calculates the Relative Strength Index of the last close.
//
//	RSI = 100 - (100 / (1 + RS)), RS = average gain / average loss over length periods
//
// Returns nil if there are fewer than length+1 closes.
func CalculateRSI(closes []float64, length int) *float64 {
	if length < 2 || len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	if len(rsi) == 0 || !IsFinite(rsi[len(rsi)-1]) {
		return nil
	}

	result := rsi[len(rsi)-1]
	return &result
}
