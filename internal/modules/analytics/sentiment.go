package analytics

import (
	"errors"
	"fmt"

	"github.com/aristath/sentinel-analytics/pkg/formulas"
)

// ErrInvalidScore is returned for a sentiment score outside 0..100 or not finite.
var ErrInvalidScore = errors.New("invalid sentiment score")

// SentimentScore is a 0..100 score for one symbol, tagged with its sector.
type SentimentScore struct {
	Symbol string  `json:"symbol"`
	Sector string  `json:"sector"`
	Score  float64 `json:"score"`
}

func validateScores(scores []SentimentScore) error {
	for i, s := range scores {
		if !formulas.IsFinite(s.Score) || s.Score < 0 || s.Score > 100 {
			return fmt.Errorf("%w: score %d (%s) is %v, expected 0..100", ErrInvalidScore, i, s.Symbol, s.Score)
		}
	}
	return nil
}

// SectorSentiment averages scores per sector. Empty input gives an empty map.
func SectorSentiment(scores []SentimentScore) (map[string]float64, error) {
	if err := validateScores(scores); err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range scores {
		sums[s.Sector] += s.Score
		counts[s.Sector]++
	}

	out := make(map[string]float64, len(sums))
	for sector, sum := range sums {
		out[sector] = sum / float64(counts[sector])
	}
	return out, nil
}

// OverallSentiment is the mean score, 0 for no scores.
func OverallSentiment(scores []SentimentScore) (float64, error) {
	if err := validateScores(scores); err != nil {
		return 0, err
	}
	if len(scores) == 0 {
		return 0, nil
	}
	values := make([]float64, len(scores))
	for i, s := range scores {
		values[i] = s.Score
	}
	return formulas.Mean(values), nil
}

// Breadth is the share of scores on each side of the neutral 50 mark, in
// percent. Scores of exactly 50 count toward neither side.
type Breadth struct {
	Bullish float64 `json:"bullish"`
	Bearish float64 `json:"bearish"`
}

// SentimentBreadth reports the bullish (score > 50) and bearish (score < 50)
// shares. Empty input gives zero shares.
func SentimentBreadth(scores []SentimentScore) (Breadth, error) {
	if err := validateScores(scores); err != nil {
		return Breadth{}, err
	}
	if len(scores) == 0 {
		return Breadth{}, nil
	}

	var bullish, bearish int
	for _, s := range scores {
		switch {
		case s.Score > 50:
			bullish++
		case s.Score < 50:
			bearish++
		}
	}
	n := float64(len(scores))
	return Breadth{
		Bullish: float64(bullish) / n * 100,
		Bearish: float64(bearish) / n * 100,
	}, nil
}

// Mood is the fear/greed label for a sentiment index.
type Mood string

const (
	Greed       Mood = "greed"
	NeutralMood Mood = "neutral"
	Fear        Mood = "fear"
)

// MoodLabel labels an index: above 70 is greed, above 30 neutral, else fear.
func MoodLabel(index float64) Mood {
	switch {
	case index > 70:
		return Greed
	case index > 30:
		return NeutralMood
	default:
		return Fear
	}
}
