package risk

import (
	"fmt"
	"sort"
)

// Warning thresholds. A high Suicidal score always produces the critical
// warning regardless of the aggregate.
const (
	criticalSuicidalScore = 70.0
	warningAggregate      = 30.0
	warningLabelFloor     = 15.0
)

// Warn derives the user-facing warning text from updated scores. It returns
// an empty string when nothing is concerning.
func Warn(scores map[Label]float64, aggregateRisk float64) string {
	if len(scores) == 0 {
		return ""
	}

	if s := scores[LabelSuicidal]; s > criticalSuicidalScore {
		return fmt.Sprintf("Critical concern detected: Suicidal indicators (%.1f/100)", s)
	}

	if aggregateRisk < warningAggregate {
		return ""
	}

	type labelScore struct {
		label Label
		score float64
	}
	var elevated []labelScore
	for _, l := range NegativeLabels {
		if scores[l] > warningLabelFloor {
			elevated = append(elevated, labelScore{l, scores[l]})
		}
	}
	sort.Slice(elevated, func(i, j int) bool { return elevated[i].score > elevated[j].score })

	switch {
	case len(elevated) >= 2:
		return fmt.Sprintf("Elevated indicators: %s (%.1f/100), %s (%.1f/100)",
			elevated[0].label, elevated[0].score, elevated[1].label, elevated[1].score)
	case len(elevated) == 1:
		return fmt.Sprintf("Elevated indicators: %s (%.1f/100)", elevated[0].label, elevated[0].score)
	default:
		return "General concern detected"
	}
}
