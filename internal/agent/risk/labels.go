package risk

import "strings"

// Label is one of the seven fixed assessment categories. Normal is the
// baseline; the other six contribute to the aggregate risk score.
type Label string

const (
	LabelNormal              Label = "Normal"
	LabelDepression          Label = "Depression"
	LabelSuicidal            Label = "Suicidal"
	LabelAnxiety             Label = "Anxiety"
	LabelStress              Label = "Stress"
	LabelBiPolar             Label = "BiPolar"
	LabelPersonalityDisorder Label = "PersonalityDisorder"
)

// Labels lists all seven labels in canonical order.
var Labels = []Label{
	LabelNormal,
	LabelDepression,
	LabelSuicidal,
	LabelAnxiety,
	LabelStress,
	LabelBiPolar,
	LabelPersonalityDisorder,
}

// NegativeLabels are the six labels averaged into the aggregate risk score.
var NegativeLabels = []Label{
	LabelDepression,
	LabelSuicidal,
	LabelAnxiety,
	LabelStress,
	LabelBiPolar,
	LabelPersonalityDisorder,
}

// aliases maps legacy corpus spellings onto canonical labels. The sentiment
// collection still carries "Bi-Polar" and "Personality Disorder" status tags.
var aliases = map[string]Label{
	"bi-polar":             LabelBiPolar,
	"bipolar":              LabelBiPolar,
	"personality disorder": LabelPersonalityDisorder,
	"personalitydisorder":  LabelPersonalityDisorder,
}

// ParseLabel normalises a status string from the search service into a Label.
// Unknown statuses report ok=false and are skipped by the calculator.
func ParseLabel(s string) (Label, bool) {
	s = strings.TrimSpace(s)
	for _, l := range Labels {
		if strings.EqualFold(s, string(l)) {
			return l, true
		}
	}
	if l, ok := aliases[strings.ToLower(s)]; ok {
		return l, true
	}
	return "", false
}

// DefaultDecayRates returns the per-label baseline decay rates used for
// users with no stored decay state.
func DefaultDecayRates() map[Label]float64 {
	return map[Label]float64{
		LabelNormal:              2.0,
		LabelDepression:          1.5,
		LabelSuicidal:            3.0,
		LabelAnxiety:             2.2,
		LabelStress:              2.8,
		LabelBiPolar:             1.2,
		LabelPersonalityDisorder: 1.0,
	}
}

// ZeroScores returns a score map with every label present at zero.
func ZeroScores() map[Label]float64 {
	scores := make(map[Label]float64, len(Labels))
	for _, l := range Labels {
		scores[l] = 0
	}
	return scores
}
