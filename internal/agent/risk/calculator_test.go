package risk

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func negativeSentiment() *Sentiment {
	return &Sentiment{Pos: 0.05, Neg: 0.8, Neu: 0.15, ContextType: ContextPersonal, PersonalRelevance: 1.0}
}

func neutralSentiment() *Sentiment {
	return &Sentiment{Pos: 0.33, Neg: 0.33, Neu: 0.34, ContextType: ContextPersonal, PersonalRelevance: 1.0}
}

func TestCalculateDefaultsForNewUser(t *testing.T) {
	c := NewCalculator(ConservativeConfig())

	out := c.Calculate(Inputs{Sentiment: neutralSentiment()})

	require.Len(t, out.Scores, len(Labels))
	require.Len(t, out.DecayRates, len(Labels))
	assert.False(t, out.UpdatedAt.IsZero())
	// Neutral sentiment and no evidence leaves everything near baseline.
	for _, l := range NegativeLabels {
		assert.LessOrEqual(t, out.Scores[l], 1.0, "label %s", l)
	}
}

func TestCalculateDoesNotMutateInputs(t *testing.T) {
	c := NewCalculator(ConservativeConfig())

	scores := map[Label]float64{LabelDepression: 40}
	decay := map[Label]float64{LabelDepression: 1.5}

	c.Calculate(Inputs{
		Scores:     scores,
		DecayRates: decay,
		Passages:   []Evidence{{Label: LabelDepression, Similarity: 0.9}},
		Sentiment:  negativeSentiment(),
	})

	assert.Equal(t, 40.0, scores[LabelDepression])
	assert.Equal(t, 1.5, decay[LabelDepression])
}

func TestSingleSuicidalPassageRisesSharply(t *testing.T) {
	c := NewCalculator(ConservativeConfig())

	out := c.Calculate(Inputs{
		Passages:  []Evidence{{Label: LabelSuicidal, Similarity: 0.9}},
		Sentiment: negativeSentiment(),
	})

	assert.Greater(t, out.Scores[LabelSuicidal], 10.0)
	for _, l := range []Label{LabelDepression, LabelAnxiety, LabelStress, LabelBiPolar, LabelPersonalityDisorder} {
		assert.Less(t, out.Scores[l], out.Scores[LabelSuicidal], "suicidal signal must dominate %s", l)
	}
}

func TestRepeatedSuicidalEvidenceReachesCriticalRange(t *testing.T) {
	c := NewCalculator(ConservativeConfig())

	out := c.Calculate(Inputs{
		Passages: []Evidence{
			{Label: LabelSuicidal, Similarity: 0.9},
			{Label: LabelSuicidal, Similarity: 0.88},
			{Label: LabelSuicidal, Similarity: 0.92},
			{Label: LabelSuicidal, Similarity: 0.85},
		},
		Sentiment: negativeSentiment(),
	})

	assert.Greater(t, out.Scores[LabelSuicidal], 70.0)
	warning := Warn(out.Scores, out.AggregateRisk)
	assert.Contains(t, warning, "Critical concern detected")
	assert.Contains(t, warning, "Suicidal")
}

func TestSimilarityBelowThresholdIgnored(t *testing.T) {
	c := NewCalculator(ConservativeConfig())

	out := c.Calculate(Inputs{
		Passages:  []Evidence{{Label: LabelDepression, Similarity: 0.1}},
		Sentiment: neutralSentiment(),
	})

	assert.Zero(t, out.Scores[LabelDepression])
}

func TestAggressiveProfileAdmitsWeakerEvidence(t *testing.T) {
	c := NewCalculator(AggressiveConfig())

	out := c.Calculate(Inputs{
		Passages:  []Evidence{{Label: LabelDepression, Similarity: 0.15}},
		Sentiment: negativeSentiment(),
	})

	assert.Greater(t, out.Scores[LabelDepression], 0.0)
}

func TestTimeDecayWholeDays(t *testing.T) {
	c := NewCalculator(ConservativeConfig())
	scores := map[Label]float64{LabelDepression: 50}
	last := time.Now().Add(-73 * time.Hour) // 3 whole days

	c.applyTimeDecay(scores, &last, time.Now())

	assert.InDelta(t, 47.0, scores[LabelDepression], 0.01)
}

func TestTimeDecaySevenDayGapLosesRetention(t *testing.T) {
	c := NewCalculator(ConservativeConfig())
	scores := map[Label]float64{LabelDepression: 50}
	last := time.Now().Add(-8 * 24 * time.Hour)

	c.applyTimeDecay(scores, &last, time.Now())

	// 8 days of daily decay plus the long-gap retention loss.
	expected := 50.0 - 50*0.02*8 - 50*(1-0.7)
	assert.InDelta(t, expected, scores[LabelDepression], 0.01)
}

func TestTimeDecaySubDayGapNoop(t *testing.T) {
	c := NewCalculator(ConservativeConfig())
	scores := map[Label]float64{LabelDepression: 50}
	last := time.Now().Add(-6 * time.Hour)

	c.applyTimeDecay(scores, &last, time.Now())

	assert.Equal(t, 50.0, scores[LabelDepression])
}

func TestSentimentOnlyPositiveLiftsNormal(t *testing.T) {
	c := NewCalculator(ConservativeConfig())

	out := c.Calculate(Inputs{
		Scores: map[Label]float64{LabelDepression: 30, LabelNormal: 20},
		Sentiment: &Sentiment{
			Pos: 0.8, Neg: 0.05, Neu: 0.15,
			ContextType: ContextPersonal, PersonalRelevance: 1.0,
		},
	})

	assert.Greater(t, out.Scores[LabelNormal], 20.0)
	assert.Less(t, out.Scores[LabelDepression], 30.0)
}

func TestSentimentOnlyNegativeAmplifiesSuicidal(t *testing.T) {
	c := NewCalculator(ConservativeConfig())

	out := c.Calculate(Inputs{Sentiment: negativeSentiment()})

	// neg > 0.7 boosts Suicidal harder than the other negative labels.
	assert.Greater(t, out.Scores[LabelSuicidal], out.Scores[LabelDepression])
}

func TestSentimentRenormalization(t *testing.T) {
	repaired := repairSentiment(&Sentiment{Pos: 0.5, Neg: 0.5, Neu: 0.3, ContextType: ContextPersonal, PersonalRelevance: 1.0})

	sum := repaired.Pos + repaired.Neg + repaired.Neu
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.5/1.3, repaired.Pos, 1e-9)
}

func TestSentimentRepairDefaults(t *testing.T) {
	repaired := repairSentiment(nil)
	assert.InDelta(t, 1.0, repaired.Pos+repaired.Neg+repaired.Neu, 1e-9)
	assert.Equal(t, ContextPersonal, repaired.ContextType)
	assert.Equal(t, 1.0, repaired.PersonalRelevance)

	zeroed := repairSentiment(&Sentiment{})
	assert.Equal(t, repaired, zeroed)
}

func TestAdaptiveDecayDirections(t *testing.T) {
	c := NewCalculator(ConservativeConfig())
	decay := map[Label]float64{LabelSuicidal: 3.0, LabelStress: 2.8}
	scores := map[Label]float64{LabelSuicidal: 90, LabelStress: 5}

	c.updateDecayRates(decay, scores)

	assert.InDelta(t, 3.0*0.8, decay[LabelSuicidal], 1e-9, "high scores decay slower")
	assert.InDelta(t, 2.8*1.2, decay[LabelStress], 1e-9, "low scores decay faster")
}

func TestContextDampeningFloor(t *testing.T) {
	c := NewCalculator(ConservativeConfig())

	damp := c.contextDampening(Sentiment{ContextType: ContextAcademic, PersonalRelevance: 0.1})
	assert.Equal(t, 0.4, damp, "dampening never drops below the floor")

	damp = c.contextDampening(Sentiment{ContextType: ContextPersonal, PersonalRelevance: 1.0})
	assert.Equal(t, 1.0, damp)
}

func TestAggregateIsMeanOfNegativeLabels(t *testing.T) {
	scores := ZeroScores()
	scores[LabelNormal] = 100 // must not contribute
	scores[LabelDepression] = 60
	scores[LabelSuicidal] = 30

	assert.InDelta(t, 15.0, aggregate(scores), 1e-9)
}

func TestScoresStayClampedOverRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := NewCalculator(ConservativeConfig())

	scores := map[Label]float64(nil)
	decay := map[Label]float64(nil)
	var last *time.Time

	now := time.Now()
	for i := 0; i < 200; i++ {
		var passages []Evidence
		for j := rng.Intn(6); j > 0; j-- {
			passages = append(passages, Evidence{
				Label:      Labels[rng.Intn(len(Labels))],
				Similarity: rng.Float64(),
			})
		}
		pos := rng.Float64()
		neg := rng.Float64() * (1 - pos)
		sent := &Sentiment{
			Pos: pos, Neg: neg, Neu: 1 - pos - neg,
			ContextType:       []string{ContextPersonal, ContextGeneral, ContextQuestion, ContextAcademic}[rng.Intn(4)],
			PersonalRelevance: rng.Float64(),
		}

		now = now.Add(time.Duration(rng.Intn(72)) * time.Hour)
		out := c.Calculate(Inputs{
			Scores:     scores,
			DecayRates: decay,
			LastUpdate: last,
			Passages:   passages,
			Sentiment:  sent,
			Now:        now,
		})

		require.Len(t, out.Scores, len(Labels))
		require.Len(t, out.DecayRates, len(Labels))
		for _, l := range Labels {
			v := out.Scores[l]
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "score for %s must be finite", l)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
		assert.GreaterOrEqual(t, out.AggregateRisk, 0.0)
		assert.LessOrEqual(t, out.AggregateRisk, 100.0)

		scores = out.Scores
		decay = out.DecayRates
		updated := out.UpdatedAt
		last = &updated
	}
}
