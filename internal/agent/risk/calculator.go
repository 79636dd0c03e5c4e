package risk

import (
	"math"
	"time"

	logx "github.com/emori-agent/server/pkg/logger"
)

// Sentiment is the per-turn sentiment analysis of the user query. Pos, Neg
// and Neu are expected to sum to roughly 1.0; the calculator repairs drift.
type Sentiment struct {
	Pos               float64 `json:"pos"`
	Neg               float64 `json:"neg"`
	Neu               float64 `json:"neu"`
	ContextType       string  `json:"context_type"`
	PersonalRelevance float64 `json:"personal_relevance"`
}

// Evidence is one labelled passage with its similarity to the user query.
type Evidence struct {
	Label      Label
	Similarity float64
}

// Inputs carries the full prior state plus the new evidence for one turn.
// A nil Sentiment or nil score maps are valid and substituted with defaults.
type Inputs struct {
	Scores     map[Label]float64
	DecayRates map[Label]float64
	LastUpdate *time.Time
	Passages   []Evidence
	Sentiment  *Sentiment
	Now        time.Time // zero value means time.Now()
}

// Outputs is the updated state after one turn.
type Outputs struct {
	Scores        map[Label]float64
	DecayRates    map[Label]float64
	UpdatedAt     time.Time
	AggregateRisk float64
}

// Calculator updates per-user label scores from retrieved evidence and
// sentiment, applying time decay, evidence weighting, context dampening and
// adaptive decay rates. Calculate is pure apart from logging: it never
// mutates its inputs and touches no external state.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Calculate runs the scoring pipeline in a fixed order: sentiment repair,
// time decay, passage-driven update, per-query decay, sentiment-only update
// (when no passages arrived), baseline rebalancing, clamping, adaptive decay
// adjustment and aggregation. New evidence is absorbed before the flat
// per-query decay so a single-turn signal is not immediately washed out.
func (c *Calculator) Calculate(in Inputs) Outputs {
	sent := repairSentiment(in.Sentiment)

	scores := copyScores(in.Scores)
	decay := copyDecayRates(in.DecayRates)

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	c.applyTimeDecay(scores, in.LastUpdate, now)

	if len(in.Passages) > 0 {
		evidence := c.evidenceStrength(len(in.Passages))
		damp := c.contextDampening(sent)
		c.applyPassageUpdate(scores, in.Passages, sent, evidence, damp)
	}

	c.applyQueryDecay(scores)

	if len(in.Passages) == 0 {
		c.applySentimentOnlyUpdate(scores, sent, c.contextDampening(sent))
	}

	c.balanceNormal(scores)
	clampScores(scores)
	c.updateDecayRates(decay, scores)

	return Outputs{
		Scores:        scores,
		DecayRates:    decay,
		UpdatedAt:     now,
		AggregateRisk: aggregate(scores),
	}
}

// repairSentiment substitutes a neutral default for missing sentiment,
// renormalises component drift beyond the 0.1 tolerance and clamps the
// personal relevance into [0, 1].
func repairSentiment(s *Sentiment) Sentiment {
	if s == nil || (s.Pos == 0 && s.Neg == 0 && s.Neu == 0) {
		return Sentiment{
			Pos: 0.33, Neg: 0.33, Neu: 0.34,
			ContextType:       ContextPersonal,
			PersonalRelevance: 1.0,
		}
	}

	out := *s
	total := out.Pos + out.Neg + out.Neu
	if math.Abs(total-1.0) > 0.1 && total > 0 {
		logx.Warn().
			Float64("sentiment_sum", total).
			Msg("sentiment components do not sum to 1.0, renormalizing")
		out.Pos /= total
		out.Neg /= total
		out.Neu /= total
	}
	if out.PersonalRelevance < 0 || out.PersonalRelevance > 1 {
		out.PersonalRelevance = 1.0
	}
	if out.ContextType == "" {
		out.ContextType = ContextPersonal
	}
	return out
}

func (c *Calculator) applyTimeDecay(scores map[Label]float64, lastUpdate *time.Time, now time.Time) {
	if lastUpdate == nil {
		return
	}
	days := int(now.Sub(*lastUpdate).Hours() / 24)
	if days <= 0 {
		return
	}
	for _, l := range Labels {
		loss := scores[l] * c.cfg.DailyDecayRate * float64(days)
		if days >= 7 {
			loss += scores[l] * (1 - c.cfg.SevenDayRetention)
		}
		scores[l] = math.Max(0, scores[l]-loss)
	}
}

func (c *Calculator) applyQueryDecay(scores map[Label]float64) {
	for _, l := range Labels {
		scores[l] *= 1 - c.cfg.QueryDecayRate
	}
}

func (c *Calculator) evidenceStrength(count int) float64 {
	switch {
	case count == 1:
		return c.cfg.EvidenceBoostSingle
	case count >= 2 && count <= 3:
		return c.cfg.EvidenceBoostFew
	case count >= 4:
		return c.cfg.EvidenceBoostMany
	}
	return 1.0
}

func (c *Calculator) contextDampening(sent Sentiment) float64 {
	base, ok := c.cfg.ContextDampening[sent.ContextType]
	if !ok {
		base = 1.0
	}
	return math.Max(c.cfg.MinDampening, base*sent.PersonalRelevance)
}

// applyPassageUpdate accumulates per-label impact from qualifying passages.
// Suicidal evidence under strongly negative sentiment gets the largest
// multiplier and a higher dampening floor so critical signal is never
// suppressed by context dampening.
func (c *Calculator) applyPassageUpdate(
	scores map[Label]float64,
	passages []Evidence,
	sent Sentiment,
	evidence float64,
	damp float64,
) {
	impacts := make(map[Label]float64, len(Labels))

	for _, p := range passages {
		if p.Similarity < c.cfg.SimilarityThreshold {
			continue
		}
		if p.Label == "" {
			continue
		}

		base := p.Similarity * c.cfg.SimilarityWeight * evidence

		var modifier float64
		if p.Label == LabelNormal {
			modifier = (sent.Pos + 0.5*sent.Neu) * c.cfg.SentimentWeight
		} else {
			modifier = sent.Neg * c.cfg.SentimentWeight
		}

		var impact float64
		switch {
		case p.Label == LabelSuicidal && sent.Neg > 0.7:
			impact = base * modifier * math.Max(c.cfg.CriticalDampFloor, damp) * c.cfg.CriticalScale
		case (p.Label == LabelDepression || p.Label == LabelAnxiety || p.Label == LabelStress) && sent.Neg > 0.6:
			impact = base * modifier * math.Max(c.cfg.ElevatedDampFloor, damp) * c.cfg.ElevatedScale
		default:
			impact = base * modifier * damp * c.cfg.StandardScale
		}
		impacts[p.Label] += impact
	}

	for l, impact := range impacts {
		scores[l] = math.Min(100, scores[l]+impact)
	}
}

// applySentimentOnlyUpdate nudges scores from sentiment alone when the turn
// produced no passages. Strongly negative sentiment amplifies the Suicidal
// boost.
func (c *Calculator) applySentimentOnlyUpdate(scores map[Label]float64, sent Sentiment, damp float64) {
	impact := c.cfg.SentimentImpact * damp
	th := c.cfg.SentimentThreshold

	negativeLeaning := []Label{LabelDepression, LabelAnxiety, LabelStress, LabelSuicidal}

	switch {
	case sent.Pos > th:
		scores[LabelNormal] = math.Min(100, scores[LabelNormal]+impact*sent.Pos)
		reduction := impact * 0.3 * sent.Pos
		for _, l := range negativeLeaning {
			scores[l] = math.Max(0, scores[l]-reduction)
		}
	case sent.Neg > th:
		boost := impact * 0.6 * sent.Neg
		for _, l := range []Label{LabelDepression, LabelAnxiety, LabelStress} {
			scores[l] = math.Min(100, scores[l]+boost)
		}
		if sent.Neg > 0.7 {
			scores[LabelSuicidal] = math.Min(100, scores[LabelSuicidal]+impact*0.8*sent.Neg)
		} else {
			scores[LabelSuicidal] = math.Min(100, scores[LabelSuicidal]+boost)
		}
		scores[LabelNormal] = math.Max(0, scores[LabelNormal]-impact*0.2*sent.Neg)
	}
}

// balanceNormal pulls the Normal score toward the inverse of the combined
// negative-label mass.
func (c *Calculator) balanceNormal(scores map[Label]float64) {
	var negTotal float64
	for _, l := range NegativeLabels {
		negTotal += scores[l]
	}

	if negTotal < c.cfg.BalanceLowWater {
		boost := (c.cfg.BalanceLowWater - negTotal) * c.cfg.BalanceBoostRate
		scores[LabelNormal] = math.Min(100, scores[LabelNormal]+boost)
	} else if negTotal > c.cfg.BalanceHighWater {
		cut := (negTotal - c.cfg.BalanceHighWater) * c.cfg.BalanceCutRate
		scores[LabelNormal] = math.Max(0, scores[LabelNormal]-cut)
	}
}

// updateDecayRates models persistent conditions (high scores decay slower)
// and quick recovery (low scores decay faster).
func (c *Calculator) updateDecayRates(decay map[Label]float64, scores map[Label]float64) {
	for _, l := range Labels {
		if scores[l] > c.cfg.SlowDecayAbove {
			decay[l] *= c.cfg.SlowDecayFactor
		} else if scores[l] < c.cfg.FastDecayBelow {
			decay[l] *= c.cfg.FastDecayFactor
		}
	}
}

func aggregate(scores map[Label]float64) float64 {
	var sum float64
	for _, l := range NegativeLabels {
		sum += scores[l]
	}
	agg := sum / float64(len(NegativeLabels))
	return math.Max(0, math.Min(100, agg))
}

func clampScores(scores map[Label]float64) {
	for _, l := range Labels {
		scores[l] = math.Max(0, math.Min(100, scores[l]))
	}
}

// copyScores normalises an incoming score map: every label present, unknown
// keys dropped, nil map replaced with zeros.
func copyScores(in map[Label]float64) map[Label]float64 {
	out := ZeroScores()
	for _, l := range Labels {
		if v, ok := in[l]; ok {
			out[l] = v
		}
	}
	return out
}

func copyDecayRates(in map[Label]float64) map[Label]float64 {
	if len(in) == 0 {
		return DefaultDecayRates()
	}
	out := DefaultDecayRates()
	for _, l := range Labels {
		if v, ok := in[l]; ok {
			out[l] = v
		}
	}
	return out
}
