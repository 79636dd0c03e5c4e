package risk

// ContextType values recognised by the context dampening step.
const (
	ContextPersonal = "personal"
	ContextGeneral  = "general"
	ContextQuestion = "question"
	ContextAcademic = "academic"
)

// Profile names selectable at deployment time via SCORING_PROFILE.
const (
	ProfileConservative = "conservative"
	ProfileAggressive   = "aggressive"
)

// Config holds every tunable knob of the scoring algorithm. All weights and
// thresholds are plain values so a profile is just a populated struct.
type Config struct {
	// Time decay.
	DailyDecayRate    float64 // fraction of score shed per elapsed day
	QueryDecayRate    float64 // flat attenuation applied once per interaction
	SevenDayRetention float64 // fraction retained across a 7+ day gap

	// Passage-driven update.
	SimilarityWeight    float64
	SentimentWeight     float64
	SimilarityThreshold float64 // passages below this similarity are ignored

	// Evidence strength multipliers keyed by corroborating passage count.
	EvidenceBoostSingle float64 // exactly 1 passage
	EvidenceBoostFew    float64 // 2-3 passages
	EvidenceBoostMany   float64 // 4 or more

	// Escalation policy: scale factors and dampening floors per severity.
	CriticalScale     float64 // Suicidal evidence under strongly negative sentiment
	CriticalDampFloor float64
	ElevatedScale     float64 // Depression/Anxiety/Stress under negative sentiment
	ElevatedDampFloor float64
	StandardScale     float64

	// Sentiment-only update (no passages this turn).
	SentimentImpact    float64
	SentimentThreshold float64

	// Context dampening.
	ContextDampening map[string]float64
	MinDampening     float64 // signal never fully vanishes

	// Baseline rebalancing watermarks for the Normal label.
	BalanceLowWater  float64
	BalanceBoostRate float64
	BalanceHighWater float64
	BalanceCutRate   float64

	// Adaptive decay-rate update.
	SlowDecayAbove  float64
	SlowDecayFactor float64
	FastDecayBelow  float64
	FastDecayFactor float64
}

// ConservativeConfig is the default tuning: gentle per-query decay and
// stricter similarity gating.
func ConservativeConfig() Config {
	return Config{
		DailyDecayRate:    0.02,
		QueryDecayRate:    0.15,
		SevenDayRetention: 0.7,

		SimilarityWeight:    1.0,
		SentimentWeight:     1.2,
		SimilarityThreshold: 0.2,

		EvidenceBoostSingle: 0.7,
		EvidenceBoostFew:    1.0,
		EvidenceBoostMany:   1.2,

		CriticalScale:     30,
		CriticalDampFloor: 0.8,
		ElevatedScale:     20,
		ElevatedDampFloor: 0.6,
		StandardScale:     18,

		SentimentImpact:    3.0,
		SentimentThreshold: 0.4,

		ContextDampening: map[string]float64{
			ContextPersonal: 1.0,
			ContextGeneral:  0.6,
			ContextQuestion: 0.7,
			ContextAcademic: 0.3,
		},
		MinDampening: 0.4,

		BalanceLowWater:  50,
		BalanceBoostRate: 0.15,
		BalanceHighWater: 200,
		BalanceCutRate:   0.08,

		SlowDecayAbove:  80,
		SlowDecayFactor: 0.8,
		FastDecayBelow:  20,
		FastDecayFactor: 1.2,
	}
}

// AggressiveConfig lowers the similarity gate and per-query decay so weaker
// evidence registers faster. Useful for short evaluation sessions.
func AggressiveConfig() Config {
	cfg := ConservativeConfig()
	cfg.QueryDecayRate = 0.1
	cfg.SimilarityThreshold = 0.1
	cfg.ContextDampening = map[string]float64{
		ContextPersonal: 1.0,
		ContextGeneral:  0.7,
		ContextQuestion: 0.8,
		ContextAcademic: 0.4,
	}
	return cfg
}

// ProfileConfig resolves a named profile, falling back to conservative for
// unknown names.
func ProfileConfig(name string) Config {
	if name == ProfileAggressive {
		return AggressiveConfig()
	}
	return ConservativeConfig()
}
