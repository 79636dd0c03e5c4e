package model

import (
	"time"

	"github.com/emori-agent/server/internal/agent/risk"
)

// Turn is one user/assistant exchange in the conversation history.
type Turn struct {
	UserQuery string    `json:"user_query"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Passage is a retrieved unit of text from the context collection.
type Passage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// GradedPassage is a context passage with its relevance grade.
type GradedPassage struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Grade int    `json:"grade"`
}

// RiskPassage is a passage from the risk collection carrying a status label
// and similarity score.
type RiskPassage struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
	Status     string  `json:"status"`
	Text       string  `json:"text"`
}

// Verdict is the evaluator's decision on a generated answer.
type Verdict string

const (
	VerdictPass  Verdict = "pass"
	VerdictRetry Verdict = "retry"
)

// ConversationState is the single record threaded through one workflow turn.
// It is created empty at request start, advanced by applying step patches,
// and discarded after persistence. Steps receive it read-only and express
// changes as a Patch; only the executor mutates it.
//
// Concurrency model: each parallel branch runs over its own Clone and the
// executor combines branch patches at a declared join point (see Join), so
// no two goroutines ever share a mutable state.
type ConversationState struct {
	UserQuery        string
	UserID           string
	PastConversation []Turn

	// Context branch.
	ContextPassages []Passage
	GradedPassages  []GradedPassage
	CategoryLabel   string

	// Risk-signal branch.
	RiskPassages         []RiskPassage
	Sentiment            *risk.Sentiment
	FilteredRiskPassages []RiskPassage

	// Scoring state, loaded at turn start and updated by the risk branch.
	RiskScores     map[risk.Label]float64
	RiskDecayRates map[risk.Label]float64
	LastUpdateTime *time.Time
	AggregateRisk  *float64

	WarningText  string
	Answer       string
	EvalVerdict  Verdict
	EvalFeedback string
}

// Patch is a partial state update produced by one pipeline step or one
// branch. Absent fields (nil pointers, nil slices/maps, empty strings for
// the first-non-empty fields) leave the state untouched.
type Patch struct {
	UserQuery        string
	UserID           string
	PastConversation []Turn

	ContextPassages []Passage
	GradedPassages  *[]GradedPassage
	CategoryLabel   *string

	RiskPassages         []RiskPassage
	Sentiment            *risk.Sentiment
	FilteredRiskPassages *[]RiskPassage

	RiskScores     map[risk.Label]float64
	RiskDecayRates map[risk.Label]float64
	LastUpdateTime *time.Time
	AggregateRisk  *float64

	WarningText  *string
	Answer       *string
	EvalVerdict  *Verdict
	EvalFeedback *string
}

// Apply folds a sequential step patch into the state: every present field
// replaces the current value. Sequential steps within one pipeline see each
// other's writes; cross-branch combination goes through Join instead.
func (s *ConversationState) Apply(p Patch) {
	if p.UserQuery != "" {
		s.UserQuery = p.UserQuery
	}
	if p.UserID != "" {
		s.UserID = p.UserID
	}
	if p.PastConversation != nil {
		s.PastConversation = p.PastConversation
	}
	if p.ContextPassages != nil {
		s.ContextPassages = p.ContextPassages
	}
	if p.GradedPassages != nil {
		s.GradedPassages = *p.GradedPassages
	}
	if p.CategoryLabel != nil {
		s.CategoryLabel = *p.CategoryLabel
	}
	if p.RiskPassages != nil {
		s.RiskPassages = p.RiskPassages
	}
	if p.Sentiment != nil {
		s.Sentiment = p.Sentiment
	}
	if p.FilteredRiskPassages != nil {
		s.FilteredRiskPassages = *p.FilteredRiskPassages
	}
	if p.RiskScores != nil {
		s.RiskScores = p.RiskScores
	}
	if p.RiskDecayRates != nil {
		s.RiskDecayRates = p.RiskDecayRates
	}
	if p.LastUpdateTime != nil {
		s.LastUpdateTime = p.LastUpdateTime
	}
	if p.AggregateRisk != nil {
		s.AggregateRisk = p.AggregateRisk
	}
	if p.WarningText != nil {
		s.WarningText = *p.WarningText
	}
	if p.Answer != nil {
		s.Answer = *p.Answer
	}
	if p.EvalVerdict != nil {
		s.EvalVerdict = *p.EvalVerdict
	}
	if p.EvalFeedback != nil {
		s.EvalFeedback = *p.EvalFeedback
	}
}

// Join combines branch patches at a fan-in point using per-field merge
// rules:
//
//	user_query, user_id, past_conversation    first-non-empty wins
//	context_passages, risk_passages           concatenation (patch order)
//	graded_passages, category_label           overwrite (last patch wins)
//	sentiment, filtered_risk_passages         overwrite
//	warning_text, answer, eval_*              overwrite
//	risk_scores, risk_decay_rates             first-non-null wins
//	last_update_time, aggregate_risk          first-non-null wins
//
// A branch patch always supersedes the pre-fan-out value for the fields it
// carries, since the branch derived them from the same snapshot.
func (s *ConversationState) Join(patches ...Patch) {
	var (
		query, userID   string
		past            []Turn
		contextPassages []Passage
		riskPassages    []RiskPassage
		scores          map[risk.Label]float64
		decay           map[risk.Label]float64
		lastUpdate      *time.Time
		aggregate       *float64
		sawContext      bool
		sawRiskPassages bool
	)

	for _, p := range patches {
		if query == "" {
			query = p.UserQuery
		}
		if userID == "" {
			userID = p.UserID
		}
		if past == nil {
			past = p.PastConversation
		}
		if p.ContextPassages != nil {
			contextPassages = append(contextPassages, p.ContextPassages...)
			sawContext = true
		}
		if p.RiskPassages != nil {
			riskPassages = append(riskPassages, p.RiskPassages...)
			sawRiskPassages = true
		}
		if scores == nil {
			scores = p.RiskScores
		}
		if decay == nil {
			decay = p.RiskDecayRates
		}
		if lastUpdate == nil {
			lastUpdate = p.LastUpdateTime
		}
		if aggregate == nil {
			aggregate = p.AggregateRisk
		}

		// Overwrite-rule fields: the later patch wins.
		if p.GradedPassages != nil {
			s.GradedPassages = *p.GradedPassages
		}
		if p.CategoryLabel != nil {
			s.CategoryLabel = *p.CategoryLabel
		}
		if p.Sentiment != nil {
			s.Sentiment = p.Sentiment
		}
		if p.FilteredRiskPassages != nil {
			s.FilteredRiskPassages = *p.FilteredRiskPassages
		}
		if p.WarningText != nil {
			s.WarningText = *p.WarningText
		}
		if p.Answer != nil {
			s.Answer = *p.Answer
		}
		if p.EvalVerdict != nil {
			s.EvalVerdict = *p.EvalVerdict
		}
		if p.EvalFeedback != nil {
			s.EvalFeedback = *p.EvalFeedback
		}
	}

	if query != "" {
		s.UserQuery = query
	}
	if userID != "" {
		s.UserID = userID
	}
	if past != nil {
		s.PastConversation = past
	}
	if sawContext {
		s.ContextPassages = contextPassages
	}
	if sawRiskPassages {
		s.RiskPassages = riskPassages
	}
	if scores != nil {
		s.RiskScores = scores
	}
	if decay != nil {
		s.RiskDecayRates = decay
	}
	if lastUpdate != nil {
		s.LastUpdateTime = lastUpdate
	}
	if aggregate != nil {
		s.AggregateRisk = aggregate
	}
}

// Clone returns a deep copy for handing to a concurrent branch.
func (s *ConversationState) Clone() *ConversationState {
	out := *s

	out.PastConversation = append([]Turn(nil), s.PastConversation...)
	out.ContextPassages = append([]Passage(nil), s.ContextPassages...)
	out.GradedPassages = append([]GradedPassage(nil), s.GradedPassages...)
	out.RiskPassages = append([]RiskPassage(nil), s.RiskPassages...)
	out.FilteredRiskPassages = append([]RiskPassage(nil), s.FilteredRiskPassages...)

	if s.Sentiment != nil {
		sent := *s.Sentiment
		out.Sentiment = &sent
	}
	if s.RiskScores != nil {
		out.RiskScores = make(map[risk.Label]float64, len(s.RiskScores))
		for k, v := range s.RiskScores {
			out.RiskScores[k] = v
		}
	}
	if s.RiskDecayRates != nil {
		out.RiskDecayRates = make(map[risk.Label]float64, len(s.RiskDecayRates))
		for k, v := range s.RiskDecayRates {
			out.RiskDecayRates[k] = v
		}
	}
	if s.LastUpdateTime != nil {
		t := *s.LastUpdateTime
		out.LastUpdateTime = &t
	}
	if s.AggregateRisk != nil {
		a := *s.AggregateRisk
		out.AggregateRisk = &a
	}
	return &out
}
