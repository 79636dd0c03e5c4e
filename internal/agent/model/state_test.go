package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emori-agent/server/internal/agent/risk"
)

func strPtr(s string) *string { return &s }

func TestApplyReplacesPresentFields(t *testing.T) {
	s := &ConversationState{
		UserQuery:       "hello",
		ContextPassages: []Passage{{ID: "a", Text: "old"}},
		CategoryLabel:   "conversation",
	}

	s.Apply(Patch{
		ContextPassages: []Passage{{ID: "b", Text: "new"}},
		CategoryLabel:   strPtr("research"),
	})

	assert.Equal(t, "hello", s.UserQuery, "absent field must stay untouched")
	assert.Equal(t, []Passage{{ID: "b", Text: "new"}}, s.ContextPassages, "sequential apply replaces, never appends")
	assert.Equal(t, "research", s.CategoryLabel)
}

func TestApplyOverwritePointerFields(t *testing.T) {
	s := &ConversationState{
		GradedPassages: []GradedPassage{{ID: "x", Grade: 90}},
		Answer:         "draft",
	}

	empty := []GradedPassage{}
	s.Apply(Patch{GradedPassages: &empty, Answer: strPtr("final")})

	assert.Empty(t, s.GradedPassages, "explicit empty overwrite must clear the field")
	assert.Equal(t, "final", s.Answer)
}

func TestJoinConcatenatesRetrievalFields(t *testing.T) {
	s := &ConversationState{UserQuery: "q", UserID: "u1"}

	contextPatch := Patch{
		ContextPassages: []Passage{{ID: "c1"}, {ID: "c2"}},
		CategoryLabel:   strPtr("report"),
	}
	riskPatch := Patch{
		RiskPassages: []RiskPassage{{ID: "r1", Status: "Depression"}},
	}

	s.Join(contextPatch, riskPatch)

	require.Len(t, s.ContextPassages, 2)
	assert.Equal(t, "c1", s.ContextPassages[0].ID)
	assert.Equal(t, "c2", s.ContextPassages[1].ID)
	require.Len(t, s.RiskPassages, 1)
	assert.Equal(t, "report", s.CategoryLabel)
	assert.Equal(t, "q", s.UserQuery, "join leaves unpatched identity fields alone")
}

func TestJoinOneBranchEmpty(t *testing.T) {
	s := &ConversationState{}

	a := Patch{ContextPassages: []Passage{{ID: "c1"}, {ID: "c2"}}}
	b := Patch{} // branch produced nothing

	s.Join(a, b)

	assert.Len(t, s.ContextPassages, 2)
	assert.Nil(t, s.RiskPassages)
}

func TestJoinFirstNonNullScoringState(t *testing.T) {
	s := &ConversationState{}

	early := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	aggA := 12.5
	aggB := 99.0

	a := Patch{
		RiskScores:     map[risk.Label]float64{risk.LabelStress: 40},
		LastUpdateTime: &early,
		AggregateRisk:  &aggA,
	}
	b := Patch{
		RiskScores:     map[risk.Label]float64{risk.LabelStress: 1},
		LastUpdateTime: &late,
		AggregateRisk:  &aggB,
	}

	s.Join(a, b)

	assert.Equal(t, 40.0, s.RiskScores[risk.LabelStress], "earliest patch wins for scoring maps")
	assert.Equal(t, early, *s.LastUpdateTime)
	assert.Equal(t, 12.5, *s.AggregateRisk)
}

func TestJoinFirstNonEmptyIdentity(t *testing.T) {
	s := &ConversationState{UserQuery: "stale"}

	s.Join(Patch{}, Patch{UserQuery: "fresh", UserID: "u9"})

	assert.Equal(t, "fresh", s.UserQuery, "a carrying patch supersedes the pre-fan-out value")
	assert.Equal(t, "u9", s.UserID)
}

func TestJoinOverwriteLastPatchWins(t *testing.T) {
	s := &ConversationState{}

	a := Patch{Answer: strPtr("first"), WarningText: strPtr("warn-a")}
	b := Patch{Answer: strPtr("second")}

	s.Join(a, b)

	assert.Equal(t, "second", s.Answer)
	assert.Equal(t, "warn-a", s.WarningText, "a field absent from later patches keeps the earlier write")
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	agg := 5.0
	s := &ConversationState{
		PastConversation: []Turn{{UserQuery: "hi", Answer: "hello"}},
		RiskScores:       map[risk.Label]float64{risk.LabelNormal: 50},
		Sentiment:        &risk.Sentiment{Pos: 0.9},
		LastUpdateTime:   &now,
		AggregateRisk:    &agg,
	}

	c := s.Clone()
	c.PastConversation[0].Answer = "mutated"
	c.RiskScores[risk.LabelNormal] = 0
	c.Sentiment.Pos = 0
	*c.AggregateRisk = 77

	assert.Equal(t, "hello", s.PastConversation[0].Answer)
	assert.Equal(t, 50.0, s.RiskScores[risk.LabelNormal])
	assert.Equal(t, 0.9, s.Sentiment.Pos)
	assert.Equal(t, 5.0, *s.AggregateRisk)
}
