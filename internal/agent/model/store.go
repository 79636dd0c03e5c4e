package model

import (
	"context"
	"time"

	"github.com/emori-agent/server/internal/agent/risk"
)

// UserRecord is everything persisted per user: conversation history plus the
// risk-scoring state carried between turns.
type UserRecord struct {
	PastConversation []Turn
	RiskScores       map[risk.Label]float64
	RiskDecayRates   map[risk.Label]float64
	LastUpdateTime   *time.Time
	AggregateRisk    *float64
}

// UserFields is the scoring portion of a UserRecord, written back as a unit
// at the end of a turn.
type UserFields struct {
	RiskScores     map[risk.Label]float64
	RiskDecayRates map[risk.Label]float64
	LastUpdateTime *time.Time
	AggregateRisk  *float64
}

// UserStore persists per-user conversation and scoring state. LoadUser
// returns an empty record (never nil) for unknown users.
type UserStore interface {
	LoadUser(ctx context.Context, userID string) (*UserRecord, error)
	AppendConversation(ctx context.Context, userID string, turn Turn) error
	OverwriteFields(ctx context.Context, userID string, fields UserFields) error
}
