package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/emori-agent/server/internal/agent/graph/nodes"
	"github.com/emori-agent/server/internal/agent/llm"
	"github.com/emori-agent/server/internal/agent/model"
	"github.com/emori-agent/server/internal/agent/risk"
	logx "github.com/emori-agent/server/pkg/logger"
)

// QueryInput is the public input of one workflow turn.
type QueryInput struct {
	UserID string
	Query  string
}

// Result is what the caller gets back: the supportive answer plus the risk
// assessment produced alongside it.
type Result struct {
	Answer        string
	WarningText   string
	AggregateRisk float64
}

// Runner executes one workflow turn.
type Runner interface {
	Invoke(ctx context.Context, in QueryInput) (*Result, error)
}

// Config holds everything needed to assemble the full workflow end-to-end.
type Config struct {
	APIKey          string
	BaseURL         string
	StructuredModel model.StructuredModelConfig
	ResponseModel   model.ResponseModelConfig
	Retrieval       model.RetrievalConfig
	Evaluator       model.EvaluatorConfig
	Conversation    model.ConversationConfig
	ScoringProfile  string

	UserStore       model.UserStore
	ContextSearcher model.Searcher
	RiskSearcher    model.Searcher
}

// Engine wires the steps into the two-branch workflow: the context branch
// (classify, retrieve, grade, filter) and the risk branch (retrieve, then
// sentiment alongside relevance filtering, then score and warn), joined
// before a bounded generate/evaluate loop and final persistence.
type Engine struct {
	loadMemory nodes.Step

	classify        nodes.Step
	retrieveContext nodes.Step
	grade           nodes.Step
	filter          nodes.Step

	retrieveRisk nodes.Step
	sentiment    nodes.Step
	riskFilter   nodes.Step
	score        nodes.Step
	warn         nodes.Step

	generate nodes.Step
	evaluate func(ctx context.Context, s *model.ConversationState, attempt int) model.Patch
	persist  nodes.Step

	maxRetries int
}

// BuildEngine constructs the chat models and assembles the workflow engine.
func BuildEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.UserStore == nil {
		return nil, fmt.Errorf("user store is nil")
	}
	if cfg.ContextSearcher == nil || cfg.RiskSearcher == nil {
		return nil, fmt.Errorf("searcher is nil")
	}

	models, err := llm.NewModels(ctx, llm.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Structured: cfg.StructuredModel,
		Response:   cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	return NewEngine(models, cfg), nil
}

// NewEngine assembles the workflow from an existing inference client. Split
// out from BuildEngine so tests can inject fakes.
func NewEngine(client llm.Client, cfg Config) *Engine {
	calc := risk.NewCalculator(risk.ProfileConfig(cfg.ScoringProfile))

	maxRetries := cfg.Evaluator.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Engine{
		loadMemory: nodes.NewLoadMemoryStep(cfg.UserStore),

		classify:        nodes.NewClassifyStep(client),
		retrieveContext: nodes.NewRetrieveContextStep(cfg.ContextSearcher, cfg.Retrieval),
		grade:           nodes.NewGradeStep(client, cfg.Retrieval),
		filter:          nodes.NewFilterStep(cfg.Retrieval),

		retrieveRisk: nodes.NewRetrieveRiskStep(cfg.RiskSearcher, cfg.Retrieval),
		sentiment:    nodes.NewSentimentStep(client),
		riskFilter:   nodes.NewRiskFilterStep(client, cfg.Retrieval),
		score:        nodes.NewScoreStep(calc),
		warn:         nodes.NewWarnStep(),

		generate: nodes.NewGenerateStep(client, cfg.Conversation),
		evaluate: nodes.NewEvaluateStep(client, cfg.Evaluator),
		persist:  nodes.NewPersistStep(cfg.UserStore),

		maxRetries: maxRetries,
	}
}

// Invoke runs one full workflow turn. The two retrieval branches run
// concurrently over state snapshots and their patches are joined before
// answer generation; the generate/evaluate loop is bounded by the retry
// limit so a turn always terminates.
func (e *Engine) Invoke(ctx context.Context, in QueryInput) (*Result, error) {
	if in.Query == "" {
		return nil, fmt.Errorf("empty query")
	}

	turnID := uuid.NewString()
	logx.Debug().
		Str("turn_id", turnID).
		Str("user_id", in.UserID).
		Msg("workflow turn started")

	s := &model.ConversationState{UserQuery: in.Query, UserID: in.UserID}
	s.Apply(e.loadMemory(ctx, s))

	contextPatch, riskPatch := e.runBranches(ctx, s)
	s.Join(contextPatch, riskPatch)
	logx.Debug().
		Str("turn_id", turnID).
		Int("context_passages", len(s.ContextPassages)).
		Int("risk_passages", len(s.FilteredRiskPassages)).
		Msg("branches joined")

	for attempt := 1; ; attempt++ {
		s.Apply(e.generate(ctx, s))
		s.Apply(e.evaluate(ctx, s, attempt))
		if s.EvalVerdict == model.VerdictPass || attempt >= e.maxRetries {
			break
		}
	}

	s.Apply(e.persist(ctx, s))

	var aggregate float64
	if s.AggregateRisk != nil {
		aggregate = *s.AggregateRisk
	}
	logx.Debug().
		Str("turn_id", turnID).
		Float64("aggregate_risk", aggregate).
		Msg("workflow turn finished")

	return &Result{
		Answer:        s.Answer,
		WarningText:   s.WarningText,
		AggregateRisk: aggregate,
	}, nil
}

// runBranches runs the context and risk pipelines concurrently, each over
// its own snapshot, and returns their assembled branch patches.
func (e *Engine) runBranches(ctx context.Context, s *model.ConversationState) (contextPatch, riskPatch model.Patch) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		contextPatch = e.runContextBranch(ctx, s.Clone())
	}()
	go func() {
		defer wg.Done()
		riskPatch = e.runRiskBranch(ctx, s.Clone())
	}()

	wg.Wait()
	return contextPatch, riskPatch
}

// runContextBranch classifies the query, retrieves scoped passages, grades
// them and keeps the relevant ones. The branch patch carries the final
// filtered context and the category label.
func (e *Engine) runContextBranch(ctx context.Context, s *model.ConversationState) model.Patch {
	for _, step := range []nodes.Step{e.classify, e.retrieveContext, e.grade, e.filter} {
		s.Apply(step(ctx, s))
	}

	category := s.CategoryLabel
	return model.Patch{
		ContextPassages: s.ContextPassages,
		CategoryLabel:   &category,
	}
}

// runRiskBranch retrieves risk evidence, then runs sentiment analysis and
// relevance filtering concurrently before scoring and warning generation.
// The branch patch carries the updated scoring state and warning.
func (e *Engine) runRiskBranch(ctx context.Context, s *model.ConversationState) model.Patch {
	s.Apply(e.retrieveRisk(ctx, s))

	var (
		wg             sync.WaitGroup
		sentimentPatch model.Patch
		filterPatch    model.Patch
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sentimentPatch = e.sentiment(ctx, s.Clone())
	}()
	go func() {
		defer wg.Done()
		filterPatch = e.riskFilter(ctx, s.Clone())
	}()
	wg.Wait()
	s.Join(sentimentPatch, filterPatch)

	s.Apply(e.score(ctx, s))
	s.Apply(e.warn(ctx, s))

	warning := s.WarningText
	filtered := s.FilteredRiskPassages
	return model.Patch{
		RiskPassages:         s.RiskPassages,
		Sentiment:            s.Sentiment,
		FilteredRiskPassages: &filtered,
		RiskScores:           s.RiskScores,
		RiskDecayRates:       s.RiskDecayRates,
		LastUpdateTime:       s.LastUpdateTime,
		AggregateRisk:        s.AggregateRisk,
		WarningText:          &warning,
	}
}
