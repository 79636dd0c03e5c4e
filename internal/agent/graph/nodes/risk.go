package nodes

import (
	"context"

	"github.com/emori-agent/server/internal/agent/graph/parsers"
	"github.com/emori-agent/server/internal/agent/graph/prompts"
	"github.com/emori-agent/server/internal/agent/llm"
	"github.com/emori-agent/server/internal/agent/model"
	"github.com/emori-agent/server/internal/agent/risk"
	logx "github.com/emori-agent/server/pkg/logger"
)

// NewRetrieveRiskStep searches the risk collection for labelled passages
// similar to the user query. No category filter and no threshold: the wide
// net is narrowed later by the relevance filter.
func NewRetrieveRiskStep(searcher model.Searcher, cfg model.RetrievalConfig) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		hits, err := searcher.Search(ctx, s.UserQuery, cfg.RiskTopK, nil, 0)
		if err != nil {
			logx.Error().Err(err).Msg("risk search failed")
			return model.Patch{RiskPassages: []model.RiskPassage{}}
		}

		passages := make([]model.RiskPassage, 0, len(hits))
		for _, h := range hits {
			passages = append(passages, model.RiskPassage{
				ID:         h.ID,
				Similarity: h.Similarity,
				Status:     h.Status,
				Text:       h.Text,
			})
		}
		logx.Debug().Int("count", len(passages)).Msg("risk passages retrieved")
		return model.Patch{RiskPassages: passages}
	}
}

// NewSentimentStep scores the emotional tone of the user query. On failure
// it leaves the sentiment absent; the calculator substitutes a neutral
// default.
func NewSentimentStep(client llm.Client) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		prompt, err := prompts.RenderSentiment(ctx, s.UserQuery)
		if err != nil {
			logx.Error().Err(err).Msg("sentiment prompt failed")
			return model.Patch{}
		}

		raw, err := client.Structured(ctx, prompt)
		if err != nil {
			logx.Error().Err(err).Msg("sentiment analysis failed")
			return model.Patch{}
		}

		sent, err := parsers.Decode[risk.Sentiment](raw)
		if err != nil {
			logx.Error().Err(err).Msg("sentiment parse failed")
			return model.Patch{}
		}

		logx.Debug().
			Float64("pos", sent.Pos).
			Float64("neg", sent.Neg).
			Float64("neu", sent.Neu).
			Str("context_type", sent.ContextType).
			Float64("personal_relevance", sent.PersonalRelevance).
			Msg("sentiment scored")
		return model.Patch{Sentiment: sent}
	}
}

// NewRiskFilterStep asks the structured model to keep only passages relevant
// to the user's current mental state, over a bounded window of the raw hits.
// The prompt instructs the model to always retain high-risk passages. A
// failed call falls back to the first few raw hits so scoring still sees
// some evidence.
func NewRiskFilterStep(client llm.Client, cfg model.RetrievalConfig) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		empty := []model.RiskPassage{}
		if len(s.RiskPassages) == 0 {
			logx.Debug().Msg("no risk passages to filter")
			return model.Patch{FilteredRiskPassages: &empty}
		}

		window := s.RiskPassages
		if len(window) > cfg.RiskFilterWindow {
			window = window[:cfg.RiskFilterWindow]
		}

		fallback := func() model.Patch {
			n := cfg.RiskFallbackCount
			if n > len(s.RiskPassages) {
				n = len(s.RiskPassages)
			}
			kept := append([]model.RiskPassage(nil), s.RiskPassages[:n]...)
			logx.Warn().Int("count", n).Msg("risk filter degraded to top raw hits")
			return model.Patch{FilteredRiskPassages: &kept}
		}

		prompt, err := prompts.RenderRiskFilter(ctx, s.UserQuery, window)
		if err != nil {
			logx.Error().Err(err).Msg("risk filter prompt failed")
			return fallback()
		}

		raw, err := client.Structured(ctx, prompt)
		if err != nil {
			logx.Error().Err(err).Msg("risk filtering failed")
			return fallback()
		}

		selection, err := parsers.Decode[model.RiskSelection](raw)
		if err != nil {
			logx.Error().Err(err).Msg("risk filter parse failed")
			return fallback()
		}

		kept := selection.Passages
		if kept == nil {
			kept = empty
		}
		logx.Debug().
			Int("kept", len(kept)).
			Int("retrieved", len(s.RiskPassages)).
			Msg("risk passages filtered")
		return model.Patch{FilteredRiskPassages: &kept}
	}
}

// NewScoreStep feeds the filtered evidence and sentiment into the risk
// calculator and carries the updated scoring state back into the workflow.
func NewScoreStep(calc *risk.Calculator) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		evidence := make([]risk.Evidence, 0, len(s.FilteredRiskPassages))
		for _, p := range s.FilteredRiskPassages {
			label, ok := risk.ParseLabel(p.Status)
			if !ok {
				logx.Warn().Str("status", p.Status).Msg("unknown risk label, passage skipped")
				continue
			}
			evidence = append(evidence, risk.Evidence{Label: label, Similarity: p.Similarity})
		}

		out := calc.Calculate(risk.Inputs{
			Scores:     s.RiskScores,
			DecayRates: s.RiskDecayRates,
			LastUpdate: s.LastUpdateTime,
			Passages:   evidence,
			Sentiment:  s.Sentiment,
		})

		logx.Debug().
			Int("evidence", len(evidence)).
			Float64("aggregate_risk", out.AggregateRisk).
			Msg("risk scores updated")

		updatedAt := out.UpdatedAt
		aggregate := out.AggregateRisk
		return model.Patch{
			RiskScores:     out.Scores,
			RiskDecayRates: out.DecayRates,
			LastUpdateTime: &updatedAt,
			AggregateRisk:  &aggregate,
		}
	}
}

// NewWarnStep derives the user-facing warning text from the updated scores.
func NewWarnStep() Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		var aggregate float64
		if s.AggregateRisk != nil {
			aggregate = *s.AggregateRisk
		}
		warning := risk.Warn(s.RiskScores, aggregate)
		if warning != "" {
			logx.Warn().Str("warning", warning).Msg("risk warning generated")
		}
		return model.Patch{WarningText: &warning}
	}
}
