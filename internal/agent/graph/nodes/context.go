package nodes

import (
	"context"
	"strings"

	"github.com/emori-agent/server/internal/agent/graph/parsers"
	"github.com/emori-agent/server/internal/agent/graph/prompts"
	"github.com/emori-agent/server/internal/agent/llm"
	"github.com/emori-agent/server/internal/agent/model"
	logx "github.com/emori-agent/server/pkg/logger"
)

// Step is one unit of the workflow: it reads a state snapshot and returns a
// patch describing its updates. Steps never mutate the state directly and
// never fail the turn; degraded output is expressed through the patch.
type Step func(ctx context.Context, s *model.ConversationState) model.Patch

// allowedCategories are the labels the classifier may produce. Anything else
// falls back to the conversational default.
var allowedCategories = map[string]bool{
	"research":     true,
	"report":       true,
	"conversation": true,
	"article":      true,
}

const fallbackCategory = "conversation"

// NewClassifyStep labels the user query with a knowledge-base category used
// to scope context retrieval.
func NewClassifyStep(client llm.Client) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		label := fallbackCategory

		prompt, err := prompts.RenderClassify(ctx, s.UserQuery)
		if err != nil {
			logx.Error().Err(err).Msg("classify prompt failed, using fallback category")
			return model.Patch{CategoryLabel: &label}
		}

		raw, err := client.Structured(ctx, prompt)
		if err != nil {
			logx.Error().Err(err).Msg("classification failed, using fallback category")
			return model.Patch{CategoryLabel: &label}
		}

		choice, err := parsers.Decode[model.CategoryChoice](raw)
		if err != nil {
			logx.Error().Err(err).Msg("classification parse failed, using fallback category")
			return model.Patch{CategoryLabel: &label}
		}

		candidate := strings.ToLower(strings.TrimSpace(choice.Category))
		if allowedCategories[candidate] {
			label = candidate
			logx.Debug().Str("category", label).Msg("query classified")
		} else {
			logx.Warn().Str("category", candidate).Msg("invalid category, using fallback")
		}
		return model.Patch{CategoryLabel: &label}
	}
}

// NewRetrieveContextStep searches the knowledge collection restricted to the
// classified category. Retrieval failure degrades to an empty context.
func NewRetrieveContextStep(searcher model.Searcher, cfg model.RetrievalConfig) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		filters := map[string][]string{"category": {s.CategoryLabel}}

		hits, err := searcher.Search(ctx, s.UserQuery, cfg.ContextTopK, filters, cfg.ContextThreshold)
		if err != nil {
			logx.Error().Err(err).Str("category", s.CategoryLabel).Msg("context search failed")
			return model.Patch{ContextPassages: []model.Passage{}}
		}

		passages := make([]model.Passage, 0, len(hits))
		for _, h := range hits {
			passages = append(passages, model.Passage{ID: h.ID, Text: h.Text})
		}
		logx.Debug().Int("count", len(passages)).Str("category", s.CategoryLabel).Msg("context retrieved")
		return model.Patch{ContextPassages: passages}
	}
}

// NewGradeStep asks the structured model to grade each retrieved passage for
// relevance. Passages the model skips get the default grade; a failed call
// clears the graded list so downstream filtering yields no context.
func NewGradeStep(client llm.Client, cfg model.RetrievalConfig) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		empty := []model.GradedPassage{}
		if len(s.ContextPassages) == 0 {
			logx.Debug().Msg("no passages to grade")
			return model.Patch{GradedPassages: &empty}
		}

		prompt, err := prompts.RenderGrade(ctx, s.UserQuery, s.ContextPassages, cfg.GradePreviewChars)
		if err != nil {
			logx.Error().Err(err).Msg("grade prompt failed")
			return model.Patch{GradedPassages: &empty}
		}

		raw, err := client.Structured(ctx, prompt)
		if err != nil {
			logx.Error().Err(err).Msg("grading failed")
			return model.Patch{GradedPassages: &empty}
		}

		sheet, err := parsers.Decode[model.GradeSheet](raw)
		if err != nil {
			logx.Error().Err(err).Msg("grading parse failed")
			return model.Patch{GradedPassages: &empty}
		}

		gradeByID := make(map[string]int, len(sheet.Grades))
		for _, g := range sheet.Grades {
			gradeByID[g.ID] = g.Grade
		}

		graded := make([]model.GradedPassage, 0, len(s.ContextPassages))
		for _, p := range s.ContextPassages {
			grade, ok := gradeByID[p.ID]
			if !ok {
				grade = cfg.DefaultGrade
			}
			graded = append(graded, model.GradedPassage{ID: p.ID, Text: p.Text, Grade: grade})
		}
		logx.Debug().Int("count", len(graded)).Msg("passages graded")
		return model.Patch{GradedPassages: &graded}
	}
}

// NewFilterStep keeps passages at or above the grade threshold and strips
// the grades, producing the final context for answer generation.
func NewFilterStep(cfg model.RetrievalConfig) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		filtered := make([]model.Passage, 0, len(s.GradedPassages))
		for _, g := range s.GradedPassages {
			if g.Grade >= cfg.GradeThreshold {
				filtered = append(filtered, model.Passage{ID: g.ID, Text: g.Text})
			}
		}
		logx.Debug().
			Int("kept", len(filtered)).
			Int("graded", len(s.GradedPassages)).
			Msg("passages filtered by grade")
		return model.Patch{ContextPassages: filtered}
	}
}
