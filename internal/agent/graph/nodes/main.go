package nodes

import (
	"context"
	"strings"
	"time"

	"github.com/emori-agent/server/internal/agent/graph/parsers"
	"github.com/emori-agent/server/internal/agent/graph/prompts"
	"github.com/emori-agent/server/internal/agent/llm"
	"github.com/emori-agent/server/internal/agent/model"
	logx "github.com/emori-agent/server/pkg/logger"
)

// fallbackAnswer is returned when no context is available or generation
// fails. It keeps the user supported instead of surfacing an error.
const fallbackAnswer = "I understand you're reaching out for support. While I'm experiencing some technical difficulties right now, I want you to know that your concerns are valid. If you're in immediate distress, please contact a mental health professional or crisis helpline. Otherwise, please try again in a few moments."

// NewLoadMemoryStep loads the user's conversation history and scoring state.
// Unknown users and load failures both start from a clean record.
func NewLoadMemoryStep(store model.UserStore) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		emptyHistory := []model.Turn{}
		if s.UserID == "" {
			logx.Warn().Msg("no user id provided, starting with empty memory")
			return model.Patch{PastConversation: emptyHistory}
		}

		record, err := store.LoadUser(ctx, s.UserID)
		if err != nil {
			logx.Error().Err(err).Str("user_id", s.UserID).Msg("memory load failed, starting empty")
			return model.Patch{PastConversation: emptyHistory}
		}

		history := record.PastConversation
		if history == nil {
			history = emptyHistory
		}
		logx.Debug().
			Str("user_id", s.UserID).
			Int("history_turns", len(history)).
			Msg("user memory loaded")
		return model.Patch{
			PastConversation: history,
			RiskScores:       record.RiskScores,
			RiskDecayRates:   record.RiskDecayRates,
			LastUpdateTime:   record.LastUpdateTime,
			AggregateRisk:    record.AggregateRisk,
		}
	}
}

// NewGenerateStep produces the supportive answer from graded context, recent
// history, the risk assessment and any evaluator feedback from a previous
// attempt. Without context, and on any failure, it returns the fixed
// supportive fallback.
func NewGenerateStep(client llm.Client, cfg model.ConversationConfig) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		fallback := fallbackAnswer
		if len(s.ContextPassages) == 0 {
			logx.Warn().Msg("no context available, using fallback answer")
			return model.Patch{Answer: &fallback}
		}

		prompt, err := prompts.RenderAnswer(ctx, prompts.AnswerVars{
			Query:               s.UserQuery,
			Passages:            s.ContextPassages,
			History:             s.PastConversation,
			WarningText:         s.WarningText,
			Feedback:            s.EvalFeedback,
			ContextPreviewChars: cfg.ContextPreviewChars,
			HistoryTurns:        cfg.HistoryTurns,
			HistoryPreviewChars: cfg.HistoryPreviewChars,
		})
		if err != nil {
			logx.Error().Err(err).Msg("answer prompt failed, using fallback answer")
			return model.Patch{Answer: &fallback}
		}

		raw, err := client.Respond(ctx, prompt)
		if err != nil {
			logx.Error().Err(err).Msg("answer generation failed, using fallback answer")
			return model.Patch{Answer: &fallback}
		}

		answer := strings.TrimSpace(raw)
		if answer == "" {
			answer = fallback
		}
		logx.Debug().Int("answer_chars", len(answer)).Msg("answer generated")
		return model.Patch{Answer: &answer}
	}
}

// NewEvaluateStep reviews the generated answer and decides whether to accept
// it or request one more attempt. The attempt argument is 1-based; once it
// reaches the retry limit the answer is accepted regardless of score, and an
// evaluator failure also accepts so the turn always completes.
func NewEvaluateStep(client llm.Client, cfg model.EvaluatorConfig) func(ctx context.Context, s *model.ConversationState, attempt int) model.Patch {
	return func(ctx context.Context, s *model.ConversationState, attempt int) model.Patch {
		pass := model.VerdictPass
		retry := model.VerdictRetry
		noFeedback := ""

		accept := func(reason string) model.Patch {
			logx.Debug().Str("reason", reason).Int("attempt", attempt).Msg("answer accepted")
			return model.Patch{EvalVerdict: &pass, EvalFeedback: &noFeedback}
		}

		prompt, err := prompts.RenderEvaluate(ctx, s.UserQuery, s.Answer)
		if err != nil {
			logx.Error().Err(err).Msg("evaluation prompt failed, accepting answer")
			return accept("prompt failure")
		}

		raw, err := client.Structured(ctx, prompt)
		if err != nil {
			logx.Error().Err(err).Msg("evaluation failed, accepting answer")
			return accept("evaluator failure")
		}

		eval, err := parsers.Decode[model.Evaluation](raw)
		if err != nil {
			logx.Error().Err(err).Msg("evaluation parse failed, accepting answer")
			return accept("parse failure")
		}

		if eval.Score >= cfg.PassScore {
			logx.Debug().Int("score", eval.Score).Msg("evaluation passed")
			return model.Patch{EvalVerdict: &pass, EvalFeedback: &noFeedback}
		}
		if attempt >= cfg.MaxRetries {
			logx.Warn().Int("score", eval.Score).Int("attempt", attempt).Msg("evaluation failed but retry limit reached, accepting")
			return model.Patch{EvalVerdict: &pass, EvalFeedback: &noFeedback}
		}

		logx.Debug().Int("score", eval.Score).Int("attempt", attempt).Msg("evaluation failed, retrying")
		return model.Patch{EvalVerdict: &retry, EvalFeedback: &eval.Feedback}
	}
}

// NewPersistStep appends the finished turn to the user's history and writes
// back the scoring state. Persistence failures are logged and swallowed so
// the user still receives the answer.
func NewPersistStep(store model.UserStore) Step {
	return func(ctx context.Context, s *model.ConversationState) model.Patch {
		if s.UserID == "" {
			logx.Warn().Msg("no user id, skipping persistence")
			return model.Patch{}
		}

		turn := model.Turn{
			UserQuery: s.UserQuery,
			Answer:    s.Answer,
			Timestamp: time.Now().UTC(),
		}
		if err := store.AppendConversation(ctx, s.UserID, turn); err != nil {
			logx.Error().Err(err).Str("user_id", s.UserID).Msg("conversation save failed")
		}

		fields := model.UserFields{
			RiskScores:     s.RiskScores,
			RiskDecayRates: s.RiskDecayRates,
			LastUpdateTime: s.LastUpdateTime,
			AggregateRisk:  s.AggregateRisk,
		}
		if err := store.OverwriteFields(ctx, s.UserID, fields); err != nil {
			logx.Error().Err(err).Str("user_id", s.UserID).Msg("scoring state save failed")
		}

		logx.Debug().Str("user_id", s.UserID).Msg("turn persisted")
		return model.Patch{}
	}
}
