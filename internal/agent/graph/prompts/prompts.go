package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/emori-agent/server/internal/agent/model"
)

//go:embed template/classify_prompt.txt
var classifyPrompt string

//go:embed template/grade_prompt.txt
var gradePrompt string

//go:embed template/sentiment_prompt.txt
var sentimentPrompt string

//go:embed template/risk_filter_prompt.txt
var riskFilterPrompt string

//go:embed template/answer_prompt.txt
var answerPrompt string

//go:embed template/evaluate_prompt.txt
var evaluatePrompt string

// render formats one embedded template via the Eino prompt component so
// prompt callbacks fire, and returns the final prompt string.
func render(ctx context.Context, name, tmpl string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(tmpl),
	)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}

// RenderClassify builds the query-classification prompt.
func RenderClassify(ctx context.Context, query string) (string, error) {
	return render(ctx, "classify", classifyPrompt, map[string]any{"Query": query})
}

// RenderGrade builds the passage-grading prompt. Passage text is cut to
// previewChars so a full retrieval batch fits in one call.
func RenderGrade(ctx context.Context, query string, passages []model.Passage, previewChars int) (string, error) {
	var b strings.Builder
	for _, p := range passages {
		fmt.Fprintf(&b, "ID: %s\nText: %s...\n\n", p.ID, preview(p.Text, previewChars))
	}
	return render(ctx, "grade", gradePrompt, map[string]any{
		"Query":     query,
		"Documents": b.String(),
	})
}

// RenderSentiment builds the sentiment-analysis prompt.
func RenderSentiment(ctx context.Context, query string) (string, error) {
	return render(ctx, "sentiment", sentimentPrompt, map[string]any{"Query": query})
}

// RenderRiskFilter builds the risk-relevance filtering prompt over an already
// windowed slice of results.
func RenderRiskFilter(ctx context.Context, query string, results []model.RiskPassage) (string, error) {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. ID: %s\n   Similarity: %.3f\n   Status: %s\n   Text: %s...\n\n",
			i+1, r.ID, r.Similarity, r.Status, preview(r.Text, 350))
	}
	return render(ctx, "risk filter", riskFilterPrompt, map[string]any{
		"Query":   query,
		"Results": b.String(),
	})
}

// AnswerVars carries everything the answer prompt interpolates.
type AnswerVars struct {
	Query       string
	Passages    []model.Passage
	History     []model.Turn
	WarningText string
	Feedback    string

	ContextPreviewChars int
	HistoryTurns        int
	HistoryPreviewChars int
}

// RenderAnswer builds the answer-generation prompt from graded context,
// recent history and the risk assessment.
func RenderAnswer(ctx context.Context, v AnswerVars) (string, error) {
	var contextText strings.Builder
	for _, p := range v.Passages {
		fmt.Fprintf(&contextText, "- %s...\n", preview(p.Text, v.ContextPreviewChars))
	}

	var history strings.Builder
	turns := v.History
	if v.HistoryTurns > 0 && len(turns) > v.HistoryTurns {
		turns = turns[len(turns)-v.HistoryTurns:]
	}
	for _, turn := range turns {
		fmt.Fprintf(&history, "User: %s...\n", preview(turn.UserQuery, v.HistoryPreviewChars))
		fmt.Fprintf(&history, "AI: %s...\n", preview(turn.Answer, v.HistoryPreviewChars))
	}

	assessment := v.WarningText
	if assessment == "" {
		assessment = "No specific concerns detected"
	}
	feedback := ""
	if v.Feedback != "" {
		feedback = fmt.Sprintf("\n\nImprove based on feedback: %s", v.Feedback)
	}

	return render(ctx, "answer", answerPrompt, map[string]any{
		"Query":      v.Query,
		"Context":    contextText.String(),
		"History":    history.String(),
		"Assessment": assessment,
		"Feedback":   feedback,
	})
}

// RenderEvaluate builds the answer-quality review prompt.
func RenderEvaluate(ctx context.Context, query, answer string) (string, error) {
	return render(ctx, "evaluate", evaluatePrompt, map[string]any{
		"Query":  query,
		"Answer": answer,
	})
}

// preview cuts s to at most n bytes on a rune boundary.
func preview(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
