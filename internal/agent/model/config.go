package model

// ================ Config ================

// StructuredModelConfig drives every schema-constrained inference call
// (classification, grading, sentiment, risk filtering, evaluation).
type StructuredModelConfig struct {
	Model       string  `envconfig:"STRUCTURED_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"STRUCTURED_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"STRUCTURED_TEMPERATURE" default:"0.1"`
}

// ResponseModelConfig drives answer generation.
type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"350"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.3"`
}

// RetrievalConfig tunes both retrieval branches and the grading filter.
type RetrievalConfig struct {
	ContextTopK       int     `envconfig:"RETRIEVAL_CONTEXT_TOP_K" default:"15"`
	ContextThreshold  float64 `envconfig:"RETRIEVAL_CONTEXT_THRESHOLD" default:"0.0"`
	RiskTopK          int     `envconfig:"RETRIEVAL_RISK_TOP_K" default:"30"`
	GradePreviewChars int     `envconfig:"RETRIEVAL_GRADE_PREVIEW_CHARS" default:"250"`
	DefaultGrade      int     `envconfig:"RETRIEVAL_DEFAULT_GRADE" default:"0"`
	GradeThreshold    int     `envconfig:"RETRIEVAL_GRADE_THRESHOLD" default:"50"`
	RiskFilterWindow  int     `envconfig:"RETRIEVAL_RISK_FILTER_WINDOW" default:"5"`
	RiskFallbackCount int     `envconfig:"RETRIEVAL_RISK_FALLBACK_COUNT" default:"3"`
}

// EvaluatorConfig bounds the answer-quality retry loop. MaxRetries counts
// total generation attempts, not extra retries.
type EvaluatorConfig struct {
	PassScore  int `envconfig:"EVALUATOR_PASS_SCORE" default:"60"`
	MaxRetries int `envconfig:"EVALUATOR_MAX_RETRIES" default:"2"`
}

// ConversationConfig controls history usage in the answer prompt and record
// retention in the user store.
type ConversationConfig struct {
	HistoryTurns        int    `envconfig:"CONVERSATION_HISTORY_TURNS" default:"3"`
	HistoryPreviewChars int    `envconfig:"CONVERSATION_HISTORY_PREVIEW_CHARS" default:"100"`
	ContextPreviewChars int    `envconfig:"CONVERSATION_CONTEXT_PREVIEW_CHARS" default:"200"`
	TTL                 string `envconfig:"CONVERSATION_TTL" default:"720h"`
}
