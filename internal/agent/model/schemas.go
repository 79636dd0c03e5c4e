package model

// ================ Structured model outputs ================
//
// Each type mirrors the JSON schema a structured inference call is prompted
// to produce. Decoding is tolerant (see graph/parsers); fields here only
// declare the expected shape.

// CategoryChoice is the classification result for the user query.
type CategoryChoice struct {
	Category string `json:"category"`
}

// PassageGrade is one relevance grade on a 1-100 scale.
type PassageGrade struct {
	ID    string `json:"id"`
	Grade int    `json:"grade"`
}

// GradeSheet is the full grading response for a retrieval batch.
type GradeSheet struct {
	Grades []PassageGrade `json:"grades"`
}

// RiskSelection is the subset of risk passages the model judged relevant to
// the user's current situation.
type RiskSelection struct {
	Passages []RiskPassage `json:"passages"`
}

// Evaluation is the answer-quality review: a 0-100 score plus actionable
// feedback used when regenerating.
type Evaluation struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}
