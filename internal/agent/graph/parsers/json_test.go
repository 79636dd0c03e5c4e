package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emori-agent/server/internal/agent/model"
)

func TestDecodePlainObject(t *testing.T) {
	out, err := Decode[model.CategoryChoice](`{"category": "research"}`)
	require.NoError(t, err)
	assert.Equal(t, "research", out.Category)
}

func TestDecodeFencedBlock(t *testing.T) {
	content := "Here is the result:\n```json\n{\"score\": 72, \"feedback\": \"warm enough\"}\n```\nThanks!"
	out, err := Decode[model.Evaluation](content)
	require.NoError(t, err)
	assert.Equal(t, 72, out.Score)
	assert.Equal(t, "warm enough", out.Feedback)
}

func TestDecodeSurroundingProse(t *testing.T) {
	content := `Sure! The grades are {"grades": [{"id": "p1", "grade": 80}, {"id": "p2", "grade": 40}]} as requested.`
	out, err := Decode[model.GradeSheet](content)
	require.NoError(t, err)
	require.Len(t, out.Grades, 2)
	assert.Equal(t, 80, out.Grades[0].Grade)
}

func TestDecodeRepairsMalformedJSON(t *testing.T) {
	// trailing comma and single quotes, common model mistakes
	content := `{'category': 'conversation',}`
	out, err := Decode[model.CategoryChoice](content)
	require.NoError(t, err)
	assert.Equal(t, "conversation", out.Category)
}

func TestDecodeArrayPayload(t *testing.T) {
	content := `{"passages": [{"id": "r1", "similarity": 0.91, "status": "Suicidal", "text": "..."}]}`
	out, err := Decode[model.RiskSelection](content)
	require.NoError(t, err)
	require.Len(t, out.Passages, 1)
	assert.Equal(t, "Suicidal", out.Passages[0].Status)
}

func TestDecodeNoPayload(t *testing.T) {
	_, err := Decode[model.CategoryChoice]("I could not produce a classification, sorry.")
	assert.Error(t, err)
}

func TestDecodeTruncatedDocumentRepaired(t *testing.T) {
	_, err := Decode[model.Evaluation](`{"score": 55, "feedback": "cut off`)
	// jsonrepair closes the open string and brace
	assert.NoError(t, err)
}
