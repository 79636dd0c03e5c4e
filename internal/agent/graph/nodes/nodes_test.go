package nodes

import (
	"context"
	"fmt"

	"github.com/emori-agent/server/internal/agent/model"
)

// stubClient returns canned responses regardless of the prompt.
type stubClient struct {
	structured    string
	structuredErr error
	respond       string
	respondErr    error
}

func (s *stubClient) Structured(ctx context.Context, prompt string) (string, error) {
	return s.structured, s.structuredErr
}

func (s *stubClient) Respond(ctx context.Context, prompt string) (string, error) {
	return s.respond, s.respondErr
}

type stubSearcher struct {
	results     []model.SearchResult
	err         error
	lastFilters map[string][]string
	lastTopK    int
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int, filters map[string][]string, threshold float64) ([]model.SearchResult, error) {
	s.lastFilters = filters
	s.lastTopK = topK
	return s.results, s.err
}

type stubStore struct {
	record    *model.UserRecord
	loadErr   error
	appendErr error
	fieldsErr error

	appended []model.Turn
	fields   *model.UserFields
}

func (s *stubStore) LoadUser(ctx context.Context, userID string) (*model.UserRecord, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.record == nil {
		return &model.UserRecord{PastConversation: []model.Turn{}}, nil
	}
	return s.record, nil
}

func (s *stubStore) AppendConversation(ctx context.Context, userID string, turn model.Turn) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, turn)
	return nil
}

func (s *stubStore) OverwriteFields(ctx context.Context, userID string, fields model.UserFields) error {
	if s.fieldsErr != nil {
		return s.fieldsErr
	}
	s.fields = &fields
	return nil
}

var errBoom = fmt.Errorf("boom")

func retrievalConfig() model.RetrievalConfig {
	return model.RetrievalConfig{
		ContextTopK:       15,
		ContextThreshold:  0.0,
		RiskTopK:          30,
		GradePreviewChars: 250,
		DefaultGrade:      0,
		GradeThreshold:    50,
		RiskFilterWindow:  5,
		RiskFallbackCount: 3,
	}
}
