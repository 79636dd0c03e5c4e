package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emori-agent/server/internal/agent/model"
	logx "github.com/emori-agent/server/pkg/logger"
)

// Config describes one vector-search endpoint. Each collection gets its own
// Config so the knowledge and risk stores can live on different deployments.
type Config struct {
	BaseURL        string `envconfig:"BASE_URL" required:"true"`
	Collection     string `envconfig:"COLLECTION" required:"true"`
	TimeoutSeconds int    `envconfig:"TIMEOUT_SECONDS" default:"10"`
}

// HTTPSearcher queries a vector-search service over its JSON API.
type HTTPSearcher struct {
	baseURL    string
	collection string
	client     *http.Client
}

func NewHTTPSearcher(cfg Config) *HTTPSearcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSearcher{
		baseURL:    cfg.BaseURL,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Collection string              `json:"collection"`
	Query      string              `json:"query"`
	TopK       int                 `json:"top_k"`
	Filters    map[string][]string `json:"filters,omitempty"`
	Threshold  float64             `json:"threshold"`
}

type searchResponse struct {
	Results []model.SearchResult `json:"results"`
}

// Search runs one similarity query against the configured collection.
func (s *HTTPSearcher) Search(ctx context.Context, query string, topK int, filters map[string][]string, threshold float64) ([]model.SearchResult, error) {
	body, err := json.Marshal(searchRequest{
		Collection: s.collection,
		Query:      query,
		TopK:       topK,
		Filters:    filters,
		Threshold:  threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := s.baseURL + "/v1/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		logx.Error().Err(err).Str("collection", s.collection).Msg("search request failed")
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logx.Error().
			Int("status", resp.StatusCode).
			Str("collection", s.collection).
			Str("body", string(snippet)).
			Msg("search returned non-OK status")
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}

var _ model.Searcher = (*HTTPSearcher)(nil)
