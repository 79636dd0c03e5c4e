package model

import "context"

// SearchResult is one hit from a vector search. Status carries the risk
// label for hits from the risk collection; Category the knowledge-base
// category for hits from the context collection. Either may be empty.
type SearchResult struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Status     string  `json:"status,omitempty"`
	Category   string  `json:"category,omitempty"`
}

// Searcher performs similarity search against one collection. Filters are
// field-to-allowed-values restrictions; a zero threshold admits every hit.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, filters map[string][]string, threshold float64) ([]SearchResult, error)
}
