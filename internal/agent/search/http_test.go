package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSendsCollectionAndFilters(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"id": "d1", "text": "passage", "similarity": 0.82, "status": "Anxiety"}]}`))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(Config{BaseURL: srv.URL, Collection: "mental_health", TimeoutSeconds: 5})
	results, err := s.Search(context.Background(), "how to cope", 15, map[string][]string{"category": {"research"}}, 0.0)
	require.NoError(t, err)

	assert.Equal(t, "mental_health", got.Collection)
	assert.Equal(t, "how to cope", got.Query)
	assert.Equal(t, 15, got.TopK)
	assert.Equal(t, map[string][]string{"category": {"research"}}, got.Filters)

	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].ID)
	assert.Equal(t, 0.82, results[0].Similarity)
	assert.Equal(t, "Anxiety", results[0].Status)
}

func TestSearchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSearcher(Config{BaseURL: srv.URL, Collection: "c", TimeoutSeconds: 5})
	_, err := s.Search(context.Background(), "q", 5, nil, 0)
	assert.ErrorContains(t, err, "502")
}

func TestSearchBadResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(Config{BaseURL: srv.URL, Collection: "c", TimeoutSeconds: 5})
	_, err := s.Search(context.Background(), "q", 5, nil, 0)
	assert.ErrorContains(t, err, "decode search response")
}

func TestSearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	s := NewHTTPSearcher(Config{BaseURL: srv.URL, Collection: "c", TimeoutSeconds: 5})
	results, err := s.Search(context.Background(), "q", 5, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
