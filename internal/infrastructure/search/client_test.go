package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SocialPoster/internal/config"
)

func TestClientSearch(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Result one","url":"https://a","content":"first excerpt"},
			{"title":"Result two","url":"https://b","content":"second excerpt"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{Endpoint: server.URL, APIKey: "search-key"})
	results, err := client.Search(context.Background(), "fusion", "basic", 8)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Result one", results[0].Title)
	assert.Equal(t, "second excerpt", results[1].Content)

	assert.Equal(t, "search-key", gotPayload["api_key"])
	assert.Equal(t, "fusion", gotPayload["query"])
	assert.Equal(t, "basic", gotPayload["search_depth"])
	assert.Equal(t, float64(8), gotPayload["max_results"])
}

func TestClientSearchErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.SearchConfig{Endpoint: server.URL, APIKey: "search-key"})
	_, err := client.Search(context.Background(), "fusion", "basic", 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClientSearchMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewClient(config.SearchConfig{})
	_, err := client.Search(context.Background(), "fusion", "basic", 8)
	require.Error(t, err)
}
