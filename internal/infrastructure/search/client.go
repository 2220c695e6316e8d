package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"SocialPoster/internal/config"
	"SocialPoster/internal/ports"
)

// Client talks to a Tavily-style web search API.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.SearchClient = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.SearchConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Search runs one query at the given depth ("basic" or "advanced").
func (c *Client) Search(ctx context.Context, query, depth string, maxResults int) ([]ports.SearchResult, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, fmt.Errorf("search client misconfigured")
	}

	payload := map[string]any{
		"api_key":      c.apiKey,
		"query":        query,
		"search_depth": depth,
		"max_results":  maxResults,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	var out struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]ports.SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, ports.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
		})
	}
	return results, nil
}
