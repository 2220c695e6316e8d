package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SocialPoster/internal/config"
	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

func testSelector(articles *fakeArticleStore, topics *fakeTopicStore, search *fakeSearch, fetcher *fakeFetcher, mode string) *Selector {
	s := NewSelector(articles, topics, search, fetcher, config.SourcesConfig{
		Mode:             mode,
		RecentTopicCount: 7,
		SelectorAttempts: 5,
	}, nil)
	s.now = func() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSelectorArticleMode(t *testing.T) {
	t.Parallel()

	articles := newFakeArticleStore(domain.Article{URL: "https://example.org/a", Title: "Fusion milestone"})
	fetcher := &fakeFetcher{content: "long article body"}
	s := testSelector(articles, &fakeTopicStore{}, &fakeSearch{}, fetcher, "articles")

	selection, err := s.SelectNext(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Fusion milestone", selection.Topic)
	assert.Equal(t, "long article body", selection.Context)
	assert.Equal(t, "https://example.org/a", selection.SourceRef)
	require.NotNil(t, selection.Article)
}

func TestSelectorArticleFetchFailureIsHardStop(t *testing.T) {
	t.Parallel()

	articles := newFakeArticleStore(domain.Article{URL: "https://example.org/dead", Title: "Gone"})
	s := testSelector(articles, &fakeTopicStore{}, &fakeSearch{}, &fakeFetcher{content: ""}, "articles")

	_, err := s.SelectNext(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.ArticleFailed, articles.statuses["https://example.org/dead"])
	assert.NotEmpty(t, articles.notes["https://example.org/dead"])
}

func TestSelectorDiscoveryRefinesTopic(t *testing.T) {
	t.Parallel()

	topics := &fakeTopicStore{seeds: []domain.SearchTopic{
		{ID: "t1", Text: "quantum computing"},
		{ID: "t2", Text: "battery storage"},
	}}
	search := &fakeSearch{
		byQuery: map[string][]ports.SearchResult{
			"battery storage": {
				{Title: "quantum computing advances"}, // overlaps recent, skipped
				{Title: "Sodium-ion packs reach parity"},
			},
			"Sodium-ion packs reach parity": {
				{Content: "excerpt one"},
				{Content: "excerpt two"},
			},
		},
	}
	s := testSelector(newFakeArticleStore(), topics, search, &fakeFetcher{}, "discovery")

	recent := []string{"Quantum Computing"}
	selection, err := s.SelectNext(context.Background(), recent)
	require.NoError(t, err)
	assert.Equal(t, "Sodium-ion packs reach parity", selection.Topic)
	assert.Equal(t, "excerpt one\n\nexcerpt two", selection.Context)
	assert.Equal(t, "battery storage", selection.SourceRef)
	assert.Equal(t, []string{"t2"}, topics.touched, "the non-overlapping seed is picked and touched")
}

func TestSelectorFallsBackWhenAllSeedsOverlap(t *testing.T) {
	t.Parallel()

	topics := &fakeTopicStore{seeds: []domain.SearchTopic{
		{ID: "t1", Text: "ai chips"},
		{ID: "t2", Text: "ai regulation"},
	}}
	search := &fakeSearch{
		byQuery: map[string][]ports.SearchResult{
			"ai chips":            {{Title: "Fresh angle on accelerators"}},
			"Fresh angle on accelerators": {{Content: "excerpt"}},
		},
	}
	s := testSelector(newFakeArticleStore(), topics, search, &fakeFetcher{}, "discovery")

	selection, err := s.SelectNext(context.Background(), []string{"AI chips", "AI regulation"})
	require.NoError(t, err)
	assert.Equal(t, "ai chips", selection.SourceRef, "oldest seed picked anyway rather than stalling")
	assert.Equal(t, "Fresh angle on accelerators", selection.Topic)
}

func TestSelectorDiscoveryFailsWithoutUsableContext(t *testing.T) {
	t.Parallel()

	topics := &fakeTopicStore{seeds: []domain.SearchTopic{{ID: "t1", Text: "fusion"}}}
	search := &fakeSearch{
		byQuery: map[string][]ports.SearchResult{
			"fusion": {{Title: "Candidate title"}},
			// The deep search for "Candidate title" returns nothing usable.
			"Candidate title": {},
		},
	}
	s := testSelector(newFakeArticleStore(), topics, search, &fakeFetcher{}, "discovery")

	_, err := s.SelectNext(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoWork))
}

func TestSelectorAutoPrefersArticles(t *testing.T) {
	t.Parallel()

	articles := newFakeArticleStore(domain.Article{URL: "https://example.org/a", Title: "Queued first"})
	s := testSelector(articles, &fakeTopicStore{}, &fakeSearch{}, &fakeFetcher{content: "body"}, "auto")

	selection, err := s.SelectNext(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, selection.Article)

	// Queue drained: auto falls through to discovery, which has no seeds.
	articles.statuses["https://example.org/a"] = domain.ArticleProcessed
	_, err = s.SelectNext(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoWork))
}

func TestOverlapsAnyBothDirections(t *testing.T) {
	t.Parallel()

	assert.True(t, overlapsAny("AI Chips", []string{"new ai chips benchmark"}))
	assert.True(t, overlapsAny("new ai chips benchmark", []string{"AI Chips"}))
	assert.False(t, overlapsAny("sodium batteries", []string{"AI Chips"}))
	assert.False(t, overlapsAny("", []string{"anything"}))
}
