package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SocialPoster/internal/config"
	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

const (
	broadSearchDepth   = "basic"
	deepSearchDepth    = "advanced"
	broadSearchResults = 8
	deepSearchResults  = 5
	topicSeedLimit     = 10
)

// ErrNoWork is returned when the selector has nothing usable to offer.
var ErrNoWork = errors.New("no content source available")

// Selection is one unit of work for the generator.
type Selection struct {
	Topic   string
	Context string
	// SourceRef is the search query or the article URL behind this
	// selection; used only for logging and analytics.
	SourceRef string
	// Article is set when the selection consumed the article queue.
	Article *domain.Article
}

// Selector picks the next unit of work: a pending article, or a freshly
// discovered topic refined through external search.
type Selector struct {
	articles ports.ArticleStore
	topics   ports.TopicStore
	search   ports.SearchClient
	fetcher  ports.PageFetcher
	mode     string
	attempts int
	logger   *slog.Logger

	now func() time.Time
}

// NewSelector builds a selector from source configuration.
func NewSelector(articles ports.ArticleStore, topics ports.TopicStore, search ports.SearchClient, fetcher ports.PageFetcher, cfg config.SourcesConfig, logger *slog.Logger) *Selector {
	return &Selector{
		articles: articles,
		topics:   topics,
		search:   search,
		fetcher:  fetcher,
		mode:     cfg.Mode,
		attempts: cfg.SelectorAttempts,
		logger:   logger,
		now:      time.Now,
	}
}

// SelectNext returns the next selection, avoiding topics overlapping any of
// the recently used ones.
func (s *Selector) SelectNext(ctx context.Context, recentTopics []string) (Selection, error) {
	switch s.mode {
	case "articles":
		return s.selectArticle(ctx)
	case "discovery":
		return s.selectDiscovery(ctx, recentTopics)
	default: // auto: prefer the article queue, fall back to discovery
		selection, err := s.selectArticle(ctx)
		if errors.Is(err, domain.ErrNotFound) {
			return s.selectDiscovery(ctx, recentTopics)
		}
		return selection, err
	}
}

// selectArticle consumes the oldest pending article. A fetch failure marks
// the article failed and is a hard stop for that item, not retried here.
func (s *Selector) selectArticle(ctx context.Context) (Selection, error) {
	article, err := s.articles.OldestPending(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Selection{}, domain.ErrNotFound
		}
		return Selection{}, fmt.Errorf("oldest pending article: %w", err)
	}

	content, err := s.fetcher.Fetch(ctx, article.URL)
	if err == nil && content == "" {
		err = fmt.Errorf("article content unavailable")
	}
	if err != nil {
		note := fmt.Sprintf("fetch failed: %v", err)
		if markErr := s.articles.SetStatus(ctx, article.URL, domain.ArticleFailed, note); markErr != nil {
			s.warn("mark article failed", "url", article.URL, "error", markErr)
		}
		return Selection{}, fmt.Errorf("fetch article %s: %w", article.URL, err)
	}

	topic := article.Title
	if topic == "" {
		topic = article.URL
	}

	return Selection{
		Topic:     topic,
		Context:   content,
		SourceRef: article.URL,
		Article:   &article,
	}, nil
}

// selectDiscovery picks the least-recently-used topic seed, refines it
// through a broad search, then builds generation context with a deeper
// search restricted to the refined topic.
func (s *Selector) selectDiscovery(ctx context.Context, recentTopics []string) (Selection, error) {
	seed, err := s.pickSeed(ctx, recentTopics)
	if err != nil {
		return Selection{}, err
	}

	if err := s.topics.TouchLastUsed(ctx, seed.ID, s.now()); err != nil {
		s.warn("touch topic", "topic", seed.Text, "error", err)
	}

	broad, err := s.search.Search(ctx, seed.Text, broadSearchDepth, broadSearchResults)
	if err != nil {
		return Selection{}, fmt.Errorf("broad search %q: %w", seed.Text, err)
	}

	candidates := refineCandidates(broad, recentTopics)
	if len(candidates) == 0 {
		return Selection{}, fmt.Errorf("%w: no fresh candidate for seed %q", ErrNoWork, seed.Text)
	}
	if len(candidates) > s.attempts {
		candidates = candidates[:s.attempts]
	}

	for _, candidate := range candidates {
		deep, err := s.search.Search(ctx, candidate, deepSearchDepth, deepSearchResults)
		if err != nil {
			s.warn("deep search", "candidate", candidate, "error", err)
			continue
		}

		context := joinResultContents(deep)
		if context == "" {
			continue
		}

		return Selection{
			Topic:     candidate,
			Context:   context,
			SourceRef: seed.Text,
		}, nil
	}

	return Selection{}, fmt.Errorf("%w: no candidate with usable context for seed %q", ErrNoWork, seed.Text)
}

// pickSeed returns the least-recently-used topic not overlapping recent
// topics. When every seed overlaps, the oldest one is picked anyway rather
// than stalling the pipeline.
func (s *Selector) pickSeed(ctx context.Context, recentTopics []string) (domain.SearchTopic, error) {
	seeds, err := s.topics.LeastRecentlyUsed(ctx, topicSeedLimit)
	if err != nil {
		return domain.SearchTopic{}, fmt.Errorf("load topic seeds: %w", err)
	}
	if len(seeds) == 0 {
		return domain.SearchTopic{}, fmt.Errorf("%w: topic table is empty", ErrNoWork)
	}

	for _, seed := range seeds {
		if !overlapsAny(seed.Text, recentTopics) {
			return seed, nil
		}
	}
	return seeds[0], nil
}

// refineCandidates extracts result titles not overlapping recent topics.
func refineCandidates(results []ports.SearchResult, recentTopics []string) []string {
	var candidates []string
	for _, r := range results {
		title := strings.TrimSpace(r.Title)
		if title == "" || overlapsAny(title, recentTopics) {
			continue
		}
		candidates = append(candidates, title)
	}
	return candidates
}

// overlapsAny reports a case-insensitive substring match in either direction
// between candidate and any recent topic.
func overlapsAny(candidate string, recent []string) bool {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if c == "" {
		return false
	}
	for _, r := range recent {
		t := strings.ToLower(strings.TrimSpace(r))
		if t == "" {
			continue
		}
		if strings.Contains(c, t) || strings.Contains(t, c) {
			return true
		}
	}
	return false
}

func joinResultContents(results []ports.SearchResult) string {
	var parts []string
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *Selector) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
