package ports

import (
	"context"
	"time"

	"SocialPoster/internal/domain"
)

// PostStore persists scheduled posts. Status writes are guarded: the store
// only applies a transition when the record still carries the expected prior
// status, returning domain.ErrConflict otherwise.
type PostStore interface {
	Insert(ctx context.Context, post domain.ScheduledPost) error
	// Transition moves id from expected to next, merging the non-zero fields
	// of patch (topic, body, metadata, published url/time, error message).
	Transition(ctx context.Context, id string, expected, next domain.PostStatus, patch domain.ScheduledPost) error
	// EarliestReady returns the earliest ready_to_post record whose scheduled
	// time falls inside [now-grace, now+buffer]: due or slightly early, and
	// not yet past the grace window.
	EarliestReady(ctx context.Context, now time.Time, buffer, grace time.Duration) (domain.ScheduledPost, error)
	// AnyReady reports whether any unexpired ready_to_post record exists.
	AnyReady(ctx context.Context, now time.Time, grace time.Duration) (bool, error)
	// LastPostedAt returns the published time of the most recent posted
	// record, or domain.ErrNotFound when nothing was ever published.
	LastPostedAt(ctx context.Context) (time.Time, error)
	// RecentTopics returns the topics of the latest n records, newest first.
	RecentTopics(ctx context.Context, n int) ([]string, error)
	// StaleReady returns ready_to_post records scheduled before cutoff.
	StaleReady(ctx context.Context, cutoff time.Time) ([]domain.ScheduledPost, error)
}

// ArticleStore exposes the externally fed article queue.
type ArticleStore interface {
	OldestPending(ctx context.Context) (domain.Article, error)
	SetStatus(ctx context.Context, url string, status domain.ArticleStatus, note string) error
}

// TopicStore exposes discovery seeds ordered by least recent use.
type TopicStore interface {
	LeastRecentlyUsed(ctx context.Context, limit int) ([]domain.SearchTopic, error)
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error
}

// SystemEventStore records best-effort audit rows for failures that escape
// the orchestrator.
type SystemEventStore interface {
	RecordError(ctx context.Context, component, message string) error
}

// TextModel issues one completion call against a generative text service.
type TextModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// SearchResult is one hit from the external search service.
type SearchResult struct {
	Title   string
	URL     string
	Content string
}

// SearchClient performs external topic search at a given depth.
type SearchClient interface {
	Search(ctx context.Context, query, depth string, maxResults int) ([]SearchResult, error)
}

// PageFetcher downloads a document and reduces it to readable text.
// A network error or non-200 response yields empty text and no error.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// PublishOutcome classifies one publish attempt.
type PublishOutcome struct {
	Confirmed bool
	// URL is the recovered permalink, or domain.URLUnknown when the platform
	// confirmed the post but the permalink could not be recovered.
	URL string
}

// PostPublisher drives the browser-automation surface.
type PostPublisher interface {
	// VerifySession checks the authenticated-state marker without publishing.
	VerifySession(ctx context.Context) (bool, error)
	// Publish performs one full attempt: fresh navigation, compose, submit.
	Publish(ctx context.Context, text string) (PublishOutcome, error)
}

// Alerter pushes operator notifications for conditions that need a human.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}
