package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a guarded status transition matched zero rows,
// meaning another invocation already moved the record.
var ErrConflict = errors.New("status transition conflict")

// ErrAuthExpired distinguishes a dead authentication session from transient
// publish failures: the former needs an operator, the latter a later retry.
var ErrAuthExpired = errors.New("authentication session expired")

// PostStatus enumerates the scheduled-post lifecycle.
type PostStatus string

const (
	StatusGenerationInProgress PostStatus = "generation_in_progress"
	StatusReadyToPost          PostStatus = "ready_to_post"
	StatusGenerationFailed     PostStatus = "generation_failed"
	StatusPosted               PostStatus = "posted"
	StatusFailedToPost         PostStatus = "failed_to_post"
	StatusMissedSchedule       PostStatus = "missed_schedule"
)

// Terminal reports whether no further transition is allowed from s.
func (s PostStatus) Terminal() bool {
	switch s {
	case StatusGenerationFailed, StatusPosted, StatusFailedToPost, StatusMissedSchedule:
		return true
	}
	return false
}

// URLUnknown marks a publication confirmed without a recoverable permalink.
const URLUnknown = "unknown"

// GenerationMetadata keeps the raw model output for audit. Control flow never
// reads it back.
type GenerationMetadata struct {
	RawReply      string `json:"raw_reply,omitempty"`
	AlignmentNote string `json:"alignment_note,omitempty"`
	ReportedTopic string `json:"reported_topic,omitempty"`
	Attempts      int    `json:"attempts,omitempty"`
}

// ScheduledPost is the persistent unit of scheduled work. ScheduledTime is
// set once at creation; rescheduling means creating a new record.
type ScheduledPost struct {
	ID              string
	Topic           string
	Body            string
	Status          PostStatus
	ScheduledTime   time.Time
	PublishedURL    string
	PublishedTime   *time.Time
	ErrorMessage    string
	Metadata        GenerationMetadata
	SourceReference string
	CreatedAt       time.Time
}

// ArticleStatus tracks the external article queue consumed in article mode.
type ArticleStatus string

const (
	ArticlePending   ArticleStatus = "pending"
	ArticleProcessed ArticleStatus = "processed"
	ArticlePosted    ArticleStatus = "posted"
	ArticleFailed    ArticleStatus = "failed"
)

// Article is a queued source document, keyed by URL.
type Article struct {
	URL       string
	Title     string
	Status    ArticleStatus
	AddedAt   time.Time
	ErrorNote string
}

// SearchTopic is a reusable discovery seed. LastUsedAt drives LRU selection
// and is touched as a side effect of being picked.
type SearchTopic struct {
	ID         string
	Text       string
	Category   string
	LastUsedAt time.Time
}
