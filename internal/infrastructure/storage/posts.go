package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

const postColumns = `id, topic, body, status, scheduled_time, published_url,
	published_time, error_message, generation_metadata, source_reference, created_at`

// PostRepository persists scheduled posts in the scheduled_posts table.
type PostRepository struct {
	db *sql.DB
}

var _ ports.PostStore = (*PostRepository)(nil)

// NewPostRepository wires a sql.DB implementation.
func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Insert stores a freshly created record.
func (r *PostRepository) Insert(ctx context.Context, post domain.ScheduledPost) error {
	meta, err := json.Marshal(post.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query, args, err := psql.Insert("scheduled_posts").
		Columns("id", "topic", "body", "status", "scheduled_time", "published_url",
			"published_time", "error_message", "generation_metadata", "source_reference", "created_at").
		Values(post.ID, nullString(post.Topic), nullString(post.Body), string(post.Status),
			post.ScheduledTime, nullString(post.PublishedURL), post.PublishedTime,
			nullString(post.ErrorMessage), meta, nullString(post.SourceReference), post.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// Transition applies a status change guarded by the expected prior status.
// When a concurrent invocation already moved the record the update matches
// zero rows and domain.ErrConflict is returned.
func (r *PostRepository) Transition(ctx context.Context, id string, expected, next domain.PostStatus, patch domain.ScheduledPost) error {
	builder := psql.Update("scheduled_posts").
		Set("status", string(next)).
		Where(sq.Eq{"id": id, "status": string(expected)})

	if patch.Topic != "" {
		builder = builder.Set("topic", patch.Topic)
	}
	if patch.Body != "" {
		builder = builder.Set("body", patch.Body)
	}
	if patch.Metadata != (domain.GenerationMetadata{}) {
		meta, err := json.Marshal(patch.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		builder = builder.Set("generation_metadata", meta)
	}
	if patch.PublishedURL != "" {
		builder = builder.Set("published_url", patch.PublishedURL)
	}
	if patch.PublishedTime != nil {
		builder = builder.Set("published_time", *patch.PublishedTime)
	}
	if patch.ErrorMessage != "" {
		builder = builder.Set("error_message", patch.ErrorMessage)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build transition: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition post: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrConflict
	}
	return nil
}

// EarliestReady returns the earliest ready_to_post record whose scheduled
// time lies within the posting window [now-grace, now+buffer].
func (r *PostRepository) EarliestReady(ctx context.Context, now time.Time, buffer, grace time.Duration) (domain.ScheduledPost, error) {
	query, args, err := psql.Select(postColumns).
		From("scheduled_posts").
		Where(sq.Eq{"status": string(domain.StatusReadyToPost)}).
		Where(sq.GtOrEq{"scheduled_time": now.Add(-grace)}).
		Where(sq.LtOrEq{"scheduled_time": now.Add(buffer)}).
		OrderBy("scheduled_time ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.ScheduledPost{}, fmt.Errorf("build earliest ready: %w", err)
	}

	return r.scanOne(ctx, query, args)
}

// AnyReady reports whether an unexpired ready_to_post record exists.
func (r *PostRepository) AnyReady(ctx context.Context, now time.Time, grace time.Duration) (bool, error) {
	query, args, err := psql.Select("COUNT(1)").
		From("scheduled_posts").
		Where(sq.Eq{"status": string(domain.StatusReadyToPost)}).
		Where(sq.GtOrEq{"scheduled_time": now.Add(-grace)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build any ready: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("count ready: %w", err)
	}
	return count > 0, nil
}

// LastPostedAt returns the most recent confirmed publication time.
func (r *PostRepository) LastPostedAt(ctx context.Context) (time.Time, error) {
	query, args, err := psql.Select("published_time").
		From("scheduled_posts").
		Where(sq.Eq{"status": string(domain.StatusPosted)}).
		Where("published_time IS NOT NULL").
		OrderBy("published_time DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("build last posted: %w", err)
	}

	var at time.Time
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, domain.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("query last posted: %w", err)
	}
	return at, nil
}

// RecentTopics returns the topics of the latest n records, newest first.
func (r *PostRepository) RecentTopics(ctx context.Context, n int) ([]string, error) {
	query, args, err := psql.Select("topic").
		From("scheduled_posts").
		Where("topic IS NOT NULL AND topic <> ''").
		OrderBy("created_at DESC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent topics: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return topics, nil
}

// StaleReady returns ready_to_post records scheduled before cutoff. Records
// in any other status are excluded, which keeps the reconciler idempotent.
func (r *PostRepository) StaleReady(ctx context.Context, cutoff time.Time) ([]domain.ScheduledPost, error) {
	query, args, err := psql.Select(postColumns).
		From("scheduled_posts").
		Where(sq.Eq{"status": string(domain.StatusReadyToPost)}).
		Where(sq.Lt{"scheduled_time": cutoff}).
		OrderBy("scheduled_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stale ready: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stale ready: %w", err)
	}
	defer rows.Close()

	var posts []domain.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

func (r *PostRepository) scanOne(ctx context.Context, query string, args []interface{}) (domain.ScheduledPost, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.ScheduledPost{}, fmt.Errorf("query post: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.ScheduledPost{}, fmt.Errorf("rows iteration: %w", err)
		}
		return domain.ScheduledPost{}, domain.ErrNotFound
	}
	return scanPost(rows)
}

func scanPost(rows *sql.Rows) (domain.ScheduledPost, error) {
	var (
		post      domain.ScheduledPost
		topic     sql.NullString
		body      sql.NullString
		status    string
		pubURL    sql.NullString
		pubTime   sql.NullTime
		errMsg    sql.NullString
		meta      []byte
		sourceRef sql.NullString
	)

	err := rows.Scan(&post.ID, &topic, &body, &status, &post.ScheduledTime,
		&pubURL, &pubTime, &errMsg, &meta, &sourceRef, &post.CreatedAt)
	if err != nil {
		return domain.ScheduledPost{}, fmt.Errorf("scan post: %w", err)
	}

	post.Topic = topic.String
	post.Body = body.String
	post.Status = domain.PostStatus(status)
	post.PublishedURL = pubURL.String
	if pubTime.Valid {
		t := pubTime.Time
		post.PublishedTime = &t
	}
	post.ErrorMessage = errMsg.String
	post.SourceReference = sourceRef.String
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &post.Metadata); err != nil {
			return domain.ScheduledPost{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return post, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
