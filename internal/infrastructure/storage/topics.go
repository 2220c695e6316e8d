package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// TopicRepository reads discovery seeds ordered by least recent use.
type TopicRepository struct {
	db *sql.DB
}

var _ ports.TopicStore = (*TopicRepository)(nil)

// NewTopicRepository wires a sql.DB implementation.
func NewTopicRepository(db *sql.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// LeastRecentlyUsed returns up to limit topics, least recently used first.
func (r *TopicRepository) LeastRecentlyUsed(ctx context.Context, limit int) ([]domain.SearchTopic, error) {
	query, args, err := psql.Select("id", "topic", "category", "last_used_at").
		From("search_topics").
		OrderBy("last_used_at ASC NULLS FIRST").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lru topics: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lru topics: %w", err)
	}
	defer rows.Close()

	var topics []domain.SearchTopic
	for rows.Next() {
		var (
			topic    domain.SearchTopic
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&topic.ID, &topic.Text, &topic.Category, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		if lastUsed.Valid {
			topic.LastUsedAt = lastUsed.Time
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return topics, nil
}

// TouchLastUsed stamps the topic as just used. Topics are never deleted here.
func (r *TopicRepository) TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	query, args, err := psql.Update("search_topics").
		Set("last_used_at", usedAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch topic: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch topic: %w", err)
	}
	return nil
}
