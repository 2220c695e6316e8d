package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// ArticleRepository reads the externally fed article queue and writes back
// per-article status.
type ArticleRepository struct {
	db *sql.DB
}

var _ ports.ArticleStore = (*ArticleRepository)(nil)

// NewArticleRepository wires a sql.DB implementation.
func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// OldestPending returns the pending article queued longest ago.
func (r *ArticleRepository) OldestPending(ctx context.Context) (domain.Article, error) {
	query, args, err := psql.Select("url", "title", "status", "added_at", "error_note").
		From("articles").
		Where(sq.Eq{"status": string(domain.ArticlePending)}).
		OrderBy("added_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build oldest pending: %w", err)
	}

	var (
		article domain.Article
		status  string
		note    sql.NullString
	)
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&article.URL, &article.Title, &status, &article.AddedAt, &note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Article{}, domain.ErrNotFound
		}
		return domain.Article{}, fmt.Errorf("query oldest pending: %w", err)
	}
	article.Status = domain.ArticleStatus(status)
	article.ErrorNote = note.String
	return article, nil
}

// SetStatus writes back the article outcome, keyed by URL.
func (r *ArticleRepository) SetStatus(ctx context.Context, url string, status domain.ArticleStatus, note string) error {
	builder := psql.Update("articles").
		Set("status", string(status)).
		Where(sq.Eq{"url": url})
	if note != "" {
		builder = builder.Set("error_note", note)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build set status: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set article status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("affected rows: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
