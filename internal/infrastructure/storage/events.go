package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SocialPoster/internal/ports"
)

// SystemEventRepository appends audit rows for failures that escape the
// orchestrator. Writes are best-effort; callers may ignore the error.
type SystemEventRepository struct {
	db *sql.DB
}

var _ ports.SystemEventStore = (*SystemEventRepository)(nil)

// NewSystemEventRepository wires a sql.DB implementation.
func NewSystemEventRepository(db *sql.DB) *SystemEventRepository {
	return &SystemEventRepository{db: db}
}

// RecordError appends one error row.
func (r *SystemEventRepository) RecordError(ctx context.Context, component, message string) error {
	query, args, err := psql.Insert("system_events").
		Columns("id", "component", "message", "created_at").
		Values(uuid.NewString(), component, message, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build event insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
