package audit

import (
	"context"
	"database/sql"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"

	"github.com/google/uuid"
)

const appendSQL = `
INSERT INTO run_audit_log (
    id, started_at, finished_at, duration_ms, tasks_claimed, tasks_completed,
    tasks_failed, scores_written, success, error_summary
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const recentSQL = `
SELECT id, started_at, finished_at, duration_ms, tasks_claimed, tasks_completed,
       tasks_failed, scores_written, success, error_summary
FROM run_audit_log
ORDER BY started_at DESC, seq DESC
LIMIT $1`

type PostgresLog struct {
	db *sql.DB
}

func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append stores entry, assigning an id when it has none.
func (l *PostgresLog) Append(ctx context.Context, entry models.RunAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := l.db.ExecContext(ctx, appendSQL,
		entry.ID, entry.StartedAt.UTC(), entry.FinishedAt.UTC(), entry.DurationMs,
		entry.TasksClaimed, entry.TasksCompleted, entry.TasksFailed, entry.ScoresWritten,
		entry.Success, entry.ErrorSummary,
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("audit_append", err)
	}
	return nil
}

func (l *PostgresLog) Recent(ctx context.Context, limit int) ([]models.RunAuditEntry, error) {
	rows, err := l.db.QueryContext(ctx, recentSQL, NormalizeLimit(limit))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("audit_recent", err)
	}
	defer rows.Close()

	entries := make([]models.RunAuditEntry, 0)
	for rows.Next() {
		var e models.RunAuditEntry
		if err := rows.Scan(&e.ID, &e.StartedAt, &e.FinishedAt, &e.DurationMs, &e.TasksClaimed,
			&e.TasksCompleted, &e.TasksFailed, &e.ScoresWritten, &e.Success, &e.ErrorSummary); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("audit_recent", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("audit_recent", err)
	}
	return entries, nil
}
