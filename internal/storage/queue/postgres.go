package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"

	"github.com/google/uuid"
)

const taskColumns = `id, seq, scope_kind, candidate_id, opportunity_id, priority, status,
    attempts, max_attempts, trigger_reason, last_error, created_at, processed_at, completed_at`

// coalesceSQL folds a request into the oldest unlocked PENDING task of the
// scope. The reason is merged against the row being updated, in the same
// statement, with the rules of mergeReason.
var coalesceSQL = `
UPDATE recompute_tasks
SET priority = GREATEST(priority, $4),
    trigger_reason = CASE
        WHEN $5::text = '' OR position($5::text in trigger_reason) > 0 THEN trigger_reason
        WHEN trigger_reason = '' THEN $5::text
        ELSE left(trigger_reason || '; ' || $5::text, ` + strconv.Itoa(maxReasonLength) + `)
    END
WHERE id = (
    SELECT id FROM recompute_tasks
    WHERE status = 'PENDING' AND scope_kind = $1 AND candidate_id = $2 AND opportunity_id = $3
    ORDER BY created_at ASC, seq ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + taskColumns

const insertTaskSQL = `
INSERT INTO recompute_tasks (id, scope_kind, candidate_id, opportunity_id, priority, status, max_attempts, trigger_reason)
VALUES ($1, $2, $3, $4, $5, 'PENDING', $6, $7)
RETURNING ` + taskColumns

const claimSQL = `
UPDATE recompute_tasks
SET status = 'PROCESSING', processed_at = NOW()
WHERE id IN (
    SELECT id FROM recompute_tasks
    WHERE status = 'PENDING'
    ORDER BY priority DESC, created_at ASC, seq ASC
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + taskColumns

const markCompletedSQL = `
UPDATE recompute_tasks
SET status = 'COMPLETED', completed_at = NOW(), last_error = ''
WHERE id = $1 AND status = 'PROCESSING'`

const markFailedSQL = `
UPDATE recompute_tasks
SET attempts = attempts + 1,
    last_error = $2,
    status = CASE WHEN attempts + 1 >= max_attempts THEN 'FAILED' ELSE 'PENDING' END,
    completed_at = CASE WHEN attempts + 1 >= max_attempts THEN NOW() ELSE NULL END
WHERE id = $1 AND status = 'PROCESSING'
RETURNING status`

const markFailedPermanentlySQL = `
UPDATE recompute_tasks
SET status = 'FAILED', last_error = $2, completed_at = NOW()
WHERE id = $1 AND status = 'PROCESSING'`

const purgeSQL = `
DELETE FROM recompute_tasks
WHERE status IN ('COMPLETED', 'FAILED')
  AND COALESCE(completed_at, created_at) < NOW() - ($1 * INTERVAL '1 millisecond')`

const requeueStaleSQL = `
UPDATE recompute_tasks
SET attempts = attempts + 1,
    last_error = $2,
    status = CASE WHEN attempts + 1 >= max_attempts THEN 'FAILED' ELSE 'PENDING' END,
    completed_at = CASE WHEN attempts + 1 >= max_attempts THEN NOW() ELSE NULL END
WHERE status = 'PROCESSING'
  AND processed_at < NOW() - ($1 * INTERVAL '1 millisecond')`

const statusSQL = `
SELECT
    COUNT(*) FILTER (WHERE status = 'PENDING'),
    COUNT(*) FILTER (WHERE status = 'PROCESSING'),
    COUNT(*) FILTER (WHERE status = 'COMPLETED' AND completed_at >= $1),
    COUNT(*) FILTER (WHERE status = 'FAILED' AND completed_at >= $1),
    MIN(created_at) FILTER (WHERE status = 'PENDING')
FROM recompute_tasks`

// PostgresQueue stores tasks in recompute_tasks. Claims lock rows with
// FOR UPDATE SKIP LOCKED so several processes can share one queue.
type PostgresQueue struct {
	db          *sql.DB
	maxAttempts int
}

func NewPostgresQueue(db *sql.DB, maxAttempts int) *PostgresQueue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &PostgresQueue{db: db, maxAttempts: maxAttempts}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (sequenced, error) {
	var (
		t                        models.RecomputationTask
		seq                      int64
		kind                     string
		candidateID, oppID       string
		status                   string
		processedAt, completedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &seq, &kind, &candidateID, &oppID, &t.Priority, &status,
		&t.Attempts, &t.MaxAttempts, &t.TriggerReason, &t.LastError, &t.CreatedAt, &processedAt, &completedAt)
	if err != nil {
		return sequenced{}, err
	}
	scope, err := models.NewTaskScope(models.ScopeKind(kind), candidateID, oppID)
	if err != nil {
		return sequenced{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	t.Scope = scope
	t.Status = models.TaskStatus(status)
	if processedAt.Valid {
		v := processedAt.Time
		t.ProcessedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return sequenced{task: t, seq: seq}, nil
}

func (q *PostgresQueue) Enqueue(ctx context.Context, scope models.TaskScope, reason string, priority int) (*models.RecomputationTask, error) {
	if err := validateEnqueue(scope, priority); err != nil {
		return nil, err
	}
	kind, cID, oID := string(scope.Kind()), scope.CandidateID(), scope.OpportunityID()

	reason = truncateReason(reason)

	s, err := scanTask(q.db.QueryRowContext(ctx, coalesceSQL, kind, cID, oID, priority, reason))
	switch {
	case err == nil:
		return &s.task, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, apperrors.NewQueryExecutionFailedError("enqueue_coalesce", err)
	}

	row := q.db.QueryRowContext(ctx, insertTaskSQL,
		uuid.NewString(), kind, cID, oID, priority, q.maxAttempts, reason)
	s, err = scanTask(row)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("enqueue_insert", err)
	}
	return &s.task, nil
}

func (q *PostgresQueue) ClaimBatch(ctx context.Context, n int) ([]models.RecomputationTask, error) {
	if n <= 0 {
		return []models.RecomputationTask{}, nil
	}
	rows, err := q.db.QueryContext(ctx, claimSQL, n)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("claim_batch", err)
	}
	defer rows.Close()

	batch := make([]sequenced, 0, n)
	for rows.Next() {
		s, err := scanTask(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("claim_batch", err)
		}
		batch = append(batch, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("claim_batch", err)
	}
	return sortClaimed(batch), nil
}

func (q *PostgresQueue) MarkCompleted(ctx context.Context, id string) error {
	return q.execClaimed(ctx, "mark_completed", id, markCompletedSQL, id)
}

func (q *PostgresQueue) MarkFailedPermanently(ctx context.Context, id, cause string) error {
	return q.execClaimed(ctx, "mark_failed_permanently", id, markFailedPermanentlySQL, id, cause)
}

func (q *PostgresQueue) execClaimed(ctx context.Context, op, id, query string, args ...interface{}) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError(op, err)
	}
	if n == 0 {
		return apperrors.NewTaskNotClaimedError(id)
	}
	return nil
}

func (q *PostgresQueue) MarkFailed(ctx context.Context, id, cause string) (models.TaskStatus, error) {
	var status string
	err := q.db.QueryRowContext(ctx, markFailedSQL, id, cause).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewTaskNotClaimedError(id)
	}
	if err != nil {
		return "", apperrors.NewQueryExecutionFailedError("mark_failed", err)
	}
	return models.TaskStatus(status), nil
}

func (q *PostgresQueue) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	res, err := q.db.ExecContext(ctx, purgeSQL, age.Milliseconds())
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("purge", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (q *PostgresQueue) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := q.db.ExecContext(ctx, requeueStaleSQL, olderThan.Milliseconds(), staleClaimError)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("requeue_stale", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (q *PostgresQueue) Status(ctx context.Context, now time.Time) (models.QueueStatus, error) {
	var (
		st     models.QueueStatus
		oldest sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, statusSQL, startOfDay(now)).
		Scan(&st.Pending, &st.Processing, &st.CompletedToday, &st.FailedToday, &oldest)
	if err != nil {
		return models.QueueStatus{}, apperrors.NewQueryExecutionFailedError("queue_status", err)
	}
	if oldest.Valid {
		if age := now.Sub(oldest.Time).Milliseconds(); age > 0 {
			st.OldestPendingAgeMs = age
		}
	}
	return st, nil
}
