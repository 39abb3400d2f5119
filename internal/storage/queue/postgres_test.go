package queue

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskCols = []string{"id", "seq", "scope_kind", "candidate_id", "opportunity_id", "priority", "status",
	"attempts", "max_attempts", "trigger_reason", "last_error", "created_at", "processed_at", "completed_at"}

var created = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newMockQueue(t *testing.T) (*PostgresQueue, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresQueue(db, 3), mock
}

func TestPostgresQueue_EnqueueInserts(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("SET priority = GREATEST(priority, $4)")).
		WithArgs("CANDIDATE", "c1", "", 4, "skills-updated").
		WillReturnRows(sqlmock.NewRows(taskCols))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO recompute_tasks")).
		WithArgs(sqlmock.AnyArg(), "CANDIDATE", "c1", "", 4, 3, "skills-updated").
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("t-1", 1, "CANDIDATE", "c1", "", 4, "PENDING", 0, 3, "skills-updated", "", created, nil, nil))

	task, err := q.Enqueue(context.Background(), models.CandidateScope("c1"), "skills-updated", 4)
	require.NoError(t, err)
	assert.Equal(t, "t-1", task.ID)
	assert.Equal(t, models.CandidateScope("c1"), task.Scope)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.Nil(t, task.ProcessedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_EnqueueCoalesces(t *testing.T) {
	q, mock := newMockQueue(t)

	// the merge happens against the locked row, so only the new reason is sent
	mock.ExpectQuery(regexp.QuoteMeta("position($5::text in trigger_reason) > 0")).
		WithArgs("PAIR", "c1", "o1", 5, "manual:ops:fix").
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("t-9", 4, "PAIR", "c1", "o1", 5, "PENDING", 0, 3, "opportunity-updated; manual:ops:fix", "", created, nil, nil))

	task, err := q.Enqueue(context.Background(), models.PairScope("c1", "o1"), "manual:ops:fix", 5)
	require.NoError(t, err)
	assert.Equal(t, "t-9", task.ID)
	assert.Equal(t, 5, task.Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_EnqueueCoalesceError(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("SET priority = GREATEST(priority, $4)")).
		WithArgs("OPPORTUNITY", "", "o1", 3, "opportunity-updated").
		WillReturnError(errors.New("connection reset"))

	_, err := q.Enqueue(context.Background(), models.OpportunityScope("o1"), "opportunity-updated", 3)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_EnqueueTruncatesLongReason(t *testing.T) {
	q, mock := newMockQueue(t)
	reason := strings.Repeat("é", maxReasonLength+10)
	want := strings.Repeat("é", maxReasonLength)

	mock.ExpectQuery(regexp.QuoteMeta("SET priority = GREATEST(priority, $4)")).
		WithArgs("CANDIDATE", "c1", "", 2, want).
		WillReturnRows(sqlmock.NewRows(taskCols))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO recompute_tasks")).
		WithArgs(sqlmock.AnyArg(), "CANDIDATE", "c1", "", 2, 3, want).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("t-2", 2, "CANDIDATE", "c1", "", 2, "PENDING", 0, 3, want, "", created, nil, nil))

	_, err := q.Enqueue(context.Background(), models.CandidateScope("c1"), reason, 2)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_ClaimBatchSortsResult(t *testing.T) {
	q, mock := newMockQueue(t)
	processed := created.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(taskCols).
			AddRow("low", 3, "CANDIDATE", "c3", "", 1, "PROCESSING", 0, 3, "", "", created, processed, nil).
			AddRow("high", 2, "OPPORTUNITY", "", "o1", 5, "PROCESSING", 0, 3, "", "", created, processed, nil).
			AddRow("mid", 1, "PAIR", "c1", "o1", 3, "PROCESSING", 1, 3, "", "timeout", created, processed, nil))

	batch, err := q.ClaimBatch(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{batch[0].ID, batch[1].ID, batch[2].ID})
	assert.Equal(t, processed, *batch[0].ProcessedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_MarkFailed(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectQuery(regexp.QuoteMeta("CASE WHEN attempts + 1 >= max_attempts THEN 'FAILED' ELSE 'PENDING' END")).
		WithArgs("t-1", "boom").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("FAILED"))
	mock.ExpectQuery(regexp.QuoteMeta("RETURNING status")).
		WithArgs("t-2", "boom").
		WillReturnError(sql.ErrNoRows)

	status, err := q.MarkFailed(context.Background(), "t-1", "boom")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, status)

	_, err = q.MarkFailed(context.Background(), "t-2", "boom")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTaskNotClaimed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_MarkCompletedRequiresClaim(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'COMPLETED'")).
		WithArgs("t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'COMPLETED'")).
		WithArgs("t-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'FAILED', last_error = $2")).
		WithArgs("t-3", "CANDIDATE_NOT_FOUND").
		WillReturnError(errors.New("conn closed"))

	require.NoError(t, q.MarkCompleted(context.Background(), "t-1"))
	err := q.MarkCompleted(context.Background(), "t-2")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTaskNotClaimed))
	err = q.MarkFailedPermanently(context.Background(), "t-3", "CANDIDATE_NOT_FOUND")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_Maintenance(t *testing.T) {
	q, mock := newMockQueue(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM recompute_tasks")).
		WithArgs((7 * 24 * time.Hour).Milliseconds()).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(regexp.QuoteMeta("AND processed_at < NOW()")).
		WithArgs((10 * time.Minute).Milliseconds(), staleClaimError).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := q.PurgeOlderThan(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = q.RequeueStale(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueue_Status(t *testing.T) {
	q, mock := newMockQueue(t)
	now := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE status = 'PENDING')")).
		WithArgs(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(sqlmock.NewRows([]string{"pending", "processing", "completed", "failed", "oldest"}).
			AddRow(4, 1, 20, 2, now.Add(-90*time.Second)))

	st, err := q.Status(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatus{
		Pending: 4, Processing: 1, CompletedToday: 20, FailedToday: 2, OldestPendingAgeMs: 90000,
	}, st)
	assert.NoError(t, mock.ExpectationsWereMet())
}
