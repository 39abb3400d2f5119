package audit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(start time.Time, claimed int) models.RunAuditEntry {
	return models.RunAuditEntry{
		StartedAt:      start,
		FinishedAt:     start.Add(250 * time.Millisecond),
		DurationMs:     250,
		TasksClaimed:   claimed,
		TasksCompleted: claimed,
		ScoresWritten:  claimed * 4,
		Success:        true,
	}
}

func TestMemoryLog_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryLog()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, entryAt(base, 1)))
	require.NoError(t, log.Append(ctx, entryAt(base.Add(time.Minute), 2)))
	require.NoError(t, log.Append(ctx, entryAt(base.Add(time.Minute), 3)))
	require.NoError(t, log.Append(ctx, entryAt(base.Add(-time.Minute), 4)))

	got, err := log.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{got[0].TasksClaimed, got[1].TasksClaimed, got[2].TasksClaimed})
	for _, e := range got {
		assert.NotEmpty(t, e.ID)
	}

	all, err := log.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestPostgresLog_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := entryAt(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), 5)
	e.ID = "run-1"
	e.TasksFailed = 1
	e.Success = false
	e.ErrorSummary = "PROFILE_FETCH_FAILED x1"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO run_audit_log")).
		WithArgs("run-1", e.StartedAt, e.FinishedAt, int64(250), 5, 5, 1, 20, false, "PROFILE_FETCH_FAILED x1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO run_audit_log")).
		WillReturnError(errors.New("connection reset"))

	log := NewPostgresLog(db)
	require.NoError(t, log.Append(context.Background(), e))

	err = log.Append(context.Background(), e)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLog_Recent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	cols := []string{"id", "started_at", "finished_at", "duration_ms", "tasks_claimed", "tasks_completed",
		"tasks_failed", "scores_written", "success", "error_summary"}
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC, seq DESC")).
		WithArgs(DefaultLimit).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("run-2", start.Add(time.Minute), start.Add(61*time.Second), 1000, 3, 3, 0, 9, true, "").
			AddRow("run-1", start, start.Add(time.Second), 1000, 1, 0, 1, 0, false, "TASK_TIMEOUT x1"))

	got, err := NewPostgresLog(db).Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].ID)
	assert.Equal(t, 9, got[0].ScoresWritten)
	assert.False(t, got[1].Success)
	assert.Equal(t, "TASK_TIMEOUT x1", got[1].ErrorSummary)
	assert.NoError(t, mock.ExpectationsWereMet())
}
