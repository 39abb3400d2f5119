// Package queue is the persistent recomputation task queue.
package queue

import (
	"context"
	"sort"
	"strings"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"
)

const (
	MinPriority        = 1
	MaxPriority        = 10
	DefaultMaxAttempts = 3

	staleClaimError = "claim expired before completion"
	maxReasonLength = 1024
)

// Queue is the RecomputationQueue. ClaimBatch is atomic: two concurrent
// callers never receive the same task. Mark operations only act on tasks in
// PROCESSING and return TASK_NOT_CLAIMED otherwise.
type Queue interface {
	// Enqueue adds a PENDING task, or folds the request into an existing
	// PENDING task for the same scope by raising its priority and appending
	// the reason.
	Enqueue(ctx context.Context, scope models.TaskScope, reason string, priority int) (*models.RecomputationTask, error)
	ClaimBatch(ctx context.Context, n int) ([]models.RecomputationTask, error)
	MarkCompleted(ctx context.Context, id string) error
	// MarkFailed records a failed attempt and returns the resulting status:
	// PENDING while attempts remain, FAILED once they are exhausted.
	MarkFailed(ctx context.Context, id, cause string) (models.TaskStatus, error)
	// MarkFailedPermanently moves a task to FAILED without consuming an attempt.
	MarkFailedPermanently(ctx context.Context, id, cause string) error
	PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)
	// RequeueStale treats tasks claimed longer than olderThan ago as a failed
	// attempt of a crashed processor.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
	Status(ctx context.Context, now time.Time) (models.QueueStatus, error)
}

func validateEnqueue(scope models.TaskScope, priority int) error {
	if err := scope.Validate(); err != nil {
		return apperrors.NewInvalidTaskScopeError(err.Error())
	}
	if priority < MinPriority || priority > MaxPriority {
		return apperrors.NewInvalidPriorityError(priority)
	}
	return nil
}

// mergeReason appends next to current unless it is already recorded.
func mergeReason(current, next string) string {
	switch {
	case next == "" || strings.Contains(current, next):
		return current
	case current == "":
		return next
	}
	return truncateReason(current + "; " + next)
}

// truncateReason keeps the first maxReasonLength characters of reason, the
// same cut Postgres' left() makes, so a multi-byte rune is never split.
func truncateReason(reason string) string {
	n := 0
	for i := range reason {
		if n == maxReasonLength {
			return reason[:i]
		}
		n++
	}
	return reason
}

// startOfDay is midnight UTC of now's day.
func startOfDay(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type sequenced struct {
	task models.RecomputationTask
	seq  int64
}

// sortClaimed orders a claimed batch by priority desc, age asc, then insertion.
func sortClaimed(batch []sequenced) []models.RecomputationTask {
	sort.SliceStable(batch, func(i, j int) bool {
		a, b := batch[i], batch[j]
		if a.task.Priority != b.task.Priority {
			return a.task.Priority > b.task.Priority
		}
		if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
			return a.task.CreatedAt.Before(b.task.CreatedAt)
		}
		return a.seq < b.seq
	})
	out := make([]models.RecomputationTask, len(batch))
	for i := range batch {
		out[i] = batch[i].task
	}
	return out
}
