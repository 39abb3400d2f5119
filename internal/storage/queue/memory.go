package queue

import (
	"context"
	"sync"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue. A single mutex makes every operation,
// including ClaimBatch, atomic.
type MemoryQueue struct {
	mu          sync.Mutex
	tasks       map[string]*sequenced
	seq         int64
	maxAttempts int
	now         func() time.Time
}

type MemoryOption func(*MemoryQueue)

// WithClock sets the clock used for created, processed and completed times.
func WithClock(now func() time.Time) MemoryOption {
	return func(q *MemoryQueue) { q.now = now }
}

func NewMemoryQueue(maxAttempts int, opts ...MemoryOption) *MemoryQueue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	q := &MemoryQueue{tasks: map[string]*sequenced{}, maxAttempts: maxAttempts, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *MemoryQueue) clock() time.Time { return q.now().UTC() }

func (q *MemoryQueue) Enqueue(_ context.Context, scope models.TaskScope, reason string, priority int) (*models.RecomputationTask, error) {
	if err := validateEnqueue(scope, priority); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var existing *sequenced
	for _, s := range q.tasks {
		if s.task.Status != models.TaskPending || !s.task.Scope.Equal(scope) {
			continue
		}
		if existing == nil || s.seq < existing.seq {
			existing = s
		}
	}
	if existing != nil {
		if priority > existing.task.Priority {
			existing.task.Priority = priority
		}
		existing.task.TriggerReason = mergeReason(existing.task.TriggerReason, reason)
		t := existing.task
		return &t, nil
	}

	q.seq++
	s := &sequenced{seq: q.seq, task: models.RecomputationTask{
		ID:            uuid.NewString(),
		Scope:         scope,
		Priority:      priority,
		Status:        models.TaskPending,
		MaxAttempts:   q.maxAttempts,
		TriggerReason: truncateReason(reason),
		CreatedAt:     q.clock(),
	}}
	q.tasks[s.task.ID] = s
	t := s.task
	return &t, nil
}

func (q *MemoryQueue) ClaimBatch(_ context.Context, n int) ([]models.RecomputationTask, error) {
	if n <= 0 {
		return []models.RecomputationTask{}, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]sequenced, 0)
	for _, s := range q.tasks {
		if s.task.Status == models.TaskPending {
			pending = append(pending, *s)
		}
	}
	ordered := sortClaimed(pending)
	if len(ordered) > n {
		ordered = ordered[:n]
	}

	now := q.clock()
	for i := range ordered {
		s := q.tasks[ordered[i].ID]
		s.task.Status = models.TaskProcessing
		s.task.ProcessedAt = &now
		ordered[i] = s.task
	}
	return ordered, nil
}

func (q *MemoryQueue) claimed(id string) (*sequenced, error) {
	s, ok := q.tasks[id]
	if !ok || s.task.Status != models.TaskProcessing {
		return nil, apperrors.NewTaskNotClaimedError(id)
	}
	return s, nil
}

func (q *MemoryQueue) MarkCompleted(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, err := q.claimed(id)
	if err != nil {
		return err
	}
	now := q.clock()
	s.task.Status = models.TaskCompleted
	s.task.CompletedAt = &now
	s.task.LastError = ""
	return nil
}

func (q *MemoryQueue) MarkFailed(_ context.Context, id, cause string) (models.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, err := q.claimed(id)
	if err != nil {
		return "", err
	}
	q.failAttempt(s, cause)
	return s.task.Status, nil
}

func (q *MemoryQueue) failAttempt(s *sequenced, cause string) {
	s.task.Attempts++
	s.task.LastError = cause
	if s.task.Attempts >= s.task.MaxAttempts {
		now := q.clock()
		s.task.Status = models.TaskFailed
		s.task.CompletedAt = &now
		return
	}
	s.task.Status = models.TaskPending
	s.task.CompletedAt = nil
}

func (q *MemoryQueue) MarkFailedPermanently(_ context.Context, id, cause string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, err := q.claimed(id)
	if err != nil {
		return err
	}
	now := q.clock()
	s.task.Status = models.TaskFailed
	s.task.LastError = cause
	s.task.CompletedAt = &now
	return nil
}

func (q *MemoryQueue) PurgeOlderThan(_ context.Context, age time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := q.clock().Add(-age)
	purged := 0
	for id, s := range q.tasks {
		if !s.task.Status.IsTerminal() {
			continue
		}
		finished := s.task.CreatedAt
		if s.task.CompletedAt != nil {
			finished = *s.task.CompletedAt
		}
		if finished.Before(cutoff) {
			delete(q.tasks, id)
			purged++
		}
	}
	return purged, nil
}

func (q *MemoryQueue) RequeueStale(_ context.Context, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := q.clock().Add(-olderThan)
	n := 0
	for _, s := range q.tasks {
		if s.task.Status == models.TaskProcessing && s.task.ProcessedAt != nil && s.task.ProcessedAt.Before(cutoff) {
			q.failAttempt(s, staleClaimError)
			n++
		}
	}
	return n, nil
}

func (q *MemoryQueue) Status(_ context.Context, now time.Time) (models.QueueStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dayStart := startOfDay(now)
	var (
		st     models.QueueStatus
		oldest time.Time
	)
	for _, s := range q.tasks {
		t := s.task
		switch t.Status {
		case models.TaskPending:
			st.Pending++
			if oldest.IsZero() || t.CreatedAt.Before(oldest) {
				oldest = t.CreatedAt
			}
		case models.TaskProcessing:
			st.Processing++
		case models.TaskCompleted:
			if t.CompletedAt != nil && !t.CompletedAt.Before(dayStart) {
				st.CompletedToday++
			}
		case models.TaskFailed:
			if t.CompletedAt != nil && !t.CompletedAt.Before(dayStart) {
				st.FailedToday++
			}
		}
	}
	if !oldest.IsZero() {
		if age := now.Sub(oldest).Milliseconds(); age > 0 {
			st.OldestPendingAgeMs = age
		}
	}
	return st, nil
}

// Get returns a copy of a task by id.
func (q *MemoryQueue) Get(id string) (models.RecomputationTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.tasks[id]
	if !ok {
		return models.RecomputationTask{}, false
	}
	return s.task, true
}
