// Package engine is the externally exposed surface of the matching engine:
// score reads, queue inspection and manual control of recomputation.
package engine

import (
	"context"
	"strings"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"
	"match-engine/internal/storage/audit"
	"match-engine/internal/storage/queue"
	"match-engine/internal/storage/scores"
	"match-engine/internal/workers/recompute"
	"match-engine/internal/workers/trigger"
)

type Deps struct {
	Queue     queue.Queue
	Store     scores.Store
	Audit     audit.Log
	Trigger   *trigger.Adapter
	Processor *recompute.Processor
	Now       func() time.Time
}

type Engine struct {
	queue     queue.Queue
	store     scores.Store
	audit     audit.Log
	trigger   *trigger.Adapter
	processor *recompute.Processor
	now       func() time.Time
}

func New(deps Deps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Engine{
		queue:     deps.Queue,
		store:     deps.Store,
		audit:     deps.Audit,
		trigger:   deps.Trigger,
		processor: deps.Processor,
		now:       deps.Now,
	}
}

func (e *Engine) Enqueue(ctx context.Context, scope models.TaskScope, reason string, priority int) (*models.RecomputationTask, error) {
	return e.queue.Enqueue(ctx, scope, reason, priority)
}

// TopMatchesForOpportunity returns the best candidates for an opportunity,
// ranked 1..n. It reads whatever was last computed.
func (e *Engine) TopMatchesForOpportunity(ctx context.Context, opportunityID string, limit int) ([]models.MatchScoreRecord, error) {
	if strings.TrimSpace(opportunityID) == "" {
		return nil, apperrors.NewInvalidRequestError("opportunity id is required")
	}
	return e.store.TopForOpportunity(ctx, opportunityID, limit)
}

func (e *Engine) TopMatchesForCandidate(ctx context.Context, candidateID string, limit int) ([]models.MatchScoreRecord, error) {
	if strings.TrimSpace(candidateID) == "" {
		return nil, apperrors.NewInvalidRequestError("candidate id is required")
	}
	return e.store.TopForCandidate(ctx, candidateID, limit)
}

func (e *Engine) QueueStatus(ctx context.Context) (models.QueueStatus, error) {
	return e.queue.Status(ctx, e.now())
}

// RunHistory returns the most recent runs, newest first.
func (e *Engine) RunHistory(ctx context.Context, limit int) ([]models.RunAuditEntry, error) {
	return e.audit.Recent(ctx, limit)
}

func (e *Engine) TriggerManualRecompute(ctx context.Context, scope models.TaskScope, priority int, actor, note string) (*models.RecomputationTask, error) {
	return e.trigger.Manual(ctx, scope, priority, actor, note)
}

// HandleTrigger routes a collaborator event. The full sweep ignores
// subjectID and reports how many tasks it enqueued; other events return the
// task they enqueued or coalesced into.
func (e *Engine) HandleTrigger(ctx context.Context, event trigger.Event, subjectID string) (*models.RecomputationTask, int, error) {
	if event == trigger.EventFullSweep {
		n, err := e.trigger.FullSweep(ctx)
		return nil, n, err
	}
	task, err := e.trigger.Handle(ctx, event, subjectID)
	if err != nil {
		return nil, 0, err
	}
	return task, 1, nil
}

// ProcessBatchNow runs one batch immediately. It fails with RUN_IN_PROGRESS
// when the scheduler is mid-run.
func (e *Engine) ProcessBatchNow(ctx context.Context, batchSize int) (*models.RunAuditEntry, error) {
	return e.processor.RunOnce(ctx, batchSize)
}

// Purge removes finished tasks older than age.
func (e *Engine) Purge(ctx context.Context, age time.Duration) (int, error) {
	if age <= 0 {
		return 0, apperrors.NewInvalidRequestError("purge age must be positive")
	}
	return e.queue.PurgeOlderThan(ctx, age)
}
