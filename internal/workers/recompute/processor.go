// Package recompute drains the recomputation queue: it claims batches of
// tasks, rescores their scope and records one audit entry per run.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"match-engine/internal/collaborators"
	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/common/metrics"
	"match-engine/internal/common/observability"
	"match-engine/internal/events"
	"match-engine/internal/models"
	"match-engine/internal/storage/audit"
	"match-engine/internal/storage/queue"
	"match-engine/internal/storage/scores"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "recompute-processor"

// Scorer computes one breakdown. *matching.Calculator satisfies it.
type Scorer interface {
	Score(c models.CandidateProfile, o models.OpportunityProfile) models.MatchScoreBreakdown
}

// Deps are the collaborators of a Processor. Sink, Publisher and
// Observability are optional.
type Deps struct {
	Queue         queue.Queue
	Store         scores.Store
	Audit         audit.Log
	Profiles      collaborators.ProfileService
	Opportunities collaborators.OpportunityService
	Scorer        Scorer
	Sink          events.ScoreSink
	Publisher     events.Publisher
	Observability *observability.Observability
	Now           func() time.Time
}

type Processor struct {
	config     *Config
	deps       Deps
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
	running    atomic.Bool
}

func NewProcessor(cfg *Config, deps Deps, log logger.Logger) *Processor {
	if deps.Sink == nil {
		deps.Sink = events.NoopSink{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Processor{
		config:     cfg,
		deps:       deps,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

// Running reports whether a run is in progress.
func (p *Processor) Running() bool { return p.running.Load() }

type taskOutcome struct {
	records []models.MatchScoreRecord
	err     *apperrors.StandardError
}

// RunOnce claims up to batchSize tasks (the configured size when batchSize is
// not positive) and processes them in claim order. A second call while a run
// is active returns RUN_IN_PROGRESS. Task failures are recorded on the tasks
// and in the returned entry; only a failed claim is returned as an error.
func (p *Processor) RunOnce(ctx context.Context, batchSize int) (*models.RunAuditEntry, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, apperrors.NewRunInProgressError()
	}
	defer p.running.Store(false)
	// A claimed batch is always settled, even if the caller goes away mid-run.
	ctx = context.WithoutCancel(ctx)

	if batchSize <= 0 {
		batchSize = p.config.BatchSize
	}

	ctx, span := p.deps.Observability.StartSpan(ctx, "processor.run", attribute.Int("batch.size", batchSize))
	defer span.End()

	started := p.deps.Now().UTC()
	entry := models.RunAuditEntry{ID: uuid.NewString(), StartedAt: started}

	tasks, err := p.deps.Queue.ClaimBatch(ctx, batchSize)
	if err != nil {
		stdErr := apperrors.Normalize(err)
		p.logger.Error("Claiming batch failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		p.finish(ctx, &entry, map[apperrors.ErrorCode]int{stdErr.Code: 1}, true)
		return &entry, stdErr
	}
	entry.TasksClaimed = len(tasks)

	var (
		written  indexBatch
		failures = map[apperrors.ErrorCode]int{}
	)
	for _, task := range tasks {
		out := p.processTask(ctx, task)
		if out.err != nil {
			entry.TasksFailed++
			failures[out.err.Code]++
			continue
		}
		entry.TasksCompleted++
		entry.ScoresWritten += len(out.records)
		written.add(task.Scope, out.records)
	}

	p.finish(ctx, &entry, failures, len(tasks) > 0 || p.config.AuditEmptyRuns)
	if len(tasks) > 0 {
		p.publish(ctx, entry, written)
	}
	if !entry.Success {
		span.SetStatus(codes.Error, entry.ErrorSummary)
	}
	return &entry, nil
}

func (p *Processor) finish(ctx context.Context, entry *models.RunAuditEntry, failures map[apperrors.ErrorCode]int, record bool) {
	entry.FinishedAt = p.deps.Now().UTC()
	entry.DurationMs = entry.FinishedAt.Sub(entry.StartedAt).Milliseconds()
	entry.Success = len(failures) == 0
	entry.ErrorSummary = summarize(failures)

	metrics.RunDuration.Observe(entry.FinishedAt.Sub(entry.StartedAt).Seconds())
	p.deps.Observability.RecordRun(ctx, entry.Success)

	if !record {
		return
	}
	if err := p.deps.Audit.Append(ctx, *entry); err != nil {
		p.logger.Error("Appending run audit entry failed", map[string]interface{}{
			"runId": entry.ID,
			"error": err.Error(),
		})
	}
	p.logger.Info("Run finished", map[string]interface{}{
		"runId":          entry.ID,
		"tasksClaimed":   entry.TasksClaimed,
		"tasksCompleted": entry.TasksCompleted,
		"tasksFailed":    entry.TasksFailed,
		"scoresWritten":  entry.ScoresWritten,
		"durationMs":     entry.DurationMs,
	})
}

// summarize renders failure counts as "CODE xN" sorted by code.
func summarize(failures map[apperrors.ErrorCode]int) string {
	if len(failures) == 0 {
		return ""
	}
	parts := make([]string, 0, len(failures))
	for code, n := range failures {
		parts = append(parts, fmt.Sprintf("%s x%d", code, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// publish pushes the run's scores to the index and the run summary to the bus.
// Neither affects the outcome of the run.
func (p *Processor) publish(ctx context.Context, entry models.RunAuditEntry, written indexBatch) {
	if err := p.deps.Sink.IndexScores(ctx, written.replaced, written.records); err != nil {
		p.logger.Warn("Indexing scores failed", map[string]interface{}{"runId": entry.ID, "error": err.Error()})
	}

	status, err := p.deps.Queue.Status(ctx, p.deps.Now())
	if err != nil {
		p.logger.Warn("Reading queue status failed", map[string]interface{}{"runId": entry.ID, "error": err.Error()})
		return
	}
	metrics.QueueDepth.WithLabelValues(string(models.TaskPending)).Set(float64(status.Pending))
	metrics.QueueDepth.WithLabelValues(string(models.TaskProcessing)).Set(float64(status.Processing))

	if err := p.deps.Publisher.PublishRun(ctx, events.NewRunEvent(entry, status, p.deps.Now())); err != nil {
		p.logger.Warn("Publishing run event failed", map[string]interface{}{"runId": entry.ID, "error": err.Error()})
	}
}

// indexBatch is what a run hands to the ScoreSink. Replacing a candidate or
// opportunity drops the earlier records it covers, so the batch holds the
// same final state as the score table.
type indexBatch struct {
	replaced []models.TaskScope
	records  []models.MatchScoreRecord
}

func (b *indexBatch) add(scope models.TaskScope, records []models.MatchScoreRecord) {
	if scope.Kind() != models.ScopePair {
		b.replaced = append(b.replaced, scope)
		kept := b.records[:0]
		for _, r := range b.records {
			if !covers(scope, r) {
				kept = append(kept, r)
			}
		}
		b.records = kept
	}
	b.records = append(b.records, records...)
}

func covers(scope models.TaskScope, r models.MatchScoreRecord) bool {
	switch scope.Kind() {
	case models.ScopeCandidate:
		return r.CandidateID == scope.CandidateID()
	case models.ScopeOpportunity:
		return r.OpportunityID == scope.OpportunityID()
	}
	return false
}

func (p *Processor) processTask(ctx context.Context, task models.RecomputationTask) taskOutcome {
	kind := string(task.Scope.Kind())
	ctx, span := p.deps.Observability.StartSpan(ctx, "processor.task",
		attribute.String("task.id", task.ID),
		attribute.String("task.scope", task.Scope.String()),
		attribute.Int("task.priority", task.Priority),
	)
	defer span.End()
	start := time.Now()

	taskCtx, cancel := context.WithTimeout(ctx, p.config.TaskTimeout)
	records, err := p.execute(taskCtx, task)
	timedOut := errors.Is(taskCtx.Err(), context.DeadlineExceeded)
	cancel()
	if timedOut {
		err = apperrors.NewTaskTimeoutError(task.ID, p.config.TaskTimeout)
	}

	elapsed := time.Since(start)
	metrics.TaskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())

	if err == nil {
		err = p.deps.Queue.MarkCompleted(ctx, task.ID)
		if err == nil {
			metrics.TasksCompleted.WithLabelValues(kind).Inc()
			metrics.ScoresWritten.Add(float64(len(records)))
			p.deps.Observability.RecordTask(ctx, elapsed, string(models.TaskCompleted))
			return taskOutcome{records: records}
		}
		stdErr := apperrors.Normalize(err)
		p.logger.Error("Marking task completed failed", map[string]interface{}{
			"taskId":    task.ID,
			"errorCode": string(stdErr.Code),
		})
		span.RecordError(err)
		return taskOutcome{err: stdErr}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "task failed")
	return taskOutcome{err: p.fail(ctx, task, err, elapsed)}
}

func (p *Processor) fail(ctx context.Context, task models.RecomputationTask, err error, elapsed time.Duration) *apperrors.StandardError {
	stdErr, disposition := p.errHandler.HandleTaskError(task.ID, task.Scope.String(), task.Attempts+1, err)
	cause := string(stdErr.Code)
	if stdErr.Details != "" {
		cause += ": " + stdErr.Details
	}

	status := models.TaskFailed
	var markErr error
	if disposition == apperrors.DispositionFail {
		markErr = p.deps.Queue.MarkFailedPermanently(ctx, task.ID, cause)
	} else {
		status, markErr = p.deps.Queue.MarkFailed(ctx, task.ID, cause)
	}
	if markErr != nil {
		p.logger.Error("Recording task failure failed", map[string]interface{}{
			"taskId": task.ID,
			"error":  markErr.Error(),
		})
	}

	final := status == models.TaskFailed
	metrics.TasksFailed.WithLabelValues(string(task.Scope.Kind()), string(stdErr.Code), strconv.FormatBool(final)).Inc()
	p.deps.Observability.RecordTask(ctx, elapsed, string(status))
	return stdErr
}

// execute rescores the task's scope. A panic inside scoring surfaces as a
// computation error.
func (p *Processor) execute(ctx context.Context, task models.RecomputationTask) (records []models.MatchScoreRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, apperrors.NewPanicError(r)
		}
	}()

	scope := task.Scope
	switch scope.Kind() {
	case models.ScopePair:
		return p.scorePair(ctx, scope.CandidateID(), scope.OpportunityID())
	case models.ScopeCandidate:
		return p.scoreCandidate(ctx, scope.CandidateID())
	case models.ScopeOpportunity:
		return p.scoreOpportunity(ctx, scope.OpportunityID())
	default:
		return nil, apperrors.NewInvalidTaskScopeError(scope.String())
	}
}

func (p *Processor) scorePair(ctx context.Context, candidateID, opportunityID string) ([]models.MatchScoreRecord, error) {
	c, err := p.deps.Profiles.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	o, err := p.deps.Opportunities.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	computedAt := p.deps.Now().UTC()
	pair := models.PairScore{CandidateID: candidateID, OpportunityID: opportunityID, Breakdown: p.deps.Scorer.Score(*c, *o)}
	if err := p.deps.Store.UpsertPair(ctx, pair, computedAt); err != nil {
		return nil, err
	}
	return toRecords([]models.PairScore{pair}, computedAt), nil
}

func (p *Processor) scoreCandidate(ctx context.Context, candidateID string) ([]models.MatchScoreRecord, error) {
	c, err := p.deps.Profiles.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	opportunities, err := p.deps.Opportunities.ListActiveOpportunities(ctx)
	if err != nil {
		return nil, err
	}
	pairs := make([]models.PairScore, 0, len(opportunities))
	for _, o := range opportunities {
		if o.ID == "" {
			continue
		}
		pairs = append(pairs, models.PairScore{CandidateID: candidateID, OpportunityID: o.ID, Breakdown: p.deps.Scorer.Score(*c, o)})
	}
	computedAt := p.deps.Now().UTC()
	if _, err := p.deps.Store.BulkReplaceForCandidate(ctx, candidateID, pairs, computedAt); err != nil {
		return nil, err
	}
	return toRecords(pairs, computedAt), nil
}

func (p *Processor) scoreOpportunity(ctx context.Context, opportunityID string) ([]models.MatchScoreRecord, error) {
	o, err := p.deps.Opportunities.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	candidates, err := p.deps.Profiles.ListActiveCandidates(ctx)
	if err != nil {
		return nil, err
	}
	pairs := make([]models.PairScore, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		pairs = append(pairs, models.PairScore{CandidateID: c.ID, OpportunityID: opportunityID, Breakdown: p.deps.Scorer.Score(c, *o)})
	}
	computedAt := p.deps.Now().UTC()
	if _, err := p.deps.Store.BulkReplaceForOpportunity(ctx, opportunityID, pairs, computedAt); err != nil {
		return nil, err
	}
	return toRecords(pairs, computedAt), nil
}

func toRecords(pairs []models.PairScore, computedAt time.Time) []models.MatchScoreRecord {
	out := make([]models.MatchScoreRecord, len(pairs))
	for i, s := range pairs {
		out[i] = scores.ToRecord(s, computedAt)
	}
	return out
}
