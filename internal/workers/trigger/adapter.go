// Package trigger turns domain events from collaborators into recomputation
// tasks with fixed priorities.
package trigger

import (
	"context"
	"fmt"
	"strings"

	"match-engine/internal/collaborators"
	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/common/metrics"
	"match-engine/internal/models"
	"match-engine/internal/storage/queue"
)

type Event string

const (
	EventDocumentParsed           Event = "document-parsed"
	EventSkillsUpdated            Event = "skills-updated"
	EventAcademicUpdated          Event = "academic-updated"
	EventExperienceUpdated        Event = "experience-updated"
	EventPreferencesUpdated       Event = "preferences-updated"
	EventOpportunitySkillsUpdated Event = "opportunity-skills-updated"
	EventOpportunityUpdated       Event = "opportunity-updated"
	EventFullSweep                Event = "full-sweep"
	EventManual                   Event = "manual"
)

type rule struct {
	priority int
	subject  models.ScopeKind
}

var rules = map[Event]rule{
	EventDocumentParsed:           {5, models.ScopeCandidate},
	EventSkillsUpdated:            {4, models.ScopeCandidate},
	EventAcademicUpdated:          {3, models.ScopeCandidate},
	EventExperienceUpdated:        {3, models.ScopeCandidate},
	EventPreferencesUpdated:       {2, models.ScopeCandidate},
	EventOpportunitySkillsUpdated: {5, models.ScopeOpportunity},
	EventOpportunityUpdated:       {3, models.ScopeOpportunity},
	EventFullSweep:                {1, models.ScopeCandidate},
}

// Priority returns the fixed priority of event, or false for events without
// one (manual triggers and unknown names).
func Priority(event Event) (int, bool) {
	r, ok := rules[event]
	return r.priority, ok
}

// Subject returns whether event carries a candidate or an opportunity id.
func Subject(event Event) (models.ScopeKind, bool) {
	r, ok := rules[event]
	return r.subject, ok
}

// Adapter enqueues tasks for profile and opportunity changes. Cached
// snapshots of the changed entity are dropped before the task is enqueued.
type Adapter struct {
	queue       queue.Queue
	profiles    collaborators.ProfileService
	invalidator collaborators.Invalidator
	logger      logger.Logger
}

// NewAdapter builds an adapter. invalidator may be nil when no profile cache
// is configured.
func NewAdapter(q queue.Queue, profiles collaborators.ProfileService, invalidator collaborators.Invalidator, log logger.Logger) *Adapter {
	return &Adapter{
		queue:       q,
		profiles:    profiles,
		invalidator: invalidator,
		logger:      log.WithFields(map[string]interface{}{"component": "trigger"}),
	}
}

// Handle enqueues the task for a single-entity event. subjectID is a
// candidate id for candidate events and an opportunity id for opportunity
// events.
func (a *Adapter) Handle(ctx context.Context, event Event, subjectID string) (*models.RecomputationTask, error) {
	r, ok := rules[event]
	if !ok || event == EventFullSweep {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unsupported trigger event %q", event))
	}
	if strings.TrimSpace(subjectID) == "" {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("%s needs a subject id", event))
	}

	var scope models.TaskScope
	if r.subject == models.ScopeOpportunity {
		scope = models.OpportunityScope(subjectID)
	} else {
		scope = models.CandidateScope(subjectID)
	}
	a.invalidate(ctx, scope)
	return a.enqueue(ctx, event, scope, string(event), r.priority)
}

// Manual enqueues an operator-requested task. The reason records who asked
// for it as manual:<actor>:<note>.
func (a *Adapter) Manual(ctx context.Context, scope models.TaskScope, priority int, actor, note string) (*models.RecomputationTask, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperrors.NewInvalidRequestError("manual recompute needs an actor")
	}
	if err := scope.Validate(); err != nil {
		return nil, apperrors.NewInvalidTaskScopeError(err.Error())
	}
	if priority < queue.MinPriority || priority > queue.MaxPriority {
		return nil, apperrors.NewInvalidPriorityError(priority)
	}
	reason := "manual:" + actor
	if note = strings.TrimSpace(note); note != "" {
		reason += ":" + note
	}
	a.invalidate(ctx, scope)
	return a.enqueue(ctx, EventManual, scope, reason, priority)
}

// FullSweep enqueues a lowest-priority task for every active candidate and
// returns how many were enqueued. A failed enqueue is logged and skipped.
func (a *Adapter) FullSweep(ctx context.Context) (int, error) {
	candidates, err := a.profiles.ListActiveCandidates(ctx)
	if err != nil {
		return 0, err
	}
	priority := rules[EventFullSweep].priority
	n := 0
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		if _, err := a.enqueue(ctx, EventFullSweep, models.CandidateScope(c.ID), string(EventFullSweep), priority); err != nil {
			a.logger.Warn("Sweep enqueue failed", map[string]interface{}{"candidateId": c.ID, "error": err.Error()})
			continue
		}
		n++
	}
	a.logger.Info("Full sweep enqueued", map[string]interface{}{"candidates": len(candidates), "enqueued": n})
	return n, nil
}

func (a *Adapter) enqueue(ctx context.Context, event Event, scope models.TaskScope, reason string, priority int) (*models.RecomputationTask, error) {
	task, err := a.queue.Enqueue(ctx, scope, reason, priority)
	if err != nil {
		return nil, err
	}
	metrics.TasksEnqueued.WithLabelValues(string(event)).Inc()
	a.logger.Debug("Task enqueued", map[string]interface{}{
		"taskId":   task.ID,
		"scope":    scope.String(),
		"priority": task.Priority,
		"reason":   reason,
	})
	return task, nil
}

// invalidate is best effort: a stale snapshot only delays the refresh until
// the cache entry expires.
func (a *Adapter) invalidate(ctx context.Context, scope models.TaskScope) {
	if a.invalidator == nil {
		return
	}
	if id := scope.CandidateID(); id != "" {
		if err := a.invalidator.InvalidateCandidate(ctx, id); err != nil {
			a.logger.Warn("Candidate cache invalidation failed", map[string]interface{}{"candidateId": id, "error": err.Error()})
		}
	}
	if id := scope.OpportunityID(); id != "" {
		if err := a.invalidator.InvalidateOpportunity(ctx, id); err != nil {
			a.logger.Warn("Opportunity cache invalidation failed", map[string]interface{}{"opportunityId": id, "error": err.Error()})
		}
	}
}
