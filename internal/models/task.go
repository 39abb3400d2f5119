// internal/models/task.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskProcessing TaskStatus = "PROCESSING"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskFailed     TaskStatus = "FAILED"
)

// IsTerminal reports whether no further transition can happen.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

type ScopeKind string

const (
	ScopePair        ScopeKind = "PAIR"
	ScopeCandidate   ScopeKind = "CANDIDATE"
	ScopeOpportunity ScopeKind = "OPPORTUNITY"
)

// TaskScope selects which scores a task refreshes: a single pair, every
// opportunity for one candidate, or every candidate for one opportunity.
// Build it with PairScope, CandidateScope or OpportunityScope; the zero value
// is invalid.
type TaskScope struct {
	kind          ScopeKind
	candidateID   string
	opportunityID string
}

func PairScope(candidateID, opportunityID string) TaskScope {
	return TaskScope{kind: ScopePair, candidateID: candidateID, opportunityID: opportunityID}
}

func CandidateScope(candidateID string) TaskScope {
	return TaskScope{kind: ScopeCandidate, candidateID: candidateID}
}

func OpportunityScope(opportunityID string) TaskScope {
	return TaskScope{kind: ScopeOpportunity, opportunityID: opportunityID}
}

// NewTaskScope rebuilds a scope from its stored columns.
func NewTaskScope(kind ScopeKind, candidateID, opportunityID string) (TaskScope, error) {
	var s TaskScope
	switch kind {
	case ScopePair:
		s = PairScope(candidateID, opportunityID)
	case ScopeCandidate:
		s = CandidateScope(candidateID)
	case ScopeOpportunity:
		s = OpportunityScope(opportunityID)
	default:
		return TaskScope{}, fmt.Errorf("unknown scope kind %q", kind)
	}
	return s, s.Validate()
}

func (s TaskScope) Kind() ScopeKind { return s.kind }
func (s TaskScope) CandidateID() string { return s.candidateID }
func (s TaskScope) OpportunityID() string { return s.opportunityID }
func (s TaskScope) IsZero() bool { return s.kind == "" }
func (s TaskScope) Equal(o TaskScope) bool { return s == o }
func (s TaskScope) String() string { return fmt.Sprintf("%s(%s,%s)", s.kind, s.candidateID, s.opportunityID) }

func (s TaskScope) Validate() error {
	switch s.kind {
	case ScopePair:
		if s.candidateID == "" || s.opportunityID == "" {
			return fmt.Errorf("pair scope needs both candidate and opportunity ids")
		}
	case ScopeCandidate:
		if s.candidateID == "" || s.opportunityID != "" {
			return fmt.Errorf("candidate scope needs exactly a candidate id")
		}
	case ScopeOpportunity:
		if s.opportunityID == "" || s.candidateID != "" {
			return fmt.Errorf("opportunity scope needs exactly an opportunity id")
		}
	default:
		return fmt.Errorf("scope kind is not set")
	}
	return nil
}

type scopeJSON struct {
	Kind          ScopeKind `json:"kind"`
	CandidateID   string    `json:"candidateId,omitempty"`
	OpportunityID string    `json:"opportunityId,omitempty"`
}

func (s TaskScope) MarshalJSON() ([]byte, error) {
	return json.Marshal(scopeJSON{Kind: s.kind, CandidateID: s.candidateID, OpportunityID: s.opportunityID})
}

func (s *TaskScope) UnmarshalJSON(data []byte) error {
	var raw scopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	scope, err := NewTaskScope(raw.Kind, raw.CandidateID, raw.OpportunityID)
	if err != nil {
		return err
	}
	*s = scope
	return nil
}

// RecomputationTask is created by the trigger adapter and mutated only by the
// queue processor.
type RecomputationTask struct {
	ID            string     `json:"id"`
	Scope         TaskScope  `json:"scope"`
	Priority      int        `json:"priority"` // higher is more urgent
	Status        TaskStatus `json:"status"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"maxAttempts"`
	TriggerReason string     `json:"triggerReason"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}
