package trigger

import (
	"context"
	"errors"
	"testing"

	"match-engine/internal/collaborators"
	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/models"
	"match-engine/internal/storage/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) InvalidateCandidate(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func (m *mockInvalidator) InvalidateOpportunity(ctx context.Context, id string) error {
	return m.Called(id).Error(0)
}

func newAdapter(t *testing.T, inv collaborators.Invalidator) (*Adapter, *queue.MemoryQueue, *collaborators.Directory) {
	t.Helper()
	q := queue.NewMemoryQueue(3)
	dir := collaborators.NewDirectory()
	return NewAdapter(q, dir, inv, logger.NewTestLogger(t)), q, dir
}

func TestHandle_PrioritiesAndScopes(t *testing.T) {
	tests := []struct {
		event    Event
		priority int
		scope    models.TaskScope
	}{
		{EventDocumentParsed, 5, models.CandidateScope("x")},
		{EventSkillsUpdated, 4, models.CandidateScope("x")},
		{EventAcademicUpdated, 3, models.CandidateScope("x")},
		{EventExperienceUpdated, 3, models.CandidateScope("x")},
		{EventPreferencesUpdated, 2, models.CandidateScope("x")},
		{EventOpportunitySkillsUpdated, 5, models.OpportunityScope("x")},
		{EventOpportunityUpdated, 3, models.OpportunityScope("x")},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			a, _, _ := newAdapter(t, nil)
			task, err := a.Handle(context.Background(), tt.event, "x")
			require.NoError(t, err)
			assert.Equal(t, tt.priority, task.Priority)
			assert.Equal(t, tt.scope, task.Scope)
			assert.Equal(t, string(tt.event), task.TriggerReason)
			assert.Equal(t, models.TaskPending, task.Status)
		})
	}
}

func TestHandle_InvalidatesBeforeEnqueue(t *testing.T) {
	inv := &mockInvalidator{}
	inv.On("InvalidateCandidate", "c1").Return(nil).Once()
	inv.On("InvalidateOpportunity", "o1").Return(errors.New("redis down")).Once()
	a, q, _ := newAdapter(t, inv)
	ctx := context.Background()

	_, err := a.Handle(ctx, EventSkillsUpdated, "c1")
	require.NoError(t, err)
	task, err := a.Handle(ctx, EventOpportunityUpdated, "o1")
	require.NoError(t, err, "cache failures do not block the trigger")

	got, ok := q.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, models.OpportunityScope("o1"), got.Scope)
	inv.AssertExpectations(t)
}

func TestHandle_Rejects(t *testing.T) {
	a, _, _ := newAdapter(t, nil)
	ctx := context.Background()

	_, err := a.Handle(ctx, "profile-deleted", "c1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
	_, err = a.Handle(ctx, EventFullSweep, "c1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
	_, err = a.Handle(ctx, EventSkillsUpdated, "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
}

func TestHandle_CoalescesRepeatedEvents(t *testing.T) {
	a, q, _ := newAdapter(t, nil)
	ctx := context.Background()

	first, err := a.Handle(ctx, EventPreferencesUpdated, "c1")
	require.NoError(t, err)
	second, err := a.Handle(ctx, EventDocumentParsed, "c1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	got, _ := q.Get(first.ID)
	assert.Equal(t, 5, got.Priority)
	assert.Equal(t, "preferences-updated; document-parsed", got.TriggerReason)
}

func TestManual(t *testing.T) {
	inv := &mockInvalidator{}
	inv.On("InvalidateCandidate", "c1").Return(nil)
	inv.On("InvalidateOpportunity", "o1").Return(nil)
	a, _, _ := newAdapter(t, inv)
	ctx := context.Background()

	task, err := a.Manual(ctx, models.PairScope("c1", "o1"), 9, "ops@example.com", "score looked stale")
	require.NoError(t, err)
	assert.Equal(t, 9, task.Priority)
	assert.Equal(t, "manual:ops@example.com:score looked stale", task.TriggerReason)

	task, err = a.Manual(ctx, models.CandidateScope("c1"), 1, "ops", "")
	require.NoError(t, err)
	assert.Equal(t, "manual:ops", task.TriggerReason)

	_, err = a.Manual(ctx, models.CandidateScope("c1"), 11, "ops", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidPriority))
	_, err = a.Manual(ctx, models.CandidateScope("c1"), 5, "", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
	_, err = a.Manual(ctx, models.TaskScope{}, 5, "ops", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidTaskScope))
}

func TestFullSweep(t *testing.T) {
	a, q, dir := newAdapter(t, nil)
	for _, id := range []string{"c1", "c2", "c3"} {
		dir.PutCandidate(models.CandidateProfile{ID: id})
	}
	ctx := context.Background()

	n, err := a.FullSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	batch, err := q.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for _, task := range batch {
		assert.Equal(t, 1, task.Priority)
		assert.Equal(t, models.ScopeCandidate, task.Scope.Kind())
		assert.Equal(t, "full-sweep", task.TriggerReason)
	}
}

func TestPriority(t *testing.T) {
	p, ok := Priority(EventDocumentParsed)
	assert.True(t, ok)
	assert.Equal(t, 5, p)
	_, ok = Priority(EventManual)
	assert.False(t, ok)
}

func TestSubject(t *testing.T) {
	k, ok := Subject(EventOpportunityUpdated)
	assert.True(t, ok)
	assert.Equal(t, models.ScopeOpportunity, k)
	k, _ = Subject(EventPreferencesUpdated)
	assert.Equal(t, models.ScopeCandidate, k)
	_, ok = Subject("profile-deleted")
	assert.False(t, ok)
}
