package scores

import (
	"context"
	"testing"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var computedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func pair(c, o string, total float64) models.PairScore {
	return models.PairScore{
		CandidateID:   c,
		OpportunityID: o,
		Breakdown:     models.MatchScoreBreakdown{TotalScore: total, SkillScore: total},
	}
}

func TestMemoryStore_AtMostOneRecordPerPair(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.UpsertPair(ctx, pair("c1", "o1", 0.4), computedAt))
	require.NoError(t, s.UpsertPair(ctx, pair("c1", "o1", 0.8), computedAt.Add(time.Minute)))

	assert.Equal(t, 1, s.Len())
	top, err := s.TopForOpportunity(ctx, "o1", 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 0.8, top[0].TotalScore)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, computedAt.Add(time.Minute), top[0].ComputedAt)
}

func TestMemoryStore_BulkReplaceForCandidate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpsertPair(ctx, pair("c1", "stale", 0.9), computedAt))
	require.NoError(t, s.UpsertPair(ctx, pair("c2", "o1", 0.5), computedAt))

	n, err := s.BulkReplaceForCandidate(ctx, "c1", []models.PairScore{
		pair("c1", "o1", 0.7),
		pair("c1", "o2", 0.3),
	}, computedAt)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.TopForCandidate(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].OpportunityID)
	assert.Equal(t, "o2", got[1].OpportunityID)

	other, err := s.TopForCandidate(ctx, "c2", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1, "other candidates are untouched")
}

func TestMemoryStore_BulkReplaceRejectsForeignScores(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.BulkReplaceForOpportunity(context.Background(), "o1", []models.PairScore{pair("c1", "o2", 0.1)}, computedAt)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidTaskScope))
}

func TestMemoryStore_RanksAndLimits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpsertPair(ctx, pair("first", "o", 0.5), computedAt))
	require.NoError(t, s.UpsertPair(ctx, pair("best", "o", 0.9), computedAt))
	require.NoError(t, s.UpsertPair(ctx, pair("second", "o", 0.5), computedAt))

	got, err := s.TopForOpportunity(ctx, "o", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "best", got[0].CandidateID)
	assert.Equal(t, "first", got[1].CandidateID, "ties keep insertion order")
	assert.Equal(t, 2, got[1].Rank)

	empty, err := s.TopForOpportunity(ctx, "unknown", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 25, NormalizeLimit(25))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
}
