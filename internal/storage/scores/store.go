// Package scores persists the latest match score per candidate/opportunity pair.
package scores

import (
	"context"
	"fmt"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Store is the MatchScoreStore. Every write is atomic per call; readers see
// either the previous or the new set of records for a replaced scope.
type Store interface {
	UpsertPair(ctx context.Context, score models.PairScore, computedAt time.Time) error
	BulkReplaceForCandidate(ctx context.Context, candidateID string, scores []models.PairScore, computedAt time.Time) (int, error)
	BulkReplaceForOpportunity(ctx context.Context, opportunityID string, scores []models.PairScore, computedAt time.Time) (int, error)
	TopForOpportunity(ctx context.Context, opportunityID string, limit int) ([]models.MatchScoreRecord, error)
	TopForCandidate(ctx context.Context, candidateID string, limit int) ([]models.MatchScoreRecord, error)
}

// NormalizeLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func checkScope(scores []models.PairScore, candidateID, opportunityID string) error {
	for _, s := range scores {
		if candidateID != "" && s.CandidateID != candidateID {
			return apperrors.NewInvalidTaskScopeError(
				fmt.Sprintf("score for candidate %s in replacement of candidate %s", s.CandidateID, candidateID))
		}
		if opportunityID != "" && s.OpportunityID != opportunityID {
			return apperrors.NewInvalidTaskScopeError(
				fmt.Sprintf("score for opportunity %s in replacement of opportunity %s", s.OpportunityID, opportunityID))
		}
	}
	return nil
}

// ToRecord is the stored form of a freshly computed pair score.
func ToRecord(s models.PairScore, computedAt time.Time) models.MatchScoreRecord {
	return models.MatchScoreRecord{
		CandidateID:         s.CandidateID,
		OpportunityID:       s.OpportunityID,
		MatchScoreBreakdown: s.Breakdown,
		ComputedAt:          computedAt.UTC(),
	}
}
