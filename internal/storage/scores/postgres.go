package scores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"match-engine/internal/common/database"
	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"
)

const upsertScoreSQL = `
INSERT INTO match_scores (
    candidate_id, opportunity_id, total_score, skill_score, academic_score,
    experience_score, preference_score, explanation, computed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (candidate_id, opportunity_id) DO UPDATE SET
    total_score      = EXCLUDED.total_score,
    skill_score      = EXCLUDED.skill_score,
    academic_score   = EXCLUDED.academic_score,
    experience_score = EXCLUDED.experience_score,
    preference_score = EXCLUDED.preference_score,
    explanation      = EXCLUDED.explanation,
    computed_at      = EXCLUDED.computed_at`

const selectScoreColumns = `
SELECT candidate_id, opportunity_id, total_score, skill_score, academic_score,
       experience_score, preference_score, explanation, computed_at
FROM match_scores`

// PostgresStore keeps scores in the match_scores table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsert(ctx context.Context, ex execer, s models.PairScore, computedAt time.Time) error {
	explanation, err := json.Marshal(s.Breakdown.Explanation)
	if err != nil {
		return apperrors.NewMalformedProfileError(fmt.Sprintf("explanation not serializable: %v", err))
	}
	b := s.Breakdown
	_, err = ex.ExecContext(ctx, upsertScoreSQL,
		s.CandidateID, s.OpportunityID, b.TotalScore, b.SkillScore, b.AcademicScore,
		b.ExperienceScore, b.PreferenceScore, explanation, computedAt.UTC(),
	)
	if err != nil {
		return apperrors.NewScoreWriteFailedError(err)
	}
	return nil
}

func (s *PostgresStore) UpsertPair(ctx context.Context, score models.PairScore, computedAt time.Time) error {
	return upsert(ctx, s.db, score, computedAt)
}

func (s *PostgresStore) BulkReplaceForCandidate(ctx context.Context, candidateID string, scores []models.PairScore, computedAt time.Time) (int, error) {
	if err := checkScope(scores, candidateID, ""); err != nil {
		return 0, err
	}
	return s.replace(ctx, `DELETE FROM match_scores WHERE candidate_id = $1`, candidateID, scores, computedAt)
}

func (s *PostgresStore) BulkReplaceForOpportunity(ctx context.Context, opportunityID string, scores []models.PairScore, computedAt time.Time) (int, error) {
	if err := checkScope(scores, "", opportunityID); err != nil {
		return 0, err
	}
	return s.replace(ctx, `DELETE FROM match_scores WHERE opportunity_id = $1`, opportunityID, scores, computedAt)
}

func (s *PostgresStore) replace(ctx context.Context, deleteSQL, id string, scores []models.PairScore, computedAt time.Time) (int, error) {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteSQL, id); err != nil {
			return apperrors.NewScoreWriteFailedError(err)
		}
		for _, score := range scores {
			if err := upsert(ctx, tx, score, computedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			return 0, stdErr
		}
		return 0, apperrors.NewScoreWriteFailedError(err)
	}
	return len(scores), nil
}

func (s *PostgresStore) TopForOpportunity(ctx context.Context, opportunityID string, limit int) ([]models.MatchScoreRecord, error) {
	return s.top(ctx, selectScoreColumns+`
WHERE opportunity_id = $1
ORDER BY total_score DESC, id ASC
LIMIT $2`, opportunityID, limit)
}

func (s *PostgresStore) TopForCandidate(ctx context.Context, candidateID string, limit int) ([]models.MatchScoreRecord, error) {
	return s.top(ctx, selectScoreColumns+`
WHERE candidate_id = $1
ORDER BY total_score DESC, id ASC
LIMIT $2`, candidateID, limit)
}

func (s *PostgresStore) top(ctx context.Context, query, id string, limit int) ([]models.MatchScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, id, NormalizeLimit(limit))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("top_matches", err)
	}
	defer rows.Close()

	records := []models.MatchScoreRecord{}
	for rows.Next() {
		var (
			r           models.MatchScoreRecord
			explanation []byte
		)
		if err := rows.Scan(
			&r.CandidateID, &r.OpportunityID, &r.TotalScore, &r.SkillScore, &r.AcademicScore,
			&r.ExperienceScore, &r.PreferenceScore, &explanation, &r.ComputedAt,
		); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("top_matches", err)
		}
		if len(explanation) > 0 {
			if err := json.Unmarshal(explanation, &r.Explanation); err != nil {
				return nil, apperrors.NewQueryExecutionFailedError("top_matches", err)
			}
		}
		r.Rank = len(records) + 1
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("top_matches", err)
	}
	return records, nil
}
