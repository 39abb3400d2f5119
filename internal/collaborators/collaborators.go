// Package collaborators reads candidate and opportunity snapshots from the
// services that own them.
package collaborators

import (
	"context"

	"match-engine/internal/models"
)

// ProfileService is the candidate profile collaborator. GetCandidate returns
// a CANDIDATE_NOT_FOUND error when the candidate no longer exists.
type ProfileService interface {
	GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error)
	ListActiveCandidates(ctx context.Context) ([]models.CandidateProfile, error)
}

// OpportunityService is the opportunity collaborator. GetOpportunity returns
// an OPPORTUNITY_NOT_FOUND error when the opportunity no longer exists.
type OpportunityService interface {
	GetOpportunity(ctx context.Context, id string) (*models.OpportunityProfile, error)
	ListActiveOpportunities(ctx context.Context) ([]models.OpportunityProfile, error)
}

// Invalidator drops cached snapshots after the owning service reports a change.
type Invalidator interface {
	InvalidateCandidate(ctx context.Context, id string) error
	InvalidateOpportunity(ctx context.Context, id string) error
}
