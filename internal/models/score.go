// internal/models/score.go
package models

import "time"

// Explanation keys of the per-sub-score sections.
const (
	ExplainSkill      = "skill"
	ExplainAcademic   = "academic"
	ExplainExperience = "experience"
	ExplainPreference = "preference"
)

// Explanation holds one open-ended section per sub-score. It is used for
// audit and UI insight only and never feeds back into scoring.
type Explanation map[string]map[string]interface{}

type MatchScoreBreakdown struct {
	TotalScore      float64     `json:"totalScore"`
	SkillScore      float64     `json:"skillScore"`
	AcademicScore   float64     `json:"academicScore"`
	ExperienceScore float64     `json:"experienceScore"`
	PreferenceScore float64     `json:"preferenceScore"`
	Explanation     Explanation `json:"explanation"`
}

// PairScore is a freshly computed breakdown for one candidate/opportunity pair.
type PairScore struct {
	CandidateID   string              `json:"candidateId"`
	OpportunityID string              `json:"opportunityId"`
	Breakdown     MatchScoreBreakdown `json:"breakdown"`
}

// MatchScoreRecord is the persisted form of a breakdown. At most one exists
// per (CandidateID, OpportunityID).
type MatchScoreRecord struct {
	CandidateID   string `json:"candidateId"`
	OpportunityID string `json:"opportunityId"`
	MatchScoreBreakdown
	ComputedAt time.Time `json:"computedAt"`
	Rank       int       `json:"rank,omitempty"`
}
