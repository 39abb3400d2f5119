// internal/models/opportunity.go
package models

// OpportunityProfile is a read-only snapshot owned by the opportunity service.
type OpportunityProfile struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	RequiredSkills []RequiredSkill `json:"requiredSkills"`
	GPAThreshold   *float64        `json:"gpaThreshold,omitempty"`
	IsTechnical    bool            `json:"isTechnical"`
	JobTypes       []string        `json:"jobTypes"`
	Industry       string          `json:"industry,omitempty"`
	Location       string          `json:"location,omitempty"`
}

type RequiredSkill struct {
	SkillID  string `json:"skillId"`
	Weight   int    `json:"weight"` // 1-5
	Required bool   `json:"required"`
}
