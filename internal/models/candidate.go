// internal/models/candidate.go
package models

import "time"

type PreferenceType string

const (
	PreferenceLocation PreferenceType = "LOCATION"
	PreferenceJobType  PreferenceType = "JOB_TYPE"
	PreferenceIndustry PreferenceType = "INDUSTRY"
)

// CandidateProfile is a read-only snapshot owned by the profile service.
type CandidateProfile struct {
	ID          string           `json:"id"`
	Skills      []CandidateSkill `json:"skills"`
	Academic    AcademicRecord   `json:"academic"`
	Experiences []WorkExperience `json:"experiences"`
	Projects    []Project        `json:"projects"`
	Preferences []Preference     `json:"preferences"`
}

type CandidateSkill struct {
	SkillID           string  `json:"skillId"`
	Proficiency       int     `json:"proficiency"` // 1-5
	YearsOfExperience float64 `json:"yearsOfExperience"`
}

type AcademicRecord struct {
	GPA              *float64 `json:"gpa,omitempty"` // 0.0-4.0
	UniversityID     string   `json:"universityId,omitempty"`
	MajorID          string   `json:"majorId,omitempty"`
	MajorName        string   `json:"majorName,omitempty"`
	IsTechnicalMajor *bool    `json:"isTechnicalMajor,omitempty"`
}

type WorkExperience struct {
	Title          string     `json:"title"`
	Employer       string     `json:"employer"`
	EmploymentType string     `json:"employmentType"`
	StartDate      time.Time  `json:"startDate"`
	EndDate        *time.Time `json:"endDate,omitempty"` // nil while ongoing
}

type Project struct {
	Name     string   `json:"name"`
	SkillIDs []string `json:"skillIds"`
}

type Preference struct {
	Type     PreferenceType `json:"type"`
	Value    string         `json:"value"`
	Priority int            `json:"priority"`
}
