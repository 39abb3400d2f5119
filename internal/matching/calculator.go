// Package matching computes the deterministic match score between a
// candidate profile and an opportunity profile.
package matching

import (
	"math"
	"strings"
	"time"

	"match-engine/internal/models"
)

// DefaultTechnicalMajors is the technical-major set used when none is configured.
var DefaultTechnicalMajors = []string{
	"computer science",
	"computer engineering",
	"software engineering",
	"electrical engineering",
	"electronics engineering",
	"information technology",
	"information systems",
	"data science",
	"mathematics",
	"statistics",
	"physics",
	"mechanical engineering",
}

var defaultMajorSet = newMajorSet(DefaultTechnicalMajors)

// Compute scores candidate c against opportunity o. asOf is the end date used
// for open-ended work experience. The result depends only on its arguments.
func Compute(c models.CandidateProfile, o models.OpportunityProfile, w Weights, asOf time.Time) models.MatchScoreBreakdown {
	return compute(c, o, w, asOf, defaultMajorSet)
}

func compute(c models.CandidateProfile, o models.OpportunityProfile, w Weights, asOf time.Time, majors majorSet) models.MatchScoreBreakdown {
	skill, skillWhy := skillScore(c, o)
	academic, academicWhy := academicScore(c, o, majors)
	experience, experienceWhy := experienceScore(c, o, asOf)
	preference, preferenceWhy := preferenceScore(c, o)

	skill = round2(skill)
	academic = round2(academic)
	experience = round2(experience)
	preference = round2(preference)

	total := skill*w.Skill + academic*w.Academic + experience*w.Experience + preference*w.Preference

	return models.MatchScoreBreakdown{
		TotalScore:      clamp01(round2(total)),
		SkillScore:      skill,
		AcademicScore:   academic,
		ExperienceScore: experience,
		PreferenceScore: preference,
		Explanation: models.Explanation{
			models.ExplainSkill:      skillWhy,
			models.ExplainAcademic:   academicWhy,
			models.ExplainExperience: experienceWhy,
			models.ExplainPreference: preferenceWhy,
		},
	}
}

// Calculator binds validated weights, a technical-major set and a clock.
type Calculator struct {
	weights Weights
	majors  majorSet
	now     func() time.Time
}

type Option func(*Calculator)

// WithClock overrides the clock used as the end of open-ended experience.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// WithTechnicalMajors replaces the technical-major set.
func WithTechnicalMajors(majors []string) Option {
	return func(c *Calculator) {
		if len(majors) > 0 {
			c.majors = newMajorSet(majors)
		}
	}
}

func NewCalculator(w Weights, opts ...Option) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	c := &Calculator{weights: w, majors: defaultMajorSet, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Calculator) Weights() Weights { return c.weights }

// Score computes the breakdown as of the calculator's clock.
func (c *Calculator) Score(candidate models.CandidateProfile, opportunity models.OpportunityProfile) models.MatchScoreBreakdown {
	return compute(candidate, opportunity, c.weights, c.now().UTC(), c.majors)
}

type majorSet map[string]struct{}

func newMajorSet(majors []string) majorSet {
	s := make(majorSet, len(majors))
	for _, m := range majors {
		if k := normalize(m); k != "" {
			s[k] = struct{}{}
		}
	}
	return s
}

func (s majorSet) contains(v string) bool {
	_, ok := s[normalize(v)]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
