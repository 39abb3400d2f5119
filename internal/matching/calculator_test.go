package matching

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"match-engine/internal/common/validation"
	"match-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"defaults", DefaultWeights(), false},
		{"all on skill", Weights{Skill: 1}, false},
		{"within tolerance", Weights{Skill: 0.4, Academic: 0.25, Experience: 0.25, Preference: 0.1000005}, false},
		{"negative", Weights{Skill: 1.2, Academic: -0.2}, true},
		{"sum too low", Weights{Skill: 0.5, Academic: 0.2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSkillScore_RequiredAndOptionalMix(t *testing.T) {
	c := models.CandidateProfile{
		ID:     "c1",
		Skills: []models.CandidateSkill{{SkillID: "A", Proficiency: 5, YearsOfExperience: 3}},
	}
	o := models.OpportunityProfile{
		ID: "o1",
		RequiredSkills: []models.RequiredSkill{
			{SkillID: "A", Weight: 3, Required: true},
			{SkillID: "B", Weight: 2, Required: false},
		},
	}

	got := Compute(c, o, DefaultWeights(), asOf)
	assert.Equal(t, 0.60, got.SkillScore)

	why := got.Explanation[models.ExplainSkill]
	assert.Equal(t, []string{"A"}, why["matchedSkills"])
	assert.Equal(t, []string{"B"}, why["missingOptionalSkills"])
	assert.Equal(t, []string{}, why["missingRequiredSkills"])
	assert.Equal(t, 5.0, why["totalWeight"])
}

func TestSkillScore_MissingRequiredScoresLikeMissingOptional(t *testing.T) {
	c := models.CandidateProfile{
		Skills: []models.CandidateSkill{{SkillID: "A", Proficiency: 3, YearsOfExperience: 1}},
	}
	base := models.OpportunityProfile{RequiredSkills: []models.RequiredSkill{
		{SkillID: "A", Weight: 4, Required: true},
		{SkillID: "B", Weight: 2, Required: true},
	}}
	flipped := models.OpportunityProfile{RequiredSkills: []models.RequiredSkill{
		{SkillID: "A", Weight: 4, Required: true},
		{SkillID: "B", Weight: 2, Required: false},
	}}

	a := Compute(c, base, DefaultWeights(), asOf)
	b := Compute(c, flipped, DefaultWeights(), asOf)

	assert.Equal(t, a.SkillScore, b.SkillScore)
	assert.Equal(t, []string{"B"}, a.Explanation[models.ExplainSkill]["missingRequiredSkills"])
	assert.Equal(t, []string{"B"}, b.Explanation[models.ExplainSkill]["missingOptionalSkills"])
}

func TestSkillScore_NoDeclaredSkills(t *testing.T) {
	got := Compute(models.CandidateProfile{}, models.OpportunityProfile{}, DefaultWeights(), asOf)
	assert.Equal(t, 0.5, got.SkillScore)
	assert.Contains(t, got.Explanation[models.ExplainSkill], "reason")
}

func TestAcademicScore(t *testing.T) {
	tests := []struct {
		name       string
		academic   models.AcademicRecord
		threshold  *float64
		technical  bool
		want       float64
		wantBranch string
	}{
		{"above threshold", models.AcademicRecord{GPA: f64(3.8)}, f64(3.0), false, 0.76, "threshold"},
		{"below threshold", models.AcademicRecord{GPA: f64(1.0)}, f64(3.0), false, 0.45, "threshold"},
		{"floor", models.AcademicRecord{GPA: f64(0)}, f64(4.0), false, 0.2, "threshold"},
		{"gpa only", models.AcademicRecord{GPA: f64(3.0)}, nil, false, 0.75, "gpa_only"},
		{"threshold without gpa", models.AcademicRecord{}, f64(3.0), false, 0.5, "none"},
		{"technical major by name", models.AcademicRecord{MajorName: "Computer Science"}, nil, true, 0.6, "none"},
		{"explicit flag wins", models.AcademicRecord{MajorName: "Computer Science", IsTechnicalMajor: boolp(false)}, nil, true, 0.5, "none"},
		{"bonus on threshold branch", models.AcademicRecord{GPA: f64(3.8), IsTechnicalMajor: boolp(true)}, f64(3.0), true, 0.86, "threshold"},
		{"no bonus for non-technical opportunity", models.AcademicRecord{GPA: f64(3.8), IsTechnicalMajor: boolp(true)}, f64(3.0), false, 0.76, "threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.CandidateProfile{Academic: tt.academic}
			o := models.OpportunityProfile{GPAThreshold: tt.threshold, IsTechnical: tt.technical}
			got := Compute(c, o, DefaultWeights(), asOf)
			assert.Equal(t, tt.want, got.AcademicScore)
			assert.Equal(t, tt.wantBranch, got.Explanation[models.ExplainAcademic]["branch"])
		})
	}
}

func TestExperienceScore(t *testing.T) {
	opp := models.OpportunityProfile{
		Title:          "Backend Engineer",
		JobTypes:       []string{"FULL_TIME"},
		RequiredSkills: []models.RequiredSkill{{SkillID: "go", Weight: 3, Required: true}},
	}

	t.Run("full history with title match and project overlap", func(t *testing.T) {
		end := date(2024, time.January, 15)
		c := models.CandidateProfile{
			Experiences: []models.WorkExperience{{
				Title: "backend developer", EmploymentType: "CONTRACT",
				StartDate: date(2022, time.January, 15), EndDate: &end,
			}},
			Projects: []models.Project{{Name: "queue", SkillIDs: []string{"go"}}},
		}
		got := Compute(c, opp, DefaultWeights(), asOf)
		why := got.Explanation[models.ExplainExperience]
		assert.Equal(t, 24, why["totalMonths"])
		assert.Equal(t, true, why["typeOrTitleMatch"])
		assert.Equal(t, true, why["projectSkillOverlap"])
		assert.Equal(t, 0.89, got.ExperienceScore)
	})

	t.Run("open-ended entry ends at asOf", func(t *testing.T) {
		c := models.CandidateProfile{Experiences: []models.WorkExperience{{
			Title: "Analyst", EmploymentType: "PART_TIME", StartDate: date(2023, time.June, 1),
		}}}
		got := Compute(c, opp, DefaultWeights(), asOf)
		assert.Equal(t, 12, got.Explanation[models.ExplainExperience]["totalMonths"])
		assert.Equal(t, 0.35, got.ExperienceScore)
	})

	t.Run("employment type matches case-insensitively", func(t *testing.T) {
		end := date(2023, time.June, 1)
		c := models.CandidateProfile{Experiences: []models.WorkExperience{{
			Title: "Analyst", EmploymentType: "full_time", StartDate: date(2023, time.March, 1), EndDate: &end,
		}}}
		got := Compute(c, opp, DefaultWeights(), asOf)
		assert.Equal(t, true, got.Explanation[models.ExplainExperience]["typeOrTitleMatch"])
	})

	t.Run("negative span counts as zero", func(t *testing.T) {
		end := date(2020, time.January, 1)
		c := models.CandidateProfile{Experiences: []models.WorkExperience{{
			Title: "Analyst", StartDate: date(2021, time.January, 1), EndDate: &end,
		}}}
		got := Compute(c, opp, DefaultWeights(), asOf)
		assert.Equal(t, 0, got.Explanation[models.ExplainExperience]["totalMonths"])
		assert.Equal(t, 0.0, got.ExperienceScore)
	})
}

func TestWholeMonths(t *testing.T) {
	assert.Equal(t, 23, wholeMonths(date(2022, 1, 15), date(2024, 1, 14)))
	assert.Equal(t, 24, wholeMonths(date(2022, 1, 15), date(2024, 1, 15)))
	assert.Equal(t, 0, wholeMonths(date(2024, 1, 15), date(2024, 2, 14)))
	assert.Equal(t, 0, wholeMonths(time.Time{}, asOf))
}

func TestPreferenceScore(t *testing.T) {
	pref := func(kind models.PreferenceType, v string) models.Preference {
		return models.Preference{Type: kind, Value: v, Priority: 1}
	}
	tests := []struct {
		name           string
		prefs          []models.Preference
		opp            models.OpportunityProfile
		want           float64
		wantAdjustment string
	}{
		{"neutral", nil, models.OpportunityProfile{Location: "Berlin"}, 0.7, "none"},
		{"substring match", []models.Preference{pref(models.PreferenceLocation, "berlin")},
			models.OpportunityProfile{Location: "Berlin, Germany"}, 0.9, "match"},
		{"remote preference", []models.Preference{pref(models.PreferenceLocation, "Remote")},
			models.OpportunityProfile{Location: "Paris"}, 0.9, "match"},
		{"remote opportunity", []models.Preference{pref(models.PreferenceLocation, "Lisbon")},
			models.OpportunityProfile{Location: "remote"}, 0.9, "match"},
		{"mismatch", []models.Preference{pref(models.PreferenceLocation, "Berlin")},
			models.OpportunityProfile{Location: "Paris"}, 0.4, "mismatch"},
		{"no opportunity location", []models.Preference{pref(models.PreferenceLocation, "Berlin")},
			models.OpportunityProfile{}, 0.7, "none"},
		{"mismatch with job type and industry", []models.Preference{
			pref(models.PreferenceLocation, "Berlin"),
			pref(models.PreferenceJobType, "internship"),
			pref(models.PreferenceIndustry, "fintech"),
		}, models.OpportunityProfile{Location: "Paris", JobTypes: []string{"INTERNSHIP"}, Industry: "FinTech"}, 0.6, "mismatch"},
		{"capped at one", []models.Preference{
			pref(models.PreferenceLocation, "Berlin"),
			pref(models.PreferenceJobType, "FULL_TIME"),
			pref(models.PreferenceIndustry, "fintech"),
		}, models.OpportunityProfile{Location: "Berlin", JobTypes: []string{"FULL_TIME"}, Industry: "fintech"}, 1.0, "match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(models.CandidateProfile{Preferences: tt.prefs}, tt.opp, DefaultWeights(), asOf)
			assert.Equal(t, tt.want, got.PreferenceScore)
			assert.Equal(t, tt.wantAdjustment, got.Explanation[models.ExplainPreference]["locationAdjustment"])
		})
	}
}

func randomPair(r *rand.Rand, i int) (models.CandidateProfile, models.OpportunityProfile) {
	skills := []string{"go", "sql", "k8s", "react", "ml", "aws"}
	c := models.CandidateProfile{ID: fmt.Sprintf("c%d", i)}
	for _, s := range skills {
		if r.Intn(2) == 0 {
			c.Skills = append(c.Skills, models.CandidateSkill{
				SkillID: s, Proficiency: r.Intn(5) + 1, YearsOfExperience: r.Float64() * 10,
			})
		}
	}
	if r.Intn(3) > 0 {
		c.Academic.GPA = f64(r.Float64() * 4)
	}
	for j := 0; j < r.Intn(4); j++ {
		start := asOf.AddDate(-r.Intn(8), -r.Intn(12), 0)
		c.Experiences = append(c.Experiences, models.WorkExperience{
			Title: "Engineer", EmploymentType: "FULL_TIME", StartDate: start,
		})
	}
	for j := 0; j < r.Intn(5); j++ {
		c.Projects = append(c.Projects, models.Project{Name: "p", SkillIDs: []string{skills[r.Intn(len(skills))]}})
	}
	c.Preferences = []models.Preference{{Type: models.PreferenceLocation, Value: "Berlin"}}

	o := models.OpportunityProfile{ID: fmt.Sprintf("o%d", i), Title: "Engineer II", IsTechnical: r.Intn(2) == 0, Location: "Munich"}
	for _, s := range skills[:r.Intn(len(skills))] {
		o.RequiredSkills = append(o.RequiredSkills, models.RequiredSkill{
			SkillID: s, Weight: r.Intn(5) + 1, Required: r.Intn(2) == 0,
		})
	}
	if r.Intn(2) == 0 {
		o.GPAThreshold = f64(2 + r.Float64()*2)
	}
	return c, o
}

func TestCompute_DeterministicAndBounded(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	w := DefaultWeights()
	for i := 0; i < 500; i++ {
		c, o := randomPair(r, i)
		first := Compute(c, o, w, asOf)
		second := Compute(c, o, w, asOf)
		require.Equal(t, first, second)

		for name, v := range map[string]float64{
			"total": first.TotalScore, "skill": first.SkillScore, "academic": first.AcademicScore,
			"experience": first.ExperienceScore, "preference": first.PreferenceScore,
		} {
			require.GreaterOrEqual(t, v, 0.0, name)
			require.LessOrEqual(t, v, 1.0, name)
		}

		weighted := first.SkillScore*w.Skill + first.AcademicScore*w.Academic +
			first.ExperienceScore*w.Experience + first.PreferenceScore*w.Preference
		require.Equal(t, round2(weighted), first.TotalScore)
	}
}

func TestCompute_ExplanationMatchesSchema(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 25; i++ {
		c, o := randomPair(r, i)
		got := Compute(c, o, DefaultWeights(), asOf)
		res, err := validation.Validate(validation.SchemaExplanation, got.Explanation)
		require.NoError(t, err)
		require.True(t, res.Valid, res.GetErrorMessages())
	}
}

func TestCalculator(t *testing.T) {
	_, err := NewCalculator(Weights{Skill: 2})
	require.Error(t, err)

	calc, err := NewCalculator(DefaultWeights(),
		WithClock(func() time.Time { return asOf }),
		WithTechnicalMajors([]string{"Astrophysics"}),
	)
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), calc.Weights())

	c := models.CandidateProfile{
		Academic: models.AcademicRecord{MajorName: "astrophysics"},
		Experiences: []models.WorkExperience{{
			Title: "Researcher", StartDate: date(2023, time.June, 1),
		}},
	}
	o := models.OpportunityProfile{IsTechnical: true}
	got := calc.Score(c, o)
	assert.Equal(t, 0.6, got.AcademicScore)
	assert.Equal(t, 12, got.Explanation[models.ExplainExperience]["totalMonths"])
	assert.Equal(t, Compute(c, o, DefaultWeights(), asOf).SkillScore, got.SkillScore)
}
