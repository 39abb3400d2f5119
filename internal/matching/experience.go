package matching

import (
	"math"
	"strings"
	"time"
	"unicode"

	"match-engine/internal/models"
)

const (
	monthsForFullWork   = 24.0
	projectsForFull     = 3.0
	workMatchBonus      = 0.2
	projectOverlapBonus = 0.3
	workShare           = 0.7
	projectShare        = 0.3
)

func experienceScore(c models.CandidateProfile, o models.OpportunityProfile, asOf time.Time) (float64, map[string]interface{}) {
	totalMonths := 0
	for _, e := range c.Experiences {
		end := asOf
		if e.EndDate != nil {
			end = *e.EndDate
		}
		totalMonths += wholeMonths(e.StartDate, end)
	}

	work := math.Min(float64(totalMonths)/monthsForFullWork, 1)
	typeOrTitle := workMatches(c.Experiences, o)
	if typeOrTitle {
		work = math.Min(work+workMatchBonus, 1)
	}

	projects := math.Min(float64(len(c.Projects))/projectsForFull, 1)
	overlap := projectSkillOverlap(c.Projects, o)
	if overlap {
		projects = math.Min(projects+projectOverlapBonus, 1)
	}

	why := map[string]interface{}{
		"totalMonths":         totalMonths,
		"workScore":           round2(work),
		"projectCount":        len(c.Projects),
		"projectScore":        round2(projects),
		"typeOrTitleMatch":    typeOrTitle,
		"projectSkillOverlap": overlap,
	}
	return clamp01(work*workShare + projects*projectShare), why
}

// wholeMonths counts completed calendar months from start to end; a span
// ending before it starts counts as zero.
func wholeMonths(start, end time.Time) int {
	if start.IsZero() || !end.After(start) {
		return 0
	}
	start, end = start.UTC(), end.UTC()
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func workMatches(exps []models.WorkExperience, o models.OpportunityProfile) bool {
	oppKeyword := leadingKeyword(o.Title)
	for _, e := range exps {
		for _, jt := range o.JobTypes {
			if e.EmploymentType != "" && strings.EqualFold(strings.TrimSpace(e.EmploymentType), strings.TrimSpace(jt)) {
				return true
			}
		}
		if oppKeyword != "" && leadingKeyword(e.Title) == oppKeyword {
			return true
		}
	}
	return false
}

// leadingKeyword is the first word of a title, lower-cased and stripped of
// surrounding punctuation.
func leadingKeyword(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

func projectSkillOverlap(projects []models.Project, o models.OpportunityProfile) bool {
	if len(o.RequiredSkills) == 0 {
		return false
	}
	declared := make(map[string]struct{}, len(o.RequiredSkills))
	for _, s := range o.RequiredSkills {
		declared[s.SkillID] = struct{}{}
	}
	for _, p := range projects {
		for _, id := range p.SkillIDs {
			if _, ok := declared[id]; ok {
				return true
			}
		}
	}
	return false
}
