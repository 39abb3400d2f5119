package matching

import (
	"math"
	"strings"

	"match-engine/internal/models"
)

const (
	preferenceBase    = 0.7
	locationBonus     = 0.2
	locationPenalty   = 0.3
	locationFloor     = 0.2
	jobTypeBonus      = 0.1
	industryBonus     = 0.1
	remoteKeyword     = "remote"
	adjustmentMatch   = "match"
	adjustmentMiss    = "mismatch"
	adjustmentNoInput = "none"
)

func preferenceScore(c models.CandidateProfile, o models.OpportunityProfile) (float64, map[string]interface{}) {
	score := preferenceBase

	var locations, jobTypes, industries []string
	for _, p := range c.Preferences {
		switch p.Type {
		case models.PreferenceLocation:
			locations = append(locations, p.Value)
		case models.PreferenceJobType:
			jobTypes = append(jobTypes, p.Value)
		case models.PreferenceIndustry:
			industries = append(industries, p.Value)
		}
	}

	adjustment := adjustmentNoInput
	if len(locations) > 0 && strings.TrimSpace(o.Location) != "" {
		if anyLocationMatches(locations, o.Location) {
			adjustment = adjustmentMatch
			score = math.Min(score+locationBonus, 1)
		} else {
			adjustment = adjustmentMiss
			score = math.Max(score-locationPenalty, locationFloor)
		}
	}

	jobTypeMatch := anyEqualFold(jobTypes, o.JobTypes)
	if jobTypeMatch {
		score = math.Min(score+jobTypeBonus, 1)
	}

	industryMatch := o.Industry != "" && anyEqualFold(industries, []string{o.Industry})
	if industryMatch {
		score = math.Min(score+industryBonus, 1)
	}

	why := map[string]interface{}{
		"locationAdjustment": adjustment,
		"jobTypeMatch":       jobTypeMatch,
		"industryMatch":      industryMatch,
	}
	return clamp01(score), why
}

// anyLocationMatches treats "remote" on either side as a wildcard and
// otherwise accepts a case-insensitive substring in either direction.
func anyLocationMatches(prefs []string, location string) bool {
	loc := normalize(location)
	if loc == remoteKeyword {
		return true
	}
	for _, p := range prefs {
		pref := normalize(p)
		if pref == "" {
			continue
		}
		if pref == remoteKeyword || strings.Contains(loc, pref) || strings.Contains(pref, loc) {
			return true
		}
	}
	return false
}

func anyEqualFold(a, b []string) bool {
	for _, x := range a {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		for _, y := range b {
			if strings.EqualFold(x, strings.TrimSpace(y)) {
				return true
			}
		}
	}
	return false
}
