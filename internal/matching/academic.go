package matching

import (
	"math"

	"match-engine/internal/models"
)

const (
	academicBase         = 0.5
	technicalMajorBonus  = 0.1
	branchThreshold      = "threshold"
	branchGPAOnly        = "gpa_only"
	branchNone           = "none"
	gpaScale             = 4.0
	thresholdMetScore    = 0.7
	thresholdAboveFactor = 0.3
	thresholdBelowFactor = 0.5
	thresholdFloor       = 0.2
)

func academicScore(c models.CandidateProfile, o models.OpportunityProfile, majors majorSet) (float64, map[string]interface{}) {
	gpa := c.Academic.GPA
	threshold := o.GPAThreshold

	score := academicBase
	branch := branchNone
	switch {
	case gpa != nil && threshold != nil:
		branch = branchThreshold
		if *gpa >= *threshold {
			score = math.Min(thresholdMetScore+(*gpa-*threshold)/gpaScale*thresholdAboveFactor, 1)
		} else {
			score = math.Max(thresholdFloor, thresholdMetScore-(*threshold-*gpa)/gpaScale*thresholdBelowFactor)
		}
	case gpa != nil:
		branch = branchGPAOnly
		score = math.Min(math.Max(*gpa, 0)/gpaScale, 1)
	}

	bonus := o.IsTechnical && isTechnicalMajor(c.Academic, majors)
	if bonus {
		score = math.Min(score+technicalMajorBonus, 1)
	}

	why := map[string]interface{}{
		"branch":              branch,
		"candidateGpa":        floatOrNil(gpa),
		"gpaThreshold":        floatOrNil(threshold),
		"technicalMajorBonus": bonus,
	}
	return clamp01(score), why
}

// isTechnicalMajor prefers the explicit flag and falls back to the major set.
func isTechnicalMajor(a models.AcademicRecord, majors majorSet) bool {
	if a.IsTechnicalMajor != nil {
		return *a.IsTechnicalMajor
	}
	return majors.contains(a.MajorName) || majors.contains(a.MajorID)
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
