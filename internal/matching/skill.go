package matching

import (
	"math"

	"match-engine/internal/models"
)

const neutralSkillScore = 0.5

// skillScore is the weighted share of declared skills the candidate holds.
// A missing skill contributes nothing whether or not it is flagged required;
// the flag only changes which explanation list it lands in.
func skillScore(c models.CandidateProfile, o models.OpportunityProfile) (float64, map[string]interface{}) {
	why := map[string]interface{}{
		"matchedSkills":         []string{},
		"missingRequiredSkills": []string{},
		"missingOptionalSkills": []string{},
		"matchedWeight":         0.0,
		"totalWeight":           0.0,
	}
	if len(o.RequiredSkills) == 0 {
		why["reason"] = "opportunity declares no skills"
		return neutralSkillScore, why
	}

	held := make(map[string]float64, len(c.Skills))
	for _, s := range c.Skills {
		v := skillStrength(s)
		if prev, ok := held[s.SkillID]; !ok || v > prev {
			held[s.SkillID] = v
		}
	}

	matched := []string{}
	missingRequired := []string{}
	missingOptional := []string{}
	var matchedWeight, totalWeight float64

	for _, req := range o.RequiredSkills {
		w := math.Max(float64(req.Weight), 0)
		totalWeight += w
		if strength, ok := held[req.SkillID]; ok {
			matchedWeight += strength * w
			matched = append(matched, req.SkillID)
			continue
		}
		if req.Required {
			missingRequired = append(missingRequired, req.SkillID)
		} else {
			missingOptional = append(missingOptional, req.SkillID)
		}
	}

	why["matchedSkills"] = matched
	why["missingRequiredSkills"] = missingRequired
	why["missingOptionalSkills"] = missingOptional
	why["matchedWeight"] = round2(matchedWeight)
	why["totalWeight"] = totalWeight

	if totalWeight == 0 {
		why["reason"] = "declared skills carry no weight"
		return neutralSkillScore, why
	}
	return clamp01(matchedWeight / totalWeight), why
}

// skillStrength is min(proficiency/5 + min(years/5, 0.2), 1).
func skillStrength(s models.CandidateSkill) float64 {
	years := math.Max(s.YearsOfExperience, 0)
	v := float64(s.Proficiency)/5 + math.Min(years/5, 0.2)
	return clamp01(v)
}
