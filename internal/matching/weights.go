package matching

import (
	"fmt"
	"math"

	"match-engine/internal/common/config"
)

const weightTolerance = 1e-6

// Weights are the blend factors of the four sub-scores.
type Weights struct {
	Skill      float64 `json:"skill"`
	Academic   float64 `json:"academic"`
	Experience float64 `json:"experience"`
	Preference float64 `json:"preference"`
}

func DefaultWeights() Weights {
	return Weights{Skill: 0.40, Academic: 0.25, Experience: 0.25, Preference: 0.10}
}

// WeightsFromConfig converts the configured weights.
func WeightsFromConfig(cfg config.WeightsConfig) Weights {
	return Weights{
		Skill:      cfg.Skill,
		Academic:   cfg.Academic,
		Experience: cfg.Experience,
		Preference: cfg.Preference,
	}
}

// Validate checks that every weight is non-negative and that they sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"skill": w.Skill, "academic": w.Academic, "experience": w.Experience, "preference": w.Preference,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight %s must be non-negative, got %v", name, v)
		}
	}
	if sum := w.Skill + w.Academic + w.Experience + w.Preference; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weights must sum to 1, got %.6f", sum)
	}
	return nil
}
