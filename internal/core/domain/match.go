package domain

import (
	"fmt"
	"math"
)

type MatchResult struct {
	ResumeID        string   `json:"resume_id"`
	JobID           string   `json:"job_id"`
	SemanticScore   float64  `json:"semantic_score"`
	SkillsScore     float64  `json:"skills_score"`
	ExperienceScore float64  `json:"experience_score"`
	CompositeScore  float64  `json:"composite_score"`
	MatchedSkills   []string `json:"matched_skills"`
	MissingSkills   []string `json:"missing_skills"`
	Explanation     []string `json:"explanation"`
}

// Neighbor is one hit of a nearest-neighbour query.
type Neighbor struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

const weightTolerance = 1e-6

type ScoreWeights struct {
	Semantic   float64 `json:"semantic"`
	Skills     float64 `json:"skills"`
	Experience float64 `json:"experience"`
}

func (w ScoreWeights) Validate() error {
	if w.Semantic < 0 || w.Skills < 0 || w.Experience < 0 {
		return WrapError(ErrInvalidInput, "validate weights", fmt.Errorf("negative weight in %+v", w))
	}
	sum := w.Semantic + w.Skills + w.Experience
	if math.Abs(sum-1.0) > weightTolerance {
		return WrapError(ErrInvalidInput, "validate weights", fmt.Errorf("weights sum to %.6f, want 1.0", sum))
	}
	return nil
}

// Composite is the linear combination of the three sub-scores, clamped to [0,1].
func (w ScoreWeights) Composite(semantic, skills, experience float64) float64 {
	return Clamp01(w.Semantic*semantic + w.Skills*skills + w.Experience*experience)
}

func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
