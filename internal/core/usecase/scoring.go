package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

type ExperienceCurve string

const (
	CurveLinear ExperienceCurve = "linear"
	CurveSqrt   ExperienceCurve = "sqrt"
)

const (
	strongSemanticThreshold   = 0.75
	moderateSemanticThreshold = 0.5
)

func (c ExperienceCurve) Valid() bool {
	return c == CurveLinear || c == CurveSqrt
}

func (c ExperienceCurve) apply(ratio float64) float64 {
	ratio = domain.Clamp01(ratio)
	if c == CurveSqrt {
		return math.Sqrt(ratio)
	}
	return ratio
}

// skillOverlap splits job skills into those the resume covers and those it lacks.
// Both lists are sorted.
func skillOverlap(job, resume domain.FeatureSet) (matched, missing []string) {
	have := resume.SkillSet()
	matched = []string{}
	missing = []string{}
	for _, skill := range domain.NormalizeSkills(job.Skills) {
		if _, ok := have[skill]; ok {
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}
	return matched, missing
}

func skillsScore(matched []string, required int) float64 {
	if required == 0 {
		return 1.0
	}
	return domain.Clamp01(float64(len(matched)) / math.Max(1, float64(required)))
}

// experienceScore measures resume years against max(1, jobYears), so a job
// without a stated requirement still asks for one year.
func experienceScore(curve ExperienceCurve, resumeYears, jobYears float64) float64 {
	return curve.apply(math.Max(0, resumeYears) / experienceBaseline(jobYears))
}

func experienceBaseline(jobYears float64) float64 {
	return math.Max(1, jobYears)
}

func scoreCandidate(
	weights domain.ScoreWeights,
	curve ExperienceCurve,
	job domain.JobDescription,
	resume domain.ResumeRecord,
	similarity float64,
) domain.MatchResult {
	semantic := domain.Clamp01(similarity)
	matched, missing := skillOverlap(job.Features, resume.Features)
	required := len(matched) + len(missing)
	skills := skillsScore(matched, required)
	experience := experienceScore(curve, resume.Features.ExperienceYears, job.Features.ExperienceYears)

	return domain.MatchResult{
		ResumeID:        resume.ID,
		JobID:           job.ID,
		SemanticScore:   semantic,
		SkillsScore:     skills,
		ExperienceScore: experience,
		CompositeScore:  weights.Composite(semantic, skills, experience),
		MatchedSkills:   matched,
		MissingSkills:   missing,
		Explanation:     explain(semantic, experience, matched, missing, resume.Features.ExperienceYears, job.Features.ExperienceYears),
	}
}

// explain renders reasons in a fixed order: semantic, skills, experience. The
// experience line follows the computed score, so "meets" always means 1.0.
func explain(semantic, experience float64, matched, missing []string, resumeYears, jobYears float64) []string {
	out := make([]string, 0, 4)
	out = append(out, fmt.Sprintf("semantic similarity %.2f (%s match)", semantic, semanticBand(semantic)))

	required := len(matched) + len(missing)
	if required == 0 {
		out = append(out, "job lists no required skills")
	} else {
		line := fmt.Sprintf("matches %d/%d required skills", len(matched), required)
		if len(matched) > 0 {
			line += ": " + strings.Join(matched, ", ")
		}
		out = append(out, line)
		if len(missing) > 0 {
			out = append(out, "missing skills: "+strings.Join(missing, ", "))
		}
	}

	baseline := experienceBaseline(jobYears)
	switch {
	case jobYears <= 0 && experience >= 1:
		out = append(out, "job states no experience requirement")
	case jobYears <= 0:
		out = append(out, fmt.Sprintf("job states no experience requirement (%.1f years vs %.1f baseline)", resumeYears, baseline))
	case experience >= 1:
		out = append(out, fmt.Sprintf("meets experience requirement (%.1f years vs %.1f required)", resumeYears, jobYears))
	default:
		out = append(out, fmt.Sprintf("below experience requirement (%.1f years vs %.1f required)", resumeYears, baseline))
	}
	return out
}

func semanticBand(score float64) string {
	switch {
	case score >= strongSemanticThreshold:
		return "strong"
	case score >= moderateSemanticThreshold:
		return "moderate"
	default:
		return "weak"
	}
}

func sortResults(results []domain.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CompositeScore != results[j].CompositeScore {
			return results[i].CompositeScore > results[j].CompositeScore
		}
		return results[i].ResumeID < results[j].ResumeID
	})
}
