package domain

import (
	"sort"
	"time"
)

type ResumeStatus string

const (
	StatusPending    ResumeStatus = "PENDING"
	StatusProcessing ResumeStatus = "PROCESSING"
	StatusReady      ResumeStatus = "READY"
	StatusFailed     ResumeStatus = "FAILED"
)

func (s ResumeStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

type Stage string

const (
	StageExtraction Stage = "extraction"
	StageParsing    Stage = "parsing"
	StageEmbedding  Stage = "embedding"
	StageStorage    Stage = "storage"
	StageQueue      Stage = "queue"
)

type FeatureSet struct {
	Skills          []string          `json:"skills"`
	ExperienceYears float64           `json:"experience_years"`
	Sections        map[string]string `json:"sections,omitempty"`
}

func (f FeatureSet) SkillSet() map[string]struct{} {
	out := make(map[string]struct{}, len(f.Skills))
	for _, s := range f.Skills {
		out[s] = struct{}{}
	}
	return out
}

func (f FeatureSet) Clone() FeatureSet {
	out := FeatureSet{ExperienceYears: f.ExperienceYears}
	if f.Skills != nil {
		out.Skills = append([]string(nil), f.Skills...)
	}
	if f.Sections != nil {
		out.Sections = make(map[string]string, len(f.Sections))
		for k, v := range f.Sections {
			out.Sections[k] = v
		}
	}
	return out
}

// NormalizeSkills returns a sorted copy of skills without duplicates or blanks.
func NormalizeSkills(skills []string) []string {
	if len(skills) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type ResumeRecord struct {
	ID            string         `json:"id"`
	RawTextHash   string         `json:"raw_text_hash"`
	Filename      string         `json:"filename,omitempty"`
	Format        DocumentFormat `json:"format"`
	ExtractedText string         `json:"extracted_text,omitempty"`
	Features      FeatureSet     `json:"features"`
	Embedding     []float32      `json:"-"`
	Status        ResumeStatus   `json:"status"`
	LastError     string         `json:"last_error,omitempty"`
	FailedStage   Stage          `json:"failed_stage,omitempty"`
	Attempts      int            `json:"attempts"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so stores never share mutable slices with callers.
func (r ResumeRecord) Clone() ResumeRecord {
	out := r
	out.Features = r.Features.Clone()
	if r.Embedding != nil {
		out.Embedding = append([]float32(nil), r.Embedding...)
	}
	return out
}

// StaleProcessing reports whether a PROCESSING record has not been touched for
// longer than after. Such a record was abandoned by a worker that died
// mid-attempt; a live attempt always ends or fails within its stage deadlines.
func (r ResumeRecord) StaleProcessing(now time.Time, after time.Duration) bool {
	return r.Status == StatusProcessing && after > 0 && now.Sub(r.UpdatedAt) > after
}
