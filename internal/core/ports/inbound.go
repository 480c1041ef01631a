package ports

import (
	"context"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// ResumeSubmitter accepts raw resumes and schedules them for background ingestion.
type ResumeSubmitter interface {
	Submit(ctx context.Context, doc domain.Document) (string, error)
}

// ResumeReader is the read model for resume ingestion state.
type ResumeReader interface {
	GetStatus(ctx context.Context, resumeID string) (*domain.ResumeRecord, error)
}

// ResumeProcessor runs one ingestion attempt for a queued resume.
type ResumeProcessor interface {
	ProcessByID(ctx context.Context, resumeID string) error
}

// RankOptions narrows a ranking request.
type RankOptions struct {
	TopK         int
	CandidateIDs []string
}

// CandidateRanker ranks READY resumes against a job description.
type CandidateRanker interface {
	RankCandidates(ctx context.Context, jobText string, topK int) ([]domain.MatchResult, error)
	RankText(ctx context.Context, jobText string, opts RankOptions) ([]domain.MatchResult, error)
	RankJob(ctx context.Context, jobID string, opts RankOptions) ([]domain.MatchResult, error)
}

// JobRegistrar parses and stores job descriptions.
type JobRegistrar interface {
	CreateJob(ctx context.Context, text string) (*domain.JobDescription, error)
	GetJob(ctx context.Context, jobID string) (*domain.JobDescription, error)
}

type Readiness struct {
	Ready  bool              `json:"ready"`
	Errors map[string]string `json:"errors,omitempty"`
}

// ReadinessProbe reports whether backing services are reachable.
type ReadinessProbe interface {
	Ready(ctx context.Context) Readiness
}
