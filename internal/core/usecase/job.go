package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/core/ports"
)

type JobUseCase struct {
	jobs     ports.JobStore
	parser   ports.FeatureParser
	embedder ports.Embedder
}

func NewJobUseCase(jobs ports.JobStore, parser ports.FeatureParser, embedder ports.Embedder) *JobUseCase {
	return &JobUseCase{jobs: jobs, parser: parser, embedder: embedder}
}

// CreateJob parses and embeds a job description synchronously and stores it.
func (uc *JobUseCase) CreateJob(ctx context.Context, text string) (*domain.JobDescription, error) {
	job, err := buildJob(ctx, uc.parser, uc.embedder, uuid.NewString(), text)
	if err != nil {
		return nil, err
	}
	if err := uc.jobs.SaveJob(ctx, *job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	return job, nil
}

func (uc *JobUseCase) GetJob(ctx context.Context, jobID string) (*domain.JobDescription, error) {
	job, err := uc.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}
