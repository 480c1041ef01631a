package qdrant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// JobStore keeps job descriptions in a collection of their own so that
// resume searches never see them.
type JobStore struct {
	client     *Client
	collection string
	dim        int
}

func NewJobStore(client *Client, collection string, dim int) *JobStore {
	return &JobStore{client: client, collection: collection, dim: dim}
}

func (s *JobStore) SaveJob(ctx context.Context, job domain.JobDescription) error {
	if _, err := uuid.Parse(job.ID); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant save job", fmt.Errorf("point id %q is not a uuid", job.ID))
	}
	if err := domain.CheckDimension(len(job.Embedding), s.dim); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	if err := s.client.ensureCollection(ctx, s.collection, s.dim); err != nil {
		return err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}
	pt := point{ID: pointID(job.ID), Vector: job.Embedding, Payload: payload}
	if err := s.client.upsertPoints(ctx, s.collection, []point{pt}); err != nil {
		return wrapStorage("save job", err)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*domain.JobDescription, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("id %s", id))
	}
	pt, err := s.client.retrievePoint(ctx, s.collection, id)
	if err != nil {
		return nil, wrapStorage("get job", err)
	}
	if pt == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("id %s", id))
	}
	var job domain.JobDescription
	if err := json.Unmarshal(pt.Payload, &job); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	job.Embedding = pt.Vector
	return &job, nil
}
