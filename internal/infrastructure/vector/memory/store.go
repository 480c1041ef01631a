package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// Store keeps resumes and jobs in process memory. Every write replaces the
// whole record under the write lock and every read returns a copy, so readers
// never observe a partially applied upsert.
type Store struct {
	dim int

	mu      sync.RWMutex
	resumes map[string]domain.ResumeRecord
	jobs    map[string]domain.JobDescription
}

func NewStore(dim int) *Store {
	return &Store{
		dim:     dim,
		resumes: make(map[string]domain.ResumeRecord),
		jobs:    make(map[string]domain.JobDescription),
	}
}

func (s *Store) Upsert(ctx context.Context, record domain.ResumeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert resume", fmt.Errorf("empty id"))
	}
	if len(record.Embedding) > 0 {
		if err := domain.CheckDimension(len(record.Embedding), s.dim); err != nil {
			return fmt.Errorf("upsert resume %s: %w", record.ID, err)
		}
	}

	stored := record.Clone()
	s.mu.Lock()
	s.resumes[record.ID] = stored
	s.mu.Unlock()
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.ResumeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	record, ok := s.resumes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get resume", fmt.Errorf("id %s", id))
	}
	out := record.Clone()
	return &out, nil
}

// NearestNeighbors scans every READY record. Ties are ordered by id.
func (s *Store) NearestNeighbors(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	if err := domain.CheckDimension(len(query), s.dim); err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}

	s.mu.RLock()
	out := make([]domain.Neighbor, 0, len(s.resumes))
	for id, r := range s.resumes {
		if r.Status != domain.StatusReady || len(r.Embedding) != s.dim {
			continue
		}
		out = append(out, domain.Neighbor{ID: id, Similarity: domain.CosineSimilarity(query, r.Embedding)})
	}
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	domain.SortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.ResumeStatus, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	ids := make([]string, 0)
	for id, r := range s.resumes {
		if r.Status == status {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) SaveJob(ctx context.Context, job domain.JobDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.CheckDimension(len(job.Embedding), s.dim); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	stored := job.Clone()
	s.mu.Lock()
	s.jobs[job.ID] = stored
	s.mu.Unlock()
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.JobDescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("id %s", id))
	}
	out := job.Clone()
	return &out, nil
}
