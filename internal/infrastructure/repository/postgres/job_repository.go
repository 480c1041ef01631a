package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

type JobRepository struct {
	db  *sql.DB
	dim int
}

func NewJobRepository(db *sql.DB, dim int) *JobRepository {
	return &JobRepository{db: db, dim: dim}
}

func (r *JobRepository) SaveJob(ctx context.Context, job domain.JobDescription) error {
	if err := domain.CheckDimension(len(job.Embedding), r.dim); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	features, err := json.Marshal(job.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO jobs (id, raw_text, features, embedding, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
	raw_text = EXCLUDED.raw_text,
	features = EXCLUDED.features,
	embedding = EXCLUDED.embedding
`, job.ID, job.RawText, features, pgvector.NewVector(job.Embedding), job.CreatedAt)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "save job", err)
	}
	return nil
}

func (r *JobRepository) GetJob(ctx context.Context, id string) (*domain.JobDescription, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, raw_text, features, embedding, created_at
FROM jobs
WHERE id = $1
`, id)

	var (
		job       domain.JobDescription
		features  []byte
		embedding pgvector.Vector
	)
	if err := row.Scan(&job.ID, &job.RawText, &features, &embedding, &job.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("id %s", id))
		}
		return nil, domain.WrapError(domain.ErrStorage, "scan job", err)
	}
	if err := json.Unmarshal(features, &job.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	job.Embedding = embedding.Slice()
	return &job, nil
}
