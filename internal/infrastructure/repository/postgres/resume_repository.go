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

// ResumeRepository stores resume records in Postgres and answers cosine
// nearest-neighbour queries through pgvector.
type ResumeRepository struct {
	db  *sql.DB
	dim int
}

func NewResumeRepository(db *sql.DB, dim int) *ResumeRepository {
	return &ResumeRepository{db: db, dim: dim}
}

// Upsert writes the whole record in one statement, so readers see either the
// previous row or the new one.
func (r *ResumeRepository) Upsert(ctx context.Context, record domain.ResumeRecord) error {
	embedding, err := r.vectorArg(record.Embedding)
	if err != nil {
		return fmt.Errorf("upsert resume %s: %w", record.ID, err)
	}
	features, err := json.Marshal(record.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO resumes (
	id, raw_text_hash, filename, format, extracted_text, features, embedding,
	status, last_error, failed_stage, attempts, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
	raw_text_hash = EXCLUDED.raw_text_hash,
	filename = EXCLUDED.filename,
	format = EXCLUDED.format,
	extracted_text = EXCLUDED.extracted_text,
	features = EXCLUDED.features,
	embedding = EXCLUDED.embedding,
	status = EXCLUDED.status,
	last_error = EXCLUDED.last_error,
	failed_stage = EXCLUDED.failed_stage,
	attempts = EXCLUDED.attempts,
	updated_at = EXCLUDED.updated_at
`,
		record.ID, record.RawTextHash, record.Filename, string(record.Format), record.ExtractedText, features, embedding,
		string(record.Status), record.LastError, string(record.FailedStage), record.Attempts, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "upsert resume", err)
	}
	return nil
}

func (r *ResumeRepository) GetByID(ctx context.Context, id string) (*domain.ResumeRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, raw_text_hash, filename, format, extracted_text, features, embedding,
	status, last_error, failed_stage, attempts, created_at, updated_at
FROM resumes
WHERE id = $1
`, id)

	var (
		rec       domain.ResumeRecord
		format    string
		status    string
		stage     string
		features  []byte
		embedding sql.Null[pgvector.Vector]
	)
	err := row.Scan(
		&rec.ID, &rec.RawTextHash, &rec.Filename, &format, &rec.ExtractedText, &features, &embedding,
		&status, &rec.LastError, &stage, &rec.Attempts, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get resume", fmt.Errorf("id %s", id))
		}
		return nil, domain.WrapError(domain.ErrStorage, "scan resume", err)
	}

	if err := json.Unmarshal(features, &rec.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	if rec.Features.Skills == nil {
		rec.Features.Skills = []string{}
	}
	if embedding.Valid {
		rec.Embedding = embedding.V.Slice()
	}
	rec.Format = domain.DocumentFormat(format)
	rec.Status = domain.ResumeStatus(status)
	rec.FailedStage = domain.Stage(stage)
	return &rec, nil
}

func (r *ResumeRepository) NearestNeighbors(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	if err := domain.CheckDimension(len(query), r.dim); err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, 1 - (embedding <=> $1) AS similarity
FROM resumes
WHERE status = $2 AND embedding IS NOT NULL
ORDER BY embedding <=> $1, id
LIMIT $3
`, pgvector.NewVector(query), string(domain.StatusReady), k)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "nearest neighbors", err)
	}
	defer rows.Close()

	var out []domain.Neighbor
	for rows.Next() {
		var n domain.Neighbor
		if err := rows.Scan(&n.ID, &n.Similarity); err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "scan neighbor", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate neighbors", err)
	}
	if out == nil {
		out = []domain.Neighbor{}
	}
	// Distance ties from the index are not guaranteed to be ordered by id.
	domain.SortNeighbors(out)
	return out, nil
}

func (r *ResumeRepository) ListByStatus(ctx context.Context, status domain.ResumeStatus, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM resumes
WHERE status = $1
ORDER BY updated_at, id
LIMIT $2
`, string(status), limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list resumes by status", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "scan resume id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate resume ids", err)
	}
	return ids, nil
}

func (r *ResumeRepository) vectorArg(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	if err := domain.CheckDimension(len(v), r.dim); err != nil {
		return nil, err
	}
	return pgvector.NewVector(v), nil
}
