package ports

import (
	"context"
	"io"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// TextExtractor converts a raw document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.Document) (string, error)
}

// FeatureParser derives structured signals from plain text. It never fails.
type FeatureParser interface {
	Parse(text string) domain.FeatureSet
}

// Embedder maps text to a vector of exactly Dimension() components.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ResumeStore persists resume records and answers similarity queries.
type ResumeStore interface {
	Upsert(ctx context.Context, record domain.ResumeRecord) error
	GetByID(ctx context.Context, id string) (*domain.ResumeRecord, error)
	NearestNeighbors(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error)
}

// PendingLister is implemented by stores that can enumerate records by status.
type PendingLister interface {
	ListByStatus(ctx context.Context, status domain.ResumeStatus, limit int) ([]string, error)
}

// JobStore persists parsed job descriptions.
type JobStore interface {
	SaveJob(ctx context.Context, job domain.JobDescription) error
	GetJob(ctx context.Context, id string) (*domain.JobDescription, error)
}

// ObjectStorage keeps source bytes until the pipeline has extracted them.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// TaskQueue publishes/consumes resume ingestion work.
type TaskQueue interface {
	PublishResumeSubmitted(ctx context.Context, resumeID string) error
	SubscribeResumeSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// CompletionNotifier announces terminal ingestion states.
type CompletionNotifier interface {
	NotifyResumeCompleted(ctx context.Context, record domain.ResumeRecord) error
}

// EmbeddingCache stores vectors by content key.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
}

// HealthPinger is a named liveness check of a backing service.
type HealthPinger interface {
	Name() string
	Ping(ctx context.Context) error
}
