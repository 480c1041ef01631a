package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

type storeFake struct {
	mu        sync.Mutex
	records   map[string]domain.ResumeRecord
	history   []domain.ResumeStatus
	upsertErr func(domain.ResumeRecord) error
	getErr    error
	nnErr     error
	lastK     int
}

func newStoreFake(records ...domain.ResumeRecord) *storeFake {
	s := &storeFake{records: map[string]domain.ResumeRecord{}}
	for _, r := range records {
		s.records[r.ID] = r.Clone()
	}
	return s
}

func (s *storeFake) Upsert(_ context.Context, record domain.ResumeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		if err := s.upsertErr(record); err != nil {
			return err
		}
	}
	s.records[record.ID] = record.Clone()
	s.history = append(s.history, record.Status)
	return nil
}

func (s *storeFake) GetByID(_ context.Context, id string) (*domain.ResumeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get resume", errors.New(id))
	}
	out := r.Clone()
	return &out, nil
}

func (s *storeFake) NearestNeighbors(_ context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastK = k
	if s.nnErr != nil {
		return nil, s.nnErr
	}
	out := []domain.Neighbor{}
	for _, r := range s.records {
		if r.Status != domain.StatusReady {
			continue
		}
		out = append(out, domain.Neighbor{ID: r.ID, Similarity: domain.CosineSimilarity(query, r.Embedding)})
	}
	domain.SortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *storeFake) ListByStatus(_ context.Context, status domain.ResumeStatus, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for id, r := range s.records {
		if r.Status == status {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *storeFake) get(id string) (domain.ResumeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

func (s *storeFake) statuses() []domain.ResumeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ResumeStatus(nil), s.history...)
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open object", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *storageFake) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type queueFake struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (q *queueFake) PublishResumeSubmitted(_ context.Context, id string) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, id)
	return nil
}

func (q *queueFake) SubscribeResumeSubmitted(context.Context, func(context.Context, string) error) error {
	return nil
}

func (q *queueFake) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published)
}

type extractorFake struct {
	text  string
	err   error
	delay time.Duration
	panic bool
}

func (f *extractorFake) Extract(ctx context.Context, _ domain.Document) (string, error) {
	if f.panic {
		panic("corrupt container")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// parserFake maps exact texts to feature sets.
type parserFake struct {
	features map[string]domain.FeatureSet
}

func (p *parserFake) Parse(text string) domain.FeatureSet {
	if f, ok := p.features[text]; ok {
		return f.Clone()
	}
	return domain.FeatureSet{Skills: []string{}}
}

type embedderFake struct {
	dim     int
	vectors map[string][]float32
	err     error
	delay   time.Duration
	wrong   bool
}

func (e *embedderFake) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	if e.wrong {
		return make([]float32, e.dim+1), nil
	}
	if v, ok := e.vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}
	v := make([]float32, e.dim)
	v[0] = 1
	return v, nil
}

func (e *embedderFake) Dimension() int { return e.dim }

type notifierFake struct {
	mu      sync.Mutex
	records []domain.ResumeRecord
}

func (n *notifierFake) NotifyResumeCompleted(_ context.Context, record domain.ResumeRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
	return nil
}

type jobStoreFake struct {
	jobs map[string]domain.JobDescription
	err  error
}

func (j *jobStoreFake) SaveJob(_ context.Context, job domain.JobDescription) error {
	if j.err != nil {
		return j.err
	}
	if j.jobs == nil {
		j.jobs = map[string]domain.JobDescription{}
	}
	j.jobs[job.ID] = job.Clone()
	return nil
}

func (j *jobStoreFake) GetJob(_ context.Context, id string) (*domain.JobDescription, error) {
	job, ok := j.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", errors.New(id))
	}
	out := job.Clone()
	return &out, nil
}
