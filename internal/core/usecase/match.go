package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/core/ports"
)

const (
	defaultTopK          = 10
	DefaultMaxTopK       = 100
	candidateFetchLimit  = 8
	defaultOverFetchRate = 3
	// maxCandidatePool bounds MaxTopK*OverFetchFactor, the most candidates a
	// single ranking may pull from the store.
	maxCandidatePool = 10000
)

type MatchConfig struct {
	Weights         domain.ScoreWeights
	OverFetchFactor int
	ExperienceCurve ExperienceCurve
	// MaxTopK caps the results of one ranking; zero means DefaultMaxTopK.
	MaxTopK int
}

func (c MatchConfig) maxTopK() int {
	if c.MaxTopK == 0 {
		return DefaultMaxTopK
	}
	return c.MaxTopK
}

func (c MatchConfig) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.OverFetchFactor < 1 {
		return domain.WrapError(domain.ErrInvalidInput, "validate match config",
			fmt.Errorf("over-fetch factor must be >= 1, got %d", c.OverFetchFactor))
	}
	if !c.ExperienceCurve.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "validate match config",
			fmt.Errorf("unknown experience curve %q", c.ExperienceCurve))
	}
	if c.MaxTopK < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate match config",
			fmt.Errorf("max top_k must be >= 1, got %d", c.MaxTopK))
	}
	if c.OverFetchFactor > maxCandidatePool/c.maxTopK() {
		return domain.WrapError(domain.ErrInvalidInput, "validate match config",
			fmt.Errorf("max top_k %d with over-fetch factor %d exceeds the candidate pool limit %d",
				c.maxTopK(), c.OverFetchFactor, maxCandidatePool))
	}
	return nil
}

func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Weights:         domain.ScoreWeights{Semantic: 0.60, Skills: 0.25, Experience: 0.15},
		OverFetchFactor: defaultOverFetchRate,
		ExperienceCurve: CurveLinear,
		MaxTopK:         DefaultMaxTopK,
	}
}

// MatchObserver records ranking outcomes.
type MatchObserver interface {
	ObserveRanking(source string, candidates int, duration time.Duration)
}

// MatchUseCase ranks READY resumes against a job. It takes no locks and reads
// only immutable record snapshots, so any number of rankings may run at once.
type MatchUseCase struct {
	store    ports.ResumeStore
	jobs     ports.JobStore
	parser   ports.FeatureParser
	embedder ports.Embedder
	cfg      MatchConfig
	observer MatchObserver
}

func NewMatchUseCase(
	store ports.ResumeStore,
	jobs ports.JobStore,
	parser ports.FeatureParser,
	embedder ports.Embedder,
	cfg MatchConfig,
	observer MatchObserver,
) (*MatchUseCase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MatchUseCase{
		store:    store,
		jobs:     jobs,
		parser:   parser,
		embedder: embedder,
		cfg:      cfg,
		observer: observer,
	}, nil
}

func (uc *MatchUseCase) RankCandidates(ctx context.Context, jobText string, topK int) ([]domain.MatchResult, error) {
	return uc.RankText(ctx, jobText, ports.RankOptions{TopK: topK})
}

// RankText is RankCandidates with an optional explicit candidate pool.
func (uc *MatchUseCase) RankText(ctx context.Context, jobText string, opts ports.RankOptions) ([]domain.MatchResult, error) {
	job, err := buildJob(ctx, uc.parser, uc.embedder, jobIDForText(jobText), jobText)
	if err != nil {
		return nil, err
	}
	return uc.rank(ctx, "text", *job, opts)
}

// RankJob ranks against a registered job. An unknown job yields an empty ranking.
func (uc *MatchUseCase) RankJob(ctx context.Context, jobID string, opts ports.RankOptions) ([]domain.MatchResult, error) {
	if uc.jobs == nil {
		return []domain.MatchResult{}, nil
	}
	job, err := uc.jobs.GetJob(ctx, jobID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return []domain.MatchResult{}, nil
		}
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return uc.rank(ctx, "job", *job, opts)
}

func (uc *MatchUseCase) rank(ctx context.Context, source string, job domain.JobDescription, opts ports.RankOptions) ([]domain.MatchResult, error) {
	started := time.Now()
	results, err := uc.Match(ctx, job, opts)
	if err != nil {
		return nil, err
	}
	if uc.observer != nil {
		uc.observer.ObserveRanking(source, len(results), time.Since(started))
	}
	return results, nil
}

// Match scores the candidate pool against job and returns at most TopK results
// ordered by composite score descending, ties broken by resume id. TopK is
// clamped to the configured maximum.
func (uc *MatchUseCase) Match(ctx context.Context, job domain.JobDescription, opts ports.RankOptions) ([]domain.MatchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	topK = min(topK, uc.cfg.maxTopK())
	if err := domain.CheckDimension(len(job.Embedding), uc.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("match job %s: %w", job.ID, err)
	}

	poolSize := topK * uc.cfg.OverFetchFactor
	candidates, err := uc.candidatePool(ctx, job.Embedding, poolSize, opts.CandidateIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.MatchResult{}, nil
	}

	results := make([]domain.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, scoreCandidate(uc.cfg.Weights, uc.cfg.ExperienceCurve, job, c.record, c.similarity))
	}
	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

type candidate struct {
	record     domain.ResumeRecord
	similarity float64
}

func (uc *MatchUseCase) candidatePool(ctx context.Context, query []float32, n int, ids []string) ([]candidate, error) {
	if len(ids) > 0 {
		return uc.explicitPool(ctx, query, n, ids)
	}

	neighbors, err := uc.store.NearestNeighbors(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}
	records, err := uc.fetchRecords(ctx, neighborIDs(neighbors))
	if err != nil {
		return nil, err
	}

	out := make([]candidate, 0, len(neighbors))
	for i, nb := range neighbors {
		rec := records[i]
		// A record can leave READY between the query and the fetch.
		if rec == nil || rec.Status != domain.StatusReady {
			continue
		}
		out = append(out, candidate{record: *rec, similarity: nb.Similarity})
	}
	return out, nil
}

func (uc *MatchUseCase) explicitPool(ctx context.Context, query []float32, n int, ids []string) ([]candidate, error) {
	records, err := uc.fetchRecords(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}

	neighbors := make([]domain.Neighbor, 0, len(records))
	byID := make(map[string]domain.ResumeRecord, len(records))
	for _, rec := range records {
		if rec == nil || rec.Status != domain.StatusReady || len(rec.Embedding) != len(query) {
			continue
		}
		byID[rec.ID] = *rec
		neighbors = append(neighbors, domain.Neighbor{ID: rec.ID, Similarity: domain.CosineSimilarity(query, rec.Embedding)})
	}
	domain.SortNeighbors(neighbors)
	if len(neighbors) > n {
		neighbors = neighbors[:n]
	}

	out := make([]candidate, 0, len(neighbors))
	for _, nb := range neighbors {
		out = append(out, candidate{record: byID[nb.ID], similarity: nb.Similarity})
	}
	return out, nil
}

// fetchRecords loads records concurrently; missing ids come back as nil entries.
func (uc *MatchUseCase) fetchRecords(ctx context.Context, ids []string) ([]*domain.ResumeRecord, error) {
	out := make([]*domain.ResumeRecord, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(candidateFetchLimit)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := uc.store.GetByID(gctx, id)
			if err != nil {
				if domain.IsKind(err, domain.ErrNotFound) {
					return nil
				}
				return fmt.Errorf("fetch candidate %s: %w", id, err)
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func neighborIDs(neighbors []domain.Neighbor) []string {
	ids := make([]string, len(neighbors))
	for i, nb := range neighbors {
		ids[i] = nb.ID
	}
	return ids
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func buildJob(ctx context.Context, parser ports.FeatureParser, embedder ports.Embedder, id, text string) (*domain.JobDescription, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build job", errors.New("empty job description"))
	}
	features := parser.Parse(text)
	features.Skills = domain.NormalizeSkills(features.Skills)

	vector, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed job description: %w", err)
	}
	if err := domain.CheckDimension(len(vector), embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("embed job description: %w", err)
	}
	return &domain.JobDescription{
		ID:        id,
		RawText:   text,
		Features:  features,
		Embedding: vector,
		CreatedAt: time.Now().UTC(),
	}, nil
}
