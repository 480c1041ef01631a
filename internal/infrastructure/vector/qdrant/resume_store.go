package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// ResumeStore keeps one point per resume. The full record travels in the
// payload; records without an embedding are indexed under a placeholder
// vector and excluded from search by the status filter.
type ResumeStore struct {
	client     *Client
	collection string
	dim        int
}

func NewResumeStore(client *Client, collection string, dim int) *ResumeStore {
	return &ResumeStore{client: client, collection: collection, dim: dim}
}

type resumePayload struct {
	Status       string              `json:"status"`
	HasEmbedding bool                `json:"has_embedding"`
	Record       domain.ResumeRecord `json:"record"`
}

func (s *ResumeStore) Upsert(ctx context.Context, record domain.ResumeRecord) error {
	if _, err := uuid.Parse(record.ID); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", fmt.Errorf("point id %q is not a uuid", record.ID))
	}
	vector := record.Embedding
	hasEmbedding := len(vector) > 0
	if hasEmbedding {
		if err := domain.CheckDimension(len(vector), s.dim); err != nil {
			return fmt.Errorf("upsert resume %s: %w", record.ID, err)
		}
	} else {
		vector = placeholderVector(s.dim)
	}
	if err := s.client.ensureCollection(ctx, s.collection, s.dim); err != nil {
		return err
	}

	payload, err := json.Marshal(resumePayload{
		Status:       string(record.Status),
		HasEmbedding: hasEmbedding,
		Record:       record,
	})
	if err != nil {
		return fmt.Errorf("marshal resume payload: %w", err)
	}
	pt := point{ID: pointID(record.ID), Vector: vector, Payload: payload}
	if err := s.client.upsertPoints(ctx, s.collection, []point{pt}); err != nil {
		return wrapStorage("upsert resume", err)
	}
	return nil
}

func (s *ResumeStore) GetByID(ctx context.Context, id string) (*domain.ResumeRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.WrapError(domain.ErrNotFound, "get resume", fmt.Errorf("id %s", id))
	}
	pt, err := s.client.retrievePoint(ctx, s.collection, id)
	if err != nil {
		return nil, wrapStorage("get resume", err)
	}
	if pt == nil {
		return nil, domain.WrapError(domain.ErrNotFound, "get resume", fmt.Errorf("id %s", id))
	}

	var payload resumePayload
	if err := json.Unmarshal(pt.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode resume payload: %w", err)
	}
	rec := payload.Record
	if rec.Features.Skills == nil {
		rec.Features.Skills = []string{}
	}
	if payload.HasEmbedding {
		rec.Embedding = pt.Vector
	}
	return &rec, nil
}

// maxTieWidening bounds how far a search is widened to complete a group of
// equal scores straddling the k-th hit.
const maxTieWidening = 1024

// NearestNeighbors returns the k best READY points ordered by score, ties by
// id. The engine orders equal scores arbitrarily, so the search asks for more
// than k hits and widens until the hit after the k-th scores strictly lower;
// only then is the id tie-break at the cut-off exact.
func (s *ResumeStore) NearestNeighbors(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error) {
	if err := domain.CheckDimension(len(query), s.dim); err != nil {
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}

	limit := k + 1
	for {
		hits, err := s.search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		domain.SortNeighbors(hits)
		complete := len(hits) < limit || hits[len(hits)-1].Similarity < hits[k-1].Similarity
		if complete || limit >= k+maxTieWidening {
			if len(hits) > k {
				hits = hits[:k]
			}
			return hits, nil
		}
		limit = min(2*limit, k+maxTieWidening)
	}
}

func (s *ResumeStore) search(ctx context.Context, query []float32, limit int) ([]domain.Neighbor, error) {
	reqBody := map[string]any{
		"vector":       query,
		"limit":        limit,
		"with_payload": false,
		"filter":       statusFilter(domain.StatusReady),
	}
	var resp struct {
		Result []struct {
			ID    pointID `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", s.collection)
	if err := s.client.do(ctx, http.MethodPost, path, reqBody, &resp, "search"); err != nil {
		if isNotFound(err) {
			return []domain.Neighbor{}, nil
		}
		return nil, wrapStorage("nearest neighbors", err)
	}

	out := make([]domain.Neighbor, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.Neighbor{ID: string(r.ID), Similarity: r.Score})
	}
	return out, nil
}

func (s *ResumeStore) ListByStatus(ctx context.Context, status domain.ResumeStatus, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	reqBody := map[string]any{
		"limit":        limit,
		"with_payload": false,
		"with_vector":  false,
		"filter":       statusFilter(status),
	}
	var resp struct {
		Result struct {
			Points []point `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/scroll", s.collection)
	if err := s.client.do(ctx, http.MethodPost, path, reqBody, &resp, "scroll"); err != nil {
		if isNotFound(err) {
			return []string{}, nil
		}
		return nil, wrapStorage("list resumes by status", err)
	}

	ids := make([]string, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		ids = append(ids, string(p.ID))
	}
	sort.Strings(ids)
	return ids, nil
}

func statusFilter(status domain.ResumeStatus) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   "status",
				"match": map[string]any{"value": string(status)},
			},
		},
	}
}

// placeholderVector is a unit vector; cosine collections reject all-zero input.
func placeholderVector(dim int) []float32 {
	v := make([]float32, dim)
	if dim > 0 {
		v[0] = 1
	}
	return v
}
