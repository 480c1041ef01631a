package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/resume-ranker/internal/config"
	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/core/ports"
	"github.com/kirillkom/resume-ranker/internal/observability/metrics"
)

const (
	maxUploadBytes   = 20 << 20
	maxJSONBodyBytes = 1 << 20
)

// RankingExporter renders ranked candidates as a downloadable document.
type RankingExporter interface {
	Export(results []domain.MatchResult) ([]byte, error)
}

type Dependencies struct {
	Submitter ports.ResumeSubmitter
	Resumes   ports.ResumeReader
	Ranker    ports.CandidateRanker
	Jobs      ports.JobRegistrar
	Readiness ports.ReadinessProbe
	Exporter  RankingExporter
	// Metrics is optional; without it /metrics is not served.
	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	cfg  config.Config
	deps Dependencies
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	return &Router{cfg: cfg, deps: deps}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /readyz", rt.readyz)
	if rt.deps.Metrics != nil {
		mux.Handle("GET /metrics", rt.deps.Metrics.Handler())
	}
	mux.HandleFunc("POST /v1/resumes", rt.submitResume)
	mux.HandleFunc("GET /v1/resumes/{id}", rt.getResume)
	mux.HandleFunc("POST /v1/jobs", rt.createJob)
	mux.HandleFunc("GET /v1/jobs/{id}", rt.getJob)
	mux.HandleFunc("POST /v1/match", rt.match)
	mux.HandleFunc("POST /v1/match/export", rt.exportMatch)

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.deps.Metrics != nil {
		handler = rt.deps.Metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Readiness == nil {
		writeJSON(w, http.StatusOK, ports.Readiness{Ready: true})
		return
	}
	readiness := rt.deps.Readiness.Ready(r.Context())
	status := http.StatusOK
	if !readiness.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readiness)
}

func (rt *Router) submitResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read upload", err))
		return
	}

	doc := domain.Document{Filename: fileHeader.Filename, Data: data}
	if raw := strings.TrimSpace(r.FormValue("format")); raw != "" {
		doc.Format = requestedFormat(raw)
	} else if f, err := domain.ParseDocumentFormat(fileHeader.Header.Get("Content-Type")); err == nil {
		doc.Format = f
	}

	id, err := rt.deps.Submitter.Submit(r.Context(), doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// requestedFormat keeps an unrecognised format verbatim so that the pipeline
// records the failure against the resume.
func requestedFormat(raw string) domain.DocumentFormat {
	if f, err := domain.ParseDocumentFormat(raw); err == nil {
		return f
	}
	return domain.DocumentFormat(strings.ToLower(raw))
}

type resumeView struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Filename    string            `json:"filename,omitempty"`
	Format      string            `json:"format"`
	Features    domain.FeatureSet `json:"features"`
	LastError   string            `json:"last_error,omitempty"`
	FailedStage string            `json:"failed_stage,omitempty"`
	Attempts    int               `json:"attempts"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (rt *Router) getResume(w http.ResponseWriter, r *http.Request) {
	rec, err := rt.deps.Resumes.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resumeView{
		ID:          rec.ID,
		Status:      string(rec.Status),
		Filename:    rec.Filename,
		Format:      string(rec.Format),
		Features:    rec.Features,
		LastError:   rec.LastError,
		FailedStage: string(rec.FailedStage),
		Attempts:    rec.Attempts,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	})
}

func (rt *Router) createJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := rt.deps.Jobs.CreateJob(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := rt.deps.Jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type matchRequest struct {
	JobText      string   `json:"job_text"`
	JobID        string   `json:"job_id"`
	TopK         int      `json:"top_k"`
	CandidateIDs []string `json:"candidate_ids"`
}

func (rt *Router) match(w http.ResponseWriter, r *http.Request) {
	results, err := rt.rank(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) exportMatch(w http.ResponseWriter, r *http.Request) {
	if rt.deps.Exporter == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "export is not configured"})
		return
	}
	results, err := rt.rank(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := rt.deps.Exporter.Export(results)
	if err != nil {
		writeError(w, r, fmt.Errorf("export ranking: %w", err))
		return
	}
	filename := fmt.Sprintf("ranking_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) rank(w http.ResponseWriter, r *http.Request) ([]domain.MatchResult, error) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	if maxTopK := rt.cfg.MaxRankingResults(); req.TopK < 0 || req.TopK > maxTopK {
		return nil, domain.WrapError(domain.ErrInvalidInput, "match", fmt.Errorf("top_k must be between 1 and %d", maxTopK))
	}
	opts := ports.RankOptions{TopK: req.TopK, CandidateIDs: req.CandidateIDs}

	hasText := strings.TrimSpace(req.JobText) != ""
	hasID := strings.TrimSpace(req.JobID) != ""
	switch {
	case hasText && hasID:
		return nil, domain.WrapError(domain.ErrInvalidInput, "match", errors.New("job_text and job_id are mutually exclusive"))
	case hasID:
		return rt.deps.Ranker.RankJob(r.Context(), req.JobID, opts)
	case hasText:
		return rt.deps.Ranker.RankText(r.Context(), req.JobText, opts)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "match", errors.New("job_text or job_id is required"))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
