package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/core/ports"
)

type SubmitResumeUseCase struct {
	store      ports.ResumeStore
	storage    ports.ObjectStorage
	queue      ports.TaskQueue
	locks      *KeyedLock
	staleAfter time.Duration
	now        func() time.Time
}

type SubmitOption func(*SubmitResumeUseCase)

// WithStaleAfter lets a resubmission restart a PROCESSING record that has not
// been touched for longer than d. Zero keeps every PROCESSING record deduplicated.
func WithStaleAfter(d time.Duration) SubmitOption {
	return func(uc *SubmitResumeUseCase) { uc.staleAfter = d }
}

func NewSubmitResumeUseCase(
	store ports.ResumeStore,
	storage ports.ObjectStorage,
	queue ports.TaskQueue,
	locks *KeyedLock,
	opts ...SubmitOption,
) *SubmitResumeUseCase {
	if locks == nil {
		locks = NewKeyedLock()
	}
	uc := &SubmitResumeUseCase{
		store:   store,
		storage: storage,
		queue:   queue,
		locks:   locks,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Submit admits a resume and returns its id without waiting for processing.
// Identical content maps to the same id; a record that is queued, in flight or
// READY is not processed again, while a FAILED one, or a PROCESSING one whose
// worker went away, starts a fresh attempt.
func (uc *SubmitResumeUseCase) Submit(ctx context.Context, doc domain.Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "submit resume", errors.New("empty document"))
	}
	if doc.Format == "" {
		if f, err := domain.FormatFromFilename(doc.Filename); err == nil {
			doc.Format = f
		}
	}

	hash := contentHash(doc.Data)
	id := ResumeIDForHash(hash)

	unlock, ok := uc.locks.TryLock(id)
	if !ok {
		slog.Info("resume_submit_deduplicated", "resume_id", id, "reason", "attempt_in_flight")
		return id, nil
	}
	defer unlock()

	existing, err := uc.store.GetByID(ctx, id)
	switch {
	case err == nil && existing.StaleProcessing(uc.now(), uc.staleAfter):
		slog.Warn("stale_resume_restarted", "resume_id", id, "processing_since", existing.UpdatedAt)
	case err == nil && existing.Status != domain.StatusFailed:
		slog.Info("resume_submit_deduplicated", "resume_id", id, "status", string(existing.Status))
		return id, nil
	case err != nil && !domain.IsKind(err, domain.ErrNotFound):
		return "", fmt.Errorf("load resume %s: %w", id, err)
	}

	now := uc.now()
	record := domain.ResumeRecord{
		ID:          id,
		RawTextHash: hash,
		Filename:    doc.Filename,
		Format:      doc.Format,
		Features:    domain.FeatureSet{Skills: []string{}},
		Status:      domain.StatusPending,
		Attempts:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		record.Attempts = existing.Attempts + 1
		record.CreatedAt = existing.CreatedAt
	}

	if err := uc.storage.Save(ctx, StorageKey(id, doc.Format), bytes.NewReader(doc.Data)); err != nil {
		return "", domain.WrapError(domain.ErrStorage, "save source document", err)
	}
	if err := uc.store.Upsert(ctx, record); err != nil {
		return "", fmt.Errorf("create resume record: %w", err)
	}

	if err := uc.queue.PublishResumeSubmitted(ctx, id); err != nil {
		uc.markQueueFailure(ctx, record, err)
		return "", domain.WrapError(domain.ErrTemporary, "publish ingestion task", err)
	}

	slog.Info("resume_submitted", "resume_id", id, "format", string(doc.Format), "attempt", record.Attempts)
	return id, nil
}

func (uc *SubmitResumeUseCase) GetStatus(ctx context.Context, resumeID string) (*domain.ResumeRecord, error) {
	record, err := uc.store.GetByID(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("get resume %s: %w", resumeID, err)
	}
	return record, nil
}

func (uc *SubmitResumeUseCase) markQueueFailure(ctx context.Context, record domain.ResumeRecord, cause error) {
	stageErr := domain.NewStageError(domain.StageQueue, cause)
	record.Status = domain.StatusFailed
	record.LastError = stageErr.Error()
	record.FailedStage = domain.StageQueue
	record.UpdatedAt = uc.now()
	if err := uc.store.Upsert(context.WithoutCancel(ctx), record); err != nil {
		slog.Error("resume_mark_failed_error", "resume_id", record.ID, "error", err)
	}
	_ = uc.storage.Delete(context.WithoutCancel(ctx), StorageKey(record.ID, record.Format))
}
