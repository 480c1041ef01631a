package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/core/ports"
)

const failedWriteTimeout = 10 * time.Second

// PipelineObserver receives per-attempt and per-stage measurements.
type PipelineObserver interface {
	StartResume()
	FinishResume(duration time.Duration, status domain.ResumeStatus)
	ObserveStage(stage domain.Stage, duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
}

type noopObserver struct{}

func (noopObserver) StartResume() {}

func (noopObserver) FinishResume(time.Duration, domain.ResumeStatus) {}

func (noopObserver) ObserveStage(domain.Stage, time.Duration, error) {}

func (noopObserver) ObserveQueueLag(time.Duration) {}

type ProcessResumeUseCase struct {
	store        ports.ResumeStore
	storage      ports.ObjectStorage
	extractor    ports.TextExtractor
	parser       ports.FeatureParser
	embedder     ports.Embedder
	notifier     ports.CompletionNotifier
	locks        *KeyedLock
	observer     PipelineObserver
	stageTimeout time.Duration
	now          func() time.Time
}

type ProcessOption func(*ProcessResumeUseCase)

func WithNotifier(n ports.CompletionNotifier) ProcessOption {
	return func(uc *ProcessResumeUseCase) { uc.notifier = n }
}

func WithObserver(o PipelineObserver) ProcessOption {
	return func(uc *ProcessResumeUseCase) {
		if o != nil {
			uc.observer = o
		}
	}
}

func NewProcessResumeUseCase(
	store ports.ResumeStore,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	parser ports.FeatureParser,
	embedder ports.Embedder,
	locks *KeyedLock,
	stageTimeout time.Duration,
	opts ...ProcessOption,
) *ProcessResumeUseCase {
	if locks == nil {
		locks = NewKeyedLock()
	}
	uc := &ProcessResumeUseCase{
		store:        store,
		storage:      storage,
		extractor:    extractor,
		parser:       parser,
		embedder:     embedder,
		locks:        locks,
		observer:     noopObserver{},
		stageTimeout: stageTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessByID runs one ingestion attempt. Records that are not PENDING are
// skipped, which makes redelivered queue messages harmless.
func (uc *ProcessResumeUseCase) ProcessByID(ctx context.Context, resumeID string) error {
	unlock, err := uc.locks.Lock(ctx, resumeID)
	if err != nil {
		return fmt.Errorf("acquire resume lock: %w", err)
	}
	defer unlock()

	record, err := uc.store.GetByID(ctx, resumeID)
	if err != nil {
		return fmt.Errorf("fetch resume by id: %w", err)
	}
	if record.Status != domain.StatusPending {
		slog.Info("resume_process_skipped", "resume_id", resumeID, "status", string(record.Status))
		return nil
	}

	startedAt := uc.now()
	uc.observer.ObserveQueueLag(startedAt.Sub(record.UpdatedAt))
	uc.observer.StartResume()

	record.Status = domain.StatusProcessing
	record.UpdatedAt = startedAt
	if err := uc.store.Upsert(ctx, *record); err != nil {
		uc.observer.FinishResume(time.Since(startedAt), domain.StatusPending)
		return fmt.Errorf("set status=processing: %w", err)
	}

	final, procErr := uc.runPipeline(ctx, *record)
	if procErr != nil && ctx.Err() != nil {
		// Shutdown interrupted the attempt; leave it for recovery.
		uc.requeue(ctx, *record)
		uc.observer.FinishResume(time.Since(startedAt), domain.StatusPending)
		return fmt.Errorf("process interrupted: %w", procErr)
	}
	if procErr != nil {
		final = uc.markFailed(ctx, *record, procErr)
	}

	if err := uc.storage.Delete(context.WithoutCancel(ctx), StorageKey(record.ID, record.Format)); err != nil {
		slog.Warn("resume_source_cleanup_failed", "resume_id", record.ID, "error", err)
	}
	uc.notify(ctx, final)
	uc.observer.FinishResume(time.Since(startedAt), final.Status)

	if procErr != nil {
		slog.Error("resume_process_failed",
			"resume_id", record.ID,
			"stage", string(final.FailedStage),
			"error", final.LastError,
		)
		return procErr
	}
	slog.Info("resume_processed",
		"resume_id", record.ID,
		"skills", len(final.Features.Skills),
		"experience_years", final.Features.ExperienceYears,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return nil
}

func (uc *ProcessResumeUseCase) runPipeline(ctx context.Context, record domain.ResumeRecord) (domain.ResumeRecord, error) {
	text, err := observeStage(uc, domain.StageExtraction, func() (string, error) {
		return runStage(ctx, domain.StageExtraction, uc.stageTimeout, func(stageCtx context.Context) (string, error) {
			return uc.extract(stageCtx, record)
		})
	})
	if err != nil {
		return record, err
	}

	features, err := observeStage(uc, domain.StageParsing, func() (domain.FeatureSet, error) {
		return runStage(ctx, domain.StageParsing, uc.stageTimeout, func(context.Context) (domain.FeatureSet, error) {
			return uc.parser.Parse(text), nil
		})
	})
	if err != nil {
		return record, err
	}

	vector, err := observeStage(uc, domain.StageEmbedding, func() ([]float32, error) {
		return runStage(ctx, domain.StageEmbedding, uc.stageTimeout, func(stageCtx context.Context) ([]float32, error) {
			return uc.embed(stageCtx, text)
		})
	})
	if err != nil {
		return record, err
	}

	ready := record.Clone()
	ready.ExtractedText = text
	ready.Features = features
	ready.Features.Skills = domain.NormalizeSkills(features.Skills)
	ready.Embedding = vector
	ready.Status = domain.StatusReady
	ready.LastError = ""
	ready.FailedStage = ""
	ready.UpdatedAt = uc.now()

	_, err = observeStage(uc, domain.StageStorage, func() (struct{}, error) {
		return struct{}{}, runStorageStage(ctx, uc.stageTimeout, func(stageCtx context.Context) error {
			return uc.store.Upsert(stageCtx, ready)
		})
	})
	if err != nil {
		return record, err
	}
	return ready, nil
}

func (uc *ProcessResumeUseCase) extract(ctx context.Context, record domain.ResumeRecord) (string, error) {
	rc, err := uc.storage.Open(ctx, StorageKey(record.ID, record.Format))
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", domain.WrapError(domain.ErrStorage, "read source document", err)
	}
	return uc.extractor.Extract(ctx, domain.Document{
		Filename: record.Filename,
		Format:   record.Format,
		Data:     data,
	})
}

func (uc *ProcessResumeUseCase) embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := uc.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckDimension(len(vector), uc.embedder.Dimension()); err != nil {
		return nil, err
	}
	return vector, nil
}

func (uc *ProcessResumeUseCase) markFailed(ctx context.Context, record domain.ResumeRecord, procErr error) domain.ResumeRecord {
	stage, _ := domain.StageOf(procErr)

	failed := record.Clone()
	failed.Status = domain.StatusFailed
	failed.LastError = procErr.Error()
	failed.FailedStage = stage
	failed.UpdatedAt = uc.now()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failedWriteTimeout)
	defer cancel()
	if err := uc.store.Upsert(writeCtx, failed); err != nil {
		slog.Error("resume_mark_failed_error", "resume_id", record.ID, "error", err)
	}
	return failed
}

func (uc *ProcessResumeUseCase) requeue(ctx context.Context, record domain.ResumeRecord) {
	record.Status = domain.StatusPending
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failedWriteTimeout)
	defer cancel()
	if err := uc.store.Upsert(writeCtx, record); err != nil {
		slog.Error("resume_requeue_error", "resume_id", record.ID, "error", err)
	}
}

func (uc *ProcessResumeUseCase) notify(ctx context.Context, record domain.ResumeRecord) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.NotifyResumeCompleted(context.WithoutCancel(ctx), record); err != nil {
		slog.Warn("resume_completion_notify_failed", "resume_id", record.ID, "error", err)
	}
}

func observeStage[T any](uc *ProcessResumeUseCase, stage domain.Stage, fn func() (T, error)) (T, error) {
	started := time.Now()
	out, err := fn()
	uc.observer.ObserveStage(stage, time.Since(started), err)
	if err != nil {
		slog.Warn("stage_failed", "stage", string(stage), "error", err)
	}
	return out, err
}

// runStage executes fn in its own goroutine under the stage deadline. When the
// deadline fires first the late result is dropped and a timeout is reported.
func runStage[T any](
	ctx context.Context,
	stage domain.Stage,
	timeout time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T
	stageCtx, cancel := stageContext(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(stageCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return zero, domain.NewStageError(stage, classifyStageErr(ctx, stageCtx, res.err))
		}
		return res.value, nil
	case <-stageCtx.Done():
		return zero, domain.NewStageError(stage, classifyStageErr(ctx, stageCtx, stageCtx.Err()))
	}
}

// runStorageStage calls fn synchronously so a timed-out write cannot land later.
func runStorageStage(ctx context.Context, timeout time.Duration, fn func(context.Context) error) (err error) {
	stageCtx, cancel := stageContext(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewStageError(domain.StageStorage, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(stageCtx); err != nil {
		return domain.NewStageError(domain.StageStorage, classifyStageErr(ctx, stageCtx, err))
	}
	return nil
}

func stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func classifyStageErr(parent, stageCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, "stage deadline", err)
	}
	return err
}
