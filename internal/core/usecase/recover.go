package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/core/ports"
)

const (
	recoverBatchLimit  = 500
	recoverRetryDelay  = 50 * time.Millisecond
	recoverMaxAttempts = 200
)

// RecoverPendingUseCase re-publishes work a crashed or stopped worker left
// behind. PROCESSING records untouched for longer than staleAfter are reset to
// PENDING first, so they are picked up like any other queued record.
type RecoverPendingUseCase struct {
	lister     ports.PendingLister
	store      ports.ResumeStore
	queue      ports.TaskQueue
	locks      *KeyedLock
	staleAfter time.Duration
	retryDelay time.Duration
	now        func() time.Time
}

func NewRecoverPendingUseCase(
	lister ports.PendingLister,
	store ports.ResumeStore,
	queue ports.TaskQueue,
	locks *KeyedLock,
	staleAfter time.Duration,
) *RecoverPendingUseCase {
	if locks == nil {
		locks = NewKeyedLock()
	}
	return &RecoverPendingUseCase{
		lister:     lister,
		store:      store,
		queue:      queue,
		locks:      locks,
		staleAfter: staleAfter,
		retryDelay: recoverRetryDelay,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *RecoverPendingUseCase) Recover(ctx context.Context) (int, error) {
	if uc.lister == nil {
		return 0, nil
	}
	reset, err := uc.resetStale(ctx)
	if err != nil {
		return 0, err
	}

	ids, err := uc.lister.ListByStatus(ctx, domain.StatusPending, recoverBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list pending resumes: %w", err)
	}

	published := 0
	for _, id := range ids {
		if err := uc.publish(ctx, id); err != nil {
			return published, fmt.Errorf("republish resume %s: %w", id, err)
		}
		published++
	}
	if published > 0 {
		slog.Info("pending_resumes_recovered", "count", published, "stale_reset", reset)
	}
	return published, nil
}

func (uc *RecoverPendingUseCase) resetStale(ctx context.Context) (int, error) {
	if uc.staleAfter <= 0 || uc.store == nil {
		return 0, nil
	}
	ids, err := uc.lister.ListByStatus(ctx, domain.StatusProcessing, recoverBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list processing resumes: %w", err)
	}
	reset := 0
	for _, id := range ids {
		ok, err := uc.resetIfStale(ctx, id)
		if err != nil {
			return reset, err
		}
		if ok {
			reset++
		}
	}
	return reset, nil
}

// resetIfStale leaves records alone while a worker in this process holds
// their lock, whatever their age.
func (uc *RecoverPendingUseCase) resetIfStale(ctx context.Context, id string) (bool, error) {
	unlock, ok := uc.locks.TryLock(id)
	if !ok {
		return false, nil
	}
	defer unlock()

	record, err := uc.store.GetByID(ctx, id)
	if domain.IsKind(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load resume %s: %w", id, err)
	}
	now := uc.now()
	if !record.StaleProcessing(now, uc.staleAfter) {
		return false, nil
	}

	abandonedAt := record.UpdatedAt
	record.Status = domain.StatusPending
	record.UpdatedAt = now
	if err := uc.store.Upsert(ctx, *record); err != nil {
		return false, fmt.Errorf("reset stale resume %s: %w", id, err)
	}
	slog.Warn("stale_resume_reset", "resume_id", id, "processing_since", abandonedAt)
	return true, nil
}

// publish waits out a full queue instead of failing the whole recovery; the
// workers are already draining it.
func (uc *RecoverPendingUseCase) publish(ctx context.Context, id string) error {
	for attempt := 1; ; attempt++ {
		err := uc.queue.PublishResumeSubmitted(ctx, id)
		if err == nil || !domain.IsKind(err, domain.ErrTemporary) || attempt >= recoverMaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(uc.retryDelay):
		}
	}
}
