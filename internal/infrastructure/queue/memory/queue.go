package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

// Queue is an in-process task queue backed by a buffered channel. It serves
// single-binary deployments where the API also runs the worker pool.
type Queue struct {
	tasks       chan string
	concurrency int

	subscribed     chan struct{}
	subscribedOnce sync.Once
}

func New(buffer, concurrency int) *Queue {
	if buffer <= 0 {
		buffer = 1
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Queue{
		tasks:       make(chan string, buffer),
		concurrency: concurrency,
		subscribed:  make(chan struct{}),
	}
}

// PublishResumeSubmitted never blocks; a full buffer is a temporary failure.
func (q *Queue) PublishResumeSubmitted(ctx context.Context, resumeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.tasks <- resumeID:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "memory queue publish", fmt.Errorf("queue full (%d)", cap(q.tasks)))
	}
}

// SubscribeResumeSubmitted runs the worker pool until ctx is cancelled.
// Tasks still buffered at that point are left for recovery.
func (q *Queue) SubscribeResumeSubmitted(ctx context.Context, handler func(context.Context, string) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		worker := i + 1
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-q.tasks:
					if err := handler(ctx, id); err != nil {
						slog.Error("worker_handler_failed", "worker", worker, "resume_id", id, "error", err)
					}
				}
			}
		})
	}
	q.subscribedOnce.Do(func() { close(q.subscribed) })
	return g.Wait()
}

// Subscribed is closed once the worker pool is draining the buffer.
func (q *Queue) Subscribed() <-chan struct{} {
	return q.subscribed
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}
