package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

func TestPublishFailsWhenBufferFull(t *testing.T) {
	q := New(1, 1)
	if err := q.PublishResumeSubmitted(context.Background(), "a"); err != nil {
		t.Fatalf("first publish error = %v", err)
	}
	err := q.PublishResumeSubmitted(context.Background(), "b")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 buffered task, got %d", q.Len())
	}
}

func TestSubscribeDeliversEveryTaskConcurrently(t *testing.T) {
	q := New(16, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	ids := []string{"a", "b", "c", "d", "e"}
	wg.Add(len(ids))
	for _, id := range ids {
		if err := q.PublishResumeSubmitted(ctx, id); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- q.SubscribeResumeSubmitted(ctx, func(_ context.Context, id string) error {
			mu.Lock()
			seen[id]++
			mu.Unlock()
			wg.Done()
			if id == "c" {
				return errors.New("handler failure does not stop the pool")
			}
			return nil
		})
	}()

	wg.Wait()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("subscribe returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not stop after cancel")
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Fatalf("task %s delivered %d times", id, seen[id])
		}
	}
}

func TestPublishOnCancelledContext(t *testing.T) {
	q := New(4, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.PublishResumeSubmitted(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubscribedClosesOnceWorkersRun(t *testing.T) {
	q := New(2, 1)
	select {
	case <-q.Subscribed():
		t.Fatalf("subscribed before any worker started")
	default:
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.SubscribeResumeSubmitted(ctx, func(context.Context, string) error { return nil }) }()

	select {
	case <-q.Subscribed():
	case <-time.After(2 * time.Second):
		t.Fatal("subscribed was never signalled")
	}
}
