package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

type listerFake struct {
	ids []string
	err error
}

func (l *listerFake) ListByStatus(_ context.Context, status domain.ResumeStatus, _ int) ([]string, error) {
	if status != domain.StatusPending {
		return nil, nil
	}
	return l.ids, l.err
}

// busyQueue rejects the first publishes of each id as a full buffer would.
type busyQueue struct {
	queueFake
	rejects int
	calls   map[string]int
}

func (q *busyQueue) PublishResumeSubmitted(ctx context.Context, id string) error {
	q.mu.Lock()
	q.calls[id]++
	n := q.calls[id]
	q.mu.Unlock()
	if n <= q.rejects {
		return domain.WrapError(domain.ErrTemporary, "publish", errors.New("queue full"))
	}
	return q.queueFake.PublishResumeSubmitted(ctx, id)
}

func TestRecoverRepublishesPending(t *testing.T) {
	queue := &queueFake{}
	uc := NewRecoverPendingUseCase(&listerFake{ids: []string{"a", "b"}}, nil, queue, nil, time.Minute)

	n, err := uc.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover() error: %v", err)
	}
	if n != 2 || !reflect.DeepEqual(queue.published, []string{"a", "b"}) {
		t.Fatalf("unexpected publishes: %d %v", n, queue.published)
	}
}

func TestRecoverResetsStaleProcessing(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	processing := func(id string, age time.Duration) domain.ResumeRecord {
		return domain.ResumeRecord{ID: id, Status: domain.StatusProcessing, Attempts: 1, UpdatedAt: now.Add(-age)}
	}
	store := newStoreFake(
		processing("abandoned", 10*time.Minute),
		processing("fresh", 10*time.Second),
		processing("local", 10*time.Minute),
		domain.ResumeRecord{ID: "queued", Status: domain.StatusPending, UpdatedAt: now},
		domain.ResumeRecord{ID: "done", Status: domain.StatusReady, UpdatedAt: now.Add(-time.Hour)},
	)
	locks := NewKeyedLock()
	unlock, ok := locks.TryLock("local")
	if !ok {
		t.Fatalf("lock local")
	}
	defer unlock()

	queue := &queueFake{}
	uc := NewRecoverPendingUseCase(store, store, queue, locks, 2*time.Minute)
	uc.now = func() time.Time { return now }

	n, err := uc.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover() error: %v", err)
	}
	if n != 2 || !reflect.DeepEqual(queue.published, []string{"abandoned", "queued"}) {
		t.Fatalf("unexpected publishes: %d %v", n, queue.published)
	}

	cases := []struct {
		id   string
		want domain.ResumeStatus
	}{
		{"abandoned", domain.StatusPending},
		{"fresh", domain.StatusProcessing},
		{"local", domain.StatusProcessing},
		{"done", domain.StatusReady},
	}
	for _, tc := range cases {
		rec, _ := store.get(tc.id)
		if rec.Status != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.id, tc.want, rec.Status)
		}
	}
	if rec, _ := store.get("abandoned"); !rec.UpdatedAt.Equal(now) {
		t.Fatalf("reset record must be re-stamped, got %s", rec.UpdatedAt)
	}
}

func TestRecoverWaitsForQueueCapacity(t *testing.T) {
	ids := []string{"a", "b", "c"}
	queue := &busyQueue{rejects: 2, calls: map[string]int{}}
	uc := NewRecoverPendingUseCase(&listerFake{ids: ids}, nil, queue, nil, 0)
	uc.retryDelay = time.Millisecond

	n, err := uc.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover() error: %v", err)
	}
	if n != len(ids) || !reflect.DeepEqual(queue.published, ids) {
		t.Fatalf("unexpected publishes: %d %v", n, queue.published)
	}
	for _, id := range ids {
		if queue.calls[id] != 3 {
			t.Fatalf("%s: expected 3 attempts, got %d", id, queue.calls[id])
		}
	}
}

func TestRecoverStopsOnPublishError(t *testing.T) {
	uc := NewRecoverPendingUseCase(&listerFake{ids: []string{"a"}}, nil, &queueFake{err: errors.New("down")}, nil, 0)
	if _, err := uc.Recover(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRecoverGivesUpWhenCancelledWhileQueueFull(t *testing.T) {
	queue := &busyQueue{rejects: recoverMaxAttempts, calls: map[string]int{}}
	uc := NewRecoverPendingUseCase(&listerFake{ids: []string{"a"}}, nil, queue, nil, 0)
	uc.retryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := uc.Recover(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRecoverWithoutLister(t *testing.T) {
	n, err := NewRecoverPendingUseCase(nil, nil, &queueFake{}, nil, time.Minute).Recover(context.Background())
	if n != 0 || err != nil {
		t.Fatalf("expected no-op, got %d %v", n, err)
	}
}
