package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

func newSubmitFixture() (*SubmitResumeUseCase, *storeFake, *storageFake, *queueFake) {
	store := newStoreFake()
	storage := newStorageFake()
	queue := &queueFake{}
	return NewSubmitResumeUseCase(store, storage, queue, NewKeyedLock()), store, storage, queue
}

func pdfDoc(data string) domain.Document {
	return domain.Document{Filename: "cv.pdf", Format: domain.FormatPDF, Data: []byte(data)}
}

func TestSubmitCreatesPendingRecordAndPublishes(t *testing.T) {
	uc, store, storage, queue := newSubmitFixture()

	id, err := uc.Submit(context.Background(), pdfDoc("resume bytes"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if id != ResumeIDForHash(contentHash([]byte("resume bytes"))) {
		t.Fatalf("id is not derived from content hash: %s", id)
	}

	rec, ok := store.get(id)
	if !ok {
		t.Fatalf("record %s not stored", id)
	}
	if rec.Status != domain.StatusPending || rec.Attempts != 1 {
		t.Fatalf("unexpected record state: status=%s attempts=%d", rec.Status, rec.Attempts)
	}
	if rec.RawTextHash != contentHash([]byte("resume bytes")) {
		t.Fatalf("unexpected hash %q", rec.RawTextHash)
	}
	if _, ok := storage.objects[StorageKey(id, domain.FormatPDF)]; !ok {
		t.Fatalf("source bytes not saved")
	}
	if queue.count() != 1 || queue.published[0] != id {
		t.Fatalf("expected one publish of %s, got %v", id, queue.published)
	}
}

func TestSubmitDeduplicatesActiveRecords(t *testing.T) {
	for _, status := range []domain.ResumeStatus{domain.StatusPending, domain.StatusProcessing, domain.StatusReady} {
		t.Run(string(status), func(t *testing.T) {
			uc, store, _, queue := newSubmitFixture()
			doc := pdfDoc("same content")
			id := ResumeIDForHash(contentHash(doc.Data))
			store.records[id] = domain.ResumeRecord{ID: id, Status: status, Attempts: 1}

			got, err := uc.Submit(context.Background(), doc)
			if err != nil {
				t.Fatalf("Submit() error: %v", err)
			}
			if got != id {
				t.Fatalf("expected id %s, got %s", id, got)
			}
			if queue.count() != 0 {
				t.Fatalf("expected no publish, got %d", queue.count())
			}
			if rec, _ := store.get(id); rec.Status != status {
				t.Fatalf("status changed to %s", rec.Status)
			}
		})
	}
}

func TestSubmitRetriesFailedRecord(t *testing.T) {
	uc, store, _, queue := newSubmitFixture()
	doc := pdfDoc("retry me")
	id := ResumeIDForHash(contentHash(doc.Data))
	store.records[id] = domain.ResumeRecord{
		ID:          id,
		Status:      domain.StatusFailed,
		Attempts:    1,
		LastError:   "timeout:embedding",
		FailedStage: domain.StageEmbedding,
	}

	if _, err := uc.Submit(context.Background(), doc); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	rec, _ := store.get(id)
	if rec.Status != domain.StatusPending || rec.Attempts != 2 {
		t.Fatalf("expected fresh PENDING attempt 2, got status=%s attempts=%d", rec.Status, rec.Attempts)
	}
	if rec.LastError != "" || rec.FailedStage != "" {
		t.Fatalf("failure details not cleared: %q %q", rec.LastError, rec.FailedStage)
	}
	if queue.count() != 1 {
		t.Fatalf("expected one publish, got %d", queue.count())
	}
}

func TestSubmitRestartsStaleProcessingRecord(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name         string
		age          time.Duration
		wantStatus   domain.ResumeStatus
		wantAttempts int
		wantPublish  int
	}{
		{name: "abandoned", age: 10 * time.Minute, wantStatus: domain.StatusPending, wantAttempts: 2, wantPublish: 1},
		{name: "in flight", age: 30 * time.Second, wantStatus: domain.StatusProcessing, wantAttempts: 1, wantPublish: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, queue := newStoreFake(), &queueFake{}
			uc := NewSubmitResumeUseCase(store, newStorageFake(), queue, NewKeyedLock(), WithStaleAfter(2*time.Minute))
			uc.now = func() time.Time { return now }

			doc := pdfDoc("stuck content")
			id := ResumeIDForHash(contentHash(doc.Data))
			created := now.Add(-time.Hour)
			store.records[id] = domain.ResumeRecord{
				ID: id, Status: domain.StatusProcessing, Attempts: 1,
				CreatedAt: created, UpdatedAt: now.Add(-tc.age),
			}

			if _, err := uc.Submit(context.Background(), doc); err != nil {
				t.Fatalf("Submit() error: %v", err)
			}
			rec, _ := store.get(id)
			if rec.Status != tc.wantStatus || rec.Attempts != tc.wantAttempts {
				t.Fatalf("unexpected record: status=%s attempts=%d", rec.Status, rec.Attempts)
			}
			if !rec.CreatedAt.Equal(created) {
				t.Fatalf("created_at must survive a restart, got %s", rec.CreatedAt)
			}
			if queue.count() != tc.wantPublish {
				t.Fatalf("expected %d publishes, got %d", tc.wantPublish, queue.count())
			}
		})
	}
}

func TestSubmitRejectsEmptyDocument(t *testing.T) {
	uc, _, _, _ := newSubmitFixture()
	_, err := uc.Submit(context.Background(), domain.Document{Format: domain.FormatPDF})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSubmitQueueFailureMarksRecordFailed(t *testing.T) {
	uc, store, storage, queue := newSubmitFixture()
	queue.err = errors.New("nats down")

	id, err := uc.Submit(context.Background(), pdfDoc("unlucky"))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty id on failure, got %s", id)
	}

	wantID := ResumeIDForHash(contentHash([]byte("unlucky")))
	rec, _ := store.get(wantID)
	if rec.Status != domain.StatusFailed || rec.FailedStage != domain.StageQueue {
		t.Fatalf("expected FAILED at queue stage, got %s/%s", rec.Status, rec.FailedStage)
	}
	if len(storage.objects) != 0 {
		t.Fatalf("expected source bytes to be removed, got %d objects", len(storage.objects))
	}
}

func TestSubmitStorageFailure(t *testing.T) {
	uc, store, storage, queue := newSubmitFixture()
	storage.saveErr = errors.New("disk full")

	_, err := uc.Submit(context.Background(), pdfDoc("bytes"))
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(store.records) != 0 || queue.count() != 0 {
		t.Fatalf("nothing should be recorded or published")
	}
}

func TestSubmitConcurrentDuplicatesPublishOnce(t *testing.T) {
	uc, _, _, queue := newSubmitFixture()
	doc := pdfDoc("popular resume")

	const n = 32
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := uc.Submit(context.Background(), doc)
			if err != nil {
				t.Errorf("Submit() error: %v", err)
			}
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected identical ids, got %s and %s", ids[0], id)
		}
	}
	if queue.count() != 1 {
		t.Fatalf("expected exactly one publish, got %d", queue.count())
	}
}

func TestSubmitReturnsIDWhileAttemptInFlight(t *testing.T) {
	store := newStoreFake()
	store.getErr = errors.New("store must not be consulted")
	locks := NewKeyedLock()
	uc := NewSubmitResumeUseCase(store, newStorageFake(), &queueFake{}, locks)

	doc := pdfDoc("busy")
	id := ResumeIDForHash(contentHash(doc.Data))
	unlock, err := locks.Lock(context.Background(), id)
	if err != nil {
		t.Fatalf("Lock() error: %v", err)
	}
	defer unlock()

	got, err := uc.Submit(context.Background(), doc)
	if err != nil || got != id {
		t.Fatalf("expected (%s, nil), got (%s, %v)", id, got, err)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	uc, _, _, _ := newSubmitFixture()
	_, err := uc.GetStatus(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
