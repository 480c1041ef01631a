package postgres

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
)

func TestJobRepositorySaveAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewJobRepository(db, 2)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("j-1", "Go engineer", sqlmock.AnyArg(), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM jobs").
		WithArgs("j-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "raw_text", "features", "embedding", "created_at"}).
			AddRow("j-1", "Go engineer", []byte(`{"skills":["go"],"experience_years":3}`), "[0.6,0.8]", now))

	job := domain.JobDescription{
		ID:        "j-1",
		RawText:   "Go engineer",
		Features:  domain.FeatureSet{Skills: []string{"go"}, ExperienceYears: 3},
		Embedding: []float32{0.6, 0.8},
		CreatedAt: now,
	}
	if err := repo.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := repo.GetJob(context.Background(), "j-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if !reflect.DeepEqual(got.Embedding, []float32{0.6, 0.8}) || got.Features.ExperienceYears != 3 {
		t.Fatalf("unexpected job %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestJobRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM jobs").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	if _, err := NewJobRepository(db, 2).GetJob(context.Background(), "nope"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
