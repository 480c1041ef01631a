package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/chunking"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/embedding"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbedIsDeterministicAndUnitLength(t *testing.T) {
	p := embedding.NewPooler(New(64), nil)
	a, err := p.Embed(context.Background(), "Go developer with PostgreSQL and Docker")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	b, _ := p.Embed(context.Background(), "Go developer with PostgreSQL and Docker")

	if len(a) != 64 {
		t.Fatalf("expected dim 64, got %d", len(a))
	}
	if math.Abs(norm(a)-1) > 1e-5 {
		t.Fatalf("expected unit vector, got norm %v", norm(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}
}

func TestEmbedSimilarTextsAreCloser(t *testing.T) {
	p := embedding.NewPooler(New(256), nil)
	ctx := context.Background()
	job, _ := p.Embed(ctx, "senior go engineer postgresql kubernetes")
	close, _ := p.Embed(ctx, "go engineer with postgresql and kubernetes experience")
	far, _ := p.Embed(ctx, "pastry chef french desserts bakery")

	if domain.CosineSimilarity(job, close) <= domain.CosineSimilarity(job, far) {
		t.Fatalf("expected related text to be more similar")
	}
}

func TestEmbedEmptyInputIsCanonicalUnitVector(t *testing.T) {
	p := embedding.NewPooler(New(32), nil)
	a, _ := p.Embed(context.Background(), "")
	b, _ := p.Embed(context.Background(), "   \n\t")

	nonZero := 0
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("empty inputs must embed identically")
		}
		if a[i] != 0 {
			nonZero++
			if a[i] != 1 {
				t.Fatalf("expected a canonical basis vector, got component %v", a[i])
			}
		}
	}
	if nonZero != 1 {
		t.Fatalf("expected exactly one non-zero component, got %d", nonZero)
	}
}

func TestPoolerHonoursChunkLimit(t *testing.T) {
	splitter := chunking.NewSplitter(20, 0, 2)
	p := embedding.NewPooler(New(64), splitter)
	ctx := context.Background()

	head := "alpha beta gamma delta epsilon zeta eta theta"
	short, _ := p.Embed(ctx, head)
	long, _ := p.Embed(ctx, head+" completely different tail that is never embedded")
	if domain.CosineSimilarity(short, long) < 0.999 {
		t.Fatalf("text beyond the chunk limit should not change the vector")
	}
}
