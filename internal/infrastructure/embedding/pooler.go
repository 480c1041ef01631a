package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/chunking"
)

// EmptyInput is what models receive for text without any content, so that
// empty documents still map to a fixed vector.
const EmptyInput = "<empty>"

// ChunkModel embeds a batch of bounded-length texts.
type ChunkModel interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// Pooler applies the long-text policy shared by every model: split into
// windows, keep the first MaxChunks, embed, mean-pool and L2-normalise.
type Pooler struct {
	model    ChunkModel
	splitter *chunking.Splitter
}

func NewPooler(model ChunkModel, splitter *chunking.Splitter) *Pooler {
	if splitter == nil {
		splitter = chunking.NewSplitter(0, 0, 0)
	}
	return &Pooler{model: model, splitter: splitter}
}

func (p *Pooler) Dimension() int { return p.model.Dimension() }

func (p *Pooler) ModelName() string { return p.model.Name() }

func (p *Pooler) Embed(ctx context.Context, text string) ([]float32, error) {
	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		chunks = []string{EmptyInput}
	}

	vectors, err := p.model.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks with %s: %w", len(chunks), p.model.Name(), err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	dim := p.model.Dimension()
	pooled := make([]float64, dim)
	for i, v := range vectors {
		if err := domain.CheckDimension(len(v), dim); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		for j, x := range v {
			pooled[j] += float64(x)
		}
	}
	return Normalize(pooled), nil
}

// Normalize scales v to unit length. A zero vector is returned unchanged.
func Normalize(v []float64) []float32 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	for i, x := range v {
		if norm > 0 {
			out[i] = float32(x / norm)
		}
	}
	return out
}
