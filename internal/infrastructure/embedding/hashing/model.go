package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kirillkom/resume-ranker/internal/infrastructure/embedding"
)

const emptyToken = "\x00empty"

// Model is a deterministic feature-hashing embedder. Unigrams and bigrams are
// hashed into Dimension buckets with a sign bit and weighted by 1+ln(tf).
type Model struct {
	dim int
}

func New(dim int) *Model {
	return &Model{dim: dim}
}

func (m *Model) Dimension() int { return m.dim }

func (m *Model) Name() string { return "hash" }

func (m *Model) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.embed(text)
	}
	return out, nil
}

func (m *Model) embed(text string) []float32 {
	v := make([]float64, m.dim)
	features := featureCounts(text)
	if len(features) == 0 {
		v[bucket(emptyToken, m.dim)] = 1
		return embedding.Normalize(v)
	}

	for feature, tf := range features {
		h := hash64(feature)
		weight := 1 + math.Log(float64(tf))
		if h>>63 == 1 {
			weight = -weight
		}
		v[h%uint64(m.dim)] += weight
	}
	return embedding.Normalize(v)
}

func featureCounts(text string) map[string]int {
	if text == embedding.EmptyInput {
		return nil
	}
	tokens := tokenize(text)
	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}
	return counts
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}

func bucket(feature string, dim int) uint64 {
	return hash64(feature) % uint64(dim)
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
