package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/resilience"
)

// Client calls the Ollama /api/embed endpoint for batches of chunks.
type Client struct {
	baseURL    string
	model      string
	dim        int
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, dim int, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dim:        dim,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Dimension() int { return c.dim }

func (c *Client) Name() string { return "ollama:" + c.model }

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": c.model,
		"input": texts,
	}
	vectors, err := resilience.Call(ctx, c.executor, "ollama.embed", func(ctx context.Context) ([][]float32, error) {
		var response struct {
			Embeddings [][]float32 `json:"embeddings"`
		}
		if err := c.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
			return nil, err
		}
		return response.Embeddings, nil
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama embed", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := domain.CheckDimension(len(v), c.dim); err != nil {
			return nil, fmt.Errorf("ollama embed input %d: %w", i, err)
		}
	}
	return vectors, nil
}
