package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/domain"
	"github.com/kirillkom/resume-ranker/internal/infrastructure/resilience"
)

// Client is a thin REST client for the collections API shared by the resume
// and job stores.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu sync.Mutex
	ensured  map[string]int
}

func NewClient(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
		ensured:    make(map[string]int),
	}
}

type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, body)
}

func isNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		retry := statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
		return resilience.ErrorClassification{Retryable: retry, RecordFailure: retry}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// do sends one JSON request through the executor. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
	}

	return c.executor.Execute(ctx, "qdrant."+operation, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &StatusError{
				Operation:  operation,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       string(msg),
			}
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, classifyQdrantError)
}

func (c *Client) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.do(ctx, http.MethodPut, "/collections/"+collection, reqBody, nil, "ensure_collection")
	// 409 if already exists (depends on version/config).
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return wrapStorage("ensure collection", err)
	}

	c.ensureMu.Lock()
	c.ensured[collection] = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) upsertPoints(ctx context.Context, collection string, points []point) error {
	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	return c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
}

func (c *Client) retrievePoint(ctx context.Context, collection, id string) (*point, error) {
	reqBody := map[string]any{
		"ids":          []string{id},
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points", reqBody, &resp, "retrieve"); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	return &resp.Result[0], nil
}

// Pinger reports whether the qdrant service answers its health endpoint.
type Pinger struct {
	client *Client
}

func NewPinger(client *Client) *Pinger {
	return &Pinger{client: client}
}

func (p *Pinger) Name() string { return "qdrant" }

func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.client.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant health status: %s", resp.Status)
	}
	return nil
}

type point struct {
	ID      pointID         `json:"id"`
	Vector  []float32       `json:"vector,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// pointID accepts both UUID strings and unsigned integer ids.
type pointID string

func (p *pointID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = pointID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode point id: %w", err)
	}
	*p = pointID(n.String())
	return nil
}

func wrapStorage(op string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyQdrantError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return domain.WrapError(domain.ErrStorage, op, err)
}
