// Package embedding is a narrow client for an Ollama-compatible embedding
// endpoint. The contract is a single capability: embed a batch of texts
// into float32 vectors. Failures classify as Unavailable so callers can
// fall back to keyword-only search and enqueue the entity for a later
// background pass.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// BatchSize caps the number of texts per embed call.
const BatchSize = 32

// Client talks to an Ollama-compatible /api/embeddings endpoint.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates an embedding client for the given base URL and model.
func New(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns one vector per input text, preserving order. Batches
// larger than BatchSize are rejected with InvalidArguments — the caller
// chunks.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > BatchSize {
		return nil, cwerr.E(cwerr.InvalidArguments, "batch of %d exceeds the cap of %d", len(texts), BatchSize)
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := c.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// EmbedOne is the single-text convenience used by query paths.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return c.embedOne(ctx, text)
}

func (c *Client) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Internal, err, "marshaling embed request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Internal, err, "building embed request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Unavailable, err, "embedding service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, cwerr.E(cwerr.Unavailable, "embedding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, cwerr.Wrap(cwerr.Unavailable, err, "decoding embed response")
	}
	if len(out.Embedding) == 0 {
		return nil, cwerr.E(cwerr.Unavailable, "embedding service returned an empty vector")
	}
	return out.Embedding, nil
}

// Health checks that the endpoint answers and knows the model.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return cwerr.Wrap(cwerr.Internal, err, "building health request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return cwerr.Wrap(cwerr.Unavailable, err, "embedding service unreachable")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return cwerr.E(cwerr.Unavailable, "embedding service health returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return cwerr.Wrap(cwerr.Unavailable, err, "reading health response")
	}
	if !strings.Contains(string(body), c.model) {
		return cwerr.E(cwerr.Unavailable, "model %s not available", c.model)
	}
	return nil
}

// Ping reports service health; it satisfies the status-probe contract.
func (c *Client) Ping(ctx context.Context) error {
	return c.Health(ctx)
}

// Model returns the configured model id (for cache_status reporting).
func (c *Client) Model() string { return c.model }

var _ fmt.Stringer = (*Client)(nil)

func (c *Client) String() string {
	return fmt.Sprintf("embedding(%s, %s)", c.baseURL, c.model)
}
