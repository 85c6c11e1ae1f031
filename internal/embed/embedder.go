// Package embed provides the client for the embedding inference server.
//
// The model itself is a black box behind an Ollama-compatible HTTP API:
// text in, fixed-width float vector out. One Embedder is constructed at
// startup and shared for the process lifetime — model load on the server
// side is expensive, so connections are reused rather than reopened per
// request.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const httpTimeout = 120 * time.Second

// Embedder converts texts into fixed-width embedding vectors.
type Embedder struct {
	BaseURL string
	Model   string

	dim    int
	client *http.Client
}

// NewEmbedder constructs an Embedder for the given inference server.
// dim must match the configured model's output width; every returned
// vector is checked against it.
func NewEmbedder(baseURL, model string, dim int) *Embedder {
	return &Embedder{
		BaseURL: baseURL,
		Model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// embedRequest is the /api/embed request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the /api/embed response body.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Dimensions returns the configured vector width.
func (e *Embedder) Dimensions() int { return e.dim }

// Embed converts a single text into a vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts a batch of texts into vectors, one per input text
// and in input order. Empty input returns empty output without touching
// the server.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding server returned %d: %s", resp.StatusCode, string(msg))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d texts", len(parsed.Embeddings), len(texts))
	}
	for i, vec := range parsed.Embeddings {
		if len(vec) != e.dim {
			return nil, fmt.Errorf("vector %d has width %d, expected %d", i, len(vec), e.dim)
		}
	}
	return parsed.Embeddings, nil
}

// Ping verifies the inference server is reachable.
func (e *Embedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server ping failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server ping returned %d", resp.StatusCode)
	}
	return nil
}
