// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

const (
	embedAttempts    = 3
	embedBackoffBase = time.Second
)

// OllamaEmbedder calls a provider-hosted embedding endpoint over HTTP.
// Calls are retried with exponential backoff (3 attempts, waiting 1s then 2s);
// persistent failure surfaces as embedder_unavailable and never corrupts
// the stores.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client

	mu  sync.Mutex
	dim int // discovered from the first successful response
}

// NewOllamaEmbedder creates an embedder against an Ollama-compatible
// /api/embed endpoint.
func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed embeds a batch of texts. The embedder's dimension is fixed by the
// first successful call; later batches with a different width fail.
func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32

	op := func() error {
		var err error
		vectors, err = o.embedOnce(ctx, texts)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = embedBackoffBase
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, embedAttempts-1), ctx))
	if err != nil {
		return nil, cerebroerr.Wrap(err, cerebroerr.CodeEmbedUnavailable,
			"embedding provider unreachable", cerebroerr.FieldModel(o.model))
	}

	if err := o.checkDimensions(vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (o *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, payload)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed endpoint returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, nil
}

func (o *OllamaEmbedder) checkDimensions(vectors [][]float32) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, vec := range vectors {
		if o.dim == 0 {
			o.dim = len(vec)
		}
		if len(vec) != o.dim {
			return cerebroerr.Errorf(cerebroerr.CodeEmbedDimMismatch,
				"embedding dimension changed from %d to %d", o.dim, len(vec))
		}
	}
	return nil
}

// Dimension reports the vector width, 0 until the first successful Embed.
// Callers wiring the vector store probe once at startup.
func (o *OllamaEmbedder) Dimension() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dim
}

func (o *OllamaEmbedder) ModelName() string { return o.model }
