// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

// Package embed maps chunk text to fixed-dimension dense vectors.
package embed

import (
	"context"

	"github.com/cerebro-notes/cerebro/internal/config"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// Embedder turns a batch of texts into a batch of vectors of fixed
// dimension. Batching matters: provider calls dominate indexing cost.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the fixed width of every vector this embedder emits.
	Dimension() int
	ModelName() string
}

// New selects the embedder variant named by the config.
func New(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbedderProvider {
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.EmbedderModel), nil
	case "local":
		return NewLocalEmbedder(cfg.EmbedderModel), nil
	default:
		return nil, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"unknown embedder provider %q", cfg.EmbedderProvider)
	}
}
