// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package embed_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerebro-notes/cerebro/internal/embed"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

func TestOllamaEmbedderBatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		out := make([][]float32, len(req.Input))
		for i := range out {
			out[i] = []float32{1, 2, 3}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	defer srv.Close()

	e := embed.NewOllamaEmbedder(srv.URL, "nomic-embed-text")

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 2, 3}, vecs[0])
	assert.Equal(t, 3, e.Dimension())
}

func TestOllamaEmbedderRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{0.5}}})
	}))
	defer srv.Close()

	e := embed.NewOllamaEmbedder(srv.URL, "nomic-embed-text")

	vecs, err := e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vecs[0])
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaEmbedderPersistentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := embed.NewOllamaEmbedder(srv.URL, "nomic-embed-text")

	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, cerebroerr.HasCode(err, cerebroerr.CodeEmbedUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaEmbedderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1}}})
	}))
	defer srv.Close()

	e := embed.NewOllamaEmbedder(srv.URL, "nomic-embed-text")

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, cerebroerr.HasCode(err, cerebroerr.CodeEmbedUnavailable))
}

func TestOllamaEmbedderEmptyBatch(t *testing.T) {
	e := embed.NewOllamaEmbedder("http://127.0.0.1:1", "nomic-embed-text")

	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
